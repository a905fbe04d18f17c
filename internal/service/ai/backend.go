package ai

import (
	"gocv.io/x/gocv"

	"gateway/internal/model"
)

const (
	BackendDNN  = "dnn"
	BackendONNX = "onnx"
)

// Params are fixed per deployment and passed to every inference.
type Params struct {
	Confidence float64
	IoU        float64
	Size       int
}

// Backend runs one model instance. A Backend is used by one goroutine at a time.
type Backend interface {
	Infer(img gocv.Mat, params Params) ([]model.RawDetection, error)
	Close() error
}

// Factory builds a fresh backend instance; the pool calls it once per slot.
type Factory func() (Backend, error)
