package ai

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"gateway/internal/model"
)

// dnnBackend runs the model through OpenCV DNN.
type dnnBackend struct {
	net gocv.Net
}

// NewDNNFactory returns a Factory loading modelPath (and configPath, when set) with OpenCV DNN.
func NewDNNFactory(modelPath, configPath string) Factory {
	return func() (Backend, error) {
		return newDNNBackend(modelPath, configPath)
	}
}

func newDNNBackend(modelPath, configPath string) (*dnnBackend, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &dnnBackend{net: net}, nil
}

func (b *dnnBackend) Infer(img gocv.Mat, params Params) ([]model.RawDetection, error) {
	// wejscie YOLO: RGB, 0..1, kwadrat params.Size
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(params.Size, params.Size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	b.net.SetInput(blob, "")

	output := b.net.Forward("")
	defer output.Close()
	if output.Empty() {
		return nil, fmt.Errorf("network returned empty output")
	}

	layout, err := LayoutFromShape(output.Size())
	if err != nil {
		return nil, err
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	return DecodeYOLO(data, layout, params, img.Cols(), img.Rows())
}

func (b *dnnBackend) Close() error {
	return b.net.Close()
}
