package model

import "time"

// BBox is an axis-aligned box in pixel coordinates of the inference input.
type BBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// Slice returns the box as [x1, y1, x2, y2].
func (b BBox) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// RawDetection is one box as returned by a detector backend, before normalization.
type RawDetection struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        BBox
}

// DetectionEvent is a normalized detection. It is never modified after creation.
type DetectionEvent struct {
	Timestamp  time.Time
	Label      string
	Confidence float64
	Box        BBox
}

// DetectionBatch is the ordered set of events produced by one request.
type DetectionBatch []DetectionEvent
