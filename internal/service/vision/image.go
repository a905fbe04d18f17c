package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DecodedImage is a BGR pixel buffer owned by a single request.
type DecodedImage struct {
	Mat    gocv.Mat
	closed bool
}

// NewDecodedImage takes ownership of mat.
func NewDecodedImage(mat gocv.Mat) (*DecodedImage, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decoded image is empty")
	}
	return &DecodedImage{Mat: mat}, nil
}

func (d *DecodedImage) Width() int {
	return d.Mat.Cols()
}

func (d *DecodedImage) Height() int {
	return d.Mat.Rows()
}

// Close releases the native buffer. Safe to call twice.
func (d *DecodedImage) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	return d.Mat.Close()
}
