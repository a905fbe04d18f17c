package vision

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// DefaultMaxWidth bounds the image width handed to the detector.
const DefaultMaxWidth = 640

// Preprocessor caps image width before inference.
type Preprocessor struct {
	maxWidth int
}

func NewPreprocessor(maxWidth int) *Preprocessor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Preprocessor{maxWidth: maxWidth}
}

// TargetSize returns the output dimensions for an input of w x h.
func (p *Preprocessor) TargetSize(w, h int) (int, int) {
	if w <= p.maxWidth {
		return w, h
	}
	scale := float64(p.maxWidth) / float64(w)
	newH := int(math.Round(float64(h) * scale))
	if newH < 1 {
		newH = 1
	}
	return p.maxWidth, newH
}

// Apply downscales img in place with area interpolation. Never upscales.
func (p *Preprocessor) Apply(img *DecodedImage) error {
	w, h := img.Width(), img.Height()
	newW, newH := p.TargetSize(w, h)
	if newW == w && newH == h {
		return nil
	}

	resized := gocv.NewMat()
	if err := gocv.Resize(img.Mat, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea); err != nil {
		resized.Close()
		return fmt.Errorf("failed to resize image: %w", err)
	}

	img.Mat.Close()
	img.Mat = resized
	return nil
}
