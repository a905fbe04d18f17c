package ai

import (
	"fmt"
	"math"
	"sort"

	"gateway/internal/model"
)

// MaxDetections caps the boxes kept after suppression.
const MaxDetections = 300

// OutputLayout describes a YOLO head output without the batch dimension.
// Channel-major is [4+classes, anchors]; anchor-major is the transposed form.
type OutputLayout struct {
	Channels     int
	Anchors      int
	AnchorsFirst bool
}

// LayoutFromShape reads [1, a, b] and guesses which axis holds the anchors.
func LayoutFromShape(shape []int) (OutputLayout, error) {
	dims := shape
	if len(dims) == 3 {
		dims = dims[1:]
	}
	if len(dims) != 2 || dims[0] <= 0 || dims[1] <= 0 {
		return OutputLayout{}, fmt.Errorf("unsupported output shape %v", shape)
	}

	// anchorow zawsze jest wiecej niz kanalow
	if dims[0] > dims[1] {
		return OutputLayout{Channels: dims[1], Anchors: dims[0], AnchorsFirst: true}, nil
	}
	if dims[0] < 5 {
		return OutputLayout{}, fmt.Errorf("output shape %v has no class scores", shape)
	}
	return OutputLayout{Channels: dims[0], Anchors: dims[1]}, nil
}

func (l OutputLayout) at(data []float32, channel, anchor int) float32 {
	if l.AnchorsFirst {
		return data[anchor*l.Channels+channel]
	}
	return data[channel*l.Anchors+anchor]
}

// DecodeYOLO turns a raw head output into boxes in the pixel space of the
// original image (imgW x imgH), filtered by confidence and per-class IoU.
func DecodeYOLO(data []float32, layout OutputLayout, params Params, imgW, imgH int) ([]model.RawDetection, error) {
	if len(data) < layout.Channels*layout.Anchors {
		return nil, fmt.Errorf("output has %d values, layout needs %d", len(data), layout.Channels*layout.Anchors)
	}

	scaleX := float64(imgW) / float64(params.Size)
	scaleY := float64(imgH) / float64(params.Size)
	numClasses := layout.Channels - 4

	candidates := make([]model.RawDetection, 0, 64)
	for i := 0; i < layout.Anchors; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < numClasses; c++ {
			score := layout.at(data, 4+c, i)
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || float64(bestScore) < params.Confidence {
			continue
		}

		cx := float64(layout.at(data, 0, i))
		cy := float64(layout.at(data, 1, i))
		w := float64(layout.at(data, 2, i))
		h := float64(layout.at(data, 3, i))

		candidates = append(candidates, model.RawDetection{
			ClassID:    bestClass,
			Confidence: float64(bestScore),
			Box: model.BBox{
				X1: clamp((cx-w/2)*scaleX, 0, float64(imgW)),
				Y1: clamp((cy-h/2)*scaleY, 0, float64(imgH)),
				X2: clamp((cx+w/2)*scaleX, 0, float64(imgW)),
				Y2: clamp((cy+h/2)*scaleY, 0, float64(imgH)),
			},
		})
	}

	return NonMaxSuppression(candidates, params.IoU), nil
}

// NonMaxSuppression keeps the most confident box of every overlapping group
// of the same class. Result is ordered by confidence, highest first.
func NonMaxSuppression(boxes []model.RawDetection, iouThreshold float64) []model.RawDetection {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	kept := make([]model.RawDetection, 0, len(boxes))
	suppressed := make([]bool, len(boxes))
	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])
		if len(kept) == MaxDetections {
			break
		}
		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] || boxes[j].ClassID != boxes[i].ClassID {
				continue
			}
			if IoU(boxes[i].Box, boxes[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// IoU computes the intersection-over-union of two boxes.
func IoU(a, b model.BBox) float64 {
	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)

	inter := math.Max(0, ix2-ix1) * math.Max(0, iy2-iy1)
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
