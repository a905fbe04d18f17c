package detection

import (
	"math"
	"strconv"
	"time"

	"gateway/internal/model"
)

const (
	confidenceDecimals = 3
	bboxDecimals       = 2
)

// Normalize turns raw backend output into immutable events stamped with now.
// Order is preserved.
func Normalize(raw []model.RawDetection, now time.Time) model.DetectionBatch {
	batch := make(model.DetectionBatch, 0, len(raw))
	ts := now.Truncate(time.Second)

	for _, r := range raw {
		label := r.Label
		if label == "" {
			label = strconv.Itoa(r.ClassID)
		}

		batch = append(batch, model.DetectionEvent{
			Timestamp:  ts,
			Label:      label,
			Confidence: round(clampUnit(r.Confidence), confidenceDecimals),
			Box:        NormalizeBox(r.Box),
		})
	}
	return batch
}

// NormalizeBox orders corners so X1<=X2 and Y1<=Y2 and rounds to two decimals.
func NormalizeBox(b model.BBox) model.BBox {
	x1, x2 := b.X1, b.X2
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	y1, y2 := b.Y1, b.Y2
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return model.BBox{
		X1: round(x1, bboxDecimals),
		Y1: round(y1, bboxDecimals),
		X2: round(x2, bboxDecimals),
		Y2: round(y2, bboxDecimals),
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
