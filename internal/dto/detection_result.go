package dto

import "gateway/internal/model"

// DetectionResult is one element of the /detect response array.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// FromBatch converts a batch into the response shape; never returns nil.
func FromBatch(batch model.DetectionBatch) []DetectionResult {
	results := make([]DetectionResult, 0, len(batch))
	for _, e := range batch {
		results = append(results, DetectionResult{
			Label:      e.Label,
			Confidence: e.Confidence,
			BBox:       e.Box.Slice(),
		})
	}
	return results
}
