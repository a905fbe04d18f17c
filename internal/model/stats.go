package model

// LabelCount aggregates the mirrored detections of one label.
type LabelCount struct {
	Label         string  `json:"label"`
	Count         int     `json:"count"`
	MaxConfidence float64 `json:"max_confidence"`
	LastSeen      string  `json:"last_seen"`
}
