package dto

import (
	"encoding/json"
	"time"

	"gateway/internal/model"
)

// DetectionFeed is pushed to live viewers for every logged batch.
type DetectionFeed struct {
	Time       time.Time         `json:"time"`
	Detections []DetectionResult `json:"detections"`
}

func NewDetectionFeed(batch model.DetectionBatch) DetectionFeed {
	feed := DetectionFeed{Detections: FromBatch(batch)}
	if len(batch) > 0 {
		feed.Time = batch[0].Timestamp
	}
	return feed
}

// MarshalJSON formats the time the same way the CSV log does.
func (f DetectionFeed) MarshalJSON() ([]byte, error) {
	type Alias DetectionFeed
	return json.Marshal(&struct {
		Time string `json:"time"`
		Alias
	}{
		Time:  f.Time.Format(model.TimeLayout),
		Alias: (Alias)(f),
	})
}
