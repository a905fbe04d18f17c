package model

// LogColumns is the canonical header of every log partition.
var LogColumns = []string{"time", "label", "confidence", "x1", "y1", "x2", "y2"}

// TimeLayout is the second-precision timestamp format of persisted rows.
const TimeLayout = "2006-01-02 15:04:05"

// LogRecord is one parsed row of the detection log.
type LogRecord struct {
	Time       string  `json:"time"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}
