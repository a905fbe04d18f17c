package detection

import (
	"testing"
	"time"

	"gateway/internal/model"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 15, 987654321, time.Local)
	raw := []model.RawDetection{
		{ClassID: 0, Label: "person", Confidence: 0.87654, Box: model.BBox{X1: 10.123, Y1: 20.456, X2: 110.789, Y2: 220.001}},
		{ClassID: 3, Confidence: 1.2, Box: model.BBox{X1: 50, Y1: 60, X2: 5, Y2: 6}},
		{ClassID: 1, Label: "car", Confidence: -0.1},
	}

	batch := Normalize(raw, now)
	if len(batch) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(batch))
	}

	first := batch[0]
	if first.Label != "person" || first.Confidence != 0.877 {
		t.Errorf("Unexpected first event %+v", first)
	}
	if first.Box != (model.BBox{X1: 10.12, Y1: 20.46, X2: 110.79, Y2: 220}) {
		t.Errorf("Unexpected rounded box %+v", first.Box)
	}
	if !first.Timestamp.Equal(time.Date(2024, 5, 1, 12, 30, 15, 0, time.Local)) {
		t.Errorf("Expected second precision timestamp, got %v", first.Timestamp)
	}

	second := batch[1]
	if second.Label != "3" {
		t.Errorf("Expected class id fallback, got %q", second.Label)
	}
	if second.Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %f", second.Confidence)
	}
	if second.Box != (model.BBox{X1: 5, Y1: 6, X2: 50, Y2: 60}) {
		t.Errorf("Expected swapped corners, got %+v", second.Box)
	}

	if batch[2].Confidence != 0 {
		t.Errorf("Expected confidence clamped to 0, got %f", batch[2].Confidence)
	}
}

func TestNormalize_PreservesOrder(t *testing.T) {
	raw := []model.RawDetection{
		{Label: "a", Confidence: 0.1},
		{Label: "b", Confidence: 0.9},
		{Label: "c", Confidence: 0.5},
	}
	batch := Normalize(raw, time.Now())
	for i, want := range []string{"a", "b", "c"} {
		if batch[i].Label != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, batch[i].Label)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	batch := Normalize(nil, time.Now())
	if batch == nil || len(batch) != 0 {
		t.Errorf("Expected empty non-nil batch, got %#v", batch)
	}
}
