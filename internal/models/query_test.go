package models

import (
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name          string
		query         *SearchQuery
		wantErr       bool
		wantTopK      int
		wantThreshold float64
	}{
		{"empty query", &SearchQuery{Query: ""}, true, 0, 0},
		{"blank query", &SearchQuery{Query: "   "}, true, 0, 0},
		{"negative top_k", &SearchQuery{Query: "x", TopK: -1}, true, 0, 0},
		{"threshold above 1", &SearchQuery{Query: "x", Threshold: floatPtr(1.5)}, true, 0, 0},
		{"threshold below -1", &SearchQuery{Query: "x", Threshold: floatPtr(-1.01)}, true, 0, 0},
		{"applies defaults", &SearchQuery{Query: "camera"}, false, 3, 0.5},
		{"caps top_k", &SearchQuery{Query: "camera", TopK: 500}, false, 10, 0.5},
		{"keeps explicit values", &SearchQuery{Query: "camera", TopK: 2, Threshold: floatPtr(-1)}, false, 2, -1},
		{"zero threshold is explicit", &SearchQuery{Query: "camera", Threshold: floatPtr(0)}, false, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(3, 10, 0.5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
			if got := tt.query.ThresholdValue(99); got != tt.wantThreshold {
				t.Errorf("Threshold = %g, want %g", got, tt.wantThreshold)
			}
		})
	}
}

func TestSearchQuery_ValidateTrims(t *testing.T) {
	q := &SearchQuery{Query: "  wireless audio  "}
	if err := q.Validate(3, 10, 0.5); err != nil {
		t.Fatal(err)
	}
	if q.Query != "wireless audio" {
		t.Errorf("Query = %q", q.Query)
	}
}
