package scoring

import (
	"math"
	"testing"
)

var defaultParams = Params{Threshold: 0.5, MinMatchConfidence: 90, MatchScale: 10}

func TestScore_Table(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		params    Params
		wantMatch bool
		wantConf  float64
	}{
		{"identical", 0, defaultParams, true, 100},
		{"half threshold", 0.25, defaultParams, true, 95},
		{"just below threshold", 0.4999, defaultParams, true, 90.002},
		{"at threshold is not a match", 0.5, defaultParams, false, 50},
		{"far", 0.8, defaultParams, false, 20},
		{"orthogonal", 1, defaultParams, false, 0},
		{"opposite", 2, defaultParams, false, 0},
		{"scale floor applies", 0.45, Params{Threshold: 0.5, MinMatchConfidence: 95, MatchScale: 50}, true, 95},
		{"zero scale", 0.3, Params{Threshold: 0.5, MinMatchConfidence: 0, MatchScale: 0}, true, 100},
		{"large scale clamps at min", 0.49, Params{Threshold: 0.5, MinMatchConfidence: 10, MatchScale: 500}, true, 10},
		{"negative distance clamps to zero", -0.1, defaultParams, true, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.distance, tt.params)
			if got.IsMatch != tt.wantMatch {
				t.Errorf("IsMatch = %v, want %v", got.IsMatch, tt.wantMatch)
			}
			if math.Abs(got.Confidence-tt.wantConf) > 1e-6 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestScore_NaN(t *testing.T) {
	got := Score(math.NaN(), defaultParams)
	if got.IsMatch || got.Confidence != 0 {
		t.Errorf("expected non-match with zero confidence, got %+v", got)
	}
}

func TestScore_Bounds(t *testing.T) {
	params := []Params{
		defaultParams,
		{Threshold: 1, MinMatchConfidence: 0, MatchScale: 100},
		{Threshold: 0.01, MinMatchConfidence: 50, MatchScale: 5},
		{Threshold: 0.3, MinMatchConfidence: 100, MatchScale: 30},
	}

	for _, p := range params {
		for d := 0.0; d <= 2.0; d += 0.001 {
			got := Score(d, p)
			if got.Confidence < 0 || got.Confidence > 100 {
				t.Fatalf("confidence %v out of range at d=%v params=%+v", got.Confidence, d, p)
			}
			if got.IsMatch != (d < p.Threshold) {
				t.Fatalf("IsMatch mismatch at d=%v params=%+v", d, p)
			}
			if got.IsMatch && got.Confidence < p.MinMatchConfidence {
				t.Fatalf("match below floor at d=%v params=%+v", d, p)
			}
			if !got.IsMatch && got.Confidence >= 100 {
				t.Fatalf("non-match reached 100 at d=%v params=%+v", d, p)
			}
			if d >= 1 && got.Confidence != 0 && !got.IsMatch {
				t.Fatalf("expected 0 confidence for d=%v", d)
			}
		}
	}
}

func TestScore_MonotonicWithinRegion(t *testing.T) {
	prev := Score(0, defaultParams)
	for d := 0.001; d < defaultParams.Threshold; d += 0.001 {
		cur := Score(d, defaultParams)
		if cur.Confidence > prev.Confidence {
			t.Fatalf("confidence increased from %v to %v at d=%v", prev.Confidence, cur.Confidence, d)
		}
		prev = cur
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"defaults", defaultParams, false},
		{"threshold one", Params{Threshold: 1, MinMatchConfidence: 0}, false},
		{"zero threshold", Params{Threshold: 0}, true},
		{"threshold above one", Params{Threshold: 1.5}, true},
		{"nan threshold", Params{Threshold: math.NaN()}, true},
		{"negative scale", Params{Threshold: 0.5, MatchScale: -1}, true},
		{"min above 100", Params{Threshold: 0.5, MinMatchConfidence: 150}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
