package database

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistance_Range(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.4, 0.8, -0.5}
	d := CosineDistance(a, b)
	if d < 0 || d > 2 {
		t.Errorf("distance %v outside [0, 2]", d)
	}
	if d != CosineDistance(b, a) {
		t.Error("distance should be symmetric")
	}
}

func TestPersonFullName(t *testing.T) {
	p := Person{FirstName: "Jan", LastName: "Kowalski"}
	if got := p.FullName(); got != "Jan Kowalski" {
		t.Errorf("expected 'Jan Kowalski', got %q", got)
	}
	p = Person{FirstName: "Jan"}
	if got := p.FullName(); got != "Jan" {
		t.Errorf("expected 'Jan', got %q", got)
	}
}
