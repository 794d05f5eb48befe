// Package scoring converts a cosine distance between two face embeddings
// into a match verdict and a bounded confidence percentage.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/WKowalczykDev/EntranceControl/internal/config"
)

// Params controls the distance to confidence mapping.
type Params struct {
	// Threshold is the cosine distance below which two faces match.
	Threshold float64
	// MinMatchConfidence is the lowest confidence reported for a match.
	MinMatchConfidence float64
	// MatchScale is how much confidence a match loses between distance 0
	// and Threshold.
	MatchScale float64
}

// Result is the verdict for one distance.
type Result struct {
	IsMatch    bool
	Confidence float64
}

// maxNonMatch is the largest confidence a non-match may report.
var maxNonMatch = math.Nextafter(100, 0)

// ParamsFromConfig builds Params from the scoring configuration.
func ParamsFromConfig(cfg config.ScoringConfig) Params {
	return Params{
		Threshold:          cfg.MatchThreshold,
		MinMatchConfidence: cfg.MinMatchConfidence,
		MatchScale:         cfg.MatchScale,
	}
}

// Validate rejects parameters for which the confidence bounds cannot hold.
func (p Params) Validate() error {
	if p.Threshold <= 0 || p.Threshold > 1 || math.IsNaN(p.Threshold) {
		return fmt.Errorf("threshold must be in (0, 1], got %v", p.Threshold)
	}
	if p.MinMatchConfidence < 0 || p.MinMatchConfidence > 100 {
		return fmt.Errorf("min match confidence must be in [0, 100], got %v", p.MinMatchConfidence)
	}
	if p.MatchScale < 0 {
		return errors.New("match scale must not be negative")
	}
	return nil
}

// Score maps a cosine distance to a verdict.
//
// A match (distance < Threshold) starts at 100 for identical vectors and
// decreases linearly by MatchScale over the threshold, never dropping
// below MinMatchConfidence. A non-match reports (1-distance)*100 clamped
// to [0, 100), so it can never read as a perfect score.
func Score(distance float64, p Params) Result {
	if math.IsNaN(distance) {
		return Result{}
	}
	distance = max(0, distance)

	if distance < p.Threshold {
		conf := 100 - distance/p.Threshold*p.MatchScale
		conf = clamp(max(p.MinMatchConfidence, conf), p.MinMatchConfidence, 100)
		return Result{IsMatch: true, Confidence: conf}
	}

	conf := clamp((1-distance)*100, 0, maxNonMatch)
	return Result{IsMatch: false, Confidence: conf}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
