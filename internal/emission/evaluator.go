// Package emission couples base emission estimates with live traffic.
package emission

import (
	"context"
	"fmt"

	"carbonroute/internal/model"
	"carbonroute/internal/traffic"
)

// DecisionMode gates whether an adjustment is safe to apply automatically.
type DecisionMode string

const (
	ModeAuto        DecisionMode = "AUTO"
	ModeHumanReview DecisionMode = "HUMAN_REVIEW"
)

// Evaluation is the result of adjusting a base emission for traffic.
type Evaluation struct {
	AdjustedEmission float64              `json:"adjustedEmission"`
	DeltaEmission    float64              `json:"deltaEmission"`
	Band             model.CongestionBand `json:"band"`
	Mode             DecisionMode         `json:"decisionMode"`
	Source           model.SnapshotSource `json:"source"`
	Confidence       float64              `json:"confidence"`
	Factors          []string             `json:"factors,omitempty"`
}

// Evaluator multiplies a base emission by the observed congestion factor.
// The linear coupling is a deliberate simplification: congestion scales
// emissions proportionally, and only road routes are gated through it —
// air/sea/rail schedules are not congestion-sensitive in this model, so
// their emissions never reflect delay. Known limitation, kept as-is.
type Evaluator struct {
	Traffic traffic.Provider
}

func NewEvaluator(p traffic.Provider) *Evaluator {
	return &Evaluator{Traffic: p}
}

// Evaluate fetches a snapshot for point and applies the congestion factor to
// baseEmission. priorConfidence (nil = 1.0) scales the snapshot confidence.
// Severe congestion with combined confidence below 0.65 demands human review;
// everything else is safe to auto-apply.
func (e *Evaluator) Evaluate(ctx context.Context, point string, baseEmission, baseDurationMin float64, priorConfidence *float64) (Evaluation, error) {
	snap, err := e.Traffic.GetSnapshot(ctx, point, baseDurationMin)
	if err != nil {
		return Evaluation{}, fmt.Errorf("emission: snapshot for %s: %w", point, err)
	}

	adjusted := baseEmission * snap.CongestionFactor
	combined := snap.Confidence
	if priorConfidence != nil {
		combined *= *priorConfidence
	}
	if combined < 0 {
		combined = 0
	}
	if combined > 1 {
		combined = 1
	}

	mode := ModeAuto
	if snap.Band == model.BandSevere && combined < 0.65 {
		mode = ModeHumanReview
	}

	factors := append([]string{}, snap.Factors...)
	factors = append(factors,
		fmt.Sprintf("base %.2f t adjusted to %.2f t (%.2fx)", baseEmission, adjusted, snap.CongestionFactor))

	return Evaluation{
		AdjustedEmission: adjusted,
		DeltaEmission:    adjusted - baseEmission,
		Band:             snap.Band,
		Mode:             mode,
		Source:           snap.Source,
		Confidence:       combined,
		Factors:          factors,
	}, nil
}
