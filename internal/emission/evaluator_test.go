package emission

import (
	"context"
	"math"
	"testing"

	"carbonroute/internal/model"
)

// stubProvider returns a fixed congestion factor and confidence.
type stubProvider struct {
	cf   float64
	conf float64
}

func (stubProvider) Name() string { return "stub" }
func (s stubProvider) GetSnapshot(_ context.Context, point string, baseDurationMin float64) (model.TrafficSnapshot, error) {
	return model.TrafficSnapshot{
		Point:            point,
		CongestionFactor: s.cf,
		DelayMinutes:     int(baseDurationMin * (s.cf - 1)),
		Band:             model.BandForFactor(s.cf),
		Source:           model.SourceSimulated,
		Confidence:       s.conf,
	}, nil
}

func TestEvaluateLinearCoupling(t *testing.T) {
	ev := NewEvaluator(stubProvider{cf: 1.5, conf: 0.8})
	out, err := ev.Evaluate(context.Background(), "52.52,13.40", 10, 60, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if math.Abs(out.AdjustedEmission-15) > 1e-9 {
		t.Fatalf("adjusted: got %v, want 15", out.AdjustedEmission)
	}
	if math.Abs(out.DeltaEmission-5) > 1e-9 {
		t.Fatalf("delta: got %v, want 5", out.DeltaEmission)
	}
	if out.Band != model.BandHeavy {
		t.Fatalf("band: got %s", out.Band)
	}
	if out.Mode != ModeAuto {
		t.Fatalf("heavy congestion should stay AUTO, got %s", out.Mode)
	}
}

func TestEvaluateHumanReviewGate(t *testing.T) {
	cases := []struct {
		name  string
		cf    float64
		conf  float64
		prior *float64
		want  DecisionMode
	}{
		{"severe low confidence", 1.8, 0.5, nil, ModeHumanReview},
		{"severe high confidence", 1.8, 0.9, nil, ModeAuto},
		{"heavy low confidence", 1.5, 0.3, nil, ModeAuto},
		{"severe boundary confidence", 1.8, 0.65, nil, ModeAuto},
		{"severe prior drags below gate", 1.8, 0.9, ptr(0.5), ModeHumanReview},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev := NewEvaluator(stubProvider{cf: c.cf, conf: c.conf})
			out, err := ev.Evaluate(context.Background(), "52.52,13.40", 10, 60, c.prior)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Mode != c.want {
				t.Fatalf("mode: got %s, want %s", out.Mode, c.want)
			}
		})
	}
}

func TestEvaluatePriorConfidenceCombined(t *testing.T) {
	prior := 0.5
	ev := NewEvaluator(stubProvider{cf: 1.2, conf: 0.8})
	out, err := ev.Evaluate(context.Background(), "52.52,13.40", 10, 60, &prior)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if math.Abs(out.Confidence-0.4) > 1e-9 {
		t.Fatalf("combined confidence: got %v, want 0.4", out.Confidence)
	}
}

func ptr(v float64) *float64 { return &v }
