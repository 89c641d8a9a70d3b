package agent

import (
	"context"
	"fmt"

	"carbonroute/internal/confidence"
	"carbonroute/internal/model"
	"carbonroute/internal/opt"
)

// HeuristicDetector is the default risk-detection collaborator: it flags
// air-freight suppliers (largest mode-switch upside) and suppliers whose
// emission intensity stands out against the portfolio average.
type HeuristicDetector struct {
	// IntensityFactor flags suppliers whose emission intensity exceeds the
	// portfolio mean by this multiple.
	IntensityFactor float64
}

func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{IntensityFactor: 1.5}
}

func (d *HeuristicDetector) Detect(_ context.Context, suppliers []model.Supplier) ([]model.RiskAlert, error) {
	if len(suppliers) == 0 {
		return nil, nil
	}

	meanIntensity := 0.0
	for _, s := range suppliers {
		meanIntensity += s.EmissionIntensity
	}
	meanIntensity /= float64(len(suppliers))

	acc := 0.88
	var alerts []model.RiskAlert
	for _, s := range suppliers {
		if s.TransportMode == model.ModeAir {
			// upside of moving this freight to sea
			delta := s.TotalEmissions - opt.ModeEmissions(model.ModeSea, s.WeightTons, s.DistanceKm)
			if delta > 0 {
				score := confidence.Calculate(confidence.Input{
					Source:        confidence.SourceAPI,
					Completeness:  0.95,
					ModelAccuracy: &acc,
				})
				alerts = append(alerts, model.RiskAlert{
					Supplier:      s,
					EmissionDelta: delta,
					Confidence:    score.Score,
					Reason:        fmt.Sprintf("%s ships %.0f t by air over %.0f km", s.Name, s.WeightTons, s.DistanceKm),
				})
				continue
			}
		}
		if meanIntensity > 0 && s.EmissionIntensity > meanIntensity*d.IntensityFactor {
			score := confidence.Calculate(confidence.Input{
				Source:       confidence.SourceEstimated,
				Completeness: 0.7,
			})
			alerts = append(alerts, model.RiskAlert{
				Supplier:      s,
				EmissionDelta: s.TotalEmissions * 0.3, // plausible reduction from re-sourcing
				Confidence:    score.Score,
				Reason:        fmt.Sprintf("%s emission intensity %.2f is %.1fx the portfolio mean", s.Name, s.EmissionIntensity, s.EmissionIntensity/meanIntensity),
			})
		}
	}
	return alerts, nil
}
