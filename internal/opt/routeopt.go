package opt

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"carbonroute/internal/confidence"
	"carbonroute/internal/emission"
	"carbonroute/internal/metrics"
	"carbonroute/internal/model"
)

// defaultConfidencePct is reported when the recommended route carries no
// traffic adjustment (non-road modes have no live signal to lean on).
const defaultConfidencePct = 72

// RouteOptimizer scores candidate routes for a supplier, traffic-adjusted
// where applicable, and picks a recommendation.
type RouteOptimizer struct {
	Evaluator *emission.Evaluator
}

func NewRouteOptimizer(ev *emission.Evaluator) *RouteOptimizer {
	return &RouteOptimizer{Evaluator: ev}
}

// routeScore is a harmonic-style blend favoring low emissions, then low cost,
// then short duration. The +1 terms keep the score finite near zero.
func routeScore(r model.Route) float64 {
	return 0.5/(r.AdjustedEmissions()+1) + 0.3/(r.Cost+1) + 0.2/(float64(r.DurationDays)+1)
}

// Optimize generates candidates for the supplier, applies the traffic
// evaluator to the road candidate only, and ranks everything by score.
// The EmissionSavings field keeps the raw signed value; only the generated
// reason text floors it at zero for display.
func (o *RouteOptimizer) Optimize(ctx context.Context, s model.Supplier, trafficPoint string, baseDurationMin float64) (model.RouteOptimizationResult, error) {
	metrics.OptimizerRuns.WithLabelValues("route").Inc()

	candidates := GenerateAlternatives(s)
	for i := range candidates {
		if candidates[i].TransportMode != model.ModeRoad {
			continue
		}
		ev, err := o.Evaluator.Evaluate(ctx, trafficPoint, candidates[i].BaseEmissions, baseDurationMin, nil)
		if err != nil {
			return model.RouteOptimizationResult{}, fmt.Errorf("opt: evaluate road candidate for %s: %w", s.ID, err)
		}
		candidates[i].Traffic = &model.TrafficAdjustment{
			AdjustedEmissions: ev.AdjustedEmission,
			DeltaEmissions:    ev.DeltaEmission,
			Band:              ev.Band,
			Source:            ev.Source,
			Confidence:        ev.Confidence,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return routeScore(candidates[i]) > routeScore(candidates[j])
	})
	recommended := candidates[0]
	alternatives := append([]model.Route{}, candidates[1:]...)

	current := candidates[0]
	found := false
	for _, c := range candidates {
		if c.TransportMode == s.TransportMode {
			current = c
			found = true
			break
		}
	}
	if !found {
		current = candidates[0]
	}

	savings := current.AdjustedEmissions() - recommended.AdjustedEmissions()
	costImpact := recommended.Cost - current.Cost
	timeDelta := recommended.DurationDays - current.DurationDays

	pct := defaultConfidencePct
	conf := float64(defaultConfidencePct) / 100
	dataSource := "estimated"
	if recommended.Traffic != nil {
		conf = recommended.Traffic.Confidence
		pct = int(math.Round(conf * 100))
		if recommended.Traffic.Source == model.SourceVerified {
			dataSource = "verified"
		}
	}

	var reason string
	if recommended.TransportMode == current.TransportMode {
		reason = fmt.Sprintf("Current %s route is optimal under current conditions (%d%% confidence)",
			recommended.TransportMode, pct)
	} else {
		shown := savings
		if shown < 0 {
			shown = 0
		}
		reason = fmt.Sprintf("Switch from %s to %s to save %.1f t CO2e",
			current.TransportMode, recommended.TransportMode, shown)
	}

	return model.RouteOptimizationResult{
		SupplierID:        s.ID,
		CurrentRoute:      current,
		RecommendedRoute:  recommended,
		AlternativeRoutes: alternatives,
		EmissionSavings:   savings,
		CostImpact:        costImpact,
		TimeDeltaDays:     timeDelta,
		Reason:            reason,
		ConfidencePct:     pct,
		ConfidenceBand:    confidence.BandFor(conf),
		DataSource:        dataSource,
	}, nil
}

// ItemError records a per-supplier failure inside a batch; one bad item
// never aborts the rest of the fan-out.
type ItemError struct {
	SupplierID string
	Err        error
}

// OptimizeAll runs Optimize concurrently across suppliers above the
// emissions threshold, drops non-improving results, and sorts the rest by
// savings descending.
func (o *RouteOptimizer) OptimizeAll(ctx context.Context, suppliers []model.Supplier, trafficPoint string, emissionThreshold float64) ([]model.RouteOptimizationResult, []ItemError) {
	var eligible []model.Supplier
	for _, s := range suppliers {
		if s.TotalEmissions > emissionThreshold {
			eligible = append(eligible, s)
		}
	}

	results := make([]*model.RouteOptimizationResult, len(eligible))
	errs := make([]*ItemError, len(eligible))
	var wg sync.WaitGroup
	for i, s := range eligible {
		wg.Add(1)
		go func(i int, s model.Supplier) {
			defer wg.Done()
			res, err := o.Optimize(ctx, s, trafficPoint, baseDurationForDistance(s.DistanceKm))
			if err != nil {
				errs[i] = &ItemError{SupplierID: s.ID, Err: err}
				return
			}
			results[i] = &res
		}(i, s)
	}
	wg.Wait()

	var out []model.RouteOptimizationResult
	var itemErrs []ItemError
	for i := range eligible {
		if errs[i] != nil {
			itemErrs = append(itemErrs, *errs[i])
			continue
		}
		if results[i].EmissionSavings <= 0 {
			continue
		}
		out = append(out, *results[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EmissionSavings > out[j].EmissionSavings
	})
	return out, itemErrs
}

// baseDurationForDistance estimates free-flow minutes for a road leg at an
// assumed 60 km/h average.
func baseDurationForDistance(distanceKm float64) float64 {
	return distanceKm // 60 km/h -> 1 min per km
}
