package opt

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"carbonroute/internal/metrics"
	"carbonroute/internal/model"
)

// PortfolioConfig declares the weighted objectives, hard constraints and
// feature toggles for a portfolio optimization run.
type PortfolioConfig struct {
	CarbonWeight float64 `yaml:"carbonWeight" json:"carbonWeight"`
	CostWeight   float64 `yaml:"costWeight" json:"costWeight"`
	TimeWeight   float64 `yaml:"timeWeight" json:"timeWeight"`

	MaxCostIncreasePct   float64 `yaml:"maxCostIncreasePct" json:"maxCostIncreasePct"`     // fraction of portfolio cost
	MinDeliveryDays      int     `yaml:"minDeliveryDays" json:"minDeliveryDays"`           // delivery-time impact cap in days
	MaxSupplierChangePct float64 `yaml:"maxSupplierChangePct" json:"maxSupplierChangePct"` // fraction of suppliers replaced

	AllowSupplierChanges      bool `yaml:"allowSupplierChanges" json:"allowSupplierChanges"`
	AllowTransportModeChanges bool `yaml:"allowTransportModeChanges" json:"allowTransportModeChanges"`
}

// DefaultPortfolioConfig mirrors the balanced scenario.
func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		CarbonWeight:              0.6,
		CostWeight:                0.3,
		TimeWeight:                0.1,
		MaxCostIncreasePct:        0.10,
		MinDeliveryDays:           30,
		MaxSupplierChangePct:      0.20,
		AllowSupplierChanges:      true,
		AllowTransportModeChanges: true,
	}
}

// Normalization ceilings for the composite score; each objective is capped
// at 1.0 against its ceiling.
const (
	ceilEmissionTons = 10000.0
	ceilCostUSD      = 1000000.0
	ceilTimeDays     = 30.0
)

// topSuppliersConsidered bounds the intervention search to the heaviest
// emitters; the long tail rarely moves the portfolio total.
const topSuppliersConsidered = 10

// candidate is one evaluated intervention before selection.
type candidate struct {
	change model.SupplierChange
}

// OptimizePortfolio proposes per-supplier changes ranked by emission
// reduction, subject to cost, delivery-time and change-volume constraints.
// An infeasible result is a normal outcome (Feasible=false), not an error.
func OptimizePortfolio(suppliers []model.Supplier, cfg PortfolioConfig) model.OptimizationSolution {
	metrics.OptimizerRuns.WithLabelValues("portfolio").Inc()

	alloc := make(map[string]float64, len(suppliers))
	for _, s := range suppliers {
		alloc[s.ID] = 1.0
	}
	sol := model.OptimizationSolution{Allocations: alloc, Feasible: true}
	if len(suppliers) == 0 {
		return sol
	}

	ranked := append([]model.Supplier{}, suppliers...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalEmissions > ranked[j].TotalEmissions
	})
	top := ranked
	if len(top) > topSuppliersConsidered {
		top = top[:topSuppliersConsidered]
	}

	var changes []model.SupplierChange
	replaceCount := 0
	for _, s := range top {
		best, ok := bestIntervention(s, cfg)
		if !ok {
			continue
		}
		changes = append(changes, best)
		if best.Type == model.ChangeReplace {
			replaceCount++
			sol.Allocations[best.SupplierID] = 0
			sol.Allocations[best.Substitute.ID] = 1.0
		}
	}

	// rank chosen changes by emission reduction, strongest first
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].EmissionDelta < changes[j].EmissionDelta
	})
	sol.Changes = changes

	totalCost := 0.0
	for _, s := range suppliers {
		totalCost += s.AnnualSpend
	}
	var emissionReduction, costImpact float64
	timeImpact := 0
	for _, c := range changes {
		emissionReduction += -c.EmissionDelta
		costImpact += c.CostDelta
		if c.TimeDeltaDays > timeImpact {
			timeImpact = c.TimeDeltaDays
		}
	}
	sol.Objectives = model.Objectives{
		EmissionReduction:  emissionReduction,
		CostImpact:         costImpact,
		DeliveryTimeImpact: timeImpact,
	}

	if totalCost > 0 && costImpact/totalCost > cfg.MaxCostIncreasePct {
		sol.Feasible = false
	}
	if timeImpact > cfg.MinDeliveryDays {
		sol.Feasible = false
	}
	if float64(replaceCount)/float64(len(suppliers)) > cfg.MaxSupplierChangePct {
		sol.Feasible = false
	}

	sol.Score = portfolioScore(cfg, emissionReduction, costImpact, timeImpact)
	return sol
}

// bestIntervention evaluates the candidate interventions for one supplier
// and keeps the single largest emission reduction, if any reduces at all.
func bestIntervention(s model.Supplier, cfg PortfolioConfig) (model.SupplierChange, bool) {
	var cands []candidate
	if cfg.AllowTransportModeChanges && s.TransportMode == model.ModeAir {
		cands = append(cands, candidate{change: modeSwitchChange(s, model.ModeSea)})
	}
	if cfg.AllowSupplierChanges {
		for _, alt := range synthesizeAlternatives(s) {
			cands = append(cands, candidate{change: replaceChange(s, alt)})
		}
	}

	best := model.SupplierChange{}
	found := false
	for _, c := range cands {
		if c.change.EmissionDelta >= 0 {
			continue
		}
		if !found || c.change.EmissionDelta < best.EmissionDelta {
			best = c.change
			found = true
		}
	}
	return best, found
}

// modeSwitchChange computes the delta of moving a supplier's freight from
// its current mode to target.
func modeSwitchChange(s model.Supplier, target model.TransportMode) model.SupplierChange {
	newEmissions := ModeEmissions(target, s.WeightTons, s.DistanceKm)
	costDelta := ModeCost(target, s.AnnualSpend) - ModeCost(s.TransportMode, s.AnnualSpend)
	timeDelta := modeTable[target].DurationDays - modeTable[s.TransportMode].DurationDays
	return model.SupplierChange{
		ID:            uuid.New().String(),
		SupplierID:    s.ID,
		Type:          model.ChangeTransportMode,
		Description:   fmt.Sprintf("Switch %s from %s to %s freight", s.Name, s.TransportMode, target),
		FromMode:      s.TransportMode,
		ToMode:        target,
		EmissionDelta: newEmissions - s.TotalEmissions,
		CostDelta:     costDelta,
		TimeDeltaDays: timeDelta,
	}
}

// synthesizeAlternatives fabricates plausible replacement suppliers:
// a regional source (closer, pricier), an eco-certified premium source, and
// a budget source (farther, cheaper). IDs are derived from the original so
// the substitution is traceable.
func synthesizeAlternatives(s model.Supplier) []model.Supplier {
	regional := s
	regional.ID = s.ID + "-regional"
	regional.Name = s.Name + " (regional)"
	regional.DistanceKm = s.DistanceKm * 0.6
	regional.AnnualSpend = s.AnnualSpend * 1.15
	regional.TotalEmissions = s.TotalEmissions * 0.6

	eco := s
	eco.ID = s.ID + "-eco"
	eco.Name = s.Name + " (eco-certified)"
	eco.AnnualSpend = s.AnnualSpend * 1.25
	eco.TotalEmissions = s.TotalEmissions * 0.65

	budget := s
	budget.ID = s.ID + "-budget"
	budget.Name = s.Name + " (budget)"
	budget.DistanceKm = s.DistanceKm * 1.4
	budget.AnnualSpend = s.AnnualSpend * 0.85
	budget.TotalEmissions = s.TotalEmissions * 1.4

	return []model.Supplier{regional, eco, budget}
}

func replaceChange(s model.Supplier, alt model.Supplier) model.SupplierChange {
	sub := alt
	return model.SupplierChange{
		ID:            uuid.New().String(),
		SupplierID:    s.ID,
		Type:          model.ChangeReplace,
		Description:   fmt.Sprintf("Replace %s with %s", s.Name, alt.Name),
		Substitute:    &sub,
		EmissionDelta: alt.TotalEmissions - s.TotalEmissions,
		CostDelta:     alt.AnnualSpend - s.AnnualSpend,
		TimeDeltaDays: 0,
	}
}

// portfolioScore blends the normalized objectives; cost and time are
// inverted since lower is better.
func portfolioScore(cfg PortfolioConfig, emissionReduction, costImpact float64, timeImpact int) float64 {
	e := capUnit(emissionReduction / ceilEmissionTons)
	c := capUnit(positive(costImpact) / ceilCostUSD)
	t := capUnit(float64(positive64(timeImpact)) / ceilTimeDays)
	score := cfg.CarbonWeight*e + cfg.CostWeight*(1-c) + cfg.TimeWeight*(1-t)
	return capUnit(score)
}

func capUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func positive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func positive64(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
