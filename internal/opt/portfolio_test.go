package opt

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"carbonroute/internal/model"
)

func airSupplier(id string, emissions float64) model.Supplier {
	return model.Supplier{
		ID: id, Name: "Flyer " + id, TransportMode: model.ModeAir,
		DistanceKm: 2000, WeightTons: 50, TotalEmissions: emissions, AnnualSpend: 200000,
	}
}

func TestOptimizePortfolioAirToSeaSwitch(t *testing.T) {
	s := airSupplier("a1", 113.0)
	cfg := DefaultPortfolioConfig()
	cfg.AllowSupplierChanges = false // isolate the mode switch

	sol := OptimizePortfolio([]model.Supplier{s}, cfg)
	if len(sol.Changes) != 1 {
		t.Fatalf("changes: got %d, want 1", len(sol.Changes))
	}
	c := sol.Changes[0]
	if c.Type != model.ChangeTransportMode || c.FromMode != model.ModeAir || c.ToMode != model.ModeSea {
		t.Fatalf("unexpected change: %+v", c)
	}
	// sea emissions: 50 * 2000 * 1.3 * 0.016 / 1000 = 2.08
	wantDelta := 2.08 - 113.0
	if math.Abs(c.EmissionDelta-wantDelta) > 1e-6 {
		t.Fatalf("emission delta: got %v, want %v", c.EmissionDelta, wantDelta)
	}
	if math.Abs(sol.Objectives.EmissionReduction-(-wantDelta)) > 1e-6 {
		t.Fatalf("objectives reduction: got %v", sol.Objectives.EmissionReduction)
	}
	// sea is both cheaper and slower than air
	if c.CostDelta >= 0 {
		t.Fatalf("sea should cost less than air: %v", c.CostDelta)
	}
	if c.TimeDeltaDays != 33 {
		t.Fatalf("time delta: got %d, want 33", c.TimeDeltaDays)
	}
	if sol.Allocations["a1"] != 1.0 {
		t.Fatalf("mode switch must not change allocation: %v", sol.Allocations["a1"])
	}
}

func TestOptimizePortfolioNoLeversNoChanges(t *testing.T) {
	s := model.Supplier{
		ID: "r1", Name: "Roadster", TransportMode: model.ModeRoad,
		DistanceKm: 500, WeightTons: 20, TotalEmissions: 10, AnnualSpend: 100000,
	}
	cfg := DefaultPortfolioConfig()
	cfg.AllowSupplierChanges = false
	cfg.AllowTransportModeChanges = true // mode switch only targets air

	sol := OptimizePortfolio([]model.Supplier{s}, cfg)
	if len(sol.Changes) != 0 {
		t.Fatalf("expected no changes, got %v", sol.Changes)
	}
	if sol.Objectives.EmissionReduction != 0 {
		t.Fatalf("reduction: got %v, want 0", sol.Objectives.EmissionReduction)
	}
	if !sol.Feasible {
		t.Fatal("empty change set must be feasible")
	}
}

func TestOptimizePortfolioReplacePicksLargestReduction(t *testing.T) {
	s := model.Supplier{
		ID: "r1", Name: "Roadster", TransportMode: model.ModeRoad,
		DistanceKm: 500, WeightTons: 20, TotalEmissions: 100, AnnualSpend: 100000,
	}
	cfg := DefaultPortfolioConfig()
	cfg.MaxSupplierChangePct = 1.0
	cfg.MaxCostIncreasePct = 1.0

	sol := OptimizePortfolio([]model.Supplier{s}, cfg)
	if len(sol.Changes) != 1 {
		t.Fatalf("changes: got %d, want 1", len(sol.Changes))
	}
	c := sol.Changes[0]
	if c.Type != model.ChangeReplace || c.Substitute == nil {
		t.Fatalf("expected replacement: %+v", c)
	}
	// regional alternative cuts emissions to 0.6x, the deepest reduction
	if c.Substitute.ID != "r1-regional" {
		t.Fatalf("substitute: got %s, want r1-regional", c.Substitute.ID)
	}
	if math.Abs(c.EmissionDelta-(-40)) > 1e-6 {
		t.Fatalf("emission delta: got %v, want -40", c.EmissionDelta)
	}
	if sol.Allocations["r1"] != 0 || sol.Allocations["r1-regional"] != 1.0 {
		t.Fatalf("allocations not rebalanced: %v", sol.Allocations)
	}
}

func TestOptimizePortfolioInfeasibleOnCostCap(t *testing.T) {
	s := model.Supplier{
		ID: "r1", Name: "Roadster", TransportMode: model.ModeRoad,
		DistanceKm: 500, WeightTons: 20, TotalEmissions: 100, AnnualSpend: 100000,
	}
	cfg := DefaultPortfolioConfig()
	cfg.MaxSupplierChangePct = 1.0
	cfg.MaxCostIncreasePct = 0.05 // regional costs +15%

	sol := OptimizePortfolio([]model.Supplier{s}, cfg)
	if sol.Feasible {
		t.Fatalf("cost cap should mark solution infeasible: %+v", sol.Objectives)
	}
	// the proposal is still reported for inspection
	if len(sol.Changes) != 1 {
		t.Fatalf("changes: got %d", len(sol.Changes))
	}
}

func TestOptimizePortfolioInfeasibleOnChangeVolume(t *testing.T) {
	suppliers := []model.Supplier{}
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		suppliers = append(suppliers, model.Supplier{
			ID: id, Name: id, TransportMode: model.ModeRoad,
			DistanceKm: 500, WeightTons: 20, TotalEmissions: 100, AnnualSpend: 100000,
		})
	}
	cfg := DefaultPortfolioConfig()
	cfg.MaxCostIncreasePct = 1.0
	cfg.MaxSupplierChangePct = 0.20 // 4 replacements over 4 suppliers = 100%

	sol := OptimizePortfolio(suppliers, cfg)
	if sol.Feasible {
		t.Fatal("change-volume cap should mark solution infeasible")
	}
}

func TestOptimizePortfolioEmptyInput(t *testing.T) {
	sol := OptimizePortfolio(nil, DefaultPortfolioConfig())
	if !sol.Feasible || len(sol.Changes) != 0 {
		t.Fatalf("empty portfolio: %+v", sol)
	}
}

func TestPresetConfigScenarios(t *testing.T) {
	agg := PresetConfig(ScenarioAggressive)
	if agg.CarbonWeight != 0.8 || agg.MaxCostIncreasePct != 0.25 || !agg.AllowSupplierChanges {
		t.Fatalf("aggressive preset: %+v", agg)
	}
	con := PresetConfig(ScenarioConservative)
	if con.CostWeight != 0.5 || con.AllowSupplierChanges {
		t.Fatalf("conservative preset: %+v", con)
	}
	if PresetConfig("unknown") != DefaultPortfolioConfig() {
		t.Fatal("unknown scenario should fall back to balanced")
	}
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	doc := `aggressive:
  carbonWeight: 0.9
  costWeight: 0.05
  timeWeight: 0.05
  maxCostIncreasePct: 0.3
  minDeliveryDays: 45
  maxSupplierChangePct: 0.5
  allowSupplierChanges: true
  allowTransportModeChanges: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	cfg, ok := got[ScenarioAggressive]
	if !ok {
		t.Fatalf("missing aggressive key: %v", got)
	}
	if cfg.CarbonWeight != 0.9 || cfg.MinDeliveryDays != 45 {
		t.Fatalf("parsed config: %+v", cfg)
	}

	if _, err := LoadPresets(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}
