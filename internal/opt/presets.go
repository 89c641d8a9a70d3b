package opt

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Scenario names a preset parameterization of the portfolio optimizer.
// Presets differ only in weights, constraints and toggles; the algorithm
// is the same for all of them.
type Scenario string

const (
	ScenarioAggressive   Scenario = "aggressive"
	ScenarioBalanced     Scenario = "balanced"
	ScenarioConservative Scenario = "conservative"
)

// PresetConfig returns the built-in configuration for a scenario.
// Unknown scenarios fall back to balanced.
func PresetConfig(s Scenario) PortfolioConfig {
	switch s {
	case ScenarioAggressive:
		return PortfolioConfig{
			CarbonWeight:              0.8,
			CostWeight:                0.15,
			TimeWeight:                0.05,
			MaxCostIncreasePct:        0.25,
			MinDeliveryDays:           40,
			MaxSupplierChangePct:      0.40,
			AllowSupplierChanges:      true,
			AllowTransportModeChanges: true,
		}
	case ScenarioConservative:
		return PortfolioConfig{
			CarbonWeight:              0.4,
			CostWeight:                0.5,
			TimeWeight:                0.1,
			MaxCostIncreasePct:        0.05,
			MinDeliveryDays:           30,
			MaxSupplierChangePct:      0.10,
			AllowSupplierChanges:      false,
			AllowTransportModeChanges: true,
		}
	default:
		return DefaultPortfolioConfig()
	}
}

// LoadPresets reads scenario overrides from a YAML file keyed by scenario
// name. Missing file is not an error for the caller to special-case; it is
// reported so the composition root can log and fall back to built-ins.
func LoadPresets(path string) (map[Scenario]PortfolioConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opt: read presets %s: %w", path, err)
	}
	var out map[Scenario]PortfolioConfig
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("opt: parse presets %s: %w", path, err)
	}
	return out, nil
}
