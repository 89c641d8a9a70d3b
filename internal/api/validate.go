package api

import (
	"fmt"

	"carbonroute/internal/model"
	"carbonroute/internal/opt"
	"carbonroute/internal/traffic"
)

// Boundary validation: the core packages assume pre-validated input, so
// everything user-supplied is checked here.

func validateSupplier(s model.Supplier) error {
	if s.ID == "" {
		return fmt.Errorf("supplier id is required")
	}
	if s.DistanceKm <= 0 {
		return fmt.Errorf("supplier %s: distanceKm must be > 0", s.ID)
	}
	if s.WeightTons <= 0 {
		return fmt.Errorf("supplier %s: weightTons must be > 0", s.ID)
	}
	switch s.TransportMode {
	case model.ModeAir, model.ModeSea, model.ModeRoad, model.ModeRail:
	default:
		return fmt.Errorf("supplier %s: unknown transport mode %q", s.ID, s.TransportMode)
	}
	return nil
}

func validateSuppliers(suppliers []model.Supplier) error {
	if len(suppliers) == 0 {
		return fmt.Errorf("suppliers must be non-empty")
	}
	for _, s := range suppliers {
		if err := validateSupplier(s); err != nil {
			return err
		}
	}
	return nil
}

func validatePoint(point string) error {
	if point == "" {
		return fmt.Errorf("trafficPoint is required")
	}
	_, _, err := traffic.ParsePoint(point)
	return err
}

func validatePortfolioConfig(cfg opt.PortfolioConfig) error {
	if cfg.CarbonWeight < 0 || cfg.CostWeight < 0 || cfg.TimeWeight < 0 {
		return fmt.Errorf("objective weights must be >= 0")
	}
	if cfg.MaxCostIncreasePct < 0 || cfg.MaxCostIncreasePct > 1 {
		return fmt.Errorf("maxCostIncreasePct must be in [0,1]")
	}
	if cfg.MaxSupplierChangePct < 0 || cfg.MaxSupplierChangePct > 1 {
		return fmt.Errorf("maxSupplierChangePct must be in [0,1]")
	}
	if cfg.MinDeliveryDays < 0 {
		return fmt.Errorf("minDeliveryDays must be >= 0")
	}
	return nil
}
