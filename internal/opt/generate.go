// Package opt implements the traffic-aware route scoring and multi-objective
// supplier optimization core.
package opt

import (
	"carbonroute/internal/model"
)

// modeParams are the per-mode multipliers applied to a supplier's base
// distance and spend when synthesizing a candidate route.
type modeParams struct {
	DistanceMult float64
	CostMult     float64
	DurationDays int
	Reliability  float64
}

var modeTable = map[model.TransportMode]modeParams{
	model.ModeAir:  {DistanceMult: 0.90, CostMult: 5.0, DurationDays: 2, Reliability: 0.90},
	model.ModeSea:  {DistanceMult: 1.30, CostMult: 1.0, DurationDays: 35, Reliability: 0.95},
	model.ModeRoad: {DistanceMult: 1.10, CostMult: 2.5, DurationDays: 10, Reliability: 0.92},
	model.ModeRail: {DistanceMult: 1.20, CostMult: 1.5, DurationDays: 14, Reliability: 0.98},
}

// emissionFactor is kg CO2e per ton-km by mode; emissions are reported in
// tons, hence the /1000 in modeEmissions.
var emissionFactor = map[model.TransportMode]float64{
	model.ModeAir:  1.13,
	model.ModeSea:  0.016,
	model.ModeRoad: 0.096,
	model.ModeRail: 0.028,
}

// transportSpendShare is the fraction of annual spend attributed to
// transport; a simplifying proxy for lane-level cost data we don't have.
const transportSpendShare = 0.30

// ModeEmissions returns tons CO2e for weight over the mode-adjusted distance.
func ModeEmissions(mode model.TransportMode, weightTons, distanceKm float64) float64 {
	return weightTons * distanceKm * modeTable[mode].DistanceMult * emissionFactor[mode] / 1000
}

// ModeCost returns the transport cost proxy in USD.
func ModeCost(mode model.TransportMode, annualSpend float64) float64 {
	return transportSpendShare * annualSpend * modeTable[mode].CostMult
}

// GenerateAlternatives synthesizes one candidate route per transport mode
// for the supplier's shipment profile.
func GenerateAlternatives(s model.Supplier) []model.Route {
	routes := make([]model.Route, 0, len(model.TransportModes))
	for _, mode := range model.TransportModes {
		p := modeTable[mode]
		routes = append(routes, model.Route{
			Origin:        s.Country,
			Destination:   "distribution center",
			DistanceKm:    s.DistanceKm * p.DistanceMult,
			TransportMode: mode,
			BaseEmissions: ModeEmissions(mode, s.WeightTons, s.DistanceKm),
			Cost:          ModeCost(mode, s.AnnualSpend),
			DurationDays:  p.DurationDays,
			Reliability:   p.Reliability,
		})
	}
	return routes
}
