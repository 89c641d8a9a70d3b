package model

import "time"

// Congestion bands discretize the congestion factor into severity buckets.
type CongestionBand string

const (
	BandFree     CongestionBand = "Free"
	BandModerate CongestionBand = "Moderate"
	BandHeavy    CongestionBand = "Heavy"
	BandSevere   CongestionBand = "Severe"
)

// BandForFactor maps a congestion factor onto its band. Boundaries are
// shared by the synthetic and live providers so both report on the same scale.
func BandForFactor(cf float64) CongestionBand {
	switch {
	case cf < 1.12:
		return BandFree
	case cf < 1.35:
		return BandModerate
	case cf < 1.65:
		return BandHeavy
	default:
		return BandSevere
	}
}

// SnapshotSource labels where a traffic snapshot came from.
type SnapshotSource string

const (
	SourceSimulated SnapshotSource = "Simulated"
	SourceVerified  SnapshotSource = "Verified"
)

// TrafficSnapshot is a point-in-time traffic reading for a geographic point.
// Created fresh per query and never mutated afterwards.
type TrafficSnapshot struct {
	Point            string         `json:"point"` // "lat,lon"
	Timestamp        time.Time      `json:"timestamp"`
	CongestionFactor float64        `json:"congestionFactor"` // >= 1.0, 1.0 = free flow
	DelayMinutes     int            `json:"delayMinutes"`
	CurrentSpeedKph  float64        `json:"currentSpeedKph,omitempty"`
	FreeFlowKph      float64        `json:"freeFlowKph,omitempty"`
	Band             CongestionBand `json:"band"`
	Source           SnapshotSource `json:"source"`
	Confidence       float64        `json:"confidence"` // 0..1
	Factors          []string       `json:"factors,omitempty"`
}

// DataQuality ranks the provenance of an input: Primary > Secondary > Estimated.
type DataQuality string

const (
	QualityPrimary   DataQuality = "primary"
	QualitySecondary DataQuality = "secondary"
	QualityEstimated DataQuality = "estimated"
)

type ConfidenceBand string

const (
	ConfidenceHigh   ConfidenceBand = "high"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceLow    ConfidenceBand = "low"
)

// ConfidenceScore is a derived value object; never persisted.
type ConfidenceScore struct {
	Score       float64        `json:"score"` // 0..1
	Band        ConfidenceBand `json:"band"`
	Factors     []string       `json:"factors,omitempty"`
	DataQuality DataQuality    `json:"dataQuality"`
}

// TransportMode is a closed enum of freight modes.
type TransportMode string

const (
	ModeAir  TransportMode = "air"
	ModeSea  TransportMode = "sea"
	ModeRoad TransportMode = "road"
	ModeRail TransportMode = "rail"
)

// TransportModes lists all modes in generation order.
var TransportModes = []TransportMode{ModeAir, ModeSea, ModeRoad, ModeRail}

// TrafficAdjustment is attached to a route only when its mode is
// traffic-sensitive (road).
type TrafficAdjustment struct {
	AdjustedEmissions float64        `json:"adjustedEmissions"` // tons CO2e
	DeltaEmissions    float64        `json:"deltaEmissions"`
	Band              CongestionBand `json:"band"`
	Source            SnapshotSource `json:"source"`
	Confidence        float64        `json:"confidence"`
}

// Route is one transport option for a shipment. Generated, never mutated.
type Route struct {
	Origin        string             `json:"origin"`
	Destination   string             `json:"destination"`
	DistanceKm    float64            `json:"distanceKm"`
	TransportMode TransportMode      `json:"transportMode"`
	BaseEmissions float64            `json:"baseEmissions"` // tons CO2e
	Cost          float64            `json:"cost"`          // USD
	DurationDays  int                `json:"durationDays"`
	Reliability   float64            `json:"reliability"` // 0..1
	Traffic       *TrafficAdjustment `json:"traffic,omitempty"`
}

// AdjustedEmissions returns the traffic-adjusted figure when present,
// otherwise the static estimate.
func (r Route) AdjustedEmissions() float64 {
	if r.Traffic != nil {
		return r.Traffic.AdjustedEmissions
	}
	return r.BaseEmissions
}

// Supplier is a read-only input to optimization; proposed changes reference
// it by ID rather than mutating it.
type Supplier struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Country           string        `json:"country,omitempty"`
	TransportMode     TransportMode `json:"transportMode"`
	DistanceKm        float64       `json:"distanceKm"`
	WeightTons        float64       `json:"weightTons"`
	TotalEmissions    float64       `json:"totalEmissions"` // tons CO2e
	EmissionIntensity float64       `json:"emissionIntensity,omitempty"`
	AnnualSpend       float64       `json:"annualSpend"` // USD
	Material          string        `json:"material,omitempty"`
}

// RouteOptimizationResult is the per-supplier output of the route optimizer.
type RouteOptimizationResult struct {
	SupplierID        string         `json:"supplierId"`
	CurrentRoute      Route          `json:"currentRoute"`
	RecommendedRoute  Route          `json:"recommendedRoute"`
	AlternativeRoutes []Route        `json:"alternativeRoutes"` // desc by score, recommended excluded
	EmissionSavings   float64        `json:"emissionSavings"`   // raw signed value
	CostImpact        float64        `json:"costImpact"`
	TimeDeltaDays     int            `json:"timeDeltaDays"`
	Reason            string         `json:"reason"`
	ConfidencePct     int            `json:"confidencePct"`
	ConfidenceBand    ConfidenceBand `json:"confidenceBand"`
	DataSource        string         `json:"dataSource"` // "verified" | "estimated"
}

type ChangeType string

const (
	ChangeTransportMode ChangeType = "transport_mode"
	ChangeReplace       ChangeType = "replace"
)

// SupplierChange is one proposed intervention against a supplier.
type SupplierChange struct {
	ID            string        `json:"id"`
	SupplierID    string        `json:"supplierId"`
	Type          ChangeType    `json:"type"`
	Description   string        `json:"description"`
	FromMode      TransportMode `json:"fromMode,omitempty"`
	ToMode        TransportMode `json:"toMode,omitempty"`
	Substitute    *Supplier     `json:"substitute,omitempty"` // set for replace
	EmissionDelta float64       `json:"emissionDelta"`        // negative = reduction
	CostDelta     float64       `json:"costDelta"`
	TimeDeltaDays int           `json:"timeDeltaDays"`
}

// Objectives holds the aggregate deltas of a portfolio solution.
type Objectives struct {
	EmissionReduction  float64 `json:"emissionReduction"` // tons CO2e saved (positive = saved)
	CostImpact         float64 `json:"costImpact"`        // USD (positive = more expensive)
	DeliveryTimeImpact int     `json:"deliveryTimeImpact"`
}

// OptimizationSolution is the portfolio-level result.
// Allocations are binary: 1.0 by default, 0 for replaced suppliers with the
// substitute at 1.0. No partial-allocation optimization is modeled.
type OptimizationSolution struct {
	Allocations map[string]float64 `json:"supplierAllocations"`
	Objectives  Objectives         `json:"objectives"`
	Changes     []SupplierChange   `json:"changes"`
	Feasible    bool               `json:"feasible"`
	Score       float64            `json:"score"` // 0..1
}

type ActionType string

const (
	ActionRouteChange    ActionType = "route_change"
	ActionSupplierSwitch ActionType = "supplier_switch"
	ActionModeChange     ActionType = "transport_mode_change"
	ActionAlert          ActionType = "alert"
)

type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusApproved ActionStatus = "approved"
	StatusRejected ActionStatus = "rejected"
	StatusExecuted ActionStatus = "executed"
	StatusFailed   ActionStatus = "failed"
)

// Terminal reports whether an action status admits no further transitions.
func (s ActionStatus) Terminal() bool {
	return s == StatusRejected || s == StatusExecuted || s == StatusFailed
}

// AgentAction is one proposed or executed intervention. Mutated only through
// the agent state machine; terminal actions move to the execution history.
type AgentAction struct {
	ID                    string       `json:"id"`
	Type                  ActionType   `json:"type"`
	Trigger               string       `json:"trigger"`
	Action                string       `json:"action"`
	EmissionImpact        float64      `json:"emissionImpact"` // negative = reduction
	CostImpact            float64      `json:"costImpact"`
	Confidence            float64      `json:"confidence"` // 0..1
	Status                ActionStatus `json:"status"`
	AutoExecuted          bool         `json:"autoExecuted"`
	HumanApprovalRequired bool         `json:"humanApprovalRequired"`
	CreatedAt             time.Time    `json:"createdAt"`
	UpdatedAt             time.Time    `json:"updatedAt"`
	Log                   string       `json:"log,omitempty"` // set on failure
}

// RiskAlert is the output of the risk-detection collaborator.
type RiskAlert struct {
	Supplier      Supplier `json:"supplier"`
	EmissionDelta float64  `json:"emissionDelta"` // tons CO2e at stake
	Confidence    float64  `json:"confidenceScore"`
	Reason        string   `json:"reason"`
}
