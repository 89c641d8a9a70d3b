package predict

import (
	"context"
	"log"
	"strings"
)

// FallbackVersion labels estimates produced without the model.
const FallbackVersion = "fallback-static"

// kg CO2e per km by vehicle type; urban driving carries a surcharge.
var vehicleFactorKgPerKm = map[string]float64{
	"truck": 0.85,
	"van":   0.35,
	"bike":  0.0,
}

var routeTypeMult = map[string]float64{
	"highway": 1.0,
	"mixed":   1.15,
	"urban":   1.30,
}

// Fallback produces a deterministic factor-table estimate. It never fails,
// so a chained predictor always has an answer for the caller.
type Fallback struct{}

func (Fallback) Predict(_ context.Context, req Request) (Response, error) {
	f, ok := vehicleFactorKgPerKm[strings.ToLower(strings.TrimSpace(req.VehicleType))]
	if !ok {
		f = vehicleFactorKgPerKm["truck"]
	}
	m, ok := routeTypeMult[strings.ToLower(strings.TrimSpace(req.RouteType))]
	if !ok {
		m = routeTypeMult["mixed"]
	}
	kg := req.DistanceKm * f * m
	return Response{
		EmissionKg:   kg,
		EmissionTons: kg / 1000,
		ModelVersion: FallbackVersion,
		Estimated:    true,
	}, nil
}

func (fb Fallback) PredictBatch(ctx context.Context, reqs []Request) ([]Response, error) {
	out := make([]Response, len(reqs))
	for i, r := range reqs {
		out[i], _ = fb.Predict(ctx, r)
	}
	return out, nil
}

// Chained tries the model service first and falls back to the static
// estimate on any failure; upstream unavailability is never surfaced as a
// hard failure to the optimization layer.
type Chained struct {
	Primary  Predictor
	Fallback Fallback
}

func NewChained(primary Predictor) *Chained {
	return &Chained{Primary: primary}
}

func (c *Chained) Predict(ctx context.Context, req Request) (Response, error) {
	if c.Primary != nil {
		if resp, err := c.Primary.Predict(ctx, req); err == nil {
			return resp, nil
		} else {
			log.Printf("predict: primary failed, using fallback: %v", err)
		}
	}
	return c.Fallback.Predict(ctx, req)
}

func (c *Chained) PredictBatch(ctx context.Context, reqs []Request) ([]Response, error) {
	if c.Primary != nil {
		if resp, err := c.Primary.PredictBatch(ctx, reqs); err == nil {
			return resp, nil
		} else {
			log.Printf("predict: primary batch failed, using fallback: %v", err)
		}
	}
	return c.Fallback.PredictBatch(ctx, reqs)
}
