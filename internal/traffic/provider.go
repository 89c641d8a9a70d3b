package traffic

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"carbonroute/internal/metrics"
	"carbonroute/internal/model"
)

// Provider produces a point-in-time traffic snapshot for a geographic point.
// baseDurationMin is the free-flow duration of the leg being evaluated.
type Provider interface {
	Name() string
	GetSnapshot(ctx context.Context, point string, baseDurationMin float64) (model.TrafficSnapshot, error)
}

var ErrNoProvider = errors.New("traffic: no provider answered")

// ParsePoint validates a "lat,lon" coordinate pair.
func ParsePoint(point string) (lat, lon float64, err error) {
	parts := strings.Split(point, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("traffic: point %q must be \"lat,lon\"", point)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("traffic: bad latitude in %q: %w", point, err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("traffic: bad longitude in %q: %w", point, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("traffic: point %q out of range", point)
	}
	return lat, lon, nil
}

// Chain tries providers in order and returns the first successful snapshot,
// recording which provider ultimately answered. The last provider is expected
// to be infallible (synthetic), so callers always get a value.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) GetSnapshot(ctx context.Context, point string, baseDurationMin float64) (model.TrafficSnapshot, error) {
	var lastErr error
	for _, p := range c.providers {
		snap, err := p.GetSnapshot(ctx, point, baseDurationMin)
		if err != nil {
			metrics.SnapshotFetches.WithLabelValues(p.Name(), "error").Inc()
			log.Printf("traffic: provider %s failed for %s: %v", p.Name(), point, err)
			lastErr = err
			continue
		}
		metrics.SnapshotFetches.WithLabelValues(p.Name(), "ok").Inc()
		snap.Factors = append(snap.Factors, "answered by "+p.Name())
		return snap, nil
	}
	if lastErr == nil {
		lastErr = ErrNoProvider
	}
	return model.TrafficSnapshot{}, lastErr
}
