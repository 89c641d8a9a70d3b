package traffic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"carbonroute/internal/model"
)

// Synthetic produces deterministic pseudo-live traffic without an external
// provider: a per-point hash seed combined with superposed sinusoids over the
// clock, so the congestion factor drifts smoothly between polls instead of
// jumping, and identical (point, time) inputs reproduce identical snapshots.
type Synthetic struct {
	now func() time.Time
}

func NewSynthetic() *Synthetic {
	return &Synthetic{now: time.Now}
}

// NewSyntheticWithClock pins the wall-clock source; tests freeze it to assert
// exact numeric outputs.
func NewSyntheticWithClock(now func() time.Time) *Synthetic {
	return &Synthetic{now: now}
}

func (s *Synthetic) Name() string { return "synthetic" }

// Seed hashes a point string into [0,1). Pure: same point, same seed.
func Seed(point string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(point))
	return float64(h.Sum64()%1_000_000) / 1_000_000
}

// Wave periods in seconds. Three superposed sine waves of unequal period keep
// the signal oscillating inside [1.03, 1.85] without discontinuities.
const (
	waveShort = 180.0
	waveMid   = 900.0
	waveLong  = 3600.0
)

func congestionAt(seed float64, t time.Time) float64 {
	ts := float64(t.Unix())
	phase := seed * 2 * math.Pi
	w := 0.5*math.Sin(ts/waveMid+phase) +
		0.3*math.Sin(ts/waveLong+2*phase) +
		0.2*math.Sin(ts/waveShort+3*phase) // in [-1, 1]
	return 1.44 + 0.41*w // [1.03, 1.85]
}

func (s *Synthetic) GetSnapshot(_ context.Context, point string, baseDurationMin float64) (model.TrafficSnapshot, error) {
	now := s.now()
	seed := Seed(point)
	cf := congestionAt(seed, now)

	freeFlow := 80 + seed*35 // 80..115 km/h
	current := freeFlow / cf
	if current < 18 {
		current = 18
	}
	delay := int(math.Round(baseDurationMin * (cf - 1)))
	if delay < 0 {
		delay = 0
	}
	confidence := clamp(0.55+(1/cf)*0.35, 0.35, 0.92)

	band := model.BandForFactor(cf)
	return model.TrafficSnapshot{
		Point:            point,
		Timestamp:        now,
		CongestionFactor: cf,
		DelayMinutes:     delay,
		CurrentSpeedKph:  current,
		FreeFlowKph:      freeFlow,
		Band:             band,
		Source:           model.SourceSimulated,
		Confidence:       confidence,
		Factors: []string{
			fmt.Sprintf("simulated flow, congestion %.2fx (%s)", cf, band),
			fmt.Sprintf("speed %.0f/%.0f km/h", current, freeFlow),
		},
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
