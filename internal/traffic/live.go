package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"carbonroute/internal/model"
)

// Live queries a flow-segment provider (TomTom-style API) for a point.
// Failures are returned to the caller; the Chain degrades to Synthetic so the
// optimization layer never sees a hard failure from here.
type Live struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	limiter *rate.Limiter
	now     func() time.Time
}

// NewLive builds a live provider. rps caps outbound provider calls; most
// flow-segment APIs meter by request.
func NewLive(baseURL, apiKey string, rps float64) *Live {
	if rps <= 0 {
		rps = 5
	}
	return &Live{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: baseURL,
		APIKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		now:     time.Now,
	}
}

func (l *Live) Name() string { return "live" }

// flowSegment mirrors the provider's flow-segment payload.
type flowSegment struct {
	FlowSegmentData struct {
		CurrentSpeed       float64 `json:"currentSpeed"`
		FreeFlowSpeed      float64 `json:"freeFlowSpeed"`
		CurrentTravelTime  float64 `json:"currentTravelTime"`  // seconds
		FreeFlowTravelTime float64 `json:"freeFlowTravelTime"` // seconds
		Confidence         float64 `json:"confidence"`
		RoadClosure        bool    `json:"roadClosure"`
	} `json:"flowSegmentData"`
}

func (l *Live) GetSnapshot(ctx context.Context, point string, baseDurationMin float64) (model.TrafficSnapshot, error) {
	if _, _, err := ParsePoint(point); err != nil {
		return model.TrafficSnapshot{}, err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return model.TrafficSnapshot{}, fmt.Errorf("traffic: rate limit wait: %w", err)
	}

	u := fmt.Sprintf("%s/flowSegmentData/absolute/10/json?point=%s&key=%s",
		l.BaseURL, url.QueryEscape(point), url.QueryEscape(l.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.TrafficSnapshot{}, err
	}
	resp, err := l.HTTP.Do(req)
	if err != nil {
		return model.TrafficSnapshot{}, fmt.Errorf("traffic: live fetch %s: %w", point, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.TrafficSnapshot{}, fmt.Errorf("traffic: live fetch %s: status %d", point, resp.StatusCode)
	}
	var seg flowSegment
	if err := json.NewDecoder(resp.Body).Decode(&seg); err != nil {
		return model.TrafficSnapshot{}, fmt.Errorf("traffic: malformed flow payload: %w", err)
	}
	d := seg.FlowSegmentData
	if d.CurrentSpeed <= 0 || d.FreeFlowSpeed <= 0 {
		return model.TrafficSnapshot{}, fmt.Errorf("traffic: flow payload missing speeds for %s", point)
	}

	cf := clamp(d.FreeFlowSpeed/d.CurrentSpeed, 1.0, 3.5)
	delay := int(math.Round((d.CurrentTravelTime - d.FreeFlowTravelTime) / 60))
	if delay < 0 {
		delay = 0
	}
	band := model.BandForFactor(cf)
	factors := []string{fmt.Sprintf("live flow, congestion %.2fx (%s)", cf, band)}
	if d.Confidence > 0 {
		factors = append(factors, fmt.Sprintf("provider confidence %.2f", d.Confidence))
	}
	if d.RoadClosure {
		factors = append(factors, "road closure reported")
	}
	confidence := d.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.85
	}
	return model.TrafficSnapshot{
		Point:            point,
		Timestamp:        l.now(),
		CongestionFactor: cf,
		DelayMinutes:     delay,
		CurrentSpeedKph:  d.CurrentSpeed,
		FreeFlowKph:      d.FreeFlowSpeed,
		Band:             band,
		Source:           model.SourceVerified,
		Confidence:       confidence,
		Factors:          factors,
	}, nil
}
