// Package notify delivers agent action notifications to stakeholder
// endpoints as HMAC-signed webhooks. Delivery is fire-and-forget: failures
// are logged, never propagated to the agent cycle.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"carbonroute/internal/model"
)

// Notifier is the sink consumed by the agent loop.
type Notifier interface {
	Notify(ctx context.Context, a model.AgentAction)
}

// Endpoint is one stakeholder webhook target.
type Endpoint struct {
	URL    string
	Secret string
}

type Webhook struct {
	HTTP      *http.Client
	Endpoints []Endpoint
}

func NewWebhook(endpoints []Endpoint) *Webhook {
	return &Webhook{HTTP: &http.Client{Timeout: 5 * time.Second}, Endpoints: endpoints}
}

// payload is the wire shape stakeholders receive on every status transition.
type payload struct {
	Status         model.ActionStatus `json:"status"`
	Action         string             `json:"action"`
	EmissionImpact float64            `json:"emissionImpact"`
	CostImpact     float64            `json:"costImpact"`
	Confidence     float64            `json:"confidence"`
	ActionID       string             `json:"actionId"`
	TS             string             `json:"ts"`
}

func (w *Webhook) Notify(ctx context.Context, a model.AgentAction) {
	if len(w.Endpoints) == 0 {
		return
	}
	body, _ := json.Marshal(payload{
		Status:         a.Status,
		Action:         a.Action,
		EmissionImpact: a.EmissionImpact,
		CostImpact:     a.CostImpact,
		Confidence:     a.Confidence,
		ActionID:       a.ID,
		TS:             time.Now().UTC().Format(time.RFC3339),
	})
	for _, ep := range w.Endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
		if err != nil {
			log.Printf("notify: build request %s: %v", ep.URL, err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if ep.Secret != "" {
			req.Header.Set("X-Signature", SignHMAC(ep.Secret, body))
		}
		req.Header.Set("X-Event-Type", "agent.action."+string(a.Status))
		resp, err := w.HTTP.Do(req)
		if err != nil {
			log.Printf("notify: deliver to %s: %v", ep.URL, err)
			continue
		}
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("notify: %s returned %d", ep.URL, resp.StatusCode)
		}
	}
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a model.AgentAction) {
	for _, n := range m {
		n.Notify(ctx, a)
	}
}

// Log is a Notifier that only writes to the process log; used when no
// endpoints are configured.
type Log struct{}

func (Log) Notify(_ context.Context, a model.AgentAction) {
	log.Printf("notify: action %s -> %s (%.1f t CO2e, $%.0f, conf %.2f)",
		a.ID, a.Status, a.EmissionImpact, a.CostImpact, a.Confidence)
}
