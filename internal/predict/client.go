// Package predict talks to the carbon emission prediction service and
// degrades to a deterministic factor-table estimate when it is unreachable.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request describes one shipment leg for prediction.
type Request struct {
	OriginFacility string  `json:"origin_facility"`
	VehicleType    string  `json:"vehicle_type"` // truck, van, bike
	RouteType      string  `json:"route_type"`   // highway, urban, mixed
	DistanceKm     float64 `json:"distance_km"`
}

// Response is a predicted emission with provenance.
type Response struct {
	EmissionKg   float64 `json:"predicted_emission_kgco2e"`
	EmissionTons float64 `json:"predicted_emission_tons"`
	ModelVersion string  `json:"model_version"`
	Estimated    bool    `json:"estimated"` // true when the fallback answered
}

// Predictor is the capability consumed by the rest of the system.
type Predictor interface {
	Predict(ctx context.Context, req Request) (Response, error)
	PredictBatch(ctx context.Context, reqs []Request) ([]Response, error)
}

// Client is the HTTP client for the prediction service.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{HTTP: &http.Client{Timeout: 5 * time.Second}, BaseURL: baseURL}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("predict: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("predict: %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("predict: %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) Predict(ctx context.Context, req Request) (Response, error) {
	var out Response
	if err := c.post(ctx, "/predict", req, &out); err != nil {
		return Response{}, err
	}
	return out, nil
}

type batchRequest struct {
	Predictions []Request `json:"predictions"`
}

type batchResponse struct {
	Results []Response `json:"results"`
}

func (c *Client) PredictBatch(ctx context.Context, reqs []Request) ([]Response, error) {
	var out batchResponse
	if err := c.post(ctx, "/predict/batch", batchRequest{Predictions: reqs}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
}

// Healthy probes the service health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return false
	}
	return h.ModelLoaded
}
