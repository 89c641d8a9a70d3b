package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carbonroute/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func seedSuppliers(t *testing.T, s *Server) {
	t.Helper()
	body := []byte(`{"suppliers":[
		{"id":"s1","name":"Flyer","transportMode":"air","distanceKm":2000,"weightTons":50,"totalEmissions":113,"annualSpend":200000},
		{"id":"s2","name":"Roadster","transportMode":"road","distanceKm":1000,"weightTons":200,"totalEmissions":21.1,"annualSpend":300000}
	]}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/suppliers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.SuppliersHandler(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("suppliers create: got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSuppliersUpsertList(t *testing.T) {
	s := newTestServer(t)
	seedSuppliers(t, s)

	rr := httptest.NewRecorder()
	s.SuppliersHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/suppliers", nil))
	if rr.Code != 200 {
		t.Fatalf("suppliers list: got %d", rr.Code)
	}
	var resp struct {
		Items []model.Supplier `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != "s1" {
		t.Fatalf("items: %+v", resp.Items)
	}
}

func TestSuppliersValidation(t *testing.T) {
	s := newTestServer(t)
	cases := []string{
		`{"suppliers":[]}`,
		`{"suppliers":[{"id":"","transportMode":"road","distanceKm":1,"weightTons":1}]}`,
		`{"suppliers":[{"id":"x","transportMode":"teleport","distanceKm":1,"weightTons":1}]}`,
		`{"suppliers":[{"id":"x","transportMode":"road","distanceKm":0,"weightTons":1}]}`,
		`not json`,
	}
	for _, body := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/suppliers", bytes.NewReader([]byte(body)))
		s.SuppliersHandler(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rr.Code)
		}
	}
}

func TestRouteOptimize(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"supplier":{"id":"s2","name":"Roadster","transportMode":"road","distanceKm":1000,"weightTons":200,"totalEmissions":21.1,"annualSpend":300000},"trafficPoint":"52.5200,13.4050"}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/routes/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.RouteOptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize: got %d: %s", rr.Code, rr.Body.String())
	}
	var res model.RouteOptimizationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.SupplierID != "s2" || res.RecommendedRoute.TransportMode == "" {
		t.Fatalf("result: %+v", res)
	}
	if len(res.AlternativeRoutes) != 3 {
		t.Fatalf("alternatives: %d", len(res.AlternativeRoutes))
	}

	// bad point rejected at the boundary
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/routes/optimize",
		bytes.NewReader([]byte(`{"supplier":{"id":"s2","transportMode":"road","distanceKm":1,"weightTons":1},"trafficPoint":"nowhere"}`)))
	s.RouteOptimizeHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad point: got %d", rr.Code)
	}
}

func TestRouteOptimizeAllFromStore(t *testing.T) {
	s := newTestServer(t)
	seedSuppliers(t, s)

	body := []byte(`{"trafficPoint":"52.5200,13.4050","emissionThreshold":1}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/routes/optimize-all", bytes.NewReader(body))
	s.RouteOptimizeAllHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize-all: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Results []model.RouteOptimizationResult `json:"results"`
		Errors  []map[string]string             `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Errors) != 0 {
		t.Fatalf("item errors: %v", resp.Errors)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected at least one improving result")
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].EmissionSavings > resp.Results[i-1].EmissionSavings {
			t.Fatal("results not sorted by savings")
		}
	}
}

func TestPortfolioOptimizeScenario(t *testing.T) {
	s := newTestServer(t)
	seedSuppliers(t, s)

	body := []byte(`{"scenario":"conservative"}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/portfolio/optimize", bytes.NewReader(body))
	s.PortfolioOptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("portfolio: got %d: %s", rr.Code, rr.Body.String())
	}
	var sol model.OptimizationSolution
	if err := json.Unmarshal(rr.Body.Bytes(), &sol); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sol.Allocations) != 2 {
		t.Fatalf("allocations: %v", sol.Allocations)
	}
	// conservative disallows supplier changes; the air supplier still gets a
	// mode switch
	for _, c := range sol.Changes {
		if c.Type == model.ChangeReplace {
			t.Fatalf("conservative scenario must not replace suppliers: %+v", c)
		}
	}
}

func TestPortfolioOptimizeBadConfig(t *testing.T) {
	s := newTestServer(t)
	seedSuppliers(t, s)
	body := []byte(`{"config":{"carbonWeight":-1,"costWeight":0.3,"timeWeight":0.1}}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/portfolio/optimize", bytes.NewReader(body))
	s.PortfolioOptimizeHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad config: got %d", rr.Code)
	}
}

func TestTrafficSnapshotHandler(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.TrafficSnapshotHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/traffic/snapshot?point=52.5200,13.4050&baseDurationMin=120", nil))
	if rr.Code != 200 {
		t.Fatalf("snapshot: got %d: %s", rr.Code, rr.Body.String())
	}
	var snap model.TrafficSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.CongestionFactor < 1.0 || snap.Band == "" {
		t.Fatalf("snapshot: %+v", snap)
	}

	rr = httptest.NewRecorder()
	s.TrafficSnapshotHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/traffic/snapshot?point=bogus", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad point: got %d", rr.Code)
	}
}

func TestPredictHandlerFallback(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"vehicle_type":"truck","route_type":"highway","distance_km":100}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader(body))
	s.PredictHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("predict: got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		EmissionKg float64 `json:"predicted_emission_kgco2e"`
		Estimated  bool    `json:"estimated"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EmissionKg != 85 || !resp.Estimated {
		t.Fatalf("fallback estimate: %+v", resp)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/predict", bytes.NewReader([]byte(`{"distance_km":0}`)))
	s.PredictHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero distance: got %d", rr.Code)
	}
}

func TestAgentStatusAndActions(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.AgentHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/agent/status", nil))
	if rr.Code != 200 {
		t.Fatalf("status: got %d", rr.Code)
	}
	var st struct {
		Running bool `json:"running"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &st)
	if st.Running {
		t.Fatal("agent should start stopped")
	}

	rr = httptest.NewRecorder()
	s.ActionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/agent/actions", nil))
	if rr.Code != 200 {
		t.Fatalf("actions: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.ActionsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/actions/nope/approve", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("approve missing: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.AgentHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/agent/history", nil))
	if rr.Code != 200 {
		t.Fatalf("history: got %d", rr.Code)
	}
}

func TestAgentStartStopEndpoints(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.AgentHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/start", nil))
	if rr.Code != 200 {
		t.Fatalf("start: got %d", rr.Code)
	}
	// starting twice conflicts
	rr = httptest.NewRecorder()
	s.AgentHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/start", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("double start: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.AgentHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/stop", nil))
	if rr.Code != 200 {
		t.Fatalf("stop: got %d", rr.Code)
	}
}
