package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"carbonroute/internal/model"
	"carbonroute/internal/opt"
	"carbonroute/internal/predict"
	"carbonroute/internal/store"
)

// SuppliersHandler handles POST/GET /v1/suppliers
func (s *Server) SuppliersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Suppliers []model.Supplier `json:"suppliers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSuppliers(req.Suppliers); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid suppliers", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.UpsertSuppliers(r.Context(), req.Suppliers)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Upsert suppliers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"upserted": n})
	case http.MethodGet:
		items, err := s.Store.ListSuppliers(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List suppliers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RouteOptimizeHandler handles POST /v1/routes/optimize
func (s *Server) RouteOptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Supplier        model.Supplier `json:"supplier"`
		TrafficPoint    string         `json:"trafficPoint"`
		BaseDurationMin float64        `json:"baseDurationMin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSupplier(req.Supplier); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid supplier", err.Error(), r.URL.Path)
		return
	}
	if err := validatePoint(req.TrafficPoint); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid traffic point", err.Error(), r.URL.Path)
		return
	}
	if req.BaseDurationMin <= 0 {
		req.BaseDurationMin = req.Supplier.DistanceKm // free-flow at 60 km/h
	}
	res, err := s.Optimizer.Optimize(r.Context(), req.Supplier, req.TrafficPoint, req.BaseDurationMin)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RouteOptimizeAllHandler handles POST /v1/routes/optimize-all
func (s *Server) RouteOptimizeAllHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Suppliers         []model.Supplier `json:"suppliers,omitempty"`
		TrafficPoint      string           `json:"trafficPoint"`
		EmissionThreshold float64          `json:"emissionThreshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if len(req.Suppliers) == 0 {
		var err error
		req.Suppliers, err = s.Store.ListSuppliers(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List suppliers failed", err.Error(), r.URL.Path)
			return
		}
	}
	if err := validateSuppliers(req.Suppliers); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid suppliers", err.Error(), r.URL.Path)
		return
	}
	if err := validatePoint(req.TrafficPoint); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid traffic point", err.Error(), r.URL.Path)
		return
	}
	results, itemErrs := s.Optimizer.OptimizeAll(r.Context(), req.Suppliers, req.TrafficPoint, req.EmissionThreshold)
	errsOut := make([]map[string]string, 0, len(itemErrs))
	for _, e := range itemErrs {
		errsOut = append(errsOut, map[string]string{"supplierId": e.SupplierID, "error": e.Err.Error()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "errors": errsOut})
}

// PortfolioOptimizeHandler handles POST /v1/portfolio/optimize
func (s *Server) PortfolioOptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Suppliers []model.Supplier     `json:"suppliers,omitempty"`
		Scenario  string               `json:"scenario,omitempty"`
		Config    *opt.PortfolioConfig `json:"config,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if len(req.Suppliers) == 0 {
		var err error
		req.Suppliers, err = s.Store.ListSuppliers(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List suppliers failed", err.Error(), r.URL.Path)
			return
		}
	}
	if err := validateSuppliers(req.Suppliers); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid suppliers", err.Error(), r.URL.Path)
		return
	}
	cfg := opt.DefaultPortfolioConfig()
	if req.Scenario != "" {
		if preset, ok := s.Presets[opt.Scenario(req.Scenario)]; ok {
			cfg = preset
		} else {
			cfg = opt.PresetConfig(opt.Scenario(req.Scenario))
		}
	}
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := validatePortfolioConfig(cfg); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid config", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, opt.OptimizePortfolio(req.Suppliers, cfg))
}

// TrafficSnapshotHandler handles GET /v1/traffic/snapshot
func (s *Server) TrafficSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	point := r.URL.Query().Get("point")
	if err := validatePoint(point); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid point", err.Error(), r.URL.Path)
		return
	}
	baseDur := 60.0
	if v := r.URL.Query().Get("baseDurationMin"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			baseDur = f
		}
	}
	snap, err := s.Traffic.GetSnapshot(r.Context(), point, baseDur)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Snapshot failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PredictHandler handles POST /v1/predict
func (s *Server) PredictHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req predict.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.DistanceKm <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "distance_km must be > 0", r.URL.Path)
		return
	}
	resp, err := s.Predictor.Predict(r.Context(), req)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Prediction failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AgentHandler handles /v1/agent/{start,stop,status,history}
func (s *Server) AgentHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/agent/start" && r.Method == http.MethodPost:
		if err := s.Agent.Start(); err != nil {
			writeProblem(w, http.StatusConflict, "Agent start failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, s.Agent.Status())
	case r.URL.Path == "/v1/agent/stop" && r.Method == http.MethodPost:
		s.Agent.Stop()
		writeJSON(w, http.StatusOK, s.Agent.Status())
	case r.URL.Path == "/v1/agent/status" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.Agent.Status())
	case r.URL.Path == "/v1/agent/history" && r.Method == http.MethodGet:
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, err := s.Store.ListHistory(r.Context(), limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List history failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// ActionsHandler handles GET /v1/agent/actions and
// POST /v1/agent/actions/{id}/approve|reject
func (s *Server) ActionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/agent/actions" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items, err := s.Store.ListPendingActions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List actions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/agent/actions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || r.Method != http.MethodPost {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id, verb := parts[0], parts[1]
	var err error
	switch verb {
	case "approve":
		err = s.Agent.Approve(r.Context(), id)
	case "reject":
		err = s.Agent.Reject(r.Context(), id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if err != nil {
		status := http.StatusConflict
		if err == store.ErrNotFound {
			status = http.StatusNotFound
		}
		writeProblem(w, status, "Transition failed", err.Error(), r.URL.Path)
		return
	}
	act, getErr := s.Store.GetAction(r.Context(), id)
	if getErr != nil {
		// rejected actions move straight to history
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "rejected"})
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListSuppliers(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
