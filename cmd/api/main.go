package main

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carbonroute/internal/api"
	"carbonroute/internal/buildinfo"
	"carbonroute/internal/metrics"
)

func main() {
	_ = godotenv.Load()
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Suppliers
	mux.HandleFunc("/v1/suppliers", srvDeps.SuppliersHandler)

	// Optimization
	mux.HandleFunc("/v1/routes/optimize", srvDeps.RouteOptimizeHandler)
	mux.HandleFunc("/v1/routes/optimize-all", srvDeps.RouteOptimizeAllHandler)
	mux.HandleFunc("/v1/portfolio/optimize", srvDeps.PortfolioOptimizeHandler)

	// Traffic
	mux.HandleFunc("/v1/traffic/snapshot", srvDeps.TrafficSnapshotHandler)
	mux.HandleFunc("/v1/traffic/stream", srvDeps.TrafficStreamHandler)

	// Prediction
	mux.HandleFunc("/v1/predict", srvDeps.PredictHandler)

	// Agent control and approvals
	mux.HandleFunc("/v1/agent/start", srvDeps.AgentHandler)
	mux.HandleFunc("/v1/agent/stop", srvDeps.AgentHandler)
	mux.HandleFunc("/v1/agent/status", srvDeps.AgentHandler)
	mux.HandleFunc("/v1/agent/history", srvDeps.AgentHandler)
	mux.HandleFunc("/v1/agent/actions", srvDeps.ActionsHandler)
	mux.HandleFunc("/v1/agent/actions/", srvDeps.ActionsHandler)
	mux.HandleFunc("/v1/agent/events/stream", srvDeps.AgentEventsHandler)

	// Health
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"` + buildinfo.Version + `"}`))
	})

	// Metrics
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(metricsMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s (version %s)", addr, buildinfo.Version)
	if os.Getenv("AGENT_AUTOSTART") == "true" {
		if err := srvDeps.Agent.Start(); err != nil {
			log.Printf("agent autostart failed: %v", err)
		}
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// SSE and WebSocket handlers need the raw writer for flushing/hijacking.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}
