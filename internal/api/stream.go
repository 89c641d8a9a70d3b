package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// AgentEventsHandler handles GET /v1/agent/events/stream (SSE). Every agent
// action transition published to the broker is forwarded to the client.
func (s *Server) AgentEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(TopicActions)
	defer s.Broker.Unsubscribe(TopicActions, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

type trafficStreamRequest struct {
	Point           string  `json:"point"`
	BaseDurationMin float64 `json:"baseDurationMin"`
	IntervalSec     int     `json:"intervalSec"`
}

// TrafficStreamHandler handles /v1/traffic/stream: WebSocket telemetry of
// congestion snapshots for a point. The client sends one JSON frame with the
// point and poll interval, then receives a snapshot per tick.
func (s *Server) TrafficStreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	var req trafficStreamRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "expected subscription frame"})
		return
	}
	if err := validatePoint(req.Point); err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	if req.BaseDurationMin <= 0 {
		req.BaseDurationMin = 60
	}
	if req.IntervalSec <= 0 {
		req.IntervalSec = 10
	}

	// Drain further client frames so pings/close are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		snap, err := s.Traffic.GetSnapshot(ctx, req.Point, req.BaseDurationMin)
		if err != nil {
			return conn.WriteJSON(map[string]string{"error": err.Error()})
		}
		s.Broker.Publish(TopicTraffic, Event{Type: "traffic.snapshot", Data: map[string]any{
			"point":            req.Point,
			"congestionFactor": snap.CongestionFactor,
			"band":             snap.Band,
		}})
		return conn.WriteJSON(snap)
	}
	if err := send(); err != nil {
		return
	}
	ticker := time.NewTicker(time.Duration(req.IntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}
