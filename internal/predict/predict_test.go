package predict

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFallbackFactors(t *testing.T) {
	fb := Fallback{}
	cases := []struct {
		vehicle, route string
		distance       float64
		wantKg         float64
	}{
		{"truck", "highway", 100, 85},
		{"van", "urban", 100, 45.5},
		{"bike", "mixed", 50, 0},
		{"TRUCK", "Highway", 100, 85},          // case-insensitive
		{"hovercraft", "highway", 100, 85},     // unknown vehicle defaults to truck
		{"truck", "scenic", 100, 85 * 1.15},    // unknown route defaults to mixed
	}
	for _, c := range cases {
		got, err := fb.Predict(context.Background(), Request{
			VehicleType: c.vehicle, RouteType: c.route, DistanceKm: c.distance,
		})
		if err != nil {
			t.Fatalf("%s/%s: %v", c.vehicle, c.route, err)
		}
		if math.Abs(got.EmissionKg-c.wantKg) > 1e-9 {
			t.Errorf("%s/%s: got %v kg, want %v", c.vehicle, c.route, got.EmissionKg, c.wantKg)
		}
		if math.Abs(got.EmissionTons-c.wantKg/1000) > 1e-12 {
			t.Errorf("%s/%s: tons %v", c.vehicle, c.route, got.EmissionTons)
		}
		if !got.Estimated || got.ModelVersion != FallbackVersion {
			t.Errorf("%s/%s: provenance %+v", c.vehicle, c.route, got)
		}
	}
}

func TestClientPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/predict":
			_, _ = w.Write([]byte(`{"predicted_emission_kgco2e":42.5,"predicted_emission_tons":0.0425,"model_version":"rf-1.2"}`))
		case "/predict/batch":
			_, _ = w.Write([]byte(`{"results":[{"predicted_emission_kgco2e":10},{"predicted_emission_kgco2e":20}]}`))
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok","model_loaded":true,"version":"rf-1.2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Predict(context.Background(), Request{VehicleType: "truck", DistanceKm: 50})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if resp.EmissionKg != 42.5 || resp.ModelVersion != "rf-1.2" || resp.Estimated {
		t.Fatalf("response: %+v", resp)
	}

	batch, err := c.PredictBatch(context.Background(), []Request{{DistanceKm: 1}, {DistanceKm: 2}})
	if err != nil || len(batch) != 2 || batch[1].EmissionKg != 20 {
		t.Fatalf("batch: %+v, %v", batch, err)
	}

	if !c.Healthy(context.Background()) {
		t.Fatal("healthy endpoint should report true")
	}
}

func TestChainedFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ch := NewChained(NewClient(srv.URL))
	resp, err := ch.Predict(context.Background(), Request{VehicleType: "van", RouteType: "highway", DistanceKm: 10})
	if err != nil {
		t.Fatalf("chained predict: %v", err)
	}
	if !resp.Estimated || resp.ModelVersion != FallbackVersion {
		t.Fatalf("should come from fallback: %+v", resp)
	}
	if math.Abs(resp.EmissionKg-3.5) > 1e-9 {
		t.Fatalf("fallback estimate: %v", resp.EmissionKg)
	}
}

func TestChainedNoPrimary(t *testing.T) {
	ch := NewChained(nil)
	resp, err := ch.Predict(context.Background(), Request{VehicleType: "truck", RouteType: "highway", DistanceKm: 1})
	if err != nil || !resp.Estimated {
		t.Fatalf("nil primary: %+v, %v", resp, err)
	}
	batch, err := ch.PredictBatch(context.Background(), []Request{{VehicleType: "truck", RouteType: "highway", DistanceKm: 1}})
	if err != nil || len(batch) != 1 {
		t.Fatalf("batch: %v, %v", batch, err)
	}
}
