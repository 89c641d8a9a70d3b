package confidence

import (
	"math"
	"testing"

	"carbonroute/internal/model"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalculateWeights(t *testing.T) {
	acc := 0.9
	age := 73.0 // freshness 0.8
	s := Calculate(Input{Source: SourceUser, Completeness: 1.0, ModelAccuracy: &acc, DataAgeDays: &age})
	// 0.4 + 0.3 + 0.18 + 0.08
	if !almostEqual(s.Score, 0.96) {
		t.Fatalf("score: got %v, want 0.96", s.Score)
	}
	if s.Band != model.ConfidenceHigh {
		t.Fatalf("band: got %s", s.Band)
	}
	if s.DataQuality != model.QualityPrimary {
		t.Fatalf("quality: got %s", s.DataQuality)
	}
}

func TestCalculateOptionalTermsOmitted(t *testing.T) {
	s := Calculate(Input{Source: SourceAPI, Completeness: 0.5})
	// 0.3 + 0.15, no accuracy or freshness terms
	if !almostEqual(s.Score, 0.45) {
		t.Fatalf("score: got %v, want 0.45", s.Score)
	}
	if s.Band != model.ConfidenceLow {
		t.Fatalf("band: got %s", s.Band)
	}
	if s.DataQuality != model.QualitySecondary {
		t.Fatalf("quality: got %s", s.DataQuality)
	}
}

func TestCalculateStaleDataFreshnessFloor(t *testing.T) {
	age := 1000.0
	s := Calculate(Input{Source: SourceEstimated, Completeness: 1.0, DataAgeDays: &age})
	// freshness clamps at 0: 0.1 + 0.3
	if !almostEqual(s.Score, 0.4) {
		t.Fatalf("score: got %v, want 0.4", s.Score)
	}
	if s.DataQuality != model.QualityEstimated {
		t.Fatalf("quality: got %s", s.DataQuality)
	}
}

func TestBandFor(t *testing.T) {
	cases := []struct {
		score float64
		want  model.ConfidenceBand
	}{
		{0.8, model.ConfidenceHigh},
		{0.79999, model.ConfidenceMedium},
		{0.6, model.ConfidenceMedium},
		{0.59999, model.ConfidenceLow},
		{0, model.ConfidenceLow},
	}
	for _, c := range cases {
		if got := BandFor(c.score); got != c.want {
			t.Errorf("BandFor(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	if s.Score != 0 || s.Band != model.ConfidenceLow || s.DataQuality != model.QualityEstimated {
		t.Fatalf("empty aggregate: %+v", s)
	}
}

func TestAggregateSingleIsIdentity(t *testing.T) {
	in := Calculate(Input{Source: SourceEstimated, Completeness: 0.7})
	out := Aggregate([]model.ConfidenceScore{in})
	if out.Score != in.Score || out.Band != in.Band || out.DataQuality != in.DataQuality {
		t.Fatalf("single aggregate not identity: in=%+v out=%+v", in, out)
	}
	if len(out.Factors) != len(in.Factors) {
		t.Fatalf("single aggregate should not add factors: %v", out.Factors)
	}
}

func TestAggregateMeanAndQuality(t *testing.T) {
	a := Calculate(Input{Source: SourceUser, Completeness: 1.0})  // 0.7, primary
	b := Calculate(Input{Source: SourceEstimated, Completeness: 0}) // 0.1, estimated
	out := Aggregate([]model.ConfidenceScore{a, b})
	if !almostEqual(out.Score, 0.4) {
		t.Fatalf("mean: got %v, want 0.4", out.Score)
	}
	if out.DataQuality != model.QualityPrimary {
		t.Fatalf("quality should be best-ranked: got %s", out.DataQuality)
	}
	found := false
	for _, f := range out.Factors {
		if f == "includes estimated inputs" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing estimated-inputs label: %v", out.Factors)
	}
}
