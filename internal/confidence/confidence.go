// Package confidence normalizes heterogeneous evidence (data source,
// completeness, model accuracy, recency) into a 0..1 score with a band.
package confidence

import (
	"fmt"

	"carbonroute/internal/model"
)

// Source identifies where an input value came from.
type Source string

const (
	SourceUser      Source = "user"
	SourceAPI       Source = "api"
	SourceEstimated Source = "estimated"
)

// Input carries the evidence for one score. ModelAccuracy and DataAgeDays
// are optional; nil means the term is not available and contributes nothing.
type Input struct {
	Source        Source
	Completeness  float64 // 0..1
	ModelAccuracy *float64
	DataAgeDays   *float64
}

// BandFor is the shared deterministic score-to-band mapping.
func BandFor(score float64) model.ConfidenceBand {
	switch {
	case score >= 0.8:
		return model.ConfidenceHigh
	case score >= 0.6:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func sourceWeight(s Source) float64 {
	switch s {
	case SourceUser:
		return 0.4
	case SourceAPI:
		return 0.3
	default:
		return 0.1
	}
}

func qualityFor(s Source) model.DataQuality {
	switch s {
	case SourceUser:
		return model.QualityPrimary
	case SourceAPI:
		return model.QualitySecondary
	default:
		return model.QualityEstimated
	}
}

// Calculate builds a ConfidenceScore as a weighted sum clamped to [0,1].
func Calculate(in Input) model.ConfidenceScore {
	score := sourceWeight(in.Source)
	factors := []string{fmt.Sprintf("%s-provided data", in.Source)}

	score += in.Completeness * 0.3
	factors = append(factors, fmt.Sprintf("completeness %.0f%%", in.Completeness*100))

	if in.ModelAccuracy != nil {
		score += *in.ModelAccuracy * 0.2
		factors = append(factors, fmt.Sprintf("model accuracy %.0f%%", *in.ModelAccuracy*100))
	}
	if in.DataAgeDays != nil {
		freshness := 1 - *in.DataAgeDays/365
		if freshness < 0 {
			freshness = 0
		}
		score += freshness * 0.1
		factors = append(factors, fmt.Sprintf("data age %.0f days", *in.DataAgeDays))
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return model.ConfidenceScore{
		Score:       score,
		Band:        BandFor(score),
		Factors:     factors,
		DataQuality: qualityFor(in.Source),
	}
}

func qualityRank(q model.DataQuality) int {
	switch q {
	case model.QualityPrimary:
		return 3
	case model.QualitySecondary:
		return 2
	default:
		return 1
	}
}

// Aggregate combines scores: arithmetic mean of the numeric scores, set-union
// of factors, and the highest-ranked data quality among inputs. An empty
// input yields a defined zero-confidence result rather than an error.
// Aggregation of a single score is identity in score, band and quality.
func Aggregate(scores []model.ConfidenceScore) model.ConfidenceScore {
	if len(scores) == 0 {
		return model.ConfidenceScore{
			Score:       0,
			Band:        model.ConfidenceLow,
			Factors:     []string{"no confidence inputs"},
			DataQuality: model.QualityEstimated,
		}
	}

	sum := 0.0
	best := scores[0].DataQuality
	anyEstimated := false
	seen := map[string]bool{}
	var factors []string
	for _, s := range scores {
		sum += s.Score
		if qualityRank(s.DataQuality) > qualityRank(best) {
			best = s.DataQuality
		}
		if s.DataQuality == model.QualityEstimated {
			anyEstimated = true
		}
		for _, f := range s.Factors {
			if !seen[f] {
				seen[f] = true
				factors = append(factors, f)
			}
		}
	}
	if anyEstimated && len(scores) > 1 {
		// conservative labeling when any contributing input was estimated
		factors = append(factors, "includes estimated inputs")
	}

	mean := sum / float64(len(scores))
	return model.ConfidenceScore{
		Score:       mean,
		Band:        BandFor(mean),
		Factors:     factors,
		DataQuality: best,
	}
}
