package scoring

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-cli/internal/model"
)

// Score combines raw per-dimension scores with the profile's weights into
// a composite 0-100 score with a per-dimension breakdown. Dimensions
// without a configured weight contribute nothing; the remaining invariant
// (weights summing to 1.0) is enforced on the profile before use.
// When the profile is not from a tunable source, the legacy unweighted raw
// sum is also reported for compatibility.
func Score(raw []model.DimensionScore, profile WeightProfile) (*model.ScoreReport, error) {
	if err := Validate(profile); err != nil {
		return nil, eris.Wrap(err, "scoring: refusing invalid profile")
	}

	// Deterministic breakdown order.
	dims := make([]model.DimensionScore, len(raw))
	copy(dims, raw)
	sort.Slice(dims, func(i, j int) bool { return dims[i].Metric < dims[j].Metric })

	var weightedSum float64
	var legacySum float64
	breakdown := make([]model.ScoreBreakdownEntry, 0, len(dims))

	for _, d := range dims {
		normalized := 0.0
		if d.Max > 0 {
			normalized = clamp01(d.Raw / d.Max)
		}
		legacySum += d.Raw

		weight := profile.Weights[d.Metric]
		weighted := normalized * weight
		weightedSum += weighted

		breakdown = append(breakdown, model.ScoreBreakdownEntry{
			Metric:        d.Metric,
			Label:         d.Label,
			RawScore:      normalized,
			Weight:        weight,
			WeightedScore: weighted,
		})
	}

	if weightedSum > 0 {
		for i := range breakdown {
			breakdown[i].Contribution = breakdown[i].WeightedScore / weightedSum * 100
		}
	}

	final := int(math.Round(weightedSum * 100))
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	report := &model.ScoreReport{
		FinalScore:    final,
		Breakdown:     breakdown,
		WeightsSource: profile.Source,
	}
	if profile.Source == SourceDefault {
		report.LegacyScore = legacySum
	}
	return report, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
