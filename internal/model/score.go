package model

// DimensionScore is one raw quality measurement on its own scale,
// e.g. 17 out of a 20-point completeness scale.
type DimensionScore struct {
	Metric string  `json:"metric"`
	Label  string  `json:"label"`
	Raw    float64 `json:"raw"`
	Max    float64 `json:"max"`
}

// ScoreBreakdownEntry is one dimension's contribution to the final score.
// Weights across all entries for one run sum to 1.0 within epsilon.
type ScoreBreakdownEntry struct {
	Metric        string  `json:"metric"`
	Label         string  `json:"label"`
	RawScore      float64 `json:"raw_score"` // normalized to [0,1]
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
	Contribution  float64 `json:"contribution_pct"`
}

// ScoreReport is the composite quality score for a run.
type ScoreReport struct {
	FinalScore    int                   `json:"final_score"` // 0-100
	Breakdown     []ScoreBreakdownEntry `json:"breakdown"`
	WeightsSource string                `json:"weights_source"`
	LegacyScore   float64               `json:"legacy_score,omitempty"`
}
