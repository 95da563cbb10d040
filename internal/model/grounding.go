package model

// SourceTier ranks evidence-source trustworthiness.
// Tier 1 = official/first-party, 2 = community/review, 3 = everything else.
type SourceTier int

const (
	TierOfficial  SourceTier = 1
	TierCommunity SourceTier = 2
	TierOther     SourceTier = 3
)

// GroundingSignal is one ranked market/interest signal from retrieval.
// Immutable after creation.
type GroundingSignal struct {
	Term    string  `json:"term"`
	Score   float64 `json:"score"` // 0-100
	Source  string  `json:"source,omitempty"`
	Recency string  `json:"recency,omitempty"`
}

// GroundingSource is one cited evidence source, deduplicated by URI across
// all stages that cite it.
type GroundingSource struct {
	URI    string     `json:"uri"`
	Title  string     `json:"title,omitempty"`
	Tier   SourceTier `json:"tier"`
	UsedIn []StageID  `json:"used_in,omitempty"`
}

// GroundingReport is the aggregated evidence summary for a run.
// All scores are on a 0-100 scale.
type GroundingReport struct {
	Sources         []GroundingSource `json:"sources"`
	TotalCitations  int               `json:"total_citations"`
	UniqueSources   int               `json:"unique_sources"`
	CitationDensity float64           `json:"citation_density"` // 0-1 before scaling
	Coverage        float64           `json:"coverage"`         // 0-1 before scaling
	DensityScore    float64           `json:"density_score"`
	AuthorityScore  float64           `json:"authority_score"`
	CoverageScore   float64           `json:"coverage_score"`
	Composite       float64           `json:"composite"`
}
