package grounding

import (
	"sort"

	"github.com/sells-group/promo-cli/internal/model"
)

// Sub-score weights for the grounding-quality composite.
const (
	densityWeight   = 0.35
	authorityWeight = 0.35
	coverageWeight  = 0.30
)

// Contribution is the evidence one stage produced.
type Contribution struct {
	Stage         model.StageID
	Sources       []model.GroundingSource
	SearchQueries []string
	ContentLen    int // length of the stage's generated content
	CitedLen      int // length of the content backed by citations
}

// Aggregate merges per-stage evidence into a deduplicated, tier-ranked
// source list and computes the grounding sub-scores. totalSections is the
// number of stages that could have carried evidence. Zero sources is a
// valid outcome: every derived score is 0.
func Aggregate(contributions []Contribution, totalSections int) *model.GroundingReport {
	report := &model.GroundingReport{Sources: []model.GroundingSource{}}

	type entry struct {
		source model.GroundingSource
		seen   int // first-seen order, stable tiebreak
		stages map[model.StageID]bool
	}
	byURI := make(map[string]*entry)
	var order []string

	totalCitations := 0
	sectionsWithGrounding := 0
	totalContent := 0
	citedContent := 0

	for _, c := range contributions {
		totalContent += c.ContentLen
		citedContent += c.CitedLen
		if len(c.Sources) > 0 {
			sectionsWithGrounding++
		}
		for _, src := range c.Sources {
			if src.URI == "" {
				continue
			}
			totalCitations++
			e, ok := byURI[src.URI]
			if !ok {
				// First occurrence wins for title and tier.
				e = &entry{
					source: model.GroundingSource{URI: src.URI, Title: src.Title, Tier: src.Tier},
					seen:   len(order),
					stages: make(map[model.StageID]bool),
				}
				byURI[src.URI] = e
				order = append(order, src.URI)
			}
			e.stages[c.Stage] = true
		}
	}

	entries := make([]*entry, 0, len(byURI))
	for _, uri := range order {
		entries = append(entries, byURI[uri])
	}
	// Tier ascending; ties broken by first-seen order (stable).
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].source.Tier < entries[j].source.Tier
	})

	for _, e := range entries {
		src := e.source
		src.UsedIn = sortedStages(e.stages)
		report.Sources = append(report.Sources, src)
	}

	report.TotalCitations = totalCitations
	report.UniqueSources = len(entries)
	report.CitationDensity = clamp01(ratio(citedContent, totalContent))
	if totalSections > 0 {
		report.Coverage = clamp01(float64(sectionsWithGrounding) / float64(totalSections))
	}

	report.DensityScore = report.CitationDensity * 100
	report.AuthorityScore = authorityScore(report.Sources)
	report.CoverageScore = report.Coverage * 100
	report.Composite = densityWeight*report.DensityScore +
		authorityWeight*report.AuthorityScore +
		coverageWeight*report.CoverageScore

	return report
}

// authorityScore derives a 0-100 score from the tier mix: tier-1-heavy
// source lists score higher.
func authorityScore(sources []model.GroundingSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		switch s.Tier {
		case model.TierOfficial:
			sum += 100
		case model.TierCommunity:
			sum += 60
		default:
			sum += 30
		}
	}
	return sum / float64(len(sources))
}

func sortedStages(set map[model.StageID]bool) []model.StageID {
	out := make([]model.StageID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
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
