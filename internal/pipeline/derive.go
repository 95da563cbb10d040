package pipeline

import (
	"strings"

	"github.com/sells-group/promo-cli/internal/model"
	"github.com/sells-group/promo-cli/internal/scoring"
)

// structuredStages are expected to carry itemized output.
var structuredStages = []model.StageID{
	model.StageUSP,
	model.StageChapters,
	model.StageFAQ,
	model.StageHowTo,
	model.StageKeywords,
	model.StageHashtags,
}

// deriveDimensions measures the raw quality dimensions of a finished run.
// Each dimension is on its own scale; the scoring engine normalizes.
func deriveDimensions(run *model.PipelineRun, report *model.GroundingReport, sc *stageState) []model.DimensionScore {
	gen := generationStages()
	completed := 0
	for _, id := range gen {
		if res, ok := run.Stages[id]; ok && res.Status == model.StageCompleted {
			completed++
		}
	}

	structured := 0
	for _, id := range structuredStages {
		if res, ok := run.Stages[id]; ok && res.Output != nil && len(res.Output.Items) > 0 {
			structured++
		}
	}

	matched, totalKeywords := keywordCoverage(run, sc.product.Keywords)

	composite := 0.0
	if report != nil {
		composite = report.Composite
	}

	return []model.DimensionScore{
		{
			Metric: scoring.MetricCompleteness,
			Label:  "Stage completeness",
			Raw:    float64(completed),
			Max:    float64(len(gen)),
		},
		{
			Metric: scoring.MetricGrounding,
			Label:  "Evidence grounding",
			Raw:    composite,
			Max:    100,
		},
		{
			Metric: scoring.MetricKeywordCoverage,
			Label:  "Keyword coverage",
			Raw:    float64(matched),
			Max:    float64(totalKeywords),
		},
		{
			Metric: scoring.MetricStructure,
			Label:  "Structured output",
			Raw:    float64(structured),
			Max:    float64(len(structuredStages)),
		},
		{
			Metric: scoring.MetricFreshness,
			Label:  "Evidence freshness",
			Raw:    freshness(sc),
			Max:    1,
		},
	}
}

// keywordCoverage counts requested keywords that surface anywhere in the
// generated output. With no requested keywords coverage is full by
// definition.
func keywordCoverage(run *model.PipelineRun, keywords []string) (matched, total int) {
	if len(keywords) == 0 {
		return 1, 1
	}

	var b strings.Builder
	for _, res := range run.Stages {
		if res.Output == nil {
			continue
		}
		b.WriteString(strings.ToLower(res.Output.Text))
		b.WriteByte('\n')
		for _, it := range res.Output.Items {
			b.WriteString(strings.ToLower(it.Title))
			b.WriteByte(' ')
			b.WriteString(strings.ToLower(it.Body))
			b.WriteByte('\n')
		}
	}
	corpus := b.String()

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			total++
			continue
		}
		total++
		if strings.Contains(corpus, kw) {
			matched++
		}
	}
	return matched, total
}

// freshness is the share of retrieval signals carrying a recency hint.
func freshness(sc *stageState) float64 {
	sc.mu.Lock()
	ev := sc.evidence
	sc.mu.Unlock()
	if ev == nil || len(ev.Signals) == 0 {
		return 0
	}
	dated := 0
	for _, sig := range ev.Signals {
		if sig.Recency != "" {
			dated++
		}
	}
	return float64(dated) / float64(len(ev.Signals))
}
