package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-cli/internal/model"
)

func sampleDimensions() []model.DimensionScore {
	return []model.DimensionScore{
		{Metric: MetricCompleteness, Label: "Completeness", Raw: 18, Max: 20},
		{Metric: MetricGrounding, Label: "Grounding", Raw: 20, Max: 25},
		{Metric: MetricKeywordCoverage, Label: "Keyword coverage", Raw: 15, Max: 20},
		{Metric: MetricStructure, Label: "Structure", Raw: 12, Max: 15},
		{Metric: MetricFreshness, Label: "Freshness", Raw: 8, Max: 15},
	}
}

func TestScore_WeightedComposite(t *testing.T) {
	report, err := Score(sampleDimensions(), DefaultProfile())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.FinalScore, 0)
	assert.LessOrEqual(t, report.FinalScore, 100)
	require.Len(t, report.Breakdown, 5)

	var weightSum, weightedSum, contribSum float64
	for _, e := range report.Breakdown {
		assert.GreaterOrEqual(t, e.RawScore, 0.0)
		assert.LessOrEqual(t, e.RawScore, 1.0)
		assert.InDelta(t, e.RawScore*e.Weight, e.WeightedScore, 1e-9)
		weightSum += e.Weight
		weightedSum += e.WeightedScore
		contribSum += e.Contribution
	}
	assert.InDelta(t, 1.0, weightSum, weightEpsilon)
	assert.InDelta(t, 100.0, contribSum, 1e-6)
	assert.Equal(t, int(math.Round(weightedSum*100)), report.FinalScore)
}

func TestScore_PerfectDimensionsScoreHundred(t *testing.T) {
	dims := []model.DimensionScore{
		{Metric: MetricCompleteness, Raw: 20, Max: 20},
		{Metric: MetricGrounding, Raw: 25, Max: 25},
		{Metric: MetricKeywordCoverage, Raw: 20, Max: 20},
		{Metric: MetricStructure, Raw: 15, Max: 15},
		{Metric: MetricFreshness, Raw: 15, Max: 15},
	}
	report, err := Score(dims, DefaultProfile())
	require.NoError(t, err)
	assert.Equal(t, 100, report.FinalScore)
}

func TestScore_ZeroDimensions(t *testing.T) {
	dims := []model.DimensionScore{
		{Metric: MetricCompleteness, Raw: 0, Max: 20},
		{Metric: MetricGrounding, Raw: 0, Max: 25},
	}
	report, err := Score(dims, DefaultProfile())
	require.NoError(t, err)
	assert.Equal(t, 0, report.FinalScore)
}

func TestScore_LegacyScoreOnlyForDefaultProfile(t *testing.T) {
	defaultReport, err := Score(sampleDimensions(), DefaultProfile())
	require.NoError(t, err)
	assert.InDelta(t, 73.0, defaultReport.LegacyScore, 1e-9)

	tuned := DefaultProfile()
	tuned.Source = SourceStore
	tunedReport, err := Score(sampleDimensions(), tuned)
	require.NoError(t, err)
	assert.Zero(t, tunedReport.LegacyScore)
}

func TestScore_RejectsInvalidProfile(t *testing.T) {
	bad := WeightProfile{
		Name:    "bad",
		Source:  SourceStore,
		Weights: map[string]float64{MetricCompleteness: 0.9, MetricGrounding: 0.5},
	}
	_, err := Score(sampleDimensions(), bad)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultProfile()))

	assert.Error(t, Validate(WeightProfile{Name: "empty"}))
	assert.Error(t, Validate(WeightProfile{
		Weights: map[string]float64{"a": 0.5, "b": 0.6},
	}))
	assert.Error(t, Validate(WeightProfile{
		Weights: map[string]float64{"a": -0.2, "b": 1.2},
	}))

	// Within epsilon is fine.
	assert.NoError(t, Validate(WeightProfile{
		Weights: map[string]float64{"a": 0.5004, "b": 0.5},
	}))
}

func TestNormalize(t *testing.T) {
	p, err := Normalize(WeightProfile{
		Name:    "lopsided",
		Weights: map[string]float64{"a": 2, "b": 2},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Weights["a"], 1e-9)
	assert.NoError(t, Validate(p))

	_, err = Normalize(WeightProfile{Weights: map[string]float64{"a": 0}})
	assert.Error(t, err)

	_, err = Normalize(WeightProfile{Weights: map[string]float64{"a": -1, "b": 2}})
	assert.Error(t, err)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: launch
weights:
  completeness: 0.4
  grounding: 0.3
  keyword_coverage: 0.3
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "launch", p.Name)
	assert.Equal(t, SourceFile, p.Source)
	assert.NoError(t, Validate(p))
}

func TestLoadProfile_RenormalizesLooseWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: loose
weights:
  completeness: 2
  grounding: 2
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(p))
	assert.InDelta(t, 0.5, p.Weights["completeness"], 1e-9)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
