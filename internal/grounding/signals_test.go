package grounding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/promo-cli/internal/model"
	"github.com/sells-group/promo-cli/pkg/webscout"
)

// fakeProvider returns canned results, or an error, per query.
type fakeProvider struct {
	name    string
	results []webscout.Result
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, _ string) ([]webscout.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func flipProduct() model.Product {
	return model.Product{
		Name:     "Galaxy Z Flip7",
		Body:     "Foldable phone with AI camera.",
		Keywords: []string{"foldable", "AI camera"},
		Language: "en",
	}
}

func TestFetchSignals_MergesAndRanks(t *testing.T) {
	p := &fakeProvider{
		name: "prov-a",
		results: []webscout.Result{
			{Title: "Galaxy Z Flip7 | Official", URL: "https://galaxy.example/flip7"},
			{Title: "Flip7 thread", URL: "https://reddit.com/r/phones/1"},
			{Title: "Random blog", URL: "https://blog.example/post"},
		},
	}

	ev := FetchSignals(context.Background(), []webscout.Provider{p}, flipProduct())

	require.NotEmpty(t, ev.Signals)
	require.NotEmpty(t, ev.Docs)
	assert.NotEmpty(t, ev.Queries)

	for i := 1; i < len(ev.Signals); i++ {
		assert.GreaterOrEqual(t, ev.Signals[i-1].Score, ev.Signals[i].Score,
			"signals must be ranked descending by score")
	}
	assert.LessOrEqual(t, len(ev.Signals), maxSignals)
}

func TestFetchSignals_SwallowsProviderFailures(t *testing.T) {
	broken := &fakeProvider{name: "broken", err: errors.New("connection refused")}
	working := &fakeProvider{
		name:    "working",
		results: []webscout.Result{{Title: "ok", URL: "https://ok.example"}},
	}

	ev := FetchSignals(context.Background(), []webscout.Provider{broken, working}, flipProduct())

	require.NotEmpty(t, ev.Signals, "working provider results must survive a sibling failure")
}

func TestFetchSignals_AllProvidersFail(t *testing.T) {
	broken := &fakeProvider{name: "broken", err: errors.New("timeout")}

	ev := FetchSignals(context.Background(), []webscout.Provider{broken}, flipProduct())

	assert.Empty(t, ev.Signals)
	assert.Empty(t, ev.Docs)
}

func TestFetchSignals_DeduplicatesURLs(t *testing.T) {
	// Both providers return the same URL; it must appear once.
	r := []webscout.Result{{Title: "same", URL: "https://same.example"}}
	a := &fakeProvider{name: "a", results: r}
	b := &fakeProvider{name: "b", results: r}

	ev := FetchSignals(context.Background(), []webscout.Provider{a, b}, flipProduct())

	require.Len(t, ev.Docs, 1)
}

func TestClassifyTier(t *testing.T) {
	tests := []struct {
		url  string
		want model.SourceTier
	}{
		{"https://www.galaxy.example/flip7", model.TierOfficial},
		{"https://reddit.com/r/phones/1", model.TierCommunity},
		{"https://old.reddit.com/r/phones/1", model.TierCommunity},
		{"https://www.youtube.com/watch?v=x", model.TierCommunity},
		{"https://someblog.example/post", model.TierOther},
		{"not a url", model.TierOther},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTier(tt.url, "Galaxy Z Flip7"))
		})
	}
}

func TestSignalScore_PrefersEarlierAndOfficial(t *testing.T) {
	assert.Greater(t, signalScore(0, model.TierOfficial), signalScore(1, model.TierOfficial))
	assert.Greater(t, signalScore(0, model.TierOfficial), signalScore(0, model.TierOther))
	assert.GreaterOrEqual(t, signalScore(100, model.TierOther), 0.0)
}
