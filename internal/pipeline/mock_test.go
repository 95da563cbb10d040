package pipeline

import (
	"context"
	"sync"

	"github.com/sells-group/promo-cli/internal/config"
	"github.com/sells-group/promo-cli/internal/scoring"
	"github.com/sells-group/promo-cli/pkg/engine"
	"github.com/sells-group/promo-cli/pkg/webscout"
)

// --- Engine mock ---

// mockEngine records the order of stage calls and delegates to fn when set.
type mockEngine struct {
	mu    sync.Mutex
	calls []string
	fn    func(req engine.Request) (*engine.Response, error)
}

func (m *mockEngine) Generate(_ context.Context, req engine.Request) (*engine.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Stage)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(req)
	}
	return &engine.Response{
		Text:  "generated " + req.Stage,
		Model: req.Model,
		Usage: engine.Usage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func (m *mockEngine) callOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- Retrieval provider fake ---

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

// --- Shared helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			HaikuModel:  "haiku",
			SonnetModel: "sonnet",
			MaxTokens:   1024,
		},
		Pipeline: config.PipelineConfig{
			MaxAttempts:     3,
			BaseDelayMillis: 1,
		},
	}
}

func testProfile() scoring.WeightProfile {
	return scoring.DefaultProfile()
}
