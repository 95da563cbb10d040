// Package engine provides the text-generation engine client used by the
// pipeline. The pipeline composes stage inputs; the engine returns raw
// text and fails with classifiable errors on transient problems.
package engine

import (
	"context"

	"go.uber.org/zap"
)

// Client defines the generation operations used by the pipeline.
type Client interface {
	// Generate runs one generation call for a stage and returns the raw
	// text output plus token usage.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a single generation call.
type Request struct {
	Stage       string
	Model       string
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
}

// Response is the engine output for one call.
type Response struct {
	Text       string
	Model      string
	StopReason string
	Usage      Usage
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// EstimateCost computes an estimated cost in USD for a model. Returns 0 for
// unknown models.
func (u Usage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)/1e6)*pricing[0] + (float64(u.OutputTokens)/1e6)*pricing[1]
}

// LogCost logs token usage and estimated cost with structured fields.
func (u Usage) LogCost(model, stage string) {
	zap.L().Debug("cost attribution",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
