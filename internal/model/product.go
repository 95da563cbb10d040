// Package model defines the core domain types shared across the generation
// pipeline: product inputs, run and stage state, grounding evidence, and
// quality-score breakdowns.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Product holds the raw inputs a generation request is built from.
type Product struct {
	Name     string   `json:"name"`
	Body     string   `json:"body"`
	Keywords []string `json:"keywords,omitempty"`
	Language string   `json:"language"`
}

// GenerateRequest is the public request contract for one pipeline run.
type GenerateRequest struct {
	ProductName string   `json:"product_name"`
	ContentBody string   `json:"content_body"`
	Keywords    []string `json:"keywords,omitempty"`
	Language    string   `json:"language"`
	Variant     string   `json:"pipeline_variant,omitempty"`
	Regenerate  bool     `json:"regenerate,omitempty"`
}

// Validate checks required fields. Called before the pipeline starts so
// malformed requests are rejected cheaply and synchronously.
func (r GenerateRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.ProductName) == "" {
		missing = append(missing, "product_name")
	}
	if strings.TrimSpace(r.ContentBody) == "" {
		missing = append(missing, "content_body")
	}
	if strings.TrimSpace(r.Language) == "" {
		missing = append(missing, "language")
	}
	if len(missing) > 0 {
		return eris.Errorf("model: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Product converts the request into the internal product input.
func (r GenerateRequest) Product() Product {
	return Product{
		Name:     strings.TrimSpace(r.ProductName),
		Body:     r.ContentBody,
		Keywords: r.Keywords,
		Language: strings.TrimSpace(r.Language),
	}
}

// GenerateResponse is the public response contract for one pipeline run.
type GenerateResponse struct {
	RunID     string                      `json:"run_id"`
	Status    RunStatus                   `json:"status"`
	Stages    map[StageID]StagePayload    `json:"stages"`
	Grounding *GroundingReport            `json:"grounding,omitempty"`
	Score     *ScoreReport                `json:"score,omitempty"`
	CacheHit  bool                        `json:"cache_hit"`
	CacheTier string                      `json:"cache_tier,omitempty"`
}

// StagePayload is the per-stage slice of a GenerateResponse.
type StagePayload struct {
	Status   StageStatus  `json:"status"`
	Output   *StageOutput `json:"output,omitempty"`
	Error    string       `json:"error,omitempty"`
	Fallback bool         `json:"fallback,omitempty"`
}
