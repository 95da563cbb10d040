package model

import "time"

// StageID identifies one unit of generation work in the dependency graph.
type StageID string

// Pipeline stages. StageSignals and StageContext fetch external evidence;
// the rest call the generation engine.
const (
	StageSignals     StageID = "signals"
	StageContext     StageID = "context"
	StageDescription StageID = "description"
	StageUSP         StageID = "usp"
	StageChapters    StageID = "chapters"
	StageFAQ         StageID = "faq"
	StageHowTo       StageID = "howto"
	StageCaseStudies StageID = "case_studies"
	StageKeywords    StageID = "keywords"
	StageHashtags    StageID = "hashtags"
)

// StageStatus is the lifecycle state of a single stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s StageStatus) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageSkipped
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunAborted   RunStatus = "aborted"
)

// StageOutput carries whatever a stage produced: free text, structured
// items, or both, plus the evidence sources it cited and token usage.
type StageOutput struct {
	Text    string            `json:"text,omitempty"`
	Items   []StageItem       `json:"items,omitempty"`
	Sources []GroundingSource `json:"sources,omitempty"`
	Queries []string          `json:"queries,omitempty"`
	Usage   TokenUsage        `json:"usage,omitempty"`
}

// StageItem is one element of a structured stage output (a FAQ entry, a
// chapter, a keyword, and so on). Unused fields stay empty.
type StageItem struct {
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Anchor string `json:"anchor,omitempty"`
}

// StageResult records the outcome of one dispatched stage. It is created
// when the stage is dispatched and written exactly once to a terminal
// status; it is never mutated after that.
type StageResult struct {
	Stage        StageID      `json:"stage"`
	Status       StageStatus  `json:"status"`
	Output       *StageOutput `json:"output,omitempty"`
	Err          string       `json:"error,omitempty"`
	Fallback     bool         `json:"fallback,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  time.Time    `json:"completed_at"`
	QualityScore float64      `json:"quality_score,omitempty"`
}

// PipelineRun is the orchestrator-owned record of one run. Read-only once
// the run reaches a terminal status.
type PipelineRun struct {
	ID          string                   `json:"id"`
	Request     GenerateRequest          `json:"request"`
	Stages      map[StageID]*StageResult `json:"stages"`
	Status      RunStatus                `json:"status"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`
	TotalTokens int64                    `json:"total_tokens"`
	TotalCost   float64                  `json:"total_cost"`
}

// TokenUsage tracks generation-engine token consumption for a stage or run.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates usage from another measurement.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns combined input and output tokens.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}
