// Package pipeline orchestrates the content-generation run: it walks the
// stage dependency graph level by level, dispatches every stage of a level
// concurrently through the retry executor, aggregates grounding evidence,
// scores the result, and writes the finished payload through the hybrid
// cache.
package pipeline

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/promo-cli/internal/cache"
	"github.com/sells-group/promo-cli/internal/config"
	"github.com/sells-group/promo-cli/internal/cost"
	"github.com/sells-group/promo-cli/internal/graph"
	"github.com/sells-group/promo-cli/internal/grounding"
	"github.com/sells-group/promo-cli/internal/model"
	"github.com/sells-group/promo-cli/internal/resilience"
	"github.com/sells-group/promo-cli/internal/scoring"
	"github.com/sells-group/promo-cli/internal/store"
	"github.com/sells-group/promo-cli/pkg/engine"
	"github.com/sells-group/promo-cli/pkg/webscout"
)

// Pipeline orchestrates one generation run end to end.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	cache     *cache.Hybrid
	engine    engine.Client
	providers []webscout.Provider
	graph     *graph.Graph
	costCalc  *cost.Calculator
	profile   scoring.WeightProfile

	breakerMu sync.Mutex
	breakers  map[string]*resilience.Breaker
}

// New creates a Pipeline with all dependencies. store and cache may be nil,
// in which case run persistence and caching are disabled.
func New(
	cfg *config.Config,
	st store.Store,
	hc *cache.Hybrid,
	eng engine.Client,
	providers []webscout.Provider,
	profile scoring.WeightProfile,
) *Pipeline {
	rates := cost.DefaultRates()
	if len(cfg.Pricing.Anthropic) > 0 {
		rates.Anthropic = make(map[string]cost.ModelRate, len(cfg.Pricing.Anthropic))
		for name, p := range cfg.Pricing.Anthropic {
			rates.Anthropic[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
		}
	}
	if cfg.Pricing.Search.PerQuery > 0 {
		rates.Search.PerQuery = cfg.Pricing.Search.PerQuery
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		cache:     hc,
		engine:    eng,
		providers: providers,
		graph:     graph.Default(),
		costCalc:  cost.NewCalculator(rates),
		profile:   profile,
		breakers:  make(map[string]*resilience.Breaker),
	}
}

// breakerFor returns the circuit breaker guarding one engine model,
// creating it on first use. Stages sharing a model share its breaker, so
// sustained failures on one model family stop burning attempts on it while
// the other family keeps generating.
func (p *Pipeline) breakerFor(modelName string) *resilience.Breaker {
	p.breakerMu.Lock()
	defer p.breakerMu.Unlock()
	br, ok := p.breakers[modelName]
	if !ok {
		cfg := resilience.DefaultBreakerConfig()
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("pipeline: engine circuit state change",
				zap.String("model", modelName),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
		br = resilience.NewBreaker(cfg)
		p.breakers[modelName] = br
	}
	return br
}

// Run executes the full pipeline for one request. A repeat request with the
// same normalized inputs is served from the cache unless regeneration was
// asked for.
func (p *Pipeline) Run(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product := req.Product()
	log := zap.L().With(zap.String("product", product.Name))

	key := cache.Fingerprint(req)
	if !req.Regenerate && p.cache != nil {
		value, tier, ok, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("pipeline: cache read failed", zap.Error(err))
		case ok:
			var resp model.GenerateResponse
			if err := json.Unmarshal(value, &resp); err != nil {
				log.Warn("pipeline: discarding corrupt cache entry", zap.Error(err))
			} else {
				resp.CacheHit = true
				resp.CacheTier = tier
				log.Info("pipeline: served from cache", zap.String("tier", tier))
				return &resp, nil
			}
		}
	}

	run := p.newRun(req)
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run")

	if p.store != nil {
		if err := p.store.CreateRun(ctx, run.ID, product.Name); err != nil {
			log.Warn("pipeline: create run record failed", zap.Error(err))
		}
	}

	sc := &stageState{
		product: product,
		results: run.Stages,
	}

	aborted := p.executeLevels(ctx, sc)

	run.Status = deriveStatus(run.Stages, aborted)
	run.CompletedAt = time.Now().UTC()

	resp := p.assemble(run, sc)

	if p.store != nil {
		if payload, err := json.Marshal(resp); err == nil {
			if err := p.store.SaveRunResult(ctx, run.ID, run.Status, payload); err != nil {
				log.Warn("pipeline: save run result failed", zap.Error(err))
			}
		}
	}

	if run.Status == model.RunCompleted && !req.Regenerate && p.cache != nil {
		if payload, err := json.Marshal(resp); err == nil {
			if err := p.cache.Set(ctx, key, payload); err != nil {
				log.Warn("pipeline: cache write failed", zap.Error(err))
			}
		}
	}

	log.Info("pipeline: run finished",
		zap.String("status", string(run.Status)),
		zap.Int64("total_tokens", run.TotalTokens),
		zap.Float64("total_cost", run.TotalCost),
	)

	if run.Status == model.RunFailed {
		return resp, eris.New("pipeline: no generation stage completed")
	}
	return resp, nil
}

func (p *Pipeline) newRun(req model.GenerateRequest) *model.PipelineRun {
	run := &model.PipelineRun{
		ID:        uuid.New().String(),
		Request:   req,
		Stages:    make(map[model.StageID]*model.StageResult, len(p.graph.Stages())),
		Status:    model.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	for _, id := range p.graph.Stages() {
		run.Stages[id] = &model.StageResult{Stage: id, Status: model.StagePending}
	}
	return run
}

// executeLevels walks the graph level by level with a barrier between
// levels. Returns true when cancellation actually cut stages short; a
// cancel arriving after every stage finished does not abort the run.
func (p *Pipeline) executeLevels(ctx context.Context, sc *stageState) bool {
	for _, level := range p.graph.Levels() {
		if ctx.Err() != nil {
			break
		}
		var g errgroup.Group
		for _, id := range level {
			id := id
			g.Go(func() error {
				p.runStage(ctx, sc, id)
				return nil
			})
		}
		// Stage failures are recorded per slot and never propagate here.
		_ = g.Wait()
	}

	aborted := false
	if ctx.Err() != nil {
		now := time.Now().UTC()
		for _, res := range sc.results {
			if res.Status == model.StageSkipped && res.Err == "run aborted" {
				aborted = true
			}
			if !res.Status.Terminal() {
				res.Status = model.StageSkipped
				res.Err = "run aborted"
				res.CompletedAt = now
				aborted = true
			}
		}
	}
	return aborted
}

// runStage executes one stage into its own result slot.
func (p *Pipeline) runStage(ctx context.Context, sc *stageState, id model.StageID) {
	res := sc.results[id]
	res.StartedAt = time.Now().UTC()

	for _, dep := range p.graph.DependsOn(id) {
		if depRes := sc.results[dep]; depRes.Status != model.StageCompleted {
			res.Status = model.StageSkipped
			res.Err = "dependency " + string(dep) + " " + string(depRes.Status)
			res.CompletedAt = time.Now().UTC()
			return
		}
	}
	if ctx.Err() != nil {
		res.Status = model.StageSkipped
		res.Err = "run aborted"
		res.CompletedAt = time.Now().UTC()
		return
	}

	res.Status = model.StageRunning

	var out *model.StageOutput
	var err error
	switch id {
	case model.StageSignals:
		out = p.runSignals(ctx, sc)
	case model.StageContext:
		out = p.runContext(ctx, sc)
	default:
		out, err = p.runGeneration(ctx, sc, id)
	}

	res.CompletedAt = time.Now().UTC()
	if err != nil {
		res.Status = model.StageFailed
		res.Err = err.Error()
		res.Fallback = true
		if def, ok := stageDefs[id]; ok {
			res.Output = def.fallback(sc)
		}
		zap.L().Error("pipeline: stage failed",
			zap.String("stage", string(id)),
			zap.Error(err),
		)
		return
	}
	res.Status = model.StageCompleted
	res.Output = out
	res.QualityScore = stageQuality(out)
	zap.L().Debug("pipeline: stage complete",
		zap.String("stage", string(id)),
		zap.Duration("elapsed", res.CompletedAt.Sub(res.StartedAt)),
	)
}

// runSignals fetches ranked grounding signals. Retrieval is best-effort and
// never fails the stage.
func (p *Pipeline) runSignals(ctx context.Context, sc *stageState) *model.StageOutput {
	ev := grounding.FetchSignals(ctx, p.providers, sc.product)
	sc.setEvidence(ev)

	out := &model.StageOutput{Queries: ev.Queries}
	for _, sig := range ev.Signals {
		out.Items = append(out.Items, model.StageItem{Title: sig.Term})
	}
	for _, d := range ev.Docs {
		out.Sources = append(out.Sources, model.GroundingSource{
			URI:    d.URL,
			Title:  d.Title,
			Tier:   d.Tier,
			UsedIn: []model.StageID{model.StageSignals},
		})
	}
	return out
}

// runContext fetches background documents the generation stages can cite.
func (p *Pipeline) runContext(ctx context.Context, sc *stageState) *model.StageOutput {
	queries := []string{
		sc.product.Name + " overview",
		sc.product.Name + " specifications",
	}

	seen := make(map[string]bool)
	var docs []grounding.Doc
	for _, provider := range p.providers {
		for _, q := range queries {
			results, err := provider.Search(ctx, q)
			if err != nil {
				zap.L().Warn("pipeline: context fetch failed",
					zap.String("provider", provider.Name()),
					zap.String("query", q),
					zap.Error(err),
				)
				continue
			}
			for _, r := range results {
				if r.URL == "" || seen[r.URL] {
					continue
				}
				seen[r.URL] = true
				docs = append(docs, grounding.Doc{
					Title:   r.Title,
					URL:     r.URL,
					Snippet: r.Snippet,
					Tier:    grounding.ClassifyTier(r.URL, sc.product.Name),
				})
			}
		}
	}
	sc.setContext(docs)

	out := &model.StageOutput{Queries: queries}
	for _, d := range docs {
		out.Sources = append(out.Sources, model.GroundingSource{
			URI:    d.URL,
			Title:  d.Title,
			Tier:   d.Tier,
			UsedIn: []model.StageID{model.StageContext},
		})
	}
	return out
}

// runGeneration executes one engine-backed stage through the retry executor.
func (p *Pipeline) runGeneration(ctx context.Context, sc *stageState, id model.StageID) (*model.StageOutput, error) {
	def, ok := stageDefs[id]
	if !ok {
		return nil, eris.Errorf("pipeline: no definition for stage %s", id)
	}

	opts := resilience.DefaultRetryOptions()
	if p.cfg.Pipeline.MaxAttempts > 0 {
		opts.MaxAttempts = p.cfg.Pipeline.MaxAttempts
	}
	if p.cfg.Pipeline.BaseDelayMillis > 0 {
		opts.BaseDelay = time.Duration(p.cfg.Pipeline.BaseDelayMillis) * time.Millisecond
	}
	opts.OnRetry = resilience.RetryLogger("engine", string(id))

	callCtx := ctx
	if p.cfg.Pipeline.StageTimeoutSecs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.Pipeline.StageTimeoutSecs)*time.Second)
		defer cancel()
	}

	modelName := def.model(p.cfg.Anthropic)

	// The breaker wraps the whole retried call: one exhausted stage counts
	// as one failure against its model's circuit.
	resp, err := resilience.CallVal(callCtx, p.breakerFor(modelName), func(ctx context.Context) (*engine.Response, error) {
		return resilience.ExecuteVal(ctx, opts, func(ctx context.Context) (*engine.Response, error) {
			return p.engine.Generate(ctx, engine.Request{
				Stage:     string(id),
				Model:     modelName,
				System:    def.system,
				Prompt:    def.prompt(sc),
				MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
			})
		})
	})
	if err != nil {
		return nil, err
	}

	out := def.parse(resp.Text)
	out.Usage = model.TokenUsage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	out.Sources = citedSources(resp.Text, sc.docs(), id)
	resp.Usage.LogCost(resp.Model, string(id))
	return out, nil
}

// citedSources resolves [n] citation markers in the generated text against
// the numbered evidence list the prompt carried.
func citedSources(text string, docs []grounding.Doc, stage model.StageID) []model.GroundingSource {
	var sources []model.GroundingSource
	seen := make(map[string]bool)
	for i, d := range docs {
		if i >= 10 {
			break
		}
		marker := "[" + strconv.Itoa(i+1) + "]"
		if !strings.Contains(text, marker) || seen[d.URL] {
			continue
		}
		seen[d.URL] = true
		sources = append(sources, model.GroundingSource{
			URI:    d.URL,
			Title:  d.Title,
			Tier:   d.Tier,
			UsedIn: []model.StageID{stage},
		})
	}
	return sources
}

// stageQuality is a cheap per-stage heuristic on [0,1]: did the stage
// produce content, structure, and evidence.
func stageQuality(out *model.StageOutput) float64 {
	if out == nil {
		return 0
	}
	score := 0.0
	if strings.TrimSpace(out.Text) != "" || len(out.Items) > 0 {
		score += 0.5
	}
	if len(out.Items) > 0 {
		score += 0.25
	}
	if len(out.Sources) > 0 {
		score += 0.25
	}
	return score
}

// generationStages lists the engine-backed stages; the run fails only when
// none of them completes.
func generationStages() []model.StageID {
	return []model.StageID{
		model.StageDescription,
		model.StageUSP,
		model.StageChapters,
		model.StageFAQ,
		model.StageHowTo,
		model.StageCaseStudies,
		model.StageKeywords,
		model.StageHashtags,
	}
}

// deriveStatus computes the terminal run status from the stage set.
func deriveStatus(results map[model.StageID]*model.StageResult, aborted bool) model.RunStatus {
	if aborted {
		return model.RunAborted
	}
	allCompleted := true
	for _, res := range results {
		if res.Status != model.StageCompleted {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		return model.RunCompleted
	}
	for _, id := range generationStages() {
		if res, ok := results[id]; ok && res.Status == model.StageCompleted {
			return model.RunPartial
		}
	}
	return model.RunFailed
}

// assemble builds the response payload, grounding report, and quality score
// from the finished stage set.
func (p *Pipeline) assemble(run *model.PipelineRun, sc *stageState) *model.GenerateResponse {
	resp := &model.GenerateResponse{
		RunID:  run.ID,
		Status: run.Status,
		Stages: make(map[model.StageID]model.StagePayload, len(run.Stages)),
	}

	var contributions []grounding.Contribution
	var usage model.TokenUsage
	for id, res := range run.Stages {
		payload := model.StagePayload{
			Status:   res.Status,
			Output:   res.Output,
			Error:    res.Err,
			Fallback: res.Fallback,
		}
		resp.Stages[id] = payload

		if res.Output != nil {
			usage.Add(res.Output.Usage)
		}
		if isGeneration(id) && res.Output != nil {
			contributions = append(contributions, stageContribution(id, res.Output))
		}
	}

	resp.Grounding = grounding.Aggregate(contributions, len(generationStages()))

	dims := deriveDimensions(run, resp.Grounding, sc)
	score, err := scoring.Score(dims, p.profile)
	if err != nil {
		zap.L().Warn("pipeline: weight profile rejected, using builtin", zap.Error(err))
		score, _ = scoring.Score(dims, scoring.DefaultProfile())
	}
	resp.Score = score

	run.TotalTokens = usage.Total()
	run.TotalCost = p.costCalc.Generation(p.cfg.Anthropic.HaikuModel, usage) +
		p.costCalc.SearchQueries(countQueries(run.Stages))

	return resp
}

func isGeneration(id model.StageID) bool {
	return id != model.StageSignals && id != model.StageContext
}

// stageContribution converts one stage output into aggregator input. Cited
// length is the share of lines carrying citation markers.
func stageContribution(id model.StageID, out *model.StageOutput) grounding.Contribution {
	content := out.Text
	for _, it := range out.Items {
		content += "\n" + it.Title + " " + it.Body
	}
	return grounding.Contribution{
		Stage:         id,
		Sources:       out.Sources,
		SearchQueries: out.Queries,
		ContentLen:    len(content),
		CitedLen:      citedLen(content),
	}
}

// citedLen sums the length of lines containing a [n] citation marker.
func citedLen(content string) int {
	total := 0
	for _, line := range strings.Split(content, "\n") {
		if hasCitationMarker(line) {
			total += len(line)
		}
	}
	return total
}

func hasCitationMarker(line string) bool {
	for i := 0; i+2 < len(line); i++ {
		if line[i] == '[' && line[i+1] >= '0' && line[i+1] <= '9' {
			for j := i + 1; j < len(line); j++ {
				if line[j] == ']' {
					return true
				}
				if line[j] < '0' || line[j] > '9' {
					break
				}
			}
		}
	}
	return false
}

func countQueries(results map[model.StageID]*model.StageResult) int {
	n := 0
	for _, res := range results {
		if res.Output != nil {
			n += len(res.Output.Queries)
		}
	}
	return n
}
