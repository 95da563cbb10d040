package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/promo-cli/internal/cache"
	"github.com/sells-group/promo-cli/internal/pipeline"
	"github.com/sells-group/promo-cli/internal/scoring"
	"github.com/sells-group/promo-cli/internal/store"
	"github.com/sells-group/promo-cli/pkg/engine"
	"github.com/sells-group/promo-cli/pkg/webscout"
)

// pipelineEnv holds the initialized store, cache, and pipeline needed by
// the generate/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Cache    *cache.Hybrid
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "promo.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, cache, clients, and scoring profile, and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (PROMO_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	hc := cache.NewHybrid(st, cache.WithTTL(time.Duration(cfg.Cache.TTLHours)*time.Hour))

	eng := engine.NewClient(cfg.Anthropic.Key)

	var providers []webscout.Provider
	if cfg.Search.Key != "" && cfg.Search.BaseURL != "" {
		providers = append(providers, webscout.NewClient("webscout", cfg.Search.Key, cfg.Search.BaseURL,
			webscout.WithMaxResults(cfg.Search.MaxResults),
			webscout.WithRateLimit(cfg.Search.RatePerSec),
		))
	} else {
		zap.L().Warn("search provider not configured, stages run without web evidence")
	}

	profile := scoring.DefaultProfile()
	if cfg.Scoring.ProfilePath != "" {
		p, err := scoring.LoadProfile(cfg.Scoring.ProfilePath)
		if err != nil {
			zap.L().Warn("scoring profile not loaded, using builtin weights", zap.Error(err))
		} else {
			profile = p
		}
	}

	p := pipeline.New(cfg, st, hc, eng, providers, profile)

	return &pipelineEnv{
		Store:    st,
		Cache:    hc,
		Pipeline: p,
	}, nil
}
