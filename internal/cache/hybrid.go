package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/promo-cli/internal/store"
)

// Cache tiers as reported on a hit.
const (
	TierFast    = "fast"
	TierDurable = "durable"
)

// DefaultTTL applies when no TTL option is given.
const DefaultTTL = 24 * time.Hour

// Hybrid layers the fast in-process tier over the durable store tier.
// Durable hits are promoted into the fast tier. Concurrent misses on the
// same key are not deduplicated; both callers will regenerate and the
// second Set wins.
type Hybrid struct {
	fast    *memoryTier
	durable store.CacheStore
	ttl     time.Duration
}

// Option configures a Hybrid cache.
type Option func(*Hybrid)

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(h *Hybrid) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// NewHybrid creates a two-tier cache over the given durable store.
func NewHybrid(durable store.CacheStore, opts ...Option) *Hybrid {
	h := &Hybrid{
		fast:    newMemoryTier(),
		durable: durable,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Get looks up key in the fast tier, then the durable tier. A durable hit
// is promoted into the fast tier with its remaining TTL. The returned tier
// names where the value was found.
func (h *Hybrid) Get(ctx context.Context, key string) ([]byte, string, bool, error) {
	if value, ok := h.fast.get(key); ok {
		zap.L().Debug("cache hit", zap.String("tier", TierFast), zap.String("key", keyPrefix(key)))
		return value, TierFast, true, nil
	}

	entry, err := h.durable.GetEntry(ctx, key)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "cache: durable get")
	}
	if entry == nil {
		return nil, "", false, nil
	}

	if remaining := time.Until(entry.ExpiresAt); remaining > 0 {
		h.fast.set(key, entry.Value, remaining)
	}
	if err := h.durable.TouchEntry(ctx, key); err != nil {
		zap.L().Warn("cache touch failed", zap.String("key", keyPrefix(key)), zap.Error(err))
	}
	zap.L().Debug("cache hit", zap.String("tier", TierDurable), zap.String("key", keyPrefix(key)))
	return entry.Value, TierDurable, true, nil
}

// Set writes key to both tiers. The durable write must succeed before Set
// returns; the fast tier is populated only after that.
func (h *Hybrid) Set(ctx context.Context, key string, value []byte) error {
	if err := h.durable.SetEntry(ctx, key, value, h.ttl); err != nil {
		return eris.Wrap(err, "cache: durable set")
	}
	h.fast.set(key, value, h.ttl)
	return nil
}

// SweepFast drops expired fast-tier entries and returns how many were removed.
func (h *Hybrid) SweepFast() int {
	return h.fast.sweep()
}

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
