// Package grounding fetches retrieval evidence for a product and
// aggregates per-stage citations into a deduplicated, tier-ranked source
// list with coverage and citation-density sub-scores.
package grounding

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/promo-cli/internal/model"
	"github.com/sells-group/promo-cli/pkg/webscout"
)

// maxSignals bounds the ranked signal list.
const maxSignals = 15

// communityHosts mark tier-2 evidence: community discussion and review sites.
var communityHosts = []string{
	"reddit.com",
	"stackexchange.com",
	"stackoverflow.com",
	"youtube.com",
	"quora.com",
	"trustpilot.com",
	"medium.com",
	"news.ycombinator.com",
}

// Evidence is the retrieval output for one run: ranked signals plus the
// source documents stages can cite.
type Evidence struct {
	Signals []model.GroundingSignal
	Docs    []Doc
	Queries []string
}

// Doc is one retrieved document available for citation.
type Doc struct {
	Title   string
	URL     string
	Snippet string
	Tier    model.SourceTier
}

// FetchSignals queries every provider concurrently and merges the results
// into ranked grounding signals. Provider failures are swallowed into empty
// results and logged; retrieval is best-effort by contract.
func FetchSignals(ctx context.Context, providers []webscout.Provider, product model.Product) *Evidence {
	queries := buildQueries(product)

	type fetchResult struct {
		provider string
		query    string
		results  []webscout.Result
	}

	var mu sync.Mutex
	var fetched []fetchResult

	var wg sync.WaitGroup
	for _, p := range providers {
		for _, q := range queries {
			wg.Add(1)
			go func(p webscout.Provider, q string) {
				defer wg.Done()
				results, err := p.Search(ctx, q)
				if err != nil {
					zap.L().Warn("grounding: provider search failed",
						zap.String("provider", p.Name()),
						zap.String("query", q),
						zap.Error(err),
					)
					return
				}
				mu.Lock()
				fetched = append(fetched, fetchResult{provider: p.Name(), query: q, results: results})
				mu.Unlock()
			}(p, q)
		}
	}
	wg.Wait()

	// Deterministic merge order regardless of goroutine completion.
	sort.Slice(fetched, func(i, j int) bool {
		if fetched[i].provider != fetched[j].provider {
			return fetched[i].provider < fetched[j].provider
		}
		return fetched[i].query < fetched[j].query
	})

	ev := &Evidence{Queries: queries}
	seen := make(map[string]bool)
	for _, f := range fetched {
		for rank, r := range f.results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true

			tier := ClassifyTier(r.URL, product.Name)
			ev.Docs = append(ev.Docs, Doc{
				Title:   r.Title,
				URL:     r.URL,
				Snippet: r.Snippet,
				Tier:    tier,
			})
			ev.Signals = append(ev.Signals, model.GroundingSignal{
				Term:    signalTerm(r.Title, f.query),
				Score:   signalScore(rank, tier),
				Source:  r.URL,
				Recency: r.Published,
			})
		}
	}

	sort.SliceStable(ev.Signals, func(i, j int) bool {
		return ev.Signals[i].Score > ev.Signals[j].Score
	})
	if len(ev.Signals) > maxSignals {
		ev.Signals = ev.Signals[:maxSignals]
	}

	return ev
}

func buildQueries(product model.Product) []string {
	queries := []string{
		product.Name,
		fmt.Sprintf("%s review", product.Name),
	}
	for i, kw := range product.Keywords {
		if i >= 3 {
			break
		}
		queries = append(queries, fmt.Sprintf("%s %s", product.Name, kw))
	}
	return queries
}

// signalScore ranks a hit on a 0-100 scale: earlier positions and more
// authoritative tiers score higher.
func signalScore(rank int, tier model.SourceTier) float64 {
	score := 100.0 - float64(rank)*8.0 - float64(tier-1)*15.0
	if score < 0 {
		return 0
	}
	return score
}

func signalTerm(title, query string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return query
}

// ClassifyTier ranks a source URI. Hosts containing the product's brand
// token are first-party; known community and review sites are tier 2;
// everything else is tier 3.
func ClassifyTier(rawURL, productName string) model.SourceTier {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return model.TierOther
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))

	for _, brand := range brandTokens(productName) {
		if strings.Contains(host, brand) {
			return model.TierOfficial
		}
	}
	for _, ch := range communityHosts {
		if host == ch || strings.HasSuffix(host, "."+ch) {
			return model.TierCommunity
		}
	}
	return model.TierOther
}

// brandTokens extracts the product name words long enough to plausibly be
// a brand, lowercased. Short connectives like "Z" are ignored.
func brandTokens(productName string) []string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(productName)) {
		if len(f) >= 4 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
