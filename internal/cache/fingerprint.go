// Package cache provides the two-tier content cache: a fast in-process
// tier in front of the durable store tier, keyed by a deterministic
// fingerprint of the normalized generation inputs.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/promo-cli/internal/model"
)

// Fingerprint returns the SHA-256 hex key for a generation request. Two
// requests with the same normalized inputs always produce the same key,
// so cosmetic differences (case, spacing, keyword order, Unicode form)
// do not fragment the cache.
func Fingerprint(req model.GenerateRequest) string {
	keywords := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if k := normalize(kw); k != "" {
			keywords = append(keywords, k)
		}
	}
	sort.Strings(keywords)

	parts := []string{
		normalize(req.ProductName),
		normalize(req.ContentBody),
		strings.Join(keywords, ","),
		normalize(req.Language),
		normalize(req.Variant),
	}
	// Length-prefix each part so values never collide across field
	// boundaries.
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// normalize applies NFKC, lowercases, and collapses runs of whitespace
// to single spaces.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}
