package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/promo-cli/internal/model"
)

func baseRequest() model.GenerateRequest {
	return model.GenerateRequest{
		ProductName: "Galaxy Buds Pro",
		ContentBody: "Wireless earbuds with active noise cancellation.",
		Keywords:    []string{"earbuds", "wireless", "anc"},
		Language:    "en",
		Variant:     "default",
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(baseRequest())
	b := Fingerprint(baseRequest())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_NormalizationInvariance(t *testing.T) {
	base := Fingerprint(baseRequest())

	upper := baseRequest()
	upper.ProductName = "GALAXY BUDS PRO"
	assert.Equal(t, base, Fingerprint(upper))

	spaced := baseRequest()
	spaced.ContentBody = "Wireless   earbuds \n with active    noise cancellation."
	assert.Equal(t, base, Fingerprint(spaced))

	reordered := baseRequest()
	reordered.Keywords = []string{"wireless", "anc", "earbuds"}
	assert.Equal(t, base, Fingerprint(reordered))

	// NFKC folds the fullwidth form to ASCII.
	fullwidth := baseRequest()
	fullwidth.Language = "ｅｎ"
	assert.Equal(t, base, Fingerprint(fullwidth))
}

func TestFingerprint_DistinctInputsDistinctKeys(t *testing.T) {
	base := Fingerprint(baseRequest())

	variant := baseRequest()
	variant.Variant = "seo-heavy"
	assert.NotEqual(t, base, Fingerprint(variant))

	lang := baseRequest()
	lang.Language = "de"
	assert.NotEqual(t, base, Fingerprint(lang))

	body := baseRequest()
	body.ContentBody = "Completely different copy."
	assert.NotEqual(t, base, Fingerprint(body))
}

func TestFingerprint_NoCollisionAcrossFieldBoundaries(t *testing.T) {
	a := baseRequest()
	a.ProductName = "alpha|beta"
	a.ContentBody = "gamma"

	b := baseRequest()
	b.ProductName = "alpha"
	b.ContentBody = "beta|gamma"

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_EmptyKeywordsDropped(t *testing.T) {
	withEmpty := baseRequest()
	withEmpty.Keywords = []string{"earbuds", "  ", "wireless", "", "anc"}
	assert.Equal(t, Fingerprint(baseRequest()), Fingerprint(withEmpty))
}
