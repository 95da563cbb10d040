package resilience

import "strings"

// ErrorCategory buckets a failure for retry decisions.
type ErrorCategory string

const (
	CategoryRateLimit    ErrorCategory = "rate_limit"
	CategoryServerError  ErrorCategory = "server_error"
	CategoryNetworkError ErrorCategory = "network_error"
	CategoryOther        ErrorCategory = "other"
)

// Classification is the retry-relevant summary of a failure.
type Classification struct {
	Category        ErrorCategory
	Retryable       bool
	DelayMultiplier int
}

var rateLimitPatterns = []string{
	"rate limit",
	"quota",
	"resource exhausted",
	"too many requests",
}

var serverErrorPatterns = []string{
	"internal server error",
	"service unavailable",
	"bad gateway",
	"overloaded",
}

var networkPatterns = []string{
	"timeout",
	"timed out",
	"network",
	"socket",
	"connection",
	"aborted",
	"fetch failed",
	"no such host",
	"broken pipe",
}

// Classify categorizes a failure. Category priority is rate limit, then
// server error, then network error; anything else is non-retryable. Status
// codes from an EngineError in the chain take precedence over message text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryOther}
	}

	code := statusCode(err)
	msg := strings.ToLower(err.Error())

	if code == 429 || matchesAny(msg, rateLimitPatterns) {
		return Classification{Category: CategoryRateLimit, Retryable: true, DelayMultiplier: 3}
	}
	if (code >= 500 && code <= 599) || matchesAny(msg, serverErrorPatterns) {
		return Classification{Category: CategoryServerError, Retryable: true, DelayMultiplier: 2}
	}
	if isNetworkErr(err) || matchesAny(msg, networkPatterns) {
		return Classification{Category: CategoryNetworkError, Retryable: true, DelayMultiplier: 1}
	}

	return Classification{Category: CategoryOther}
}

func matchesAny(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
