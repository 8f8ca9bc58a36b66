package llm

import "time"

// RetryConfig tunes the per-endpoint retry loop. Backoff grows
// geometrically from BackoffBase up to MaxBackoff, with jitter applied by
// the client.
type RetryConfig struct {
	// MaxAttempts bounds attempts against one endpoint before the client
	// moves to the next model in the fallback chain.
	MaxAttempts int

	// BackoffBase is the wait before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier scales the wait after each failed attempt.
	BackoffMultiplier float64

	// MaxBackoff caps the wait regardless of attempt count.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}
