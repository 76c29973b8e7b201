package llm

import "time"

// RetryConfig holds retry configuration for completion requests.
// Provider failures are retried up to MaxAttempts with exponential
// backoff; schema violations are re-asked exactly once; refusals are
// never retried.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per call.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for completion requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

func (c RetryConfig) next(current time.Duration) time.Duration {
	scaled := time.Duration(float64(current) * c.BackoffMultiplier)
	if scaled > c.MaxBackoff {
		return c.MaxBackoff
	}
	return scaled
}
