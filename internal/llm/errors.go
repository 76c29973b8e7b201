package llm

import "errors"

// Error types for classifying structured completion failures. Stages
// branch on these: a refusal is fatal for the calling stage, a parse
// failure is retried once by the client, a provider failure is retried
// with backoff.

// RefusalError indicates the model declined to answer.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	if e.Reason == "" {
		return "model refused to answer"
	}
	return "model refused to answer: " + e.Reason
}

// ParseError indicates the model response could not be coerced to the
// requested schema.
type ParseError struct {
	err error
}

func (e *ParseError) Error() string {
	return "response does not satisfy schema: " + e.err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// NewParseError wraps a decode failure as a schema violation.
func NewParseError(err error) error {
	return &ParseError{err: err}
}

// ProviderError indicates a transport-level failure: network error,
// timeout, rate limit, or a non-2xx response from the provider.
type ProviderError struct {
	StatusCode int
	err        error
}

func (e *ProviderError) Error() string {
	return "provider failure: " + e.err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.err
}

// NewProviderError wraps a transport failure.
func NewProviderError(statusCode int, err error) error {
	return &ProviderError{StatusCode: statusCode, err: err}
}

// IsRefusal reports whether the error is a model refusal.
func IsRefusal(err error) bool {
	var refusal *RefusalError
	return errors.As(err, &refusal)
}

// IsParseFailure reports whether the error is a schema violation.
func IsParseFailure(err error) bool {
	var parse *ParseError
	return errors.As(err, &parse)
}

// IsProviderFailure reports whether the error is a transport failure.
func IsProviderFailure(err error) bool {
	var provider *ProviderError
	return errors.As(err, &provider)
}
