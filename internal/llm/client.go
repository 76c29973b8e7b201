// Package llm provides a structured completion client for
// OpenAI-compatible chat completion endpoints. Every call carries a
// JSON schema; the client only returns values that decode strictly
// into the caller's result type.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CompletionRequest describes one structured completion call.
type CompletionRequest struct {
	// Agent identifies the calling stage, used only for logging.
	Agent string

	// Model is the provider model identifier. Required.
	Model string

	SystemPrompt string
	UserMessage  string

	// SchemaName and Schema constrain the response shape. Required.
	SchemaName string
	Schema     json.RawMessage

	// MaxTokens limits response length. 0 uses the client default.
	MaxTokens int

	// Temperature is omitted from the request when 0 or 1; several
	// current models only accept their server-side default.
	Temperature float64
}

// Completer issues structured completion calls. The concrete Client
// implements it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, request CompletionRequest, out any) error
}

// Client talks to an OpenAI-compatible chat completions endpoint. It is
// safe for concurrent use by many in-flight calls and holds no per-run
// state; one Client is shared across all workflow runs.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	retryConfig RetryConfig
	callTimeout time.Duration
	maxTokens   int
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.callTimeout = timeout
	}
}

// WithMaxTokens sets the default completion token limit.
func WithMaxTokens(maxTokens int) ClientOption {
	return func(c *Client) {
		c.maxTokens = maxTokens
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a structured completion client for the given
// endpoint.
func NewClient(baseURL string, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{},
		retryConfig: DefaultRetryConfig(),
		callTimeout: 120 * time.Second,
		maxTokens:   4096,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete issues the call and decodes the response strictly into out.
// Provider failures are retried with backoff, schema violations are
// re-asked once, refusals are surfaced immediately.
func (c *Client) Complete(ctx context.Context, request CompletionRequest, out any) error {
	if strings.TrimSpace(request.Model) == "" {
		return fmt.Errorf("completion request requires a model")
	}
	if len(request.Schema) == 0 || strings.TrimSpace(request.SchemaName) == "" {
		return fmt.Errorf("completion request requires a named schema")
	}

	maxAttempts := c.retryConfig.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := c.retryConfig.BackoffBase
	parseRetried := false

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callErr := c.completeOnce(ctx, request, out)
		if callErr == nil {
			c.logger.Debug("completion finished",
				zap.String("agent", request.Agent),
				zap.String("model", request.Model),
				zap.String("schema", request.SchemaName),
				zap.Int("attempt", attempt))
			return nil
		}
		lastErr = callErr

		switch {
		case IsRefusal(callErr):
			return callErr
		case IsParseFailure(callErr):
			if parseRetried {
				return callErr
			}
			parseRetried = true
		case IsProviderFailure(callErr):
			if attempt == maxAttempts {
				return callErr
			}
			if sleepErr := sleepContext(ctx, backoff); sleepErr != nil {
				return NewProviderError(0, sleepErr)
			}
			backoff = c.retryConfig.next(backoff)
		default:
			return callErr
		}

		c.logger.Debug("completion retrying",
			zap.String("agent", request.Agent),
			zap.Int("attempt", attempt),
			zap.Error(callErr))
	}
	return lastErr
}

func (c *Client) completeOnce(ctx context.Context, request CompletionRequest, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	payload := chatCompletionRequest{
		Model: request.Model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(request.SystemPrompt)},
			{Role: "user", Content: strings.TrimSpace(request.UserMessage)},
		},
		MaxCompletionTokens: chooseInt(request.MaxTokens, c.maxTokens),
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaWrapper{
				Name:   request.SchemaName,
				Schema: request.Schema,
				Strict: true,
			},
		},
	}
	if request.Temperature != 0 && request.Temperature != 1 {
		payload.Temperature = &request.Temperature
	}

	rawContent, callErr := c.createChatCompletion(callCtx, payload)
	if callErr != nil {
		return callErr
	}

	if decodeErr := decodeStrict(rawContent, out); decodeErr != nil {
		return NewParseError(decodeErr)
	}
	return nil
}

func (c *Client) createChatCompletion(ctx context.Context, requestPayload chatCompletionRequest) (string, error) {
	requestBytes, marshalErr := json.Marshal(requestPayload)
	if marshalErr != nil {
		return "", marshalErr
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(requestBytes))
	if buildErr != nil {
		return "", buildErr
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResponse, httpErr := c.httpClient.Do(httpRequest)
	if httpErr != nil {
		return "", NewProviderError(0, httpErr)
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return "", NewProviderError(httpResponse.StatusCode, readErr)
	}
	bodyPreview := truncateForLog(string(bodyBytes), 512)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return "", NewProviderError(httpResponse.StatusCode,
			fmt.Errorf("llm http error %d: %s", httpResponse.StatusCode, bodyPreview))
	}

	var completion chatCompletionResponse
	if decodeErr := json.Unmarshal(bodyBytes, &completion); decodeErr != nil {
		return "", NewProviderError(httpResponse.StatusCode,
			fmt.Errorf("decode chat completion: %w (body=%s)", decodeErr, bodyPreview))
	}
	if len(completion.Choices) == 0 {
		return "", NewProviderError(httpResponse.StatusCode,
			fmt.Errorf("chat completion returned no choices (body=%s)", bodyPreview))
	}

	choice := completion.Choices[0]
	if refusal := decodeRefusal(choice.Message.Refusal); refusal != "" {
		return "", &RefusalError{Reason: refusal}
	}

	content, extractErr := extractMessageContent(choice.Message)
	if extractErr != nil {
		return "", NewParseError(fmt.Errorf("%w (body=%s)", extractErr, bodyPreview))
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", NewParseError(fmt.Errorf("chat completion returned empty message (finish_reason=%s)", choice.FinishReason))
	}
	return trimmed, nil
}

// decodeStrict rejects responses with unknown fields so a value that
// drifts from the schema never reaches the calling stage.
func decodeStrict(raw string, out any) error {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func chooseInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
