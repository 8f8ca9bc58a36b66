// Package llm provides the provider-agnostic generation client the agents
// synthesize their results with. It integrates with the model.Registry for
// capability-based model selection, retries transient failures with
// exponential backoff, and falls back through the capability's model chain.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/c360studio/devteam/metrics"
	"github.com/c360studio/devteam/model"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a generation request.
type Request struct {
	// Capability specifies the semantic capability ("planning", "coding", …).
	// The registry resolves this to available models.
	Capability string

	// Messages is the chat history to send to the model.
	Messages []Message

	// Temperature controls randomness. nil uses the endpoint default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the endpoint default.
	MaxTokens int
}

// TokenUsage represents token consumption details for a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the generation result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// Usage contains token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// StreamChunk is one element of a streaming generation. A chunk carries
// either incremental text or a terminal error; the channel closes when the
// underlying call completes.
type StreamChunk struct {
	Text string
	Err  error
}

// Generator is the generation-service seam agents depend on. *Client is
// the production implementation.
type Generator interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}

// UsageFunc observes token usage after each successful call.
// Used by the executor to accumulate per-project counters.
type UsageFunc func(model string, usage TokenUsage)

// Client is a provider-agnostic generation client with retry and fallback.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
	onUsage     UsageFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithUsageFunc sets the token usage observer.
func WithUsageFunc(fn UsageFunc) ClientOption {
	return func(client *Client) {
		client.onUsage = fn
	}
}

// NewClient creates a generation client backed by the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // Allow time for long completions
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a generation request, handling retry and fallback logic.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	chain, err := c.resolveChain(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, modelName := range chain {
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", modelName)
			continue
		}

		if !c.registry.IsEndpointAvailable(modelName) {
			c.logger.Debug("Endpoint circuit open, skipping", "model", modelName)
			continue
		}

		resp, err := c.tryEndpointWithRetry(ctx, endpoint, modelName, req)
		if err == nil {
			metrics.LLMRequests.WithLabelValues(modelName, "success").Inc()
			metrics.LLMTokens.WithLabelValues(modelName, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokens.WithLabelValues(modelName, "completion").Add(float64(resp.Usage.CompletionTokens))
			if c.onUsage != nil {
				c.onUsage(modelName, resp.Usage)
			}
			return resp, nil
		}

		lastErr = err
		metrics.LLMRequests.WithLabelValues(modelName, "failure").Inc()
		c.logger.Warn("Endpoint failed, trying fallback",
			"model", modelName,
			"provider", endpoint.Provider,
			"error", err)

		if IsFatal(err) {
			c.logger.Warn("Fatal error, not trying fallbacks", "error", err)
			return nil, err
		}
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// resolveChain validates the request and returns the health-filtered
// fallback chain for its capability.
func (c *Client) resolveChain(req Request) ([]string, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	capVal := model.ParseCapability(req.Capability)
	if capVal == "" {
		capVal = model.CapabilityFast // Default to fast for unknown capabilities
	}
	chain := c.registry.GetAvailableFallbackChain(capVal)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models configured for capability %s", req.Capability)
	}
	return chain, nil
}

// tryEndpointWithRetry runs up to MaxAttempts requests against one
// endpoint, backing off between attempts. Only the final exhaustion marks
// the endpoint unhealthy; a fatal error says nothing about endpoint health.
func (c *Client) tryEndpointWithRetry(ctx context.Context, ep *model.EndpointConfig, modelName string, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(modelName)
			return resp, nil
		}
		if IsFatal(err) {
			return nil, err
		}
		lastErr = err

		if attempt == c.retryConfig.MaxAttempts {
			break
		}

		wait := c.backoff(attempt)
		c.logger.Debug("Request failed, retrying",
			"model", modelName,
			"attempt", attempt,
			"backoff", wait,
			"error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	c.registry.MarkEndpointFailure(modelName)
	return nil, lastErr
}

// backoff grows geometrically per attempt, capped at MaxBackoff, with
// +/-25% jitter so concurrent agents do not retry in lockstep.
func (c *Client) backoff(attempt int) time.Duration {
	scale := math.Pow(c.retryConfig.BackoffMultiplier, float64(attempt-1))
	wait := min(time.Duration(float64(c.retryConfig.BackoffBase)*scale), c.retryConfig.MaxBackoff)

	jitter := float64(wait) * 0.25 * (rand.Float64()*2 - 1)
	return wait + time.Duration(jitter)
}

// doRequest sends one HTTP request to the endpoint and parses the result.
// Network and read failures are transient; everything the provider rejects
// outright is fatal.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens, false)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	url := provider.BuildURL(ep.URL)
	c.logger.Debug("Sending generation request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}
	return provider.ParseResponse(respBody, ep.Model)
}

// classifyHTTPError maps a non-200 status to the retry taxonomy: rate
// limits and server errors are worth retrying, auth and bad-request
// responses (and anything unrecognized) are not.
func classifyHTTPError(statusCode int, body []byte) error {
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	err := fmt.Errorf("generation API error (status %d): %s", statusCode, detail)

	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
