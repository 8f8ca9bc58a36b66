package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/devteam/metrics"
	"github.com/c360studio/devteam/model"
)

// Stream sends a generation request and returns incremental chunks as the
// model produces them. The returned channel is closed when the stream ends,
// the context is cancelled, or an error occurs; a terminal error is delivered
// as the final chunk's Err.
//
// Streaming does not retry mid-stream: once chunks have been delivered a
// retry would replay content. Endpoint selection and fallback apply only to
// establishing the connection.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	chain, err := c.resolveChain(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, modelName := range chain {
		endpoint := c.registry.GetEndpoint(modelName)
		if endpoint == nil {
			continue
		}
		if !c.registry.IsEndpointAvailable(modelName) {
			continue
		}

		resp, provider, err := c.openStream(ctx, endpoint, req)
		if err != nil {
			lastErr = err
			c.registry.MarkEndpointFailure(modelName)
			metrics.LLMRequests.WithLabelValues(modelName, "failure").Inc()
			if IsFatal(err) {
				return nil, err
			}
			c.logger.Warn("Stream connect failed, trying fallback",
				"model", modelName, "error", err)
			continue
		}

		c.registry.MarkEndpointSuccess(modelName)
		ch := make(chan StreamChunk)
		go c.consumeStream(ctx, resp, provider, modelName, ch)
		return ch, nil
	}

	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// openStream establishes the streaming HTTP connection. The caller owns the
// response body on success.
func (c *Client) openStream(ctx context.Context, ep *model.EndpointConfig, req Request) (*http.Response, Provider, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens, true)
	if err != nil {
		return nil, nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.BuildURL(ep.URL), bytes.NewReader(body))
	if err != nil {
		return nil, nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	provider.SetHeaders(httpReq)

	httpResp, err := c.streamClient().Do(httpReq)
	if err != nil {
		return nil, nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		errBody := make([]byte, 512)
		n, _ := httpResp.Body.Read(errBody)
		return nil, nil, classifyHTTPError(httpResp.StatusCode, errBody[:n])
	}

	return httpResp, provider, nil
}

// streamClient returns an HTTP client without an overall timeout. Streams
// can legitimately run longer than a unary completion; cancellation comes
// from the request context instead.
func (c *Client) streamClient() *http.Client {
	copied := *c.httpClient
	copied.Timeout = 0
	return &copied
}

// consumeStream reads SSE events from the response body and forwards deltas
// on ch. It closes both on exit.
func (c *Client) consumeStream(ctx context.Context, resp *http.Response, provider Provider, modelName string, ch chan<- StreamChunk) {
	defer close(ch)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			// Ollama streams newline-delimited JSON without SSE framing.
			data = line
		}
		if strings.TrimSpace(data) == "[DONE]" {
			return
		}

		delta, err := provider.ParseStreamEvent([]byte(data))
		if err != nil {
			c.sendChunk(ctx, ch, StreamChunk{Err: fmt.Errorf("parse stream event: %w", err)})
			return
		}

		if delta.Usage != nil {
			metrics.LLMTokens.WithLabelValues(modelName, "prompt").Add(float64(delta.Usage.PromptTokens))
			metrics.LLMTokens.WithLabelValues(modelName, "completion").Add(float64(delta.Usage.CompletionTokens))
			if c.onUsage != nil {
				c.onUsage(modelName, *delta.Usage)
			}
		}

		if delta.Text != "" {
			if !c.sendChunk(ctx, ch, StreamChunk{Text: delta.Text}) {
				return
			}
		}
		if delta.Done {
			metrics.LLMRequests.WithLabelValues(modelName, "success").Inc()
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.sendChunk(ctx, ch, StreamChunk{Err: fmt.Errorf("read stream: %w", err)})
	}
}

// sendChunk delivers a chunk unless the context is done. Returns false when
// the consumer has gone away.
func (c *Client) sendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
