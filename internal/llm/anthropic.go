package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
)

const (
	// AnthropicBaseURL is the Anthropic API root.
	AnthropicBaseURL = "https://api.anthropic.com"
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"

	anthropicVersion = "2023-06-01"
	maxErrorBody     = 1 << 20
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client  httpclient.Doer
	baseURL string
	apiKey  string
	opts    Options
	log     *slog.Logger
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// anthropicEvent covers the SSE event payloads the stream reads.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *anthropicErrorDetail `json:"error"`
}

type anthropicErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicErrorResponse struct {
	Error anthropicErrorDetail `json:"error"`
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts Options) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, apierr.MissingCredential("anthropic", "api key")
	}
	opts = opts.withDefaults(DefaultAnthropicModel)

	return NewAnthropicProviderWithClient(httpclient.New(opts.Timeout), apiKey, opts), nil
}

// NewAnthropicProviderWithClient allows injecting custom HTTP client.
func NewAnthropicProviderWithClient(client httpclient.Doer, apiKey string, opts Options) *AnthropicProvider {
	opts = opts.withDefaults(DefaultAnthropicModel)

	baseURL := AnthropicBaseURL
	if opts.BaseURL != "" {
		baseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	return &AnthropicProvider{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		opts:    opts,
		log:     opts.Logger,
	}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.opts.Model }

// Complete joins the text blocks of the response.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	const op = "complete"

	resp, err := p.do(ctx, messages, false)
	if err != nil {
		return "", wrapErr(p.Name(), op, err)
	}
	defer resp.Body.Close()

	var body anthropicResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apierr.Generation(p.Name(), op, apierr.Malformed(p.Name(), op, err))
	}

	var acc accumulator
	found := false
	for _, block := range body.Content {
		if block.Type == "text" {
			acc.add(block.Text)
			found = true
		}
	}
	if !found {
		return "", apierr.Generation(p.Name(), op, apierr.Malformed(p.Name(), op, errNoText))
	}

	return acc.String(), nil
}

// Stream reads text deltas from the server-sent event stream.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
	resp, err := p.do(ctx, messages, true)
	if err != nil {
		return nil, wrapErr(p.Name(), "stream", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	recv := func() (string, error) {
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return "", io.EOF
			}

			var event anthropicEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				return "", apierr.Malformed(p.Name(), "stream", err)
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" {
					return event.Delta.Text, nil
				}
			case "message_stop":
				return "", io.EOF
			case "error":
				if event.Error != nil {
					return "", fmt.Errorf("%s: %s", event.Error.Type, event.Error.Message)
				}
				return "", errStreamEvent
			}
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	return NewStream(p.Name(), recv, resp.Body.Close), nil
}

// do sends the Messages request and returns the response when the status is 200.
func (p *AnthropicProvider) do(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	payload := anthropicRequest{
		Model:       p.opts.Model,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
		Stream:      stream,
	}

	var system accumulator
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system.String() != "" {
				system.add("\n\n")
			}
			system.add(m.Content)
			continue
		}
		payload.Messages = append(payload.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	payload.System = system.String()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	p.log.DebugContext(ctx, "Anthropic request", "model", p.opts.Model, "stream", stream)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		var errorResp anthropicErrorResponse
		if json.Unmarshal(body, &errorResp) == nil && errorResp.Error.Message != "" {
			return nil, &httpclient.StatusError{Code: resp.StatusCode, Body: errorResp.Error.Type + ": " + errorResp.Error.Message}
		}
		return nil, &httpclient.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
