package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiRequest is one generation call in Gemini terms.
type GeminiRequest struct {
	Model       string
	System      string
	History     []*genai.Content // Earlier turns, roles "user" and "model"
	Prompt      []genai.Part     // The final user turn
	Temperature float32
	MaxTokens   int32
}

// GeminiIterator yields streamed responses and returns iterator.Done at the end.
type GeminiIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

// GeminiBackend is the part of the genai client the provider uses.
type GeminiBackend interface {
	GenerateContent(ctx context.Context, req GeminiRequest) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, req GeminiRequest) GeminiIterator
	Close() error
}

// GeminiProvider talks to Google Gemini.
type GeminiProvider struct {
	backend GeminiBackend
	opts    Options
	log     *slog.Logger
}

// NewGeminiProvider creates a Gemini provider backed by the genai SDK.
func NewGeminiProvider(ctx context.Context, apiKey string, opts Options) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, apierr.MissingCredential("gemini", "api key")
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, wrapErr("gemini", "configure", fmt.Errorf("failed to create genai client: %w", err))
	}

	return NewGeminiProviderWithBackend(&genaiBackend{client: client}, opts), nil
}

// NewGeminiProviderWithBackend allows injecting a custom backend.
func NewGeminiProviderWithBackend(backend GeminiBackend, opts Options) *GeminiProvider {
	opts = opts.withDefaults(DefaultGeminiModel)
	return &GeminiProvider{backend: backend, opts: opts, log: opts.Logger}
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.opts.Model }

// Close releases the genai client.
func (p *GeminiProvider) Close() error {
	return p.backend.Close()
}

// request maps chat messages onto Gemini's shape: system turns become the
// system instruction, assistant turns use role "model", the last user turn is the prompt.
func (p *GeminiProvider) request(messages []Message) GeminiRequest {
	req := GeminiRequest{
		Model:       p.opts.Model,
		Temperature: p.opts.Temperature,
		MaxTokens:   int32(p.opts.MaxTokens),
	}

	var system accumulator
	var turns []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system.String() != "" {
				system.add("\n\n")
			}
			system.add(m.Content)
		case RoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	req.System = system.String()

	if n := len(turns); n > 0 && turns[n-1].Role == "user" {
		req.Prompt = turns[n-1].Parts
		turns = turns[:n-1]
	}
	req.History = turns

	return req
}

// Complete returns the text parts of the first candidate.
func (p *GeminiProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	p.log.DebugContext(ctx, "Gemini generation", "model", p.opts.Model, "messages", len(messages))

	resp, err := p.backend.GenerateContent(ctx, p.request(messages))
	if err != nil {
		return "", wrapErr(p.Name(), "complete", err)
	}

	var acc accumulator
	if !collectText(resp, &acc) {
		return "", apierr.Generation(p.Name(), "complete", apierr.Malformed(p.Name(), "complete", errNoChoices))
	}
	return acc.String(), nil
}

// Stream yields the text parts of each streamed response.
func (p *GeminiProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
	p.log.DebugContext(ctx, "Gemini generation stream", "model", p.opts.Model)

	it := p.backend.GenerateContentStream(ctx, p.request(messages))

	recv := func() (string, error) {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		var acc accumulator
		if !collectText(resp, &acc) {
			return "", apierr.Malformed(p.Name(), "stream", errNoChoices)
		}
		return acc.String(), nil
	}

	return NewStream(p.Name(), recv, nil), nil
}

// collectText appends the text parts of the first candidate to acc and
// reports whether there was a candidate with content.
func collectText(resp *genai.GenerateContentResponse, acc *accumulator) bool {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			acc.add(string(text))
		}
	}
	return true
}

// genaiBackend adapts *genai.Client to GeminiBackend.
type genaiBackend struct {
	client *genai.Client
}

func (b *genaiBackend) model(req GeminiRequest) *genai.GenerativeModel {
	model := b.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Temperature)
	model.SetMaxOutputTokens(req.MaxTokens)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	return model
}

func (b *genaiBackend) GenerateContent(ctx context.Context, req GeminiRequest) (*genai.GenerateContentResponse, error) {
	session := b.model(req).StartChat()
	session.History = req.History
	return session.SendMessage(ctx, req.Prompt...)
}

func (b *genaiBackend) GenerateContentStream(ctx context.Context, req GeminiRequest) GeminiIterator {
	session := b.model(req).StartChat()
	session.History = req.History
	return session.SendMessageStream(ctx, req.Prompt...)
}

func (b *genaiBackend) Close() error {
	return b.client.Close()
}
