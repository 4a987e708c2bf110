package llm

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/sashabaranov/go-openai"
)

// Endpoints of OpenAI-compatible vendors.
const (
	DashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DeepSeekBaseURL  = "https://api.deepseek.com"
)

// OpenAIProvider talks to any OpenAI-compatible chat completion API.
// OpenAI itself, Qwen (DashScope compatible mode) and DeepSeek all use it.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	opts   Options
	log    *slog.Logger
}

// NewOpenAIProvider creates a provider registered as name. opts.BaseURL selects
// the vendor; empty means api.openai.com.
func NewOpenAIProvider(name, apiKey string, opts Options) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, apierr.MissingCredential(name, "api key")
	}
	opts = opts.withDefaults(openai.GPT3Dot5Turbo)

	config := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	config.HTTPClient = httpclient.New(opts.Timeout)

	return &OpenAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(config),
		opts:   opts,
		log:    opts.Logger,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.opts.Model }

func (p *OpenAIProvider) request(messages []Message, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	return openai.ChatCompletionRequest{
		Model:       p.opts.Model,
		Messages:    msgs,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
		Stream:      stream,
	}
}

// Complete returns the text of the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	p.log.DebugContext(ctx, "Chat completion", "provider", p.name, "model", p.opts.Model, "messages", len(messages))

	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, false))
	if err != nil {
		return "", wrapErr(p.name, "complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", apierr.Generation(p.name, "complete", apierr.Malformed(p.name, "complete", errNoChoices))
	}

	var acc accumulator
	acc.add(resp.Choices[0].Message.Content)
	return acc.String(), nil
}

// Stream returns the first choice's content deltas as they arrive.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message) (*Stream, error) {
	p.log.DebugContext(ctx, "Chat completion stream", "provider", p.name, "model", p.opts.Model)

	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(messages, true))
	if err != nil {
		return nil, wrapErr(p.name, "stream", err)
	}

	recv := func() (string, error) {
		chunk, err := stream.Recv()
		if err != nil {
			return "", err
		}
		if len(chunk.Choices) == 0 {
			return "", nil
		}
		return chunk.Choices[0].Delta.Content, nil
	}

	return NewStream(p.name, recv, stream.Close), nil
}
