package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/fanout"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/prompt"
	"github.com/jonboulle/clockwork"
)

// Validate checks the required fields of req.
func Validate(req models.GenerationRequest) error {
	var missing []string
	if strings.TrimSpace(req.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(req.Context) == "" {
		missing = append(missing, "context")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", apierr.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Generate writes the email described by req with p.
func Generate(ctx context.Context, p Provider, req models.GenerationRequest) (*models.GenerationResult, error) {
	return generate(ctx, clockwork.NewRealClock(), p, req)
}

func generate(ctx context.Context, clock clockwork.Clock, p Provider, req models.GenerationRequest) (*models.GenerationResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	start := clock.Now()
	text, err := p.Complete(ctx, []Message{UserMessage(prompt.Build(req))})
	if err != nil {
		return nil, apierr.Generation(p.Name(), "complete", err)
	}

	return &models.GenerationResult{
		Text:     text,
		Provider: p.Name(),
		Model:    p.Model(),
		Latency:  clock.Since(start),
	}, nil
}

// GenerateStream is the streaming twin of Generate.
func GenerateStream(ctx context.Context, p Provider, req models.GenerationRequest) (*Stream, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	stream, err := p.Stream(ctx, []Message{UserMessage(prompt.Build(req))})
	if err != nil {
		return nil, apierr.Generation(p.Name(), "stream", err)
	}
	return stream, nil
}

// CompleteAll sends every prompt as an independent single-turn chat, at most
// limit at a time, and returns one result per prompt in input order.
func CompleteAll(ctx context.Context, p Provider, prompts []string, limit int) []fanout.Result[string] {
	return fanout.Run(ctx, len(prompts), limit, func(ctx context.Context, idx int) (string, error) {
		return p.Complete(ctx, []Message{UserMessage(prompts[idx])})
	})
}

// GenerateAll runs Generate for every request, at most limit at a time.
func GenerateAll(
	ctx context.Context,
	p Provider,
	reqs []models.GenerationRequest,
	limit int,
) []fanout.Result[*models.GenerationResult] {
	return fanout.Run(ctx, len(reqs), limit, func(ctx context.Context, idx int) (*models.GenerationResult, error) {
		return Generate(ctx, p, reqs[idx])
	})
}
