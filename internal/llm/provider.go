// Package llm talks to chat-completion vendors behind one Provider interface
// and keeps a name-keyed registry of them.
package llm

import (
	"context"
	"log/slog"
	"time"
)

// Sampling defaults.
const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 500
	// DefaultTimeout bounds a whole call, including reading a stream to the end.
	DefaultTimeout = 2 * time.Minute
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a single user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Provider is a chat-completion vendor bound to one model.
// Every error it returns matches apierr.ErrGeneration.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message) (*Stream, error)
}

// Options tune a provider. Zero values fall back to the defaults above.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	BaseURL     string // Endpoint override
	Logger      *slog.Logger
}

func (o Options) withDefaults(defaultModel string) Options {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
