package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/jonboulle/clockwork"
)

// Factory builds a provider from its credential and options.
type Factory func(ctx context.Context, apiKey string, opts Options) (Provider, error)

// ProviderDescriptor describes a provider the registry can build.
type ProviderDescriptor struct {
	Name          string  // Unique, matched case-insensitively
	DefaultModel  string  // Model used when no override is given
	CredentialKey string  // Key into Credentials; empty means no key is needed
	Factory       Factory // Builds the provider
}

// Credentials maps credential keys (environment variable names) to secrets.
type Credentials map[string]string

// Registry keeps provider descriptors by name and tracks the active provider.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]ProviderDescriptor
	creds       Credentials
	defaults    Options
	active      *lease

	clock   clockwork.Clock
	metrics *metrics.Metrics
	log     *slog.Logger
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithClock sets the clock used to measure generation latency.
func WithClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// WithMetrics records every generation call.
func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry returns an empty registry. defaults are passed to every factory
// with the model filled in per provider.
func NewRegistry(creds Credentials, defaults Options, opts ...RegistryOption) *Registry {
	if defaults.Logger == nil {
		defaults.Logger = slog.Default()
	}

	reg := &Registry{
		descriptors: make(map[string]ProviderDescriptor),
		creds:       creds,
		defaults:    defaults,
		clock:       clockwork.NewRealClock(),
		log:         defaults.Logger,
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Register adds a descriptor. Names are unique regardless of case.
func (r *Registry) Register(desc ProviderDescriptor) error {
	name := strings.ToLower(strings.TrimSpace(desc.Name))
	if name == "" {
		return fmt.Errorf("%w: provider name is empty", apierr.ErrInvalidRequest)
	}
	if desc.Factory == nil {
		return fmt.Errorf("%w: provider %q has no factory", apierr.ErrInvalidRequest, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.descriptors[name]; ok {
		return fmt.Errorf("%w: provider %q already registered", apierr.ErrInvalidRequest, name)
	}
	desc.Name = name
	r.descriptors[name] = desc
	return nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Descriptor looks a provider up by name.
func (r *Registry) Descriptor(name string) (ProviderDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[strings.ToLower(strings.TrimSpace(name))]
	return desc, ok
}

// HasCredential reports whether the provider's credential is configured.
func (r *Registry) HasCredential(name string) bool {
	desc, ok := r.Descriptor(name)
	if !ok {
		return false
	}
	return desc.CredentialKey == "" || r.creds[desc.CredentialKey] != ""
}

// Build constructs the named provider without selecting it. An empty model
// means the descriptor's default.
func (r *Registry) Build(ctx context.Context, name, model string) (Provider, error) {
	desc, ok := r.Descriptor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", apierr.ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}

	apiKey := ""
	if desc.CredentialKey != "" {
		apiKey = r.creds[desc.CredentialKey]
		if apiKey == "" {
			return nil, apierr.MissingCredential(desc.Name, desc.CredentialKey)
		}
	}

	opts := r.defaults
	opts.Model = desc.DefaultModel
	if model != "" {
		opts.Model = model
	}

	provider, err := desc.Factory(ctx, apiKey, opts)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// Select builds the named provider and makes it active. On failure the
// previous selection stays active. A replaced provider that implements
// io.Closer is closed once its in-flight calls have returned.
func (r *Registry) Select(ctx context.Context, name, model string) (Provider, error) {
	provider, err := r.Build(ctx, name, model)
	if err != nil {
		r.log.WarnContext(ctx, "Provider selection failed", "provider", name, "error", err)
		return nil, err
	}

	r.mu.Lock()
	previous := r.active
	r.active = &lease{provider: provider, log: r.log}
	r.mu.Unlock()

	if err = previous.retire(); err != nil {
		r.log.WarnContext(ctx, "Failed to close previous provider", "provider", previous.provider.Name(), "error", err)
	}

	r.log.InfoContext(ctx, "Provider selected", "provider", provider.Name(), "model", provider.Model())
	return provider, nil
}

// Active returns the selected provider or nil.
func (r *Registry) Active() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil
	}
	return r.active.provider
}

// acquire pins the active provider until the returned lease is released.
func (r *Registry) acquire() *lease {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil
	}
	r.active.acquire()
	return r.active
}

// Generate writes the email with the active provider.
func (r *Registry) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	l := r.acquire()
	if l == nil {
		return nil, apierr.ErrNoProviderSelected
	}
	defer l.release()

	start := r.clock.Now()
	result, err := generate(ctx, r.clock, l.provider, req)
	r.metrics.ObserveCall(metrics.ComponentGenerate, l.provider.Name(), r.clock.Since(start).Seconds(), err)
	return result, err
}

// Stream writes the email with the active provider, fragment by fragment.
// The provider stays open until the stream is closed or exhausted.
func (r *Registry) Stream(ctx context.Context, req models.GenerationRequest) (*Stream, error) {
	l := r.acquire()
	if l == nil {
		return nil, apierr.ErrNoProviderSelected
	}

	stream, err := GenerateStream(ctx, l.provider, req)
	if err != nil {
		l.release()
		return nil, err
	}

	closer := stream.closer
	stream.closer = func() error {
		defer l.release()
		if closer != nil {
			return closer()
		}
		return nil
	}
	return stream, nil
}

// Close deselects the active provider. It is closed as soon as no call uses it.
func (r *Registry) Close() error {
	r.mu.Lock()
	previous := r.active
	r.active = nil
	r.mu.Unlock()

	return previous.retire()
}

// lease counts the calls running on one selected provider so that a
// replaced provider is closed only after the last of them returns.
type lease struct {
	provider Provider
	log      *slog.Logger

	mu      sync.Mutex
	calls   int
	retired bool
	closed  bool
}

func (l *lease) acquire() {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
}

func (l *lease) release() {
	l.mu.Lock()
	l.calls--
	idle := l.retired && l.calls == 0
	l.mu.Unlock()

	if idle {
		if err := l.close(); err != nil {
			l.log.Warn("Failed to close previous provider", "provider", l.provider.Name(), "error", err)
		}
	}
}

// retire marks the lease as replaced and closes the provider when idle.
func (l *lease) retire() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	l.retired = true
	idle := l.calls == 0
	l.mu.Unlock()

	if !idle {
		l.log.Debug("Provider replaced with calls in flight", "provider", l.provider.Name())
		return nil
	}
	return l.close()
}

func (l *lease) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if closer, ok := l.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Credential keys of the built-in providers.
const (
	CredentialOpenAI    = "OPENAI_API_KEY"
	CredentialDashScope = "DASHSCOPE_API_KEY"
	CredentialDeepSeek  = "DEEPSEEK_API_KEY"
	CredentialAnthropic = "ANTHROPIC_API_KEY"
	CredentialGemini    = "GEMINI_API_KEY"
)

// BuiltinDescriptors returns the descriptors of every supported vendor.
func BuiltinDescriptors() []ProviderDescriptor {
	openAICompatible := func(name, baseURL string) Factory {
		return func(_ context.Context, apiKey string, opts Options) (Provider, error) {
			if opts.BaseURL == "" {
				opts.BaseURL = baseURL
			}
			return NewOpenAIProvider(name, apiKey, opts)
		}
	}

	return []ProviderDescriptor{
		{
			Name:          "openai",
			DefaultModel:  "gpt-3.5-turbo",
			CredentialKey: CredentialOpenAI,
			Factory:       openAICompatible("openai", ""),
		},
		{
			Name:          "qwen",
			DefaultModel:  "qwen-plus",
			CredentialKey: CredentialDashScope,
			Factory:       openAICompatible("qwen", DashScopeBaseURL),
		},
		{
			Name:          "deepseek",
			DefaultModel:  "deepseek-chat",
			CredentialKey: CredentialDeepSeek,
			Factory:       openAICompatible("deepseek", DeepSeekBaseURL),
		},
		{
			Name:          "anthropic",
			DefaultModel:  DefaultAnthropicModel,
			CredentialKey: CredentialAnthropic,
			Factory: func(_ context.Context, apiKey string, opts Options) (Provider, error) {
				return NewAnthropicProvider(apiKey, opts)
			},
		},
		{
			Name:          "gemini",
			DefaultModel:  DefaultGeminiModel,
			CredentialKey: CredentialGemini,
			Factory: func(ctx context.Context, apiKey string, opts Options) (Provider, error) {
				return NewGeminiProvider(ctx, apiKey, opts)
			},
		},
	}
}

// DefaultRegistry returns a registry with every built-in provider registered.
func DefaultRegistry(creds Credentials, defaults Options, opts ...RegistryOption) *Registry {
	reg := NewRegistry(creds, defaults, opts...)
	for _, desc := range BuiltinDescriptors() {
		// Built-in names are distinct, so registration cannot fail.
		_ = reg.Register(desc)
	}
	return reg
}
