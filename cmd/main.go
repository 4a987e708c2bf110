package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/UnknownOlympus/hermes/internal/config"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/llm"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/orders"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/UnknownOlympus/hermes/internal/server"
	"github.com/UnknownOlympus/hermes/internal/service"
	"github.com/UnknownOlympus/hermes/internal/weather"
	"github.com/prometheus/client_golang/prometheus"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const shutdownTimeout = 10 * time.Second

const usage = `usage: hermes <command> [flags]

commands:
  enrich     enrich a batch of delivery orders with distance, ETA and bearing
  email      write an email with the selected text generation provider
  chat       send independent questions to a provider concurrently
  weather    print the live weather of one or more cities
  serve      start the HTTP API
  providers  list text generation providers and their credential status
`

// app carries what every command needs.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// main is the entry point of the application.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}

	reg := metrics.NewRegistry()
	a := &app{
		cfg:     cfg,
		log:     setupLogger(cfg.Env, stderr),
		reg:     reg,
		metrics: metrics.NewMetrics(reg),
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}

	commands := map[string]func(context.Context, []string) error{
		"enrich":    a.enrich,
		"email":     a.email,
		"chat":      a.chat,
		"weather":   a.weather,
		"serve":     a.serve,
		"providers": a.providers,
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	if err = cmd(ctx, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		fmt.Fprintf(stderr, "hermes %s: %v\n", args[0], err)
		return exitError
	}
	return exitOK
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) enrich(ctx context.Context, args []string) error {
	fs := a.flags("enrich")
	in := fs.String("in", "-", "Orders file, - for stdin")
	format := fs.String("format", "", "Input format: json or yaml (defaults to the file extension)")
	origin := fs.String("origin", a.cfg.Geo.Origin, "Origin address of the delivery run")
	locale := fs.String("locale", string(a.cfg.Locale), "Output language: zh or en")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc, err := orders.ParseLocale(*locale)
	if err != nil {
		return err
	}

	inputFormat := orders.FormatFromPath(*in)
	if *format != "" {
		if inputFormat, err = orders.ParseFormat(*format); err != nil {
			return err
		}
	}

	batch, err := a.readOrders(*in, inputFormat)
	if err != nil {
		return err
	}

	enricher, err := a.newEnricher()
	if err != nil {
		return err
	}

	enriched, err := enricher.Enrich(ctx, *origin, batch)
	if err != nil {
		return err
	}

	return orders.Encode(a.stdout, enriched, loc)
}

func (a *app) readOrders(path string, format orders.Format) ([]models.Order, error) {
	if path == "-" {
		return orders.Decode(a.stdin, format)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open orders: %w", err)
	}
	defer file.Close()

	return orders.Decode(file, format)
}

func (a *app) newEnricher() (*service.Enricher, error) {
	geoConfig := geocoding.ProviderConfig{
		Type:      geocoding.ProviderType(a.cfg.Geo.Provider),
		APIKey:    a.cfg.GeoKey(a.cfg.Geo.Provider),
		RateLimit: a.cfg.RateLimit,
		Timeout:   a.cfg.Timeout,
		Logger:    a.log,
	}
	if geoConfig.Type == geocoding.ProviderTypeAmap {
		geoConfig.BaseURL = a.cfg.Amap.GeocodeURL
	}

	geocoder, err := geocoding.NewProvider(geoConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}

	router, err := routing.NewProvider(routing.ProviderConfig{
		Type:      routing.ProviderType(a.cfg.Geo.Route),
		APIKey:    a.cfg.GeoKey(a.cfg.Geo.Route),
		RateLimit: a.cfg.RateLimit,
		Timeout:   a.cfg.Timeout,
		Logger:    a.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create routing provider: %w", err)
	}

	a.log.Info("Map providers initialized", "geocoder", a.cfg.Geo.Provider, "router", a.cfg.Geo.Route)

	return service.NewEnricher(a.log, geocoder, router, a.metrics, service.EnricherOptions{
		GeoProvider:   a.cfg.Geo.Provider,
		RouteProvider: a.cfg.Geo.Route,
		CityHint:      a.cfg.Geo.CityHint,
		Workers:       a.cfg.Workers,
	}), nil
}

func (a *app) newRegistry() *llm.Registry {
	return llm.DefaultRegistry(a.cfg.Credentials(), llm.Options{
		Temperature: a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Logger:      a.log,
	}, llm.WithMetrics(a.metrics))
}

func (a *app) email(ctx context.Context, args []string) error {
	fs := a.flags("email")
	recipient := fs.String("recipient", "", "Recipient name")
	subject := fs.String("subject", "", "Email subject")
	body := fs.String("context", "", "What the email should say")
	tone := fs.String("tone", models.DefaultTone, "Tone of the email")
	provider := fs.String("provider", a.cfg.LLM.Provider, "Text generation provider")
	model := fs.String("model", a.cfg.LLM.Model, "Model (defaults to the provider's default)")
	stream := fs.Bool("stream", false, "Print the email as it is generated")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := models.GenerationRequest{Recipient: *recipient, Subject: *subject, Context: *body, Tone: *tone}
	if err := llm.Validate(req); err != nil {
		return err
	}

	registry := a.newRegistry()
	defer a.closeRegistry(registry)

	if _, err := registry.Select(ctx, *provider, *model); err != nil {
		return err
	}

	if *stream {
		s, err := registry.Stream(ctx, req)
		if err != nil {
			return err
		}
		defer s.Close()

		for s.Next() {
			fmt.Fprint(a.stdout, s.Text())
		}
		fmt.Fprintln(a.stdout)
		return s.Err()
	}

	result, err := registry.Generate(ctx, req)
	if err != nil {
		return err
	}

	a.log.Info("Email generated", "provider", result.Provider, "model", result.Model, "latency", result.Latency)
	fmt.Fprintln(a.stdout, result.Text)
	return nil
}

func (a *app) chat(ctx context.Context, args []string) error {
	fs := a.flags("chat")
	provider := fs.String("provider", a.cfg.LLM.Provider, "Text generation provider")
	model := fs.String("model", a.cfg.LLM.Model, "Model (defaults to the provider's default)")
	limit := fs.Int("limit", a.cfg.Workers, "Maximum concurrent requests")
	if err := fs.Parse(args); err != nil {
		return err
	}

	questions, err := a.linesOrArgs(fs.Args())
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return errors.New("no questions given")
	}

	registry := a.newRegistry()
	defer a.closeRegistry(registry)

	active, err := registry.Select(ctx, *provider, *model)
	if err != nil {
		return err
	}

	start := time.Now()
	results := llm.CompleteAll(ctx, active, questions, *limit)

	failed := 0
	for _, res := range results {
		fmt.Fprintf(a.stdout, "Q%d: %s\n", res.Index+1, questions[res.Index])
		if res.Err != nil {
			failed++
			fmt.Fprintf(a.stdout, "A%d: error: %v\n\n", res.Index+1, res.Err)
			continue
		}
		fmt.Fprintf(a.stdout, "A%d: %s\n\n", res.Index+1, res.Value)
	}

	a.log.Info("Chat batch finished", "questions", len(questions), "failed", failed, "elapsed", time.Since(start))
	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(questions))
	}
	return nil
}

func (a *app) weather(ctx context.Context, args []string) error {
	fs := a.flags("weather")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cities, err := a.linesOrArgs(fs.Args())
	if err != nil {
		return err
	}
	if len(cities) == 0 {
		return errors.New("no city given")
	}

	amap, err := geocoding.NewAmapFromConfig(geocoding.ProviderConfig{
		Type:      geocoding.ProviderTypeAmap,
		APIKey:    a.cfg.Keys.Amap,
		RateLimit: a.cfg.RateLimit,
		Timeout:   a.cfg.Timeout,
		BaseURL:   a.cfg.Amap.GeocodeURL,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	svc := weather.NewService(amap, a.cfg.Keys.Amap, a.cfg.Amap.WeatherURL, a.cfg.Timeout, a.log).
		WithMetrics(a.metrics)

	var failures []error
	for _, city := range cities {
		live, err := svc.Live(ctx, city)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", city, err))
			fmt.Fprintf(a.stderr, "failed to get weather for %s: %v\n", city, err)
			continue
		}
		fmt.Fprintln(a.stdout, weather.Format(city, live))
		fmt.Fprintln(a.stdout)
	}

	return errors.Join(failures...)
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := a.flags("serve")
	port := fs.Int("port", a.cfg.Port, "HTTP port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	enricher, err := a.newEnricher()
	if err != nil {
		return err
	}

	registry := a.newRegistry()
	defer a.closeRegistry(registry)

	if _, err = registry.Select(ctx, a.cfg.LLM.Provider, a.cfg.LLM.Model); err != nil {
		a.log.WarnContext(ctx, "No default text generation provider, requests must name one", "error", err)
	}

	srv := server.New(a.log, enricher, registry, a.reg, server.Options{
		Addr:          fmt.Sprintf(":%d", *port),
		Origin:        a.cfg.Geo.Origin,
		Locale:        a.cfg.Locale,
		CORSOrigins:   a.cfg.CORSOrigins,
		EmailInterval: a.cfg.EmailInterval,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.log.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	a.log.Info("Application stopped gracefully.")
	return nil
}

func (a *app) providers(_ context.Context, args []string) error {
	fs := a.flags("providers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry := a.newRegistry()

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDEFAULT MODEL\tCREDENTIAL\tSTATUS")
	for _, name := range registry.Names() {
		desc, _ := registry.Descriptor(name)

		status := "missing"
		if registry.HasCredential(name) {
			status = "ok"
		}
		if name == a.cfg.LLM.Provider {
			status += " (default)"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", desc.Name, desc.DefaultModel, desc.CredentialKey, status)
	}
	return tw.Flush()
}

// linesOrArgs returns args, or the non-empty lines of stdin when there are none.
func (a *app) linesOrArgs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	var lines []string
	scanner := bufio.NewScanner(a.stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return lines, nil
}

func (a *app) closeRegistry(registry *llm.Registry) {
	if err := registry.Close(); err != nil {
		a.log.Warn("Failed to close text generation provider", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
// Logs go to w so that command output on stdout stays clean.
func setupLogger(env string, w io.Writer) *slog.Logger {
	var log *slog.Logger

	dropTime := func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{}
		}
		return a
	}

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(w, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
