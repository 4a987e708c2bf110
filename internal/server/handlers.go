package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/llm"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/orders"
)

const maxBodyBytes = 4 << 20

type enrichRequest struct {
	Origin string          `json:"origin"`
	Locale string          `json:"locale"`
	Orders json.RawMessage `json:"orders"`
}

type enrichResponse struct {
	Origin string           `json:"origin"`
	Orders []map[string]any `json:"orders"`
}

type emailRequest struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Context   string `json:"context"`
	Tone      string `json:"tone"`
	Stream    bool   `json:"stream"`
}

type emailResponse struct {
	Text      string `json:"text"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
}

// handleEnrich accepts either a JSON envelope {origin, locale, orders} or a raw
// YAML order sequence with origin and locale in the query string.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req enrichRequest
	format := orders.FormatJSON
	if isYAML(r.Header.Get("Content-Type")) {
		format = orders.FormatYAML
		req.Orders = body
	} else if err = json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if v := r.URL.Query().Get("origin"); v != "" {
		req.Origin = v
	}
	if v := r.URL.Query().Get("locale"); v != "" {
		req.Locale = v
	}
	if req.Origin == "" {
		req.Origin = s.opts.Origin
	}

	locale := s.opts.Locale
	if req.Locale != "" {
		if locale, err = orders.ParseLocale(req.Locale); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	batch, err := orders.Decode(bytes.NewReader(req.Orders), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	enriched, err := s.enricher.Enrich(ctx, req.Origin, batch)
	if err != nil {
		s.log.ErrorContext(ctx, "Enrichment failed", "origin", req.Origin, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, enrichResponse{
		Origin: req.Origin,
		Orders: orders.RenderAll(enriched, locale),
	})
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emailRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	gen := models.GenerationRequest{
		Recipient: req.Recipient,
		Subject:   req.Subject,
		Context:   req.Context,
		Tone:      req.Tone,
	}
	if err := llm.Validate(gen); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	provider, release, err := s.provider(r, req.Provider, req.Model)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer release()

	if req.Stream {
		s.streamEmail(w, r, provider, gen)
		return
	}

	result, err := llm.Generate(ctx, provider, gen)
	if err != nil {
		s.log.ErrorContext(ctx, "Email generation failed", "provider", provider.Name(), "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, emailResponse{
		Text:      result.Text,
		Provider:  result.Provider,
		Model:     result.Model,
		LatencyMs: result.Latency.Milliseconds(),
	})
}

func (s *Server) streamEmail(w http.ResponseWriter, r *http.Request, provider llm.Provider, gen models.GenerationRequest) {
	ctx := r.Context()

	stream, err := llm.GenerateStream(ctx, provider, gen)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Hermes-Provider", provider.Name())
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for stream.Next() {
		if _, err = io.WriteString(w, stream.Text()); err != nil {
			s.log.WarnContext(ctx, "Client went away during stream", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err = stream.Err(); err != nil {
		s.log.ErrorContext(ctx, "Email stream failed", "provider", provider.Name(), "error", err)
	}
}

// provider returns the requested provider or the active one. The release
// func closes providers built for this request only.
func (s *Server) provider(r *http.Request, name, model string) (llm.Provider, func(), error) {
	if name == "" && model == "" {
		active := s.generators.Active()
		if active == nil {
			return nil, nil, apierr.ErrNoProviderSelected
		}
		return active, func() {}, nil
	}

	if name == "" {
		active := s.generators.Active()
		if active == nil {
			return nil, nil, apierr.ErrNoProviderSelected
		}
		name = active.Name()
	}

	p, err := s.generators.Build(r.Context(), name, model)
	if err != nil {
		return nil, nil, err
	}

	release := func() {
		if c, ok := p.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				s.log.WarnContext(r.Context(), "Failed to close provider", "provider", name, "error", cerr)
			}
		}
	}
	return p, release, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apierr.ErrInvalidRequest),
		errors.Is(err, apierr.ErrUnknownProvider),
		errors.Is(err, orders.ErrUnsupportedFormat),
		errors.Is(err, orders.ErrUnsupportedLocale):
		return http.StatusBadRequest
	case errors.Is(err, apierr.ErrOriginUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apierr.ErrMissingCredential),
		errors.Is(err, apierr.ErrNoProviderSelected):
		return http.StatusServiceUnavailable
	case errors.Is(err, apierr.ErrGeneration),
		errors.Is(err, apierr.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isYAML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.Contains(mediaType, "yaml")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
