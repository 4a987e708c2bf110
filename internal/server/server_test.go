package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/llm"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/orders"
	"github.com/UnknownOlympus/hermes/internal/server"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubEnricher struct {
	err        error
	gotOrigin  string
	gotOrders  []models.Order
	enrichment models.Enrichment
}

func (s *stubEnricher) Enrich(_ context.Context, origin string, batch []models.Order) ([]models.Order, error) {
	s.gotOrigin, s.gotOrders = origin, batch
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Order, len(batch))
	for i, o := range batch {
		out[i] = o
		out[i].Enrichment = s.enrichment
	}
	return out, nil
}

type stubGenerators struct {
	active   llm.Provider
	built    llm.Provider
	buildErr error
	gotName  string
	gotModel string
}

func (s *stubGenerators) Build(_ context.Context, name, model string) (llm.Provider, error) {
	s.gotName, s.gotModel = name, model
	return s.built, s.buildErr
}

func (s *stubGenerators) Active() llm.Provider { return s.active }

func newServer(enricher server.Enricher, gens server.Generators, opts server.Options) *server.Server {
	return server.New(slog.Default(), enricher, gens, metrics.NewRegistry(), opts)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	srv := newServer(&stubEnricher{}, &stubGenerators{}, server.Options{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(&stubEnricher{}, &stubGenerators{}, server.Options{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEnrich(t *testing.T) {
	t.Run("json envelope", func(t *testing.T) {
		enricher := &stubEnricher{enrichment: models.Enrichment{DistanceKm: 2.26, ETAMinutes: 7, Bearing: models.South}}
		srv := newServer(enricher, &stubGenerators{}, server.Options{Origin: "湘熙水郡"})
		body := `{"locale":"en","orders":[{"id":1,"address":"洋湖天序","name":"朱文霞"}]}`
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/enrich", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "湘熙水郡", enricher.gotOrigin)
		require.Len(t, enricher.gotOrders, 1)
		assert.Equal(t, "1", enricher.gotOrders[0].ID)

		var resp struct {
			Origin string           `json:"origin"`
			Orders []map[string]any `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Orders, 1)
		assert.Equal(t, "2.3", resp.Orders[0]["distance_km"])
		assert.Equal(t, "7 min", resp.Orders[0]["eta"])
		assert.Equal(t, "S", resp.Orders[0]["bearing"])
		assert.Equal(t, "朱文霞", resp.Orders[0]["name"])
	})

	t.Run("yaml body with query origin", func(t *testing.T) {
		enricher := &stubEnricher{}
		enricher.enrichment.Degrade(models.ReasonNoAddress)
		srv := newServer(enricher, &stubGenerators{}, server.Options{Origin: "default", Locale: orders.LocaleZH})
		req := httptest.NewRequest(http.MethodPost, "/v1/orders/enrich?origin=龙湖新壹城", strings.NewReader("- id: 3\n"))
		req.Header.Set("Content-Type", "application/yaml")
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "龙湖新壹城", enricher.gotOrigin)
		assert.Contains(t, rec.Body.String(), "无地址")
	})

	t.Run("bad orders", func(t *testing.T) {
		srv := newServer(&stubEnricher{}, &stubGenerators{}, server.Options{Origin: "o"})
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/enrich",
			strings.NewReader(`{"orders":{"id":1}}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad locale", func(t *testing.T) {
		srv := newServer(&stubEnricher{}, &stubGenerators{}, server.Options{Origin: "o"})
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/enrich",
			strings.NewReader(`{"locale":"fr","orders":[]}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("origin unresolved", func(t *testing.T) {
		enricher := &stubEnricher{err: apierr.ErrOriginUnresolved}
		srv := newServer(enricher, &stubGenerators{}, server.Options{Origin: "o"})
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/orders/enrich", strings.NewReader(`{"orders":[]}`)))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "origin")
	})
}

const emailBody = `{"recipient":"张经理","subject":"项目进度","context":"本周完成了接口联调"}`

func TestEmail(t *testing.T) {
	t.Run("active provider", func(t *testing.T) {
		provider := mocks.NewTextProvider(t)
		provider.On("Name").Return("qwen").Maybe()
		provider.On("Model").Return("qwen-plus").Maybe()
		provider.On("Complete", mock.Anything, mock.Anything).Return("尊敬的张经理：", nil).Once()

		srv := newServer(&stubEnricher{}, &stubGenerators{active: provider}, server.Options{})
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(emailBody)))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "尊敬的张经理：", body["text"])
		assert.Equal(t, "qwen", body["provider"])
		assert.Equal(t, "qwen-plus", body["model"])
	})

	t.Run("named provider is built per request", func(t *testing.T) {
		provider := mocks.NewTextProvider(t)
		provider.On("Name").Return("deepseek").Maybe()
		provider.On("Model").Return("deepseek-chat").Maybe()
		provider.On("Complete", mock.Anything, mock.Anything).Return("hi", nil).Once()
		gens := &stubGenerators{built: provider}

		srv := newServer(&stubEnricher{}, gens, server.Options{})
		body := strings.Replace(emailBody, "{", `{"provider":"deepseek","model":"deepseek-chat",`, 1)
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "deepseek", gens.gotName)
		assert.Equal(t, "deepseek-chat", gens.gotModel)
	})

	t.Run("stream", func(t *testing.T) {
		provider := mocks.NewTextProvider(t)
		provider.On("Name").Return("qwen").Maybe()
		provider.On("Model").Return("qwen-plus").Maybe()
		provider.On("Stream", mock.Anything, mock.Anything).Return(llm.StaticStream("qwen", "尊敬的", "张经理"), nil).Once()

		srv := newServer(&stubEnricher{}, &stubGenerators{active: provider}, server.Options{})
		body := strings.Replace(emailBody, "{", `{"stream":true,`, 1)
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "尊敬的张经理", rec.Body.String())
		assert.Equal(t, "qwen", rec.Header().Get("X-Hermes-Provider"))
	})

	tests := []struct {
		name       string
		body       string
		gens       *stubGenerators
		wantStatus int
	}{
		{name: "invalid json", body: `{`, gens: &stubGenerators{}, wantStatus: http.StatusBadRequest},
		{name: "missing fields", body: `{"recipient":"a"}`, gens: &stubGenerators{}, wantStatus: http.StatusBadRequest},
		{name: "no provider selected", body: emailBody, gens: &stubGenerators{}, wantStatus: http.StatusServiceUnavailable},
		{
			name:       "unknown provider",
			body:       strings.Replace(emailBody, "{", `{"provider":"nope",`, 1),
			gens:       &stubGenerators{buildErr: apierr.ErrUnknownProvider},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing credential",
			body:       strings.Replace(emailBody, "{", `{"provider":"openai",`, 1),
			gens:       &stubGenerators{buildErr: apierr.MissingCredential("openai", "OPENAI_API_KEY")},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(&stubEnricher{}, tt.gens, server.Options{})
			rec := httptest.NewRecorder()

			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestEmail_GenerationFailure(t *testing.T) {
	provider := mocks.NewTextProvider(t)
	provider.On("Name").Return("qwen").Maybe()
	provider.On("Model").Return("qwen-plus").Maybe()
	provider.On("Complete", mock.Anything, mock.Anything).
		Return("", apierr.Generation("qwen", "complete", errors.New("quota exceeded"))).Once()

	srv := newServer(&stubEnricher{}, &stubGenerators{active: provider}, server.Options{})
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(emailBody)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "quota exceeded")
}

func TestEmail_RateLimited(t *testing.T) {
	provider := mocks.NewTextProvider(t)
	provider.On("Name").Return("qwen").Maybe()
	provider.On("Model").Return("qwen-plus").Maybe()
	provider.On("Complete", mock.Anything, mock.Anything).Return("ok", nil).Once()

	srv := newServer(&stubEnricher{}, &stubGenerators{active: provider}, server.Options{EmailInterval: time.Hour})

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(emailBody)))
	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(emailBody)))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
