package weather_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/weather"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

type stubResolver struct {
	place *geocoding.AmapPlace
	err   error
	calls int
}

func (s *stubResolver) Lookup(_ context.Context, _, _ string) (*geocoding.AmapPlace, error) {
	s.calls++
	return s.place, s.err
}

func respond(body string) *mockHTTPClient {
	return &mockHTTPClient{doFunc: func(_ *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
	}}
}

func TestService_Live(t *testing.T) {
	ctx := t.Context()
	changsha := &stubResolver{place: &geocoding.AmapPlace{Adcode: "430100"}}

	t.Run("queries by adcode", func(t *testing.T) {
		client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "/v3/weather/weatherInfo", req.URL.Path)
			assert.Equal(t, "430100", req.URL.Query().Get("city"))
			assert.Equal(t, "test-key", req.URL.Query().Get("key"))

			body := `{"status":"1","info":"OK","lives":[{"province":"湖南","city":"长沙市","adcode":"430100",` +
				`"weather":"晴","temperature":"26","winddirection":"东南","windpower":"≤3","humidity":"60",` +
				`"reporttime":"2024-05-01 10:00:00"}]}`
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(body))}, nil
		}}
		svc := weather.NewServiceWithClient(changsha, client, "test-key", slog.Default())

		live, err := svc.Live(ctx, "长沙")

		require.NoError(t, err)
		assert.Equal(t, "晴", live.Weather)
		assert.Equal(t, "26", live.Temperature)
		assert.Equal(t, "东南", live.WindDirection)
	})

	t.Run("empty city", func(t *testing.T) {
		resolver := &stubResolver{}
		svc := weather.NewServiceWithClient(resolver, respond(`{}`), "k", slog.Default())

		_, err := svc.Live(ctx, "  ")

		require.ErrorIs(t, err, apierr.ErrInvalidRequest)
		assert.Zero(t, resolver.calls)
	})

	t.Run("unknown city", func(t *testing.T) {
		resolver := &stubResolver{err: apierr.New(apierr.ErrAddressNotFound, "amap", "geocode", nil)}
		svc := weather.NewServiceWithClient(resolver, respond(`{}`), "k", slog.Default())

		_, err := svc.Live(ctx, "亚特兰蒂斯")

		require.ErrorIs(t, err, apierr.ErrAddressNotFound)
	})

	t.Run("failure status", func(t *testing.T) {
		svc := weather.NewServiceWithClient(changsha, respond(`{"status":"0","info":"INVALID_USER_KEY"}`), "k", slog.Default())

		_, err := svc.Live(ctx, "长沙")

		require.ErrorIs(t, err, apierr.ErrAddressNotFound)
		assert.Contains(t, err.Error(), "INVALID_USER_KEY")
	})

	t.Run("no lives", func(t *testing.T) {
		svc := weather.NewServiceWithClient(changsha, respond(`{"status":"1","lives":[]}`), "k", slog.Default())

		_, err := svc.Live(ctx, "长沙")

		require.ErrorIs(t, err, apierr.ErrAddressNotFound)
	})

	t.Run("malformed", func(t *testing.T) {
		svc := weather.NewServiceWithClient(changsha, respond(`{"status":"1","lives":"x"}`), "k", slog.Default())

		_, err := svc.Live(ctx, "长沙")

		require.ErrorIs(t, err, apierr.ErrMalformedResponse)
	})
}

func TestService_LiveRecordsMetrics(t *testing.T) {
	mtr := metrics.NewMetrics(prometheus.NewRegistry())
	resolver := &stubResolver{place: &geocoding.AmapPlace{Adcode: "430100"}}
	svc := weather.NewServiceWithClient(resolver, respond(`{"status":"1","lives":[{"weather":"晴"}]}`), "k", slog.Default()).
		WithMetrics(mtr)

	_, err := svc.Live(t.Context(), "长沙")
	require.NoError(t, err)

	_, err = weather.NewServiceWithClient(resolver, respond(`{"status":"0"}`), "k", slog.Default()).
		WithMetrics(mtr).
		Live(t.Context(), "长沙")
	require.Error(t, err)

	ok := mtr.ProviderCalls.WithLabelValues(metrics.ComponentWeather, "amap", metrics.OutcomeSuccess)
	failed := mtr.ProviderCalls.WithLabelValues(metrics.ComponentWeather, "amap", metrics.OutcomeFailure)
	assert.InDelta(t, 1.0, testutil.ToFloat64(ok), 0.0001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(failed), 0.0001)
}

func TestFormat(t *testing.T) {
	out := weather.Format("长沙", &models.Weather{Weather: "多云", Temperature: "22", Humidity: "80"})

	assert.Contains(t, out, "长沙当前天气信息：")
	assert.Contains(t, out, "天气状况: 多云")
	assert.Contains(t, out, "实时温度: 22°C")
	assert.Contains(t, out, "风向: 未知风")
	assert.Contains(t, out, "湿度: 80%")
	assert.Contains(t, out, "更新时间: 未知")
}
