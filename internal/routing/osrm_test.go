package routing_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSRMProvider_Route(t *testing.T) {
	ctx := t.Context()

	t.Run("sends lng,lat path segments", func(t *testing.T) {
		client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "router.project-osrm.org", req.URL.Host)
			assert.Equal(t, "/route/v1/driving/112.9,28.1;113,28.2", req.URL.Path)
			assert.Equal(t, "false", req.URL.Query().Get("overview"))

			return jsonResponse(http.StatusOK, `{"code":"Ok","routes":[{"distance":5300.2,"duration":610.4}]}`), nil
		}}

		route, err := routing.NewOSRMProviderWithClient(client, slog.Default()).Route(ctx, origin, destination)

		require.NoError(t, err)
		assert.InEpsilon(t, 5300.2, route.DistanceMeters, 1e-9)
		assert.InEpsilon(t, 610.4, route.DurationSeconds, 1e-9)
	})

	t.Run("NoRoute code", func(t *testing.T) {
		client := staticClient(http.StatusOK, `{"code":"NoRoute","message":"Impossible route"}`)

		_, err := routing.NewOSRMProviderWithClient(client, slog.Default()).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrRouteNotFound)
	})

	t.Run("4xx is route not found", func(t *testing.T) {
		client := staticClient(http.StatusBadRequest, `{"code":"InvalidQuery"}`)

		_, err := routing.NewOSRMProviderWithClient(client, slog.Default()).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrRouteNotFound)
		require.NotErrorIs(t, err, apierr.ErrTransport)
	})

	t.Run("5xx stays transport", func(t *testing.T) {
		client := staticClient(http.StatusBadGateway, ``)

		_, err := routing.NewOSRMProviderWithClient(client, slog.Default()).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrTransport)
	})

	t.Run("against a local server via factory override", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/route/v1/driving/112.9,28.1;113,28.2", r.URL.Path)
			_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":10,"duration":20}]}`))
		}))
		defer srv.Close()

		provider, err := routing.NewProvider(routing.ProviderConfig{Type: routing.ProviderTypeOSRM, BaseURL: srv.URL + "/"})
		require.NoError(t, err)

		route, err := provider.Route(ctx, origin, destination)

		require.NoError(t, err)
		assert.InEpsilon(t, 10.0, route.DistanceMeters, 1e-9)
	})
}
