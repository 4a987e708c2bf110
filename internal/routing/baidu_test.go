package routing_test

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newBaidu(client routing.HTTPClient) *routing.BaiduProvider {
	return routing.NewBaiduProviderWithClient(client, "test-ak", rate.NewLimiter(rate.Inf, 1), slog.Default())
}

func TestBaiduProvider_Route(t *testing.T) {
	ctx := t.Context()

	t.Run("sends lat,lng and returns the first route", func(t *testing.T) {
		client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "/direction/v2/driving", req.URL.Path)
			query := req.URL.Query()
			assert.Equal(t, "28.1,112.9", query.Get("origin"))
			assert.Equal(t, "28.2,113", query.Get("destination"))
			assert.Equal(t, "test-ak", query.Get("ak"))

			return jsonResponse(http.StatusOK,
				`{"status":0,"message":"ok","result":{"routes":[{"distance":1234.5,"duration":125},{"distance":1,"duration":1}]}}`), nil
		}}

		route, err := newBaidu(client).Route(ctx, origin, destination)

		require.NoError(t, err)
		assert.InEpsilon(t, 1234.5, route.DistanceMeters, 1e-9)
		assert.InEpsilon(t, 125.0, route.DurationSeconds, 1e-9)
	})

	t.Run("non-zero status is route not found", func(t *testing.T) {
		client := staticClient(http.StatusOK, `{"status":2,"message":"参数错误","result":[]}`)

		_, err := newBaidu(client).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrRouteNotFound)
		assert.Contains(t, err.Error(), "参数错误")
	})

	t.Run("no routes is route not found", func(t *testing.T) {
		client := staticClient(http.StatusOK, `{"status":0,"result":{"routes":[]}}`)

		_, err := newBaidu(client).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrRouteNotFound)
	})

	t.Run("wrong result shape is malformed", func(t *testing.T) {
		client := staticClient(http.StatusOK, `{"status":0,"result":{"routes":"nope"}}`)

		_, err := newBaidu(client).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrMalformedResponse)
	})

	t.Run("transport failure", func(t *testing.T) {
		client := &mockHTTPClient{doFunc: func(_ *http.Request) (*http.Response, error) {
			return nil, assert.AnError
		}}

		_, err := newBaidu(client).Route(ctx, origin, destination)

		require.ErrorIs(t, err, apierr.ErrTransport)
	})
}
