package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// OSRMBaseURL is the public OSRM demo server.
const OSRMBaseURL = "https://router.project-osrm.org"

// OSRMProvider resolves driving routes with the OSRM route service.
// OSRM path segments are "lng,lat".
type OSRMProvider struct {
	client  HTTPClient
	baseURL string
	log     *slog.Logger
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// NewOSRMProvider creates an OSRM routing provider against the public demo server.
func NewOSRMProvider(timeout time.Duration, log *slog.Logger) *OSRMProvider {
	return NewOSRMProviderWithClient(httpclient.New(timeout), log)
}

// NewOSRMProviderWithClient allows injecting custom HTTP client.
func NewOSRMProviderWithClient(client HTTPClient, log *slog.Logger) *OSRMProvider {
	return &OSRMProvider{client: client, baseURL: OSRMBaseURL, log: log}
}

// Route returns the first route OSRM proposes.
func (osp *OSRMProvider) Route(ctx context.Context, origin, destination models.Coordinates) (*models.Route, error) {
	const op = "route"

	reqURL := fmt.Sprintf("%s/route/v1/driving/%s;%s?overview=false",
		osp.baseURL, origin.LngLat(), destination.LngLat())

	osp.log.DebugContext(ctx, "Routing using OSRM", "url", reqURL)

	var resp osrmResponse
	err := httpclient.GetJSON(ctx, osp.client, httpclient.Request{
		Provider: string(ProviderTypeOSRM),
		Op:       op,
		URL:      reqURL,
	}, &resp)
	if err != nil {
		// OSRM answers 400 with {"code":"NoRoute"} and the like.
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Code < 500 {
			return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeOSRM), op, statusErr)
		}
		return nil, err
	}

	if resp.Code != "Ok" {
		return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeOSRM), op,
			fmt.Errorf("code %s: %s", resp.Code, resp.Message))
	}
	if len(resp.Routes) == 0 {
		return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeOSRM), op, errors.New("no routes"))
	}

	first := resp.Routes[0]
	return &models.Route{DistanceMeters: first.Distance, DurationSeconds: first.Duration}, nil
}
