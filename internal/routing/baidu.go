package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/time/rate"
)

// BaiduDrivingURL is the Baidu direction v2 driving endpoint.
const BaiduDrivingURL = "https://api.map.baidu.com/direction/v2/driving"

// BaiduProvider resolves driving routes with Baidu direction v2.
// Baidu expects both endpoints as "lat,lng".
type BaiduProvider struct {
	client  HTTPClient
	baseURL string
	ak      string
	log     *slog.Logger
	limiter *rate.Limiter
}

type baiduDrivingResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type baiduDrivingResult struct {
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// NewBaiduProvider creates a Baidu routing provider.
func NewBaiduProvider(ak string, rateLimit int, timeout time.Duration, log *slog.Logger) *BaiduProvider {
	return NewBaiduProviderWithClient(httpclient.New(timeout), ak, rate.NewLimiter(rate.Limit(rateLimit), rateLimit), log)
}

// NewBaiduProviderWithClient allows injecting custom HTTP client.
func NewBaiduProviderWithClient(client HTTPClient, ak string, limiter *rate.Limiter, log *slog.Logger) *BaiduProvider {
	return &BaiduProvider{
		client:  client,
		baseURL: BaiduDrivingURL,
		ak:      ak,
		log:     log,
		limiter: limiter,
	}
}

// Route returns the first driving route Baidu proposes.
func (bp *BaiduProvider) Route(ctx context.Context, origin, destination models.Coordinates) (*models.Route, error) {
	const op = "route"

	if err := bp.limiter.Wait(ctx); err != nil {
		return nil, apierr.Transport(string(ProviderTypeBaidu), op, fmt.Errorf("rate limit wait: %w", err))
	}

	query := url.Values{}
	query.Set("origin", origin.LatLng())
	query.Set("destination", destination.LatLng())
	query.Set("ak", bp.ak)

	bp.log.DebugContext(ctx, "Routing using Baidu", "origin", origin.LatLng(), "destination", destination.LatLng())

	var resp baiduDrivingResponse
	err := httpclient.GetJSON(ctx, bp.client, httpclient.Request{
		Provider: string(ProviderTypeBaidu),
		Op:       op,
		URL:      bp.baseURL + "?" + query.Encode(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != 0 {
		return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeBaidu), op,
			fmt.Errorf("status %d: %s", resp.Status, resp.Message))
	}

	var result baiduDrivingResult
	if err = json.Unmarshal(resp.Result, &result); err != nil {
		return nil, apierr.Malformed(string(ProviderTypeBaidu), op, fmt.Errorf("failed to decode result: %w", err))
	}
	if len(result.Routes) == 0 {
		return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeBaidu), op, errors.New("no routes"))
	}

	first := result.Routes[0]
	return &models.Route{DistanceMeters: first.Distance, DurationSeconds: first.Duration}, nil
}
