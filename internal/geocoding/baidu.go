package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/time/rate"
)

// BaiduGeocodeURL is the Baidu Maps geocoding v3 endpoint.
const BaiduGeocodeURL = "https://api.map.baidu.com/geocoding/v3/"

// BaiduProvider implements geocoding using the Baidu Maps web API.
type BaiduProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the geocoding API
	ak      string        // Baidu access key
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// baiduGeocodeResponse is the geocoding v3 payload. On failure Baidu sends
// "result": [] instead of an object, so result is decoded only on status 0.
type baiduGeocodeResponse struct {
	Status  int             `json:"status"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type baiduGeocodeResult struct {
	Location *struct {
		Lng float64 `json:"lng"`
		Lat float64 `json:"lat"`
	} `json:"location"`
}

// NewBaiduProvider creates a new Baidu geocoding provider.
func NewBaiduProvider(ak string, rateLimit int, timeout time.Duration, log *slog.Logger) *BaiduProvider {
	return NewBaiduProviderWithClient(httpclient.New(timeout), ak, rate.NewLimiter(rate.Limit(rateLimit), rateLimit), log)
}

// NewBaiduProviderWithClient allows injecting custom HTTP client.
func NewBaiduProviderWithClient(client HTTPClient, ak string, limiter *rate.Limiter, log *slog.Logger) *BaiduProvider {
	return &BaiduProvider{
		client:  client,
		baseURL: BaiduGeocodeURL,
		ak:      ak,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts address into geographic coordinates using Baidu geocoding v3.
func (bp *BaiduProvider) Geocode(ctx context.Context, address, cityHint string) (*models.Coordinates, error) {
	const op = "geocode"

	if address == "" {
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeBaidu), op, errEmptyAddress)
	}

	if err := bp.limiter.Wait(ctx); err != nil {
		return nil, apierr.Transport(string(ProviderTypeBaidu), op, fmt.Errorf("rate limit wait: %w", err))
	}

	bp.log.DebugContext(ctx, "Geocoding using Baidu", "address", address, "city", cityHint)

	query := url.Values{}
	query.Set("address", address)
	if cityHint != "" {
		query.Set("city", cityHint)
	}
	query.Set("output", "json")
	query.Set("ak", bp.ak)

	var resp baiduGeocodeResponse
	err := httpclient.GetJSON(ctx, bp.client, httpclient.Request{
		Provider: string(ProviderTypeBaidu),
		Op:       op,
		URL:      bp.baseURL + "?" + query.Encode(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != 0 {
		bp.log.WarnContext(ctx, "Baidu geocoding failed", "address", address, "status", resp.Status, "msg", resp.message())
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeBaidu), op,
			fmt.Errorf("status %d: %s", resp.Status, resp.message()))
	}

	var result baiduGeocodeResult
	if err = json.Unmarshal(resp.Result, &result); err != nil {
		return nil, apierr.Malformed(string(ProviderTypeBaidu), op, fmt.Errorf("failed to decode result: %w", err))
	}
	if result.Location == nil {
		return nil, apierr.Malformed(string(ProviderTypeBaidu), op, errMissingLocation)
	}

	return &models.Coordinates{Latitude: result.Location.Lat, Longitude: result.Location.Lng}, nil
}

func (r baiduGeocodeResponse) message() string {
	if r.Msg != "" {
		return r.Msg
	}
	return r.Message
}
