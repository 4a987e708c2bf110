package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/time/rate"
)

// AmapGeocodeURL is the Amap (Gaode) geocoding v3 endpoint.
const AmapGeocodeURL = "https://restapi.amap.com/v3/geocode/geo"

// AmapProvider implements geocoding using the Amap web API.
// Besides coordinates it exposes the administrative code used by the weather API.
type AmapProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the geocoding API
	apiKey  string        // Amap web service key
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// AmapPlace is a single geocoding match.
type AmapPlace struct {
	Adcode      string
	Coordinates models.Coordinates
}

// Amap answers with status "1" on success and "0" otherwise; info carries the reason.
type amapGeocodeResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Geocodes []struct {
		Adcode   string `json:"adcode"`
		Location string `json:"location"` // "lng,lat"
	} `json:"geocodes"`
}

// NewAmapProvider creates a new Amap geocoding provider.
func NewAmapProvider(apiKey string, rateLimit int, timeout time.Duration, log *slog.Logger) *AmapProvider {
	return NewAmapProviderWithClient(httpclient.New(timeout), apiKey, rate.NewLimiter(rate.Limit(rateLimit), rateLimit), log)
}

// NewAmapProviderWithClient allows injecting custom HTTP client.
func NewAmapProviderWithClient(client HTTPClient, apiKey string, limiter *rate.Limiter, log *slog.Logger) *AmapProvider {
	return &AmapProvider{
		client:  client,
		baseURL: AmapGeocodeURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Geocode converts address into geographic coordinates using Amap geocoding v3.
func (ap *AmapProvider) Geocode(ctx context.Context, address, cityHint string) (*models.Coordinates, error) {
	place, err := ap.Lookup(ctx, address, cityHint)
	if err != nil {
		return nil, err
	}
	return &place.Coordinates, nil
}

// Lookup returns the first match for address, including its adcode.
func (ap *AmapProvider) Lookup(ctx context.Context, address, cityHint string) (*AmapPlace, error) {
	const op = "geocode"

	if address == "" {
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeAmap), op, errEmptyAddress)
	}

	if err := ap.limiter.Wait(ctx); err != nil {
		return nil, apierr.Transport(string(ProviderTypeAmap), op, fmt.Errorf("rate limit wait: %w", err))
	}

	ap.log.DebugContext(ctx, "Geocoding using Amap", "address", address, "city", cityHint)

	query := url.Values{}
	query.Set("key", ap.apiKey)
	query.Set("address", address)
	if cityHint != "" {
		query.Set("city", cityHint)
	}

	var resp amapGeocodeResponse
	err := httpclient.GetJSON(ctx, ap.client, httpclient.Request{
		Provider: string(ProviderTypeAmap),
		Op:       op,
		URL:      ap.baseURL + "?" + query.Encode(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != "1" {
		ap.log.WarnContext(ctx, "Amap geocoding failed", "address", address, "info", resp.Info)
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeAmap), op, errors.New(resp.Info))
	}
	if len(resp.Geocodes) == 0 {
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeAmap), op, errNoResults)
	}

	first := resp.Geocodes[0]
	coords, err := parseLngLat(first.Location)
	if err != nil {
		return nil, apierr.Malformed(string(ProviderTypeAmap), op, err)
	}

	return &AmapPlace{Adcode: first.Adcode, Coordinates: *coords}, nil
}

// parseLngLat parses Amap's "lng,lat" location string.
func parseLngLat(location string) (*models.Coordinates, error) {
	lngStr, latStr, ok := strings.Cut(location, ",")
	if !ok {
		return nil, fmt.Errorf("invalid location %q", location)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", lngStr, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", latStr, err)
	}

	return &models.Coordinates{Latitude: lat, Longitude: lng}, nil
}
