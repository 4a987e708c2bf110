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
)

const (
	// NominatimBaseURL is the public Nominatim search endpoint.
	NominatimBaseURL = "https://nominatim.openstreetmap.org/search"
	// User-Agent MUST include valid contact info per Nominatim usage policy:
	// https://operations.osmfoundation.org/policies/nominatim/
	nominatimUserAgent = "Hermes-Enrichment/1.0 (https://github.com/UnknownOlympus/hermes)"
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client    HTTPClient   // HTTP client for making requests
	baseURL   string       // Base URL for the Nominatim API
	log       *slog.Logger // Logger for logging operations
	userAgent string
}

// nominatimResponse represents the JSON response from Nominatim API.
type nominatimResponse struct {
	Lat string `json:"lat"` // Latitude as string
	Lon string `json:"lon"` // Longitude as string
}

// NewNominatimProvider creates a new Nominatim geocoding provider.
// Uses the public Nominatim API endpoint by default.
func NewNominatimProvider(timeout time.Duration, log *slog.Logger) *NominatimProvider {
	return NewNominatimProviderWithClient(httpclient.New(timeout), log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(client HTTPClient, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:    client,
		baseURL:   NominatimBaseURL,
		log:       log,
		userAgent: nominatimUserAgent,
	}
}

// Geocode converts an address to geographic coordinates using the Nominatim API.
// The city hint, when set, is appended to every query.
//
// Uses a progressive fallback strategy for addresses the index does not know:
// 1. Try full address
// 2. Drop the last comma-separated component
// 3. Drop the last two components
// 4. Try the first component only
//
// Note: Nominatim has a rate limit of 1 request/second for fair use.
func (np *NominatimProvider) Geocode(ctx context.Context, address, cityHint string) (*models.Coordinates, error) {
	const op = "geocode"

	if address == "" {
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeNominatim), op, errEmptyAddress)
	}

	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address, "city", cityHint)

	addressVariations := generateAddressFallbacks(address)

	for idx, addrVariation := range addressVariations {
		coords, err := np.geocodeSingleAddress(ctx, withCityHint(addrVariation, cityHint))
		if err == nil {
			if idx > 0 {
				np.log.InfoContext(ctx, "Geocoded using fallback address",
					"original", address,
					"fallback", addrVariation,
					"fallback_level", idx)
			}
			return coords, nil
		}

		// Anything but an empty result set is final.
		if !errors.Is(err, errNoResults) {
			return nil, err
		}

		np.log.DebugContext(ctx, "Address variation returned no results, trying fallback",
			"variation", addrVariation,
			"fallback_level", idx)
	}

	np.log.WarnContext(ctx, "All address fallbacks exhausted",
		"address", address,
		"variations_tried", len(addressVariations))

	return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeNominatim), op, errNoResults)
}

// generateAddressFallbacks creates a list of progressively simpler address variations.
func generateAddressFallbacks(address string) []string {
	seen := make(map[string]bool)
	variations := []string{}

	addVariation := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variations = append(variations, v)
		}
	}

	addVariation(address)

	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 1 {
		addVariation(strings.Join(parts[:len(parts)-1], ", "))

		const lenComponents = 2
		if len(parts) > lenComponents {
			addVariation(strings.Join(parts[:len(parts)-2], ", "))
		}

		addVariation(parts[0])
	}

	return variations
}

func withCityHint(address, cityHint string) string {
	if cityHint == "" || strings.Contains(address, cityHint) {
		return address
	}
	return address + ", " + cityHint
}

// geocodeSingleAddress performs a single geocoding request without fallback logic.
func (np *NominatimProvider) geocodeSingleAddress(ctx context.Context, query string) (*models.Coordinates, error) {
	const op = "geocode"

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("accept-language", "zh,en")

	var results []nominatimResponse
	err := httpclient.GetJSON(ctx, np.client, httpclient.Request{
		Provider: string(ProviderTypeNominatim),
		Op:       op,
		URL:      np.baseURL + "?" + params.Encode(),
		Header:   map[string]string{"User-Agent": np.userAgent},
	}, &results)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, errNoResults
	}

	np.log.DebugContext(ctx, "Nominatim found result", "lat", results[0].Lat, "lon", results[0].Lon)

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, apierr.Malformed(string(ProviderTypeNominatim), op, fmt.Errorf("invalid latitude: %s", results[0].Lat))
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, apierr.Malformed(string(ProviderTypeNominatim), op, fmt.Errorf("invalid longitude: %s", results[0].Lon))
	}

	return &models.Coordinates{Latitude: lat, Longitude: lon}, nil
}
