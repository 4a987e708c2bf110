package geocoding

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of geocoding provider.
type ProviderType string

const (
	// ProviderTypeBaidu represents Baidu Maps geocoding v3, the default.
	ProviderTypeBaidu ProviderType = "baidu"
	// ProviderTypeAmap represents Amap (Gaode) geocoding v3.
	ProviderTypeAmap ProviderType = "amap"
	// ProviderTypeGoogle represents Google Maps geocoding provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeNominatim represents OpenStreetMap Nominatim geocoding provider.
	ProviderTypeNominatim ProviderType = "nominatim"
)

// defaultRateLimit is the free-tier QPS of the Baidu and Amap web APIs.
const defaultRateLimit = 3

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	Type      ProviderType  // Type of provider to create
	APIKey    string        // API key (Baidu ak, Amap key, Google key)
	RateLimit int           // Requests per second
	Timeout   time.Duration // Per-request timeout, httpclient.DefaultTimeout when zero
	BaseURL   string        // Endpoint override (Amap AD_CODE_URL, tests)
	Logger    *slog.Logger  // Logger for the provider
}

// NewProvider creates a geocoding provider based on the provided configuration.
//
// Supported provider types:
// - "baidu": Baidu Maps geocoding v3 (requires ak)
// - "amap": Amap geocoding v3 (requires key)
// - "google": Google Maps Geocoding API (requires API key)
// - "nominatim": OpenStreetMap Nominatim API (free, no API key required)
//
// Returns apierr.ErrUnknownProvider for an unsupported type and
// apierr.ErrMissingCredential when a keyed provider has no key.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	switch ProviderType(strings.ToLower(string(config.Type))) {
	case ProviderTypeBaidu:
		return newBaiduProvider(config)
	case ProviderTypeAmap:
		return newAmapProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeNominatim:
		return newNominatimProvider(config), nil
	default:
		return nil, fmt.Errorf("%w: geocoding provider %q", apierr.ErrUnknownProvider, config.Type)
	}
}

func newBaiduProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, apierr.MissingCredential(string(ProviderTypeBaidu), "BAIDU_MAP_AK")
	}
	applyDefaultRate(&config)

	return NewBaiduProvider(config.APIKey, config.RateLimit, config.Timeout, config.Logger), nil
}

func newAmapProvider(config ProviderConfig) (Provider, error) {
	return NewAmapFromConfig(config)
}

// NewAmapFromConfig validates config and builds an AmapProvider.
// The weather service uses it directly for adcode lookups.
func NewAmapFromConfig(config ProviderConfig) (*AmapProvider, error) {
	if config.APIKey == "" {
		return nil, apierr.MissingCredential(string(ProviderTypeAmap), "AMAP_KEY")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	applyDefaultRate(&config)

	provider := NewAmapProvider(config.APIKey, config.RateLimit, config.Timeout, config.Logger)
	if config.BaseURL != "" {
		provider.baseURL = config.BaseURL
	}
	return provider, nil
}

// newGoogleProvider creates a Google Maps geocoding provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, apierr.MissingCredential(string(ProviderTypeGoogle), "GOOGLE_MAPS_API_KEY")
	}

	client, err := NewGoogleMapsClient(config.APIKey, config.RateLimit, config.Timeout)
	if err != nil {
		return nil, err
	}

	return NewGoogleProvider(client, config.Logger), nil
}

// NewGoogleMapsClient builds a Google Maps client with API key and rate limiting.
// The routing package shares it for the Directions API.
func NewGoogleMapsClient(apiKey string, rateLimit int, timeout time.Duration) (*maps.Client, error) {
	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(httpclient.New(timeout)),
	}

	// Apply rate limiting if specified
	if rateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(rateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return client, nil
}

func newNominatimProvider(config ProviderConfig) Provider {
	// Nominatim is free and doesn't require an API key
	provider := NewNominatimProvider(config.Timeout, config.Logger)
	if config.BaseURL != "" {
		provider.baseURL = config.BaseURL
	}
	return provider
}

func applyDefaultRate(config *ProviderConfig) {
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
		config.Logger.Warn("Rate limit not set, using default", "provider", config.Type, "value", config.RateLimit)
	}
}
