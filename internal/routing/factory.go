package routing

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
)

// ProviderType represents the type of routing provider.
type ProviderType string

const (
	// ProviderTypeBaidu represents Baidu direction v2 driving, the default.
	ProviderTypeBaidu ProviderType = "baidu"
	// ProviderTypeGoogle represents the Google Maps Directions API.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeOSRM represents an OSRM server, the public demo by default.
	ProviderTypeOSRM ProviderType = "osrm"
)

const defaultRateLimit = 3

// ProviderConfig holds configuration for creating a routing provider.
type ProviderConfig struct {
	Type      ProviderType
	APIKey    string
	RateLimit int
	Timeout   time.Duration
	BaseURL   string // Endpoint override
	Logger    *slog.Logger
}

// NewProvider creates a routing provider based on the provided configuration.
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	switch ProviderType(strings.ToLower(string(config.Type))) {
	case ProviderTypeBaidu:
		if config.APIKey == "" {
			return nil, apierr.MissingCredential(string(ProviderTypeBaidu), "BAIDU_MAP_AK")
		}
		provider := NewBaiduProvider(config.APIKey, config.RateLimit, config.Timeout, config.Logger)
		if config.BaseURL != "" {
			provider.baseURL = config.BaseURL
		}
		return provider, nil
	case ProviderTypeGoogle:
		if config.APIKey == "" {
			return nil, apierr.MissingCredential(string(ProviderTypeGoogle), "GOOGLE_MAPS_API_KEY")
		}
		client, err := geocoding.NewGoogleMapsClient(config.APIKey, config.RateLimit, config.Timeout)
		if err != nil {
			return nil, err
		}
		return NewGoogleProvider(client, config.Logger), nil
	case ProviderTypeOSRM:
		provider := NewOSRMProvider(config.Timeout, config.Logger)
		if config.BaseURL != "" {
			provider.baseURL = strings.TrimRight(config.BaseURL, "/")
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("%w: routing provider %q", apierr.ErrUnknownProvider, config.Type)
	}
}
