package geocoding

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider initializes a new GoogleProvider with the given client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// GeocodingRequest builds the request sent for address; the city hint becomes a locality component filter.
func GeocodingRequest(address, cityHint string) *maps.GeocodingRequest {
	req := &maps.GeocodingRequest{Address: address}
	if cityHint != "" {
		req.Components = map[maps.Component]string{maps.ComponentLocality: cityHint}
	}
	return req
}

// Geocode takes a context and an address string as input, and returns the geographical coordinates
// of the provided address using the Google Maps Geocoding API.
// The SDK reports ZERO_RESULTS and other vendor statuses as plain errors; those
// become apierr.ErrAddressNotFound, while network failures stay transport errors.
func (gp *GoogleProvider) Geocode(ctx context.Context, address, cityHint string) (*models.Coordinates, error) {
	const op = "geocode"

	if address == "" {
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeGoogle), op, errEmptyAddress)
	}

	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address, "city", cityHint)

	geocodeResponse, err := gp.client.Geocode(ctx, GeocodingRequest(address, cityHint))
	if err != nil {
		if apierr.IsNetwork(err) {
			return nil, apierr.Transport(string(ProviderTypeGoogle), op, err)
		}
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeGoogle), op, err)
	}

	if len(geocodeResponse) == 0 {
		return nil, apierr.New(apierr.ErrAddressNotFound, string(ProviderTypeGoogle), op, errNoResults)
	}
	coords := geocodeResponse[0].Geometry.Location

	return &models.Coordinates{Longitude: coords.Lng, Latitude: coords.Lat}, nil
}
