package geocoding

import (
	"context"

	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// Provider is an interface that defines a method for geocoding an address.
// The Geocode method takes a context, an address string and an optional city hint
// that narrows the search, and returns the corresponding coordinates.
// Failures match apierr.ErrAddressNotFound, apierr.ErrTransport or apierr.ErrMalformedResponse.
type Provider interface {
	Geocode(ctx context.Context, address, cityHint string) (*models.Coordinates, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient = httpclient.Doer
