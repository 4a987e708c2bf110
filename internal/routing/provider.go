// Package routing resolves driving distance and duration between two coordinates.
package routing

import (
	"context"

	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// Provider returns the driving route between origin and destination.
// Failures match apierr.ErrRouteNotFound, apierr.ErrTransport or apierr.ErrMalformedResponse.
type Provider interface {
	Route(ctx context.Context, origin, destination models.Coordinates) (*models.Route, error)
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient = httpclient.Doer
