package routing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleDirectionsClient is the part of *maps.Client the provider needs.
type GoogleDirectionsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// GoogleProvider resolves driving routes with the Google Maps Directions API.
type GoogleProvider struct {
	client GoogleDirectionsClient
	log    *slog.Logger
}

// NewGoogleProvider initializes a GoogleProvider with the given client and logger.
func NewGoogleProvider(client GoogleDirectionsClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// DirectionsRequest builds the driving request for origin and destination ("lat,lng").
func DirectionsRequest(origin, destination models.Coordinates) *maps.DirectionsRequest {
	return &maps.DirectionsRequest{
		Origin:      origin.LatLng(),
		Destination: destination.LatLng(),
		Mode:        maps.TravelModeDriving,
	}
}

// Route sums the legs of the first route Google proposes.
func (gp *GoogleProvider) Route(ctx context.Context, origin, destination models.Coordinates) (*models.Route, error) {
	const op = "route"

	gp.log.DebugContext(ctx, "Routing using Google Maps", "origin", origin.LatLng(), "destination", destination.LatLng())

	routes, _, err := gp.client.Directions(ctx, DirectionsRequest(origin, destination))
	if err != nil {
		if apierr.IsNetwork(err) {
			return nil, apierr.Transport(string(ProviderTypeGoogle), op, err)
		}
		return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeGoogle), op, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, apierr.New(apierr.ErrRouteNotFound, string(ProviderTypeGoogle), op, errors.New("no routes"))
	}

	route := &models.Route{}
	for _, leg := range routes[0].Legs {
		if leg == nil {
			continue
		}
		route.DistanceMeters += float64(leg.Distance.Meters)
		route.DurationSeconds += leg.Duration.Seconds()
	}

	return route, nil
}
