package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/bearing"
	"github.com/UnknownOlympus/hermes/internal/fanout"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

// Order status label values for metrics.
const (
	statusOK         = "ok"
	statusNoAddress  = "no_address"
	statusUnresolved = "address_unresolved"
	statusNoRoute    = "route_unknown"
)

// Enricher resolves the origin once and, for every order, the destination
// coordinates, the driving route and the compass bearing. A failing order is
// degraded in place and never fails the batch.
type Enricher struct {
	log       *slog.Logger       // Logger for logging service activities
	geocoder  geocoding.Provider // Resolves addresses to coordinates
	router    routing.Provider   // Resolves driving routes
	geoName   string             // Geocoder name for metrics labeling
	routeName string             // Router name for metrics labeling
	metrics   *metrics.Metrics   // Metrics for tracking service performance
	clock     clockwork.Clock    // Time source for latency measurement
	workers   int                // Number of concurrent workers
	cityHint  string             // City narrowing every geocoding call
}

// EnricherOptions carries the optional settings of an Enricher.
type EnricherOptions struct {
	GeoProvider   string
	RouteProvider string
	CityHint      string
	Workers       int
	Clock         clockwork.Clock
}

// NewEnricher creates a new Enricher. A nil clock means the real clock, nil
// metrics go to a private registry and fewer than one worker means one.
func NewEnricher(
	log *slog.Logger,
	geocoder geocoding.Provider,
	router routing.Provider,
	mtr *metrics.Metrics,
	opts EnricherOptions,
) *Enricher {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if mtr == nil {
		mtr = metrics.NewMetrics(prometheus.NewRegistry())
	}

	return &Enricher{
		log:       log,
		geocoder:  geocoder,
		router:    router,
		geoName:   opts.GeoProvider,
		routeName: opts.RouteProvider,
		metrics:   mtr,
		clock:     opts.Clock,
		workers:   opts.Workers,
		cityHint:  opts.CityHint,
	}
}

// Enrich returns a copy of orders, in the same order, with Enrichment filled in.
// It fails only when the origin cannot be resolved, with apierr.ErrOriginUnresolved.
func (e *Enricher) Enrich(ctx context.Context, origin string, orders []models.Order) ([]models.Order, error) {
	if strings.TrimSpace(origin) == "" {
		return nil, fmt.Errorf("%w: empty origin", apierr.ErrOriginUnresolved)
	}

	originCoords, err := e.geocode(ctx, origin)
	if err != nil {
		e.log.ErrorContext(ctx, "Failed to resolve origin", "origin", origin, "error", err)
		return nil, fmt.Errorf("%w: %q: %w", apierr.ErrOriginUnresolved, origin, err)
	}

	e.log.InfoContext(ctx, "Enriching orders",
		"origin", origin,
		"orders", len(orders),
		"num_workers", e.workers)

	results := fanout.Run(ctx, len(orders), e.workers, func(ctx context.Context, idx int) (models.Order, error) {
		e.metrics.ActiveWorkers.Inc()
		defer e.metrics.ActiveWorkers.Dec()

		return e.enrichOne(ctx, *originCoords, orders[idx]), nil
	})

	enriched := make([]models.Order, len(orders))
	for i, res := range results {
		if res.Err != nil {
			// The pool skipped the order because ctx ended first.
			enriched[i] = e.skipped(orders[i])
			continue
		}
		enriched[i] = res.Value
	}

	e.log.InfoContext(ctx, "Enrichment batch finished", "orders", len(enriched))
	return enriched, nil
}

// skipped degrades an order the pool never ran. Orders without an address
// keep the no-address sentinel.
func (e *Enricher) skipped(order models.Order) models.Order {
	out := cloneOrder(order)
	if strings.TrimSpace(order.Address) == "" {
		out.Enrichment.Degrade(models.ReasonNoAddress)
		e.metrics.OrdersEnriched.WithLabelValues(statusNoAddress).Inc()
		return out
	}
	out.Enrichment.Degrade(models.ReasonAddressUnresolved)
	e.metrics.OrdersEnriched.WithLabelValues(statusUnresolved).Inc()
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, origin models.Coordinates, order models.Order) models.Order {
	out := cloneOrder(order)

	if strings.TrimSpace(order.Address) == "" {
		out.Enrichment.Degrade(models.ReasonNoAddress)
		e.metrics.OrdersEnriched.WithLabelValues(statusNoAddress).Inc()
		return out
	}

	dest, err := e.geocode(ctx, order.Address)
	if err != nil {
		e.log.WarnContext(ctx, "Failed to geocode order address", "order", order.ID, "error", err)
		out.Enrichment.Degrade(models.ReasonAddressUnresolved)
		e.metrics.OrdersEnriched.WithLabelValues(statusUnresolved).Inc()
		return out
	}

	out.Enrichment.Bearing = bearing.Calculate(origin, *dest)
	out.Enrichment.BearingReason = models.ReasonNone
	if out.Enrichment.Bearing == models.DirectionUnknown {
		out.Enrichment.BearingReason = models.ReasonUnknown
	}

	route, err := e.route(ctx, origin, *dest)
	if err != nil {
		e.log.WarnContext(ctx, "Failed to route order", "order", order.ID, "error", err)
		out.Enrichment.RouteReason = models.ReasonUnknown
		e.metrics.OrdersEnriched.WithLabelValues(statusNoRoute).Inc()
		return out
	}

	out.Enrichment.DistanceKm = route.DistanceKm()
	out.Enrichment.ETAMinutes = route.ETAMinutes()
	out.Enrichment.RouteReason = models.ReasonNone
	e.metrics.OrdersEnriched.WithLabelValues(statusOK).Inc()

	e.log.DebugContext(ctx, "Order enriched",
		"order", order.ID,
		"distance_km", out.Enrichment.DistanceKm,
		"eta_min", out.Enrichment.ETAMinutes,
		"bearing", out.Enrichment.Bearing)

	return out
}

func (e *Enricher) geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	start := e.clock.Now()
	coords, err := e.geocoder.Geocode(ctx, address, e.cityHint)
	e.metrics.ObserveCall(metrics.ComponentGeocode, e.geoName, e.clock.Since(start).Seconds(), err)
	if err == nil && coords == nil {
		err = apierr.New(apierr.ErrAddressNotFound, e.geoName, "geocode", errors.New("nil coordinates"))
	}
	return coords, err
}

func (e *Enricher) route(ctx context.Context, origin, dest models.Coordinates) (*models.Route, error) {
	start := e.clock.Now()
	route, err := e.router.Route(ctx, origin, dest)
	e.metrics.ObserveCall(metrics.ComponentRoute, e.routeName, e.clock.Since(start).Seconds(), err)
	if err == nil && route == nil {
		err = apierr.New(apierr.ErrRouteNotFound, e.routeName, "route", errors.New("nil route"))
	}
	return route, err
}

func cloneOrder(order models.Order) models.Order {
	out := order
	out.Fields = maps.Clone(order.Fields)
	out.Enrichment = models.Enrichment{}
	return out
}
