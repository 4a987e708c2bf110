// Package weather looks up live weather reports from Amap.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/httpclient"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// AmapWeatherURL is the Amap live weather endpoint.
const AmapWeatherURL = "https://restapi.amap.com/v3/weather/weatherInfo"

const provider = "amap"

// AdcodeResolver resolves a place name to its Amap administrative code.
type AdcodeResolver interface {
	Lookup(ctx context.Context, address, cityHint string) (*geocoding.AmapPlace, error)
}

// Service fetches live weather for a city name.
type Service struct {
	resolver AdcodeResolver
	client   httpclient.Doer
	baseURL  string
	apiKey   string
	log      *slog.Logger
	metrics  *metrics.Metrics
}

type liveResponse struct {
	Status string           `json:"status"`
	Info   string           `json:"info"`
	Lives  []models.Weather `json:"lives"`
}

// NewService creates a weather service. An empty baseURL means AmapWeatherURL.
func NewService(resolver AdcodeResolver, apiKey, baseURL string, timeout time.Duration, log *slog.Logger) *Service {
	svc := NewServiceWithClient(resolver, httpclient.New(timeout), apiKey, log)
	if baseURL != "" {
		svc.baseURL = baseURL
	}
	return svc
}

// NewServiceWithClient allows injecting custom HTTP client.
func NewServiceWithClient(resolver AdcodeResolver, client httpclient.Doer, apiKey string, log *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		client:   client,
		baseURL:  AmapWeatherURL,
		apiKey:   apiKey,
		log:      log,
	}
}

// WithMetrics records upstream calls on m.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Live returns the current weather report for city.
func (s *Service) Live(ctx context.Context, city string) (_ *models.Weather, err error) {
	const op = "weather"

	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("%w: city name is empty", apierr.ErrInvalidRequest)
	}

	place, err := s.resolver.Lookup(ctx, city, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve adcode for %q: %w", city, err)
	}

	s.log.DebugContext(ctx, "Fetching live weather", "city", city, "adcode", place.Adcode)

	query := url.Values{}
	query.Set("key", s.apiKey)
	query.Set("city", place.Adcode)
	query.Set("extensions", "base")

	var resp liveResponse
	start := time.Now()
	defer func() {
		s.metrics.ObserveCall(metrics.ComponentWeather, provider, time.Since(start).Seconds(), err)
	}()

	err = httpclient.GetJSON(ctx, s.client, httpclient.Request{
		Provider: provider,
		Op:       op,
		URL:      s.baseURL + "?" + query.Encode(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != "1" {
		return nil, apierr.New(apierr.ErrAddressNotFound, provider, op, errors.New(resp.Info))
	}
	if len(resp.Lives) == 0 {
		return nil, apierr.New(apierr.ErrAddressNotFound, provider, op, fmt.Errorf("no live report for %s", city))
	}

	return &resp.Lives[0], nil
}

// Format renders a report the way the CLI prints it.
func Format(name string, w *models.Weather) string {
	orUnknown := func(v string) string {
		if v == "" {
			return "未知"
		}
		return v
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s当前天气信息：\n", name)
	fmt.Fprintf(&sb, "├─ 天气状况: %s\n", orUnknown(w.Weather))
	fmt.Fprintf(&sb, "├─ 实时温度: %s°C\n", orUnknown(w.Temperature))
	fmt.Fprintf(&sb, "├─ 风向: %s风\n", orUnknown(w.WindDirection))
	fmt.Fprintf(&sb, "├─ 风力: %s级\n", orUnknown(w.WindPower))
	fmt.Fprintf(&sb, "├─ 湿度: %s%%\n", orUnknown(w.Humidity))
	fmt.Fprintf(&sb, "└─ 更新时间: %s", orUnknown(w.ReportTime))
	return sb.String()
}
