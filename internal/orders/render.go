package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// Locale selects the language of rendered keys and values.
type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

var ErrUnsupportedLocale = errors.New("unsupported locale")

type labels struct {
	distanceKey, etaKey, bearingKey string
	etaFormat                       string
	reasons                         map[models.Reason]string
	directions                      map[models.Direction]string
}

var catalog = map[Locale]labels{
	LocaleZH: {
		distanceKey: "距离(km)",
		etaKey:      "预计时长",
		bearingKey:  "方位",
		etaFormat:   "%d分钟",
		reasons: map[models.Reason]string{
			models.ReasonNoAddress:         "无地址",
			models.ReasonAddressUnresolved: "地址解析失败",
			models.ReasonUnknown:           "未知",
		},
		directions: map[models.Direction]string{
			models.North:     "北",
			models.NorthEast: "东北",
			models.East:      "东",
			models.SouthEast: "东南",
			models.South:     "南",
			models.SouthWest: "西南",
			models.West:      "西",
			models.NorthWest: "西北",
			models.Near:      "附近",
		},
	},
	LocaleEN: {
		distanceKey: "distance_km",
		etaKey:      "eta",
		bearingKey:  "bearing",
		etaFormat:   "%d min",
		reasons: map[models.Reason]string{
			models.ReasonNoAddress:         "no address",
			models.ReasonAddressUnresolved: "address not resolved",
			models.ReasonUnknown:           "unknown",
		},
		directions: map[models.Direction]string{
			models.North:     "N",
			models.NorthEast: "NE",
			models.East:      "E",
			models.SouthEast: "SE",
			models.South:     "S",
			models.SouthWest: "SW",
			models.West:      "W",
			models.NorthWest: "NW",
			models.Near:      "near",
		},
	},
}

// ParseLocale validates a locale name.
func ParseLocale(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := catalog[l]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocale, s)
	}
	return l, nil
}

// Render returns the order's pass-through fields plus distance, ETA and bearing.
// Unknown locales render as zh. The order itself is not modified.
func Render(order models.Order, locale Locale) map[string]any {
	lb, ok := catalog[locale]
	if !ok {
		lb = catalog[LocaleZH]
	}

	out := maps.Clone(order.Fields)
	if out == nil {
		out = make(map[string]any, 3)
	}

	e := order.Enrichment
	if e.RouteReason == models.ReasonNone {
		out[lb.distanceKey] = strconv.FormatFloat(e.DistanceKm, 'f', 1, 64)
		out[lb.etaKey] = fmt.Sprintf(lb.etaFormat, e.ETAMinutes)
	} else {
		out[lb.distanceKey] = lb.reason(e.RouteReason)
		out[lb.etaKey] = lb.reason(e.RouteReason)
	}

	if e.BearingReason == models.ReasonNone {
		out[lb.bearingKey] = lb.direction(e.Bearing)
	} else {
		out[lb.bearingKey] = lb.reason(e.BearingReason)
	}

	return out
}

// RenderAll renders a batch, keeping its order.
func RenderAll(batch []models.Order, locale Locale) []map[string]any {
	result := make([]map[string]any, len(batch))
	for i, order := range batch {
		result[i] = Render(order, locale)
	}
	return result
}

// Encode writes the rendered batch as an indented JSON array.
func Encode(w io.Writer, batch []models.Order, locale Locale) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(RenderAll(batch, locale))
}

func (lb labels) reason(r models.Reason) string {
	if s, ok := lb.reasons[r]; ok {
		return s
	}
	return lb.reasons[models.ReasonUnknown]
}

func (lb labels) direction(d models.Direction) string {
	if s, ok := lb.directions[d]; ok {
		return s
	}
	return lb.reasons[models.ReasonUnknown]
}
