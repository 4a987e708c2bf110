package orders_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enriched() models.Order {
	return models.Order{
		ID:      "1",
		Address: "龙湖新壹城a1",
		Fields:  map[string]any{"id": "1", "address": "龙湖新壹城a1", "name": "Tigerkin"},
		Enrichment: models.Enrichment{
			DistanceKm: 1.234,
			ETAMinutes: 3,
			Bearing:    models.NorthEast,
		},
	}
}

func degraded(reason models.Reason) models.Order {
	o := models.Order{ID: "9", Fields: map[string]any{"id": "9"}}
	o.Enrichment.Degrade(reason)
	return o
}

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		order  models.Order
		locale orders.Locale
		want   map[string]any
	}{
		{
			name:   "zh values",
			order:  enriched(),
			locale: orders.LocaleZH,
			want:   map[string]any{"距离(km)": "1.2", "预计时长": "3分钟", "方位": "东北"},
		},
		{
			name:   "en values",
			order:  enriched(),
			locale: orders.LocaleEN,
			want:   map[string]any{"distance_km": "1.2", "eta": "3 min", "bearing": "NE"},
		},
		{
			name:   "zh no address",
			order:  degraded(models.ReasonNoAddress),
			locale: orders.LocaleZH,
			want:   map[string]any{"距离(km)": "无地址", "预计时长": "无地址", "方位": "无地址"},
		},
		{
			name:   "zh unresolved",
			order:  degraded(models.ReasonAddressUnresolved),
			locale: orders.LocaleZH,
			want:   map[string]any{"距离(km)": "地址解析失败", "预计时长": "地址解析失败", "方位": "地址解析失败"},
		},
		{
			name:   "en unresolved",
			order:  degraded(models.ReasonAddressUnresolved),
			locale: orders.LocaleEN,
			want: map[string]any{
				"distance_km": "address not resolved", "eta": "address not resolved", "bearing": "address not resolved",
			},
		},
		{
			name: "route unknown keeps bearing",
			order: models.Order{Enrichment: models.Enrichment{
				Bearing: models.Near, RouteReason: models.ReasonUnknown,
			}},
			locale: orders.LocaleZH,
			want:   map[string]any{"距离(km)": "未知", "预计时长": "未知", "方位": "附近"},
		},
		{
			name:   "unknown locale falls back to zh",
			order:  enriched(),
			locale: orders.Locale("fr"),
			want:   map[string]any{"距离(km)": "1.2", "预计时长": "3分钟", "方位": "东北"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orders.Render(tt.order, tt.locale)
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}

func TestRender_KeepsFieldsAndDoesNotMutate(t *testing.T) {
	order := enriched()

	got := orders.Render(order, orders.LocaleZH)

	assert.Equal(t, "Tigerkin", got["name"])
	assert.Equal(t, "龙湖新壹城a1", got["address"])
	assert.NotContains(t, order.Fields, "方位")
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer

	err := orders.Encode(&buf, []models.Order{enriched(), degraded(models.ReasonNoAddress)}, orders.LocaleEN)
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "NE", out[0]["bearing"])
	assert.Equal(t, "no address", out[1]["eta"])
}

func TestParseLocale(t *testing.T) {
	l, err := orders.ParseLocale(" EN ")
	require.NoError(t, err)
	assert.Equal(t, orders.LocaleEN, l)

	_, err = orders.ParseLocale("de")
	require.ErrorIs(t, err, orders.ErrUnsupportedLocale)
}
