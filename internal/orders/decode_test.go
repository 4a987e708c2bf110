package orders_test

import (
	"strings"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		format    orders.Format
		wantIDs   []string
		wantAddrs []string
	}{
		{
			name:      "json array",
			input:     `[{"id":"1","address":"湘熙水郡北门","name":"小阳"},{"id":2,"address":""}]`,
			format:    orders.FormatJSON,
			wantIDs:   []string{"1", "2"},
			wantAddrs: []string{"湘熙水郡北门", ""},
		},
		{
			name:      "double encoded json",
			input:     `"[{\"address\":\"龙湖新壹城a1\",\"id\":\"3\",\"mobile\":\"无\"}]"`,
			format:    orders.FormatJSON,
			wantIDs:   []string{"3"},
			wantAddrs: []string{"龙湖新壹城a1"},
		},
		{
			name:      "yaml sequence",
			input:     "- id: 7\n  address: 洋湖天序\n- id: x8\n",
			format:    orders.FormatYAML,
			wantIDs:   []string{"7", "x8"},
			wantAddrs: []string{"洋湖天序", ""},
		},
		{
			name:    "empty input",
			input:   "  \n",
			format:  orders.FormatJSON,
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := orders.Decode(strings.NewReader(tt.input), tt.format)
			require.NoError(t, err)
			require.Len(t, batch, len(tt.wantIDs))

			for i, o := range batch {
				assert.Equal(t, tt.wantIDs[i], o.ID)
				assert.Equal(t, tt.wantAddrs[i], o.Address)
			}
		})
	}
}

func TestDecode_PassThroughFields(t *testing.T) {
	batch, err := orders.Decode(strings.NewReader(`[{"id":"1","address":"a","remark":"➕一碗汤","qty":2}]`), orders.FormatJSON)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	assert.Equal(t, "➕一碗汤", batch[0].Fields["remark"])
	assert.Contains(t, batch[0].Fields, "qty")
	assert.Equal(t, "1", batch[0].Fields["id"])
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format orders.Format
	}{
		{name: "not an array", input: `{"id":"1"}`, format: orders.FormatJSON},
		{name: "broken json", input: `[{"id":`, format: orders.FormatJSON},
		{name: "address not a string", input: `[{"address":42}]`, format: orders.FormatJSON},
		{name: "id is an object", input: `[{"id":{"a":1}}]`, format: orders.FormatJSON},
		{name: "yaml mapping", input: "id: 1\n", format: orders.FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orders.Decode(strings.NewReader(tt.input), tt.format)
			require.Error(t, err)
		})
	}

	_, err := orders.Decode(strings.NewReader("[]"), orders.Format("csv"))
	require.ErrorIs(t, err, orders.ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := orders.ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, orders.FormatYAML, f)

	f, err = orders.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, orders.FormatJSON, f)

	_, err = orders.ParseFormat("xml")
	require.ErrorIs(t, err, orders.ErrUnsupportedFormat)

	assert.Equal(t, orders.FormatYAML, orders.FormatFromPath("batch.yaml"))
	assert.Equal(t, orders.FormatJSON, orders.FormatFromPath("batch.txt"))
}
