// Package orders reads order batches and renders enriched orders for display.
package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/models"
	"gopkg.in/yaml.v3"
)

// Format is an input encoding for order batches.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const (
	fieldID      = "id"
	fieldAddress = "address"
)

var ErrUnsupportedFormat = errors.New("unsupported order format")

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a batch of orders. JSON input may be an array of objects or a
// JSON string whose content is such an array. Empty input yields an empty batch.
func Decode(r io.Reader, format Format) ([]models.Order, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []models.Order{}, nil
	}

	var raw []map[string]any
	switch format {
	case FormatJSON, "":
		raw, err = decodeJSON(data)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s orders: %w", format, err)
	}

	return FromMaps(raw)
}

func decodeJSON(data []byte) ([]map[string]any, error) {
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		data = bytes.TrimSpace([]byte(inner))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// FromMaps builds orders from generic records. The records become the orders'
// pass-through fields.
func FromMaps(raw []map[string]any) ([]models.Order, error) {
	result := make([]models.Order, 0, len(raw))
	for i, fields := range raw {
		if fields == nil {
			fields = map[string]any{}
		}

		id, err := scalarString(fields[fieldID])
		if err != nil {
			return nil, fmt.Errorf("order %d: id: %w", i, err)
		}

		address, ok := fields[fieldAddress].(string)
		if !ok && fields[fieldAddress] != nil {
			return nil, fmt.Errorf("order %d: address must be a string, got %T", i, fields[fieldAddress])
		}

		result = append(result, models.Order{ID: id, Address: address, Fields: fields})
	}
	return result, nil
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
