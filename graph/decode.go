package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// ErrMalformedDocument indicates the decoder produced an unexpected token
// sequence.
var ErrMalformedDocument = errors.New("graph: malformed document")

// Wrap converts decoded documents into containers: maps become *Object with
// sorted keys, ordered YAML maps keep document order, slices become *Array.
// Existing containers and scalars are returned as-is.
func Wrap(v any) any {
	switch t := v.(type) {
	case map[string]any:
		o := ObjectFromMap(t)
		for _, key := range o.keys {
			o.values[key] = Wrap(o.values[key])
		}
		return o
	case map[any]any:
		m := make(map[string]any, len(t))
		for key, value := range t {
			m[fmt.Sprint(key)] = value
		}
		return Wrap(m)
	case yaml.MapSlice:
		o := NewObject()
		for _, item := range t {
			key := fmt.Sprint(item.Key)
			if _, exists := o.values[key]; !exists {
				o.keys = append(o.keys, key)
			}
			o.values[key] = Wrap(item.Value)
		}
		return o
	case []any:
		a := NewArray()
		a.items = make([]any, len(t))
		for i, item := range t {
			a.items[i] = Wrap(item)
		}
		return a
	default:
		return v
	}
}

// FromYAML decodes a YAML document into containers, preserving key order.
func FromYAML(data []byte) (any, error) {
	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("graph: decode yaml: %w", err)
	}
	return Wrap(doc), nil
}

// FromJSON decodes a JSON document into containers, preserving key order.
// Integral numbers decode as int64, the rest as float64.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	value, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedDocument)
	}
	return value, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("graph: decode json: %w", err)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			o := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("graph: decode json: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("%w: object key %v", ErrMalformedDocument, keyTok)
				}
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				if _, exists := o.values[key]; !exists {
					o.keys = append(o.keys, key)
				}
				o.values[key] = value
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("graph: decode json: %w", err)
			}
			return o, nil
		case '[':
			a := NewArray()
			for dec.More() {
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				a.items = append(a.items, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("graph: decode json: %w", err)
			}
			return a, nil
		}
		return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrMalformedDocument, t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("graph: decode json number %q: %w", t, err)
		}
		return f, nil
	default:
		return t, nil
	}
}
