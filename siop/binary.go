package siop

import (
	stdjson "encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

const placeholderKey = "_placeholder"

// HasBinary reports whether a byte slice appears anywhere in data.
func HasBinary(data any) bool {
	switch v := data.(type) {
	case []byte:
		return true
	case []any:
		for _, item := range v {
			if HasBinary(item) {
				return true
			}
		}
	case map[string]any:
		for _, item := range v {
			if HasBinary(item) {
				return true
			}
		}
	}
	return false
}

// deconstruct returns a copy of data with every byte slice replaced by a
// placeholder, plus the extracted buffers in placeholder order.
func deconstruct(data any) (any, [][]byte) {
	var buffers [][]byte
	return deconstructValue(data, &buffers), buffers
}

func deconstructValue(data any, buffers *[][]byte) any {
	switch v := data.(type) {
	case []byte:
		placeholder := map[string]any{placeholderKey: true, "num": len(*buffers)}
		*buffers = append(*buffers, v)
		return placeholder
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deconstructValue(item, buffers)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = deconstructValue(item, buffers)
		}
		return out
	}
	return data
}

// reconstruct substitutes placeholders in data with the matching buffers.
func reconstruct(data any, buffers [][]byte) (any, error) {
	switch v := data.(type) {
	case []any:
		for i, item := range v {
			value, err := reconstruct(item, buffers)
			if err != nil {
				return nil, err
			}
			v[i] = value
		}
		return v, nil
	case map[string]any:
		if isPlaceholder(v) {
			num, err := placeholderNum(v["num"])
			if err != nil {
				return nil, err
			}
			if num < 0 || num >= len(buffers) {
				return nil, fmt.Errorf("%w: attachment %d out of range", ErrMalformedPacket, num)
			}
			return buffers[num], nil
		}
		for key, item := range v {
			value, err := reconstruct(item, buffers)
			if err != nil {
				return nil, err
			}
			v[key] = value
		}
		return v, nil
	}
	return data, nil
}

func isPlaceholder(m map[string]any) bool {
	flag, ok := m[placeholderKey].(bool)
	return ok && flag
}

func placeholderNum(v any) (int, error) {
	switch n := v.(type) {
	case stdjson.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: placeholder num %q", ErrMalformedPacket, n)
		}
		return int(i), nil
	case jsoniter.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: placeholder num %q", ErrMalformedPacket, n)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("%w: placeholder num %v", ErrMalformedPacket, v)
}
