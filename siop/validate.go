package siop

import (
	stdjson "encoding/json"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

// ValidateData checks that data is built only from nil, JSON objects and
// arrays, strings, integers, finite floats, booleans and byte slices.
func ValidateData(data any) error {
	switch v := data.(type) {
	case nil, bool, string, stdjson.Number, jsoniter.Number, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		return validateFloat(float64(v))
	case float64:
		return validateFloat(v)
	case []any:
		for i, item := range v {
			if err := ValidateData(item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		for key, item := range v {
			if err := ValidateData(item); err != nil {
				return fmt.Errorf("%q: %w", key, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported type %T", ErrInvalidData, data)
}

func validateFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", ErrInvalidData)
	}
	return nil
}
