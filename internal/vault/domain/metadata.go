package domain

import (
	"fmt"
	"math"

	"github.com/allisson/secretvault/internal/errors"
)

const (
	MaxMetadataKeys        = 32
	MaxMetadataKeyLength   = 64
	MaxMetadataValueLength = 1024
)

// Metadata is a bounded, flat map of string keys to primitive values.
//
// Values are string, bool or float64 (the shape JSON decoding produces). Use NewMetadata to
// build one from untrusted input.
type Metadata map[string]any

// NewMetadata validates raw and returns it as Metadata. Integer values are normalised to float64.
func NewMetadata(raw map[string]any) (Metadata, error) {
	if len(raw) > MaxMetadataKeys {
		return nil, errors.Wrapf(ErrInvalidMetadata, "at most %d keys allowed", MaxMetadataKeys)
	}

	md := make(Metadata, len(raw))
	for k, v := range raw {
		if k == "" || len(k) > MaxMetadataKeyLength {
			return nil, errors.Wrapf(ErrInvalidMetadata, "key length must be 1-%d", MaxMetadataKeyLength)
		}
		normalized, err := normalizeMetadataValue(v)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidMetadata, "key %q: %v", k, err)
		}
		md[k] = normalized
	}
	return md, nil
}

func normalizeMetadataValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if len(val) > MaxMetadataValueLength {
			return nil, fmt.Errorf("string value exceeds %d characters", MaxMetadataValueLength)
		}
		return val, nil
	case bool:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("number must be finite")
		}
		return val, nil
	case float32:
		return normalizeMetadataValue(float64(val))
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
