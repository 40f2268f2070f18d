// internal/tour/codec.go
package tour

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode parses a tour JSON document. It does not validate the tour.
func Decode(data []byte) (*Tour, error) {
	var t Tour
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode tour: %w", err)
	}
	return &t, nil
}

// Encode renders a tour as indented JSON.
func Encode(t *Tour) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tour: %w", err)
	}
	return data, nil
}

// encodeCompact renders a tour on one line, as embedded in exported scripts.
func encodeCompact(t *Tour) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tour: %w", err)
	}
	return bytes.TrimSpace(data), nil
}

// MarshalTarget renders a target for diagnostics. Failures yield "null".
func MarshalTarget(t *Target) string {
	if t == nil {
		return "null"
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "null"
	}
	return string(data)
}
