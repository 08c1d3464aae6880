package docstore

import (
	"encoding/json"
	"fmt"

	"pyquest-gamification/internal/domain"
)

// Encode converts a typed record into its document form.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return DecodeBytes(raw)
}

// Decode fills a typed record from a document.
func Decode(data map[string]any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Normalize returns a deep copy of data in the exact shape every backend stores.
func Normalize(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	return Encode(data)
}

// NormalizeValue round-trips a single value through JSON.
func NormalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// MarshalBytes serializes a document for byte-oriented backends.
func MarshalBytes(data map[string]any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return raw, nil
}

// DecodeBytes parses a serialized document. Non-object payloads are rejected.
func DecodeBytes(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("document is not an object: %v: %w", err, domain.ErrInvalidArgument)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
