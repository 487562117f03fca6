package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// SaveCollection encodes items as an indented JSON array and replaces key.
func SaveCollection[T any](ctx context.Context, s Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// LoadCollection decodes the JSON array stored at key. An array wrapped as
// {"records": [...]} is accepted too. Anything else yields ErrCorrupt; a
// missing artifact yields ErrNotFound. Callers treat both as empty.
func LoadCollection[T any](ctx context.Context, s Store, key string) ([]T, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return DecodeCollection[T](data)
}

// DecodeCollection is the decoding half of LoadCollection.
func DecodeCollection[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrCorrupt)
	}
	if trimmed[0] == '{' {
		var env struct {
			Records json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Records) == 0 {
			return nil, fmt.Errorf("%w: object without records", ErrCorrupt)
		}
		trimmed = env.Records
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return items, nil
}
