// Package docstore defines the document database contract the gamification
// engine depends on. Backends live under internal/infra.
package docstore

import "context"

// Document is a decoded JSON document addressed by collection and id.
type Document struct {
	ID   string
	Data map[string]any
}

// Store is the document store collaborator. Field arguments are dotted paths
// ("stats.total_points"); missing intermediate maps are created on write.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	// Increment atomically adds delta to a numeric field, creating it at zero when absent.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	// ArrayUnion appends the items not already present in the array field.
	ArrayUnion(ctx context.Context, collection, id, field string, items ...any) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// BatchWrite applies every write or none of them.
	BatchWrite(ctx context.Context, writes []Write) error
	// Update runs fn against the current document (an empty map when absent) and
	// persists the result atomically. An error from fn aborts without writing.
	Update(ctx context.Context, collection, id string, fn func(data map[string]any) error) error
}

// Write is one element of a batch.
type Write struct {
	Collection string
	ID         string
	Data       map[string]any
	Merge      bool
}

// Updater is the single primitive a backend must implement for the derived mutations below.
type Updater interface {
	Update(ctx context.Context, collection, id string, fn func(data map[string]any) error) error
}

// SetVia implements Set on top of Update.
func SetVia(ctx context.Context, u Updater, collection, id string, data map[string]any, merge bool) error {
	patch, err := Normalize(data)
	if err != nil {
		return err
	}
	return u.Update(ctx, collection, id, func(current map[string]any) error {
		Apply(current, patch, merge)
		return nil
	})
}

// IncrementVia implements Increment on top of Update.
func IncrementVia(ctx context.Context, u Updater, collection, id, field string, delta int64) error {
	return u.Update(ctx, collection, id, func(data map[string]any) error {
		return IncrementPath(data, field, delta)
	})
}

// ArrayUnionVia implements ArrayUnion on top of Update.
func ArrayUnionVia(ctx context.Context, u Updater, collection, id, field string, items ...any) error {
	normalized := make([]any, 0, len(items))
	for _, item := range items {
		v, err := NormalizeValue(item)
		if err != nil {
			return err
		}
		normalized = append(normalized, v)
	}
	return u.Update(ctx, collection, id, func(data map[string]any) error {
		return UnionPath(data, field, normalized...)
	})
}

// Apply writes patch into current, deep-merging when merge is set and replacing otherwise.
func Apply(current, patch map[string]any, merge bool) {
	if !merge {
		for k := range current {
			delete(current, k)
		}
	}
	DeepMerge(current, patch)
}
