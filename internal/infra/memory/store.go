package memory

import (
	"context"
	"sort"
	"sync"

	"pyquest-gamification/internal/docstore"
)

// Store is an in-process docstore.Store. Documents are kept serialized so
// readers never share maps with writers and values have the same shape as in
// the networked backends.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

func NewStore() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, bool, error) {
	s.mu.RLock()
	raw, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return docstore.Document{}, false, nil
	}
	data, err := docstore.DecodeBytes(raw)
	if err != nil {
		return docstore.Document{}, false, err
	}
	return docstore.Document{ID: id, Data: data}, true, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return docstore.SetVia(ctx, s, collection, id, data, merge)
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return docstore.IncrementVia(ctx, s, collection, id, field, delta)
}

func (s *Store) ArrayUnion(ctx context.Context, collection, id, field string, items ...any) error {
	return docstore.ArrayUnionVia(ctx, s, collection, id, field, items...)
}

func (s *Store) Query(_ context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	docs := make([]docstore.Document, 0, len(s.collections[collection]))
	for id, raw := range s.collections[collection] {
		data, err := docstore.DecodeBytes(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Data: data})
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docstore.Run(docs, q)
}

func (s *Store) BatchWrite(_ context.Context, writes []docstore.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage everything first so a failure leaves the store untouched.
	staged := make([][]byte, len(writes))
	for i, w := range writes {
		patch, err := docstore.Normalize(w.Data)
		if err != nil {
			return err
		}
		current, err := s.currentLocked(w.Collection, w.ID, staged[:i], writes[:i])
		if err != nil {
			return err
		}
		docstore.Apply(current, patch, w.Merge)
		raw, err := docstore.MarshalBytes(current)
		if err != nil {
			return err
		}
		staged[i] = raw
	}
	for i, w := range writes {
		s.putLocked(w.Collection, w.ID, staged[i])
	}
	return nil
}

func (s *Store) Update(_ context.Context, collection, id string, fn func(data map[string]any) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.currentLocked(collection, id, nil, nil)
	if err != nil {
		return err
	}
	if err := fn(current); err != nil {
		return err
	}
	raw, err := docstore.MarshalBytes(current)
	if err != nil {
		return err
	}
	s.putLocked(collection, id, raw)
	return nil
}

// currentLocked returns the latest version of a document, preferring writes
// staged earlier in the same batch.
func (s *Store) currentLocked(collection, id string, staged [][]byte, writes []docstore.Write) (map[string]any, error) {
	for i := len(writes) - 1; i >= 0; i-- {
		if writes[i].Collection == collection && writes[i].ID == id {
			return docstore.DecodeBytes(staged[i])
		}
	}
	return docstore.DecodeBytes(s.collections[collection][id])
}

func (s *Store) putLocked(collection, id string, raw []byte) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	docs[id] = raw
}
