package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
)

const defaultMaxRetries = 50

// Store keeps each document as a JSON string and tracks collection membership
// in a set:
//
//	SET  doc:{collection}:{id} {json}
//	SADD col:{collection}      {id}
//
// Mutations are optimistic WATCH/MULTI transactions retried on conflict.
type Store struct {
	client     *redis.Client
	maxRetries int
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, maxRetries: defaultMaxRetries}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	raw, err := s.client.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Document{}, false, nil
	}
	if err != nil {
		return docstore.Document{}, false, unavailable("get", collection, id, err)
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

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	ids, err := s.client.SMembers(ctx, colKey(collection)).Result()
	if err != nil {
		return nil, unavailable("query", collection, "", err)
	}
	if len(ids) == 0 {
		return []docstore.Document{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("query", collection, "", err)
	}

	docs := make([]docstore.Document, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // expired or deleted between SMEMBERS and MGET
		}
		data, err := docstore.DecodeBytes([]byte(str))
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: ids[i], Data: data})
	}
	return docstore.Run(docs, q)
}

func (s *Store) Update(ctx context.Context, collection, id string, fn func(data map[string]any) error) error {
	key := docKey(collection, id)
	var fnErr error

	txf := func(tx *redis.Tx) error {
		current, err := readTx(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			fnErr = err
			return err
		}
		raw, err := docstore.MarshalBytes(current)
		if err != nil {
			fnErr = err
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.SAdd(ctx, colKey(collection), id)
			return nil
		})
		return err
	}

	return s.retry(ctx, txf, &fnErr, collection, id, key)
}

func (s *Store) BatchWrite(ctx context.Context, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	patches := make([]map[string]any, len(writes))
	keys := make([]string, 0, len(writes))
	seen := make(map[string]bool, len(writes))
	for i, w := range writes {
		patch, err := docstore.Normalize(w.Data)
		if err != nil {
			return err
		}
		patches[i] = patch
		key := docKey(w.Collection, w.ID)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	var fnErr error
	txf := func(tx *redis.Tx) error {
		staged := make(map[string]map[string]any, len(keys))
		for i, w := range writes {
			key := docKey(w.Collection, w.ID)
			current, ok := staged[key]
			if !ok {
				var err error
				current, err = readTx(ctx, tx, key)
				if err != nil {
					return err
				}
				staged[key] = current
			}
			docstore.Apply(current, patches[i], w.Merge)
		}
		encoded := make(map[string][]byte, len(staged))
		for key, data := range staged {
			raw, err := docstore.MarshalBytes(data)
			if err != nil {
				fnErr = err
				return err
			}
			encoded[key] = raw
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range writes {
				key := docKey(w.Collection, w.ID)
				pipe.Set(ctx, key, encoded[key], 0)
				pipe.SAdd(ctx, colKey(w.Collection), w.ID)
			}
			return nil
		})
		return err
	}

	return s.retry(ctx, txf, &fnErr, "batch", "", keys...)
}

func (s *Store) retry(ctx context.Context, txf func(*redis.Tx) error, fnErr *error, collection, id string, keys ...string) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if *fnErr != nil {
			return *fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return unavailable("update", collection, id, err)
	}
	return unavailable("update", collection, id, errors.New("too much contention"))
}

func readTx(ctx context.Context, tx *redis.Tx, key string) (map[string]any, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return docstore.DecodeBytes(raw)
}

func docKey(collection, id string) string {
	return "doc:" + collection + ":" + id
}

func colKey(collection string) string {
	return "col:" + collection
}

func unavailable(op, collection, id string, err error) error {
	return fmt.Errorf("redis %s %s/%s: %w: %w", op, collection, id, domain.ErrStoreUnavailable, err)
}
