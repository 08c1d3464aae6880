package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
)

// Store keeps documents as JSONB rows in the documents table, keyed by
// (collection, id). Every mutation runs in a transaction holding the row lock.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM documents WHERE collection=$1 ORDER BY id`, collection)
	if err != nil {
		return nil, unavailable("query", collection, "", err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, unavailable("query", collection, "", err)
		}
		data, err := docstore.DecodeBytes(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query", collection, "", err)
	}
	return docstore.Run(docs, q)
}

func (s *Store) Update(ctx context.Context, collection, id string, fn func(data map[string]any) error) error {
	var fnErr error
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		return mutate(ctx, tx, collection, id, func(data map[string]any) error {
			if err := fn(data); err != nil {
				fnErr = err
				return err
			}
			return nil
		})
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return unavailable("update", collection, id, err)
	}
	return nil
}

func (s *Store) BatchWrite(ctx context.Context, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	patches := make([]map[string]any, len(writes))
	for i, w := range writes {
		patch, err := docstore.Normalize(w.Data)
		if err != nil {
			return err
		}
		patches[i] = patch
	}

	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		for i, w := range writes {
			patch, merge := patches[i], w.Merge
			if err := mutate(ctx, tx, w.Collection, w.ID, func(data map[string]any) error {
				docstore.Apply(data, patch, merge)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("batch", "", "", err)
	}
	return nil
}

// mutate locks the row (creating an empty one if needed), hands its data to
// fn and writes the result back inside tx.
func mutate(ctx context.Context, tx pgx.Tx, collection, id string, fn func(map[string]any) error) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, '{}'::jsonb) ON CONFLICT (collection, id) DO NOTHING`,
		collection, id); err != nil {
		return err
	}

	var raw []byte
	if err := tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`,
		collection, id).Scan(&raw); err != nil {
		return err
	}
	data, err := docstore.DecodeBytes(raw)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	out, err := docstore.MarshalBytes(data)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE documents SET data=$3::jsonb, updated_at=now() WHERE collection=$1 AND id=$2`,
		collection, id, string(out))
	return err
}

func unavailable(op, collection, id string, err error) error {
	return fmt.Errorf("postgres %s %s/%s: %w: %w", op, collection, id, domain.ErrStoreUnavailable, err)
}
