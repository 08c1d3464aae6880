// Package storetest holds the behavioural checks every docstore backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pyquest-gamification/internal/docstore"
)

// Run exercises a store implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Helper()

	t.Run("SetGetMerge", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if _, ok, err := s.Get(ctx, "users", "u1"); err != nil || ok {
			t.Fatalf("expected missing doc, ok=%v err=%v", ok, err)
		}
		if err := s.Set(ctx, "users", "u1", map[string]any{"profile": map[string]any{"name": "Ada", "class_id": "c1"}}, false); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := s.Set(ctx, "users", "u1", map[string]any{"profile": map[string]any{"name": "Ada L"}}, true); err != nil {
			t.Fatalf("merge: %v", err)
		}
		doc, ok, err := s.Get(ctx, "users", "u1")
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		profile := doc.Data["profile"].(map[string]any)
		if profile["name"] != "Ada L" || profile["class_id"] != "c1" {
			t.Fatalf("unexpected merged profile %v", profile)
		}

		if err := s.Set(ctx, "users", "u1", map[string]any{"only": true}, false); err != nil {
			t.Fatalf("replace: %v", err)
		}
		doc, _, _ = s.Get(ctx, "users", "u1")
		if _, ok := doc.Data["profile"]; ok {
			t.Fatalf("expected replace to drop old fields, got %v", doc.Data)
		}
	})

	t.Run("IncrementConcurrent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Increment(ctx, "users", "u1", "stats.total_points", 5); err != nil {
					t.Errorf("increment: %v", err)
				}
			}()
		}
		wg.Wait()

		doc, _, err := s.Get(ctx, "users", "u1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		v, _ := docstore.GetPath(doc.Data, "stats.total_points")
		if n, _ := docstore.AsInt64(v); n != 100 {
			t.Fatalf("expected 100 points, got %v", v)
		}
	})

	t.Run("ArrayUnion", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.ArrayUnion(ctx, "users", "u1", "achievements.badges_earned", "quiz_master"); err != nil {
			t.Fatalf("union: %v", err)
		}
		if err := s.ArrayUnion(ctx, "users", "u1", "achievements.badges_earned", "quiz_master", "streak_5"); err != nil {
			t.Fatalf("union: %v", err)
		}
		doc, _, _ := s.Get(ctx, "users", "u1")
		v, _ := docstore.GetPath(doc.Data, "achievements.badges_earned")
		if arr, _ := v.([]any); len(arr) != 2 {
			t.Fatalf("expected two unique badges, got %v", v)
		}
	})

	t.Run("QueryOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		col := docstore.LeaderboardCollection("global_daily/2026_10_14")
		for id, pts := range map[string]int{"a": 50, "b": 80, "c": 80, "d": 30} {
			if err := s.Set(ctx, col, id, map[string]any{"points": pts}, false); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		docs, err := s.Query(ctx, col, docstore.Query{OrderBy: "points", Descending: true})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(docs) != 4 || docs[0].ID != "b" || docs[1].ID != "c" || docs[3].ID != "d" {
			t.Fatalf("unexpected order %+v", docs)
		}
		other, err := s.Query(ctx, docstore.Users, docstore.Query{})
		if err != nil || len(other) != 0 {
			t.Fatalf("expected collections isolated, got %d err=%v", len(other), err)
		}
	})

	t.Run("BatchWrite", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.Set(ctx, "lb", "a", map[string]any{"points": 10}, false); err != nil {
			t.Fatalf("seed: %v", err)
		}
		err := s.BatchWrite(ctx, []docstore.Write{
			{Collection: "lb", ID: "a", Data: map[string]any{"rank": 1}, Merge: true},
			{Collection: "lb", ID: "b", Data: map[string]any{"rank": 2}, Merge: true},
		})
		if err != nil {
			t.Fatalf("batch: %v", err)
		}
		doc, _, _ := s.Get(ctx, "lb", "a")
		if n, _ := docstore.AsInt64(doc.Data["rank"]); n != 1 {
			t.Fatalf("expected rank 1, got %v", doc.Data)
		}
		if n, _ := docstore.AsInt64(doc.Data["points"]); n != 10 {
			t.Fatalf("expected merge to keep points, got %v", doc.Data)
		}
	})

	t.Run("UpdateAborts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		boom := errors.New("boom")
		err := s.Update(ctx, "daily_challenges", "d1", func(data map[string]any) error {
			data["x"] = 1
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected callback error, got %v", err)
		}
		if _, ok, _ := s.Get(ctx, "daily_challenges", "d1"); ok {
			t.Fatalf("expected aborted update to leave no document")
		}
	})
}
