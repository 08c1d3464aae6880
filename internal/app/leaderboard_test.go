package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/infra/memory"
)

func TestRecalculateRankingsOrdersByPointsThenUserID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	lb := app.NewLeaderboard(store, nil, nil, clock.Now)

	key := app.PeriodKey(app.PeriodDaily, clock.Now())
	collection := docstore.LeaderboardCollection(key)
	for id, points := range map[string]int{"a": 50, "b": 80, "c": 80, "d": 30} {
		if err := store.Set(ctx, collection, id, map[string]any{"user_id": id, "points": points}, false); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	ranks, err := lb.RecalculateRankings(ctx, key)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	want := map[string]int{"b": 1, "c": 2, "a": 3, "d": 4}
	for id, rank := range want {
		if ranks[id] != rank {
			t.Fatalf("rank of %s = %d, want %d (all %v)", id, ranks[id], rank, ranks)
		}
	}

	top, err := lb.Top(ctx, app.PeriodDaily, clock.Now(), 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 4 || top[0].UserID != "b" || top[3].UserID != "d" || top[3].Rank != 4 {
		t.Fatalf("unexpected persisted order %+v", top)
	}
}

func TestRecordPointsAccumulatesAcrossPeriods(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newFakeClock()
	lb := app.NewLeaderboard(store, nil, nil, clock.Now)

	alice := domain.User{ID: "alice", Profile: domain.Profile{Name: "Alice"}}
	bob := domain.User{ID: "bob", Profile: domain.Profile{Name: "Bob"}}

	if change, err := lb.RecordPoints(ctx, alice, 40); err != nil || change.Rank != 1 || change.PreviousRank != 0 {
		t.Fatalf("alice first record: %+v %v", change, err)
	}
	if change, err := lb.RecordPoints(ctx, bob, 60); err != nil || change.Rank != 1 {
		t.Fatalf("bob record: %+v %v", change, err)
	}
	change, err := lb.RecordPoints(ctx, alice, 30)
	if err != nil {
		t.Fatalf("alice second record: %v", err)
	}
	if change.Rank != 1 || change.PreviousRank != 2 || !change.Improved() {
		t.Fatalf("expected alice to climb from 2 to 1, got %+v", change)
	}

	for _, p := range app.Periods {
		entry, ok, err := lb.UserRank(ctx, p, clock.Now(), "alice")
		if err != nil || !ok {
			t.Fatalf("%s entry: %v %v", p, ok, err)
		}
		if entry.Points != 70 || entry.DisplayName != "Alice" {
			t.Fatalf("%s entry: %+v", p, entry)
		}
	}

	// the next day starts a fresh daily bucket but keeps all_time
	clock.Advance(24 * time.Hour)
	if _, ok, _ := lb.UserRank(ctx, app.PeriodDaily, clock.Now(), "alice"); ok {
		t.Fatalf("expected empty daily bucket on the next day")
	}
	if entry, ok, _ := lb.UserRank(ctx, app.PeriodAllTime, clock.Now(), "alice"); !ok || entry.Points != 70 {
		t.Fatalf("expected all_time to persist, got %+v", entry)
	}
}

func TestPeriodKeys(t *testing.T) {
	ts := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)
	cases := map[app.Period]string{
		app.PeriodDaily:   "global_daily/2026_10_14",
		app.PeriodWeekly:  "global_weekly/2026_W42",
		app.PeriodMonthly: "global_monthly/2026_10",
		app.PeriodAllTime: "global_all_time/all",
	}
	for p, want := range cases {
		if got := app.PeriodKey(p, ts); got != want {
			t.Fatalf("%s: %s, want %s", p, got, want)
		}
	}
	if p, err := app.ParsePeriod(""); err != nil || p != app.PeriodDaily {
		t.Fatalf("empty period should default to daily")
	}
	if _, err := app.ParsePeriod("yearly"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid period error, got %v", err)
	}
}

func TestSubscribeReceivesRankings(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	hub := app.NewHub()
	lb := app.NewLeaderboard(memory.NewStore(), hub, nil, clock.Now)

	ch, cancel, err := lb.Subscribe(ctx, app.PeriodDaily, 10)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", initial.Entries)
	}

	if _, err := lb.RecordPoints(ctx, domain.User{ID: "u1", Profile: domain.Profile{Name: "Ada"}}, 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	select {
	case update := <-ch:
		if len(update.Entries) != 1 || update.Entries[0].UserID != "u1" || update.Entries[0].Rank != 1 {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for ranking update")
	}
}

func TestHubDropsStaleSnapshots(t *testing.T) {
	hub := app.NewHub()
	ch, cancel := hub.Subscribe("global_daily/x", domain.Leaderboard{PeriodKey: "global_daily/x"})
	defer cancel()

	for i := 0; i < 20; i++ {
		hub.Publish(domain.Leaderboard{PeriodKey: "global_daily/x", Entries: make([]domain.LeaderboardEntry, i)})
	}
	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	if len(last.Entries) != 19 {
		t.Fatalf("expected newest snapshot to survive, got %d entries", len(last.Entries))
	}

	cancel()
	if hub.Subscribers("global_daily/x") != 0 {
		t.Fatalf("expected subscriber removed")
	}
}
