package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
)

// Period is a leaderboard aggregation window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// Periods lists every window a scoring event is recorded into.
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}

// hubSnapshotLimit caps the entries pushed to live subscribers.
const hubSnapshotLimit = 100

func ParsePeriod(raw string) (Period, error) {
	switch p := Period(raw); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return p, nil
	case "":
		return PeriodDaily, nil
	default:
		return "", fmt.Errorf("period %q: %w", raw, domain.ErrInvalidArgument)
	}
}

// Bucket names the window of p containing t (UTC).
func Bucket(p Period, t time.Time) string {
	t = t.UTC()
	switch p {
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d_W%02d", year, week)
	case PeriodMonthly:
		return t.Format("2006_01")
	case PeriodAllTime:
		return "all"
	default:
		return t.Format(DateLayout)
	}
}

// PeriodKey is the leaderboard path segment, e.g. global_daily/2026_10_14.
func PeriodKey(p Period, t time.Time) string {
	return "global_" + string(p) + "/" + Bucket(p, t)
}

// RankChange reports the caller's daily rank after a scoring event.
// PreviousRank is 0 when the user had no daily entry yet.
type RankChange struct {
	Rank         int
	PreviousRank int
}

// Improved reports a move up an existing ranking.
func (c RankChange) Improved() bool {
	return c.PreviousRank > 0 && c.Rank > 0 && c.Rank < c.PreviousRank
}

// Leaderboard maintains per-period entries and their ranks.
type Leaderboard struct {
	store docstore.Store
	hub   *Hub
	log   *logger.Logger
	now   func() time.Time
}

func NewLeaderboard(store docstore.Store, hub *Hub, log *logger.Logger, now func() time.Time) *Leaderboard {
	if hub == nil {
		hub = NewHub()
	}
	return &Leaderboard{store: store, hub: hub, log: logger.OrNop(log), now: clockOrNow(now)}
}

// RecordPoints adds points to the user's entry in every period and re-ranks
// each touched period synchronously so the caller can read its new rank.
// Ranking failures are logged and returned; the points stay recorded.
func (l *Leaderboard) RecordPoints(ctx context.Context, u domain.User, points int64) (RankChange, error) {
	now := l.now()
	var change RankChange

	if entry, ok, err := l.entry(ctx, PeriodKey(PeriodDaily, now), u.ID); err == nil && ok {
		change.PreviousRank = entry.Rank
	}

	for _, p := range Periods {
		key := PeriodKey(p, now)
		err := l.store.Update(ctx, docstore.LeaderboardCollection(key), u.ID, func(data map[string]any) error {
			if err := docstore.IncrementPath(data, "points", points); err != nil {
				return err
			}
			data["user_id"] = u.ID
			data["display_name"] = u.Profile.Name
			data["streak"] = u.Stats.CurrentStreak
			data["class_id"] = u.Profile.ClassID
			if u.Profile.Avatar != "" {
				data["avatar_url"] = u.Profile.Avatar
			}
			data["last_updated"] = now.UTC().Format(time.RFC3339Nano)
			return nil
		})
		if err != nil {
			return change, fmt.Errorf("record %s points: %w", key, err)
		}
	}

	var errs []error
	for _, p := range Periods {
		key := PeriodKey(p, now)
		ranks, err := l.RecalculateRankings(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p == PeriodDaily {
			change.Rank = ranks[u.ID]
		}
	}
	return change, errors.Join(errs...)
}

// RecalculateRankings orders the entries of periodKey by points descending,
// then user id ascending, and persists rank = position in one batch.
// Ranks are distinct; ties never share a rank.
func (l *Leaderboard) RecalculateRankings(ctx context.Context, periodKey string) (map[string]int, error) {
	collection := docstore.LeaderboardCollection(periodKey)
	docs, err := l.store.Query(ctx, collection, docstore.Query{OrderBy: "points", Descending: true})
	if err != nil {
		l.log.Warn("leaderboard query failed", "period_key", periodKey, "error", err)
		return nil, err
	}

	ranks := make(map[string]int, len(docs))
	writes := make([]docstore.Write, 0, len(docs))
	entries := make([]domain.LeaderboardEntry, 0, len(docs))
	for i, doc := range docs {
		rank := i + 1
		ranks[doc.ID] = rank
		writes = append(writes, docstore.Write{
			Collection: collection,
			ID:         doc.ID,
			Data:       map[string]any{"rank": rank},
			Merge:      true,
		})
		if len(entries) < hubSnapshotLimit {
			entry, err := decodeEntry(doc)
			if err != nil {
				return nil, err
			}
			entry.Rank = rank
			entries = append(entries, entry)
		}
	}

	if err := l.store.BatchWrite(ctx, writes); err != nil {
		l.log.Warn("leaderboard temporarily unavailable", "period_key", periodKey, "error", err)
		return nil, fmt.Errorf("persist ranks %s: %w", periodKey, err)
	}

	l.hub.Publish(domain.Leaderboard{PeriodKey: periodKey, Entries: entries, UpdatedAt: l.now()})
	return ranks, nil
}

// Top returns up to limit entries of the period window containing t, by rank.
func (l *Leaderboard) Top(ctx context.Context, p Period, t time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	docs, err := l.store.Query(ctx, docstore.LeaderboardCollection(PeriodKey(p, t)), docstore.Query{
		OrderBy: "rank",
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := decodeEntry(doc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// UserRank returns the user's entry for the window containing t.
func (l *Leaderboard) UserRank(ctx context.Context, p Period, t time.Time, uid string) (domain.LeaderboardEntry, bool, error) {
	return l.entry(ctx, PeriodKey(p, t), uid)
}

// Subscribe streams rankings of the current window of p. The first value is
// the stored ranking; the caller must invoke cancel.
func (l *Leaderboard) Subscribe(ctx context.Context, p Period, limit int) (<-chan domain.Leaderboard, func(), error) {
	now := l.now()
	entries, err := l.Top(ctx, p, now, limit)
	if err != nil {
		return nil, nil, err
	}
	key := PeriodKey(p, now)
	ch, cancel := l.hub.Subscribe(key, domain.Leaderboard{PeriodKey: key, Entries: entries, UpdatedAt: now})
	return ch, cancel, nil
}

func (l *Leaderboard) entry(ctx context.Context, periodKey, uid string) (domain.LeaderboardEntry, bool, error) {
	doc, ok, err := l.store.Get(ctx, docstore.LeaderboardCollection(periodKey), uid)
	if err != nil || !ok {
		return domain.LeaderboardEntry{}, ok, err
	}
	entry, err := decodeEntry(doc)
	return entry, err == nil, err
}

func decodeEntry(doc docstore.Document) (domain.LeaderboardEntry, error) {
	var entry domain.LeaderboardEntry
	if err := docstore.Decode(doc.Data, &entry); err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if entry.UserID == "" {
		entry.UserID = doc.ID
	}
	return entry, nil
}
