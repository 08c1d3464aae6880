package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
)

const (
	// feedCapacity triggers eviction once exceeded; feedRetain items survive it.
	feedCapacity = 100
	feedRetain   = 50
)

var activityTemplates = map[string]struct {
	text     string
	defaults map[string]any
}{
	"quiz_completed":       {text: "completed {lesson_name} with {score}% score!", defaults: map[string]any{"lesson_name": "a quiz", "score": 0}},
	"achievement_unlocked": {text: "unlocked the {achievement_name} badge!"},
	"streak_milestone":     {text: "reached a {streak}-day study streak!"},
	"level_up":             {text: "leveled up to {new_level}!"},
	"daily_challenge":      {text: "completed today's daily challenge!"},
	"lesson_completed":     {text: "completed {lesson_name}!", defaults: map[string]any{"lesson_name": "a lesson"}},
	"bellringer_completed": {text: "passed {passed} of {total} bell-ringer tests!"},
}

const fallbackActivity = "did something awesome!"

// Activity is one event to append to the shared feed.
type Activity struct {
	UserID      string
	UserName    string
	Type        string
	Points      int64
	Celebration string
	Vars        map[string]any
}

// ActivityFeed is the bounded shared log at real_time_activity/live_feed.
type ActivityFeed struct {
	store docstore.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewActivityFeed(store docstore.Store, log *logger.Logger, now func() time.Time) *ActivityFeed {
	return &ActivityFeed{store: store, log: logger.OrNop(log), now: clockOrNow(now)}
}

// Log appends an item and evicts in the same update: past feedCapacity only
// the feedRetain most recent items are kept.
func (f *ActivityFeed) Log(ctx context.Context, a Activity) (domain.ActivityItem, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.ActivityItem{}, err
	}
	item := domain.ActivityItem{
		ID:               id.String(),
		UserID:           a.UserID,
		UserName:         a.UserName,
		ActionType:       a.Type,
		Description:      describe(a.Type, a.Vars),
		PointsEarned:     a.Points,
		Timestamp:        f.now(),
		CelebrationLevel: a.Celebration,
		Context:          a.Vars,
	}
	if item.CelebrationLevel == "" {
		item.CelebrationLevel = "normal"
	}

	err = f.store.Update(ctx, docstore.RealTimeFeed, docstore.LiveFeedID, func(data map[string]any) error {
		items, err := decodeFeed(data)
		if err != nil {
			return err
		}
		items = evict(append(items, item))
		enc, err := docstore.NormalizeValue(items)
		if err != nil {
			return err
		}
		data["feed"] = enc
		return nil
	})
	if err != nil {
		return domain.ActivityItem{}, err
	}
	return item, nil
}

// Recent returns up to limit items, newest first. limit <= 0 returns all.
func (f *ActivityFeed) Recent(ctx context.Context, limit int) ([]domain.ActivityItem, error) {
	doc, ok, err := f.store.Get(ctx, docstore.RealTimeFeed, docstore.LiveFeedID)
	if err != nil || !ok {
		return []domain.ActivityItem{}, err
	}
	items, err := decodeFeed(doc.Data)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func evict(items []domain.ActivityItem) []domain.ActivityItem {
	if len(items) <= feedCapacity {
		return items
	}
	sortNewestFirst(items)
	kept := items[:feedRetain]
	// stored oldest first, the order appends arrive in
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Timestamp.Before(kept[j].Timestamp) })
	return kept
}

func sortNewestFirst(items []domain.ActivityItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
}

func decodeFeed(data map[string]any) ([]domain.ActivityItem, error) {
	var doc struct {
		Feed []domain.ActivityItem `json:"feed"`
	}
	if err := docstore.Decode(data, &doc); err != nil {
		return nil, err
	}
	return doc.Feed, nil
}

func describe(kind string, vars map[string]any) string {
	tmpl, ok := activityTemplates[kind]
	if !ok {
		return fallbackActivity
	}
	return render(tmpl.text, tmpl.defaults, vars)
}
