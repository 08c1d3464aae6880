package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 7 * 24 * time.Hour

type notificationTemplate struct {
	title      string
	message    string
	actionURL  string
	actionText string
	priority   domain.Priority
	defaults   map[string]any
}

var notificationTemplates = map[string]notificationTemplate{
	"streak_reminder": {
		title:      "🔥 Don't Break Your Streak!",
		message:    "You have a {streak}-day streak! Complete today's challenge to keep it going.",
		actionURL:  "/daily-challenge",
		actionText: "Take Challenge",
		priority:   domain.PriorityHigh,
		defaults:   map[string]any{"streak": 0},
	},
	"rank_change": {
		title:      "🏆 Rank Update!",
		message:    "You moved to rank #{new_rank}! {change_text}",
		actionURL:  "/leaderboard",
		actionText: "View Leaderboard",
		priority:   domain.PriorityMedium,
		defaults:   map[string]any{"new_rank": "?"},
	},
	"achievement_unlocked": {
		title:      "🏅 Achievement Unlocked!",
		message:    `Congratulations! You earned the "{badge_name}" badge!`,
		actionURL:  "/achievements",
		actionText: "View Achievement",
		priority:   domain.PriorityHigh,
	},
	"learning_recommendation": {
		title:      "🎯 Perfect Time to Study!",
		message:    "Based on your progress, we recommend reviewing {topic}.",
		actionURL:  "/lesson/{lesson_id}",
		actionText: "Start Learning",
		priority:   domain.PriorityMedium,
	},
	"new_challenge": {
		title:      "📅 New Daily Challenge!",
		message:    "Today's challenge on {topic} is live. Earn up to {points} points!",
		actionURL:  "/daily-challenge",
		actionText: "Take Challenge",
		priority:   domain.PriorityMedium,
	},
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

var errNothingToMark = errors.New("no notifications")

// Notifier queues templated notifications under notifications/{uid}.pending.
type Notifier struct {
	store docstore.Store
	ttl   time.Duration
	log   *logger.Logger
	now   func() time.Time
}

func NewNotifier(store docstore.Store, ttl time.Duration, log *logger.Logger, now func() time.Time) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{store: store, ttl: ttl, log: logger.OrNop(log), now: clockOrNow(now)}
}

// Send renders the template for kind and appends it to the user's pending
// list. Unknown kinds are logged and return domain.ErrUnknownNotification
// without writing anything. Repeated calls are not deduplicated.
func (n *Notifier) Send(ctx context.Context, uid, kind string, vars map[string]any) (domain.Notification, error) {
	tmpl, ok := notificationTemplates[kind]
	if !ok {
		n.log.Error("unknown notification type", "type", kind, "user", uid)
		return domain.Notification{}, fmt.Errorf("%q: %w", kind, domain.ErrUnknownNotification)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Notification{}, err
	}
	now := n.now()
	title := render(tmpl.title, tmpl.defaults, vars)
	note := domain.Notification{
		ID:         kind + "_" + id.String(),
		Type:       kind,
		Priority:   tmpl.priority,
		Title:      title,
		Message:    strings.TrimSpace(render(tmpl.message, tmpl.defaults, vars)),
		ActionURL:  render(tmpl.actionURL, tmpl.defaults, vars),
		ActionText: tmpl.actionText,
		Icon:       firstWord(title),
		CreatedAt:  now,
		ExpiresAt:  now.Add(n.ttl),
	}
	enc, err := docstore.Encode(note)
	if err != nil {
		return domain.Notification{}, err
	}
	if err := n.store.ArrayUnion(ctx, docstore.Notifications, uid, "pending", enc); err != nil {
		return domain.Notification{}, err
	}
	n.log.Debug("notification queued", "user", uid, "type", kind, "id", note.ID)
	return note, nil
}

// List returns the visible notifications, most important first then newest.
// limit <= 0 returns all.
func (n *Notifier) List(ctx context.Context, uid string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	all, err := n.pending(ctx, uid)
	if err != nil {
		return nil, err
	}
	now := n.now()
	out := make([]domain.Notification, 0, len(all))
	for _, note := range all {
		if note.Expired(now) || (unreadOnly && note.Read) {
			continue
		}
		out = append(out, note)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if oi, oj := out[i].Priority.Order(), out[j].Priority.Order(); oi != oj {
			return oi < oj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (n *Notifier) UnreadCount(ctx context.Context, uid string) (int, error) {
	unread, err := n.List(ctx, uid, true, 0)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// MarkRead flips read on the given ids and returns how many changed.
func (n *Notifier) MarkRead(ctx context.Context, uid string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	marked := 0
	err := n.store.Update(ctx, docstore.Notifications, uid, func(data map[string]any) error {
		marked = 0
		notes, err := decodePending(data)
		if err != nil {
			return err
		}
		now := n.now()
		for i := range notes {
			if want[notes[i].ID] && !notes[i].Read {
				notes[i].Read = true
				readAt := now
				notes[i].ReadAt = &readAt
				marked++
			}
		}
		if marked == 0 {
			return errNothingToMark
		}
		enc, err := docstore.NormalizeValue(notes)
		if err != nil {
			return err
		}
		data["pending"] = enc
		return nil
	})
	if errors.Is(err, errNothingToMark) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return marked, nil
}

func (n *Notifier) pending(ctx context.Context, uid string) ([]domain.Notification, error) {
	doc, ok, err := n.store.Get(ctx, docstore.Notifications, uid)
	if err != nil || !ok {
		return nil, err
	}
	return decodePending(doc.Data)
}

func decodePending(data map[string]any) ([]domain.Notification, error) {
	var doc struct {
		Pending []domain.Notification `json:"pending"`
	}
	if err := docstore.Decode(data, &doc); err != nil {
		return nil, err
	}
	return doc.Pending, nil
}

func render(text string, defaults, vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := vars[key]; ok {
			return fmt.Sprint(v)
		}
		if v, ok := defaults[key]; ok {
			return fmt.Sprint(v)
		}
		return ""
	})
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
