package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/infra/memory"
)

func TestSendRendersTemplate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	n := app.NewNotifier(memory.NewStore(), 0, nil, clock.Now)

	note, err := n.Send(ctx, "u1", "streak_reminder", map[string]any{"streak": 4})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if note.Title != "🔥 Don't Break Your Streak!" || note.Icon != "🔥" {
		t.Fatalf("unexpected title/icon %q %q", note.Title, note.Icon)
	}
	if note.Message != "You have a 4-day streak! Complete today's challenge to keep it going." {
		t.Fatalf("unexpected message %q", note.Message)
	}
	if note.Priority != domain.PriorityHigh || note.ActionURL != "/daily-challenge" {
		t.Fatalf("unexpected template fields %+v", note)
	}
	if !strings.HasPrefix(note.ID, "streak_reminder_") {
		t.Fatalf("unexpected id %s", note.ID)
	}
	if !note.ExpiresAt.Equal(clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected 7 day expiry, got %s", note.ExpiresAt)
	}

	lesson, _ := n.Send(ctx, "u1", "learning_recommendation", map[string]any{"topic": "loops", "lesson_id": "python_loops"})
	if lesson.ActionURL != "/lesson/python_loops" {
		t.Fatalf("expected action url substitution, got %q", lesson.ActionURL)
	}
	rank, _ := n.Send(ctx, "u1", "rank_change", nil)
	if rank.Message != "You moved to rank #?!" {
		t.Fatalf("expected defaults, got %q", rank.Message)
	}
}

func TestSendUnknownTypeIsNoop(t *testing.T) {
	ctx := context.Background()
	n := app.NewNotifier(memory.NewStore(), 0, nil, nil)
	if _, err := n.Send(ctx, "u1", "birthday", nil); !errors.Is(err, domain.ErrUnknownNotification) {
		t.Fatalf("expected unknown notification error, got %v", err)
	}
	notes, err := n.List(ctx, "u1", false, 0)
	if err != nil || len(notes) != 0 {
		t.Fatalf("expected nothing queued, got %v %v", notes, err)
	}
}

func TestListOrdersByPriorityAndFiltersExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	n := app.NewNotifier(memory.NewStore(), 48*time.Hour, nil, clock.Now)

	mustSend := func(kind string) domain.Notification {
		note, err := n.Send(ctx, "u1", kind, nil)
		if err != nil {
			t.Fatalf("send %s: %v", kind, err)
		}
		clock.Advance(time.Minute)
		return note
	}
	old := mustSend("rank_change")
	clock.Advance(48 * time.Hour)
	medium := mustSend("new_challenge")
	high := mustSend("achievement_unlocked")

	notes, err := n.List(ctx, "u1", false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != high.ID || notes[1].ID != medium.ID {
		t.Fatalf("expected high then medium with expired %s dropped, got %+v", old.ID, notes)
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	n := app.NewNotifier(memory.NewStore(), 0, nil, clock.Now)

	a, _ := n.Send(ctx, "u1", "streak_reminder", nil)
	b, _ := n.Send(ctx, "u1", "rank_change", nil)

	if count, _ := n.UnreadCount(ctx, "u1"); count != 2 {
		t.Fatalf("expected 2 unread, got %d", count)
	}
	marked, err := n.MarkRead(ctx, "u1", a.ID, "missing")
	if err != nil || marked != 1 {
		t.Fatalf("mark read: %d %v", marked, err)
	}
	if marked, _ := n.MarkRead(ctx, "u1", a.ID); marked != 0 {
		t.Fatalf("marking twice must not count again")
	}

	unread, _ := n.List(ctx, "u1", true, 0)
	if len(unread) != 1 || unread[0].ID != b.ID {
		t.Fatalf("unexpected unread list %+v", unread)
	}
	all, _ := n.List(ctx, "u1", false, 0)
	for _, note := range all {
		if note.ID == a.ID && (!note.Read || note.ReadAt == nil) {
			t.Fatalf("expected read flag and timestamp, got %+v", note)
		}
	}
	if marked, err := n.MarkRead(ctx, "nobody", "x"); err != nil || marked != 0 {
		t.Fatalf("unknown user: %d %v", marked, err)
	}
}
