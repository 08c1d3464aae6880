package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/infra/memory"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// tickingClock returns a strictly increasing instant on every call.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// scriptedExecutor answers by stdin.
type scriptedExecutor struct {
	outputs map[string]string
	err     error
	calls   int
}

func (e *scriptedExecutor) Run(_ context.Context, _ string, stdin string) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	return e.outputs[stdin], nil
}

func newTestService(t *testing.T, clock *fakeClock, exec app.Executor, badges []domain.Badge) (*app.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := app.NewService(store, exec, app.NewHub(), nil, app.Options{
		Rule:   app.CutoffRule{Location: time.UTC},
		Badges: badges,
		Now:    clock.Now,
	})
	return svc, store
}

func mustUser(t *testing.T, svc *app.Service, uid, name string) domain.User {
	t.Helper()
	u, err := svc.EnsureUser(context.Background(), uid, domain.Profile{Name: name, ClassID: "class-a"})
	if err != nil {
		t.Fatalf("ensure user %s: %v", uid, err)
	}
	return u
}
