package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/infra/memory"
)

var testNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	service *app.Service
	router  *mux.Router
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	now := func() time.Time { return testNow }
	hub := app.NewHub()
	svc := app.NewService(memory.NewStore(), nil, hub, nil, app.Options{Now: now})
	h := NewHandler(svc, nil, now)
	return &testEnv{
		service: svc,
		router:  NewRouter(h, NewWSHandler(svc.Leaderboard, nil), NewAuthenticator(secret, now)),
	}
}

func (e *testEnv) user(t *testing.T, uid, name string) domain.User {
	t.Helper()
	u, err := e.service.EnsureUser(context.Background(), uid, domain.Profile{Name: name})
	if err != nil {
		t.Fatalf("ensure %s: %v", uid, err)
	}
	return u
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, uid string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
		req.Header.Set("X-User-Name", "Learner "+uid)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec.Code, resp
}

func TestDailyChallengeSubmitFlow(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	c, _, err := env.service.GenerateToday(ctx, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	status, resp := env.do(t, http.MethodGet, "/api/daily_challenge", "u1", nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("get challenge: %d %+v", status, resp)
	}
	var view app.ChallengeView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Question.CorrectAnswer != "" {
		t.Fatalf("answer leaked before attempt")
	}

	status, resp = env.do(t, http.MethodPost, "/api/daily_challenge/submit", "u1", map[string]any{
		"answer":             strings.ToUpper(c.GlobalChallenge.CorrectAnswer),
		"time_taken_seconds": 30,
		"hints_used":         0,
	})
	if status != http.StatusOK {
		t.Fatalf("submit: %d %+v", status, resp)
	}
	var out app.ChallengeOutcome
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !out.Correct || out.Rewards.Points != 75 || out.Rank != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	status, resp = env.do(t, http.MethodPost, "/api/daily_challenge/submit", "u1", map[string]any{"answer": "x"})
	if status != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400 on resubmit, got %d %+v", status, resp)
	}

	status, resp = env.do(t, http.MethodGet, "/api/dashboard/leaderboard?period=daily&limit=5", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: %d %+v", status, resp)
	}
	var lb leaderboardResponse
	if err := json.Unmarshal(resp.Data, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if lb.PeriodKey != "global_daily/2026_10_14" || len(lb.Entries) != 1 || lb.UserRank == nil || lb.UserRank.Points != 75 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
}

func TestStatusMapping(t *testing.T) {
	env := newTestEnv(t, "")

	status, _ := env.do(t, http.MethodGet, "/api/dashboard", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", status)
	}

	status, _ = env.do(t, http.MethodGet, "/api/daily_challenge", "u1", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 without challenge, got %d", status)
	}

	status, _ = env.do(t, http.MethodGet, "/api/dashboard/leaderboard?period=hourly", "u1", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown period, got %d", status)
	}

	status, _ = env.do(t, http.MethodPost, "/api/quiz/submit", "u1", map[string]any{"quiz_id": "q1", "score": 120, "max_score": 100})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for score above max, got %d", status)
	}

	cases := map[error]int{
		domain.ErrNotAuthenticated:    http.StatusUnauthorized,
		domain.ErrUserNotFound:        http.StatusNotFound,
		domain.ErrAlreadySubmitted:    http.StatusBadRequest,
		domain.ErrWrongChallengeKind:  http.StatusBadRequest,
		domain.ErrStoreUnavailable:    http.StatusInternalServerError,
		domain.ErrExecutorUnavailable: http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got, _ := statusFor(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, "")
	if _, _, err := env.service.GenerateToday(context.Background(), false); err != nil {
		t.Fatalf("generate: %v", err)
	}
	env.user(t, "u1", "Alice")

	cases := []struct {
		name  string
		path  string
		body  any
		field string
	}{
		{"blank answer", "/api/daily_challenge/submit", map[string]any{"answer": "   "}, "answer: notblank"},
		{"negative hints", "/api/daily_challenge/submit", map[string]any{"answer": "x", "hints_used": -1}, "hints_used: gte=0"},
		{"blank code", "/api/bellringer/submit", map[string]any{"code": ""}, "code: notblank"},
		{"no ids", "/api/notifications/mark-read", map[string]any{"notification_ids": []string{}}, "notification_ids: min=1"},
		{"empty id", "/api/notifications/mark-read", map[string]any{"notification_ids": []string{""}}, "notification_ids[0]: required"},
		{"no quiz target", "/api/quiz/submit", map[string]any{"score": 5}, "lesson_id: required_without=QuizID"},
		{"negative score", "/api/quiz/submit", map[string]any{"quiz_id": "q1", "score": -1}, "score: gte=0"},
	}
	for _, tc := range cases {
		status, resp := env.do(t, http.MethodPost, tc.path, "u1", tc.body)
		if status != http.StatusBadRequest || resp.Success {
			t.Fatalf("%s: expected 400, got %d %+v", tc.name, status, resp)
		}
		if !strings.Contains(resp.Error, tc.field) {
			t.Fatalf("%s: expected %q in %q", tc.name, tc.field, resp.Error)
		}
	}

	u, err := env.service.Users.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Stats.TotalPoints != 0 {
		t.Fatalf("rejected requests must not pay, got %+v", u.Stats)
	}
}

func TestNotificationsAndMarkRead(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.user(t, "u1", "Alice")
	note, err := env.service.Notifier.Send(ctx, "u1", "streak_reminder", map[string]any{"streak": 3})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	status, resp := env.do(t, http.MethodGet, "/api/notifications?unread_only=true", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %+v", status, resp)
	}
	var list notificationsResponse
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Notifications) != 1 || list.UnreadCount != 1 {
		t.Fatalf("unexpected notifications %+v", list)
	}

	status, resp = env.do(t, http.MethodPost, "/api/notifications/mark-read", "u1", map[string]any{"notification_ids": []string{note.ID}})
	if status != http.StatusOK {
		t.Fatalf("mark read: %d %+v", status, resp)
	}
	var marked map[string]int
	if err := json.Unmarshal(resp.Data, &marked); err != nil {
		t.Fatalf("decode marked: %v", err)
	}
	if marked["marked"] != 1 {
		t.Fatalf("expected one marked, got %v", marked)
	}

	_, resp = env.do(t, http.MethodGet, "/api/notifications?unread_only=true", "u1", nil)
	list = notificationsResponse{}
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Notifications) != 0 || list.UnreadCount != 0 {
		t.Fatalf("expected nothing unread, got %+v", list)
	}
}

func TestLessonCompletionAndFeed(t *testing.T) {
	env := newTestEnv(t, "")

	status, resp := env.do(t, http.MethodPost, "/api/lessons/loops_intro/complete", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("complete: %d %+v", status, resp)
	}
	var out app.LessonOutcome
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !out.NewlyCompleted || out.Points != 25 {
		t.Fatalf("unexpected lesson outcome %+v", out)
	}

	_, resp = env.do(t, http.MethodPost, "/api/lessons/loops_intro/complete", "u1", nil)
	out = app.LessonOutcome{}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode repeat outcome: %v", err)
	}
	if out.NewlyCompleted {
		t.Fatalf("second completion must not count")
	}

	status, resp = env.do(t, http.MethodGet, "/api/activity-feed?limit=5", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("feed: %d %+v", status, resp)
	}
	var items []domain.ActivityItem
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected lesson activity in feed")
	}
}

func TestJWTAuthentication(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	sign := func(secret string, claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}
	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("X-User-ID", "spoofed")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec.Code
	}

	valid := sign("test-secret", jwt.MapClaims{"sub": "u9", "name": "Nine", "exp": testNow.Add(time.Hour).Unix()})
	if code := call(valid); code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", code)
	}
	if _, err := env.service.Users.Get(context.Background(), "u9"); err != nil {
		t.Fatalf("expected user created on first request: %v", err)
	}
	if _, err := env.service.Users.Get(context.Background(), "spoofed"); err == nil {
		t.Fatalf("header identity must be ignored when a secret is set")
	}

	if code := call(sign("other-secret", jwt.MapClaims{"sub": "u9"})); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", code)
	}
	expired := sign("test-secret", jwt.MapClaims{"sub": "u9", "exp": testNow.Add(-time.Hour).Unix()})
	if code := call(expired); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", code)
	}
	if code := call(""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rec.Code, rec.Body.String())
	}
}
