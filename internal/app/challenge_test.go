package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"pyquest-gamification/internal/app"
	"pyquest-gamification/internal/catalog"
	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/infra/memory"
	"pyquest-gamification/internal/scoring"
)

func TestCutoffRuleDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	utc := app.CutoffRule{}
	eastern := app.CutoffRule{Location: ny, Hour: 8}

	cases := []struct {
		rule app.CutoffRule
		at   time.Time
		want string
	}{
		{utc, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), "2026_10_14"},
		{utc, time.Date(2026, 10, 13, 23, 59, 59, 0, time.UTC), "2026_10_13"},
		// 11:59 UTC is 07:59 EDT: still the previous challenge day
		{eastern, time.Date(2026, 10, 14, 11, 59, 0, 0, time.UTC), "2026_10_13"},
		{eastern, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), "2026_10_14"},
	}
	for _, tc := range cases {
		if got := tc.rule.Day(tc.at); got != tc.want {
			t.Fatalf("%v at %s: %s, want %s", tc.rule.Hour, tc.at, got, tc.want)
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewStore()
	m := app.NewChallengeManager(store, nil, app.CutoffRule{}, nil, clock.Now)

	first, created, err := m.Generate(ctx, "2026_10_14")
	if err != nil || !created {
		t.Fatalf("first generate: created=%v err=%v", created, err)
	}
	if _, err := m.Submit(ctx, "u1", "2026_10_14", app.Answer{Answer: "Result: 8"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	clock.Advance(time.Hour)
	second, created, err := m.Generate(ctx, "2026_10_14")
	if err != nil || created {
		t.Fatalf("second generate: created=%v err=%v", created, err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !reflect.DeepEqual(second.GlobalChallenge, first.GlobalChallenge) {
		t.Fatalf("expected the stored challenge back unchanged")
	}
	if _, ok := second.Participants["u1"]; !ok {
		t.Fatalf("participants must survive regeneration")
	}
}

func TestGenerateTargetsWeakestTopic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := app.NewUsers(store, nil)
	for id, mastery := range map[string]map[string]float64{
		"u1": {"variables": 90, "loops": 40, "functions": 70},
		"u2": {"variables": 80, "loops": 60, "functions": 60},
	} {
		if _, _, err := users.Ensure(ctx, id, domain.Profile{}); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		m := mastery
		if _, err := users.Mutate(ctx, id, func(u *domain.User) error {
			u.Progress.MasteryLevels = m
			return nil
		}); err != nil {
			t.Fatalf("seed mastery: %v", err)
		}
	}

	m := app.NewChallengeManager(store, nil, app.CutoffRule{}, nil, newFakeClock().Now)
	weak, err := m.ClassWeakTopics(ctx)
	if err != nil {
		t.Fatalf("weak topics: %v", err)
	}
	// loops avg 50, functions avg 65, variables avg 85 is not weak
	if !reflect.DeepEqual(weak, []string{"loops", "functions"}) {
		t.Fatalf("unexpected weak topics %v", weak)
	}

	c, _, err := m.Generate(ctx, "2026_10_14")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	q := c.GlobalChallenge
	if q.Topic != "loops" || q.CorrectAnswer != "3 times" || len(q.Hints) != 3 || q.TimeLimitSeconds != 300 {
		t.Fatalf("unexpected question %+v", q)
	}
	if c.Rewards != app.DefaultChallengeRewards || c.LiveStats != (domain.LiveStats{}) {
		t.Fatalf("unexpected rewards/live stats %+v %+v", c.Rewards, c.LiveStats)
	}
	if c.CodingChallenge == nil || c.CodingChallenge.ID != catalog.ExerciseForDay(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)).ID {
		t.Fatalf("unexpected coding exercise %+v", c.CodingChallenge)
	}
	if !reflect.DeepEqual(c.Metadata.TargetClassWeaknesses, []string{"loops", "functions"}) {
		t.Fatalf("unexpected metadata %+v", c.Metadata)
	}
}

func TestGenerateFallsBackToVariables(t *testing.T) {
	m := app.NewChallengeManager(memory.NewStore(), nil, app.CutoffRule{}, nil, nil)
	c, _, err := m.Generate(context.Background(), "2026_10_14")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if c.GlobalChallenge.Topic != "variables" {
		t.Fatalf("expected fallback topic, got %s", c.GlobalChallenge.Topic)
	}
	if _, _, err := m.Generate(context.Background(), "14-10-2026"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestSubmitAtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := app.NewChallengeManager(store, nil, app.CutoffRule{}, nil, newFakeClock().Now)

	if _, err := m.Submit(ctx, "u1", "2026_10_14", app.Answer{Answer: "x"}); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected challenge not found, got %v", err)
	}
	if _, ok, _ := store.Get(ctx, docstore.DailyChallenges, "2026_10_14"); ok {
		t.Fatalf("a failed submit must not create the challenge")
	}

	if _, _, err := m.Generate(ctx, "2026_10_14"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	res, err := m.Submit(ctx, "u1", "2026_10_14", app.Answer{Answer: "  result: 8 ", TimeTakenSeconds: 30})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Reward.Points != 50+10+scoring.NoHintBonus || res.Reward.Tokens != 25 || res.Reward.XP != 30 {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := m.Submit(ctx, "u1", "2026_10_14", app.Answer{Answer: "Error"}); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}
	rec, ok, err := m.Participation(ctx, "2026_10_14", "u1")
	if err != nil || !ok || !rec.IsCorrect || rec.PointsEarned != res.Reward.Points {
		t.Fatalf("participation must keep the first attempt: %+v %v %v", rec, ok, err)
	}

	wrong, err := m.Submit(ctx, "u2", "2026_10_14", app.Answer{Answer: "Error", HintsUsed: 3})
	if err != nil || wrong.Correct || wrong.Reward.Points != scoring.ConsolationPoints {
		t.Fatalf("unexpected wrong answer result %+v %v", wrong, err)
	}

	c, _, _ := m.Get(ctx, "2026_10_14")
	if c.LiveStats.TotalAttempts != 2 || c.LiveStats.CorrectAttempts != 1 {
		t.Fatalf("unexpected live stats %+v", c.LiveStats)
	}
}

func TestViewHidesAnswerUntilAttempted(t *testing.T) {
	ctx := context.Background()
	m := app.NewChallengeManager(memory.NewStore(), nil, app.CutoffRule{}, nil, newFakeClock().Now)
	if _, _, err := m.Generate(ctx, "2026_10_14"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	view, err := m.View(ctx, "2026_10_14", "u1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Question.CorrectAnswer != "" || view.Participation != nil {
		t.Fatalf("answer must be hidden before attempting: %+v", view.Question)
	}
	if _, err := m.Submit(ctx, "u1", "2026_10_14", app.Answer{Answer: "Result: 8"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	view, err = m.View(ctx, "2026_10_14", "u1")
	if err != nil {
		t.Fatalf("view after submit: %v", err)
	}
	if view.Question.CorrectAnswer != "Result: 8" || view.Participation == nil {
		t.Fatalf("answer must be visible after attempting: %+v", view.Question)
	}
	if _, err := m.View(ctx, "2026_10_15", "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitCodePartialCredit(t *testing.T) {
	ctx := context.Background()
	date := "2026_10_14"
	exercise := catalog.ExerciseForDay(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))

	outputs := map[string]string{}
	for i, tc := range exercise.TestCases {
		if i == 0 {
			outputs[tc.Input] = tc.ExpectedOutput + "\n"
		} else {
			outputs[tc.Input] = "wrong"
		}
	}
	exec := &scriptedExecutor{outputs: outputs}
	m := app.NewChallengeManager(memory.NewStore(), exec, app.CutoffRule{}, nil, newFakeClock().Now)
	if _, _, err := m.Generate(ctx, date); err != nil {
		t.Fatalf("generate: %v", err)
	}

	res, err := m.SubmitCode(ctx, "u1", date, exercise.ID, "print(input())")
	if err != nil {
		t.Fatalf("submit code: %v", err)
	}
	total := len(exercise.TestCases)
	if res.Passed != 1 || res.Total != total || res.Credit != scoring.CreditPartial {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Reward.Points != exercise.Points/total || res.Reward.Tokens != 0 {
		t.Fatalf("unexpected partial reward %+v", res.Reward)
	}

	calls := exec.calls
	if _, err := m.SubmitCode(ctx, "u1", date, "", "print(1)"); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}
	if exec.calls != calls {
		t.Fatalf("a rejected resubmission must not run code")
	}
	if _, err := m.SubmitCode(ctx, "u2", date, "bell_other", "print(1)"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected wrong exercise rejected, got %v", err)
	}
}

func TestSubmitCodeExecutorOutageKeepsAttempt(t *testing.T) {
	ctx := context.Background()
	date := "2026_10_14"
	exercise := catalog.ExerciseForDay(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))
	exec := &scriptedExecutor{err: errors.New("piston down")}
	m := app.NewChallengeManager(memory.NewStore(), exec, app.CutoffRule{}, nil, newFakeClock().Now)
	if _, _, err := m.Generate(ctx, date); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.SubmitCode(ctx, "u1", date, "", "print(1)"); !errors.Is(err, domain.ErrExecutorUnavailable) {
		t.Fatalf("expected executor unavailable, got %v", err)
	}
	c, _, err := m.Get(ctx, date)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, recorded := c.CodeParticipants["u1"]; recorded {
		t.Fatalf("an outage must not record an attempt")
	}

	exec.err = nil
	exec.outputs = map[string]string{}
	for _, tc := range exercise.TestCases {
		exec.outputs[tc.Input] = tc.ExpectedOutput
	}
	res, err := m.SubmitCode(ctx, "u1", date, "", "print(input())")
	if err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	if res.Credit != scoring.CreditFull || res.Reward.Points != exercise.Points {
		t.Fatalf("expected full credit on retry, got %+v", res)
	}
}
