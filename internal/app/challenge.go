package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pyquest-gamification/internal/catalog"
	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
	"pyquest-gamification/internal/scoring"
)

// DateLayout formats challenge dates and daily buckets.
const DateLayout = "2006_01_02"

const (
	weakTopicThreshold = 75.0
	challengeTimeLimit = 300
)

// DefaultChallengeRewards pays out the multiple-choice question.
var DefaultChallengeRewards = domain.ChallengeRewards{
	BasePoints:        50,
	BasePycoins:       25,
	BaseXP:            30,
	StreakMultiplier:  1.5,
	PerfectScoreBonus: 25,
	SpeedBonus:        10,
}

// CutoffRule decides which challenge date an instant belongs to: the day
// starts at Hour o'clock in Location.
type CutoffRule struct {
	Location *time.Location
	Hour     int
}

// Day returns the challenge date of t.
func (r CutoffRule) Day(t time.Time) string {
	return r.Date(t).Format(DateLayout)
}

// Date returns midnight (UTC) of the challenge day containing t.
func (r CutoffRule) Date(t time.Time) time.Time {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc).Add(-time.Duration(r.Hour) * time.Hour)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Executor runs a program with stdin and returns its output.
type Executor interface {
	Run(ctx context.Context, code, stdin string) (string, error)
}

type noExecutor struct{}

func (noExecutor) Run(context.Context, string, string) (string, error) {
	return "", errors.New("code execution not configured")
}

// Answer is a multiple-choice submission.
type Answer struct {
	Answer           string
	TimeTakenSeconds int
	HintsUsed        int
}

type SubmissionResult struct {
	Correct       bool
	Reward        domain.Reward
	CorrectAnswer string
	Explanation   string
	Record        domain.ParticipationRecord
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Output   string `json:"output"`
	Passed   bool   `json:"passed"`
}

type CodeResult struct {
	ExerciseID string
	Passed     int
	Total      int
	Credit     scoring.Credit
	Reward     domain.Reward
	Cases      []CaseResult
}

// ChallengeView is a challenge as shown to one user; the answer is hidden
// until the user has attempted it.
type ChallengeView struct {
	Date              string                      `json:"date"`
	Question          domain.ChallengeQuestion    `json:"global_challenge"`
	Coding            *domain.CodingExercise      `json:"coding_challenge,omitempty"`
	Rewards           domain.ChallengeRewards     `json:"rewards"`
	LiveStats         domain.LiveStats            `json:"live_stats"`
	Participation     *domain.ParticipationRecord `json:"participation,omitempty"`
	CodeParticipation *domain.ParticipationRecord `json:"code_participation,omitempty"`
}

// ChallengeManager owns daily_challenges/{date}: generation, participation and
// the one-attempt-per-day rule for both question kinds.
type ChallengeManager struct {
	store docstore.Store
	users *Users
	exec  Executor
	rule  CutoffRule
	log   *logger.Logger
	now   func() time.Time
}

func NewChallengeManager(store docstore.Store, exec Executor, rule CutoffRule, log *logger.Logger, now func() time.Time) *ChallengeManager {
	now = clockOrNow(now)
	if exec == nil {
		exec = noExecutor{}
	}
	return &ChallengeManager{
		store: store,
		users: NewUsers(store, now),
		exec:  exec,
		rule:  rule,
		log:   logger.OrNop(log),
		now:   now,
	}
}

// Today is the current challenge date under the cutoff rule.
func (m *ChallengeManager) Today() string {
	return m.rule.Day(m.now())
}

// Generate creates the challenge for date unless one exists; an existing
// document is returned untouched.
func (m *ChallengeManager) Generate(ctx context.Context, date string) (domain.DailyChallenge, bool, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return domain.DailyChallenge{}, false, fmt.Errorf("challenge date %q: %w", date, domain.ErrInvalidArgument)
	}
	if existing, ok, err := m.Get(ctx, date); err != nil || ok {
		return existing, false, err
	}

	weak, err := m.ClassWeakTopics(ctx)
	if err != nil {
		return domain.DailyChallenge{}, false, err
	}
	fresh := m.build(date, day, weak)
	enc, err := docstore.Encode(fresh)
	if err != nil {
		return domain.DailyChallenge{}, false, err
	}

	var (
		out     domain.DailyChallenge
		created bool
	)
	err = m.store.Update(ctx, docstore.DailyChallenges, date, func(data map[string]any) error {
		created = false
		if len(data) > 0 {
			if err := docstore.Decode(data, &out); err != nil {
				return err
			}
			return errUnchanged
		}
		replaceData(data, enc)
		out, created = fresh, true
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return domain.DailyChallenge{}, false, err
	}
	if created {
		m.log.Info("daily challenge generated", "date", date, "topic", out.GlobalChallenge.Topic, "weak_topics", weak)
	}
	return out, created, nil
}

// ClassWeakTopics averages every user's mastery per tracked topic and returns
// the topics under the threshold, weakest first.
func (m *ChallengeManager) ClassWeakTopics(ctx context.Context) ([]string, error) {
	users, err := m.users.All(ctx)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]float64, len(catalog.TrackedTopics))
	counts := make(map[string]int, len(catalog.TrackedTopics))
	for _, u := range users {
		for _, topic := range catalog.TrackedTopics {
			if level, ok := u.Progress.MasteryLevels[topic]; ok {
				sums[topic] += level
				counts[topic]++
			}
		}
	}

	avg := make(map[string]float64, len(counts))
	weak := make([]string, 0, len(counts))
	for _, topic := range catalog.TrackedTopics {
		if counts[topic] == 0 {
			continue
		}
		avg[topic] = sums[topic] / float64(counts[topic])
		if avg[topic] < weakTopicThreshold {
			weak = append(weak, topic)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return avg[weak[i]] < avg[weak[j]] })
	return weak, nil
}

func (m *ChallengeManager) build(date string, day time.Time, weak []string) domain.DailyChallenge {
	primary := catalog.FallbackTopic
	if len(weak) > 0 {
		primary = weak[0]
	}
	tmpl, topic := catalog.Template(primary)
	exercise := catalog.ExerciseForDay(day)
	if weak == nil {
		weak = []string{}
	}

	return domain.DailyChallenge{
		ID: date,
		GlobalChallenge: domain.ChallengeQuestion{
			ID:               "daily_" + date,
			Type:             "mcq",
			Topic:            topic,
			Difficulty:       "medium",
			Question:         tmpl.Question,
			Options:          tmpl.Options,
			CorrectAnswer:    tmpl.CorrectAnswer,
			Explanation:      tmpl.Explanation,
			Hints:            catalog.Hints(topic),
			TimeLimitSeconds: challengeTimeLimit,
		},
		CodingChallenge: &exercise,
		Rewards:         DefaultChallengeRewards,
		Metadata: domain.ChallengeMetadata{
			CreatedBy:             "auto",
			TargetClassWeaknesses: weak,
			EstimatedTimeMinutes:  5,
			SuccessCriteria:       70,
			CurriculumAlignment:   topic + "_reinforcement",
		},
		Participants:     map[string]domain.ParticipationRecord{},
		CodeParticipants: map[string]domain.ParticipationRecord{},
		CreatedAt:        m.now(),
	}
}

func (m *ChallengeManager) Get(ctx context.Context, date string) (domain.DailyChallenge, bool, error) {
	doc, ok, err := m.store.Get(ctx, docstore.DailyChallenges, date)
	if err != nil || !ok {
		return domain.DailyChallenge{}, false, err
	}
	var c domain.DailyChallenge
	if err := docstore.Decode(doc.Data, &c); err != nil {
		return domain.DailyChallenge{}, false, err
	}
	return c, true, nil
}

// View returns the challenge for date as seen by uid.
func (m *ChallengeManager) View(ctx context.Context, date, uid string) (ChallengeView, error) {
	c, ok, err := m.Get(ctx, date)
	if err != nil {
		return ChallengeView{}, err
	}
	if !ok {
		return ChallengeView{}, domain.ErrChallengeNotFound
	}
	view := ChallengeView{
		Date:      date,
		Question:  c.GlobalChallenge,
		Coding:    c.CodingChallenge,
		Rewards:   c.Rewards,
		LiveStats: c.LiveStats,
	}
	if rec, ok := c.Participants[uid]; ok {
		view.Participation = &rec
	} else {
		view.Question.CorrectAnswer = ""
		view.Question.Explanation = ""
	}
	if rec, ok := c.CodeParticipants[uid]; ok {
		view.CodeParticipation = &rec
	}
	return view, nil
}

// Participation returns the multiple-choice record of uid for date.
func (m *ChallengeManager) Participation(ctx context.Context, date, uid string) (domain.ParticipationRecord, bool, error) {
	c, ok, err := m.Get(ctx, date)
	if err != nil || !ok {
		return domain.ParticipationRecord{}, false, err
	}
	rec, ok := c.Participants[uid]
	return rec, ok, nil
}

// Submit scores a multiple-choice answer. The participation record is created
// in the same atomic update that checks for a previous attempt; live stats are
// bumped afterwards and may drift.
func (m *ChallengeManager) Submit(ctx context.Context, uid, date string, in Answer) (SubmissionResult, error) {
	var res SubmissionResult
	err := m.store.Update(ctx, docstore.DailyChallenges, date, func(data map[string]any) error {
		if len(data) == 0 {
			return domain.ErrChallengeNotFound
		}
		var c domain.DailyChallenge
		if err := docstore.Decode(data, &c); err != nil {
			return err
		}
		if _, done := c.Participants[uid]; done {
			return domain.ErrAlreadySubmitted
		}

		q := c.GlobalChallenge
		correct := strings.EqualFold(strings.TrimSpace(in.Answer), strings.TrimSpace(q.CorrectAnswer))
		reward := scoring.Score(scoring.Submission{
			Correct:          correct,
			BasePoints:       c.Rewards.BasePoints,
			BaseTokens:       c.Rewards.BasePycoins,
			BaseXP:           c.Rewards.BaseXP,
			TimeTakenSeconds: in.TimeTakenSeconds,
			HintsUsed:        in.HintsUsed,
			SpeedBonus:       c.Rewards.SpeedBonus,
		})
		rec := domain.ParticipationRecord{
			Attempted:        true,
			Answer:           in.Answer,
			IsCorrect:        correct,
			TimeTakenSeconds: in.TimeTakenSeconds,
			HintsUsed:        in.HintsUsed,
			PointsEarned:     reward.Points,
			PycoinsEarned:    reward.Tokens,
			XPEarned:         reward.XP,
			AttemptTime:      m.now(),
		}
		if err := putRecord(data, "participants", uid, rec); err != nil {
			return err
		}
		res = SubmissionResult{
			Correct:       correct,
			Reward:        reward,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			Record:        rec,
		}
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}

	m.bumpLiveStats(ctx, date, res.Correct)
	return res, nil
}

// SubmitCode runs a bell-ringer submission against the day's test cases.
// exerciseID, when set, must name the day's exercise. Nothing is recorded
// when the executor fails, so the attempt can be retried.
func (m *ChallengeManager) SubmitCode(ctx context.Context, uid, date, exerciseID, code string) (CodeResult, error) {
	c, ok, err := m.Get(ctx, date)
	if err != nil {
		return CodeResult{}, err
	}
	if !ok {
		return CodeResult{}, domain.ErrChallengeNotFound
	}
	ex := c.CodingChallenge
	if ex == nil || len(ex.TestCases) == 0 {
		return CodeResult{}, domain.ErrWrongChallengeKind
	}
	if exerciseID != "" && exerciseID != ex.ID && exerciseID != date {
		return CodeResult{}, fmt.Errorf("challenge %q is not today's exercise: %w", exerciseID, domain.ErrInvalidArgument)
	}
	if _, done := c.CodeParticipants[uid]; done {
		return CodeResult{}, domain.ErrAlreadySubmitted
	}
	if strings.TrimSpace(code) == "" {
		return CodeResult{}, fmt.Errorf("empty code: %w", domain.ErrInvalidArgument)
	}

	res := CodeResult{ExerciseID: ex.ID, Total: len(ex.TestCases), Cases: make([]CaseResult, 0, len(ex.TestCases))}
	for _, tc := range ex.TestCases {
		expected := strings.TrimSpace(tc.ExpectedOutput)
		cr := CaseResult{Input: tc.Input, Expected: expected}
		out, err := m.exec.Run(ctx, code, tc.Input)
		if err != nil {
			m.log.Warn("code execution failed", "exercise", ex.ID, "user", uid, "error", err)
			return CodeResult{}, fmt.Errorf("run %s: %w: %w", ex.ID, domain.ErrExecutorUnavailable, err)
		}
		cr.Output = strings.TrimSpace(out)
		cr.Passed = cr.Output == expected
		if cr.Passed {
			res.Passed++
		}
		res.Cases = append(res.Cases, cr)
	}
	res.Reward, res.Credit = scoring.Partial(ex.Points, ex.Tokens, res.Passed, res.Total)

	rec := domain.ParticipationRecord{
		Attempted:     true,
		IsCorrect:     res.Credit == scoring.CreditFull,
		PointsEarned:  res.Reward.Points,
		PycoinsEarned: res.Reward.Tokens,
		PassedCount:   res.Passed,
		TotalCount:    res.Total,
		AttemptTime:   m.now(),
	}
	err = m.store.Update(ctx, docstore.DailyChallenges, date, func(data map[string]any) error {
		if len(data) == 0 {
			return domain.ErrChallengeNotFound
		}
		if records, ok := data["code_participants"].(map[string]any); ok {
			if _, done := records[uid]; done {
				return domain.ErrAlreadySubmitted
			}
		}
		return putRecord(data, "code_participants", uid, rec)
	})
	if err != nil {
		return CodeResult{}, err
	}
	return res, nil
}

func (m *ChallengeManager) bumpLiveStats(ctx context.Context, date string, correct bool) {
	if err := m.store.Increment(ctx, docstore.DailyChallenges, date, "live_stats.total_attempts", 1); err != nil {
		m.log.Warn("live stats update failed", "date", date, "error", err)
		return
	}
	if correct {
		if err := m.store.Increment(ctx, docstore.DailyChallenges, date, "live_stats.correct_attempts", 1); err != nil {
			m.log.Warn("live stats update failed", "date", date, "error", err)
		}
	}
}

// putRecord stores rec under data[field][uid]. User ids are used as map keys
// directly so ids containing dots stay intact.
func putRecord(data map[string]any, field, uid string, rec domain.ParticipationRecord) error {
	enc, err := docstore.Encode(rec)
	if err != nil {
		return err
	}
	childMap(data, field)[uid] = enc
	return nil
}
