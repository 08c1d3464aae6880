package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"pyquest-gamification/internal/catalog"
	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
	"pyquest-gamification/internal/scoring"
)

const (
	dashboardTopN     = 10
	dashboardActivity = 10
	dashboardNotes    = 20
	quizNotifyAt      = 85.0
)

// Options configures NewService. Zero values fall back to defaults.
type Options struct {
	Rule            CutoffRule
	NotificationTTL time.Duration
	Badges          []domain.Badge
	Now             func() time.Time
}

// Service runs the scoring chain of every learner event: the authoritative
// reward write first, then ranking, badges, notifications and activity as
// best-effort secondary effects.
type Service struct {
	Users       *Users
	Progress    *ProgressTracker
	Leaderboard *Leaderboard
	Challenges  *ChallengeManager
	Badges      *BadgeEngine
	Notifier    *Notifier
	Feed        *ActivityFeed

	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

func NewService(store docstore.Store, exec Executor, hub *Hub, log *logger.Logger, opts Options) *Service {
	log = logger.OrNop(log)
	now := clockOrNow(opts.Now)
	badges := opts.Badges
	if badges == nil {
		badges = catalog.Badges()
	}

	users := NewUsers(store, now)
	notifier := NewNotifier(store, opts.NotificationTTL, log.With("component", "notifications"), now)
	feed := NewActivityFeed(store, log.With("component", "activity"), now)
	return &Service{
		Users:       users,
		Progress:    NewProgressTracker(users, log.With("component", "progress")),
		Leaderboard: NewLeaderboard(store, hub, log.With("component", "leaderboard"), now),
		Challenges:  NewChallengeManager(store, exec, opts.Rule, log.With("component", "challenges"), now),
		Badges:      NewBadgeEngine(users, badges, notifier, feed, log.With("component", "badges"), now),
		Notifier:    notifier,
		Feed:        feed,
		validate:    validator.New(),
		log:         log,
		now:         now,
	}
}

// ChallengeOutcome is returned by SubmitDailyChallenge.
type ChallengeOutcome struct {
	Correct         bool          `json:"correct"`
	Rewards         domain.Reward `json:"rewards"`
	NewAchievements []string      `json:"new_achievements"`
	Rank            int           `json:"rank,omitempty"`
	CorrectAnswer   string        `json:"correct_answer"`
	Explanation     string        `json:"explanation"`
	Level           int           `json:"level"`
	LeveledUp       bool          `json:"leveled_up"`
}

// CodingOutcome is returned by SubmitCodingChallenge.
type CodingOutcome struct {
	Awarded         bool          `json:"awarded"`
	Partial         bool          `json:"partial"`
	Passed          int           `json:"passed"`
	Total           int           `json:"total"`
	Rewards         domain.Reward `json:"rewards"`
	Cases           []CaseResult  `json:"cases"`
	NewAchievements []string      `json:"new_achievements"`
	Rank            int           `json:"rank,omitempty"`
}

// QuizOutcome is returned by RecordQuiz.
type QuizOutcome struct {
	Percent         float64  `json:"percent"`
	Points          int      `json:"points"`
	NewAchievements []string `json:"new_achievements"`
	Rank            int      `json:"rank,omitempty"`
	LeveledUp       bool     `json:"leveled_up"`
}

// LessonOutcome is returned by CompleteLesson.
type LessonOutcome struct {
	NewlyCompleted  bool     `json:"newly_completed"`
	Points          int      `json:"points"`
	NewAchievements []string `json:"new_achievements"`
	Rank            int      `json:"rank,omitempty"`
}

// Dashboard aggregates everything the home screen shows.
type Dashboard struct {
	User          domain.User               `json:"user"`
	LevelTitle    string                    `json:"level_title"`
	Leaderboard   []domain.LeaderboardEntry `json:"leaderboard"`
	Rank          *domain.LeaderboardEntry  `json:"rank,omitempty"`
	Challenge     *ChallengeView            `json:"daily_challenge,omitempty"`
	Notifications []domain.Notification     `json:"notifications"`
	UnreadCount   int                       `json:"unread_count"`
	Insights      Insights                  `json:"insights"`
	Activity      []domain.ActivityItem     `json:"activity"`
}

// EnsureUser creates the user on first login.
func (s *Service) EnsureUser(ctx context.Context, uid string, profile domain.Profile) (domain.User, error) {
	u, created, err := s.Progress.EnsureUser(ctx, uid, profile)
	if err != nil {
		return domain.User{}, err
	}
	if created {
		s.log.Info("user created", "user", uid)
	}
	return u, nil
}

// SubmitDailyChallenge answers today's multiple-choice question.
func (s *Service) SubmitDailyChallenge(ctx context.Context, uid string, in Answer) (ChallengeOutcome, error) {
	if _, err := s.Users.Get(ctx, uid); err != nil {
		return ChallengeOutcome{}, err
	}
	date := s.Challenges.Today()
	res, err := s.Challenges.Submit(ctx, uid, date, in)
	if err != nil {
		return ChallengeOutcome{}, err
	}

	u, leveled, err := s.Progress.Award(ctx, uid, res.Reward)
	if err != nil {
		return ChallengeOutcome{}, err
	}
	out := ChallengeOutcome{
		Correct:       res.Correct,
		Rewards:       res.Reward,
		CorrectAnswer: res.CorrectAnswer,
		Explanation:   res.Explanation,
		Level:         u.Stats.Level,
		LeveledUp:     leveled,
	}

	u = s.touchStreak(ctx, u, date)
	out.Rank = s.rank(ctx, u, int64(res.Reward.Points))
	out.NewAchievements = s.checkBadges(ctx, uid, domain.AchievementContext{
		DailyChallengeCompleted: true,
		PerfectScore:            res.Correct,
	})

	celebration := "normal"
	if res.Correct {
		celebration = "exciting"
	}
	s.logActivity(ctx, Activity{
		UserID:      uid,
		UserName:    u.Profile.Name,
		Type:        "daily_challenge",
		Points:      int64(res.Reward.Points),
		Celebration: celebration,
		Vars:        map[string]any{"is_correct": res.Correct},
	})
	s.levelUp(ctx, u, leveled)
	return out, nil
}

// SubmitCodingChallenge runs a bell-ringer submission for today.
func (s *Service) SubmitCodingChallenge(ctx context.Context, uid, exerciseID, code string) (CodingOutcome, error) {
	if _, err := s.Users.Get(ctx, uid); err != nil {
		return CodingOutcome{}, err
	}
	date := s.Challenges.Today()
	res, err := s.Challenges.SubmitCode(ctx, uid, date, exerciseID, code)
	if err != nil {
		return CodingOutcome{}, err
	}
	out := CodingOutcome{
		Awarded: res.Credit == scoring.CreditFull,
		Partial: res.Credit == scoring.CreditPartial,
		Passed:  res.Passed,
		Total:   res.Total,
		Rewards: res.Reward,
		Cases:   res.Cases,
	}
	if res.Credit == scoring.CreditNone {
		return out, nil
	}

	u, leveled, err := s.Progress.Award(ctx, uid, res.Reward)
	if err != nil {
		return CodingOutcome{}, err
	}
	u = s.touchStreak(ctx, u, date)
	out.Rank = s.rank(ctx, u, int64(res.Reward.Points))
	out.NewAchievements = s.checkBadges(ctx, uid, domain.AchievementContext{
		DailyChallengeCompleted: true,
		PerfectScore:            out.Awarded,
	})
	s.logActivity(ctx, Activity{
		UserID:   uid,
		UserName: u.Profile.Name,
		Type:     "bellringer_completed",
		Points:   int64(res.Reward.Points),
		Vars:     map[string]any{"passed": res.Passed, "total": res.Total},
	})
	s.levelUp(ctx, u, leveled)
	return out, nil
}

// RecordQuiz grants one point per percentage point of a finished quiz.
func (s *Service) RecordQuiz(ctx context.Context, uid string, q QuizResult) (QuizOutcome, error) {
	if q.MaxScore <= 0 {
		q.MaxScore = 100
	}
	if err := s.validate.Struct(q); err != nil {
		return QuizOutcome{}, fmt.Errorf("score %v of %v: %w: %w", q.Score, q.MaxScore, domain.ErrInvalidArgument, err)
	}
	_, pct, err := s.Progress.RecordQuiz(ctx, uid, q)
	if err != nil {
		return QuizOutcome{}, err
	}
	points := scoring.QuizPoints(q.Score, q.MaxScore)
	u, leveled, err := s.Progress.Award(ctx, uid, domain.Reward{Points: points})
	if err != nil {
		return QuizOutcome{}, err
	}
	out := QuizOutcome{Percent: pct, Points: points, LeveledUp: leveled}

	u = s.touchStreak(ctx, u, s.Challenges.Today())
	out.Rank = s.rank(ctx, u, int64(points))
	out.NewAchievements = s.checkBadges(ctx, uid, domain.AchievementContext{
		QuizCompleted: true,
		PerfectScore:  pct == 100,
		Score:         pct,
	})

	celebration := "normal"
	if pct >= 90 {
		celebration = "exciting"
	}
	s.logActivity(ctx, Activity{
		UserID:      uid,
		UserName:    u.Profile.Name,
		Type:        "quiz_completed",
		Points:      int64(points),
		Celebration: celebration,
		Vars:        map[string]any{"lesson_name": lessonTitle(q.LessonID), "score": pct, "quiz_id": q.QuizID},
	})
	if pct >= quizNotifyAt {
		s.notify(ctx, uid, "learning_recommendation", map[string]any{"topic": "Great job!", "lesson_id": q.LessonID})
	}
	s.levelUp(ctx, u, leveled)
	return out, nil
}

// CompleteLesson marks a lesson done; points are paid only the first time.
func (s *Service) CompleteLesson(ctx context.Context, uid, lessonID string) (LessonOutcome, error) {
	u, added, err := s.Progress.CompleteLesson(ctx, uid, lessonID)
	if err != nil {
		return LessonOutcome{}, err
	}
	if !added {
		return LessonOutcome{}, nil
	}
	u, leveled, err := s.Progress.Award(ctx, uid, domain.Reward{Points: scoring.LessonCompletionPoints})
	if err != nil {
		return LessonOutcome{}, err
	}
	out := LessonOutcome{NewlyCompleted: true, Points: scoring.LessonCompletionPoints}
	u = s.touchStreak(ctx, u, s.Challenges.Today())
	out.Rank = s.rank(ctx, u, scoring.LessonCompletionPoints)
	out.NewAchievements = s.checkBadges(ctx, uid, domain.AchievementContext{LessonCompleted: true})
	s.logActivity(ctx, Activity{
		UserID:   uid,
		UserName: u.Profile.Name,
		Type:     "lesson_completed",
		Points:   scoring.LessonCompletionPoints,
		Vars:     map[string]any{"lesson_name": lessonTitle(lessonID)},
	})
	s.levelUp(ctx, u, leveled)
	return out, nil
}

// Dashboard loads the home screen concurrently.
func (s *Service) Dashboard(ctx context.Context, uid string) (Dashboard, error) {
	u, err := s.Users.Get(ctx, uid)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{User: u, LevelTitle: scoring.LevelTitle(u.Stats.Level)}
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		top, err := s.Leaderboard.Top(gctx, PeriodDaily, now, dashboardTopN)
		d.Leaderboard = top
		return err
	})
	g.Go(func() error {
		entry, ok, err := s.Leaderboard.UserRank(gctx, PeriodDaily, now, uid)
		if ok {
			d.Rank = &entry
		}
		return err
	})
	g.Go(func() error {
		view, err := s.Challenges.View(gctx, s.Challenges.Today(), uid)
		if err == nil {
			d.Challenge = &view
			return nil
		}
		if isNotFound(err) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		notes, err := s.Notifier.List(gctx, uid, false, dashboardNotes)
		d.Notifications = notes
		for _, n := range notes {
			if !n.Read {
				d.UnreadCount++
			}
		}
		return err
	})
	g.Go(func() error {
		d.Insights = buildInsights(u)
		d.Insights.CurrentStreak = u.Stats.CurrentStreak
		return nil
	})
	g.Go(func() error {
		items, err := s.Feed.Recent(gctx, dashboardActivity)
		d.Activity = items
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if d.Notifications == nil {
		d.Notifications = []domain.Notification{}
	}
	return d, nil
}

// GenerateToday makes sure today's challenge exists. With notify set, every
// user gets a new_challenge notification when it was created by this call.
func (s *Service) GenerateToday(ctx context.Context, notify bool) (domain.DailyChallenge, bool, error) {
	c, created, err := s.Challenges.Generate(ctx, s.Challenges.Today())
	if err != nil || !created || !notify {
		return c, created, err
	}
	users, err := s.Users.All(ctx)
	if err != nil {
		s.log.Warn("challenge announcement skipped", "error", err)
		return c, created, nil
	}
	for _, u := range users {
		s.notify(ctx, u.ID, "new_challenge", map[string]any{
			"topic":  c.GlobalChallenge.Topic,
			"points": c.Rewards.BasePoints + c.Rewards.SpeedBonus + scoring.NoHintBonus,
		})
	}
	return c, created, nil
}

// SendStreakReminders notifies users with a running streak who have not
// attempted today's challenge yet. It returns how many were notified.
func (s *Service) SendStreakReminders(ctx context.Context) (int, error) {
	date := s.Challenges.Today()
	users, err := s.Users.All(ctx)
	if err != nil {
		return 0, err
	}
	challenge, _, err := s.Challenges.Get(ctx, date)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, u := range users {
		if u.Stats.CurrentStreak == 0 || u.Stats.LastActiveDay == date {
			continue
		}
		if _, done := challenge.Participants[u.ID]; done {
			continue
		}
		if _, err := s.Notifier.Send(ctx, u.ID, "streak_reminder", map[string]any{"streak": u.Stats.CurrentStreak}); err != nil {
			s.log.Warn("streak reminder failed", "user", u.ID, "error", err)
			continue
		}
		sent++
	}
	s.log.Info("streak reminders sent", "date", date, "count", sent)
	return sent, nil
}

// Rerank recomputes every current period ranking.
func (s *Service) Rerank(ctx context.Context) (map[string]int, error) {
	now := s.now()
	counts := make(map[string]int, len(Periods))
	for _, p := range Periods {
		key := PeriodKey(p, now)
		ranks, err := s.Leaderboard.RecalculateRankings(ctx, key)
		if err != nil {
			return counts, err
		}
		counts[key] = len(ranks)
	}
	return counts, nil
}

func (s *Service) touchStreak(ctx context.Context, u domain.User, day string) domain.User {
	res, err := s.Progress.TouchStreak(ctx, u.ID, day)
	if err != nil {
		s.log.Warn("streak update failed", "user", u.ID, "error", err)
		return u
	}
	if res.Milestone > 0 {
		s.logActivity(ctx, Activity{
			UserID:      u.ID,
			UserName:    res.User.Profile.Name,
			Type:        "streak_milestone",
			Celebration: "exciting",
			Vars:        map[string]any{"streak": res.Milestone},
		})
	}
	return res.User
}

// rank records points on the leaderboard and announces a daily rank
// improvement. Ranking is advisory: failures only log.
func (s *Service) rank(ctx context.Context, u domain.User, points int64) int {
	change, err := s.Leaderboard.RecordPoints(ctx, u, points)
	if err != nil {
		s.log.Warn("leaderboard update failed", "user", u.ID, "error", err)
	}
	if change.Improved() {
		s.notify(ctx, u.ID, "rank_change", map[string]any{
			"new_rank":    change.Rank,
			"change_text": fmt.Sprintf("Up %d from #%d.", change.PreviousRank-change.Rank, change.PreviousRank),
		})
	}
	return change.Rank
}

func (s *Service) checkBadges(ctx context.Context, uid string, actx domain.AchievementContext) []string {
	badges, err := s.Badges.Check(ctx, uid, actx)
	if err != nil {
		s.log.Warn("badge check failed", "user", uid, "error", err)
	}
	ids := make([]string, 0, len(badges))
	for _, b := range badges {
		ids = append(ids, b.ID)
	}
	return ids
}

func (s *Service) levelUp(ctx context.Context, u domain.User, leveled bool) {
	if !leveled {
		return
	}
	s.logActivity(ctx, Activity{
		UserID:      u.ID,
		UserName:    u.Profile.Name,
		Type:        "level_up",
		Celebration: "exciting",
		Vars:        map[string]any{"new_level": u.Stats.Level},
	})
}

func (s *Service) notify(ctx context.Context, uid, kind string, vars map[string]any) {
	if _, err := s.Notifier.Send(ctx, uid, kind, vars); err != nil {
		s.log.Warn("notification failed", "user", uid, "type", kind, "error", err)
	}
}

func (s *Service) logActivity(ctx context.Context, a Activity) {
	if _, err := s.Feed.Log(ctx, a); err != nil {
		s.log.Warn("activity log failed", "user", a.UserID, "type", a.Type, "error", err)
	}
}

// lessonTitle turns "python_basics" into "Python Basics".
func lessonTitle(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
