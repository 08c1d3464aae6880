package domain

import (
	"fmt"
	"strings"
	"time"
)

// Profile holds the public identity of a learner.
type Profile struct {
	Name    string `json:"name"`
	ClassID string `json:"class_id"`
	Avatar  string `json:"avatar_url,omitempty"`
}

// Stats are the counters mutated by scoring events.
type Stats struct {
	TotalPoints      int64   `json:"total_points"`
	CurrentStreak    int     `json:"current_streak"`
	MaxStreak        int     `json:"max_streak"`
	LessonsCompleted int     `json:"lessons_completed"`
	QuizzesTaken     int     `json:"quizzes_taken"`
	AverageScore     float64 `json:"average_score"`
	Pycoins          int64   `json:"pycoins"`
	Level            int     `json:"level"`
	CurrentXP        int64   `json:"current_xp"`
	LastActiveDay    string  `json:"last_active_day,omitempty"`
}

// Progress tracks topic mastery (0..100 per topic).
type Progress struct {
	MasteryLevels    map[string]float64 `json:"mastery_levels,omitempty"`
	WeakTopics       []string           `json:"weak_topics,omitempty"`
	StrongTopics     []string           `json:"strong_topics,omitempty"`
	CompletedLessons []string           `json:"completed_lessons,omitempty"`
}

// BadgeUnlock records when a badge was awarded.
type BadgeUnlock struct {
	BadgeID    string    `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Achievements is the mutable side of the badge relation.
type Achievements struct {
	BadgesEarned  []string      `json:"badges_earned,omitempty"`
	RecentUnlocks []BadgeUnlock `json:"recent_unlocks,omitempty"`
}

// User is the learner document stored under users/{id}.
type User struct {
	ID           string       `json:"id"`
	Profile      Profile      `json:"profile"`
	Stats        Stats        `json:"stats"`
	Progress     Progress     `json:"progress"`
	Achievements Achievements `json:"achievements"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewUser builds a fresh user at level 1 with zeroed counters.
func NewUser(id string, profile Profile, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("user id: %w", ErrInvalidArgument)
	}
	if profile.Name == "" {
		profile.Name = "Anonymous"
	}
	if profile.ClassID == "" {
		profile.ClassID = "default"
	}
	u := User{
		ID:        id,
		Profile:   profile,
		Stats:     Stats{Level: 1},
		Progress:  Progress{MasteryLevels: map[string]float64{}},
		CreatedAt: now,
	}
	u.Normalize()
	return u, nil
}

// Normalize enforces the record invariants on data entering the engine:
// non-negative totals, current_streak <= max_streak, mastery in 0..100.
func (u *User) Normalize() {
	s := &u.Stats
	if s.TotalPoints < 0 {
		s.TotalPoints = 0
	}
	if s.Pycoins < 0 {
		s.Pycoins = 0
	}
	if s.CurrentXP < 0 {
		s.CurrentXP = 0
	}
	if s.CurrentStreak < 0 {
		s.CurrentStreak = 0
	}
	if s.MaxStreak < s.CurrentStreak {
		s.MaxStreak = s.CurrentStreak
	}
	if s.Level < 1 {
		s.Level = 1
	}
	for topic, level := range u.Progress.MasteryLevels {
		u.Progress.MasteryLevels[topic] = clamp(level, 0, 100)
	}
}

// HasBadge reports whether the badge was already earned.
func (u User) HasBadge(badgeID string) bool {
	for _, id := range u.Achievements.BadgesEarned {
		if id == badgeID {
			return true
		}
	}
	return false
}

// LeaderboardEntry is one user's row for a period bucket.
// Points is the delta accumulated within the bucket, not the lifetime total.
type LeaderboardEntry struct {
	UserID      string    `json:"user_id"`
	Points      int64     `json:"points"`
	Rank        int       `json:"rank"`
	DisplayName string    `json:"display_name"`
	Streak      int       `json:"streak"`
	ClassID     string    `json:"class_id,omitempty"`
	Avatar      string    `json:"avatar_url,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Leaderboard is an ordered snapshot of a period bucket.
type Leaderboard struct {
	PeriodKey string             `json:"period_key"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Reward is the outcome of a scoring event.
type Reward struct {
	Points int `json:"points"`
	Tokens int `json:"tokens"`
	XP     int `json:"xp"`
}

// Add returns the component-wise sum.
func (r Reward) Add(o Reward) Reward {
	return Reward{Points: r.Points + o.Points, Tokens: r.Tokens + o.Tokens, XP: r.XP + o.XP}
}

// IsZero reports whether nothing is awarded.
func (r Reward) IsZero() bool {
	return r.Points == 0 && r.Tokens == 0 && r.XP == 0
}

// ChallengeQuestion is the multiple-choice part of a daily challenge.
type ChallengeQuestion struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	Topic            string   `json:"topic"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	CorrectAnswer    string   `json:"correct_answer"`
	Explanation      string   `json:"explanation"`
	Hints            []string `json:"hints,omitempty"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

// TestCase is one stdin/stdout pair for a coding exercise.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// CodingExercise is the bell-ringer part of a daily challenge.
type CodingExercise struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  string     `json:"difficulty"`
	TestCases   []TestCase `json:"test_cases"`
	Points      int        `json:"points"`
	Tokens      int        `json:"tokens"`
}

// ChallengeRewards configures the payout of the multiple-choice question.
type ChallengeRewards struct {
	BasePoints        int     `json:"base_points"`
	BasePycoins       int     `json:"base_pycoins"`
	BaseXP            int     `json:"base_xp"`
	StreakMultiplier  float64 `json:"streak_multiplier"`
	PerfectScoreBonus int     `json:"perfect_score_bonus"`
	SpeedBonus        int     `json:"speed_bonus"`
}

// ChallengeMetadata describes how a challenge was generated.
type ChallengeMetadata struct {
	CreatedBy             string   `json:"created_by"`
	TargetClassWeaknesses []string `json:"target_class_weaknesses"`
	EstimatedTimeMinutes  int      `json:"estimated_time_minutes"`
	SuccessCriteria       int      `json:"success_criteria"`
	CurriculumAlignment   string   `json:"curriculum_alignment"`
}

// ParticipationRecord is created at most once per user per challenge date and kind.
type ParticipationRecord struct {
	Attempted        bool      `json:"attempted"`
	Answer           string    `json:"answer,omitempty"`
	IsCorrect        bool      `json:"is_correct"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	HintsUsed        int       `json:"hints_used"`
	PointsEarned     int       `json:"points_earned"`
	PycoinsEarned    int       `json:"pycoins_earned"`
	XPEarned         int       `json:"xp_earned"`
	PassedCount      int       `json:"passed_count,omitempty"`
	TotalCount       int       `json:"total_count,omitempty"`
	AttemptTime      time.Time `json:"attempt_time"`
}

// LiveStats are approximate counters; they may drift under concurrent submissions.
type LiveStats struct {
	TotalAttempts   int64 `json:"total_attempts"`
	CorrectAttempts int64 `json:"correct_attempts"`
}

// DailyChallenge is stored under daily_challenges/{date}.
type DailyChallenge struct {
	ID               string                         `json:"id"`
	GlobalChallenge  ChallengeQuestion              `json:"global_challenge"`
	CodingChallenge  *CodingExercise                `json:"coding_challenge,omitempty"`
	Rewards          ChallengeRewards               `json:"rewards"`
	Metadata         ChallengeMetadata              `json:"metadata"`
	Participants     map[string]ParticipationRecord `json:"participants"`
	CodeParticipants map[string]ParticipationRecord `json:"code_participants"`
	LiveStats        LiveStats                      `json:"live_stats"`
	CreatedAt        time.Time                      `json:"created_at"`
}

// BadgeRewards is paid once when a badge is unlocked.
type BadgeRewards struct {
	Points  int64 `json:"points"`
	Pycoins int64 `json:"pycoins"`
	XP      int64 `json:"xp"`
}

// Badge is read-only catalog data.
type Badge struct {
	ID          string
	Name        string
	Description string
	Criterion   Criterion
	Rewards     BadgeRewards
}

// Priority orders notifications for display.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Order returns the sort position, unknown priorities sort with low.
func (p Priority) Order() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Notification is an entry of notifications/{uid}.pending.
// Consumers must filter out entries whose ExpiresAt has passed.
type Notification struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Priority   Priority   `json:"priority"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	ActionURL  string     `json:"action_url,omitempty"`
	ActionText string     `json:"action_text,omitempty"`
	Icon       string     `json:"icon,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// Expired reports whether the notification should be hidden at t.
func (n Notification) Expired(t time.Time) bool {
	return !n.ExpiresAt.IsZero() && !t.Before(n.ExpiresAt)
}

// ActivityItem is an append-only entry of the shared live feed.
type ActivityItem struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	UserName         string         `json:"user_name,omitempty"`
	ActionType       string         `json:"action_type"`
	Description      string         `json:"action_description"`
	PointsEarned     int64          `json:"points_earned"`
	Timestamp        time.Time      `json:"timestamp"`
	CelebrationLevel string         `json:"celebration_level,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
