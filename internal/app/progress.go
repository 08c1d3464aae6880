package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
	"pyquest-gamification/internal/scoring"
)

const (
	strongTopicMin = 85.0
	weakTopicMax   = 70.0
)

// streakMilestones are announced in the activity feed.
var streakMilestones = map[int]bool{5: true, 10: true, 30: true}

// QuizResult is a finished lesson quiz.
type QuizResult struct {
	LessonID string
	QuizID   string
	Topic    string
	Score    float64 `validate:"gte=0,ltefield=MaxScore"`
	MaxScore float64 `validate:"gt=0"`
}

// TopicScore is one topic's mastery.
type TopicScore struct {
	Topic   string  `json:"topic"`
	Mastery float64 `json:"mastery"`
}

// Insights summarizes a learner's progress.
type Insights struct {
	Strengths      []TopicScore `json:"strengths"`
	Weaknesses     []TopicScore `json:"weaknesses"`
	Recommendation string       `json:"recommendation,omitempty"`
	Level          int          `json:"level"`
	LevelTitle     string       `json:"level_title"`
	CurrentXP      int64        `json:"current_xp"`
	NextLevelXP    int64        `json:"next_level_xp"`
	CurrentStreak  int          `json:"current_streak"`
	AverageScore   float64      `json:"average_score"`
}

// StreakUpdate is the outcome of TouchStreak.
type StreakUpdate struct {
	User      domain.User
	Changed   bool
	Milestone int
}

// ProgressTracker applies the per-user counters of scoring events.
type ProgressTracker struct {
	users *Users
	log   *logger.Logger
}

func NewProgressTracker(users *Users, log *logger.Logger) *ProgressTracker {
	return &ProgressTracker{users: users, log: logger.OrNop(log)}
}

func (p *ProgressTracker) EnsureUser(ctx context.Context, uid string, profile domain.Profile) (domain.User, bool, error) {
	return p.users.Ensure(ctx, uid, profile)
}

// Award adds the reward to the user's totals and recomputes the level in the
// same atomic update. It reports whether the level went up.
func (p *ProgressTracker) Award(ctx context.Context, uid string, r domain.Reward) (domain.User, bool, error) {
	var leveled bool
	u, err := p.users.Mutate(ctx, uid, func(u *domain.User) error {
		u.Stats.TotalPoints += int64(r.Points)
		u.Stats.Pycoins += int64(r.Tokens)
		u.Stats.CurrentXP += int64(r.XP)
		leveled = applyLevel(u)
		return nil
	})
	if err != nil {
		return domain.User{}, false, fmt.Errorf("award %s: %w", uid, err)
	}
	return u, leveled, nil
}

// TouchStreak records activity on day (a DateLayout date). The same day
// leaves the streak alone, the next day extends it, any gap restarts it at 1.
func (p *ProgressTracker) TouchStreak(ctx context.Context, uid, day string) (StreakUpdate, error) {
	today, err := time.Parse(DateLayout, day)
	if err != nil {
		return StreakUpdate{}, fmt.Errorf("streak day %q: %w", day, domain.ErrInvalidArgument)
	}
	var res StreakUpdate
	u, err := p.users.Mutate(ctx, uid, func(u *domain.User) error {
		res = StreakUpdate{}
		s := &u.Stats
		if s.LastActiveDay == day {
			return nil
		}
		last, err := time.Parse(DateLayout, s.LastActiveDay)
		if err == nil && today.Sub(last) == 24*time.Hour {
			s.CurrentStreak++
		} else if err == nil && today.Before(last) {
			return nil
		} else {
			s.CurrentStreak = 1
		}
		s.LastActiveDay = day
		if s.CurrentStreak > s.MaxStreak {
			s.MaxStreak = s.CurrentStreak
		}
		res.Changed = true
		if streakMilestones[s.CurrentStreak] {
			res.Milestone = s.CurrentStreak
		}
		return nil
	})
	if err != nil {
		return StreakUpdate{}, err
	}
	res.User = u
	return res, nil
}

// RecordQuiz folds a quiz percentage into quizzes_taken, the running average
// and the topic mastery.
func (p *ProgressTracker) RecordQuiz(ctx context.Context, uid string, q QuizResult) (domain.User, float64, error) {
	pct := scoring.Percent(q.Score, q.MaxScore)
	topic := strings.TrimSpace(q.Topic)
	u, err := p.users.Mutate(ctx, uid, func(u *domain.User) error {
		s := &u.Stats
		s.AverageScore = scoring.RunningAverage(s.AverageScore, s.QuizzesTaken, pct)
		s.QuizzesTaken++
		if topic != "" {
			if u.Progress.MasteryLevels == nil {
				u.Progress.MasteryLevels = map[string]float64{}
			}
			if prev, ok := u.Progress.MasteryLevels[topic]; ok {
				u.Progress.MasteryLevels[topic] = (prev + pct) / 2
			} else {
				u.Progress.MasteryLevels[topic] = pct
			}
		}
		return nil
	})
	return u, pct, err
}

// CompleteLesson adds the lesson once and reports whether it was new.
func (p *ProgressTracker) CompleteLesson(ctx context.Context, uid, lessonID string) (domain.User, bool, error) {
	lessonID = strings.TrimSpace(lessonID)
	if lessonID == "" {
		return domain.User{}, false, fmt.Errorf("lesson id: %w", domain.ErrInvalidArgument)
	}
	var added bool
	u, err := p.users.Mutate(ctx, uid, func(u *domain.User) error {
		added = false
		for _, id := range u.Progress.CompletedLessons {
			if id == lessonID {
				return nil
			}
		}
		u.Progress.CompletedLessons = append(u.Progress.CompletedLessons, lessonID)
		u.Stats.LessonsCompleted++
		added = true
		return nil
	})
	return u, added, err
}

// Insights classifies topics (strong >= 85, weak < 70) and persists the
// classification on the user.
func (p *ProgressTracker) Insights(ctx context.Context, uid string) (Insights, error) {
	var ins Insights
	u, err := p.users.Mutate(ctx, uid, func(u *domain.User) error {
		ins = buildInsights(*u)
		u.Progress.StrongTopics = topicNames(ins.Strengths)
		u.Progress.WeakTopics = topicNames(ins.Weaknesses)
		return nil
	})
	if err != nil {
		return Insights{}, err
	}
	ins.CurrentStreak = u.Stats.CurrentStreak
	return ins, nil
}

func buildInsights(u domain.User) Insights {
	ins := Insights{
		Strengths:    []TopicScore{},
		Weaknesses:   []TopicScore{},
		Level:        u.Stats.Level,
		LevelTitle:   scoring.LevelTitle(u.Stats.Level),
		CurrentXP:    u.Stats.CurrentXP,
		NextLevelXP:  scoring.XPForNextLevel(u.Stats.Level),
		AverageScore: u.Stats.AverageScore,
	}
	for topic, mastery := range u.Progress.MasteryLevels {
		ts := TopicScore{Topic: topic, Mastery: mastery}
		switch {
		case mastery >= strongTopicMin:
			ins.Strengths = append(ins.Strengths, ts)
		case mastery < weakTopicMax:
			ins.Weaknesses = append(ins.Weaknesses, ts)
		}
	}
	sort.Slice(ins.Strengths, func(i, j int) bool { return byMastery(ins.Strengths, i, j, true) })
	sort.Slice(ins.Weaknesses, func(i, j int) bool { return byMastery(ins.Weaknesses, i, j, false) })
	if len(ins.Weaknesses) > 0 {
		ins.Recommendation = fmt.Sprintf("Focus on %s - practice makes perfect!", ins.Weaknesses[0].Topic)
	}
	return ins
}

func byMastery(ts []TopicScore, i, j int, desc bool) bool {
	if ts[i].Mastery != ts[j].Mastery {
		if desc {
			return ts[i].Mastery > ts[j].Mastery
		}
		return ts[i].Mastery < ts[j].Mastery
	}
	return ts[i].Topic < ts[j].Topic
}

func topicNames(ts []TopicScore) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Topic
	}
	return out
}

// applyLevel recomputes the level from XP; levels never go down.
func applyLevel(u *domain.User) bool {
	level := scoring.LevelForXP(u.Stats.CurrentXP)
	if level > u.Stats.Level {
		u.Stats.Level = level
		return true
	}
	return false
}
