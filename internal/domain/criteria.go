package domain

// AchievementContext carries facts about the event that triggered a badge check.
type AchievementContext struct {
	QuizCompleted           bool
	PerfectScore            bool
	Score                   float64
	DailyChallengeCompleted bool
	LessonCompleted         bool
}

// Criterion decides whether a user qualifies for a badge.
type Criterion interface {
	Type() string
	Satisfied(u User, c AchievementContext) bool
}

// QuizPerformance requires a minimum quiz count and average score.
type QuizPerformance struct {
	MinQuizzes int
	MinScore   float64
}

func (QuizPerformance) Type() string { return "quiz_performance" }

func (q QuizPerformance) Satisfied(u User, _ AchievementContext) bool {
	return u.Stats.QuizzesTaken >= q.MinQuizzes && u.Stats.AverageScore >= q.MinScore
}

// Streak requires a minimum current streak.
type Streak struct {
	MinStreak int
}

func (Streak) Type() string { return "streak" }

func (s Streak) Satisfied(u User, _ AchievementContext) bool {
	return u.Stats.CurrentStreak >= s.MinStreak
}

// Completion requires a minimum number of completed lessons.
type Completion struct {
	MinLessons int
}

func (Completion) Type() string { return "completion" }

func (c Completion) Satisfied(u User, _ AchievementContext) bool {
	return u.Stats.LessonsCompleted >= c.MinLessons
}
