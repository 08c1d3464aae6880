// Package catalog holds the read-only reference data: badges, question
// templates and coding exercises.
package catalog

import "pyquest-gamification/internal/domain"

// Badges returns the static badge catalog in evaluation order.
func Badges() []domain.Badge {
	return []domain.Badge{
		{
			ID:          "first_quiz",
			Name:        "First Steps",
			Description: "Complete your first quiz",
			Criterion:   domain.QuizPerformance{MinQuizzes: 1},
			Rewards:     domain.BadgeRewards{Points: 10, Pycoins: 5, XP: 10},
		},
		{
			ID:          "quick_learner",
			Name:        "Quick Learner",
			Description: "Complete 3 lessons",
			Criterion:   domain.Completion{MinLessons: 3},
			Rewards:     domain.BadgeRewards{Points: 30, Pycoins: 15, XP: 30},
		},
		{
			ID:          "lesson_master",
			Name:        "Lesson Master",
			Description: "Complete 10 lessons",
			Criterion:   domain.Completion{MinLessons: 10},
			Rewards:     domain.BadgeRewards{Points: 100, Pycoins: 50, XP: 100},
		},
		{
			ID:          "quiz_master",
			Name:        "Quiz Master",
			Description: "Take 10 quizzes with an average of at least 85%",
			Criterion:   domain.QuizPerformance{MinQuizzes: 10, MinScore: 85},
			Rewards:     domain.BadgeRewards{Points: 100, Pycoins: 50, XP: 100},
		},
		{
			ID:          "perfectionist",
			Name:        "Perfectionist",
			Description: "Take 5 quizzes with an average of at least 95%",
			Criterion:   domain.QuizPerformance{MinQuizzes: 5, MinScore: 95},
			Rewards:     domain.BadgeRewards{Points: 150, Pycoins: 75, XP: 150},
		},
		{
			ID:          "streak_5",
			Name:        "On Fire",
			Description: "Study 5 days in a row",
			Criterion:   domain.Streak{MinStreak: 5},
			Rewards:     domain.BadgeRewards{Points: 50, Pycoins: 25, XP: 50},
		},
		{
			ID:          "streak_10",
			Name:        "Unstoppable",
			Description: "Study 10 days in a row",
			Criterion:   domain.Streak{MinStreak: 10},
			Rewards:     domain.BadgeRewards{Points: 100, Pycoins: 50, XP: 100},
		},
		{
			ID:          "consistent_learner",
			Name:        "Consistent Learner",
			Description: "Study 30 days in a row",
			Criterion:   domain.Streak{MinStreak: 30},
			Rewards:     domain.BadgeRewards{Points: 300, Pycoins: 150, XP: 300},
		},
	}
}

// BadgeByID looks a badge up in the catalog.
func BadgeByID(id string) (domain.Badge, bool) {
	for _, b := range Badges() {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Badge{}, false
}
