// Package scoring holds the pure reward arithmetic. Callers persist results
// with atomic increments.
package scoring

import "pyquest-gamification/internal/domain"

const (
	ConsolationPoints = 10
	ConsolationTokens = 5
	ConsolationXP     = 10

	// SpeedThresholdSeconds is the exclusive upper bound for the speed bonus.
	SpeedThresholdSeconds = 60
	NoHintBonus           = 15

	LessonCompletionPoints = 25
	XPPerLevel             = 100
)

// Submission is a single multiple-choice answer to be scored.
type Submission struct {
	Correct          bool
	BasePoints       int
	BaseTokens       int
	BaseXP           int
	TimeTakenSeconds int
	HintsUsed        int
	SpeedBonus       int
}

// Score returns the reward for a submission. Incorrect answers earn a flat
// consolation amount regardless of the base values.
func Score(s Submission) domain.Reward {
	if !s.Correct {
		return domain.Reward{Points: ConsolationPoints, Tokens: ConsolationTokens, XP: ConsolationXP}
	}
	r := domain.Reward{Points: s.BasePoints, Tokens: s.BaseTokens, XP: s.BaseXP}
	if s.TimeTakenSeconds < SpeedThresholdSeconds {
		r = r.Add(domain.Reward{Points: s.SpeedBonus})
	}
	if s.HintsUsed == 0 {
		r = r.Add(domain.Reward{Points: NoHintBonus})
	}
	return r
}

// Credit classifies a multi test case result.
type Credit int

const (
	CreditNone Credit = iota
	CreditPartial
	CreditFull
)

func (c Credit) String() string {
	switch c {
	case CreditFull:
		return "full"
	case CreditPartial:
		return "partial"
	default:
		return "none"
	}
}

// Partial scores a submission checked against several test cases. Full credit
// pays points and tokens; partial credit pays floor(base*passed/total) points
// and no tokens.
func Partial(basePoints, baseTokens, passed, total int) (domain.Reward, Credit) {
	switch {
	case total <= 0 || passed <= 0:
		return domain.Reward{}, CreditNone
	case passed >= total:
		return domain.Reward{Points: basePoints, Tokens: baseTokens}, CreditFull
	default:
		return domain.Reward{Points: basePoints * passed / total}, CreditPartial
	}
}

// QuizPoints awards one point per percentage point of the quiz score.
func QuizPoints(score, maxScore float64) int {
	if maxScore <= 0 || score <= 0 {
		return 0
	}
	return int(score / maxScore * 100)
}

// Percent converts a raw quiz score to 0..100.
func Percent(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	p := score / maxScore * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// LevelForXP maps accumulated XP to a level starting at 1.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// XPForNextLevel is the XP total at which level+1 is reached.
func XPForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level) * XPPerLevel
}

// LevelTitle names a level for display.
func LevelTitle(level int) string {
	switch {
	case level >= 50:
		return "Python Master"
	case level >= 25:
		return "Code Wizard"
	case level >= 15:
		return "Algorithm Expert"
	case level >= 10:
		return "Logic Ninja"
	case level >= 5:
		return "Syntax Scholar"
	default:
		return "Code Apprentice"
	}
}

// RunningAverage folds one more sample into an average over n previous samples.
func RunningAverage(avg float64, n int, sample float64) float64 {
	if n <= 0 {
		return sample
	}
	return (avg*float64(n) + sample) / float64(n+1)
}
