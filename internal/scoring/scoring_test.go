package scoring

import "testing"

func TestIncorrectIsFlatConsolation(t *testing.T) {
	for _, base := range []int{0, 1, 50, 1000} {
		r := Score(Submission{Correct: false, BasePoints: base, BaseTokens: base, BaseXP: base, SpeedBonus: 10})
		if r.Points != ConsolationPoints || r.Tokens != ConsolationTokens || r.XP != ConsolationXP {
			t.Fatalf("base %d: unexpected consolation %+v", base, r)
		}
	}
}

func TestCorrectFastNoHints(t *testing.T) {
	for _, tc := range []struct{ base, speed, seconds int }{
		{50, 10, 0}, {50, 10, 59}, {100, 0, 30}, {1, 25, 12},
	} {
		r := Score(Submission{Correct: true, BasePoints: tc.base, BaseTokens: 25, BaseXP: 30, TimeTakenSeconds: tc.seconds, SpeedBonus: tc.speed})
		if want := tc.base + tc.speed + NoHintBonus; r.Points != want {
			t.Fatalf("%+v: points %d, want %d", tc, r.Points, want)
		}
		if r.Tokens != 25 || r.XP != 30 {
			t.Fatalf("%+v: tokens/xp changed: %+v", tc, r)
		}
	}
}

func TestCorrectSlowWithHints(t *testing.T) {
	r := Score(Submission{Correct: true, BasePoints: 50, TimeTakenSeconds: 60, HintsUsed: 2, SpeedBonus: 10})
	if r.Points != 50 {
		t.Fatalf("expected no bonuses at 60s with hints, got %d", r.Points)
	}
}

func TestPartialCredit(t *testing.T) {
	for total := 1; total <= 7; total++ {
		for passed := 0; passed <= total; passed++ {
			r, credit := Partial(37, 9, passed, total)
			switch {
			case passed == 0:
				if credit != CreditNone || !r.IsZero() {
					t.Fatalf("%d/%d: expected nothing, got %+v %v", passed, total, r, credit)
				}
			case passed == total:
				if credit != CreditFull || r.Points != 37 || r.Tokens != 9 {
					t.Fatalf("%d/%d: expected full credit, got %+v %v", passed, total, r, credit)
				}
			default:
				if credit != CreditPartial || r.Points != 37*passed/total || r.Tokens != 0 {
					t.Fatalf("%d/%d: unexpected partial %+v %v", passed, total, r, credit)
				}
				if r.Points >= 37 {
					t.Fatalf("%d/%d: partial must stay below base", passed, total)
				}
			}
		}
	}
	if _, credit := Partial(10, 5, 0, 0); credit != CreditNone {
		t.Fatalf("no test cases must award nothing")
	}
}

func TestLevels(t *testing.T) {
	cases := map[int64]int{0: 1, 99: 1, 100: 2, 250: 3, -5: 1}
	for xp, want := range cases {
		if got := LevelForXP(xp); got != want {
			t.Fatalf("xp %d: level %d, want %d", xp, got, want)
		}
	}
	titles := map[int]string{1: "Code Apprentice", 5: "Syntax Scholar", 10: "Logic Ninja", 15: "Algorithm Expert", 25: "Code Wizard", 50: "Python Master"}
	for level, want := range titles {
		if got := LevelTitle(level); got != want {
			t.Fatalf("level %d: %q, want %q", level, got, want)
		}
	}
	if XPForNextLevel(3) != 300 {
		t.Fatalf("unexpected next level threshold")
	}
}

func TestQuizPointsAndAverage(t *testing.T) {
	if got := QuizPoints(17, 20); got != 85 {
		t.Fatalf("quiz points %d", got)
	}
	if got := QuizPoints(5, 0); got != 0 {
		t.Fatalf("zero max must award nothing, got %d", got)
	}
	if got := RunningAverage(80, 3, 100); got != 85 {
		t.Fatalf("running average %v", got)
	}
	if got := RunningAverage(0, 0, 70); got != 70 {
		t.Fatalf("first sample %v", got)
	}
}
