package catalog

import (
	"time"

	"pyquest-gamification/internal/domain"
)

var exercises = []domain.CodingExercise{
	{
		ID:          "bell_sum_two",
		Title:       "Add Two Numbers",
		Description: "Read two integers, one per line, and print their sum.",
		Difficulty:  "easy",
		TestCases: []domain.TestCase{
			{Input: "2\n3\n", ExpectedOutput: "5"},
			{Input: "-4\n10\n", ExpectedOutput: "6"},
			{Input: "0\n0\n", ExpectedOutput: "0"},
		},
		Points: 30,
		Tokens: 10,
	},
	{
		ID:          "bell_reverse_word",
		Title:       "Reverse a Word",
		Description: "Read a word and print it reversed.",
		Difficulty:  "easy",
		TestCases: []domain.TestCase{
			{Input: "python\n", ExpectedOutput: "nohtyp"},
			{Input: "level\n", ExpectedOutput: "level"},
		},
		Points: 30,
		Tokens: 10,
	},
	{
		ID:          "bell_count_vowels",
		Title:       "Count the Vowels",
		Description: "Read a line of text and print how many vowels (a, e, i, o, u) it contains, ignoring case.",
		Difficulty:  "medium",
		TestCases: []domain.TestCase{
			{Input: "Hello World\n", ExpectedOutput: "3"},
			{Input: "PyQuest\n", ExpectedOutput: "2"},
			{Input: "rhythm\n", ExpectedOutput: "0"},
		},
		Points: 40,
		Tokens: 15,
	},
	{
		ID:          "bell_fizzbuzz",
		Title:       "FizzBuzz Single",
		Description: "Read n and print Fizz if divisible by 3, Buzz if by 5, FizzBuzz if by both, else n.",
		Difficulty:  "medium",
		TestCases: []domain.TestCase{
			{Input: "9\n", ExpectedOutput: "Fizz"},
			{Input: "10\n", ExpectedOutput: "Buzz"},
			{Input: "30\n", ExpectedOutput: "FizzBuzz"},
			{Input: "7\n", ExpectedOutput: "7"},
		},
		Points: 40,
		Tokens: 15,
	},
	{
		ID:          "bell_max_list",
		Title:       "Largest Number",
		Description: "Read space separated integers and print the largest.",
		Difficulty:  "medium",
		TestCases: []domain.TestCase{
			{Input: "3 9 2\n", ExpectedOutput: "9"},
			{Input: "-1 -7 -3\n", ExpectedOutput: "-1"},
		},
		Points: 40,
		Tokens: 15,
	},
}

// Exercises returns a copy of the coding exercise rotation.
func Exercises() []domain.CodingExercise {
	out := make([]domain.CodingExercise, len(exercises))
	copy(out, exercises)
	return out
}

// ExerciseForDay picks the exercise by day of year.
func ExerciseForDay(t time.Time) domain.CodingExercise {
	return exercises[t.YearDay()%len(exercises)]
}
