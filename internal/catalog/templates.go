package catalog

import "fmt"

// TrackedTopics are the topics whose class mastery drives challenge generation.
var TrackedTopics = []string{"variables", "loops", "functions", "data_structures", "error_handling"}

// FallbackTopic is used when no weak topic has a template.
const FallbackTopic = "variables"

// QuestionTemplate is the multiple-choice body of a generated challenge.
type QuestionTemplate struct {
	Question      string
	Options       []string
	CorrectAnswer string
	Explanation   string
}

var templates = map[string]QuestionTemplate{
	"variables": {
		Question:      "What will be the output of this code?\n\nx = 5\ny = x + 3\nprint(f\"Result: {y}\")",
		Options:       []string{"Result: 5", "Result: 8", "Result: 53", "Error"},
		CorrectAnswer: "Result: 8",
		Explanation:   "x is assigned 5, then y is assigned x + 3 = 8, so the f-string prints \"Result: 8\"",
	},
	"loops": {
		Question:      "How many times will this loop run?\n\nfor i in range(3, 8, 2):\n    print(i)",
		Options:       []string{"2 times", "3 times", "4 times", "5 times"},
		CorrectAnswer: "3 times",
		Explanation:   "range(3, 8, 2) creates [3, 5, 7] - three numbers, so loop runs 3 times",
	},
	"functions": {
		Question:      "What does this function return?\n\ndef mystery(x, y=2):\n    return x * y\n\nresult = mystery(4)",
		Options:       []string{"4", "6", "8", "Error"},
		CorrectAnswer: "8",
		Explanation:   "mystery(4) uses default y=2, so returns 4 * 2 = 8",
	},
}

// Template returns the template for topic, falling back to FallbackTopic.
// The returned topic is the one the template belongs to.
func Template(topic string) (QuestionTemplate, string) {
	if t, ok := templates[topic]; ok {
		return t, topic
	}
	return templates[FallbackTopic], FallbackTopic
}

// Hints are shown progressively during a challenge.
func Hints(topic string) []string {
	return []string{
		"Read the code carefully line by line",
		fmt.Sprintf("This question focuses on %s - think about how they work", topic),
		"Try tracing through the code step by step",
	}
}
