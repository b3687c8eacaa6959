package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier("tori", "ledgerlite")

	tests := []struct {
		name    string
		message string
		want    Intent
	}{
		{"greeting", "Hi there", Greeting},
		{"greeting mixed case", "HELLO!", Greeting},
		{"projects plural", "What projects have you done?", Projects},
		{"named project", "Tell me about TORI", Projects},
		{"named project lower", "how does ledgerlite work", Projects},
		{"skills", "What are your skills?", Skills},
		{"tech stack", "Which technologies do you use?", Skills},
		{"contact", "How can I contact you?", Contact},
		{"email", "what's your e-mail", Contact},
		{"experience", "Where have you worked before?", Experience},
		{"internship", "Did you do an internship?", Experience},
		{"achievements", "Any certifications?", Achievements},
		{"hackathon", "have you won a hackathon", Achievements},
		{"education", "What did you study?", Education},
		{"degree", "Do you have a degree", Education},
		{"code", "Show me your github", Code},
		{"open source", "do you contribute to open-source", Code},
		{"general", "Tell me about yourself", General},
		{"empty", "", General},
		{"substring is not a word", "this is highly relevant", General},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.message))
		})
	}
}

func TestClassify_PriorityTieBreak(t *testing.T) {
	assert.Equal(t, Projects, Classify("hello, tell me about your projects"))
	assert.Equal(t, Skills, Classify("hey, what skills do you have?"))
	assert.Equal(t, Contact, Classify("I'd like to hire you, what experience do you have"))
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []string{"Hi there", "Tell me about TORI", "random words", "skills and projects"}
	c := NewClassifier("tori")
	for _, in := range inputs {
		first := c.Classify(in)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, c.Classify(in))
		}
	}
}

func TestClassify_UnknownProjectWithoutTerms(t *testing.T) {
	assert.Equal(t, General, Classify("Tell me about TORI"))
}

func TestRules_PriorityOrder(t *testing.T) {
	want := []Intent{Projects, Skills, Contact, Experience, Achievements, Education, Code, Greeting}
	rules := NewClassifier().Rules()

	got := make([]Intent, len(rules))
	for i, r := range rules {
		got[i] = r.Intent
	}
	assert.Equal(t, want, got)
}

func TestNewClassifier_QuotesTerms(t *testing.T) {
	c := NewClassifier("next.js", "  ", "a+b")
	assert.Equal(t, Projects, c.Classify("I liked next.js"))
	assert.Equal(t, General, c.Classify("I liked nextxjs"))
}
