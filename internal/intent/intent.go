// Package intent maps free-text visitor messages to a fixed set of
// conversation categories using an ordered keyword table.
package intent

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of a message.
type Intent string

const (
	Projects     Intent = "projects"
	Skills       Intent = "skills"
	Contact      Intent = "contact"
	Experience   Intent = "experience"
	Achievements Intent = "achievements"
	Education    Intent = "education"
	Code         Intent = "code"
	Greeting     Intent = "greeting"
	General      Intent = "general"
)

// Rule pairs an intent with the pattern that selects it.
type Rule struct {
	Intent  Intent
	Pattern *regexp.Regexp
}

// Priority order matters: the first matching rule wins, so a message
// mentioning both a project and a greeting is a projects question.
var baseRules = []struct {
	intent Intent
	words  []string
}{
	{Projects, []string{`projects?`, `portfolio`, `built`, `apps?`, `applications?`, `showcase`, `demos?`}},
	{Skills, []string{`skills?`, `tech stack`, `technolog(y|ies)`, `languages?`, `frameworks?`, `tools?`, `proficien\w*`, `expertise`}},
	{Contact, []string{`contact`, `e-?mail`, `phone`, `reach`, `hire`, `linkedin`, `get in touch`, `call`}},
	{Experience, []string{`experience`, `work(ed|ing)?`, `jobs?`, `roles?`, `intern(ship)?s?`, `career`, `compan(y|ies)`, `employ\w*`}},
	{Achievements, []string{`achievements?`, `awards?`, `certificates?`, `certifications?`, `certified`, `hackathons?`, `accomplishments?`}},
	{Education, []string{`education`, `degree`, `universit(y|ies)`, `college`, `school`, `stud(y|ied|ying)`, `graduat\w*`}},
	{Code, []string{`code`, `github`, `repo(sitor(y|ies))?s?`, `source`, `open[- ]?source`}},
	{Greeting, []string{`hi`, `hello`, `hey`, `greetings`, `howdy`, `good (morning|afternoon|evening)`, `yo`}},
}

// Classifier tests messages against an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier whose projects rule also recognises
// the given project names.
func NewClassifier(projectTerms ...string) *Classifier {
	rules := make([]Rule, 0, len(baseRules))
	for _, r := range baseRules {
		words := r.words
		if r.intent == Projects {
			words = append(append([]string{}, words...), quoteTerms(projectTerms)...)
		}
		rules = append(rules, Rule{
			Intent:  r.intent,
			Pattern: regexp.MustCompile(`\b(` + strings.Join(words, "|") + `)\b`),
		})
	}
	return &Classifier{rules: rules}
}

// Rules returns the table in priority order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the first intent whose pattern matches, or General.
func (c *Classifier) Classify(message string) Intent {
	lower := strings.ToLower(message)
	for _, r := range c.rules {
		if r.Pattern.MatchString(lower) {
			return r.Intent
		}
	}
	return General
}

var defaultClassifier = NewClassifier()

// Classify uses the base table without project names.
func Classify(message string) Intent {
	return defaultClassifier.Classify(message)
}

func quoteTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		out = append(out, regexp.QuoteMeta(t))
	}
	return out
}
