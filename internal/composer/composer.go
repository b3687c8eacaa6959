// Package composer builds canned replies from the portfolio snapshot.
//
// Replies use a light markup convention (**bold**, "• " bullets) that the
// widget renders; nothing here renders it. Output is a pure function of
// the intent, the snapshot and the raw message.
package composer

import (
	"fmt"
	"strings"

	"PortfolioChat/internal/intent"
	"PortfolioChat/internal/knowledge"
)

const (
	LoadingText       = "I'm still loading portfolio information. Please try again in a moment!"
	LoadingConfidence = 0.3

	confidenceProject  = 0.95
	confidenceCategory = 0.9
	confidenceGeneral  = 0.6

	bullet = "• "
)

// Reply is a composed answer plus suggested next questions.
type Reply struct {
	Text               string        `json:"text"`
	SuggestedFollowUps []string      `json:"suggested_follow_ups"`
	Confidence         float64       `json:"confidence"`
	Intent             intent.Intent `json:"intent"`
}

var followUps = map[intent.Intent][]string{
	intent.Projects:     {"What technologies do you use most?", "Tell me about your work experience", "Can I see the source code?"},
	intent.Code:         {"Which project are you most proud of?", "What are your strongest skills?", "How can I contact you?"},
	intent.Skills:       {"Which projects use these skills?", "Do you have any certifications?", "Tell me about your experience"},
	intent.Contact:      {"What projects have you built?", "What are your skills?", "Are you open to new opportunities?"},
	intent.Experience:   {"What projects have you worked on?", "What technologies do you use?", "What is your education?"},
	intent.Achievements: {"Tell me about your projects", "What skills do you have?", "How can I contact you?"},
	intent.Education:    {"What certifications do you have?", "Tell me about your experience", "What are your skills?"},
	intent.Greeting:     {"What projects have you built?", "What are your skills?", "Tell me about your experience", "How can I contact you?"},
	intent.General:      {"Tell me about your projects", "What are your skills?", "How can I contact you?"},
}

var loadingFollowUps = []string{"Tell me about your projects", "What are your skills?", "How can I contact you?"}

// FollowUps returns the fixed suggestions for an intent.
func FollowUps(in intent.Intent) []string {
	f, ok := followUps[in]
	if !ok {
		f = followUps[intent.General]
	}
	return append([]string(nil), f...)
}

// Compose builds the reply for in from snap. A nil snapshot yields the
// loading placeholder whatever the intent.
func Compose(in intent.Intent, snap *knowledge.Snapshot, rawMessage string) Reply {
	if snap == nil {
		return Reply{
			Text:               LoadingText,
			SuggestedFollowUps: append([]string(nil), loadingFollowUps...),
			Confidence:         LoadingConfidence,
			Intent:             in,
		}
	}

	reply := Reply{
		Confidence:         confidenceCategory,
		Intent:             in,
		SuggestedFollowUps: FollowUps(in),
	}

	switch in {
	case intent.Projects, intent.Code:
		if p, ok := findProject(snap, rawMessage); ok {
			reply.Text = projectDetail(p)
			reply.Confidence = confidenceProject
		} else if in == intent.Code {
			reply.Text = codeSummary(snap)
		} else {
			reply.Text = projectSummary(snap)
		}
	case intent.Skills:
		reply.Text = skillsSummary(snap)
	case intent.Contact:
		reply.Text = contactSummary(snap)
	case intent.Experience:
		reply.Text = experienceSummary(snap)
	case intent.Achievements:
		reply.Text = achievementsSummary(snap)
	case intent.Education:
		reply.Text = educationSummary(snap)
	case intent.Greeting:
		reply.Text = greeting(snap)
	default:
		reply.Intent = intent.General
		reply.Text = overview(snap)
		reply.Confidence = confidenceGeneral
		reply.SuggestedFollowUps = FollowUps(intent.General)
	}

	return reply
}

// findProject returns the first project, in snapshot order, whose match
// terms appear in the message.
func findProject(snap *knowledge.Snapshot, raw string) (knowledge.Project, bool) {
	lower := strings.ToLower(raw)
	if lower == "" {
		return knowledge.Project{}, false
	}
	for _, p := range snap.Projects {
		for _, term := range p.MatchTerms() {
			if containsWord(lower, term) {
				return p, true
			}
		}
	}
	return knowledge.Project{}, false
}

// containsWord reports whether term occurs in s bounded by non-letters,
// so that "portfolio site" does not match inside "portfolios itemised".
func containsWord(s, term string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], term)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(term)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func projectDetail(p knowledge.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n%s\n", p.Title, p.Description)
	if len(p.Technologies) > 0 {
		fmt.Fprintf(&b, "\n**Technologies:** %s\n", strings.Join(p.Technologies, ", "))
	}
	if len(p.Metrics) > 0 {
		b.WriteString("\n**Impact:**\n")
		for _, m := range p.Metrics {
			b.WriteString(bullet + m + "\n")
		}
	}
	if p.RepoURL != "" {
		fmt.Fprintf(&b, "\n**Code:** %s\n", p.RepoURL)
	}
	if p.DemoURL != "" {
		fmt.Fprintf(&b, "**Live demo:** %s\n", p.DemoURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func projectSummary(snap *knowledge.Snapshot) string {
	if len(snap.Projects) == 0 {
		return fmt.Sprintf("%s hasn't published any projects yet.", snap.Personal.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are some of %s's projects:\n\n", snap.Personal.Name)
	for _, p := range snap.FeaturedFirst() {
		fmt.Fprintf(&b, "%s**%s**: %s\n", bullet, p.Title, firstSentence(p.Description))
		if len(p.Technologies) > 0 {
			fmt.Fprintf(&b, "  Built with %s\n", strings.Join(p.Technologies, ", "))
		}
	}
	b.WriteString("\nAsk about any project by name for more detail.")
	return b.String()
}

// codeSummary is the project summary followed by where to find the code.
func codeSummary(snap *knowledge.Snapshot) string {
	var b strings.Builder
	b.WriteString(projectSummary(snap))

	var repos []knowledge.Project
	for _, p := range snap.FeaturedFirst() {
		if p.RepoURL != "" {
			repos = append(repos, p)
		}
	}
	if len(repos) == 0 && snap.Personal.GitHub == "" {
		return b.String()
	}

	b.WriteString("\n\n**Source code:**\n")
	if snap.Personal.GitHub != "" {
		fmt.Fprintf(&b, "%sGitHub: %s\n", bullet, snap.Personal.GitHub)
	}
	for _, p := range repos {
		fmt.Fprintf(&b, "%s**%s**: %s\n", bullet, p.Title, p.RepoURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func skillsSummary(snap *knowledge.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s's technical skills:\n", snap.Personal.Name)
	for _, cat := range snap.Skills {
		fmt.Fprintf(&b, "\n**%s**\n", cat.Category)
		for _, sk := range cat.Skills {
			fmt.Fprintf(&b, "%s%s (%s)", bullet, sk.Name, levelLabel(sk.Level))
			if len(sk.Certifications) > 0 {
				fmt.Fprintf(&b, ", certified: %s", strings.Join(sk.Certifications, ", "))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func levelLabel(level int) string {
	switch level {
	case 5:
		return "expert"
	case 4:
		return "advanced"
	case 3:
		return "proficient"
	case 2:
		return "intermediate"
	default:
		return "familiar"
	}
}

func contactSummary(snap *knowledge.Snapshot) string {
	p := snap.Personal
	var b strings.Builder
	fmt.Fprintf(&b, "You can reach %s here:\n\n", p.Name)
	fields := []struct{ label, value string }{
		{"Email", p.Email},
		{"Phone", p.Phone},
		{"LinkedIn", p.LinkedIn},
		{"GitHub", p.GitHub},
		{"Website", p.Website},
		{"Location", p.Location},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s**%s:** %s\n", bullet, f.label, f.value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func experienceSummary(snap *knowledge.Snapshot) string {
	if len(snap.Experiences) == 0 {
		return fmt.Sprintf("%s's work history isn't listed yet.", snap.Personal.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s's professional experience:\n", snap.Personal.Name)
	for _, e := range snap.Experiences {
		fmt.Fprintf(&b, "\n**%s** at %s (%s – %s)\n", e.Role, e.Company, e.Start, e.End)
		for _, r := range e.Responsibilities {
			b.WriteString(bullet + r + "\n")
		}
		if len(e.Technologies) > 0 {
			fmt.Fprintf(&b, "Tech: %s\n", strings.Join(e.Technologies, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func achievementsSummary(snap *knowledge.Snapshot) string {
	var technical, participation []knowledge.Certificate
	for _, c := range snap.Certificates {
		if c.Category == knowledge.CertificateTechnical {
			technical = append(technical, c)
		} else {
			participation = append(participation, c)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s's achievements:\n", snap.Personal.Name)
	writeCerts := func(title string, certs []knowledge.Certificate) {
		if len(certs) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n**%s**\n", title)
		for _, c := range certs {
			fmt.Fprintf(&b, "%s%s, %s (%s)\n", bullet, c.Title, c.Issuer, c.Date)
		}
	}
	writeCerts("Technical certifications", technical)
	writeCerts("Participation", participation)

	var metrics []string
	for _, p := range snap.FeaturedFirst() {
		for _, m := range p.Metrics {
			metrics = append(metrics, fmt.Sprintf("%s: %s", p.Title, m))
		}
	}
	if len(metrics) > 0 {
		b.WriteString("\n**Project impact**\n")
		for _, m := range metrics {
			b.WriteString(bullet + m + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func educationSummary(snap *knowledge.Snapshot) string {
	if len(snap.Education) == 0 {
		return fmt.Sprintf("%s hasn't listed formal education here, but the certifications section covers recent learning.", snap.Personal.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s's education:\n", snap.Personal.Name)
	for _, e := range snap.Education {
		fmt.Fprintf(&b, "\n**%s**, %s (%s – %s)\n", e.Degree, e.Institution, e.Start, e.End)
		for _, d := range e.Details {
			b.WriteString(bullet + d + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func greeting(snap *knowledge.Snapshot) string {
	p := snap.Personal
	return fmt.Sprintf("Hi! I'm %s's assistant. %s is a **%s**. Ask me about projects, skills, experience or how to get in touch.",
		p.Name, p.Name, p.Title)
}

func overview(snap *knowledge.Snapshot) string {
	p := snap.Personal
	var skillCount int
	for _, c := range snap.Skills {
		skillCount += len(c.Skills)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** – %s\n\n%s\n\n", p.Name, p.Title, p.Summary)
	fmt.Fprintf(&b, "%s%d projects\n", bullet, len(snap.Projects))
	fmt.Fprintf(&b, "%s%d skills across %d areas\n", bullet, skillCount, len(snap.Skills))
	fmt.Fprintf(&b, "%s%d roles\n", bullet, len(snap.Experiences))
	fmt.Fprintf(&b, "%s%d certificates\n", bullet, len(snap.Certificates))
	if !snap.LastUpdated.IsZero() {
		fmt.Fprintf(&b, "\n_Portfolio data last updated %s._", snap.LastUpdated.UTC().Format("2006-01-02 15:04 MST"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
