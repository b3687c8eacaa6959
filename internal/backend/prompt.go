package backend

import (
	"fmt"
	"strings"

	"PortfolioChat/internal/knowledge"
)

// SystemPrompt describes the assistant persona and the portfolio facts it
// may rely on.
func SystemPrompt(snap *knowledge.Snapshot) string {
	if snap == nil {
		return "You are a friendly assistant on a personal portfolio website. " +
			"Portfolio details are still loading; answer briefly and invite the visitor to ask again shortly."
	}

	p := snap.Personal
	var b strings.Builder
	fmt.Fprintf(&b, "You are the assistant on %s's portfolio website. %s is a %s.\n", p.Name, p.Name, p.Title)
	b.WriteString("Answer visitors' questions about their projects, skills, experience, education, certificates and how to get in touch. ")
	b.WriteString("Be concise and friendly, use **bold** and bullet points sparingly, and only state facts listed below. ")
	b.WriteString("If something isn't covered, say so and suggest contacting them directly.\n\n")

	fmt.Fprintf(&b, "Summary: %s\n", p.Summary)
	fmt.Fprintf(&b, "Contact: email %s", p.Email)
	if p.LinkedIn != "" {
		fmt.Fprintf(&b, ", LinkedIn %s", p.LinkedIn)
	}
	if p.GitHub != "" {
		fmt.Fprintf(&b, ", GitHub %s", p.GitHub)
	}
	b.WriteString("\n\nProjects:\n")
	for _, pr := range snap.Projects {
		fmt.Fprintf(&b, "- %s: %s Tech: %s.", pr.Title, strings.TrimSpace(pr.Description), strings.Join(pr.Technologies, ", "))
		if len(pr.Metrics) > 0 {
			fmt.Fprintf(&b, " Results: %s.", strings.Join(pr.Metrics, "; "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nSkills:\n")
	for _, cat := range snap.Skills {
		names := make([]string, len(cat.Skills))
		for i, s := range cat.Skills {
			names[i] = s.Name
		}
		fmt.Fprintf(&b, "- %s: %s\n", cat.Category, strings.Join(names, ", "))
	}

	b.WriteString("\nExperience:\n")
	for _, e := range snap.Experiences {
		fmt.Fprintf(&b, "- %s at %s (%s to %s): %s\n", e.Role, e.Company, e.Start, e.End, strings.Join(e.Responsibilities, "; "))
	}

	if len(snap.Education) > 0 {
		b.WriteString("\nEducation:\n")
		for _, e := range snap.Education {
			fmt.Fprintf(&b, "- %s, %s (%s to %s)\n", e.Degree, e.Institution, e.Start, e.End)
		}
	}

	b.WriteString("\nCertificates:\n")
	for _, c := range snap.Certificates {
		fmt.Fprintf(&b, "- %s from %s (%s, %s)\n", c.Title, c.Issuer, c.Date, c.Category)
	}

	return b.String()
}
