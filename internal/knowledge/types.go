package knowledge

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	CertificateTechnical     = "technical"
	CertificateParticipation = "participation"
)

// Tables is the raw content of the portfolio source tables.
type Tables struct {
	Personal     PersonalInfo    `yaml:"personal" json:"personal"`
	Projects     []Project       `yaml:"projects" json:"projects"`
	Skills       []SkillCategory `yaml:"skills" json:"skills"`
	Experiences  []Experience    `yaml:"experiences" json:"experiences"`
	Education    []Education     `yaml:"education" json:"education"`
	Certificates []Certificate   `yaml:"certificates" json:"certificates"`
}

// PersonalInfo holds identity and contact fields.
type PersonalInfo struct {
	Name     string `yaml:"name" json:"name"`
	Title    string `yaml:"title" json:"title"`
	Email    string `yaml:"email" json:"email"`
	Phone    string `yaml:"phone" json:"phone,omitempty"`
	Location string `yaml:"location" json:"location,omitempty"`
	LinkedIn string `yaml:"linkedin" json:"linkedin,omitempty"`
	GitHub   string `yaml:"github" json:"github,omitempty"`
	Website  string `yaml:"website" json:"website,omitempty"`
	Summary  string `yaml:"summary" json:"summary"`
}

type Project struct {
	ID           string   `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	Description  string   `yaml:"description" json:"description"`
	Technologies []string `yaml:"technologies" json:"technologies"`
	Metrics      []string `yaml:"metrics" json:"metrics,omitempty"`
	Featured     bool     `yaml:"featured" json:"featured"`
	Keywords     []string `yaml:"keywords" json:"keywords,omitempty"`
	RepoURL      string   `yaml:"repo_url" json:"repo_url,omitempty"`
	DemoURL      string   `yaml:"demo_url" json:"demo_url,omitempty"`
}

// MatchTerms returns the lower-cased fragments that identify the project in free text.
func (p Project) MatchTerms() []string {
	terms := make([]string, 0, len(p.Keywords)+2)
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		terms = append(terms, s)
	}
	add(p.Title)
	add(p.ID)
	for _, k := range p.Keywords {
		add(k)
	}
	return terms
}

type SkillCategory struct {
	Category string  `yaml:"category" json:"category"`
	Skills   []Skill `yaml:"skills" json:"skills"`
}

// Skill level is a proficiency rank from 1 (familiar) to 5 (expert).
type Skill struct {
	Name           string   `yaml:"name" json:"name"`
	Level          int      `yaml:"level" json:"level"`
	Certifications []string `yaml:"certifications" json:"certifications,omitempty"`
}

type Experience struct {
	Role             string   `yaml:"role" json:"role"`
	Company          string   `yaml:"company" json:"company"`
	Start            string   `yaml:"start" json:"start"`
	End              string   `yaml:"end" json:"end"`
	Responsibilities []string `yaml:"responsibilities" json:"responsibilities"`
	Technologies     []string `yaml:"technologies" json:"technologies,omitempty"`
}

type Education struct {
	Degree      string   `yaml:"degree" json:"degree"`
	Institution string   `yaml:"institution" json:"institution"`
	Start       string   `yaml:"start" json:"start"`
	End         string   `yaml:"end" json:"end"`
	Details     []string `yaml:"details" json:"details,omitempty"`
}

type Certificate struct {
	Title       string `yaml:"title" json:"title"`
	Issuer      string `yaml:"issuer" json:"issuer"`
	Date        string `yaml:"date" json:"date"`
	Category    string `yaml:"category" json:"category"`
	Description string `yaml:"description" json:"description"`
}

// Snapshot is an immutable view of the portfolio tables. A published
// Snapshot is never modified; the Store swaps in a new one instead.
type Snapshot struct {
	Tables
	LastUpdated time.Time `json:"last_updated"`
	Digest      string    `json:"digest"`
}

// FeaturedFirst returns projects with featured ones first, each group in table order.
func (s *Snapshot) FeaturedFirst() []Project {
	out := make([]Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		if p.Featured {
			out = append(out, p)
		}
	}
	for _, p := range s.Projects {
		if !p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// ProjectTerms collects the match terms of every project.
func (s *Snapshot) ProjectTerms() []string {
	var terms []string
	for _, p := range s.Projects {
		terms = append(terms, p.MatchTerms()...)
	}
	return terms
}

// Validate checks that the tables are well-formed.
func (t *Tables) Validate() error {
	if t.Personal.Name == "" {
		return errors.New("personal name is required")
	}

	for i, p := range t.Projects {
		if p.ID == "" {
			return errors.Errorf("project at index %d missing id", i)
		}
		if p.Title == "" {
			return errors.Errorf("project %s missing title", p.ID)
		}
	}

	for _, cat := range t.Skills {
		for _, sk := range cat.Skills {
			if sk.Level < 1 || sk.Level > 5 {
				return errors.Errorf("skill %s in %s has level %d outside 1..5", sk.Name, cat.Category, sk.Level)
			}
		}
	}

	for _, c := range t.Certificates {
		if c.Category != CertificateTechnical && c.Category != CertificateParticipation {
			return errors.Errorf("certificate %q has unknown category %q", c.Title, c.Category)
		}
	}

	return nil
}
