package composer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioChat/internal/intent"
	"PortfolioChat/internal/knowledge"
)

func bundledSnapshot(t *testing.T) *knowledge.Snapshot {
	t.Helper()
	tables, err := knowledge.BundledSource{}.Load(context.Background())
	require.NoError(t, err)
	return &knowledge.Snapshot{
		Tables:      tables,
		LastUpdated: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCompose_GreetingNamesPersonWithFourFollowUps(t *testing.T) {
	snap := bundledSnapshot(t)
	in := intent.Classify("Hi there")
	require.Equal(t, intent.Greeting, in)

	reply := Compose(in, snap, "Hi there")
	assert.Contains(t, reply.Text, snap.Personal.Name)
	assert.Contains(t, reply.Text, snap.Personal.Title)
	assert.Len(t, reply.SuggestedFollowUps, 4)
}

func TestCompose_SingleProjectDetail(t *testing.T) {
	snap := bundledSnapshot(t)
	msg := "Tell me about TORI"
	in := intent.NewClassifier(snap.ProjectTerms()...).Classify(msg)
	require.Equal(t, intent.Projects, in)

	reply := Compose(in, snap, msg)
	assert.True(t, strings.HasPrefix(reply.Text, "**TORI**"))
	for _, tech := range snap.Projects[0].Technologies {
		assert.Contains(t, reply.Text, tech)
	}
	assert.NotContains(t, reply.Text, "LedgerLite")
	assert.Equal(t, confidenceProject, reply.Confidence)
}

func TestCompose_CodeIntentWithProjectName(t *testing.T) {
	snap := bundledSnapshot(t)
	reply := Compose(intent.Code, snap, "where is the ledgerlite repo")
	assert.True(t, strings.HasPrefix(reply.Text, "**LedgerLite**"))
}

func TestCompose_ProjectSummaryListsAllFeaturedFirst(t *testing.T) {
	snap := bundledSnapshot(t)
	reply := Compose(intent.Projects, snap, "what have you built?")

	for _, p := range snap.Projects {
		assert.Contains(t, reply.Text, p.Title)
	}
	// TORI and LedgerLite are featured; PulseBoard is not.
	assert.Less(t, strings.Index(reply.Text, "LedgerLite"), strings.Index(reply.Text, "PulseBoard"))
	assert.Equal(t, confidenceCategory, reply.Confidence)
}

func TestCompose_CodeSummaryCoversAllProjects(t *testing.T) {
	snap := &knowledge.Snapshot{Tables: knowledge.Tables{
		Personal: knowledge.PersonalInfo{Name: "Sam", GitHub: "https://github.com/sam"},
		Projects: []knowledge.Project{
			{ID: "alpha", Title: "Alpha", Description: "First thing.", RepoURL: "https://x/a"},
			{ID: "bravo", Title: "Bravo", Description: "Second thing."},
		},
	}}

	reply := Compose(intent.Code, snap, "show me your code")
	assert.Equal(t, intent.Code, reply.Intent)
	assert.Contains(t, reply.Text, "**Alpha**: First thing.")
	assert.Contains(t, reply.Text, "**Bravo**: Second thing.")
	assert.Contains(t, reply.Text, "https://x/a")
	assert.Contains(t, reply.Text, "https://github.com/sam")

	bundled := bundledSnapshot(t)
	reply = Compose(intent.Code, bundled, "where is your source")
	for _, p := range bundled.Projects {
		assert.Contains(t, reply.Text, p.Title)
	}
	assert.Contains(t, reply.Text, "https://github.com/samcarter-dev/tori")
}

func TestCompose_Categories(t *testing.T) {
	snap := bundledSnapshot(t)

	tests := []struct {
		in       intent.Intent
		contains []string
	}{
		{intent.Skills, []string{"**Languages**", "TypeScript (expert)", "AWS Certified Cloud Practitioner"}},
		{intent.Contact, []string{snap.Personal.Email, snap.Personal.LinkedIn}},
		{intent.Experience, []string{"Brightpath Labs", "Northwind Analytics"}},
		{intent.Achievements, []string{"Technical certifications", "HackTX Finalist", "TORI: 1,200+"}},
		{intent.Education, []string{"University of Texas at Austin"}},
		{intent.General, []string{snap.Personal.Summary, "2025-03-01 12:00 UTC"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			reply := Compose(tt.in, snap, "")
			for _, c := range tt.contains {
				assert.Contains(t, reply.Text, c)
			}
			assert.GreaterOrEqual(t, len(reply.SuggestedFollowUps), 3)
			assert.LessOrEqual(t, len(reply.SuggestedFollowUps), 4)
		})
	}
}

func TestCompose_ExperienceInSnapshotOrder(t *testing.T) {
	snap := bundledSnapshot(t)
	reply := Compose(intent.Experience, snap, "")
	assert.Less(t, strings.Index(reply.Text, "Brightpath"), strings.Index(reply.Text, "Northwind"))
}

func TestCompose_NilSnapshotLoadingPlaceholder(t *testing.T) {
	for _, in := range []intent.Intent{intent.Projects, intent.Greeting, intent.General, intent.Code} {
		reply := Compose(in, nil, "Tell me about TORI")
		assert.Equal(t, LoadingText, reply.Text)
		assert.Equal(t, LoadingConfidence, reply.Confidence)
		assert.NotEmpty(t, reply.SuggestedFollowUps)
	}
}

func TestCompose_Idempotent(t *testing.T) {
	snap := bundledSnapshot(t)
	all := []intent.Intent{
		intent.Projects, intent.Skills, intent.Contact, intent.Experience, intent.Achievements,
		intent.Education, intent.Code, intent.Greeting, intent.General,
	}
	for _, in := range all {
		a := Compose(in, snap, "tell me about tori")
		b := Compose(in, snap, "tell me about tori")
		assert.Equal(t, a, b)
	}
}

func TestCompose_UnknownIntentFallsBackToGeneral(t *testing.T) {
	snap := bundledSnapshot(t)
	reply := Compose(intent.Intent("weather"), snap, "")
	assert.Equal(t, intent.General, reply.Intent)
	assert.Equal(t, confidenceGeneral, reply.Confidence)
}

func TestFollowUps_ReturnsCopy(t *testing.T) {
	f := FollowUps(intent.Greeting)
	f[0] = "mutated"
	assert.NotEqual(t, "mutated", FollowUps(intent.Greeting)[0])
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("tell me about tori", "tori"))
	assert.True(t, containsWord("tori?", "tori"))
	assert.False(t, containsWord("history of torino", "tori"))
	assert.False(t, containsWord("", "tori"))
	assert.True(t, containsWord("victoria and tori", "tori"))
}
