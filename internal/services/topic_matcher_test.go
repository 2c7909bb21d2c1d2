package services

import (
	"testing"

	"github.com/examwell/examwell-backend/internal/analysis"
	"github.com/examwell/examwell-backend/internal/logger"
	"github.com/examwell/examwell-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestTopicMatcherExactTitleWins(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Binary Search Trees", Code: "CS-201"},
	}
	doc := []analysis.Topic{
		{Title: "Trees and Graphs", Code: "cs201"},
		{Title: "binary search trees"},
	}

	got := m.Match(platform, doc)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Rule != "exact_title" {
		t.Fatalf("expected exact_title rule, got %q", got[0].Rule)
	}
	if got[0].Analysis.Title != "binary search trees" {
		t.Fatalf("matched wrong doc topic: %#v", got[0].Analysis)
	}
	if got[0].Score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", got[0].Score)
	}
}

func TestTopicMatcherNormalizedCode(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Sorting", Code: "CS-101"},
	}
	doc := []analysis.Topic{
		{Title: "Ordering algorithms", Code: "cs 101"},
	}

	got := m.Match(platform, doc)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Rule != "code" {
		t.Fatalf("expected code rule, got %q", got[0].Rule)
	}
}

func TestTopicMatcherSubstring(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Recursion"},
	}
	doc := []analysis.Topic{
		{Title: "Recursion and Backtracking"},
	}

	got := m.Match(platform, doc)
	if len(got) != 1 || got[0].Rule != "substring" {
		t.Fatalf("expected substring match, got %#v", got)
	}
}

func TestTopicMatcherKeywordFloor(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Graph Traversal Algorithms"},
		{Title: "Quantum Entanglement"},
	}
	doc := []analysis.Topic{
		{Title: "Traversal of Graphs"},
		{Title: "Linear Regression"},
	}

	got := m.Match(platform, doc)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 match, got %d: %#v", len(got), got)
	}
	if got[0].Rule != "keywords" {
		t.Fatalf("expected keywords rule, got %q", got[0].Rule)
	}
	if got[0].Topic.Title != "Graph Traversal Algorithms" {
		t.Fatalf("matched wrong platform topic: %#v", got[0].Topic)
	}
	if got[0].Score < 0.3 {
		t.Fatalf("keyword score below floor: %v", got[0].Score)
	}
}

func TestTopicMatcherDocTopicServesMultiplePlatformTopics(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Limits Introduction"},
		{Title: "Limits"},
	}
	doc := []analysis.Topic{
		{Title: "limits"},
	}

	got := m.Match(platform, doc)
	if len(got) != 2 {
		t.Fatalf("expected both platform topics matched, got %#v", got)
	}
	if got[0].Rule != "substring" {
		t.Fatalf("expected substring for broader title, got %q", got[0].Rule)
	}
	if got[1].Rule != "exact_title" {
		t.Fatalf("an earlier match must not shadow an exact title match, got %q", got[1].Rule)
	}
}

func TestTopicMatcherKeyTermsDoNotDiluteTitleScore(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Dynamics Rigid Body"},
	}
	doc := []analysis.Topic{
		{
			Title: "Rigid Body Dynamics Overview Lecture Notes",
			KeyTerms: []string{
				"torque", "angular momentum", "moment of inertia", "precession",
				"center of mass", "euler equations", "gyroscope", "rotation matrix",
			},
		},
	}

	got := m.Match(platform, doc)
	if len(got) != 1 || got[0].Rule != "keywords" {
		t.Fatalf("expected keyword match on titles alone, got %#v", got)
	}
	// {dynamics, rigid, body} vs {rigid, body, dynamics, overview, lecture,
	// notes}: 3 of 6, regardless of how many key terms the topic carries.
	if got[0].Score != 0.5 {
		t.Fatalf("expected title-only score 0.5, got %v", got[0].Score)
	}
}

func TestTopicMatcherFloorIsStrict(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "gamma beta alpha"},
	}
	doc := []analysis.Topic{
		{Title: "alpha beta gamma delta epsilon zeta eta theta iota kappa"},
	}

	// 3 shared tokens over max(3, 10) is exactly 0.3, which must not match.
	got := m.Match(platform, doc)
	if len(got) != 0 {
		t.Fatalf("score of exactly 0.3 must be rejected, got %#v", got)
	}
}

func TestTopicMatcherKeywordSurvivesWordOrder(t *testing.T) {
	m := NewTopicMatcherService(testLogger(t))

	platform := []*types.Topic{
		{Title: "Rigid Body Dynamics"},
	}
	doc := []analysis.Topic{
		{Title: "Dynamics of Rigid Bodies"},
	}

	got := m.Match(platform, doc)
	if len(got) != 1 || got[0].Rule != "keywords" {
		t.Fatalf("expected keyword match, got %#v", got)
	}
	// {rigid, body, dynamics} vs {dynamics, rigid, bodies}: 2 of 3 overlap.
	if got[0].Score < 0.6 || got[0].Score > 0.7 {
		t.Fatalf("expected score near 2/3, got %v", got[0].Score)
	}
}

func TestOverlapSymmetric(t *testing.T) {
	a := tokenSet("graph traversal algorithms")
	b := tokenSet("traversal of weighted graphs")
	if overlap(a, b) != overlap(b, a) {
		t.Fatalf("overlap must be symmetric: %v vs %v", overlap(a, b), overlap(b, a))
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"CS-101":  "cs101",
		"cs 101":  "cs101",
		"  ":      "",
		"MATH_2a": "math2a",
	}
	for in, want := range cases {
		if got := normalizeCode(in); got != want {
			t.Fatalf("normalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}
