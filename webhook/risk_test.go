package webhook

import (
	"fmt"
	"reflect"
	"testing"

	"sechooks/internal"
)

// TestAnalyzeCleanEvent tests that a harmless push off the protected branches
// yields no findings and stays at info.
func TestAnalyzeCleanEvent(t *testing.T) {
	ev := internal.CanonicalEvent{
		Provider:  internal.ProviderGitHub,
		EventKind: "push",
		Ref:       "refs/heads/feature/widgets",
		Actor:     "alice",
		Commits: []internal.Commit{
			{Message: "improve widget rendering", Modified: []string{"pkg/widgets/render.go"}},
		},
	}

	findings, severity := Analyze(ev)
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %v", findings)
	}
	if severity != internal.SeverityInfo {
		t.Fatalf("severity = %s, want info", severity)
	}
}

// TestAnalyzeKeywordInMessage tests case-insensitive keyword matching in
// commit messages at medium severity.
func TestAnalyzeKeywordInMessage(t *testing.T) {
	ev := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/develop",
		Commits:   []internal.Commit{{Message: "rotate the API_KEY for staging"}},
	}

	findings, severity := Analyze(ev)
	if len(findings) == 0 {
		t.Fatal("expected a keyword finding")
	}
	if findings[0].Category != internal.CategoryKeyword {
		t.Fatalf("category = %s, want keyword", findings[0].Category)
	}
	if severity != internal.SeverityMedium {
		t.Fatalf("severity = %s, want medium", severity)
	}
}

// TestAnalyzeSensitiveFile tests that touching a sensitive path raises the
// severity to high, matching case-insensitively.
func TestAnalyzeSensitiveFile(t *testing.T) {
	ev := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/develop",
		Commits: []internal.Commit{
			{Message: "housekeeping", Added: []string{"deploy/ID_RSA.bak"}},
		},
	}

	findings, severity := Analyze(ev)
	if len(findings) != 1 || findings[0].Category != internal.CategorySensitiveFile {
		t.Fatalf("unexpected findings: %v", findings)
	}
	if severity != internal.SeverityHigh {
		t.Fatalf("severity = %s, want high", severity)
	}
}

// TestAnalyzeConfigChangeCaseSensitive tests that critical configuration
// matching is case-sensitive and only applies to modified files.
func TestAnalyzeConfigChangeCaseSensitive(t *testing.T) {
	modified := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/develop",
		Commits:   []internal.Commit{{Message: "tweak build", Modified: []string{"Dockerfile"}}},
	}
	findings, severity := Analyze(modified)
	if len(findings) != 1 || findings[0].Category != internal.CategoryConfigChange {
		t.Fatalf("unexpected findings: %v", findings)
	}
	if severity != internal.SeverityHigh {
		t.Fatalf("severity = %s, want high", severity)
	}

	lowercase := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/develop",
		Commits:   []internal.Commit{{Message: "tweak build", Modified: []string{"dockerfile"}}},
	}
	if findings, _ := Analyze(lowercase); len(findings) != 0 {
		t.Fatalf("lowercase dockerfile should not match, got %v", findings)
	}

	added := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/develop",
		Commits:   []internal.Commit{{Message: "tweak build", Added: []string{"Dockerfile"}}},
	}
	if findings, _ := Analyze(added); len(findings) != 0 {
		t.Fatalf("added config files should not match the modified rule, got %v", findings)
	}
}

// TestAnalyzeLargeChangeset tests the threshold on the number of added files.
func TestAnalyzeLargeChangeset(t *testing.T) {
	atThreshold := make([]string, 100)
	overThreshold := make([]string, 101)
	for i := range overThreshold {
		name := fmt.Sprintf("pkg/gen/file_%03d.go", i)
		if i < len(atThreshold) {
			atThreshold[i] = name
		}
		overThreshold[i] = name
	}

	ev := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/develop",
		Commits:   []internal.Commit{{Message: "generate bindings", Added: atThreshold}},
	}
	if findings, _ := Analyze(ev); len(findings) != 0 {
		t.Fatalf("exactly 100 added files should not trigger, got %v", findings)
	}

	ev.Commits[0].Added = overThreshold
	findings, severity := Analyze(ev)
	if len(findings) != 1 || findings[0].Category != internal.CategoryLargeChangeset {
		t.Fatalf("unexpected findings: %v", findings)
	}
	if severity != internal.SeverityMedium {
		t.Fatalf("severity = %s, want medium", severity)
	}
}

// TestAnalyzeBranchProtection tests that direct pushes to main or master are
// flagged at high severity, with the GitLab push kind included.
func TestAnalyzeBranchProtection(t *testing.T) {
	for _, tc := range []struct {
		kind string
		ref  string
	}{
		{"push", "refs/heads/main"},
		{"push", "refs/heads/master"},
		{"Push Hook", "refs/heads/main"},
	} {
		ev := internal.CanonicalEvent{EventKind: tc.kind, Ref: tc.ref, Actor: "alice"}
		findings, severity := Analyze(ev)
		if len(findings) != 1 || findings[0].Category != internal.CategoryBranchProtection {
			t.Fatalf("%s %s: unexpected findings %v", tc.kind, tc.ref, findings)
		}
		if severity != internal.SeverityHigh {
			t.Fatalf("%s %s: severity = %s, want high", tc.kind, tc.ref, severity)
		}
	}

	notPush := internal.CanonicalEvent{EventKind: "pull_request", Ref: "refs/heads/main"}
	if findings, _ := Analyze(notPush); len(findings) != 0 {
		t.Fatalf("non-push events should not trip branch protection, got %v", findings)
	}
}

// TestAnalyzeBranchProtectionUnknownActor tests the pusher fallback when the
// payload carried no actor.
func TestAnalyzeBranchProtectionUnknownActor(t *testing.T) {
	ev := internal.CanonicalEvent{EventKind: "push", Ref: "refs/heads/main"}
	findings, _ := Analyze(ev)
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %v", findings)
	}
	if findings[0].Description != "Direct push to main branch by unknown" {
		t.Fatalf("unexpected description: %s", findings[0].Description)
	}
}

// TestAnalyzeAccumulatesAndKeepsMax tests that all matching rules report and
// the severity is the maximum demanded by any of them.
func TestAnalyzeAccumulatesAndKeepsMax(t *testing.T) {
	ev := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/main",
		Actor:     "mallory",
		Commits: []internal.Commit{
			{
				Message:  "add password to config",
				Added:    []string{".env.production"},
				Modified: []string{"Dockerfile"},
			},
		},
	}

	findings, severity := Analyze(ev)

	got := map[internal.Category]int{}
	for _, finding := range findings {
		got[finding.Category]++
	}
	want := map[internal.Category]int{
		internal.CategoryKeyword:          1,
		internal.CategorySensitiveFile:    1,
		internal.CategoryConfigChange:     1,
		internal.CategoryBranchProtection: 1,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("finding categories = %v, want %v", got, want)
	}
	if severity != internal.SeverityHigh {
		t.Fatalf("severity = %s, want high", severity)
	}
}

// TestAnalyzeDeterministic tests that repeated analysis of the same event
// gives identical results.
func TestAnalyzeDeterministic(t *testing.T) {
	ev := internal.CanonicalEvent{
		EventKind: "push",
		Ref:       "refs/heads/main",
		Commits:   []internal.Commit{{Message: "fix security issue", Added: []string{".env"}}},
	}

	first, firstSeverity := Analyze(ev)
	second, secondSeverity := Analyze(ev)
	if !reflect.DeepEqual(first, second) || firstSeverity != secondSeverity {
		t.Fatalf("analysis not deterministic: %v/%s vs %v/%s", first, firstSeverity, second, secondSeverity)
	}
}
