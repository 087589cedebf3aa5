package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/ratelimit"
)

const modifyImpact = `{
	"has_impact": true,
	"impact_type": "MODIFY",
	"impacted_test_cases": [
		{
			"original_test_case_id": "TC-1",
			"modification_reason": "The new story changes the login redirect target",
			"modified_test_case": {
				"id": "TC-1-v2",
				"title": "Login with valid credentials",
				"steps": ["Open login page", "Submit valid credentials"],
				"expected_result": "User is redirected to the new home screen",
				"priority": "High"
			}
		}
	]
}`

const noImpact = `{"has_impact": false, "impact_type": "NO_IMPACT", "impacted_test_cases": []}`

func newImpactService(ai *fakeAI, index *fakeIndex, runs *fakeRuns) *ImpactService {
	return NewImpactService(ai, index, runs, ratelimit.New(1000), testPolicy())
}

func impactFixture() (*fakeIndex, *fakeRuns) {
	existing := story("US-101", "proj-1")
	incoming := story("US-102", "proj-1")

	index := &fakeIndex{
		stories: map[string]*domain.Story{"US-101": existing, "US-102": incoming},
		hits:    []domain.StoryHit{hit(incoming, 0), hit(existing, 0.12)},
	}
	runs := newFakeRuns()
	runs.runs["US-101"] = &domain.TestCaseRun{
		RunID:   "run-101",
		StoryID: "US-101",
		Suite:   []byte(`{"test_cases": [{"id": "TC-1", "title": "Login with valid credentials"}]}`),
	}
	runs.runs["US-102"] = &domain.TestCaseRun{
		RunID:   "run-102",
		StoryID: "US-102",
		Suite:   []byte(`{"test_cases": [{"id": "TC-10", "title": "Login lands on the home screen"}]}`),
	}
	return index, runs
}

func TestAnalyzeImpact_EndToEnd(t *testing.T) {
	index, runs := impactFixture()
	ai := &fakeAI{genFn: func(string) (string, error) { return modifyImpact, nil }}

	outcome := newImpactService(ai, index, runs).AnalyzeImpact(context.Background(), "US-102", "proj-1")

	if outcome.Status != "success" {
		t.Fatalf("status = %q (%s), want success", outcome.Status, outcome.Error)
	}
	if outcome.TotalImpacts != 1 {
		t.Errorf("TotalImpacts = %d, want 1", outcome.TotalImpacts)
	}
	if outcome.StoriesAnalyzed != 2 {
		t.Errorf("StoriesAnalyzed = %d, want 2", outcome.StoriesAnalyzed)
	}

	// The new story itself is in the candidate list but is never analyzed.
	if ai.callCount() != 1 {
		t.Errorf("model calls = %d, want 1", ai.callCount())
	}

	if len(runs.impacts) != 1 {
		t.Fatalf("stored impact calls = %d, want 1", len(runs.impacts))
	}
	got := runs.impacts[0]
	if got.NewStoryID != "US-102" || got.OriginalStoryID != "US-101" || got.ProjectID != "proj-1" {
		t.Errorf("stored impact = %+v, want US-102 impacting US-101 in proj-1", got)
	}
	if got.SimilarityScore != 0.12 {
		t.Errorf("SimilarityScore = %v, want 0.12", got.SimilarityScore)
	}
	if got.Analysis.ImpactedTestCases[0].OriginalTestCaseID != "TC-1" {
		t.Errorf("OriginalTestCaseID = %q, want TC-1", got.Analysis.ImpactedTestCases[0].OriginalTestCaseID)
	}
}

func TestAnalyzeImpact_MissingProjectID(t *testing.T) {
	index, runs := impactFixture()
	ai := &fakeAI{}

	outcome := newImpactService(ai, index, runs).AnalyzeImpact(context.Background(), "US-102", "")

	if outcome.Status != "error" {
		t.Fatalf("status = %q, want error", outcome.Status)
	}
	if outcome.ErrorType != "ConfigurationError" {
		t.Errorf("ErrorType = %q, want ConfigurationError", outcome.ErrorType)
	}
	if ai.callCount() != 0 {
		t.Errorf("model calls = %d, want 0", ai.callCount())
	}
}

func TestAnalyzeImpact_NewStoryWithoutRun(t *testing.T) {
	index, runs := impactFixture()
	delete(runs.runs, "US-102")

	outcome := newImpactService(&fakeAI{}, index, runs).AnalyzeImpact(context.Background(), "US-102", "proj-1")

	if outcome.Status != "error" || outcome.ErrorType != "TestCasesNotFoundError" {
		t.Fatalf("outcome = (%q, %q), want (error, TestCasesNotFoundError)", outcome.Status, outcome.ErrorType)
	}
}

func TestAnalyzeImpact_StoryNotFoundInProject(t *testing.T) {
	index, runs := impactFixture()
	index.stories["US-102"].ProjectID = "proj-2"

	outcome := newImpactService(&fakeAI{}, index, runs).AnalyzeImpact(context.Background(), "US-102", "proj-1")

	if outcome.Status != "error" || outcome.ErrorType != "StoryNotFoundError" {
		t.Fatalf("outcome = (%q, %q), want (error, StoryNotFoundError)", outcome.Status, outcome.ErrorType)
	}
}

func TestAnalyzeImpact_NoImpactPersistsNothing(t *testing.T) {
	index, runs := impactFixture()
	ai := &fakeAI{genFn: func(string) (string, error) { return noImpact, nil }}

	outcome := newImpactService(ai, index, runs).AnalyzeImpact(context.Background(), "US-102", "proj-1")

	if outcome.Status != "success" {
		t.Fatalf("status = %q (%s), want success", outcome.Status, outcome.Error)
	}
	if outcome.TotalImpacts != 0 {
		t.Errorf("TotalImpacts = %d, want 0", outcome.TotalImpacts)
	}
	if len(runs.impacts) != 0 {
		t.Errorf("stored impact calls = %d, want 0", len(runs.impacts))
	}
}

func TestAnalyzeImpact_MalformedCandidateIsContained(t *testing.T) {
	index, runs := impactFixture()

	// A second healthy candidate alongside one whose analysis never parses.
	broken := story("US-103", "proj-1")
	index.stories["US-103"] = broken
	index.hits = append(index.hits, hit(broken, 0.3))
	runs.runs["US-103"] = &domain.TestCaseRun{
		RunID:   "run-103",
		StoryID: "US-103",
		Suite:   []byte(`{"test_cases": [{"id": "TC-20"}]}`),
	}

	ai := &fakeAI{genFn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Existing Story to Analyze (ID: US-103)") {
			return "I could not produce JSON for this one, sorry.", nil
		}
		return modifyImpact, nil
	}}

	outcome := newImpactService(ai, index, runs).AnalyzeImpact(context.Background(), "US-102", "proj-1")

	if outcome.Status != "success" {
		t.Fatalf("status = %q (%s), want success", outcome.Status, outcome.Error)
	}
	if outcome.TotalImpacts != 1 {
		t.Errorf("TotalImpacts = %d, want 1", outcome.TotalImpacts)
	}
	if outcome.StoriesAnalyzed != 3 {
		t.Errorf("StoriesAnalyzed = %d, want 3", outcome.StoriesAnalyzed)
	}
	if len(runs.impacts) != 1 || runs.impacts[0].OriginalStoryID != "US-101" {
		t.Errorf("stored impacts = %+v, want exactly one for US-101", runs.impacts)
	}
}

func TestAnalyzeImpact_CandidateWithoutRunIsSkipped(t *testing.T) {
	index, runs := impactFixture()
	pending := story("US-104", "proj-1")
	index.stories["US-104"] = pending
	index.hits = append(index.hits, hit(pending, 0.4))

	ai := &fakeAI{genFn: func(string) (string, error) { return noImpact, nil }}

	outcome := newImpactService(ai, index, runs).AnalyzeImpact(context.Background(), "US-102", "proj-1")

	if outcome.Status != "success" {
		t.Fatalf("status = %q (%s), want success", outcome.Status, outcome.Error)
	}
	// Only US-101 reaches the model: the new story and the run-less
	// candidate are both skipped.
	if ai.callCount() != 1 {
		t.Errorf("model calls = %d, want 1", ai.callCount())
	}
}

func TestAnalyzeImpact_BoundsConcurrency(t *testing.T) {
	incoming := story("US-100", "proj-1")
	index := &fakeIndex{
		stories: map[string]*domain.Story{"US-100": incoming},
		hits:    []domain.StoryHit{},
	}
	runs := newFakeRuns()
	runs.runs["US-100"] = &domain.TestCaseRun{RunID: "run-100", StoryID: "US-100", Suite: []byte(`{"test_cases": []}`)}

	for _, id := range []string{"US-1", "US-2", "US-3", "US-4", "US-5"} {
		s := story(id, "proj-1")
		index.stories[id] = s
		index.hits = append(index.hits, hit(s, 0.1))
		runs.runs[id] = &domain.TestCaseRun{RunID: "run-" + id, StoryID: id, Suite: []byte(`{"test_cases": []}`)}
	}

	ai := &fakeAI{
		genDelay: 20 * time.Millisecond,
		genFn:    func(string) (string, error) { return noImpact, nil },
	}

	outcome := newImpactService(ai, index, runs).AnalyzeImpact(context.Background(), "US-100", "proj-1")

	if outcome.Status != "success" {
		t.Fatalf("status = %q (%s), want success", outcome.Status, outcome.Error)
	}
	if ai.callCount() != 5 {
		t.Errorf("model calls = %d, want 5", ai.callCount())
	}
	if ai.maxActive > DefaultConcurrentAnalyses {
		t.Errorf("max concurrent model calls = %d, want at most %d", ai.maxActive, DefaultConcurrentAnalyses)
	}
}
