package domain

import (
	"encoding/json"
	"time"
)

// Priority is the closed severity enumeration for generated test cases.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid reports whether p is one of the allowed priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TestCase is a single generated test case within a run's payload.
type TestCase struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       Priority `json:"priority"`
}

// TestCaseRun is the authoritative generated output for one story.
// Exactly one row per story_id exists at any time; re-running generation
// replaces the payload through the unique constraint rather than adding rows.
type TestCaseRun struct {
	RunID            string          `json:"run_id"            db:"run_id"`
	ProjectID        string          `json:"project_id"        db:"project_id"`
	StoryID          string          `json:"story_id"          db:"story_id"`
	StoryDescription string          `json:"story_description" db:"story_description"`
	CreatedOn        time.Time       `json:"created_on"        db:"created_on"`
	Suite            json.RawMessage `json:"test_case_json"    db:"test_case_json"`
	TotalTestCases   int             `json:"total_test_cases"  db:"total_test_cases"`
	Generated        bool            `json:"test_case_generated" db:"test_case_generated"`
	HasImpacts       bool            `json:"has_impacts"       db:"has_impacts"`
	LatestImpactID   *string         `json:"latest_impact_id,omitempty" db:"latest_impact_id"`
	Source           string          `json:"source"            db:"source"`
}

// BatchReport aggregates a batch generation pass over all pending stories.
type BatchReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SimilarStory is one entry of a retrieval query result: a story ranked by
// cosine distance with its generated test cases attached when they exist.
type SimilarStory struct {
	StoryID         string          `json:"story_id"`
	SimilarityScore float64         `json:"similarity_score"`
	TestCases       json.RawMessage `json:"test_case_json,omitempty"`
	TestCasesFound  bool            `json:"test_cases_found"`
}
