package domain

import (
	"encoding/json"
	"time"
)

// ImpactType classifies the outcome of an impact analysis for one story pair.
type ImpactType string

const (
	ImpactTypeModify   ImpactType = "MODIFY"
	ImpactTypeNoImpact ImpactType = "NO_IMPACT"
)

// Valid reports whether t is one of the allowed impact types.
func (t ImpactType) Valid() bool {
	return t == ImpactTypeModify || t == ImpactTypeNoImpact
}

// ModifiedTestCase is the replacement test case proposed by the model.
type ModifiedTestCase struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       Priority `json:"priority"`
}

// ImpactedTestCase pairs an existing test case with its proposed modification.
type ImpactedTestCase struct {
	OriginalTestCaseID string           `json:"original_test_case_id"`
	ModificationReason string           `json:"modification_reason"`
	ModifiedTestCase   ModifiedTestCase `json:"modified_test_case"`
}

// ImpactAnalysis is the validated model response for one candidate story.
type ImpactAnalysis struct {
	HasImpact         bool               `json:"has_impact"`
	ImpactType        ImpactType         `json:"impact_type"`
	ImpactedTestCases []ImpactedTestCase `json:"impacted_test_cases"`
}

// ImpactRecord is one persisted impact finding. Records are never mutated;
// a newer finding for the same test case chains to the previous one through
// PreviousImpactID and an incremented Version.
type ImpactRecord struct {
	ImpactID           string          `json:"impact_id"             db:"impact_id"`
	ProjectID          string          `json:"project_id"            db:"project_id"`
	NewStoryID         string          `json:"new_story_id"          db:"new_story_id"`
	OriginalStoryID    string          `json:"original_story_id"     db:"original_story_id"`
	OriginalTestCaseID string          `json:"original_test_case_id" db:"original_test_case_id"`
	ModifiedTestCaseID string          `json:"modified_test_case_id" db:"modified_test_case_id"`
	OriginalRunID      string          `json:"original_run_id"       db:"original_run_id"`
	CreatedOn          time.Time       `json:"impact_created_on"     db:"impact_created_on"`
	Source             string          `json:"source"                db:"source"`
	SimilarityScore    float64         `json:"similarity_score"      db:"similarity_score"`
	Analysis           json.RawMessage `json:"impact_analysis_json"  db:"impact_analysis_json"`
	PreviousImpactID   *string         `json:"previous_impact_id,omitempty" db:"previous_impact_id"`
	Version            int             `json:"impact_version"        db:"impact_version"`
}

// ImpactOutcome is the structured result of a full impact analysis run.
// The HTTP layer always receives one of these, never an unhandled error.
type ImpactOutcome struct {
	Status          string `json:"status"` // success, error
	TotalImpacts    int    `json:"total_impacts"`
	StoriesAnalyzed int    `json:"stories_analyzed"`
	Timestamp       string `json:"timestamp"`
	Error           string `json:"error,omitempty"`
	ErrorType       string `json:"error_type,omitempty"`
}

// SuccessOutcome builds a success result with the current timestamp.
func SuccessOutcome(totalImpacts, storiesAnalyzed int) *ImpactOutcome {
	return &ImpactOutcome{
		Status:          "success",
		TotalImpacts:    totalImpacts,
		StoriesAnalyzed: storiesAnalyzed,
		Timestamp:       time.Now().Format(time.RFC3339),
	}
}

// ErrorOutcome builds an error result carrying a stable error type discriminant.
func ErrorOutcome(errType, message string) *ImpactOutcome {
	return &ImpactOutcome{
		Status:    "error",
		Error:     message,
		ErrorType: errType,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
