// Package llmjson parses and validates raw model output against the two
// response contracts: generated test cases and impact analysis. It is pure:
// no I/O, no clock, only string in, typed result or typed failure out.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
)

const diagnosticLimit = 1000

// GenerationResult is the validated payload of a test-case generation call.
// Suite always carries a test_cases key; Count is the number of entries when
// test_cases is an array, zero otherwise.
type GenerationResult struct {
	Suite json.RawMessage
	Count int
}

// Extract strips code fences and any prose around the outermost JSON object,
// returning the candidate object text. Fails with ErrMalformedOutput when no
// object can be located.
func Extract(raw string) (string, error) {
	content := strings.ReplaceAll(raw, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "{") {
		start := strings.Index(content, "{")
		if start == -1 {
			return "", fmt.Errorf("%w: no JSON object in response: %s", port.ErrMalformedOutput, snippet(raw))
		}
		content = content[start:]
	}
	if !strings.HasSuffix(content, "}") {
		end := strings.LastIndex(content, "}")
		if end == -1 {
			return "", fmt.Errorf("%w: unterminated JSON object in response: %s", port.ErrMalformedOutput, snippet(raw))
		}
		content = content[:end+1]
	}
	return content, nil
}

// ParseGeneration validates a generation response. Models that return a bare
// object without the test_cases key are recovered by wrapping the whole
// object as {"test_cases": <parsed>}.
func ParseGeneration(raw string) (*GenerationResult, error) {
	content, err := Extract(raw)
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", port.ErrMalformedOutput, err, snippet(raw))
	}

	suite := json.RawMessage(content)
	cases, ok := obj["test_cases"]
	if !ok {
		wrapped, err := json.Marshal(map[string]json.RawMessage{"test_cases": json.RawMessage(content)})
		if err != nil {
			return nil, fmt.Errorf("%w: wrap test_cases: %v", port.ErrMalformedOutput, err)
		}
		suite = wrapped
		cases = json.RawMessage(content)
	}

	return &GenerationResult{Suite: suite, Count: countEntries(cases)}, nil
}

// ParseImpact validates an impact analysis response against the strict
// contract: boolean has_impact, impact_type in {MODIFY, NO_IMPACT}, and a
// fully-shaped impacted_test_cases list whenever an impact is reported.
func ParseImpact(raw string) (*domain.ImpactAnalysis, error) {
	content, err := Extract(raw)
	if err != nil {
		return nil, err
	}

	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("%w: invalid JSON: %s", port.ErrMalformedOutput, snippet(raw))
	}

	var payload struct {
		HasImpact         *bool              `json:"has_impact"`
		ImpactType        *string            `json:"impact_type"`
		ImpactedTestCases []impactedTestCase `json:"impacted_test_cases"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
			return nil, fmt.Errorf("%w: field %q: expected %s", port.ErrInvalidShape, typeErr.Field, typeErr.Type)
		}
		return nil, fmt.Errorf("%w: %v: %s", port.ErrMalformedOutput, err, snippet(raw))
	}

	if payload.HasImpact == nil {
		return nil, fmt.Errorf("%w: has_impact must be a boolean", port.ErrInvalidShape)
	}
	if payload.ImpactType == nil || !domain.ImpactType(*payload.ImpactType).Valid() {
		return nil, fmt.Errorf("%w: impact_type must be either %q or %q",
			port.ErrInvalidShape, domain.ImpactTypeModify, domain.ImpactTypeNoImpact)
	}

	result := &domain.ImpactAnalysis{
		HasImpact:  *payload.HasImpact,
		ImpactType: domain.ImpactType(*payload.ImpactType),
	}

	// Entries are only held to the full contract when an impact is reported.
	if result.HasImpact && result.ImpactType == domain.ImpactTypeModify {
		for i, tc := range payload.ImpactedTestCases {
			validated, err := tc.validate(i)
			if err != nil {
				return nil, err
			}
			result.ImpactedTestCases = append(result.ImpactedTestCases, *validated)
		}
	}

	return result, nil
}

type impactedTestCase struct {
	OriginalTestCaseID *string           `json:"original_test_case_id"`
	ModificationReason *string           `json:"modification_reason"`
	ModifiedTestCase   *modifiedTestCase `json:"modified_test_case"`
}

type modifiedTestCase struct {
	ID             *string   `json:"id"`
	Title          *string   `json:"title"`
	Steps          *[]string `json:"steps"`
	ExpectedResult *string   `json:"expected_result"`
	Priority       *string   `json:"priority"`
}

func (tc impactedTestCase) validate(i int) (*domain.ImpactedTestCase, error) {
	if tc.OriginalTestCaseID == nil {
		return nil, shapeErr(i, "original_test_case_id must be a string")
	}
	if tc.ModificationReason == nil {
		return nil, shapeErr(i, "modification_reason must be a string")
	}
	if tc.ModifiedTestCase == nil {
		return nil, shapeErr(i, "modified_test_case must be an object")
	}

	m := tc.ModifiedTestCase
	if m.ID == nil || m.Title == nil || m.ExpectedResult == nil {
		return nil, shapeErr(i, "modified_test_case id, title and expected_result must be strings")
	}
	if m.Steps == nil {
		return nil, shapeErr(i, "modified_test_case steps must be a list")
	}
	if m.Priority == nil || !domain.Priority(*m.Priority).Valid() {
		return nil, shapeErr(i, "modified_test_case priority must be High, Medium, or Low")
	}

	return &domain.ImpactedTestCase{
		OriginalTestCaseID: *tc.OriginalTestCaseID,
		ModificationReason: *tc.ModificationReason,
		ModifiedTestCase: domain.ModifiedTestCase{
			ID:             *m.ID,
			Title:          *m.Title,
			Steps:          *m.Steps,
			ExpectedResult: *m.ExpectedResult,
			Priority:       domain.Priority(*m.Priority),
		},
	}, nil
}

func shapeErr(i int, msg string) error {
	return fmt.Errorf("%w: impacted_test_cases[%d]: %s", port.ErrInvalidShape, i, msg)
}

// countEntries returns the length of a JSON array, or zero for anything else.
func countEntries(raw json.RawMessage) int {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return 0
	}
	return len(arr)
}

// snippet truncates raw content for diagnostics.
func snippet(raw string) string {
	if len(raw) > diagnosticLimit {
		return raw[:diagnosticLimit]
	}
	return raw
}
