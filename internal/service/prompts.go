package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/ratelimit"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/retry"
)

const generationInstructions = `You are a senior QA engineer. Read the user story document below and write
thorough functional test cases for it. Cover the happy path, validation and
error handling, and relevant edge cases. Reuse the conventions visible in the
context test cases when they apply.

Your response MUST be a valid JSON object with this exact structure:
{
    "test_cases": [
        {
            "id": "string",
            "title": "string",
            "steps": ["string"],
            "expected_result": "string",
            "priority": "High" | "Medium" | "Low"
        }
    ]
}`

const impactInstructions = `You are a senior QA engineer performing change impact analysis. A new user
story has been added to the project. Decide whether its behavior changes the
expectations of the existing story's test cases below. Report an impact only
when a concrete test case must be modified to stay correct; otherwise report
no impact.

CRITICAL: Your response MUST be a valid JSON object with this exact structure:
{
    "has_impact": boolean,
    "impact_type": "MODIFY" | "NO_IMPACT",
    "impacted_test_cases": [
        {
            "original_test_case_id": "string",
            "modification_reason": "string",
            "modified_test_case": {
                "id": "string",
                "title": "string",
                "steps": ["string"],
                "expected_result": "string",
                "priority": "High" | "Medium" | "Low"
            }
        }
    ]
}

Do not include any explanatory text before or after the JSON.
Do not use markdown code blocks.
Just return the raw JSON object.`

// buildGenerationPrompt assembles the full generation prompt: instructions,
// JSON-only directive, the story document, and retrieved context (or an
// explicit no-context marker).
func buildGenerationPrompt(storyID, docText string, contextParts []string) string {
	contextText := "[No similar context found]"
	if len(contextParts) > 0 {
		contextText = strings.Join(contextParts, "\n\n")
	}

	var b strings.Builder
	b.WriteString(generationInstructions)
	b.WriteString("\n\nIMPORTANT: You must respond with a valid JSON object containing test cases. Do not include any other text or formatting.\n\n")
	b.WriteString("=======================\n")
	fmt.Fprintf(&b, "USER STORY DOCUMENT (%s):\n%s\n\n", storyID, docText)
	b.WriteString("=======================\n")
	fmt.Fprintf(&b, "RELEVANT CONTEXT TEST CASES:\n%s\n\n", contextText)
	b.WriteString("Remember to respond with ONLY a JSON object containing the test cases.")
	return b.String()
}

// buildImpactPrompt assembles the focused prompt for one candidate story:
// both stories' descriptions and full generated test-case payloads.
func buildImpactPrompt(projectID string, newStory *domain.Story, newRun *domain.TestCaseRun, existing *domain.Story, existingRun *domain.TestCaseRun) string {
	var b strings.Builder
	b.WriteString(impactInstructions)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Project ID: %s\n\n", projectID)
	fmt.Fprintf(&b, "New Story (ID: %s):\n", newStory.StoryID)
	fmt.Fprintf(&b, "Description: %s\n", newStory.Description)
	fmt.Fprintf(&b, "Test Cases: %s\n\n", newRun.Suite)
	fmt.Fprintf(&b, "Existing Story to Analyze (ID: %s):\n", existing.StoryID)
	fmt.Fprintf(&b, "Description: %s\n", existing.Description)
	fmt.Fprintf(&b, "Test Cases: %s\n", existingRun.Suite)
	return b.String()
}

// callModel runs one rate-limited, retried, validated model invocation.
// The rate-limiter wait and the validation both sit inside the retried
// operation, so every attempt is admitted and a malformed response consumes
// an attempt.
func callModel[T any](ctx context.Context, ai port.AIProvider, limiter *ratelimit.Limiter, policy retry.Policy, prompt string, parse func(string) (T, error)) (T, error) {
	return retry.Do(ctx, policy, func(ctx context.Context) (T, error) {
		var zero T
		if err := limiter.Wait(ctx); err != nil {
			return zero, err
		}
		raw, err := ai.Generate(ctx, prompt)
		if err != nil {
			return zero, err
		}
		return parse(raw)
	})
}
