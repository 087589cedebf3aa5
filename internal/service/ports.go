package service

import (
	"context"
	"errors"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
)

// VectorIndex is the slice of the vector store the orchestrators need.
type VectorIndex interface {
	// GetStory returns one story, or port.ErrStoryNotFound.
	GetStory(ctx context.Context, storyID string) (*domain.Story, error)

	// GetStoryInProject returns one story scoped to a project, or port.ErrStoryNotFound.
	GetStoryInProject(ctx context.Context, storyID, projectID string) (*domain.Story, error)

	// SearchSimilar returns up to limit stories ranked by ascending cosine
	// distance. An empty projectID searches all projects.
	SearchSimilar(ctx context.Context, queryVector []float32, limit int, projectID string) ([]domain.StoryHit, error)

	// ListStories scans all stories.
	ListStories(ctx context.Context) ([]domain.Story, error)
}

// RunStore is the slice of the relational store the orchestrators need.
type RunStore interface {
	// UpsertRun inserts or replaces the authoritative run for a story and
	// returns the run id.
	UpsertRun(ctx context.Context, run *domain.TestCaseRun) (string, error)

	// GetRunByStoryID returns the run for a story, or port.ErrTestCasesNotFound.
	GetRunByStoryID(ctx context.Context, storyID string) (*domain.TestCaseRun, error)

	// ListGeneratedStoryIDs returns the story ids that already have a run.
	ListGeneratedStoryIDs(ctx context.Context) (map[string]struct{}, error)

	// StoreImpacts persists one candidate's impacts transactionally and
	// returns how many were stored.
	StoreImpacts(ctx context.Context, projectID, newStoryID, originalStoryID string,
		similarityScore float64, analysis *domain.ImpactAnalysis) (int, error)
}

// retryableModelErr classifies failures worth another attempt: transport/API
// errors and validation failures alike re-consume the attempt budget, the
// same policy on both the generation and impact paths.
func retryableModelErr(err error) bool {
	return errors.Is(err, port.ErrModel) ||
		errors.Is(err, port.ErrMalformedOutput) ||
		errors.Is(err, port.ErrInvalidShape)
}
