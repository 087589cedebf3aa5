package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/llmjson"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/ratelimit"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/retry"
)

const (
	// DefaultTopK is how many context test-case suites a generation prompt carries.
	DefaultTopK = 3

	// overFetch compensates for the self-match and for neighbors without a
	// generated run, which are filtered out after the search.
	overFetch = 5

	runSource = "backend"
)

// GenerationService orchestrates retrieval-augmented test-case generation:
// retrieve similar stories, assemble a prompt with their generated suites as
// context, invoke the model, validate, and persist the run.
type GenerationService struct {
	ai      port.AIProvider
	index   VectorIndex
	runs    RunStore
	limiter *ratelimit.Limiter
	retry   retry.Policy
	topK    int
}

// NewGenerationService creates a generation service. The limiter and retry
// policy guard every model call, the same way the impact path does.
func NewGenerationService(ai port.AIProvider, index VectorIndex, runs RunStore, limiter *ratelimit.Limiter, policy retry.Policy) *GenerationService {
	policy.Retryable = retryableModelErr
	return &GenerationService{
		ai:      ai,
		index:   index,
		runs:    runs,
		limiter: limiter,
		retry:   policy,
		topK:    DefaultTopK,
	}
}

// GenerateForStory generates and persists test cases for one story. The
// returned error is classification for the caller; batch callers log it and
// move on rather than aborting.
func (s *GenerationService) GenerateForStory(ctx context.Context, storyID string) error {
	story, err := s.index.GetStory(ctx, storyID)
	if err != nil {
		slog.Warn("story lookup failed", "story_id", storyID, "error", err)
		return err
	}
	if strings.TrimSpace(story.DocText) == "" || !story.HasVector() {
		slog.Warn("skipping story without document text or embedding", "story_id", storyID)
		return fmt.Errorf("%w: %s", port.ErrMissingVector, storyID)
	}

	slog.Info("generating test cases", "story_id", storyID, "model", s.ai.ModelName())

	contextParts, err := s.collectContext(ctx, story)
	if err != nil {
		return err
	}

	prompt := buildGenerationPrompt(storyID, story.DocText, contextParts)
	result, err := callModel(ctx, s.ai, s.limiter, s.retry, prompt, llmjson.ParseGeneration)
	if err != nil {
		slog.Error("generation failed", "story_id", storyID, "error", err)
		return err
	}

	run := &domain.TestCaseRun{
		RunID:            uuid.NewString(),
		ProjectID:        story.ProjectID,
		StoryID:          story.StoryID,
		StoryDescription: story.Description,
		CreatedOn:        time.Now(),
		Suite:            result.Suite,
		TotalTestCases:   result.Count,
		Generated:        true,
		Source:           runSource,
	}
	if _, err := s.runs.UpsertRun(ctx, run); err != nil {
		slog.Error("persist run failed", "story_id", storyID, "error", err)
		return err
	}

	slog.Info("stored test cases", "story_id", storyID, "total", result.Count)
	return nil
}

// collectContext searches the story's neighbors and gathers up to topK
// generated suites, in ascending-distance order, skipping the story itself
// and neighbors without a run.
func (s *GenerationService) collectContext(ctx context.Context, story *domain.Story) ([]string, error) {
	hits, err := s.index.SearchSimilar(ctx, story.Vector, s.topK+overFetch, "")
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, hit := range hits {
		if hit.StoryID == story.StoryID {
			continue
		}
		run, err := s.runs.GetRunByStoryID(ctx, hit.StoryID)
		if err != nil {
			if errors.Is(err, port.ErrTestCasesNotFound) {
				continue
			}
			return nil, err
		}
		parts = append(parts, fmt.Sprintf("--- Context from %s ---\n%s", hit.StoryID, run.Suite))
		if len(parts) >= s.topK {
			break
		}
	}
	return parts, nil
}

// GenerateAllPending scans the vector store and generates test cases for
// every story that has none yet, sequentially to bound load on the model
// API. One story's failure never aborts the batch.
func (s *GenerationService) GenerateAllPending(ctx context.Context) (*domain.BatchReport, error) {
	stories, err := s.index.ListStories(ctx)
	if err != nil {
		return nil, err
	}
	generated, err := s.runs.ListGeneratedStoryIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.BatchReport{}
	for _, story := range stories {
		if _, done := generated[story.StoryID]; done {
			continue
		}
		if strings.TrimSpace(story.DocText) == "" || !story.HasVector() {
			slog.Warn("skipping story without document text or embedding", "story_id", story.StoryID)
			continue
		}

		report.Processed++
		if err := s.GenerateForStory(ctx, story.StoryID); err != nil {
			slog.Error("batch generation failed for story", "story_id", story.StoryID, "error", err)
			report.Failed++
			continue
		}
		report.Succeeded++
	}

	slog.Info("batch generation complete",
		"processed", report.Processed, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// RetrieveSimilar embeds a free-text query, searches for the closest
// stories, and attaches each story's generated suite when one exists.
func (s *GenerationService) RetrieveSimilar(ctx context.Context, query string, topK int) ([]domain.SimilarStory, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", port.ErrConfiguration)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.ai.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", port.ErrModel, err)
	}

	hits, err := s.index.SearchSimilar(ctx, vector, topK, "")
	if err != nil {
		return nil, err
	}

	results := make([]domain.SimilarStory, 0, len(hits))
	for _, hit := range hits {
		entry := domain.SimilarStory{
			StoryID:         hit.StoryID,
			SimilarityScore: hit.Distance,
		}
		run, err := s.runs.GetRunByStoryID(ctx, hit.StoryID)
		switch {
		case err == nil:
			entry.TestCases = run.Suite
			entry.TestCasesFound = true
		case errors.Is(err, port.ErrTestCasesNotFound):
			// Listed without a suite.
		default:
			return nil, err
		}
		results = append(results, entry)
	}
	return results, nil
}
