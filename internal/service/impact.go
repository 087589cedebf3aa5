package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/llmjson"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/ratelimit"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/retry"
)

const (
	// DefaultMaxCandidates caps how many similar stories one analysis examines.
	DefaultMaxCandidates = 5

	// DefaultConcurrentAnalyses bounds how many candidate analyses run at once.
	DefaultConcurrentAnalyses = 3
)

// ImpactService orchestrates impact analysis: when a new story lands, find
// the closest existing stories in the same project and ask the model, per
// candidate and concurrently, whether their generated test cases must change.
type ImpactService struct {
	ai            port.AIProvider
	index         VectorIndex
	runs          RunStore
	limiter       *ratelimit.Limiter
	retry         retry.Policy
	maxCandidates int
	concurrency   int
}

// NewImpactService creates an impact service with the default candidate and
// concurrency bounds.
func NewImpactService(ai port.AIProvider, index VectorIndex, runs RunStore, limiter *ratelimit.Limiter, policy retry.Policy) *ImpactService {
	policy.Retryable = retryableModelErr
	return &ImpactService{
		ai:            ai,
		index:         index,
		runs:          runs,
		limiter:       limiter,
		retry:         policy,
		maxCandidates: DefaultMaxCandidates,
		concurrency:   DefaultConcurrentAnalyses,
	}
}

// AnalyzeImpact analyzes how a new story's test cases impact existing
// stories in the same project. It always returns a structured outcome:
// preconditions that fail produce an error outcome, while individual
// candidate failures are contained and contribute zero impacts.
func (s *ImpactService) AnalyzeImpact(ctx context.Context, newStoryID, projectID string) *domain.ImpactOutcome {
	slog.Info("starting impact analysis", "story_id", newStoryID, "project_id", projectID)

	if projectID == "" {
		return s.errorOutcome(fmt.Errorf("%w: project id is required for impact analysis", port.ErrConfiguration))
	}

	newRun, err := s.runs.GetRunByStoryID(ctx, newStoryID)
	if err != nil {
		return s.errorOutcome(err)
	}

	newStory, err := s.index.GetStoryInProject(ctx, newStoryID, projectID)
	if err != nil {
		return s.errorOutcome(err)
	}
	if !newStory.HasVector() {
		return s.errorOutcome(fmt.Errorf("%w: %s", port.ErrMissingVector, newStoryID))
	}

	hits, err := s.index.SearchSimilar(ctx, newStory.Vector, s.maxCandidates, projectID)
	if err != nil {
		return s.errorOutcome(err)
	}
	slog.Info("found candidate stories", "story_id", newStoryID, "candidates", len(hits))

	// Candidates are analyzed concurrently and commit in completion order;
	// each candidate's persistence is one independent transaction, so the
	// group only bounds how many run at once.
	counts := make([]int, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, hit := range hits {
		g.Go(func() error {
			counts[i] = s.analyzeCandidate(gctx, newStory, newRun, hit, projectID)
			return nil
		})
	}
	_ = g.Wait() // candidate failures are captured as zero counts

	total := 0
	for _, n := range counts {
		total += n
	}

	slog.Info("impact analysis complete", "story_id", newStoryID, "total_impacts", total, "stories_analyzed", len(hits))
	return domain.SuccessOutcome(total, len(hits))
}

// analyzeCandidate runs the full pipeline for one candidate story and
// returns the number of impacts stored. Every failure is logged and
// contributes zero; nothing propagates to sibling candidates.
func (s *ImpactService) analyzeCandidate(ctx context.Context, newStory *domain.Story, newRun *domain.TestCaseRun, hit domain.StoryHit, projectID string) int {
	if hit.StoryID == newStory.StoryID {
		return 0
	}

	existingRun, err := s.runs.GetRunByStoryID(ctx, hit.StoryID)
	if err != nil {
		if errors.Is(err, port.ErrTestCasesNotFound) {
			slog.Info("skipping candidate without test cases", "story_id", hit.StoryID)
		} else {
			slog.Error("candidate run lookup failed", "story_id", hit.StoryID, "error", err)
		}
		return 0
	}

	prompt := buildImpactPrompt(projectID, newStory, newRun, &hit.Story, existingRun)
	analysis, err := callModel(ctx, s.ai, s.limiter, s.retry, prompt, llmjson.ParseImpact)
	if err != nil {
		slog.Error("impact analysis failed for candidate", "story_id", hit.StoryID, "error", err)
		return 0
	}

	if !analysis.HasImpact {
		slog.Info("no impact found", "story_id", hit.StoryID)
		return 0
	}

	count, err := s.runs.StoreImpacts(ctx, projectID, newStory.StoryID, hit.StoryID, hit.Distance, analysis)
	if err != nil {
		slog.Error("storing impacts failed", "story_id", hit.StoryID, "error", err)
		return 0
	}

	slog.Info("stored impacts for candidate", "story_id", hit.StoryID, "count", count)
	return count
}

func (s *ImpactService) errorOutcome(err error) *domain.ImpactOutcome {
	slog.Error("impact analysis error", "error", err)
	return domain.ErrorOutcome(port.ErrorType(err), err.Error())
}
