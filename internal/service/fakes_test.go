package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/retry"
)

// testPolicy keeps the attempt budget but drops the backoff waits so retry
// paths run instantly under test.
func testPolicy() retry.Policy {
	p := retry.Default()
	p.Floor = 0
	p.Cap = 0
	return p
}

type fakeAI struct {
	mu        sync.Mutex
	embedFn   func(text string) ([]float32, error)
	genFn     func(prompt string) (string, error)
	prompts   []string
	active    int
	maxActive int
	genDelay  time.Duration
}

func (f *fakeAI) ModelName() string { return "fake-model" }

func (f *fakeAI) Embed(_ context.Context, text string) ([]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeAI) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	fn := f.genFn
	delay := f.genDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if fn == nil {
		return `{"test_cases": []}`, nil
	}
	return fn(prompt)
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeIndex struct {
	stories map[string]*domain.Story
	hits    []domain.StoryHit
}

func (f *fakeIndex) GetStory(_ context.Context, storyID string) (*domain.Story, error) {
	s, ok := f.stories[storyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrStoryNotFound, storyID)
	}
	return s, nil
}

func (f *fakeIndex) GetStoryInProject(_ context.Context, storyID, projectID string) (*domain.Story, error) {
	s, ok := f.stories[storyID]
	if !ok || s.ProjectID != projectID {
		return nil, fmt.Errorf("%w: %s in project %s", port.ErrStoryNotFound, storyID, projectID)
	}
	return s, nil
}

func (f *fakeIndex) SearchSimilar(_ context.Context, _ []float32, limit int, _ string) ([]domain.StoryHit, error) {
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) ListStories(_ context.Context) ([]domain.Story, error) {
	var out []domain.Story
	for _, s := range f.stories {
		out = append(out, *s)
	}
	return out, nil
}

type storedImpactCall struct {
	ProjectID       string
	NewStoryID      string
	OriginalStoryID string
	SimilarityScore float64
	Analysis        *domain.ImpactAnalysis
}

type fakeRuns struct {
	mu      sync.Mutex
	runs    map[string]*domain.TestCaseRun
	impacts []storedImpactCall
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: make(map[string]*domain.TestCaseRun)}
}

// UpsertRun mirrors the store's conflict behavior: the payload is replaced
// but an existing story keeps its original run id.
func (f *fakeRuns) UpsertRun(_ context.Context, run *domain.TestCaseRun) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *run
	if existing, ok := f.runs[run.StoryID]; ok {
		stored.RunID = existing.RunID
	}
	f.runs[run.StoryID] = &stored
	return stored.RunID, nil
}

func (f *fakeRuns) GetRunByStoryID(_ context.Context, storyID string) (*domain.TestCaseRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[storyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrTestCasesNotFound, storyID)
	}
	return run, nil
}

func (f *fakeRuns) ListGeneratedStoryIDs(_ context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{}, len(f.runs))
	for id := range f.runs {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeRuns) StoreImpacts(_ context.Context, projectID, newStoryID, originalStoryID string,
	similarityScore float64, analysis *domain.ImpactAnalysis) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impacts = append(f.impacts, storedImpactCall{
		ProjectID:       projectID,
		NewStoryID:      newStoryID,
		OriginalStoryID: originalStoryID,
		SimilarityScore: similarityScore,
		Analysis:        analysis,
	})
	return len(analysis.ImpactedTestCases), nil
}
