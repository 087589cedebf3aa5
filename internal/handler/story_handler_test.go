package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/gofiber/fiber/v3"
)

type fakeStoryIndex struct {
	stories []domain.Story
}

func (f *fakeStoryIndex) AddStories(_ context.Context, stories []domain.Story) error {
	f.stories = append(f.stories, stories...)
	return nil
}

func (f *fakeStoryIndex) GetStory(_ context.Context, storyID string) (*domain.Story, error) {
	for i := range f.stories {
		if f.stories[i].StoryID == storyID {
			return &f.stories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", port.ErrStoryNotFound, storyID)
}

func (f *fakeStoryIndex) ListStories(_ context.Context) ([]domain.Story, error) {
	return f.stories, nil
}

type fakeRunReader struct {
	runs map[string]*domain.TestCaseRun
}

func (f *fakeRunReader) GetRunByStoryID(_ context.Context, storyID string) (*domain.TestCaseRun, error) {
	run, ok := f.runs[storyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrTestCasesNotFound, storyID)
	}
	return run, nil
}

func (f *fakeRunReader) ListImpactsByStory(_ context.Context, _ string) ([]domain.ImpactRecord, error) {
	return nil, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) ModelName() string { return "fake-model" }

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1}, nil
}

func (fakeEmbedder) Generate(context.Context, string) (string, error) {
	return "", nil
}

func storyApp(index *fakeStoryIndex, runs *fakeRunReader) *fiber.App {
	app := fiber.New()
	NewStoryHandler(index, runs, fakeEmbedder{}).Register(app.Group("/api/v1"))
	return app
}

func seededIndex(n int) *fakeStoryIndex {
	index := &fakeStoryIndex{}
	for i := 1; i <= n; i++ {
		index.stories = append(index.stories, domain.Story{
			StoryID:     fmt.Sprintf("US-%d", i),
			ProjectID:   "proj-1",
			Description: fmt.Sprintf("Story %d", i),
			DocText:     "doc",
			Vector:      []float32{0.1},
		})
	}
	return index
}

func getJSON(t *testing.T, app *fiber.App, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return body
}

func TestListStories_Pagination(t *testing.T) {
	index := seededIndex(5)
	runs := &fakeRunReader{runs: map[string]*domain.TestCaseRun{
		"US-3": {RunID: "run-3", StoryID: "US-3", Generated: true, TotalTestCases: 4, HasImpacts: true},
	}}
	app := storyApp(index, runs)

	body := getJSON(t, app, "/api/v1/stories/?page=2&per_page=2", http.StatusOK)

	if body["total"].(float64) != 5 || body["total_pages"].(float64) != 3 {
		t.Errorf("total/total_pages = %v/%v, want 5/3", body["total"], body["total_pages"])
	}
	if body["current_page"].(float64) != 2 || body["per_page"].(float64) != 2 {
		t.Errorf("current_page/per_page = %v/%v, want 2/2", body["current_page"], body["per_page"])
	}

	stories := body["stories"].([]any)
	if len(stories) != 2 {
		t.Fatalf("page size = %d, want 2", len(stories))
	}
	third := stories[0].(map[string]any)
	if third["story_id"] != "US-3" {
		t.Fatalf("first entry of page 2 = %v, want US-3", third["story_id"])
	}
	if third["test_case_generated"] != true || third["total_test_cases"].(float64) != 4 {
		t.Errorf("run info = (%v, %v), want (true, 4)", third["test_case_generated"], third["total_test_cases"])
	}
	if third["has_impacts"] != true {
		t.Errorf("has_impacts = %v, want true", third["has_impacts"])
	}
	fourth := stories[1].(map[string]any)
	if fourth["test_case_generated"] != false {
		t.Errorf("story without run reports test_case_generated = %v, want false", fourth["test_case_generated"])
	}
}

func TestListStories_ParameterFallbacks(t *testing.T) {
	app := storyApp(seededIndex(15), &fakeRunReader{runs: map[string]*domain.TestCaseRun{}})

	// per_page above the cap falls back to the default.
	body := getJSON(t, app, "/api/v1/stories/?per_page=500", http.StatusOK)
	if body["per_page"].(float64) != 10 {
		t.Errorf("per_page = %v, want 10", body["per_page"])
	}
	if len(body["stories"].([]any)) != 10 {
		t.Errorf("page size = %d, want 10", len(body["stories"].([]any)))
	}

	// Negative page falls back to the first page.
	body = getJSON(t, app, "/api/v1/stories/?page=-3&per_page=5", http.StatusOK)
	if body["current_page"].(float64) != 1 {
		t.Errorf("current_page = %v, want 1", body["current_page"])
	}

	// A page past the end returns an empty list, not an error.
	body = getJSON(t, app, "/api/v1/stories/?page=99", http.StatusOK)
	if len(body["stories"].([]any)) != 0 {
		t.Errorf("past-the-end page size = %d, want 0", len(body["stories"].([]any)))
	}
}

func TestGetStory(t *testing.T) {
	app := storyApp(seededIndex(2), &fakeRunReader{runs: map[string]*domain.TestCaseRun{}})

	body := getJSON(t, app, "/api/v1/stories/US-2", http.StatusOK)
	if body["story_id"] != "US-2" || body["doc_content_text"] != "doc" {
		t.Errorf("story = (%v, %v), want (US-2, doc)", body["story_id"], body["doc_content_text"])
	}
	if body["has_vector"] != true {
		t.Errorf("has_vector = %v, want true", body["has_vector"])
	}

	body = getJSON(t, app, "/api/v1/stories/US-404", http.StatusNotFound)
	if body["error_type"] != "StoryNotFoundError" {
		t.Errorf("error_type = %v, want StoryNotFoundError", body["error_type"])
	}
}
