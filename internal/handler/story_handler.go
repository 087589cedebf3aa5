package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/gofiber/fiber/v3"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// StoryIndex is the slice of the vector store the story endpoints need.
type StoryIndex interface {
	AddStories(ctx context.Context, stories []domain.Story) error
	GetStory(ctx context.Context, storyID string) (*domain.Story, error)
	ListStories(ctx context.Context) ([]domain.Story, error)
}

// RunReader is the slice of the relational store the story endpoints need.
type RunReader interface {
	GetRunByStoryID(ctx context.Context, storyID string) (*domain.TestCaseRun, error)
	ListImpactsByStory(ctx context.Context, storyID string) ([]domain.ImpactRecord, error)
}

// StoryHandler handles story ingestion and read endpoints.
type StoryHandler struct {
	index StoryIndex
	runs  RunReader
	ai    port.AIProvider
}

// NewStoryHandler creates a new story handler.
func NewStoryHandler(index StoryIndex, runs RunReader, ai port.AIProvider) *StoryHandler {
	return &StoryHandler{index: index, runs: runs, ai: ai}
}

// Register sets up story routes.
func (h *StoryHandler) Register(router fiber.Router) {
	stories := router.Group("/stories")
	stories.Post("/", h.Ingest)
	stories.Get("/", h.List)
	stories.Get("/:storyId", h.Get)
	stories.Get("/:storyId/testcases", h.GetTestCases)
	stories.Get("/:storyId/impacts", h.ListImpacts)
}

type ingestStory struct {
	StoryID     string `json:"story_id"`
	ProjectID   string `json:"project_id"`
	Description string `json:"story_description"`
	DocText     string `json:"doc_content_text"`
	Filename    string `json:"filename"`
	Source      string `json:"source"`
}

// Ingest embeds and stores a batch of user stories.
func (h *StoryHandler) Ingest(c fiber.Ctx) error {
	var body struct {
		Stories []ingestStory `json:"stories"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(body.Stories) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "stories is required"})
	}

	stories := make([]domain.Story, 0, len(body.Stories))
	for _, in := range body.Stories {
		if in.StoryID == "" || in.DocText == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "each story needs story_id and doc_content_text",
			})
		}
		vector, err := h.ai.Embed(c.Context(), in.DocText)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(errorBody(err))
		}
		stories = append(stories, domain.Story{
			StoryID:     in.StoryID,
			ProjectID:   in.ProjectID,
			Description: in.Description,
			DocText:     in.DocText,
			Filename:    in.Filename,
			Source:      in.Source,
			Vector:      vector,
			EmbeddedAt:  time.Now(),
		})
	}

	if err := h.index.AddStories(c.Context(), stories); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ingested": len(stories)})
}

// List returns a page of stories with their generation status. Out-of-range
// pagination parameters fall back to the defaults rather than erroring.
func (h *StoryHandler) List(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	stories, err := h.index.ListStories(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err))
	}

	total := len(stories)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	out := make([]fiber.Map, 0, end-start)
	for _, s := range stories[start:end] {
		entry := fiber.Map{
			"story_id":            s.StoryID,
			"project_id":          s.ProjectID,
			"story_description":   s.Description,
			"filename":            s.Filename,
			"source":              s.Source,
			"has_vector":          s.HasVector(),
			"embedding_timestamp": s.EmbeddedAt,
			"test_case_generated": false,
			"total_test_cases":    0,
		}
		run, err := h.runs.GetRunByStoryID(c.Context(), s.StoryID)
		switch {
		case err == nil:
			entry["test_case_generated"] = run.Generated
			entry["total_test_cases"] = run.TotalTestCases
			entry["has_impacts"] = run.HasImpacts
			entry["created_on"] = run.CreatedOn
		case errors.Is(err, port.ErrTestCasesNotFound):
			// Listed without run info.
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err))
		}
		out = append(out, entry)
	}

	return c.JSON(fiber.Map{
		"stories":      out,
		"total":        total,
		"total_pages":  totalPages,
		"current_page": page,
		"per_page":     perPage,
	})
}

// Get returns a single story without its vector.
func (h *StoryHandler) Get(c fiber.Ctx) error {
	s, err := h.index.GetStory(c.Context(), c.Params("storyId"))
	if err != nil {
		return c.Status(statusForError(err)).JSON(errorBody(err))
	}
	return c.JSON(fiber.Map{
		"story_id":            s.StoryID,
		"project_id":          s.ProjectID,
		"story_description":   s.Description,
		"doc_content_text":    s.DocText,
		"filename":            s.Filename,
		"source":              s.Source,
		"has_vector":          s.HasVector(),
		"embedding_timestamp": s.EmbeddedAt,
	})
}

// GetTestCases returns the generated test case run for one story.
func (h *StoryHandler) GetTestCases(c fiber.Ctx) error {
	run, err := h.runs.GetRunByStoryID(c.Context(), c.Params("storyId"))
	if err != nil {
		return c.Status(statusForError(err)).JSON(errorBody(err))
	}
	return c.JSON(run)
}

// ListImpacts returns all impact records where the given story was impacted.
func (h *StoryHandler) ListImpacts(c fiber.Ctx) error {
	impacts, err := h.runs.ListImpactsByStory(c.Context(), c.Params("storyId"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err))
	}
	return c.JSON(fiber.Map{"impacts": impacts, "count": len(impacts)})
}
