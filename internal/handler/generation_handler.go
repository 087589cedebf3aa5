package handler

import (
	"errors"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/adapter/store"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/service"
	"github.com/gofiber/fiber/v3"
)

// GenerationHandler handles test case generation and retrieval endpoints.
type GenerationHandler struct {
	genService *service.GenerationService
	pgStore    *store.PostgresStore
}

// NewGenerationHandler creates a new generation handler.
func NewGenerationHandler(gs *service.GenerationService, s *store.PostgresStore) *GenerationHandler {
	return &GenerationHandler{genService: gs, pgStore: s}
}

// Register sets up generation routes.
func (h *GenerationHandler) Register(router fiber.Router) {
	tc := router.Group("/testcases")
	tc.Post("/generate/:storyId", h.Generate)
	tc.Post("/generate-all", h.GenerateAll)

	rag := router.Group("/rag")
	rag.Post("/search", h.Search)
}

// Generate produces test cases for a single story and returns the stored run.
func (h *GenerationHandler) Generate(c fiber.Ctx) error {
	storyID := c.Params("storyId")
	if err := h.genService.GenerateForStory(c.Context(), storyID); err != nil {
		return c.Status(statusForError(err)).JSON(errorBody(err))
	}

	run, err := h.pgStore.GetRunByStoryID(c.Context(), storyID)
	if err != nil {
		return c.Status(statusForError(err)).JSON(errorBody(err))
	}
	return c.JSON(run)
}

// GenerateAll runs generation for every story that has no run yet.
func (h *GenerationHandler) GenerateAll(c fiber.Ctx) error {
	report, err := h.genService.GenerateAllPending(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err))
	}
	return c.JSON(report)
}

// Search performs semantic retrieval over stored stories for a free-text query.
func (h *GenerationHandler) Search(c fiber.Ctx) error {
	var body struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}
	if body.TopK <= 0 {
		body.TopK = service.DefaultTopK
	}

	results, err := h.genService.RetrieveSimilar(c.Context(), body.Query, body.TopK)
	if err != nil {
		return c.Status(statusForError(err)).JSON(errorBody(err))
	}

	return c.JSON(fiber.Map{
		"query":   body.Query,
		"top_k":   body.TopK,
		"results": results,
		"count":   len(results),
	})
}

// statusForError maps classified service errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, port.ErrStoryNotFound), errors.Is(err, port.ErrTestCasesNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrMissingVector), errors.Is(err, port.ErrConfiguration):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrModel), errors.Is(err, port.ErrMalformedOutput), errors.Is(err, port.ErrInvalidShape):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorBody builds the error response payload with a stable error_type field.
func errorBody(err error) fiber.Map {
	return fiber.Map{
		"error":      err.Error(),
		"error_type": port.ErrorType(err),
	}
}
