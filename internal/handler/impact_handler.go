package handler

import (
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/service"
	"github.com/gofiber/fiber/v3"
)

// ImpactHandler handles impact analysis endpoints.
type ImpactHandler struct {
	impactService *service.ImpactService
}

// NewImpactHandler creates a new impact handler.
func NewImpactHandler(is *service.ImpactService) *ImpactHandler {
	return &ImpactHandler{impactService: is}
}

// Register sets up impact routes.
func (h *ImpactHandler) Register(router fiber.Router) {
	impact := router.Group("/impact")
	impact.Post("/analyze", h.Analyze)
}

// Analyze runs impact analysis for a new story against similar stories in the
// same project. The response is always a structured outcome; analysis failures
// surface as an error outcome rather than a bare 500.
func (h *ImpactHandler) Analyze(c fiber.Ctx) error {
	var body struct {
		StoryID   string `json:"story_id"`
		ProjectID string `json:"project_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.StoryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "story_id is required"})
	}

	outcome := h.impactService.AnalyzeImpact(c.Context(), body.StoryID, body.ProjectID)

	status := fiber.StatusOK
	if outcome.Status == "error" {
		switch outcome.ErrorType {
		case "StoryNotFoundError", "TestCasesNotFoundError":
			status = fiber.StatusNotFound
		case "ConfigurationError", "MissingVectorError":
			status = fiber.StatusBadRequest
		default:
			status = fiber.StatusInternalServerError
		}
	}
	return c.Status(status).JSON(outcome)
}
