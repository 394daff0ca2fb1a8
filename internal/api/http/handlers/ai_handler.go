package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/advisor"
	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/classifier"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AIHandler serves the advisory and classification endpoints.
type AIHandler struct {
	advisor     *advisor.Service
	departments repository.DepartmentRepository
}

// NewAIHandler constructs handler.
func NewAIHandler(advisorService *advisor.Service, departments repository.DepartmentRepository) *AIHandler {
	return &AIHandler{advisor: advisorService, departments: departments}
}

// Analyze POST /ai/analyze.
func (h *AIHandler) Analyze(c *fiber.Ctx) error {
	var req dto.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("title or description required", nil)
	}

	analysis, err := h.advisor.Analyze(c.UserContext(), advisor.Input{
		Title:            req.Title,
		Description:      req.Description,
		DoneActions:      req.DoneActions,
		RejectedActions:  req.RejectedActions,
		PriorSuggestions: req.PriorSuggestions,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AnalyzeResponse{
		Suggestions:         analysis.Suggestions,
		PredictedDepartment: analysis.PredictedDepartment,
		Confidence:          analysis.Confidence,
		PriorityHint:        analysis.PriorityHint,
		Rationale:           analysis.Rationale,
		Source:              analysis.Source,
		NextAction:          analysis.NextAction,
		FollowUpQuestions:   analysis.FollowUpQuestions,
	}})
}

// ClassifyDepartment POST /ai/classify-department.
func (h *AIHandler) ClassifyDepartment(c *fiber.Ctx) error {
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("title or description required", nil)
	}

	departments, err := h.departments.ListActive(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}

	resp := dto.ClassifyResponse{}
	if guess := classifier.Guess(req.Title, req.Description, departments); guess != nil {
		resp.DepartmentID = &guess.ID
		resp.DepartmentName = &guess.Name
	}
	return c.JSON(fiber.Map{"data": resp})
}
