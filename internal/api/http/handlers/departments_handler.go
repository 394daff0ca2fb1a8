package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// DepartmentsHandler manages routing targets.
type DepartmentsHandler struct {
	departments repository.DepartmentRepository
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departments repository.DepartmentRepository) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments}
}

// List GET /departments.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	departments, err := h.departments.ListActive(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.DepartmentResponse, 0, len(departments))
	for _, dept := range departments {
		items = append(items, departmentResponse(&dept))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /departments (admin).
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.NewValidationError("name required", nil)
	}

	dept := &domain.Department{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Color:       strings.TrimSpace(req.Color),
		IsActive:    true,
	}
	if err := h.departments.Create(c.Context(), dept); err != nil {
		if repository.IsUniqueViolation(err) {
			return apperrors.NewConflict("department name already exists", map[string]any{"name": name})
		}
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": departmentResponse(dept)})
}

// Update PUT /departments/:id (admin).
func (h *DepartmentsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	dept, err := h.departments.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("department", map[string]any{"department_id": c.Params("id")})
		}
		return apperrors.MapError(err)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return apperrors.NewValidationError("name cannot be empty", nil)
		}
		dept.Name = name
	}
	if req.Description != nil {
		dept.Description = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		dept.Color = strings.TrimSpace(*req.Color)
	}
	if req.IsActive != nil {
		dept.IsActive = *req.IsActive
	}

	if err := h.departments.Update(c.Context(), dept); err != nil {
		if repository.IsUniqueViolation(err) {
			return apperrors.NewConflict("department name already exists", map[string]any{"name": dept.Name})
		}
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": departmentResponse(dept)})
}

func departmentResponse(dept *domain.Department) dto.DepartmentResponse {
	return dto.DepartmentResponse{
		ID:          dept.ID,
		Name:        dept.Name,
		Description: dept.Description,
		Color:       dept.Color,
		IsActive:    dept.IsActive,
		CreatedAt:   dept.CreatedAt,
	}
}
