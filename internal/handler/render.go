package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/auralane/render-service/internal/middleware"
	"github.com/auralane/render-service/internal/model"
	"github.com/auralane/render-service/internal/service"
	"github.com/auralane/render-service/internal/store"
	"github.com/auralane/render-service/pkg/response"
)

type RenderHandler struct {
	service   *service.RenderService
	validator *validator.Validate
}

func NewRenderHandler(svc *service.RenderService, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/render/start. The track configuration is
// validated here, once; a job that reaches the queue is never
// re-validated by the pipeline.
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	var req model.RenderStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartRender(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidConfig) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/render/status/:jobId. Responses are marked
// uncacheable so pollers always observe live job state.
func (h *RenderHandler) Status(c *fiber.Ctx) error {
	job, err := h.loadOwnedJob(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	return response.OK(c, job.StatusView())
}

// Cancel handles POST /api/render/cancel/:jobId. Allowed only while the
// job is pending or processing; a terminal job yields a conflict naming
// the blocking status.
func (h *RenderHandler) Cancel(c *fiber.Ctx) error {
	job, err := h.loadOwnedJob(c)
	if err != nil {
		return err
	}

	var req model.RenderCancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		}
	}

	result, err := h.service.Cancel(c.Context(), job.ID, req.Reason)
	if err != nil {
		var ite *store.InvalidTransitionError
		if errors.As(err, &ite) {
			return response.InvalidState(c, fmt.Sprintf("Job cannot be cancelled: status is %s", ite.From))
		}
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// loadOwnedJob resolves the :jobId parameter and enforces that the
// authenticated user owns the job. Any fiber error it returns has already
// been written to the response.
func (h *RenderHandler) loadOwnedJob(c *fiber.Ctx) (*model.RenderJob, error) {
	jobID := c.Params("jobId")
	if jobID == "" {
		return nil, response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, response.NotFound(c, "Job not found")
		}
		return nil, response.ServiceError(c, err.Error())
	}

	if userID := middleware.GetUserID(c); userID != "" && job.UserID != userID {
		return nil, response.Forbidden(c, "Job belongs to another user")
	}
	return job, nil
}

func formatValidationErrors(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fmt.Sprintf("%s: failed %s validation", fe.Namespace(), fe.Tag()))
	}
	return out
}
