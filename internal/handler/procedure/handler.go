package procedure

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/handler"
	"github.com/clinicops/clinic-api/internal/model"
	procedureService "github.com/clinicops/clinic-api/internal/service/procedure"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/metrics"
)

type Handler struct {
	service *procedureService.Service
	metrics *metrics.Metrics
}

func NewHandler(service *procedureService.Service, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, perm handler.PermissionGuard) {
	procedures := r.Group("/procedures")
	{
		procedures.POST("", perm(model.ResourceCaseProcedure, model.ActionCreate), h.Create)
		procedures.GET("", perm(model.ResourceCaseProcedure, model.ActionView), h.List)
		procedures.GET("/:id", perm(model.ResourceCaseProcedure, model.ActionView), h.Get)
		procedures.PUT("/:id", perm(model.ResourceCaseProcedure, model.ActionEdit), h.Update)
		procedures.POST("/:id/start", perm(model.ResourceCaseProcedure, model.ActionClinical), h.Start)
		procedures.POST("/:id/complete", perm(model.ResourceCaseProcedure, model.ActionComplete), h.Complete)
		procedures.POST("/:id/cancel", perm(model.ResourceCaseProcedure, model.ActionEdit), h.Cancel)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	proc, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(proc))
}

func (h *Handler) List(c *gin.Context) {
	caseSheetID, err := uuid.Parse(c.Query("case_sheet_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid case sheet ID"))
		return
	}

	procs, err := h.service.ListByCaseSheet(c.Request.Context(), caseSheetID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(procs))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid procedure ID"))
		return
	}

	proc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(proc))
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid procedure ID"))
		return
	}

	var req model.UpdateProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	proc, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(proc))
}

func (h *Handler) Start(c *gin.Context) {
	h.transition(c, h.service.Start)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Procedure, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid procedure ID"))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	proc, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		switch errors.Kind(err) {
		case errors.ErrInvalidTransition, errors.ErrConflict:
			h.metrics.TransitionsRejected.WithLabelValues(model.EntityTypeProcedure).Inc()
		}
		handler.Error(c, err)
		return
	}

	h.metrics.TransitionsApplied.WithLabelValues(model.EntityTypeProcedure).Inc()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(proc))
}
