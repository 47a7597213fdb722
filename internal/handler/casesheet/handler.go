package casesheet

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/handler"
	"github.com/clinicops/clinic-api/internal/model"
	casesheetService "github.com/clinicops/clinic-api/internal/service/casesheet"
)

type Handler struct {
	service *casesheetService.Service
}

func NewHandler(service *casesheetService.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the case sheet routes. Reads are not gated on a
// single permission: the service filters sections down to what the role
// may view. Section writes are checked in the service as well, since the
// resource depends on the :section path parameter.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, perm handler.PermissionGuard) {
	sheets := r.Group("/case-sheets")
	{
		sheets.POST("", perm(model.ResourcePatient, model.ActionClinical), h.Create)
		sheets.GET("/:id", h.Get)
		sheets.PUT("/:id/sections/:section", h.UpdateSection)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateCaseSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	sheet, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(sheet))
}

// Get returns the case sheet with sections filtered down to what the
// caller's role may view. The filtering happens in the service: the
// response simply never contains sections the role cannot see.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid case sheet ID"))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	sheet, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(sheet))
}

func (h *Handler) UpdateSection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid case sheet ID"))
		return
	}

	var req model.UpdateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	sheet, err := h.service.UpdateSection(c.Request.Context(), actor, id, c.Param("section"), req.Data)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(sheet))
}
