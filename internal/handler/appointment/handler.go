package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/handler"
	"github.com/clinicops/clinic-api/internal/model"
	appointmentService "github.com/clinicops/clinic-api/internal/service/appointment"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/metrics"
)

type Handler struct {
	service *appointmentService.Service
	metrics *metrics.Metrics
}

func NewHandler(service *appointmentService.Service, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, perm handler.PermissionGuard) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", perm(model.ResourceAppointment, model.ActionCreate), h.Book)
		appointments.GET("", perm(model.ResourceAppointment, model.ActionView), h.List)
		appointments.GET("/:id", perm(model.ResourceAppointment, model.ActionView), h.Get)
		appointments.GET("/conflicts", perm(model.ResourceAppointment, model.ActionView), h.CheckConflict)
		appointments.PUT("/:id/reschedule", perm(model.ResourceAppointment, model.ActionEdit), h.Reschedule)
		appointments.POST("/:id/check-in", perm(model.ResourceAppointment, model.ActionEdit), h.CheckIn)
		appointments.POST("/:id/start-treatment", perm(model.ResourceAppointment, model.ActionClinical), h.StartTreatment)
		appointments.POST("/:id/complete", perm(model.ResourceAppointment, model.ActionComplete), h.Complete)
		appointments.POST("/:id/no-show", perm(model.ResourceAppointment, model.ActionEdit), h.MarkNoShow)
		appointments.POST("/:id/cancel", perm(model.ResourceAppointment, model.ActionEdit), h.Cancel)
	}
}

func (h *Handler) Book(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	appt, err := h.service.Book(c.Request.Context(), actor, &req)
	if err != nil {
		if errors.Kind(err) == errors.ErrConflict {
			h.metrics.SchedulingConflicts.Inc()
		}
		handler.Error(c, err)
		return
	}

	h.metrics.AppointmentsBooked.Inc()
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appt))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	appt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.AppointmentFilters{}
	if v := c.Query("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
			return
		}
		filters.DoctorID = id
	}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
			return
		}
		filters.PatientID = id
	}
	if v := c.Query("status"); v != "" {
		filters.Status = model.AppointmentStatus(v)
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid start_date"))
			return
		}
		filters.StartDate = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid end_date"))
			return
		}
		filters.EndDate = t
	}

	appts, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appts))
}

// CheckConflict answers whether a candidate slot would collide with an
// active appointment for the doctor, without booking anything.
func (h *Handler) CheckConflict(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Query("doctor_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid start_time"))
		return
	}

	end, err := time.Parse(time.RFC3339, c.Query("end_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid end_time"))
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("end_time must be after start_time"))
		return
	}

	var excludeID uuid.UUID
	if v := c.Query("exclude_id"); v != "" {
		excludeID, err = uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid exclude_id"))
			return
		}
	}

	conflict, err := h.service.CheckConflict(c.Request.Context(), doctorID, start, end, excludeID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"conflict": conflict}))
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	appt, err := h.service.Reschedule(c.Request.Context(), actor, id, &req)
	if err != nil {
		if errors.Kind(err) == errors.ErrConflict {
			h.metrics.SchedulingConflicts.Inc()
		}
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) CheckIn(c *gin.Context) {
	h.transition(c, h.service.CheckIn)
}

func (h *Handler) StartTreatment(c *gin.Context) {
	h.transition(c, h.service.StartTreatment)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.service.MarkNoShow)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	appt, err := h.service.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.countRejected(err)
		handler.Error(c, err)
		return
	}

	h.metrics.TransitionsApplied.WithLabelValues(model.EntityTypeAppointment).Inc()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	appt, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		h.countRejected(err)
		handler.Error(c, err)
		return
	}

	h.metrics.TransitionsApplied.WithLabelValues(model.EntityTypeAppointment).Inc()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) countRejected(err error) {
	switch errors.Kind(err) {
	case errors.ErrInvalidTransition, errors.ErrConflict:
		h.metrics.TransitionsRejected.WithLabelValues(model.EntityTypeAppointment).Inc()
	}
}
