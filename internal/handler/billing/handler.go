package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/handler"
	"github.com/clinicops/clinic-api/internal/model"
	billingService "github.com/clinicops/clinic-api/internal/service/billing"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/metrics"
)

type Handler struct {
	service *billingService.Service
	metrics *metrics.Metrics
}

func NewHandler(service *billingService.Service, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, perm handler.PermissionGuard) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", perm(model.ResourceBilling, model.ActionCreate), h.CreateInvoice)
		invoices.GET("", perm(model.ResourceBilling, model.ActionView), h.ListInvoices)
		invoices.GET("/:id", perm(model.ResourceBilling, model.ActionView), h.GetInvoice)
		invoices.GET("/:id/payments", perm(model.ResourcePayment, model.ActionView), h.ListPayments)
		invoices.POST("/:id/payments", perm(model.ResourcePayment, model.ActionFinancial), h.RecordPayment)
	}
}

func (h *Handler) CreateInvoice(c *gin.Context) {
	var req model.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	invoice, err := h.service.CreateInvoice(c.Request.Context(), actor, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(invoice))
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid invoice ID"))
		return
	}

	invoice, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(invoice))
}

func (h *Handler) ListInvoices(c *gin.Context) {
	patientID, err := uuid.Parse(c.Query("patient_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	invoices, err := h.service.ListInvoices(c.Request.Context(), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(invoices))
}

func (h *Handler) ListPayments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid invoice ID"))
		return
	}

	payments, err := h.service.ListPayments(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(payments))
}

func (h *Handler) RecordPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid invoice ID"))
		return
	}

	var req model.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actor, _ := handler.IdentityFromContext(c)
	invoice, err := h.service.ApplyPayment(c.Request.Context(), actor, id, &req)
	if err != nil {
		switch errors.Kind(err) {
		case errors.ErrOverpayment:
			h.metrics.PaymentsRejected.WithLabelValues("overpayment").Inc()
		case errors.ErrConflict:
			h.metrics.PaymentsRejected.WithLabelValues("settled").Inc()
		}
		handler.Error(c, err)
		return
	}

	h.metrics.PaymentsApplied.Inc()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(invoice))
}
