package billing

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/repository"
	"github.com/clinicops/clinic-api/internal/service/audit"
	"github.com/clinicops/clinic-api/pkg/errors"
)

type Service struct {
	repo    repository.BillingRepository
	auditor *audit.Service
}

func NewService(repo repository.BillingRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
	}
}

// Totals is the invoice arithmetic computed once at creation:
// total = subtotal - discount + tax, tax applied to the discounted
// subtotal, everything non-negative.
type Totals struct {
	Subtotal int64
	Discount int64
	Tax      int64
	Total    int64
}

// ComputeTotals derives the invoice amounts from itemized charges, a
// fixed or percentage discount, and a tax rate in basis points.
func ComputeTotals(items []model.CreateInvoiceItemRequest, discountType model.DiscountType, discountValue, taxRateBps int64) (Totals, error) {
	var subtotal int64
	for _, item := range items {
		subtotal += int64(item.Quantity) * item.UnitAmount
	}

	var discount int64
	switch discountType {
	case model.DiscountTypeFixed:
		discount = discountValue
	case model.DiscountTypePercent:
		if discountValue > 100 {
			return Totals{}, errors.Validation("percentage discount cannot exceed 100", nil)
		}
		discount = subtotal * discountValue / 100
	case "":
		discount = 0
	default:
		return Totals{}, errors.Validation("unknown discount type", nil)
	}

	if discount > subtotal {
		return Totals{}, errors.Validation("discount cannot exceed subtotal", nil)
	}

	discounted := subtotal - discount
	tax := discounted * taxRateBps / 10000

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    discounted + tax,
	}, nil
}

func (s *Service) CreateInvoice(ctx context.Context, actor model.Identity, req *model.CreateInvoiceRequest) (*model.Invoice, error) {
	totals, err := ComputeTotals(req.Items, req.DiscountType, req.DiscountValue, req.TaxRateBps)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	invoice := &model.Invoice{
		ID:             uuid.New(),
		PatientID:      req.PatientID,
		SubtotalAmount: totals.Subtotal,
		DiscountAmount: totals.Discount,
		TaxAmount:      totals.Tax,
		TotalAmount:    totals.Total,
		PaidAmount:     0,
		Status:         model.DeriveInvoiceStatus(0, totals.Total),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	items := make([]*model.InvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, &model.InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   invoice.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
			CreatedAt:   now,
		})
	}

	if err := s.repo.CreateInvoice(ctx, invoice, items); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Log(ctx, actor.UserID, "create", "invoice", invoice.ID, &audit.LogOptions{
		NewState: string(invoice.Status),
		Changes:  invoice,
	})
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("invoice", err)
		}
		return nil, errors.Internal(err)
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, patientID uuid.UUID) ([]*model.Invoice, error) {
	invoices, err := s.repo.ListInvoices(ctx, patientID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return invoices, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*model.Payment, error) {
	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return payments, nil
}

// ApplyPayment records a payment and re-derives the invoice status from
// the amounts. A settled invoice accepts nothing further; an amount above
// the remaining balance is rejected outright rather than clamped. The
// increment itself is a single conditional update in the repository, so
// concurrent payments cannot overshoot the total between a read and a
// write.
func (s *Service) ApplyPayment(ctx context.Context, actor model.Identity, invoiceID uuid.UUID, req *model.RecordPaymentRequest) (*model.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := s.rejectUnpayable(invoice, req.Amount); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:         uuid.New(),
		InvoiceID:  invoiceID,
		Amount:     req.Amount,
		Mode:       req.Mode,
		ReceivedBy: actor.UserID,
		CreatedAt:  time.Now().UTC(),
	}

	oldStatus := invoice.Status
	updated, applied, err := s.repo.ApplyPayment(ctx, payment)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !applied {
		// A concurrent payment won the race; reload for the precise
		// rejection reason.
		current, err := s.GetInvoice(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		if rej := s.rejectUnpayable(current, req.Amount); rej != nil {
			return nil, rej
		}
		return nil, errors.Conflict("payment was not accepted", nil)
	}

	s.auditor.Log(ctx, actor.UserID, "payment", "invoice", invoiceID, &audit.LogOptions{
		OldState: string(oldStatus),
		NewState: string(updated.Status),
		Changes:  payment,
	})
	return updated, nil
}

func (s *Service) rejectUnpayable(invoice *model.Invoice, amount int64) error {
	if invoice.Status == model.InvoiceStatusPaid {
		return errors.Conflict("invoice is already settled", nil)
	}
	if remaining := invoice.Remaining(); amount > remaining {
		return errors.Overpayment(remaining)
	}
	return nil
}
