package billing

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/service/audit"
	"github.com/clinicops/clinic-api/pkg/errors"
	"github.com/clinicops/clinic-api/pkg/logger"
)

type fakeBillingRepo struct {
	invoices map[uuid.UUID]*model.Invoice
	payments []*model.Payment
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{invoices: make(map[uuid.UUID]*model.Invoice)}
}

func (f *fakeBillingRepo) CreateInvoice(_ context.Context, invoice *model.Invoice, _ []*model.InvoiceItem) error {
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeBillingRepo) GetInvoice(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *invoice
	return &cp, nil
}

func (f *fakeBillingRepo) ListInvoices(_ context.Context, patientID uuid.UUID) ([]*model.Invoice, error) {
	var out []*model.Invoice
	for _, invoice := range f.invoices {
		if invoice.PatientID == patientID {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (f *fakeBillingRepo) ListItems(_ context.Context, _ uuid.UUID) ([]*model.InvoiceItem, error) {
	return nil, nil
}

// ApplyPayment mirrors the conditional-update semantics of the SQL
// implementation: nothing changes when the invoice is settled or the
// amount would overshoot the total.
func (f *fakeBillingRepo) ApplyPayment(_ context.Context, payment *model.Payment) (*model.Invoice, bool, error) {
	invoice, ok := f.invoices[payment.InvoiceID]
	if !ok {
		return nil, false, sql.ErrNoRows
	}
	if invoice.Status == model.InvoiceStatusPaid || invoice.PaidAmount+payment.Amount > invoice.TotalAmount {
		return nil, false, nil
	}

	invoice.PaidAmount += payment.Amount
	invoice.Status = model.DeriveInvoiceStatus(invoice.PaidAmount, invoice.TotalAmount)
	f.payments = append(f.payments, payment)
	cp := *invoice
	return &cp, true, nil
}

func (f *fakeBillingRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]*model.Payment, error) {
	var out []*model.Payment
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAuditRepo struct{}

func (fakeAuditRepo) Create(context.Context, *model.AuditLog) error { return nil }
func (fakeAuditRepo) List(context.Context, map[string]interface{}) ([]*model.AuditLog, error) {
	return nil, nil
}
func (fakeAuditRepo) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeOutboxRepo struct{}

func (fakeOutboxRepo) Create(context.Context, *model.OutboxEvent) error { return nil }
func (fakeOutboxRepo) FetchPending(context.Context, int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (fakeOutboxRepo) MarkProcessed(context.Context, uuid.UUID) error      { return nil }
func (fakeOutboxRepo) MarkFailed(context.Context, uuid.UUID, string) error { return nil }

func newTestService(repo *fakeBillingRepo) *Service {
	auditor := audit.NewService(&fakeAuditRepo{}, &fakeOutboxRepo{}, logger.NewLogger(nil))
	return NewService(repo, auditor)
}

func items(amounts ...int64) []model.CreateInvoiceItemRequest {
	out := make([]model.CreateInvoiceItemRequest, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, model.CreateInvoiceItemRequest{Description: "item", Quantity: 1, UnitAmount: a})
	}
	return out
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name          string
		items         []model.CreateInvoiceItemRequest
		discountType  model.DiscountType
		discountValue int64
		taxRateBps    int64
		want          Totals
	}{
		{
			name:  "no discount no tax",
			items: items(500, 500),
			want:  Totals{Subtotal: 1000, Total: 1000},
		},
		{
			name:          "fixed discount",
			items:         items(1000),
			discountType:  model.DiscountTypeFixed,
			discountValue: 200,
			want:          Totals{Subtotal: 1000, Discount: 200, Total: 800},
		},
		{
			name:          "percent discount with tax on discounted subtotal",
			items:         items(1000),
			discountType:  model.DiscountTypePercent,
			discountValue: 10,
			taxRateBps:    1800,
			want:          Totals{Subtotal: 1000, Discount: 100, Tax: 162, Total: 1062},
		},
		{
			name:       "quantity multiplies",
			items:      []model.CreateInvoiceItemRequest{{Description: "x", Quantity: 3, UnitAmount: 250}},
			taxRateBps: 500,
			want:       Totals{Subtotal: 750, Tax: 37, Total: 787},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTotals(tt.items, tt.discountType, tt.discountValue, tt.taxRateBps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeTotalsRejections(t *testing.T) {
	_, err := ComputeTotals(items(1000), model.DiscountTypePercent, 120, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))

	_, err = ComputeTotals(items(100), model.DiscountTypeFixed, 500, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrValidation, errors.Kind(err))
}

func createInvoice(t *testing.T, svc *Service, total int64) *model.Invoice {
	t.Helper()
	invoice, err := svc.CreateInvoice(context.Background(), model.Identity{UserID: uuid.New()}, &model.CreateInvoiceRequest{
		PatientID: uuid.New(),
		Items:     items(total),
	})
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusUnpaid, invoice.Status)
	return invoice
}

func TestPaymentSettlesInvoice(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := newTestService(repo)
	invoice := createInvoice(t, svc, 1000)
	actor := model.Identity{UserID: uuid.New()}

	updated, err := svc.ApplyPayment(context.Background(), actor, invoice.ID, &model.RecordPaymentRequest{
		Amount: 1000,
		Mode:   model.PaymentModeCash,
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, updated.Status)
	assert.Equal(t, int64(0), updated.Remaining())

	// A settled invoice accepts nothing further.
	_, err = svc.ApplyPayment(context.Background(), actor, invoice.ID, &model.RecordPaymentRequest{
		Amount: 1,
		Mode:   model.PaymentModeCash,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrConflict, errors.Kind(err))
}

func TestPartialPaymentThenOverpaymentRejected(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := newTestService(repo)
	invoice := createInvoice(t, svc, 1000)
	actor := model.Identity{UserID: uuid.New()}

	updated, err := svc.ApplyPayment(context.Background(), actor, invoice.ID, &model.RecordPaymentRequest{
		Amount: 400,
		Mode:   model.PaymentModeCard,
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartiallyPaid, updated.Status)
	assert.Equal(t, int64(600), updated.Remaining())

	_, err = svc.ApplyPayment(context.Background(), actor, invoice.ID, &model.RecordPaymentRequest{
		Amount: 700,
		Mode:   model.PaymentModeCard,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrOverpayment, errors.Kind(err))
	assert.Contains(t, err.Error(), "600")

	// The rejected payment left nothing behind.
	current, err := svc.GetInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(400), current.PaidAmount)
	assert.Equal(t, model.InvoiceStatusPartiallyPaid, current.Status)
}

func TestExactRemainderSettles(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := newTestService(repo)
	invoice := createInvoice(t, svc, 1000)
	actor := model.Identity{UserID: uuid.New()}

	_, err := svc.ApplyPayment(context.Background(), actor, invoice.ID, &model.RecordPaymentRequest{
		Amount: 400, Mode: model.PaymentModeCash,
	})
	require.NoError(t, err)

	updated, err := svc.ApplyPayment(context.Background(), actor, invoice.ID, &model.RecordPaymentRequest{
		Amount: 600, Mode: model.PaymentModeTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, updated.Status)

	payments, err := svc.ListPayments(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestPaymentUnknownInvoice(t *testing.T) {
	repo := newFakeBillingRepo()
	svc := newTestService(repo)

	_, err := svc.ApplyPayment(context.Background(), model.Identity{}, uuid.New(), &model.RecordPaymentRequest{
		Amount: 100, Mode: model.PaymentModeCash,
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))
}
