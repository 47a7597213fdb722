package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicops/clinic-api/internal/model"
)

const invoiceColumns = `
	id, patient_id, subtotal_amount, discount_amount, tax_amount,
	total_amount, paid_amount, status, created_at, updated_at
`

func (r *billingRepository) CreateInvoice(ctx context.Context, invoice *model.Invoice, items []*model.InvoiceItem) error {
	return withTx(ctx, r.db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO invoices (` + invoiceColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		if _, err := tx.ExecContext(ctx, query,
			invoice.ID,
			invoice.PatientID,
			invoice.SubtotalAmount,
			invoice.DiscountAmount,
			invoice.TaxAmount,
			invoice.TotalAmount,
			invoice.PaidAmount,
			invoice.Status,
			invoice.CreatedAt,
			invoice.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		itemQuery := `
			INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, itemQuery,
				item.ID,
				item.InvoiceID,
				item.Description,
				item.Quantity,
				item.UnitAmount,
				item.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to create invoice item: %w", err)
			}
		}
		return nil
	})
}

func (r *billingRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	var invoice model.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

func (r *billingRepository) ListInvoices(ctx context.Context, patientID uuid.UUID) ([]*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE patient_id = $1 ORDER BY created_at DESC`

	var invoices []*model.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func (r *billingRepository) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*model.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_amount, created_at
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY created_at
	`
	var items []*model.InvoiceItem
	if err := r.db.SelectContext(ctx, &items, query, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to list invoice items: %w", err)
	}
	return items, nil
}

// ApplyPayment increments the balance and re-derives the status in one
// conditional UPDATE, so concurrent payments on the same invoice cannot
// overshoot the total. The guard rejects settled invoices and amounts
// above the remaining balance; zero rows updated means the payment was
// not accepted.
func (r *billingRepository) ApplyPayment(ctx context.Context, payment *model.Payment) (*model.Invoice, bool, error) {
	var invoice model.Invoice
	applied := false

	err := withTx(ctx, r.db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `
			UPDATE invoices
			SET paid_amount = paid_amount + $1,
			    status = CASE
			        WHEN paid_amount + $1 >= total_amount THEN 'PAID'
			        WHEN paid_amount + $1 > 0 THEN 'PARTIALLY_PAID'
			        ELSE 'UNPAID'
			    END,
			    updated_at = $2
			WHERE id = $3
			  AND status <> 'PAID'
			  AND paid_amount + $1 <= total_amount
			RETURNING ` + invoiceColumns + `
		`
		err := tx.GetContext(ctx, &invoice, query, payment.Amount, payment.CreatedAt, payment.InvoiceID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to apply payment: %w", err)
		}

		insert := `
			INSERT INTO payments (id, invoice_id, amount, mode, received_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, insert,
			payment.ID,
			payment.InvoiceID,
			payment.Amount,
			payment.Mode,
			payment.ReceivedBy,
			payment.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, false, nil
	}
	return &invoice, true, nil
}

func (r *billingRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*model.Payment, error) {
	query := `
		SELECT id, invoice_id, amount, mode, received_by, created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY created_at
	`
	var payments []*model.Payment
	if err := r.db.SelectContext(ctx, &payments, query, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
