package model

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "UNPAID"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
)

type DiscountType string

const (
	DiscountTypeFixed   DiscountType = "FIXED"
	DiscountTypePercent DiscountType = "PERCENT"
)

type PaymentMode string

const (
	PaymentModeCash      PaymentMode = "CASH"
	PaymentModeCard      PaymentMode = "CARD"
	PaymentModeTransfer  PaymentMode = "TRANSFER"
	PaymentModeInsurance PaymentMode = "INSURANCE"
)

// All monetary amounts are integer minor units (e.g. cents).

// Invoice status is always derived from paid_amount vs total_amount and is
// never set directly by a caller.
type Invoice struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	PatientID      uuid.UUID     `db:"patient_id" json:"patient_id"`
	SubtotalAmount int64         `db:"subtotal_amount" json:"subtotal_amount"`
	DiscountAmount int64         `db:"discount_amount" json:"discount_amount"`
	TaxAmount      int64         `db:"tax_amount" json:"tax_amount"`
	TotalAmount    int64         `db:"total_amount" json:"total_amount"`
	PaidAmount     int64         `db:"paid_amount" json:"paid_amount"`
	Status         InvoiceStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Remaining is the unpaid balance.
func (i *Invoice) Remaining() int64 {
	return i.TotalAmount - i.PaidAmount
}

// DeriveInvoiceStatus recomputes the status from the amounts. This is the
// only way an invoice status is ever produced.
func DeriveInvoiceStatus(paidAmount, totalAmount int64) InvoiceStatus {
	switch {
	case paidAmount >= totalAmount:
		return InvoiceStatusPaid
	case paidAmount > 0:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusUnpaid
	}
}

// InvoiceItem is one itemized charge on an invoice.
type InvoiceItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UnitAmount  int64     `db:"unit_amount" json:"unit_amount"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Payment is immutable once recorded; balances only ever grow by
// additional payments.
type Payment struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	InvoiceID  uuid.UUID   `db:"invoice_id" json:"invoice_id"`
	Amount     int64       `db:"amount" json:"amount"`
	Mode       PaymentMode `db:"mode" json:"mode"`
	ReceivedBy uuid.UUID   `db:"received_by" json:"received_by"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

type CreateInvoiceItemRequest struct {
	Description string `json:"description" binding:"required,max=512"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	UnitAmount  int64  `json:"unit_amount" binding:"required,min=0"`
}

type CreateInvoiceRequest struct {
	PatientID     uuid.UUID                  `json:"patient_id" binding:"required"`
	Items         []CreateInvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	DiscountType  DiscountType               `json:"discount_type" binding:"omitempty,oneof=FIXED PERCENT"`
	DiscountValue int64                      `json:"discount_value" binding:"min=0"`
	TaxRateBps    int64                      `json:"tax_rate_bps" binding:"min=0,max=10000"`
}

type RecordPaymentRequest struct {
	Amount int64       `json:"amount" binding:"required,min=1"`
	Mode   PaymentMode `json:"mode" binding:"required,oneof=CASH CARD TRANSFER INSURANCE"`
}
