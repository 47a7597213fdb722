package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	RoleRepository interface {
		Create(ctx context.Context, role *model.Role) error
		Get(ctx context.Context, id uuid.UUID) (*model.Role, error)
		GetByCode(ctx context.Context, code string) (*model.Role, error)
		Update(ctx context.Context, role *model.Role) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Role, error)
		ExistsByCode(ctx context.Context, code string) (bool, error)
	}

	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// ListActiveForDoctorDay returns the doctor's bookings inside
		// [dayStart, dayEnd) whose status still blocks the calendar.
		ListActiveForDoctorDay(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]*model.Appointment, error)
		// InsertIfNoOverlap atomically inserts the appointment unless an
		// active booking for the same doctor overlaps it. Returns false
		// without inserting when an overlap exists.
		InsertIfNoOverlap(ctx context.Context, apt *model.Appointment) (bool, error)
		// UpdateIfNoOverlap atomically applies the new schedule unless an
		// active booking other than this one overlaps it.
		UpdateIfNoOverlap(ctx context.Context, apt *model.Appointment) (bool, error)
		UpdateStatus(ctx context.Context, apt *model.Appointment) error
	}

	CaseSheetRepository interface {
		Create(ctx context.Context, sheet *model.CaseSheet) error
		Get(ctx context.Context, id uuid.UUID) (*model.CaseSheet, error)
		GetByPatient(ctx context.Context, patientID uuid.UUID) (*model.CaseSheet, error)
		UpdateSection(ctx context.Context, id uuid.UUID, section string, data model.SectionData) error
	}

	ProcedureRepository interface {
		Create(ctx context.Context, proc *model.Procedure) error
		Get(ctx context.Context, id uuid.UUID) (*model.Procedure, error)
		Update(ctx context.Context, proc *model.Procedure) error
		UpdateStatus(ctx context.Context, proc *model.Procedure) error
		ListByCaseSheet(ctx context.Context, caseSheetID uuid.UUID) ([]*model.Procedure, error)
	}

	BillingRepository interface {
		// CreateInvoice persists the invoice and its items in one
		// transaction.
		CreateInvoice(ctx context.Context, invoice *model.Invoice, items []*model.InvoiceItem) error
		GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
		ListInvoices(ctx context.Context, patientID uuid.UUID) ([]*model.Invoice, error)
		ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*model.InvoiceItem, error)
		// ApplyPayment increments paid_amount and re-derives status in a
		// single conditional update, inserting the payment row in the
		// same transaction. Returns false without changes when the
		// invoice is already settled or the amount exceeds the balance.
		ApplyPayment(ctx context.Context, payment *model.Payment) (*model.Invoice, bool, error)
		ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*model.Payment, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context) ([]*model.User, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	}
)
