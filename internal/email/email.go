package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/clinicops/clinic-api/internal/config"
	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/repository"
	"github.com/clinicops/clinic-api/pkg/logger"
)

// Sender delivers appointment mail over SMTP, resolving the recipient
// from the patient record. When disabled in config it degrades to a
// no-op so local environments need no mail server.
type Sender struct {
	cfg      config.EmailConfig
	dialer   *gomail.Dialer
	patients repository.PatientRepository
	logger   *logger.Logger
}

func NewSender(cfg config.EmailConfig, patients repository.PatientRepository, logger *logger.Logger) *Sender {
	var dialer *gomail.Dialer
	if cfg.Enabled {
		dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return &Sender{
		cfg:      cfg,
		dialer:   dialer,
		patients: patients,
		logger:   logger,
	}
}

func (s *Sender) AppointmentBooked(ctx context.Context, apt *model.Appointment) error {
	subject := "Appointment confirmed"
	body := fmt.Sprintf(
		"Your appointment on %s (%d minutes) has been booked.",
		apt.StartTime.Format("Mon, 2 Jan 2006 15:04 MST"),
		apt.DurationMinutes,
	)
	return s.sendToPatient(ctx, apt.PatientID, subject, body)
}

func (s *Sender) AppointmentCancelled(ctx context.Context, apt *model.Appointment) error {
	subject := "Appointment cancelled"
	body := fmt.Sprintf(
		"Your appointment on %s has been cancelled.",
		apt.StartTime.Format("Mon, 2 Jan 2006 15:04 MST"),
	)
	return s.sendToPatient(ctx, apt.PatientID, subject, body)
}

func (s *Sender) sendToPatient(ctx context.Context, patientID uuid.UUID, subject, body string) error {
	if !s.cfg.Enabled {
		s.logger.Debug("email disabled, skipping send", "subject", subject)
		return nil
	}

	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if patient.Email == "" {
		s.logger.Debug("patient has no email on file, skipping send",
			"patient_id", patient.ID)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", patient.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
