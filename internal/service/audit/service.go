package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-api/internal/model"
	"github.com/clinicops/clinic-api/internal/repository"
	"github.com/clinicops/clinic-api/pkg/logger"
)

// Service records every state-changing call with the acting user, entity
// type/id, and old/new state, and stages a matching outbox event for the
// broker. Audit failures are logged, never propagated: a failed audit
// write must not roll back the domain change it describes.
type Service struct {
	repo       repository.AuditRepository
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewService(repo repository.AuditRepository, outboxRepo repository.OutboxRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

type LogOptions struct {
	OldState  string
	NewState  string
	Changes   interface{}
	Metadata  interface{}
	IPAddress string
	UserAgent string
}

// Log creates an audit log entry and an outbox event.
func (s *Service) Log(ctx context.Context, userID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	if opts == nil {
		opts = &LogOptions{}
	}

	var changes, metadata json.RawMessage
	if opts.Changes != nil {
		b, err := json.Marshal(opts.Changes)
		if err != nil {
			s.logger.Error(err, "failed to marshal audit changes")
		} else {
			changes = b
		}
	}
	if opts.Metadata != nil {
		b, err := json.Marshal(opts.Metadata)
		if err != nil {
			s.logger.Error(err, "failed to marshal audit metadata")
		} else {
			metadata = b
		}
	}

	entry := &model.AuditLog{
		ID:         uuid.New(),
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldState:   opts.OldState,
		NewState:   opts.NewState,
		Changes:    changes,
		Metadata:   metadata,
		IPAddress:  opts.IPAddress,
		UserAgent:  opts.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"entity_type", entityType, "action", action)
	}

	s.stageEvent(ctx, entry)
}

func (s *Service) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) stageEvent(ctx context.Context, entry *model.AuditLog) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error(err, "failed to marshal outbox payload")
		return
	}

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: fmt.Sprintf("%s_%s", strings.ToUpper(entry.EntityType), strings.ToUpper(entry.Action)),
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to stage outbox event",
			"event_type", event.EventType)
	}
}
