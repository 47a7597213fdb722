package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records one state-changing call with enough detail for the
// audit collaborator to log without re-deriving anything: acting user,
// entity type and id, old and new state.
type AuditLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID       `db:"entity_id" json:"entity_id"`
	OldState   string          `db:"old_state" json:"old_state,omitempty"`
	NewState   string          `db:"new_state" json:"new_state,omitempty"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string          `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
