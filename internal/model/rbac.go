package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resource is a named category of protected data or action.
type Resource string

// Action is a named capability within a resource.
type Action string

// SuperRoleCode is granted every action on every resource implicitly and
// is never persisted as an explicit permission matrix.
const SuperRoleCode = "SUPER_ADMIN"

// Closed resource vocabulary. Permission writes are validated against this
// set; unknown tokens are rejected at the write boundary.
const (
	ResourcePatient        Resource = "PATIENT"
	ResourceAppointment    Resource = "APPOINTMENT"
	ResourceCasePersonal   Resource = "CASE_PERSONAL"
	ResourceCaseMedical    Resource = "CASE_MEDICAL"
	ResourceCaseExam       Resource = "CASE_EXAM"
	ResourceCaseDiagnosis  Resource = "CASE_DIAGNOSIS"
	ResourceCaseTreatment  Resource = "CASE_TREATMENT"
	ResourceCaseProcedure  Resource = "CASE_PROCEDURE"
	ResourceCaseNotes      Resource = "CASE_NOTES"
	ResourceBilling        Resource = "BILLING"
	ResourcePayment        Resource = "PAYMENT"
	ResourcePrescription   Resource = "PRESCRIPTION"
	ResourceImaging        Resource = "IMAGING"
	ResourceReports        Resource = "REPORTS"
	ResourceUserManagement Resource = "USER_MANAGEMENT"
	ResourceRoleManagement Resource = "ROLE_MANAGEMENT"
)

// Closed action vocabulary.
const (
	ActionView      Action = "VIEW"
	ActionCreate    Action = "CREATE"
	ActionEdit      Action = "EDIT"
	ActionDelete    Action = "DELETE"
	ActionComplete  Action = "COMPLETE"
	ActionFinancial Action = "FINANCIAL"
	ActionClinical  Action = "CLINICAL"
	ActionAdmin     Action = "ADMIN"
)

var validResources = map[Resource]struct{}{
	ResourcePatient:        {},
	ResourceAppointment:    {},
	ResourceCasePersonal:   {},
	ResourceCaseMedical:    {},
	ResourceCaseExam:       {},
	ResourceCaseDiagnosis:  {},
	ResourceCaseTreatment:  {},
	ResourceCaseProcedure:  {},
	ResourceCaseNotes:      {},
	ResourceBilling:        {},
	ResourcePayment:        {},
	ResourcePrescription:   {},
	ResourceImaging:        {},
	ResourceReports:        {},
	ResourceUserManagement: {},
	ResourceRoleManagement: {},
}

var validActions = map[Action]struct{}{
	ActionView:      {},
	ActionCreate:    {},
	ActionEdit:      {},
	ActionDelete:    {},
	ActionComplete:  {},
	ActionFinancial: {},
	ActionClinical:  {},
	ActionAdmin:     {},
}

func IsValidResource(r Resource) bool {
	_, ok := validResources[r]
	return ok
}

func IsValidAction(a Action) bool {
	_, ok := validActions[a]
	return ok
}

// PermissionSet maps each resource to the set of actions a role may
// perform on it. Stored as a JSONB column.
type PermissionSet map[Resource][]Action

// Has reports whether the set grants action on resource. A resource
// absent from the set is an empty set and grants nothing.
func (p PermissionSet) Has(resource Resource, action Action) bool {
	for _, a := range p[resource] {
		if a == action {
			return true
		}
	}
	return false
}

// Validate checks every key and value against the closed vocabularies and
// returns the first invalid token encountered.
func (p PermissionSet) Validate() error {
	for resource, actions := range p {
		if !IsValidResource(resource) {
			return fmt.Errorf("unknown resource %q", resource)
		}
		for _, action := range actions {
			if !IsValidAction(action) {
				return fmt.Errorf("unknown action %q", action)
			}
		}
	}
	return nil
}

func (p PermissionSet) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *PermissionSet) Scan(src interface{}) error {
	if src == nil {
		*p = PermissionSet{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into PermissionSet", src)
	}
	return json.Unmarshal(b, p)
}

// Role is a named permission matrix. System roles are permanently
// protected from mutation.
type Role struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Code         string        `db:"code" json:"code"`
	DisplayName  string        `db:"display_name" json:"display_name"`
	Permissions  PermissionSet `db:"permissions" json:"permissions"`
	IsSystemRole bool          `db:"is_system_role" json:"is_system_role"`
	IsActive     bool          `db:"is_active" json:"is_active"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Identity is the already-authenticated caller: resolved upstream,
// trusted once supplied.
type Identity struct {
	UserID   uuid.UUID `json:"user_id"`
	RoleCode string    `json:"role_code"`
}

// IsSuperRole reports whether the identity carries the super-role.
func (i Identity) IsSuperRole() bool {
	return i.RoleCode == SuperRoleCode
}

// NormalizeRoleCode upper-cases and trims a role code for the
// case-insensitive uniqueness rule.
func NormalizeRoleCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CreateRoleRequest struct {
	Code        string        `json:"code" binding:"required,rolecode,max=64"`
	DisplayName string        `json:"display_name" binding:"required,max=128"`
	Permissions PermissionSet `json:"permissions"`
}

type UpdateRoleRequest struct {
	DisplayName *string        `json:"display_name"`
	Permissions *PermissionSet `json:"permissions"`
}

type ReplacePermissionsRequest struct {
	Permissions PermissionSet `json:"permissions" binding:"required"`
}
