package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionSetHas(t *testing.T) {
	set := PermissionSet{
		ResourcePatient: {ActionView, ActionEdit},
	}

	assert.True(t, set.Has(ResourcePatient, ActionView))
	assert.False(t, set.Has(ResourcePatient, ActionDelete))
	// An absent resource grants nothing.
	assert.False(t, set.Has(ResourceBilling, ActionView))
	assert.False(t, PermissionSet(nil).Has(ResourcePatient, ActionView))
}

func TestPermissionSetValidate(t *testing.T) {
	valid := PermissionSet{
		ResourceAppointment: {ActionView, ActionCreate},
		ResourceBilling:     {ActionFinancial},
	}
	require.NoError(t, valid.Validate())

	err := PermissionSet{Resource("SPACESHIP"): {ActionView}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPACESHIP")

	err = PermissionSet{ResourcePatient: {Action("FLY")}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLY")
}

func TestNormalizeRoleCode(t *testing.T) {
	assert.Equal(t, "RECEPTIONIST", NormalizeRoleCode("  receptionist "))
	assert.Equal(t, "NURSE", NormalizeRoleCode("Nurse"))
}

func TestIsSuperRole(t *testing.T) {
	assert.True(t, Identity{RoleCode: SuperRoleCode}.IsSuperRole())
	assert.False(t, Identity{RoleCode: "ADMIN"}.IsSuperRole())
	// Matching is exact, not normalized.
	assert.False(t, Identity{RoleCode: "super_admin"}.IsSuperRole())
}
