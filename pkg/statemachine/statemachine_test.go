package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicops/clinic-api/pkg/errors"
)

func testMachine() *Machine {
	m := New()
	m.Register("appointment", Table{
		"BOOKED":       {"CHECKED_IN", "CANCELLED", "NO_SHOW"},
		"CHECKED_IN":   {"IN_TREATMENT", "CANCELLED"},
		"IN_TREATMENT": {"COMPLETED"},
	})
	return m
}

func TestCanTransition(t *testing.T) {
	m := testMachine()

	tests := []struct {
		from, to string
		want     bool
	}{
		{"BOOKED", "CHECKED_IN", true},
		{"BOOKED", "CANCELLED", true},
		{"BOOKED", "NO_SHOW", true},
		{"BOOKED", "COMPLETED", false},
		{"BOOKED", "IN_TREATMENT", false},
		{"CHECKED_IN", "IN_TREATMENT", true},
		{"CHECKED_IN", "CANCELLED", true},
		{"CHECKED_IN", "NO_SHOW", false},
		{"IN_TREATMENT", "COMPLETED", true},
		{"IN_TREATMENT", "CANCELLED", false},
		{"COMPLETED", "BOOKED", false},
		{"CANCELLED", "BOOKED", false},
		{"NO_SHOW", "BOOKED", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.CanTransition("appointment", tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestSameStateIsNoOp(t *testing.T) {
	m := testMachine()

	for _, state := range []string{"BOOKED", "CHECKED_IN", "IN_TREATMENT", "COMPLETED", "CANCELLED", "NO_SHOW"} {
		assert.True(t, m.CanTransition("appointment", state, state), state)
	}
}

func TestValidateError(t *testing.T) {
	m := testMachine()

	err := m.Validate("appointment", "BOOKED", "COMPLETED")
	assert.Error(t, err)
	assert.Equal(t, errors.ErrInvalidTransition, errors.Kind(err))
	assert.Contains(t, err.Error(), "BOOKED")
	assert.Contains(t, err.Error(), "COMPLETED")

	assert.NoError(t, m.Validate("appointment", "BOOKED", "CHECKED_IN"))
}

func TestIsTerminal(t *testing.T) {
	m := testMachine()

	assert.False(t, m.IsTerminal("appointment", "BOOKED"))
	assert.False(t, m.IsTerminal("appointment", "CHECKED_IN"))
	assert.True(t, m.IsTerminal("appointment", "COMPLETED"))
	assert.True(t, m.IsTerminal("appointment", "CANCELLED"))
	assert.True(t, m.IsTerminal("appointment", "NO_SHOW"))
}

func TestUnknownEntityType(t *testing.T) {
	m := testMachine()

	assert.False(t, m.CanTransition("visit", "A", "B"))
	assert.True(t, m.IsTerminal("visit", "A"))
}
