package statemachine

import (
	"github.com/clinicops/clinic-api/pkg/errors"
)

// Table is the exhaustive directed graph of allowed status changes for one
// entity type. States absent from the table have no outgoing edges.
type Table map[string][]string

// Allows reports whether the table has an edge from one state to another.
func (t Table) Allows(from, to string) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing edges.
func (t Table) IsTerminal(state string) bool {
	return len(t[state]) == 0
}

// Machine evaluates state transitions against per-entity-type tables.
// Tables are registered once at construction and never mutated, so the
// machine is safe for concurrent use.
type Machine struct {
	tables map[string]Table
}

func New() *Machine {
	return &Machine{tables: make(map[string]Table)}
}

// Register installs the transition table for an entity type.
func (m *Machine) Register(entityType string, table Table) {
	m.tables[entityType] = table
}

// CanTransition reports whether the requested transition is allowed.
// A transition to the current state is always allowed as an idempotent
// no-op, without consulting the table.
func (m *Machine) CanTransition(entityType, from, to string) bool {
	if from == to {
		return true
	}
	table, ok := m.tables[entityType]
	if !ok {
		return false
	}
	return table.Allows(from, to)
}

// Validate returns an invalid-transition error naming both states when the
// requested transition is not allowed.
func (m *Machine) Validate(entityType, from, to string) error {
	if !m.CanTransition(entityType, from, to) {
		return errors.InvalidTransition(from, to)
	}
	return nil
}

// IsTerminal reports whether the state has no outgoing edges for the
// entity type.
func (m *Machine) IsTerminal(entityType, state string) bool {
	table, ok := m.tables[entityType]
	if !ok {
		return true
	}
	return table.IsTerminal(state)
}
