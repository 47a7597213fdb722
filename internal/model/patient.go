package model

import (
	"time"
)

// Patient holds demographics only; clinical data lives on the case sheet.
type Patient struct {
	Base
	Name        string     `db:"name" json:"name"`
	Email       string     `db:"email" json:"email,omitempty"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string     `db:"gender" json:"gender,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	Status      string     `db:"status" json:"status"`
}

type CreatePatientRequest struct {
	Name        string     `json:"name" binding:"required,max=256"`
	Email       string     `json:"email" binding:"omitempty,email"`
	Phone       string     `json:"phone" binding:"omitempty,max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" binding:"omitempty,max=32"`
	Address     string     `json:"address" binding:"omitempty,max=1024"`
}

type UpdatePatientRequest struct {
	Name        *string    `json:"name" binding:"omitempty,max=256"`
	Email       *string    `json:"email" binding:"omitempty,email"`
	Phone       *string    `json:"phone" binding:"omitempty,max=32"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *string    `json:"gender" binding:"omitempty,max=32"`
	Address     *string    `json:"address" binding:"omitempty,max=1024"`
}

type PatientFilters struct {
	SearchTerm string
	Status     string
	Pagination
}
