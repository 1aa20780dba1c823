package api

import (
	"context"

	"stealthcompany.com/dentalapp/internal/identifier"
	"stealthcompany.com/dentalapp/internal/patient"
)

// PatientRepository is the slice of *patient.Repository the handlers use.
type PatientRepository interface {
	Create(ctx context.Context, in patient.PatientCreate) (*patient.Patient, error)
	Get(ctx context.Context, id identifier.ID) (*patient.Patient, bool, error)
	List(ctx context.Context, params patient.ListParams) ([]patient.Patient, error)
	Update(ctx context.Context, id identifier.ID, patch patient.PatientUpdate) (*patient.Patient, bool, error)
	Delete(ctx context.Context, id identifier.ID) (bool, error)
	Ping(ctx context.Context) error
}

// Response Types
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Messages
const (
	WelcomeMessage        = "Welcome to Dental App API"
	PatientDeletedMessage = "Patient deleted successfully"
	PatientNotFound       = "Patient not found"
)
