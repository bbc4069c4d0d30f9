package repositories

import (
	"context"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations
type PatientRepository interface {
	// Create creates a new patient
	Create(ctx context.Context, patient *entities.Patient) error

	// Update replaces a patient
	Update(ctx context.Context, patient *entities.Patient) error

	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id string) (*entities.Patient, error)

	// GetByUserID retrieves a patient by the owning user id
	GetByUserID(ctx context.Context, userID string) (*entities.Patient, error)

	// ListAll retrieves every patient
	ListAll(ctx context.Context) ([]*entities.Patient, error)
}
