package repositories

import (
	"context"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
)

// ProfessionalRepository defines the interface for professional data operations.
//
// Update performs an optimistic-concurrency check against the professional's
// agenda version: the write succeeds only when the stored version still equals
// the version the entity was loaded with, and bumps it by one. A lost race
// surfaces as a CONFLICT error so the caller can retry the booking.
type ProfessionalRepository interface {
	// Create creates a new professional
	Create(ctx context.Context, professional *entities.Professional) error

	// Update replaces the professional, including its agenda, under the
	// version check described above
	Update(ctx context.Context, professional *entities.Professional) error

	// GetByID retrieves a professional by ID
	GetByID(ctx context.Context, id string) (*entities.Professional, error)

	// GetByUserID retrieves a professional by the owning user id
	GetByUserID(ctx context.Context, userID string) (*entities.Professional, error)

	// ListAll retrieves every professional, including soft-deleted ones
	ListAll(ctx context.Context) ([]*entities.Professional, error)

	// ListActive retrieves active, non-deleted professionals
	ListActive(ctx context.Context) ([]*entities.Professional, error)
}
