package repositories

import (
	"context"
	"time"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// Create creates a new appointment
	Create(ctx context.Context, appointment *entities.Appointment) error

	// Update replaces an appointment
	Update(ctx context.Context, appointment *entities.Appointment) error

	// Delete removes an appointment by id, used only by booking compensation
	Delete(ctx context.Context, id string) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// ListByPatient retrieves all appointments of a patient
	ListByPatient(ctx context.Context, patientID string) ([]*entities.Appointment, error)

	// ListByProfessional retrieves all appointments of a professional
	ListByProfessional(ctx context.Context, professionalID string) ([]*entities.Appointment, error)

	// ListByDateRange retrieves scheduled appointments inside [from, to)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*entities.Appointment, error)
}
