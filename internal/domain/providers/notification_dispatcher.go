package providers

import (
	"context"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
)

// NotificationDispatcher sends fire-and-forget notifications. Services call it
// after the primary operation succeeded and never fail that operation when
// dispatch fails; errors are for logging only.
type NotificationDispatcher interface {
	// PatientMarkedInactive notifies a patient flagged inactive by the
	// maintenance job
	PatientMarkedInactive(ctx context.Context, patient *entities.Patient) error

	// AppointmentCancelled notifies the patient of a cancelled appointment
	AppointmentCancelled(ctx context.Context, appointment *entities.Appointment) error
}
