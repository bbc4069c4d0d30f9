package services

import (
	"context"
	"time"

	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
)

// PatientAvailabilityChecker decides whether a patient's existing appointments
// overlap a proposed time window
type PatientAvailabilityChecker struct {
	appointments repositories.AppointmentRepository
}

// NewPatientAvailabilityChecker creates a new checker
func NewPatientAvailabilityChecker(appointments repositories.AppointmentRepository) *PatientAvailabilityChecker {
	return &PatientAvailabilityChecker{appointments: appointments}
}

// IsAvailable reports whether the patient has no conflicting appointment in
// [start, start+duration). Cancelled appointments never conflict.
func (c *PatientAvailabilityChecker) IsAvailable(ctx context.Context, patientID string, start time.Time, duration time.Duration) (bool, error) {
	return c.IsAvailableExcluding(ctx, patientID, start, duration, "")
}

// IsAvailableExcluding is IsAvailable ignoring one appointment id, used when
// rescheduling so the appointment does not conflict with itself
func (c *PatientAvailabilityChecker) IsAvailableExcluding(ctx context.Context, patientID string, start time.Time, duration time.Duration, excludeID string) (bool, error) {
	existing, err := c.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return false, err
	}
	for _, ap := range existing {
		if ap.ID == excludeID {
			continue
		}
		if ap.OverlapsWith(start, duration) {
			return false, nil
		}
	}
	return true, nil
}
