package entities

import (
	"time"

	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	// AppointmentStatusPending marks an unscheduled package credit
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// Appointment represents a booked or pre-paid visit. ScheduledAt is nil for
// package credits that have not been scheduled yet.
type Appointment struct {
	ID                  string            `json:"id" db:"id"`
	PatientID           string            `json:"patient_id" db:"patient_id"`
	ProfessionalID      string            `json:"professional_id" db:"professional_id"`
	ScheduledAt         *time.Time        `json:"scheduled_at" db:"scheduled_at"`
	Status              AppointmentStatus `json:"status" db:"status"`
	BasePrice           float64           `json:"base_price" db:"base_price"`
	FinalPrice          float64           `json:"final_price" db:"final_price"`
	DiscountPercent     float64           `json:"discount_percent" db:"discount_percent"`
	DurationMin         int               `json:"duration_min" db:"duration_min"`
	AppliedPromotionIDs []string          `json:"applied_promotion_ids"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// FinalPrice computes the price after a percentage discount
func FinalPrice(basePrice, discountPercent float64) float64 {
	return basePrice * (1 - discountPercent/100)
}

// Duration returns the appointment length
func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMin) * time.Minute
}

// End returns the end instant of a scheduled appointment, or zero when unscheduled
func (a *Appointment) End() time.Time {
	if a.ScheduledAt == nil {
		return time.Time{}
	}
	return a.ScheduledAt.Add(a.Duration())
}

// IsTerminal reports whether the appointment can no longer transition
func (a *Appointment) IsTerminal() bool {
	return a.Status == AppointmentStatusCancelled || a.Status == AppointmentStatusCompleted
}

// IsCredit reports whether this is an unscheduled package credit
func (a *Appointment) IsCredit() bool {
	return a.Status == AppointmentStatusPending && a.ScheduledAt == nil
}

// Schedule moves a pending credit to scheduled, or moves a scheduled
// appointment to a new instant (reschedule)
func (a *Appointment) Schedule(at time.Time, now time.Time) error {
	if a.Status != AppointmentStatusPending && a.Status != AppointmentStatusScheduled {
		return apperrors.NewConflictError("appointment cannot be scheduled in its current state")
	}
	at = at.UTC()
	a.ScheduledAt = &at
	a.Status = AppointmentStatusScheduled
	a.UpdatedAt = now
	return nil
}

// Cancel transitions a pending or scheduled appointment to cancelled
func (a *Appointment) Cancel(now time.Time) error {
	if a.Status != AppointmentStatusScheduled && a.Status != AppointmentStatusPending {
		return apperrors.NewConflictError("appointment cannot be cancelled in its current state")
	}
	a.Status = AppointmentStatusCancelled
	a.UpdatedAt = now
	return nil
}

// Finalize closes a scheduled appointment as completed or no-show
func (a *Appointment) Finalize(status AppointmentStatus, now time.Time) error {
	if status != AppointmentStatusCompleted && status != AppointmentStatusNoShow {
		return apperrors.NewValidationError("finalize status must be completed or no_show")
	}
	if a.Status != AppointmentStatusScheduled {
		return apperrors.NewConflictError("only scheduled appointments can be finalized")
	}
	a.Status = status
	a.UpdatedAt = now
	return nil
}

// OverlapsWith reports whether a scheduled, non-cancelled appointment overlaps
// the half-open window [start, start+duration)
func (a *Appointment) OverlapsWith(start time.Time, duration time.Duration) bool {
	if a.ScheduledAt == nil || a.Status == AppointmentStatusCancelled {
		return false
	}
	end := start.Add(duration)
	return start.Before(a.End()) && end.After(*a.ScheduledAt)
}
