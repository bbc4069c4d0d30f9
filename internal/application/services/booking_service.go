package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/providers"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

// BookingService is the top-level booking use case. Every write path follows
// the same saga shape: validate, price, persist appointment records, block
// agenda slots, persist the professional; any persistence failure unwinds the
// completed steps and surfaces as a state conflict the caller retries from
// scratch. The per-professional lock plus the agenda version check keep two
// concurrent bookings from both taking the same slot.
type BookingService struct {
	appointments  repositories.AppointmentRepository
	professionals repositories.ProfessionalRepository
	patients      repositories.PatientRepository
	resolver      *PromotionResolver
	agenda        *AgendaService
	availability  *PatientAvailabilityChecker
	locker        providers.ProfessionalLocker
	notifier      providers.NotificationDispatcher
	logger        zerolog.Logger
	now           func() time.Time
}

// NewBookingService creates a new booking service; now may be nil
func NewBookingService(
	appointments repositories.AppointmentRepository,
	professionals repositories.ProfessionalRepository,
	patients repositories.PatientRepository,
	resolver *PromotionResolver,
	agenda *AgendaService,
	availability *PatientAvailabilityChecker,
	locker providers.ProfessionalLocker,
	notifier providers.NotificationDispatcher,
	logger zerolog.Logger,
	now func() time.Time,
) *BookingService {
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		appointments:  appointments,
		professionals: professionals,
		patients:      patients,
		resolver:      resolver,
		agenda:        agenda,
		availability:  availability,
		locker:        locker,
		notifier:      notifier,
		logger:        logger,
		now:           now,
	}
}

// bookingMode distinguishes the three booking flows; only the double flow
// refuses patients already holding an unscheduled credit
type bookingMode int

const (
	modeSingle bookingMode = iota
	modeDouble
	modePackage
)

// BookingRequest describes a booking of any mode
type BookingRequest struct {
	Actor          entities.Actor
	PatientID      string
	ProfessionalID string
	LocationID     string
	StartAt        time.Time

	// DurationMin falls back to the professional's default when zero
	DurationMin int

	// Code is an optional promotional code
	Code string

	// PackagePromotionID and PackageSize are package-mode only
	PackagePromotionID string
	PackageSize        int
}

// BookingResult is the success payload of a booking
type BookingResult struct {
	Scheduled       *entities.Appointment
	Credits         []*entities.Appointment
	PromotionIDs    []string
	DiscountPercent float64
}

// BookSingle books one scheduled appointment
func (s *BookingService) BookSingle(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	return s.book(ctx, req, modeSingle, 1)
}

// BookDouble books one scheduled appointment plus one unscheduled credit for
// the second visit
func (s *BookingService) BookDouble(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	return s.book(ctx, req, modeDouble, 2)
}

// BookPackage books one scheduled appointment plus PackageSize-1 credits.
// The requested package promotion must come out of promotion resolution,
// otherwise the caller would get a package price without qualifying for it.
func (s *BookingService) BookPackage(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if req.PackageSize < 2 {
		return nil, apperrors.NewValidationError("package size must be at least 2")
	}
	if req.PackagePromotionID == "" {
		return nil, apperrors.NewValidationError("package promotion id is required")
	}
	return s.book(ctx, req, modePackage, req.PackageSize)
}

func (s *BookingService) book(ctx context.Context, req BookingRequest, mode bookingMode, count int) (*BookingResult, error) {
	now := s.now()

	patient, err := s.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingFor(req.Actor, patient); err != nil {
		return nil, err
	}

	professional, err := s.professionals.GetByID(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if !professional.IsBookable() {
		return nil, apperrors.NewConflictError("professional is not accepting bookings")
	}

	start := req.StartAt.UTC()
	if !start.After(now) {
		return nil, apperrors.NewValidationError("appointment must be in the future")
	}

	duration := time.Duration(req.DurationMin) * time.Minute
	if req.DurationMin == 0 {
		duration = professional.DefaultDuration()
	}
	if duration <= 0 {
		return nil, apperrors.NewValidationError("appointment duration must be positive")
	}

	if err := s.checkExistingBookings(ctx, patient.ID, mode, now); err != nil {
		return nil, err
	}

	if !professional.WorksAt(start, start.Add(duration), req.LocationID) {
		return nil, apperrors.NewConflictError("professional does not work at the requested location and time")
	}

	var result *BookingResult
	err = s.locker.WithProfessionalLock(ctx, professional.ID, func(lockCtx context.Context) error {
		// reload inside the critical section so the agenda reflects any
		// booking that won the lock before us
		fresh, err := s.professionals.GetByID(lockCtx, professional.ID)
		if err != nil {
			return err
		}

		if !fresh.Agenda.IsAvailable(start, duration, s.agenda.SlotSize()) {
			return apperrors.NewConflictError("the requested slot is not available")
		}

		free, err := s.availability.IsAvailable(lockCtx, patient.ID, start, duration)
		if err != nil {
			return err
		}
		if !free {
			return apperrors.NewConflictError("patient already has an appointment in this window")
		}

		resolution, err := s.resolver.Resolve(lockCtx, PromotionInput{
			Patient:           patient,
			Professional:      fresh,
			ScheduledAt:       start,
			SimultaneousCount: count,
			Code:              req.Code,
		})
		if err != nil {
			return err
		}

		if req.PackagePromotionID != "" && !containsID(resolution.PromotionIDs, req.PackagePromotionID) {
			return apperrors.NewConflictError("booking does not qualify for the requested package promotion")
		}

		result, err = s.persistBooking(lockCtx, patient, fresh, start, duration, count, req.Code, resolution, now)
		return err
	})
	if err != nil {
		if errors.Is(err, providers.ErrLockNotAcquired) {
			return nil, apperrors.NewConflictError("professional is being booked concurrently, retry")
		}
		return nil, err
	}

	return result, nil
}

// persistBooking runs the write phase under the professional lock. Each
// persisted step registers its undo; the first failure unwinds everything
// already written and resurfaces as a state conflict.
func (s *BookingService) persistBooking(
	ctx context.Context,
	patient *entities.Patient,
	professional *entities.Professional,
	start time.Time,
	duration time.Duration,
	count int,
	code string,
	resolution *PromotionResolution,
	now time.Time,
) (*BookingResult, error) {
	comp := &compensation{}
	fail := func(msg string, err error) error {
		comp.run(ctx, s.logger)
		return apperrors.NewConflictErrorWithCause(msg, err)
	}

	basePrice := professional.BasePrice
	finalPrice := entities.FinalPrice(basePrice, resolution.DiscountPercent)
	durationMin := int(duration / time.Minute)

	scheduled := &entities.Appointment{
		ID:                  uuid.New().String(),
		PatientID:           patient.ID,
		ProfessionalID:      professional.ID,
		ScheduledAt:         &start,
		Status:              entities.AppointmentStatusScheduled,
		BasePrice:           basePrice,
		FinalPrice:          finalPrice,
		DiscountPercent:     resolution.DiscountPercent,
		DurationMin:         durationMin,
		AppliedPromotionIDs: resolution.PromotionIDs,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.appointments.Create(ctx, scheduled); err != nil {
		return nil, fail("booking could not be persisted", err)
	}
	comp.add("delete scheduled appointment", func(ctx context.Context) error {
		return s.appointments.Delete(ctx, scheduled.ID)
	})

	credits := make([]*entities.Appointment, 0, count-1)
	for i := 1; i < count; i++ {
		credit := &entities.Appointment{
			ID:                  uuid.New().String(),
			PatientID:           patient.ID,
			ProfessionalID:      professional.ID,
			Status:              entities.AppointmentStatusPending,
			BasePrice:           basePrice,
			FinalPrice:          finalPrice,
			DiscountPercent:     resolution.DiscountPercent,
			DurationMin:         durationMin,
			AppliedPromotionIDs: resolution.PromotionIDs,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.appointments.Create(ctx, credit); err != nil {
			return nil, fail("booking could not be persisted", err)
		}
		id := credit.ID
		comp.add("delete credit appointment", func(ctx context.Context) error {
			return s.appointments.Delete(ctx, id)
		})
		credits = append(credits, credit)
	}

	if resolution.CodePromotionID != "" {
		previousCodes := append([]string(nil), patient.UsedCodes...)
		patient.RecordCodeUse(code)
		patient.UpdatedAt = now
		if err := s.patients.Update(ctx, patient); err != nil {
			patient.UsedCodes = previousCodes
			return nil, fail("booking could not be persisted", err)
		}
		comp.add("restore patient code usage", func(ctx context.Context) error {
			patient.UsedCodes = previousCodes
			return s.patients.Update(ctx, patient)
		})
	}

	professional.Agenda.Block(start, duration, s.agenda.SlotSize())
	if err := s.professionals.Update(ctx, professional); err != nil {
		professional.Agenda.Release(start, duration, s.agenda.SlotSize())
		return nil, fail("slot could not be reserved", err)
	}

	return &BookingResult{
		Scheduled:       scheduled,
		Credits:         credits,
		PromotionIDs:    resolution.PromotionIDs,
		DiscountPercent: resolution.DiscountPercent,
	}, nil
}

// checkExistingBookings rejects bookings the patient cannot hold: a future
// scheduled appointment always blocks a new booking, and the double flow also
// refuses patients holding any unscheduled credit.
func (s *BookingService) checkExistingBookings(ctx context.Context, patientID string, mode bookingMode, now time.Time) error {
	existing, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	for _, ap := range existing {
		if ap.Status == entities.AppointmentStatusScheduled && ap.ScheduledAt != nil && ap.ScheduledAt.After(now) {
			return apperrors.NewConflictError("patient already holds a future appointment")
		}
		if mode == modeDouble && ap.IsCredit() {
			return apperrors.NewConflictError("patient already holds an unscheduled credit")
		}
	}
	return nil
}

// Reschedule gives a pending credit its instant, or moves a scheduled
// appointment to a new one. Availability is fully re-validated; the old slot
// is released and the new one blocked.
func (s *BookingService) Reschedule(ctx context.Context, actor entities.Actor, appointmentID string, newStart time.Time, locationID string) (*entities.Appointment, error) {
	now := s.now()
	newStart = newStart.UTC()

	ap, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.GetByID(ctx, ap.PatientID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingFor(actor, patient); err != nil {
		return nil, err
	}
	if ap.IsTerminal() || ap.Status == entities.AppointmentStatusNoShow {
		return nil, apperrors.NewConflictError("appointment cannot be rescheduled in its current state")
	}
	if !newStart.After(now) {
		return nil, apperrors.NewValidationError("appointment must be in the future")
	}

	duration := ap.Duration()
	oldStart := ap.ScheduledAt

	err = s.locker.WithProfessionalLock(ctx, ap.ProfessionalID, func(lockCtx context.Context) error {
		professional, err := s.professionals.GetByID(lockCtx, ap.ProfessionalID)
		if err != nil {
			return err
		}
		if !professional.WorksAt(newStart, newStart.Add(duration), locationID) {
			return apperrors.NewConflictError("professional does not work at the requested location and time")
		}

		slotSize := s.agenda.SlotSize()
		if oldStart != nil {
			professional.Agenda.Release(*oldStart, duration, slotSize)
		}
		if !professional.Agenda.IsAvailable(newStart, duration, slotSize) {
			return apperrors.NewConflictError("the requested slot is not available")
		}

		free, err := s.availability.IsAvailableExcluding(lockCtx, patient.ID, newStart, duration, ap.ID)
		if err != nil {
			return err
		}
		if !free {
			return apperrors.NewConflictError("patient already has an appointment in this window")
		}

		comp := &compensation{}

		previous := *ap
		if err := ap.Schedule(newStart, now); err != nil {
			return err
		}
		if err := s.appointments.Update(lockCtx, ap); err != nil {
			*ap = previous
			return apperrors.NewConflictErrorWithCause("reschedule could not be persisted", err)
		}
		comp.add("restore appointment instant", func(ctx context.Context) error {
			restored := previous
			return s.appointments.Update(ctx, &restored)
		})

		professional.Agenda.Block(newStart, duration, slotSize)
		if err := s.professionals.Update(lockCtx, professional); err != nil {
			comp.run(lockCtx, s.logger)
			return apperrors.NewConflictErrorWithCause("slot could not be reserved", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, providers.ErrLockNotAcquired) {
			return nil, apperrors.NewConflictError("professional is being booked concurrently, retry")
		}
		return nil, err
	}
	return ap, nil
}

// Cancel cancels a pending or scheduled appointment and releases its slot.
// The cancellation notice is fire-and-forget.
func (s *BookingService) Cancel(ctx context.Context, actor entities.Actor, appointmentID string) (*entities.Appointment, error) {
	now := s.now()

	ap, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.GetByID(ctx, ap.PatientID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingFor(actor, patient); err != nil {
		return nil, err
	}

	previous := *ap
	if err := ap.Cancel(now); err != nil {
		return nil, err
	}
	if err := s.appointments.Update(ctx, ap); err != nil {
		*ap = previous
		return nil, apperrors.NewConflictErrorWithCause("cancellation could not be persisted", err)
	}

	if previous.ScheduledAt != nil {
		err = s.locker.WithProfessionalLock(ctx, ap.ProfessionalID, func(lockCtx context.Context) error {
			professional, err := s.professionals.GetByID(lockCtx, ap.ProfessionalID)
			if err != nil {
				return err
			}
			professional.Agenda.Release(*previous.ScheduledAt, ap.Duration(), s.agenda.SlotSize())
			return s.professionals.Update(lockCtx, professional)
		})
		if err != nil {
			comp := &compensation{}
			comp.add("restore cancelled appointment", func(ctx context.Context) error {
				restored := previous
				return s.appointments.Update(ctx, &restored)
			})
			comp.run(ctx, s.logger)
			return nil, apperrors.NewConflictErrorWithCause("slot could not be released", err)
		}
	}

	if notifyErr := s.notifier.AppointmentCancelled(ctx, ap); notifyErr != nil {
		s.logger.Warn().Err(notifyErr).Str("appointment_id", ap.ID).Msg("cancellation notice failed")
	}

	return ap, nil
}

// Finalize closes a scheduled appointment as completed or no_show.
// Only staff and professionals may finalize.
func (s *BookingService) Finalize(ctx context.Context, actor entities.Actor, appointmentID string, status entities.AppointmentStatus) (*entities.Appointment, error) {
	if actor.Role != entities.RoleStaff && actor.Role != entities.RoleProfessional {
		return nil, apperrors.NewUnauthorizedError("only staff or professionals may finalize appointments")
	}

	ap, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := ap.Finalize(status, s.now()); err != nil {
		return nil, err
	}
	if err := s.appointments.Update(ctx, ap); err != nil {
		return nil, apperrors.NewConflictErrorWithCause("finalization could not be persisted", err)
	}
	return ap, nil
}

// ListByProfessional lists a professional's appointments
func (s *BookingService) ListByProfessional(ctx context.Context, actor entities.Actor, professionalID string) ([]*entities.Appointment, error) {
	if actor.Role == entities.RolePatient {
		return nil, apperrors.NewUnauthorizedError("patients may not list a professional's appointments")
	}
	return s.appointments.ListByProfessional(ctx, professionalID)
}

// ListByPatient lists a patient's appointments
func (s *BookingService) ListByPatient(ctx context.Context, actor entities.Actor, patientID string) ([]*entities.Appointment, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingFor(actor, patient); err != nil {
		return nil, err
	}
	return s.appointments.ListByPatient(ctx, patientID)
}

// authorizeBookingFor enforces the booking role matrix: patients act only on
// their own record, staff and professionals may act for others
func authorizeBookingFor(actor entities.Actor, patient *entities.Patient) error {
	switch actor.Role {
	case entities.RolePatient:
		if actor.UserID != patient.UserID {
			return apperrors.NewUnauthorizedError("patients may only book for themselves")
		}
		return nil
	case entities.RoleProfessional, entities.RoleStaff:
		return nil
	default:
		return apperrors.NewUnauthorizedError("unknown actor role")
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
