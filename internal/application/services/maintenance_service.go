package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/providers"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	"github.com/agendaplus/scheduling-backend/pkg/retry"
)

// MaintenanceService is the daily batch job: it rolls the generated
// availability horizon forward for every active professional and flags
// patients inactive after the loyalty window. Items fail independently; a
// broken professional or patient is logged and the batch continues.
type MaintenanceService struct {
	professionals repositories.ProfessionalRepository
	patients      repositories.PatientRepository
	appointments  repositories.AppointmentRepository
	agenda        *AgendaService
	locker        providers.ProfessionalLocker
	notifier      providers.NotificationDispatcher
	logger        zerolog.Logger
	horizon       time.Duration
	loyaltyWindow time.Duration
	now           func() time.Time
}

// NewMaintenanceService creates a new maintenance service; now may be nil
func NewMaintenanceService(
	professionals repositories.ProfessionalRepository,
	patients repositories.PatientRepository,
	appointments repositories.AppointmentRepository,
	agenda *AgendaService,
	locker providers.ProfessionalLocker,
	notifier providers.NotificationDispatcher,
	logger zerolog.Logger,
	horizon time.Duration,
	loyaltyWindowDays int,
	now func() time.Time,
) *MaintenanceService {
	if loyaltyWindowDays <= 0 {
		loyaltyWindowDays = 90
	}
	if now == nil {
		now = time.Now
	}
	return &MaintenanceService{
		professionals: professionals,
		patients:      patients,
		appointments:  appointments,
		agenda:        agenda,
		locker:        locker,
		notifier:      notifier,
		logger:        logger,
		horizon:       horizon,
		loyaltyWindow: time.Duration(loyaltyWindowDays) * 24 * time.Hour,
		now:           now,
	}
}

// Run executes both maintenance passes
func (s *MaintenanceService) Run(ctx context.Context) error {
	if err := s.ExtendAgendaHorizons(ctx); err != nil {
		return err
	}
	return s.FlagInactivePatients(ctx)
}

// ExtendAgendaHorizons keeps every active professional's generated
// availability at a constant lookahead: the day entering the horizon is
// generated and slots that fell behind today are trimmed. Each agenda is
// rewritten under the professional's booking lock; a held lock counts as a
// retryable failure.
func (s *MaintenanceService) ExtendAgendaHorizons(ctx context.Context) error {
	professionals, err := s.professionals.ListActive(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	horizonDay := dayOf(now.Add(s.horizon))
	slotSize := s.agenda.SlotSize()

	for _, p := range professionals {
		p := p
		err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}, func() error {
			return s.locker.WithProfessionalLock(ctx, p.ID, func(lockCtx context.Context) error {
				fresh, err := s.professionals.GetByID(lockCtx, p.ID)
				if err != nil {
					return err
				}
				s.agenda.GenerateDefaultAvailability(fresh, horizonDay, horizonDay)

				today := dayOf(now)
				for _, slot := range fresh.Agenda.AvailableSlots() {
					if slot.Before(today) {
						fresh.Agenda.RemoveAvailable(slot, slotSize, slotSize)
					}
				}
				for _, slot := range fresh.Agenda.BlockedSlots() {
					if slot.Before(today) {
						fresh.Agenda.Release(slot, slotSize, slotSize)
					}
				}
				fresh.UpdatedAt = now
				return s.professionals.Update(lockCtx, fresh)
			})
		}, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("professional_id", p.ID).Msg("horizon extension failed")
		}
	}
	return nil
}

// FlagInactivePatients transitions patients without a completed appointment in
// the trailing loyalty window to inactive and schedules a notification.
// Already-inactive patients are skipped.
func (s *MaintenanceService) FlagInactivePatients(ctx context.Context) error {
	patients, err := s.patients.ListAll(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, patient := range patients {
		if patient.Status != entities.PatientStatusActive {
			continue
		}

		history, err := s.appointments.ListByPatient(ctx, patient.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("patient_id", patient.ID).Msg("inactivity check failed")
			continue
		}
		if hasCompletedWithin(history, now, s.loyaltyWindow) {
			continue
		}

		patient.Status = entities.PatientStatusInactive
		patient.UpdatedAt = now
		if err := s.patients.Update(ctx, patient); err != nil {
			s.logger.Error().Err(err).Str("patient_id", patient.ID).Msg("inactivity flag failed")
			continue
		}

		if notifyErr := s.notifier.PatientMarkedInactive(ctx, patient); notifyErr != nil {
			s.logger.Warn().Err(notifyErr).Str("patient_id", patient.ID).Msg("inactivity notice failed")
		}
	}
	return nil
}
