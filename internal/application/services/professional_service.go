package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/providers"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

// ProfessionalService covers professional lifecycle operations: work-rule
// reconfiguration, promotion activation, and deactivation with its cascade.
type ProfessionalService struct {
	professionals repositories.ProfessionalRepository
	appointments  repositories.AppointmentRepository
	promotions    repositories.PromotionRepository
	agenda        *AgendaService
	locker        providers.ProfessionalLocker
	notifier      providers.NotificationDispatcher
	logger        zerolog.Logger
	horizon       time.Duration
	now           func() time.Time
}

// NewProfessionalService creates a new professional service; now may be nil
func NewProfessionalService(
	professionals repositories.ProfessionalRepository,
	appointments repositories.AppointmentRepository,
	promotions repositories.PromotionRepository,
	agenda *AgendaService,
	locker providers.ProfessionalLocker,
	notifier providers.NotificationDispatcher,
	logger zerolog.Logger,
	horizon time.Duration,
	now func() time.Time,
) *ProfessionalService {
	if now == nil {
		now = time.Now
	}
	return &ProfessionalService{
		professionals: professionals,
		appointments:  appointments,
		promotions:    promotions,
		agenda:        agenda,
		locker:        locker,
		notifier:      notifier,
		logger:        logger,
		horizon:       horizon,
		now:           now,
	}
}

// ConfigureWorkRules replaces the professional's work rules wholesale and
// regenerates availability for the upcoming horizon. Blocked slots survive
// regeneration so existing appointments keep their reservations.
func (s *ProfessionalService) ConfigureWorkRules(ctx context.Context, actor entities.Actor, professionalID string, rules []entities.WorkRule) error {
	for _, rule := range rules {
		if _, ok := clockValid(rule.StartTime); !ok {
			return apperrors.NewValidationError("work rule start time must use the 15:04 layout")
		}
		if _, ok := clockValid(rule.EndTime); !ok {
			return apperrors.NewValidationError("work rule end time must use the 15:04 layout")
		}
	}

	err := s.locker.WithProfessionalLock(ctx, professionalID, func(lockCtx context.Context) error {
		p, err := s.professionals.GetByID(lockCtx, professionalID)
		if err != nil {
			return err
		}
		if err := authorizeProfessionalAction(actor, p); err != nil {
			return err
		}

		now := s.now()
		p.WorkRules = rules
		p.Agenda.Available = make(map[time.Time]struct{})
		s.agenda.GenerateDefaultAvailability(p, now, now.Add(s.horizon))
		p.UpdatedAt = now
		return s.professionals.Update(lockCtx, p)
	})
	if errors.Is(err, providers.ErrLockNotAcquired) {
		return apperrors.NewConflictError("professional is being booked concurrently, retry")
	}
	return err
}

// ActivatePromotion opts the professional into a global promotion
func (s *ProfessionalService) ActivatePromotion(ctx context.Context, actor entities.Actor, professionalID, promotionID string) error {
	p, err := s.professionals.GetByID(ctx, professionalID)
	if err != nil {
		return err
	}
	if err := authorizeProfessionalAction(actor, p); err != nil {
		return err
	}

	promo, err := s.promotions.GetByID(ctx, promotionID)
	if err != nil {
		return err
	}
	if !promo.Active || promo.Deleted {
		return apperrors.NewConflictError("promotion is not active")
	}
	if promo.Scope != entities.PromotionScopeGlobal {
		return apperrors.NewConflictError("only global promotions require activation")
	}
	if promo.ApplicableProfessionalID != nil && *promo.ApplicableProfessionalID != p.ID {
		return apperrors.NewConflictError("promotion is restricted to another professional")
	}

	p.ActivatePromotion(promotionID)
	p.UpdatedAt = s.now()
	return s.professionals.Update(ctx, p)
}

// DeactivatePromotion opts the professional out of a promotion
func (s *ProfessionalService) DeactivatePromotion(ctx context.Context, actor entities.Actor, professionalID, promotionID string) error {
	p, err := s.professionals.GetByID(ctx, professionalID)
	if err != nil {
		return err
	}
	if err := authorizeProfessionalAction(actor, p); err != nil {
		return err
	}

	p.DeactivatePromotion(promotionID)
	p.UpdatedAt = s.now()
	return s.professionals.Update(ctx, p)
}

// Deactivate transitions the professional to inactive and cascades: every
// future scheduled appointment is cancelled, its slots released, and the
// affected patients notified.
func (s *ProfessionalService) Deactivate(ctx context.Context, actor entities.Actor, professionalID string) error {
	var cancelled []*entities.Appointment

	err := s.locker.WithProfessionalLock(ctx, professionalID, func(lockCtx context.Context) error {
		p, err := s.professionals.GetByID(lockCtx, professionalID)
		if err != nil {
			return err
		}
		if err := authorizeProfessionalAction(actor, p); err != nil {
			return err
		}
		if p.Status == entities.ProfessionalStatusInactive {
			return nil
		}

		now := s.now()
		existing, err := s.appointments.ListByProfessional(lockCtx, professionalID)
		if err != nil {
			return err
		}

		for _, ap := range existing {
			future := ap.ScheduledAt != nil && ap.ScheduledAt.After(now)
			if !future && !ap.IsCredit() {
				continue
			}
			if err := ap.Cancel(now); err != nil {
				continue
			}
			if err := s.appointments.Update(lockCtx, ap); err != nil {
				return apperrors.NewConflictErrorWithCause("deactivation cascade could not be persisted", err)
			}
			if ap.ScheduledAt != nil {
				p.Agenda.Release(*ap.ScheduledAt, ap.Duration(), s.agenda.SlotSize())
			}
			cancelled = append(cancelled, ap)
		}

		p.Status = entities.ProfessionalStatusInactive
		p.UpdatedAt = now
		return s.professionals.Update(lockCtx, p)
	})
	if err != nil {
		if errors.Is(err, providers.ErrLockNotAcquired) {
			return apperrors.NewConflictError("professional is being booked concurrently, retry")
		}
		return err
	}

	for _, ap := range cancelled {
		if notifyErr := s.notifier.AppointmentCancelled(ctx, ap); notifyErr != nil {
			s.logger.Warn().Err(notifyErr).Str("appointment_id", ap.ID).Msg("cancellation notice failed")
		}
	}
	return nil
}

func clockValid(hm string) (time.Time, bool) {
	t, err := time.Parse("15:04", hm)
	return t, err == nil
}
