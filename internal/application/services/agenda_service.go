package services

import (
	"context"
	"time"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
	apperrors "github.com/agendaplus/scheduling-backend/pkg/errors"
)

// Display window for the agenda status report, hours in UTC. Slots outside any
// work rule are still reported inside this window so calendars render a full day.
const (
	displayWindowStartHour = 8
	displayWindowEndHour   = 20
)

// AgendaService owns slot generation and the aggregate agenda views.
// All agenda mutation flows through here or the booking service; entities are
// never mutated by callers directly.
type AgendaService struct {
	professionals repositories.ProfessionalRepository
	slotSize      time.Duration
}

// NewAgendaService creates a new agenda service
func NewAgendaService(professionals repositories.ProfessionalRepository, slotSize time.Duration) *AgendaService {
	if slotSize <= 0 {
		slotSize = entities.DefaultSlotSize
	}
	return &AgendaService{
		professionals: professionals,
		slotSize:      slotSize,
	}
}

// SlotSize returns the slot granularity the service operates at
func (s *AgendaService) SlotSize() time.Duration {
	return s.slotSize
}

// GenerateDefaultAvailability marks every slot covered by a work rule as
// available for each date in [from, to]. Additive and idempotent.
func (s *AgendaService) GenerateDefaultAvailability(p *entities.Professional, from, to time.Time) {
	if p.Agenda == nil {
		p.Agenda = entities.NewAgenda()
	}
	for date := dayOf(from); !date.After(dayOf(to)); date = date.AddDate(0, 0, 1) {
		for _, rule := range p.WorkRules {
			start, end, ok := rule.WindowOn(date)
			if !ok {
				continue
			}
			p.Agenda.MarkAvailable(start, end.Sub(start), s.slotSize)
		}
	}
}

// ListAvailableSlots returns the slots whose full duration window is bookable
func (s *AgendaService) ListAvailableSlots(p *entities.Professional, duration time.Duration) []time.Time {
	if p.Agenda == nil {
		return nil
	}
	var slots []time.Time
	for _, slot := range p.Agenda.AvailableSlots() {
		if p.Agenda.IsAvailable(slot, duration, s.slotSize) {
			slots = append(slots, slot)
		}
	}
	return slots
}

// ListAvailableSlotsForLocation narrows ListAvailableSlots to slots covered by
// a work rule tagged for the given location
func (s *AgendaService) ListAvailableSlotsForLocation(p *entities.Professional, locationID string, duration time.Duration) []time.Time {
	var slots []time.Time
	for _, slot := range s.ListAvailableSlots(p, duration) {
		if p.WorksAt(slot, slot.Add(duration), locationID) {
			slots = append(slots, slot)
		}
	}
	return slots
}

// SetDayOff removes availability for every work-rule window on the date.
// Only staff or the professional themself may do this. No-op when the
// professional has no rule for that weekday.
func (s *AgendaService) SetDayOff(ctx context.Context, actor entities.Actor, professionalID string, date time.Time) error {
	p, err := s.professionals.GetByID(ctx, professionalID)
	if err != nil {
		return err
	}
	if err := authorizeProfessionalAction(actor, p); err != nil {
		return err
	}

	if !p.HasRuleFor(date.UTC().Weekday()) {
		return nil
	}

	for _, rule := range p.WorkRules {
		start, end, ok := rule.WindowOn(date)
		if !ok {
			continue
		}
		p.Agenda.RemoveAvailable(start, end.Sub(start), s.slotSize)
	}

	return s.professionals.Update(ctx, p)
}

// ComputeAgendaStatus builds the reporting view of the agenda for the date
// range [from, to]. It is not authoritative for booking decisions.
func (s *AgendaService) ComputeAgendaStatus(p *entities.Professional, from, to time.Time, now time.Time) map[time.Time]entities.SlotState {
	status := make(map[time.Time]entities.SlotState)
	if p.Agenda == nil {
		return status
	}

	for date := dayOf(from); !date.After(dayOf(to)); date = date.AddDate(0, 0, 1) {
		dayStart := date.Add(displayWindowStartHour * time.Hour)
		dayEnd := date.Add(displayWindowEndHour * time.Hour)

		for slot := dayStart; slot.Before(dayEnd); slot = slot.Add(s.slotSize) {
			switch {
			case !p.WorksAt(slot, slot.Add(s.slotSize), ""):
				status[slot] = entities.SlotStateOutsideWorkingHours
			case p.Agenda.IsBlocked(slot):
				status[slot] = entities.SlotStateOccupied
			case !p.Agenda.HasAvailable(slot):
				// inside a work rule but never generated: inconsistency,
				// reported the same way as non-working time
				status[slot] = entities.SlotStateOutsideWorkingHours
			case slot.Before(now):
				status[slot] = entities.SlotStatePast
			default:
				status[slot] = entities.SlotStateAvailable
			}
		}
	}
	return status
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// authorizeProfessionalAction allows staff, or the professional acting on
// their own record
func authorizeProfessionalAction(actor entities.Actor, p *entities.Professional) error {
	if actor.IsStaff() {
		return nil
	}
	if actor.Role == entities.RoleProfessional && actor.UserID == p.UserID {
		return nil
	}
	return apperrors.NewUnauthorizedError("actor may not manage this professional's agenda")
}
