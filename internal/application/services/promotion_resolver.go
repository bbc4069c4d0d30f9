package services

import (
	"context"
	"sort"
	"time"

	"github.com/agendaplus/scheduling-backend/internal/domain/entities"
	"github.com/agendaplus/scheduling-backend/internal/domain/repositories"
)

// PromotionResolver decides which promotions apply to a booking and what the
// final discount percentage is. Resolution is split into three stages:
// eligibility (can this promotion ever apply here), code matching (does this
// booking redeem a code), and stacking (which qualifying promotions get summed).
type PromotionResolver struct {
	promotions    repositories.PromotionRepository
	appointments  repositories.AppointmentRepository
	loyaltyWindow time.Duration
	now           func() time.Time
}

// NewPromotionResolver creates a new resolver. loyaltyWindowDays bounds the
// loyal-client lookback; now may be nil.
func NewPromotionResolver(
	promotions repositories.PromotionRepository,
	appointments repositories.AppointmentRepository,
	loyaltyWindowDays int,
	now func() time.Time,
) *PromotionResolver {
	if loyaltyWindowDays <= 0 {
		loyaltyWindowDays = 90
	}
	if now == nil {
		now = time.Now
	}
	return &PromotionResolver{
		promotions:    promotions,
		appointments:  appointments,
		loyaltyWindow: time.Duration(loyaltyWindowDays) * 24 * time.Hour,
		now:           now,
	}
}

// PromotionInput describes the booking being priced
type PromotionInput struct {
	Patient      *entities.Patient
	Professional *entities.Professional

	// ScheduledAt is the instant of the scheduled appointment of the booking
	ScheduledAt time.Time

	// SimultaneousCount is how many appointments the booking creates at once
	// (1 for single, 2 for double, package size for packages)
	SimultaneousCount int

	// Code is the optional promotional code supplied by the patient
	Code string
}

// PromotionResolution is the outcome: the ordered, deduplicated applied
// promotion ids and the capped total discount
type PromotionResolution struct {
	PromotionIDs    []string
	DiscountPercent float64

	// CodePromotionID is set when the supplied code was redeemed
	CodePromotionID string
}

// Resolve runs the full resolution for one booking
func (r *PromotionResolver) Resolve(ctx context.Context, in PromotionInput) (*PromotionResolution, error) {
	candidates, err := r.promotions.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	history, err := r.appointments.ListByPatient(ctx, in.Patient.ID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var eligible []*entities.Promotion
	for _, promo := range candidates {
		if !promo.ValidAt(promo.EvaluationInstant(now, in.ScheduledAt)) {
			continue
		}
		if !r.inScope(promo, in.Professional) {
			continue
		}
		if !r.kindEligible(promo, in, history, now) {
			continue
		}
		eligible = append(eligible, promo)
	}

	// Deterministic processing order regardless of store ordering
	sortPromotions(eligible)

	codePromo := r.matchCode(eligible, in)

	var cumulative []*entities.Promotion
	var best *entities.Promotion
	for _, promo := range eligible {
		// code promotions only ever apply through a matching code
		if promo.Kind == entities.PromotionKindCode {
			continue
		}
		if promo.Cumulative {
			cumulative = append(cumulative, promo)
			continue
		}
		if best == nil || promo.DiscountPercent > best.DiscountPercent {
			best = promo
		}
	}

	if codePromo != nil {
		if codePromo.Cumulative {
			cumulative = append(cumulative, codePromo)
		} else {
			// an exclusive code promotion replaces the best exclusive
			// pick rather than competing on discount
			best = codePromo
		}
	}

	applied := make([]*entities.Promotion, 0, len(cumulative)+1)
	applied = append(applied, cumulative...)
	if best != nil {
		applied = append(applied, best)
	}
	sortPromotions(applied)

	resolution := &PromotionResolution{}
	if codePromo != nil {
		resolution.CodePromotionID = codePromo.ID
	}

	seen := make(map[string]struct{}, len(applied))
	for _, promo := range applied {
		if _, dup := seen[promo.ID]; dup {
			continue
		}
		seen[promo.ID] = struct{}{}
		resolution.PromotionIDs = append(resolution.PromotionIDs, promo.ID)
		resolution.DiscountPercent += promo.DiscountPercent
	}
	if resolution.DiscountPercent > 100 {
		resolution.DiscountPercent = 100
	}

	return resolution, nil
}

// inScope applies the scope filter: global promotions require the professional
// to have activated them, professional-specific ones must target them
func (r *PromotionResolver) inScope(promo *entities.Promotion, professional *entities.Professional) bool {
	switch promo.Scope {
	case entities.PromotionScopeGlobal:
		if !professional.HasActivated(promo.ID) {
			return false
		}
		if promo.ApplicableProfessionalID != nil && *promo.ApplicableProfessionalID != professional.ID {
			return false
		}
		return true
	case entities.PromotionScopeProfessional:
		return promo.ApplicableProfessionalID != nil && *promo.ApplicableProfessionalID == professional.ID
	default:
		return false
	}
}

func (r *PromotionResolver) kindEligible(promo *entities.Promotion, in PromotionInput, history []*entities.Appointment, now time.Time) bool {
	switch promo.Kind {
	case entities.PromotionKindFirstDouble:
		return priorAppointmentCount(history) == 0 && in.SimultaneousCount >= 2
	case entities.PromotionKindLoyalClient:
		return hasCompletedWithin(history, now, r.loyaltyWindow)
	case entities.PromotionKindPackage:
		return promo.MinQuantity > 0 && in.SimultaneousCount >= promo.MinQuantity
	case entities.PromotionKindPeriod, entities.PromotionKindCode:
		return true
	default:
		return false
	}
}

// matchCode finds the first eligible code promotion redeemed by the supplied
// code. A code the patient already used is not redeemable again.
func (r *PromotionResolver) matchCode(eligible []*entities.Promotion, in PromotionInput) *entities.Promotion {
	if in.Code == "" || in.Patient.HasUsedCode(in.Code) {
		return nil
	}
	for _, promo := range eligible {
		if promo.MatchesCode(in.Code) {
			return promo
		}
	}
	return nil
}

func priorAppointmentCount(history []*entities.Appointment) int {
	count := 0
	for _, ap := range history {
		if ap.Status != entities.AppointmentStatusCancelled {
			count++
		}
	}
	return count
}

func hasCompletedWithin(history []*entities.Appointment, now time.Time, window time.Duration) bool {
	cutoff := now.Add(-window)
	for _, ap := range history {
		if ap.Status != entities.AppointmentStatusCompleted || ap.ScheduledAt == nil {
			continue
		}
		if ap.ScheduledAt.After(cutoff) && !ap.ScheduledAt.After(now) {
			return true
		}
	}
	return false
}

// sortPromotions orders by creation time, then id. This is the tie-break rule
// for exclusive promotions with equal discounts and keeps resolution
// deterministic across runs.
func sortPromotions(promos []*entities.Promotion) {
	sort.SliceStable(promos, func(i, j int) bool {
		if promos[i].CreatedAt.Equal(promos[j].CreatedAt) {
			return promos[i].ID < promos[j].ID
		}
		return promos[i].CreatedAt.Before(promos[j].CreatedAt)
	})
}
