package entities

import "time"

// PromotionKind determines the eligibility rule a promotion carries
type PromotionKind string

const (
	// PromotionKindFirstDouble requires a brand-new patient booking two visits at once
	PromotionKindFirstDouble PromotionKind = "first_double"

	// PromotionKindLoyalClient requires a completed appointment within the loyalty window
	PromotionKindLoyalClient PromotionKind = "loyal_client"

	// PromotionKindPeriod applies to any booking inside the validity window
	PromotionKindPeriod PromotionKind = "period"

	// PromotionKindCode requires the patient to supply a matching code
	PromotionKindCode PromotionKind = "code"

	// PromotionKindPackage requires booking at least MinQuantity visits at once
	PromotionKindPackage PromotionKind = "package"
)

// PromotionScope determines which professionals a promotion can apply to
type PromotionScope string

const (
	PromotionScopeGlobal       PromotionScope = "global"
	PromotionScopeProfessional PromotionScope = "professional"
)

// Promotion is soft-deleted, never hard-removed: past appointments reference
// promotion ids and the history must stay resolvable.
type Promotion struct {
	ID              string         `json:"id" db:"id"`
	Description     string         `json:"description" db:"description"`
	DiscountPercent float64        `json:"discount_percent" db:"discount_percent"`
	StartsAt        time.Time      `json:"starts_at" db:"starts_at"`
	EndsAt          time.Time      `json:"ends_at" db:"ends_at"`
	Kind            PromotionKind  `json:"kind" db:"kind"`
	Code            *string        `json:"code" db:"code"`
	Scope           PromotionScope `json:"scope" db:"scope"`

	// ApplicableProfessionalID restricts the promotion to a single
	// professional; nil means unrestricted within its scope
	ApplicableProfessionalID *string `json:"applicable_professional_id" db:"applicable_professional_id"`

	// Cumulative promotions stack additively; non-cumulative ones compete
	// and only the best applies
	Cumulative bool `json:"cumulative" db:"cumulative"`

	// MinQuantity is the package size for package promotions
	MinQuantity int `json:"min_quantity" db:"min_quantity"`

	// CheckAgainstAppointmentDate selects whether the validity window is
	// evaluated against the appointment instant instead of booking time
	CheckAgainstAppointmentDate bool `json:"check_against_appointment_date" db:"check_against_appointment_date"`

	Active    bool      `json:"active" db:"active"`
	Deleted   bool      `json:"deleted" db:"deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidAt reports whether t falls inside the half-open validity window
func (p *Promotion) ValidAt(t time.Time) bool {
	return !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// EvaluationInstant picks the instant the validity window is checked against
func (p *Promotion) EvaluationInstant(now, appointmentAt time.Time) time.Time {
	if p.CheckAgainstAppointmentDate {
		return appointmentAt
	}
	return now
}

// MatchesCode reports whether the supplied code redeems this promotion
func (p *Promotion) MatchesCode(code string) bool {
	if p.Kind != PromotionKindCode || p.Code == nil {
		return false
	}
	return NormalizeCode(*p.Code) == NormalizeCode(code)
}
