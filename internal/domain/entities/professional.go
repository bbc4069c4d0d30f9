package entities

import "time"

// ProfessionalStatus represents the lifecycle status of a professional
type ProfessionalStatus string

const (
	ProfessionalStatusInvited  ProfessionalStatus = "invited"
	ProfessionalStatusActive   ProfessionalStatus = "active"
	ProfessionalStatusRefused  ProfessionalStatus = "refused"
	ProfessionalStatusInactive ProfessionalStatus = "inactive"
)

// Professional owns an agenda and a set of recurring work rules
type Professional struct {
	ID                    string             `json:"id" db:"id"`
	UserID                string             `json:"user_id" db:"user_id"`
	Name                  string             `json:"name" db:"name"`
	SpecialtyArea         string             `json:"specialty_area" db:"specialty_area"`
	BasePrice             float64            `json:"base_price" db:"base_price"`
	DefaultDurationMin    int                `json:"default_duration_min" db:"default_duration_min"`
	Agenda                *Agenda            `json:"-"`
	WorkRules             []WorkRule         `json:"work_rules"`
	ActivatedPromotionIDs []string           `json:"activated_promotion_ids"`
	Status                ProfessionalStatus `json:"status" db:"status"`
	Deleted               bool               `json:"deleted" db:"deleted"`
	CreatedAt             time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}

// DefaultDuration returns the professional's default appointment duration
func (p *Professional) DefaultDuration() time.Duration {
	return time.Duration(p.DefaultDurationMin) * time.Minute
}

// IsBookable reports whether the professional can receive new appointments
func (p *Professional) IsBookable() bool {
	return p.Status == ProfessionalStatusActive && !p.Deleted
}

// HasRuleFor reports whether any work rule covers the given weekday
func (p *Professional) HasRuleFor(weekday time.Weekday) bool {
	for _, rule := range p.WorkRules {
		if rule.Weekday == weekday {
			return true
		}
	}
	return false
}

// WorksAt reports whether some work rule at the given location covers
// the window [start, end). An empty locationID matches any location.
func (p *Professional) WorksAt(start, end time.Time, locationID string) bool {
	for _, rule := range p.WorkRules {
		if locationID != "" && rule.LocationID != locationID {
			continue
		}
		if rule.Covers(start, end) {
			return true
		}
	}
	return false
}

// RulesForLocation returns the work rules tagged for the given location
func (p *Professional) RulesForLocation(locationID string) []WorkRule {
	var rules []WorkRule
	for _, rule := range p.WorkRules {
		if rule.LocationID == locationID {
			rules = append(rules, rule)
		}
	}
	return rules
}

// HasActivated reports whether the professional opted into the promotion
func (p *Professional) HasActivated(promotionID string) bool {
	for _, id := range p.ActivatedPromotionIDs {
		if id == promotionID {
			return true
		}
	}
	return false
}

// ActivatePromotion adds the promotion id to the activated set. Idempotent.
func (p *Professional) ActivatePromotion(promotionID string) {
	if !p.HasActivated(promotionID) {
		p.ActivatedPromotionIDs = append(p.ActivatedPromotionIDs, promotionID)
	}
}

// DeactivatePromotion removes the promotion id from the activated set
func (p *Professional) DeactivatePromotion(promotionID string) {
	out := p.ActivatedPromotionIDs[:0]
	for _, id := range p.ActivatedPromotionIDs {
		if id != promotionID {
			out = append(out, id)
		}
	}
	p.ActivatedPromotionIDs = out
}
