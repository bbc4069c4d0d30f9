package entities

import (
	"strings"
	"time"
)

// PatientStatus represents the lifecycle status of a patient
type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

// Patient represents a person who books appointments
type Patient struct {
	ID           string        `json:"id" db:"id"`
	UserID       string        `json:"user_id" db:"user_id"`
	Name         string        `json:"name" db:"name"`
	Status       PatientStatus `json:"status" db:"status"`
	UsedCodes    []string      `json:"used_codes"`
	RegisteredAt time.Time     `json:"registered_at" db:"registered_at"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// NormalizeCode canonicalizes a promotional code for comparison and storage
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// HasUsedCode reports whether the patient already redeemed the code.
// Comparison is case-insensitive and ignores surrounding whitespace.
func (p *Patient) HasUsedCode(code string) bool {
	normalized := NormalizeCode(code)
	for _, used := range p.UsedCodes {
		if NormalizeCode(used) == normalized {
			return true
		}
	}
	return false
}

// RecordCodeUse marks the code as redeemed. Idempotent.
func (p *Patient) RecordCodeUse(code string) {
	if !p.HasUsedCode(code) {
		p.UsedCodes = append(p.UsedCodes, NormalizeCode(code))
	}
}
