package providers

import (
	"context"
	"errors"
)

// ErrLockNotAcquired is returned when another booking holds the professional's lock
var ErrLockNotAcquired = errors.New("professional lock not acquired")

// ProfessionalLocker serializes agenda-mutating operations per professional.
// Two concurrent bookings for the same professional must not both pass the
// availability check; operations on different professionals stay independent.
type ProfessionalLocker interface {
	WithProfessionalLock(ctx context.Context, professionalID string, fn func(ctx context.Context) error) error
}
