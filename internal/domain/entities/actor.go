package entities

// Role represents what an acting user is allowed to do
type Role string

const (
	RolePatient      Role = "patient"
	RoleProfessional Role = "professional"
	RoleStaff        Role = "staff"
)

// Actor is the identity performing an operation, resolved by the caller's
// authentication layer before it reaches the services
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsStaff reports whether the actor holds the staff role
func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}
