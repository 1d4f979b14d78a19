package domain

import "time"

// SeniorSupportRole is the support role picked up by auto-escalation.
const SeniorSupportRole = "Senior Support"

// User is the domain model for customers and staff alike. Admin is a
// global flag; ticket ownership and staff assignment are relations on
// the ticket, not on the user.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	SupportRole  *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSupportRole reports whether the user holds the named support role
// and is active.
func (u *User) HasSupportRole(role string) bool {
	return u != nil && u.Active && u.SupportRole != nil && *u.SupportRole == role
}
