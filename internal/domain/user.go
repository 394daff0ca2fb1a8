package domain

import "time"

// UserRole discriminates customers from staff.
type UserRole string

const (
	RoleCustomer UserRole = "CUSTOMER"
	RoleAgent    UserRole = "AGENT"
	RoleAdmin    UserRole = "ADMIN"
)

// User models anyone who can authenticate: ticket-opening customers and the
// agents/admins who work the queue.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaff reports whether the user holds an agent or admin role.
func (u *User) IsStaff() bool {
	return u.Role == RoleAgent || u.Role == RoleAdmin
}

// CanAccessTicket is the access-control predicate: customers see only their
// own tickets, staff see everything.
func (u *User) CanAccessTicket(ticket *Ticket) bool {
	if u == nil || ticket == nil {
		return false
	}
	switch u.Role {
	case RoleAgent, RoleAdmin:
		return true
	case RoleCustomer:
		return ticket.CustomerID == u.ID
	default:
		return false
	}
}

// ValidRole reports whether the value is a known role.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}
