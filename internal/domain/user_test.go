package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessTicket(t *testing.T) {
	ticket := &Ticket{ID: "t1", CustomerID: "cust-1"}

	t.Run("OwnerCustomer", func(t *testing.T) {
		user := &User{ID: "cust-1", Role: RoleCustomer}
		assert.True(t, user.CanAccessTicket(ticket))
	})

	t.Run("OtherCustomer", func(t *testing.T) {
		user := &User{ID: "cust-2", Role: RoleCustomer}
		assert.False(t, user.CanAccessTicket(ticket))
	})

	t.Run("AgentSeesAll", func(t *testing.T) {
		user := &User{ID: "agent-1", Role: RoleAgent}
		assert.True(t, user.CanAccessTicket(ticket))
	})

	t.Run("AdminSeesAll", func(t *testing.T) {
		user := &User{ID: "admin-1", Role: RoleAdmin}
		assert.True(t, user.CanAccessTicket(ticket))
	})

	t.Run("NilGuards", func(t *testing.T) {
		var user *User
		assert.False(t, user.CanAccessTicket(ticket))
		assert.False(t, (&User{ID: "x", Role: RoleAdmin}).CanAccessTicket(nil))
	})

	t.Run("UnknownRole", func(t *testing.T) {
		user := &User{ID: "cust-1", Role: UserRole("GHOST")}
		assert.False(t, user.CanAccessTicket(ticket))
	})
}

func TestIsStaff(t *testing.T) {
	assert.False(t, (&User{Role: RoleCustomer}).IsStaff())
	assert.True(t, (&User{Role: RoleAgent}).IsStaff())
	assert.True(t, (&User{Role: RoleAdmin}).IsStaff())
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleCustomer))
	assert.True(t, ValidRole(RoleAgent))
	assert.True(t, ValidRole(RoleAdmin))
	assert.False(t, ValidRole(UserRole("MANAGER")))
}
