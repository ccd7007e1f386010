// Package org holds the organization model: users, reporting lines and the
// monetary approval limits. The model is a snapshot value passed explicitly
// into chain construction so building a chain stays deterministic.
package org

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Role is a user's position in the approval hierarchy.
type Role string

const (
	RoleRequester Role = "Requester"
	RoleManager   Role = "Manager"
	RoleCFO       Role = "CFO"
	RoleCEO       Role = "CEO"
	RoleFinance   Role = "Finance"
)

var validRoles = map[Role]bool{
	RoleRequester: true,
	RoleManager:   true,
	RoleCFO:       true,
	RoleCEO:       true,
	RoleFinance:   true,
}

// IsValid returns true if the role is one of the five known roles.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// User is a member of the organization. ManagerID is a weak reference to
// another user and forms the reporting forest; it is empty for users with
// no manager.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	ManagerID string `json:"manager_id,omitempty"`
}

// Limits holds the monetary thresholds that decide how far up the hierarchy
// a claim must travel. Callers are expected to keep Manager < CFO < CEO;
// the model does not enforce it on save (see Validate).
type Limits struct {
	Manager decimal.Decimal `json:"manager"`
	CFO     decimal.Decimal `json:"cfo"`
	CEO     decimal.Decimal `json:"ceo"`
}

// Validate checks that the limits are monotonically ordered.
func (l Limits) Validate() error {
	if !l.Manager.LessThan(l.CFO) {
		return fmt.Errorf("manager limit %s must be below cfo limit %s", l.Manager, l.CFO)
	}
	if !l.CFO.LessThan(l.CEO) {
		return fmt.Errorf("cfo limit %s must be below ceo limit %s", l.CFO, l.CEO)
	}
	return nil
}

// Model is the process-wide organization configuration. It is replaced
// wholesale on save, never patched.
type Model struct {
	Limits Limits `json:"limits"`
	Users  []User `json:"users"`
}

// UserByID returns the user with the given id, or false if absent.
func (m *Model) UserByID(id string) (User, bool) {
	for _, u := range m.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// UsersByRole returns all users holding the given role.
func (m *Model) UsersByRole(role Role) []User {
	var out []User
	for _, u := range m.Users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

// SoleHolder returns the single user holding the role, if exactly one
// exists. Used to bind CFO/CEO steps to a specific approver at build time.
func (m *Model) SoleHolder(role Role) (User, bool) {
	holders := m.UsersByRole(role)
	if len(holders) == 1 {
		return holders[0], true
	}
	return User{}, false
}

// Default returns the seed organization used before any model has been
// saved: a requester reporting to a manager, who reports to the CFO, who
// reports to the CEO, plus a finance team account.
func Default() *Model {
	return &Model{
		Limits: Limits{
			Manager: decimal.NewFromInt(1000),
			CFO:     decimal.NewFromInt(5000),
			CEO:     decimal.NewFromInt(10000),
		},
		Users: []User{
			{ID: "u1", Name: "John Doe", Email: "john@example.com", Role: RoleRequester, ManagerID: "u2"},
			{ID: "u2", Name: "Jane Manager", Email: "jane@example.com", Role: RoleManager, ManagerID: "u3"},
			{ID: "u3", Name: "Chief Financial", Email: "cfo@example.com", Role: RoleCFO, ManagerID: "u4"},
			{ID: "u4", Name: "Chief Executive", Email: "ceo@example.com", Role: RoleCEO},
			{ID: "u5", Name: "Finance Team", Email: "finance@example.com", Role: RoleFinance},
		},
	}
}
