// Package models defines the core domain models for the approval workflow engine.
package models

// Role represents an actor role in the approval hierarchy.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleVenueManager Role = "venue_manager"
	RoleRP           Role = "rp"
	RoleClient       Role = "client"
)

// roleRank is the strict approval hierarchy. Higher rank satisfies lower
// requirements; unknown roles rank 0 and satisfy nothing.
var roleRank = map[Role]int{
	RoleAdmin:        4,
	RoleVenueManager: 3,
	RoleRP:           2,
	RoleClient:       1,
}

// Rank returns the hierarchy rank of the role, 0 for unknown roles.
func (r Role) Rank() int {
	return roleRank[r]
}

// Satisfies reports whether the role ranks at or above the required role.
func (r Role) Satisfies(required Role) bool {
	return r.Rank() >= required.Rank() && r.Rank() > 0
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}
