// Package approval holds the access gate consulted on every protected-route
// entry: admins always pass, everyone else needs the approved flag.
package approval

import "builderscentral/internal/models"

type Decision string

const (
	Allowed Decision = "allowed"
	Pending Decision = "pending"
)

// Decide is pure: no I/O, no side effects.
func Decide(p models.Profile) Decision {
	if p.Role == models.RoleAdmin || p.Approved {
		return Allowed
	}
	return Pending
}
