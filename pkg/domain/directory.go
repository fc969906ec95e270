package domain

import "time"

// EntityDetails describes a directory participant.
type EntityDetails struct {
	Address      string    `json:"address"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	LicenseInfo  string    `json:"license_info"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Directory is the external entity registry the ledger consults for role and
// activation lookups. The ledger never mutates it.
type Directory interface {
	// IsActive reports whether the address is registered and active.
	IsActive(address string) bool
	// RoleOf returns the registered role, or RoleNone for unknown addresses.
	RoleOf(address string) Role
	// Details returns the full participant record, or a NotFoundError when
	// the address is unregistered.
	Details(address string) (EntityDetails, error)
}
