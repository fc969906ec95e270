// Package directory provides the entity directory backing role and
// activation checks: who the manufacturers, suppliers, pharmacies, and
// regulators are, and whether they are currently active.
package directory

import (
	"sort"
	"sync"
	"time"

	"pharmxchain/pkg/domain"
)

// InMemory is a thread-safe in-process directory. Production deployments
// would sync it from an external registry; the ledger only ever consults it
// through the read-side domain.Directory interface.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]domain.EntityDetails
	nowFn   func() time.Time
}

// NewInMemory returns an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]domain.EntityDetails),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (d *InMemory) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.nowFn = fn
	d.mu.Unlock()
}

// Register adds or replaces a directory entry. New entries start active.
func (d *InMemory) Register(address, name, location, licenseInfo string, role domain.Role) (domain.EntityDetails, error) {
	if address == "" {
		return domain.EntityDetails{}, domain.InvalidInputError{Field: "address", Value: address, Reason: "must not be empty"}
	}
	switch role {
	case domain.RoleManufacturer, domain.RoleSupplier, domain.RolePharmacy, domain.RoleRegulator:
	default:
		return domain.EntityDetails{}, domain.InvalidInputError{Field: "role", Value: string(role), Reason: "unknown role"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.entries[address]; exists {
		return domain.EntityDetails{}, domain.AlreadyExistsError{Entity: "entity", ID: address}
	}
	entry := domain.EntityDetails{
		Address:      address,
		Name:         name,
		Location:     location,
		LicenseInfo:  licenseInfo,
		Role:         role,
		Active:       true,
		RegisteredAt: d.nowFn(),
	}
	d.entries[address] = entry
	return entry, nil
}

// Deactivate suspends an entity. Suspended entities keep their ledger
// balances but can no longer initiate or receive operations.
func (d *InMemory) Deactivate(address string) error {
	return d.setActive(address, false)
}

// Activate reinstates a suspended entity.
func (d *InMemory) Activate(address string) error {
	return d.setActive(address, true)
}

func (d *InMemory) setActive(address string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[address]
	if !ok {
		return domain.NotFoundError{Entity: "entity", ID: address}
	}
	entry.Active = active
	d.entries[address] = entry
	return nil
}

// IsActive reports whether the address names a registered, active entity.
func (d *InMemory) IsActive(address string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.entries[address]
	return ok && entry.Active
}

// RoleOf returns the entity's role, or RoleNone when unregistered.
func (d *InMemory) RoleOf(address string) domain.Role {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.entries[address]
	if !ok {
		return domain.RoleNone
	}
	return entry.Role
}

// Details returns the full directory record for an address.
func (d *InMemory) Details(address string) (domain.EntityDetails, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.entries[address]
	if !ok {
		return domain.EntityDetails{}, domain.NotFoundError{Entity: "entity", ID: address}
	}
	return entry, nil
}

// List returns every entry sorted by address.
func (d *InMemory) List() []domain.EntityDetails {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.EntityDetails, 0, len(d.entries))
	for _, entry := range d.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

var _ domain.Directory = (*InMemory)(nil)
