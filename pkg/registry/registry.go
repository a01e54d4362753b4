// Package registry resolves governed role names to addresses. Components
// hold a Registry reference and look roles up at call time, so a role
// reassignment is observable immediately rather than at wiring time.
package registry

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotOwner    = errors.New("registry: caller is not the owner")
	ErrUnknownRole = errors.New("registry: unknown role")
)

// Registry is the read interface components depend on.
type Registry interface {
	// GetAddress returns the address currently installed for a role name,
	// or the zero address if none is set.
	GetAddress(role string) common.Address
}

// Governed is an owner-gated Registry. The owner reassigns roles; readers
// always observe the latest assignment.
type Governed struct {
	mu    sync.RWMutex
	owner common.Address
	roles map[string]common.Address
}

func NewGoverned(owner common.Address) *Governed {
	return &Governed{
		owner: owner,
		roles: make(map[string]common.Address),
	}
}

// ChangeAddress installs addr for role. Owner only.
func (g *Governed) ChangeAddress(caller common.Address, role string, addr common.Address) error {
	if caller != g.owner {
		return ErrNotOwner
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles[role] = addr
	return nil
}

func (g *Governed) GetAddress(role string) common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roles[role]
}

var _ Registry = (*Governed)(nil)
