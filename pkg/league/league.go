// Package league is the fill engine's window onto the fixture catalog and
// resolution feed. The engine only consumes the narrow Service interface;
// Catalog is a reference implementation backing the node and tests.
package league

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ResolutionStatus reports whether a (fixture, resolver) pair has a result.
type ResolutionStatus int

const (
	// Unresolved: no result pushed yet.
	Unresolved ResolutionStatus = iota
	// ResolvedDirect: the queried resolver pushed the result itself.
	ResolvedDirect
	// ResolvedViaAlias: an aliased resolver of the queried one pushed it.
	ResolvedViaAlias
)

// Service is the read contract the fill engine depends on.
type Service interface {
	IsFixtureValid(league common.Address, fixture *big.Int) bool
	IsResolverRegistered(league common.Address, resolver common.Address) bool
	IsFixtureResolved(league common.Address, fixture *big.Int, resolver common.Address) ResolutionStatus
	ResolutionPayload(league common.Address, fixture *big.Int, resolver common.Address) ([]byte, error)
}

var (
	ErrUnknownLeague       = errors.New("league: unknown league")
	ErrUnknownFixture      = errors.New("league: fixture not scheduled")
	ErrUnknownResolver     = errors.New("league: resolver not registered")
	ErrNotConsensusManager = errors.New("league: caller is not the consensus manager")
	ErrAlreadyResolved     = errors.New("league: resolution already pushed")
	ErrNoResolution        = errors.New("league: no resolution available")
)

type leagueState struct {
	name        string
	fixtures    map[string]bool
	resolvers   map[common.Address]bool
	aliases     map[common.Address]common.Address
	resolutions map[string]map[common.Address][]byte
}

// Catalog is an in-memory Service with governed mutation: fixtures are
// scheduled by the owner and resolutions pushed by the consensus manager.
type Catalog struct {
	mu               sync.RWMutex
	owner            common.Address
	consensusManager common.Address
	leagues          map[common.Address]*leagueState
}

func NewCatalog(owner common.Address) *Catalog {
	return &Catalog{
		owner:            owner,
		consensusManager: owner,
		leagues:          make(map[common.Address]*leagueState),
	}
}

// UpdateConsensusManager changes who may push resolutions. Owner only.
func (c *Catalog) UpdateConsensusManager(caller, manager common.Address) error {
	if caller != c.owner {
		return errors.New("league: caller is not the owner")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consensusManager = manager
	return nil
}

// CreateLeague registers a league address under a display name.
func (c *Catalog) CreateLeague(caller, league common.Address, name string) error {
	if caller != c.owner {
		return errors.New("league: caller is not the owner")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leagues[league] = &leagueState{
		name:        name,
		fixtures:    make(map[string]bool),
		resolvers:   make(map[common.Address]bool),
		aliases:     make(map[common.Address]common.Address),
		resolutions: make(map[string]map[common.Address][]byte),
	}
	return nil
}

// ScheduleFixture marks a fixture id as scheduled within a league.
func (c *Catalog) ScheduleFixture(caller, league common.Address, fixture *big.Int) error {
	if caller != c.owner {
		return errors.New("league: caller is not the owner")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ls, ok := c.leagues[league]
	if !ok {
		return ErrUnknownLeague
	}
	ls.fixtures[fixture.String()] = true
	return nil
}

// RegisterResolver admits a resolver for a league's fixtures.
func (c *Catalog) RegisterResolver(caller, league, resolver common.Address) error {
	if caller != c.owner {
		return errors.New("league: caller is not the owner")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ls, ok := c.leagues[league]
	if !ok {
		return ErrUnknownLeague
	}
	ls.resolvers[resolver] = true
	return nil
}

// AliasResolver links alias to canonical so results pushed by canonical
// satisfy queries against alias (reported as ResolvedViaAlias).
func (c *Catalog) AliasResolver(caller, league, alias, canonical common.Address) error {
	if caller != c.owner {
		return errors.New("league: caller is not the owner")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ls, ok := c.leagues[league]
	if !ok {
		return ErrUnknownLeague
	}
	if !ls.resolvers[alias] || !ls.resolvers[canonical] {
		return ErrUnknownResolver
	}
	ls.aliases[alias] = canonical
	return nil
}

// PushResolution records the result payload a resolver computed for a
// fixture. Consensus manager only; one resolution per (fixture, resolver).
func (c *Catalog) PushResolution(caller, league common.Address, fixture *big.Int, resolver common.Address, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.consensusManager {
		return ErrNotConsensusManager
	}
	ls, ok := c.leagues[league]
	if !ok {
		return ErrUnknownLeague
	}
	key := fixture.String()
	if !ls.fixtures[key] {
		return ErrUnknownFixture
	}
	if !ls.resolvers[resolver] {
		return ErrUnknownResolver
	}
	byResolver, ok := ls.resolutions[key]
	if !ok {
		byResolver = make(map[common.Address][]byte)
		ls.resolutions[key] = byResolver
	}
	if _, dup := byResolver[resolver]; dup {
		return ErrAlreadyResolved
	}
	byResolver[resolver] = append([]byte(nil), payload...)
	return nil
}

func (c *Catalog) IsFixtureValid(league common.Address, fixture *big.Int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.leagues[league]
	return ok && ls.fixtures[fixture.String()]
}

func (c *Catalog) IsResolverRegistered(league, resolver common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.leagues[league]
	return ok && ls.resolvers[resolver]
}

func (c *Catalog) IsFixtureResolved(league common.Address, fixture *big.Int, resolver common.Address) ResolutionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.leagues[league]
	if !ok {
		return Unresolved
	}
	byResolver, ok := ls.resolutions[fixture.String()]
	if !ok {
		return Unresolved
	}
	if _, direct := byResolver[resolver]; direct {
		return ResolvedDirect
	}
	if canonical, aliased := ls.aliases[resolver]; aliased {
		if _, ok := byResolver[canonical]; ok {
			return ResolvedViaAlias
		}
	}
	return Unresolved
}

func (c *Catalog) ResolutionPayload(league common.Address, fixture *big.Int, resolver common.Address) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.leagues[league]
	if !ok {
		return nil, ErrUnknownLeague
	}
	byResolver, ok := ls.resolutions[fixture.String()]
	if !ok {
		return nil, ErrNoResolution
	}
	if payload, direct := byResolver[resolver]; direct {
		return append([]byte(nil), payload...), nil
	}
	if canonical, aliased := ls.aliases[resolver]; aliased {
		if payload, ok := byResolver[canonical]; ok {
			return append([]byte(nil), payload...), nil
		}
	}
	return nil, ErrNoResolution
}

var _ Service = (*Catalog)(nil)
