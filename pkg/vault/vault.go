// Package vault is the escrow ledger: per (token, owner) balances custodied
// centrally, with one installed spender agent that consenting owners may
// authorize to move their funds.
package vault

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openlay/openlay/params"
	"github.com/openlay/openlay/pkg/registry"
)

var (
	ErrInvalidDeposit      = errors.New("vault: invalid deposit")
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	ErrNotOwner            = errors.New("vault: caller is not the owner")
	ErrNotCurrentRole      = errors.New("vault: agent is not the current bet manager")
	ErrUnknownAgent        = errors.New("vault: agent is not the installed spender")
	ErrNotSpender          = errors.New("vault: caller is not the installed spender")
	ErrNotApproved         = errors.New("vault: from address has not approved the spender")
	ErrInvalidAmount       = errors.New("vault: amount must be greater than zero")
)

// TokenBridge settles deposits and withdrawals against the external token
// ledger. The vault only trusts its own balances once Pull has succeeded.
type TokenBridge interface {
	Pull(token, from common.Address, amount *big.Int) error
	Release(token, to common.Address, amount *big.Int) error
}

// Journal receives write-through snapshots of vault state for persistence.
// A nil Journal keeps the vault memory-only.
type Journal interface {
	PutBalance(token, owner common.Address, amount *big.Int) error
	PutApproval(owner, agent common.Address, approved bool) error
	PutSpender(agent common.Address) error
}

type Vault struct {
	mu sync.Mutex

	owner    common.Address
	registry registry.Registry
	bridge   TokenBridge
	journal  Journal
	log      *zap.Logger

	// balances[token][owner]
	balances map[common.Address]map[common.Address]*big.Int
	// spender is the single installed agent. Approvals recorded against a
	// replaced agent stay in the map but become inert because every check
	// goes through the currently installed spender.
	spender   common.Address
	approvals map[common.Address]map[common.Address]bool
}

func New(owner common.Address, reg registry.Registry, bridge TokenBridge, journal Journal, log *zap.Logger) *Vault {
	if log == nil {
		log = zap.NewNop()
	}
	return &Vault{
		owner:     owner,
		registry:  reg,
		bridge:    bridge,
		journal:   journal,
		log:       log,
		balances:  make(map[common.Address]map[common.Address]*big.Int),
		approvals: make(map[common.Address]map[common.Address]bool),
	}
}

// Deposit credits the caller's balance. The native token sentinel takes the
// transferred value and requires amount == 0; every other token requires
// amount > 0 with no attached value and pulls through the bridge.
func (v *Vault) Deposit(caller, token common.Address, amount, value *big.Int) error {
	if amount == nil || value == nil {
		return ErrInvalidDeposit
	}
	var effective *big.Int
	bridged := token != params.NativeToken
	if bridged {
		if amount.Sign() <= 0 || value.Sign() != 0 {
			return ErrInvalidDeposit
		}
		if err := v.bridge.Pull(token, caller, amount); err != nil {
			return err
		}
		effective = amount
	} else {
		if value.Sign() <= 0 || amount.Sign() != 0 {
			return ErrInvalidDeposit
		}
		effective = value
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.credit(token, caller, effective); err != nil {
		// Hand pulled funds back so the failed call has no effects.
		if bridged {
			_ = v.bridge.Release(token, caller, amount)
		}
		return err
	}
	v.log.Info("vault deposit",
		zap.String("owner", caller.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", effective.String()))
	return nil
}

// Withdraw debits the caller's balance and releases the funds externally.
func (v *Vault) Withdraw(caller, token common.Address, amount *big.Int) error {
	v.mu.Lock()
	if amount == nil || amount.Sign() <= 0 {
		v.mu.Unlock()
		return ErrInvalidAmount
	}
	if v.balanceLocked(token, caller).Cmp(amount) < 0 {
		v.mu.Unlock()
		return ErrInsufficientBalance
	}
	if err := v.debit(token, caller, amount); err != nil {
		v.mu.Unlock()
		return err
	}
	v.mu.Unlock()

	if err := v.bridge.Release(token, caller, amount); err != nil {
		// Restore the ledger entry so a failed external release never
		// leaves partial effects observable.
		v.mu.Lock()
		_ = v.credit(token, caller, amount)
		v.mu.Unlock()
		return err
	}
	v.log.Info("vault withdraw",
		zap.String("owner", caller.Hex()),
		zap.String("token", token.Hex()),
		zap.String("amount", amount.String()))
	return nil
}

// AddSpender installs agent as the sole active spender. Owner only, and the
// agent must match whatever the registry currently designates as the bet
// manager, so a stale engine can never be re-installed.
func (v *Vault) AddSpender(caller, agent common.Address) error {
	if caller != v.owner {
		return ErrNotOwner
	}
	current := v.registry.GetAddress(params.RoleBetManager)
	if agent == (common.Address{}) || agent != current {
		return ErrNotCurrentRole
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.journal != nil {
		if err := v.journal.PutSpender(agent); err != nil {
			return err
		}
	}
	v.spender = agent
	v.log.Info("vault spender installed", zap.String("agent", agent.Hex()))
	return nil
}

// Approve records the caller's consent for the installed spender to move
// their balances. Consent is keyed to the agent, so replacing the spender
// requires fresh approvals.
func (v *Vault) Approve(caller, agent common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if agent == (common.Address{}) || agent != v.spender {
		return ErrUnknownAgent
	}
	if v.journal != nil {
		if err := v.journal.PutApproval(caller, agent, true); err != nil {
			return err
		}
	}
	m, ok := v.approvals[caller]
	if !ok {
		m = make(map[common.Address]bool)
		v.approvals[caller] = m
	}
	m[agent] = true
	return nil
}

// TransferFrom moves balance between owners. Only the installed spender may
// call it, only for owners that approved it; an owner's own balance moves
// without approval.
func (v *Vault) TransferFrom(caller, token, from, to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller == (common.Address{}) || caller != v.spender {
		return ErrNotSpender
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from != caller && !v.approvals[from][caller] {
		return ErrNotApproved
	}
	if v.balanceLocked(token, from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	if err := v.debit(token, from, amount); err != nil {
		return err
	}
	if err := v.credit(token, to, amount); err != nil {
		// Put the debited leg back in memory; the journal write is best
		// effort since the journal itself just failed.
		b := v.slot(token, from)
		b.Add(b, amount)
		if v.journal != nil {
			_ = v.journal.PutBalance(token, from, b)
		}
		return err
	}
	return nil
}

// BalanceOf returns the owner's balance for token.
func (v *Vault) BalanceOf(token, owner common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.balanceLocked(token, owner))
}

// IsApproved reports whether owner has approved agent AND agent is still the
// installed spender.
func (v *Vault) IsApproved(owner, agent common.Address) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return agent == v.spender && v.approvals[owner][agent]
}

// IsSpender reports whether agent is the installed spender.
func (v *Vault) IsSpender(agent common.Address) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return agent != (common.Address{}) && agent == v.spender
}

// Restore loads persisted ledger state, replacing in-memory state. Called
// once at startup before the vault serves traffic.
func (v *Vault) Restore(balances map[common.Address]map[common.Address]*big.Int, approvals map[common.Address]map[common.Address]bool, spender common.Address) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances = make(map[common.Address]map[common.Address]*big.Int, len(balances))
	for token, owners := range balances {
		m := make(map[common.Address]*big.Int, len(owners))
		for owner, amount := range owners {
			m[owner] = new(big.Int).Set(amount)
		}
		v.balances[token] = m
	}
	v.approvals = make(map[common.Address]map[common.Address]bool, len(approvals))
	for owner, agents := range approvals {
		m := make(map[common.Address]bool, len(agents))
		for agent, ok := range agents {
			m[agent] = ok
		}
		v.approvals[owner] = m
	}
	v.spender = spender
}

func (v *Vault) balanceLocked(token, owner common.Address) *big.Int {
	if m, ok := v.balances[token]; ok {
		if b, ok := m[owner]; ok {
			return b
		}
	}
	return new(big.Int)
}

// slot materializes and returns the mutable balance entry for (token, owner).
func (v *Vault) slot(token, owner common.Address) *big.Int {
	m, ok := v.balances[token]
	if !ok {
		m = make(map[common.Address]*big.Int)
		v.balances[token] = m
	}
	b, ok := m[owner]
	if !ok {
		b = new(big.Int)
		m[owner] = b
	}
	return b
}

// credit and debit journal the new balance before committing it, so a failed
// journal write leaves the ledger untouched.
func (v *Vault) credit(token, owner common.Address, amount *big.Int) error {
	b := v.slot(token, owner)
	next := new(big.Int).Add(b, amount)
	if v.journal != nil {
		if err := v.journal.PutBalance(token, owner, next); err != nil {
			return err
		}
	}
	b.Set(next)
	return nil
}

func (v *Vault) debit(token, owner common.Address, amount *big.Int) error {
	b := v.slot(token, owner)
	if b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	next := new(big.Int).Sub(b, amount)
	if v.journal != nil {
		if err := v.journal.PutBalance(token, owner, next); err != nil {
			return err
		}
	}
	b.Set(next)
	return nil
}
