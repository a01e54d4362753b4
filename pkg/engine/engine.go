// Package engine is the order matching and fill engine: it validates signed
// wager orders, accounts partial fills from many layers against one backer,
// custodies the matched stakes in the vault, and settles claims once the
// league service reports a resolution.
package engine

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openlay/openlay/params"
	"github.com/openlay/openlay/pkg/bet"
	olcrypto "github.com/openlay/openlay/pkg/crypto"
	"github.com/openlay/openlay/pkg/league"
	"github.com/openlay/openlay/pkg/registry"
	"github.com/openlay/openlay/pkg/util"
	"github.com/openlay/openlay/pkg/vault"
)

// Journal receives a write-through snapshot after each committed mutation.
// A nil Journal keeps the engine memory-only.
type Journal interface {
	PutOrder(digest common.Hash, rec *OrderRecord) error
}

type Engine struct {
	mu sync.Mutex

	// self is the engine's own identity: the vault spender and the owner
	// of the custody balance holding matched stakes between fill and claim.
	self     common.Address
	vault    *vault.Vault
	leagues  league.Service
	registry registry.Registry
	clock    util.Clock
	journal  Journal
	log      *zap.Logger
	events   EventSink

	orders    map[common.Hash]*orderState
	bySubject map[common.Address][]common.Hash
}

func New(self common.Address, v *vault.Vault, ls league.Service, reg registry.Registry, clock util.Clock, journal Journal, log *zap.Logger) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		self:      self,
		vault:     v,
		leagues:   ls,
		registry:  reg,
		clock:     clock,
		journal:   journal,
		log:       log,
		orders:    make(map[common.Hash]*orderState),
		bySubject: make(map[common.Address][]common.Hash),
	}
}

// Self returns the engine's custody identity.
func (e *Engine) Self() common.Address { return e.self }

// SetEventSink installs the sink fills, cancels and claims publish to.
func (e *Engine) SetEventSink(sink EventSink) { e.events = sink }

// SubmitFill fills order by fillAmount on behalf of caller. The order is
// authenticated by the backer's off-band signature over its canonical
// digest; stakes move into the engine's custody balance on success.
// Returns the order digest.
func (e *Engine) SubmitFill(caller common.Address, order *bet.Order, nonce uint64, fillAmount *big.Int, sig []byte) (common.Hash, error) {
	digest := bet.Digest(order, nonce)

	// Authentication. The recovered signer must be the stated backer, and
	// the backer can never take the layer side of their own order.
	if order.Backer == (common.Address{}) || !olcrypto.IsValidSignature(digest.Bytes(), order.Backer, sig) {
		return digest, ErrInvalidSignature
	}
	if caller == order.Backer {
		return digest, ErrSelfFill
	}
	if order.Layer != (common.Address{}) && caller != order.Layer {
		return digest, ErrUnauthorizedLayer
	}

	// Parameter validation.
	if order.BackerStake == nil || order.BackerStake.Sign() <= 0 ||
		order.Odds == nil || order.Odds.Sign() <= 0 ||
		fillAmount == nil || fillAmount.Sign() <= 0 {
		return digest, ErrInvalidOrderParams
	}
	if _, err := bet.DecodeOutcome(order.Payload); err != nil {
		return digest, fmt.Errorf("%w: %v", ErrInvalidOrderParams, err)
	}
	backerDebit := order.BackerDebit(fillAmount)
	if backerDebit.Sign() <= 0 {
		return digest, ErrInvalidOrderParams
	}
	if order.Expiration == nil || e.clock.Now().Unix() > order.Expiration.Int64() {
		return digest, ErrExpired
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-validate against current state: a losing race fails cleanly.
	state, exists := e.orders[digest]
	if exists {
		if state.cancelled {
			return digest, ErrAlreadyCancelled
		}
		rem := state.remaining()
		if rem.Sign() <= 0 {
			return digest, ErrAlreadyFilled
		}
		if fillAmount.Cmp(rem) > 0 {
			return digest, ErrCapacityExceeded
		}
	} else if fillAmount.Cmp(order.LayerCapacity()) > 0 {
		return digest, ErrCapacityExceeded
	}

	// External fixture checks.
	if !e.leagues.IsFixtureValid(order.League, order.Fixture) {
		return digest, ErrInvalidFixture
	}
	if !e.leagues.IsResolverRegistered(order.League, order.Resolver) {
		return digest, ErrUnregisteredResolver
	}
	if e.leagues.IsFixtureResolved(order.League, order.Fixture, order.Resolver) != league.Unresolved {
		return digest, ErrAlreadyResolved
	}

	// Escrow authorization and balance checks before any transfer, so a
	// failed call leaves no partial effects.
	if !e.vault.IsApproved(order.Backer, e.self) || !e.vault.IsApproved(caller, e.self) {
		return digest, ErrInsufficientEscrow
	}
	if e.vault.BalanceOf(order.Token, order.Backer).Cmp(backerDebit) < 0 {
		return digest, ErrInsufficientEscrow
	}
	if e.vault.BalanceOf(order.Token, caller).Cmp(fillAmount) < 0 {
		return digest, ErrInsufficientEscrow
	}

	if err := e.vault.TransferFrom(e.self, order.Token, order.Backer, e.self, backerDebit); err != nil {
		return digest, fmt.Errorf("%w: %v", ErrInsufficientEscrow, err)
	}
	if err := e.vault.TransferFrom(e.self, order.Token, caller, e.self, fillAmount); err != nil {
		// Unwind the backer leg.
		_ = e.vault.TransferFrom(e.self, order.Token, e.self, order.Backer, backerDebit)
		return digest, fmt.Errorf("%w: %v", ErrInsufficientEscrow, err)
	}

	// Stage the post-fill state on a copy and journal it before any of it
	// becomes visible: a failed journal write unwinds both transfer legs
	// and leaves the in-memory ledger exactly as it was, so the caller can
	// safely retry.
	if !exists {
		state = newOrderState(order, nonce)
	}
	next := stateFromRecord(state.record())
	newLayer := false
	if _, seen := next.fills[caller]; !seen {
		newLayer = true
		next.layers = append(next.layers, caller)
		next.fills[caller] = new(big.Int)
		next.matched[caller] = new(big.Int)
	}
	next.fills[caller].Add(next.fills[caller], fillAmount)
	next.matched[caller].Add(next.matched[caller], backerDebit)
	next.totalFilled.Add(next.totalFilled, fillAmount)
	next.backerMatched.Add(next.backerMatched, backerDebit)

	if err := e.persist(digest, next.record()); err != nil {
		_ = e.vault.TransferFrom(e.self, order.Token, e.self, caller, fillAmount)
		_ = e.vault.TransferFrom(e.self, order.Token, e.self, order.Backer, backerDebit)
		return digest, err
	}

	e.orders[digest] = next
	if !exists {
		e.index(order.Backer, digest)
	}
	if newLayer {
		e.index(caller, digest)
	}
	state = next

	e.log.Info("fill accepted",
		zap.String("digest", digest.Hex()),
		zap.String("layer", caller.Hex()),
		zap.String("fill", fillAmount.String()),
		zap.String("backerDebit", backerDebit.String()),
		zap.String("totalFilled", state.totalFilled.String()))
	e.publish(Event{Type: EventFill, Digest: digest, Actor: caller, Amount: new(big.Int).Set(fillAmount)})
	return digest, nil
}

// Cancel marks an order cancelled. Backer only; the order must exist and
// not be fully filled. Escrow already in custody stays claimable through
// normal settlement once the fixture resolves.
func (e *Engine) Cancel(caller common.Address, digest common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.orders[digest]
	if !ok {
		return ErrUnknownOrder
	}
	if caller != state.order.Backer {
		return ErrUnauthorized
	}
	if state.cancelled {
		return ErrAlreadyCancelled
	}
	if state.remaining().Sign() <= 0 {
		return ErrAlreadyFilled
	}

	// Journal first; the in-memory flag flips only once the record is
	// durable, so a failed cancel has no effects at all.
	rec := state.record()
	rec.Cancelled = true
	if err := e.persist(digest, rec); err != nil {
		return err
	}
	state.cancelled = true

	e.log.Info("order cancelled", zap.String("digest", digest.Hex()))
	e.publish(Event{Type: EventCancel, Digest: digest, Actor: caller})
	return nil
}

// Claim settles the caller's side of an order after resolution. Each party
// claims independently and exactly once; the computed share moves from the
// engine's custody balance back into the claimant's escrow balance, and a
// winning claimant pays the order's fee (scaled to fill fraction) to the
// fee recipient in the fee token.
func (e *Engine) Claim(caller common.Address, digest common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.orders[digest]
	if !ok {
		return ErrUnknownOrder
	}
	if state.claimed[caller] {
		return ErrAlreadyClaimed
	}
	isBacker := caller == state.order.Backer
	if !isBacker && state.fillOf(caller).Sign() == 0 {
		return ErrUnauthorized
	}

	order := state.order
	if e.leagues.IsFixtureResolved(order.League, order.Fixture, order.Resolver) == league.Unresolved {
		return ErrUnresolved
	}
	payload, err := e.leagues.ResolutionPayload(order.League, order.Fixture, order.Resolver)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	outcome, err := bet.DecodeOutcome(payload)
	if err != nil {
		return err
	}

	var share, fee *big.Int
	if isBacker {
		share = bet.BackerShare(outcome, state.backerMatched, state.totalFilled)
		if bet.BackerFeeWon(outcome) {
			fee = order.BackerFeeDue(state.backerMatched)
		}
	} else {
		share = bet.LayerShare(outcome, state.fillOf(caller), state.matchedOf(caller))
		if bet.LayerFeeWon(outcome) {
			fee = order.LayerFeeDue(state.fillOf(caller))
		}
	}

	// The fee is part of the claim: an unpayable fee fails the whole call.
	feeToken := e.registry.GetAddress(params.RoleFeeToken)
	if fee != nil && fee.Sign() > 0 {
		if e.vault.BalanceOf(feeToken, caller).Cmp(fee) < 0 {
			return ErrInsufficientEscrow
		}
	}

	// Journal the settled record before moving any funds. A failed journal
	// write aborts with nothing transferred and the claim still open; if a
	// transfer then fails the prior record is re-journaled best effort.
	prior := state.record()
	settled := state.record()
	settled.Claimed[caller] = true
	if err := e.persist(digest, settled); err != nil {
		return err
	}

	if share.Sign() > 0 {
		if err := e.vault.TransferFrom(e.self, order.Token, e.self, caller, share); err != nil {
			_ = e.persist(digest, prior)
			return fmt.Errorf("%w: %v", ErrInsufficientEscrow, err)
		}
	}
	if fee != nil && fee.Sign() > 0 {
		if err := e.vault.TransferFrom(e.self, feeToken, caller, order.FeeRecipient, fee); err != nil {
			if share.Sign() > 0 {
				_ = e.vault.TransferFrom(e.self, order.Token, caller, e.self, share)
			}
			_ = e.persist(digest, prior)
			return fmt.Errorf("%w: %v", ErrInsufficientEscrow, err)
		}
	}

	state.claimed[caller] = true

	e.log.Info("claim settled",
		zap.String("digest", digest.Hex()),
		zap.String("claimant", caller.Hex()),
		zap.String("outcome", outcome.String()),
		zap.String("share", share.String()))
	e.publish(Event{Type: EventClaim, Digest: digest, Actor: caller, Amount: share, Outcome: outcome.String()})
	return nil
}

// CancelOrder cancels by full order rather than digest, so a backer can
// withdraw an order no layer has filled yet: the digest is recomputed and a
// cancelled record materialized if none exists.
func (e *Engine) CancelOrder(caller common.Address, order *bet.Order, nonce uint64) (common.Hash, error) {
	digest := bet.Digest(order, nonce)
	if caller != order.Backer {
		return digest, ErrUnauthorized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.orders[digest]
	if ok {
		if state.cancelled {
			return digest, ErrAlreadyCancelled
		}
		if state.remaining().Sign() <= 0 {
			return digest, ErrAlreadyFilled
		}
	} else {
		state = newOrderState(order, nonce)
	}

	rec := state.record()
	rec.Cancelled = true
	if err := e.persist(digest, rec); err != nil {
		return digest, err
	}
	state.cancelled = true
	if !ok {
		e.orders[digest] = state
		e.index(order.Backer, digest)
	}

	e.log.Info("order cancelled", zap.String("digest", digest.Hex()))
	e.publish(Event{Type: EventCancel, Digest: digest, Actor: caller})
	return digest, nil
}

// GetOrderDetails returns the read projection for a digest.
func (e *Engine) GetOrderDetails(digest common.Hash) (*OrderDetails, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.orders[digest]
	if !ok {
		return nil, ErrUnknownOrder
	}
	return &OrderDetails{
		Order:         state.order,
		Nonce:         state.nonce,
		TotalFilled:   new(big.Int).Set(state.totalFilled),
		BackerMatched: new(big.Int).Set(state.backerMatched),
		Cancelled:     state.cancelled,
		Layers:        append([]common.Address(nil), state.layers...),
	}, nil
}

// GetFillAmount returns the cumulative fill for (digest, layer).
func (e *Engine) GetFillAmount(digest common.Hash, layer common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.orders[digest]; ok {
		return new(big.Int).Set(state.fillOf(layer))
	}
	return new(big.Int)
}

// GetOrdersBySubject returns every digest the address participates in, as
// backer or layer, in first-seen order.
func (e *Engine) GetOrdersBySubject(subject common.Address) []common.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]common.Hash(nil), e.bySubject[subject]...)
}

// IsCancelled reports the cancelled flag for a digest.
func (e *Engine) IsCancelled(digest common.Hash) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.orders[digest]
	return ok && state.cancelled
}

// IsClaimed reports whether the party has already claimed.
func (e *Engine) IsClaimed(digest common.Hash, party common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.orders[digest]
	return ok && state.claimed[party]
}

// Restore loads persisted order records, replacing in-memory state. Called
// once at startup before the engine serves traffic.
func (e *Engine) Restore(records map[common.Hash]*OrderRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = make(map[common.Hash]*orderState, len(records))
	e.bySubject = make(map[common.Address][]common.Hash)
	for digest, rec := range records {
		state := stateFromRecord(rec)
		e.orders[digest] = state
		e.index(state.order.Backer, digest)
		for _, layer := range state.layers {
			e.index(layer, digest)
		}
	}
}

func (e *Engine) index(subject common.Address, digest common.Hash) {
	e.bySubject[subject] = append(e.bySubject[subject], digest)
}

func (e *Engine) persist(digest common.Hash, rec *OrderRecord) error {
	if e.journal == nil {
		return nil
	}
	return e.journal.PutOrder(digest, rec)
}

func (e *Engine) publish(ev Event) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}
