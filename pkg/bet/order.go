// Package bet defines the canonical wager order, its deterministic digest,
// and the pure settlement arithmetic shared by the fill engine.
package bet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlay/openlay/params"
)

// Order is a backer's signed wager intent. Immutable once signed: any field
// change produces a different digest and therefore a different order.
type Order struct {
	// Identity fields, in canonical hashing order.
	Backer       common.Address // party proposing the wager; signs the digest
	Layer        common.Address // optional; zero address = open to any layer
	Token        common.Address // settlement token
	FeeRecipient common.Address // credited claim-time fees
	League       common.Address // fixture scope (league/market)
	Resolver     common.Address // outcome source registered for the league

	// Numeric fields, in canonical hashing order.
	BackerStake *big.Int // backer-side stake, token units
	BackerFee   *big.Int // fee owed by the backer on a winning claim
	LayerFee    *big.Int // fee owed by a layer on a winning claim
	Fixture     *big.Int // fixture identifier within the league
	Odds        *big.Int // decimal odds, fixed point (params.OddsDecimals)
	Expiration  *big.Int // unix seconds after which fills are rejected

	// Payload is the opaque outcome-selector the resolver interprets.
	Payload []byte
}

// Subjects returns the identity fields in canonical order.
func (o *Order) Subjects() [6]common.Address {
	return [6]common.Address{o.Backer, o.Layer, o.Token, o.FeeRecipient, o.League, o.Resolver}
}

// NumericParams returns the numeric fields in canonical order.
func (o *Order) NumericParams() [6]*big.Int {
	return [6]*big.Int{o.BackerStake, o.BackerFee, o.LayerFee, o.Fixture, o.Odds, o.Expiration}
}

// LayerCapacity is the total layer-side stake the order can absorb:
// backerStake * odds / oddsScale, rounded down.
func (o *Order) LayerCapacity() *big.Int {
	cap := new(big.Int).Mul(o.BackerStake, o.Odds)
	return cap.Div(cap, params.OddsOne)
}

// BackerDebit is the backer-side stake matched by a layer fill:
// fill * oddsScale / odds, rounded down. The remainder stays unmatched.
func (o *Order) BackerDebit(fill *big.Int) *big.Int {
	d := new(big.Int).Mul(fill, params.OddsOne)
	return d.Div(d, o.Odds)
}
