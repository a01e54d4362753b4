package bet

import "math/big"

// Settlement math. All divisions round down; any residue stays in the fill
// engine's custody balance rather than being distributed.

var two = big.NewInt(2)

func half(x *big.Int) *big.Int { return new(big.Int).Div(x, two) }

// BackerShare is the amount released from custody to the backer for a given
// outcome, where debit is the backer-side stake committed at fill time and
// filled is the total layer stake across all fills.
//
// A winning backer recovers their committed stake plus the opposing fill; a
// half win returns the stake plus half the fill; a half loss returns half
// the stake; a push returns exactly the stake.
func BackerShare(oc Outcome, debit, filled *big.Int) *big.Int {
	switch oc {
	case BackerWins:
		return new(big.Int).Add(debit, filled)
	case BackerHalfWins:
		return new(big.Int).Add(debit, half(filled))
	case LayerWins:
		return new(big.Int)
	case LayerHalfWins:
		return half(debit)
	case Push:
		return new(big.Int).Set(debit)
	default:
		return new(big.Int)
	}
}

// LayerShare is the amount released from custody to one layer, where fill is
// that layer's cumulative fill and matched is the backer stake it matched.
func LayerShare(oc Outcome, fill, matched *big.Int) *big.Int {
	switch oc {
	case BackerWins:
		return new(big.Int)
	case BackerHalfWins:
		return half(fill)
	case LayerWins:
		return new(big.Int).Add(fill, matched)
	case LayerHalfWins:
		return new(big.Int).Add(fill, half(matched))
	case Push:
		return new(big.Int).Set(fill)
	default:
		return new(big.Int)
	}
}

// BackerFeeWon reports whether the outcome charges the backer's fee.
func BackerFeeWon(oc Outcome) bool {
	return oc == BackerWins || oc == BackerHalfWins
}

// LayerFeeWon reports whether the outcome charges a layer's fee.
func LayerFeeWon(oc Outcome) bool {
	return oc == LayerWins || oc == LayerHalfWins
}

// BackerFeeDue scales the order's backer fee to the fraction of the stake
// actually matched: backerFee * debit / backerStake.
func (o *Order) BackerFeeDue(debit *big.Int) *big.Int {
	if o.BackerStake.Sign() == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(o.BackerFee, debit)
	return fee.Div(fee, o.BackerStake)
}

// LayerFeeDue scales the order's layer fee to one layer's share of the full
// layer capacity: layerFee * fill / capacity.
func (o *Order) LayerFeeDue(fill *big.Int) *big.Int {
	cap := o.LayerCapacity()
	if cap.Sign() == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(o.LayerFee, fill)
	return fee.Div(fee, cap)
}
