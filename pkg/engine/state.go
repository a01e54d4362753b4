package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlay/openlay/pkg/bet"
)

// orderState is the per-digest settlement record. Materialized lazily on the
// first fill and never deleted: claims must stay queryable indefinitely.
type orderState struct {
	order *bet.Order
	nonce uint64

	// totalFilled is the cumulative layer-side stake across all layers.
	totalFilled *big.Int
	// backerMatched is the cumulative backer-side stake actually debited,
	// summed per fill so per-fill rounding never leaks out of custody.
	backerMatched *big.Int

	cancelled bool

	// layers preserves first-fill order for deterministic iteration.
	layers []common.Address
	// fills[layer] and matched[layer] mirror totalFilled/backerMatched
	// per layer.
	fills   map[common.Address]*big.Int
	matched map[common.Address]*big.Int

	claimed map[common.Address]bool
}

func newOrderState(o *bet.Order, nonce uint64) *orderState {
	return &orderState{
		order:         o,
		nonce:         nonce,
		totalFilled:   new(big.Int),
		backerMatched: new(big.Int),
		fills:         make(map[common.Address]*big.Int),
		matched:       make(map[common.Address]*big.Int),
		claimed:       make(map[common.Address]bool),
	}
}

func (s *orderState) fillOf(layer common.Address) *big.Int {
	if f, ok := s.fills[layer]; ok {
		return f
	}
	return new(big.Int)
}

func (s *orderState) matchedOf(layer common.Address) *big.Int {
	if m, ok := s.matched[layer]; ok {
		return m
	}
	return new(big.Int)
}

func (s *orderState) remaining() *big.Int {
	return new(big.Int).Sub(s.order.LayerCapacity(), s.totalFilled)
}

// OrderDetails is the read projection of an order's settlement record.
type OrderDetails struct {
	Order         *bet.Order       `json:"order"`
	Nonce         uint64           `json:"nonce"`
	TotalFilled   *big.Int         `json:"totalFilled"`
	BackerMatched *big.Int         `json:"backerMatched"`
	Cancelled     bool             `json:"cancelled"`
	Layers        []common.Address `json:"layers"`
}

// OrderRecord is the persisted snapshot of an order's state, shaped for the
// storage layer's JSON codec.
type OrderRecord struct {
	Order         *bet.Order                  `json:"order"`
	Nonce         uint64                      `json:"nonce"`
	TotalFilled   *big.Int                    `json:"totalFilled"`
	BackerMatched *big.Int                    `json:"backerMatched"`
	Cancelled     bool                        `json:"cancelled"`
	Layers        []common.Address            `json:"layers"`
	Fills         map[common.Address]*big.Int `json:"fills"`
	Matched       map[common.Address]*big.Int `json:"matched"`
	Claimed       map[common.Address]bool     `json:"claimed"`
}

func (s *orderState) record() *OrderRecord {
	rec := &OrderRecord{
		Order:         s.order,
		Nonce:         s.nonce,
		TotalFilled:   new(big.Int).Set(s.totalFilled),
		BackerMatched: new(big.Int).Set(s.backerMatched),
		Cancelled:     s.cancelled,
		Layers:        append([]common.Address(nil), s.layers...),
		Fills:         make(map[common.Address]*big.Int, len(s.fills)),
		Matched:       make(map[common.Address]*big.Int, len(s.matched)),
		Claimed:       make(map[common.Address]bool, len(s.claimed)),
	}
	for a, f := range s.fills {
		rec.Fills[a] = new(big.Int).Set(f)
	}
	for a, m := range s.matched {
		rec.Matched[a] = new(big.Int).Set(m)
	}
	for a, c := range s.claimed {
		rec.Claimed[a] = c
	}
	return rec
}

func stateFromRecord(rec *OrderRecord) *orderState {
	s := newOrderState(rec.Order, rec.Nonce)
	s.totalFilled.Set(rec.TotalFilled)
	if rec.BackerMatched != nil {
		s.backerMatched.Set(rec.BackerMatched)
	}
	s.cancelled = rec.Cancelled
	s.layers = append([]common.Address(nil), rec.Layers...)
	for a, f := range rec.Fills {
		s.fills[a] = new(big.Int).Set(f)
	}
	for a, m := range rec.Matched {
		s.matched[a] = new(big.Int).Set(m)
	}
	for a, c := range rec.Claimed {
		s.claimed[a] = c
	}
	return s
}
