package api

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/openlay/openlay/pkg/bet"
	"github.com/openlay/openlay/pkg/engine"
)

// OrderJSON is the wire shape of a wager order: addresses hex, amounts as
// decimal strings, payload hex.
type OrderJSON struct {
	Backer       string `json:"backer"`
	Layer        string `json:"layer,omitempty"`
	Token        string `json:"token"`
	FeeRecipient string `json:"feeRecipient"`
	League       string `json:"league"`
	Resolver     string `json:"resolver"`
	BackerStake  string `json:"backerStake"`
	BackerFee    string `json:"backerFee"`
	LayerFee     string `json:"layerFee"`
	Fixture      string `json:"fixture"`
	Odds         string `json:"odds"`
	Expiration   string `json:"expiration"`
	Payload      string `json:"payload"`
}

func parseAmount(name, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s: %q", name, s)
	}
	return v, nil
}

// ToOrder converts the wire shape into the canonical order.
func (o *OrderJSON) ToOrder() (*bet.Order, error) {
	order := &bet.Order{
		Backer:       common.HexToAddress(o.Backer),
		Layer:        common.HexToAddress(o.Layer),
		Token:        common.HexToAddress(o.Token),
		FeeRecipient: common.HexToAddress(o.FeeRecipient),
		League:       common.HexToAddress(o.League),
		Resolver:     common.HexToAddress(o.Resolver),
	}
	var err error
	if order.BackerStake, err = parseAmount("backerStake", o.BackerStake); err != nil {
		return nil, err
	}
	if order.BackerFee, err = parseAmount("backerFee", o.BackerFee); err != nil {
		return nil, err
	}
	if order.LayerFee, err = parseAmount("layerFee", o.LayerFee); err != nil {
		return nil, err
	}
	if order.Fixture, err = parseAmount("fixture", o.Fixture); err != nil {
		return nil, err
	}
	if order.Odds, err = parseAmount("odds", o.Odds); err != nil {
		return nil, err
	}
	if order.Expiration, err = parseAmount("expiration", o.Expiration); err != nil {
		return nil, err
	}
	if o.Payload != "" {
		if order.Payload, err = hexutil.Decode(o.Payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
	}
	return order, nil
}

// FromOrder converts a canonical order back to the wire shape.
func FromOrder(o *bet.Order) OrderJSON {
	return OrderJSON{
		Backer:       o.Backer.Hex(),
		Layer:        o.Layer.Hex(),
		Token:        o.Token.Hex(),
		FeeRecipient: o.FeeRecipient.Hex(),
		League:       o.League.Hex(),
		Resolver:     o.Resolver.Hex(),
		BackerStake:  o.BackerStake.String(),
		BackerFee:    o.BackerFee.String(),
		LayerFee:     o.LayerFee.String(),
		Fixture:      o.Fixture.String(),
		Odds:         o.Odds.String(),
		Expiration:   o.Expiration.String(),
		Payload:      hexutil.Encode(o.Payload),
	}
}

// FillRequest submits a layer's fill against a signed order.
type FillRequest struct {
	Caller     string    `json:"caller"`
	Order      OrderJSON `json:"order"`
	Nonce      uint64    `json:"nonce"`
	FillAmount string    `json:"fillAmount"`
	Signature  string    `json:"signature"`
}

// CancelRequest cancels by digest (materialized orders) or by full order
// (orders no layer has filled yet).
type CancelRequest struct {
	Caller string     `json:"caller"`
	Digest string     `json:"digest,omitempty"`
	Order  *OrderJSON `json:"order,omitempty"`
	Nonce  uint64     `json:"nonce,omitempty"`
}

// ClaimRequest settles the caller's side of a resolved order.
type ClaimRequest struct {
	Caller string `json:"caller"`
	Digest string `json:"digest"`
}

// DepositRequest credits the caller's escrow balance. The native token
// sentinel takes value; every other token takes amount and settles through
// the external token bridge.
type DepositRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount,omitempty"`
	Value  string `json:"value,omitempty"`
}

// WithdrawRequest debits the caller's escrow balance and releases the funds
// externally.
type WithdrawRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// ApproveRequest records the caller's consent for the installed spender to
// move their escrow balances.
type ApproveRequest struct {
	Caller string `json:"caller"`
	Agent  string `json:"agent"`
}

// OrderDetailsResponse is the read projection returned for one digest.
type OrderDetailsResponse struct {
	Digest        string    `json:"digest"`
	Order         OrderJSON `json:"order"`
	Nonce         uint64    `json:"nonce"`
	TotalFilled   string    `json:"totalFilled"`
	BackerMatched string    `json:"backerMatched"`
	Cancelled     bool      `json:"cancelled"`
	Layers        []string  `json:"layers"`
}

func detailsResponse(digest common.Hash, d *engine.OrderDetails) OrderDetailsResponse {
	layers := make([]string, len(d.Layers))
	for i, l := range d.Layers {
		layers[i] = l.Hex()
	}
	return OrderDetailsResponse{
		Digest:        digest.Hex(),
		Order:         FromOrder(d.Order),
		Nonce:         d.Nonce,
		TotalFilled:   d.TotalFilled.String(),
		BackerMatched: d.BackerMatched.String(),
		Cancelled:     d.Cancelled,
		Layers:        layers,
	}
}

// DigestResponse acknowledges a state mutation for one digest.
type DigestResponse struct {
	Digest string `json:"digest"`
}

// BalanceResponse returns one escrow balance.
type BalanceResponse struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
}

// FillAmountResponse returns one (digest, layer) cumulative fill.
type FillAmountResponse struct {
	Digest string `json:"digest"`
	Layer  string `json:"layer"`
	Filled string `json:"filled"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
