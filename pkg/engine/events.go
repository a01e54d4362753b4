package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType tags settlement events published to subscribers.
type EventType string

const (
	EventFill   EventType = "fill"
	EventCancel EventType = "cancel"
	EventClaim  EventType = "claim"
)

// Event is a settlement notification. Amount carries the fill size for
// fills and the released share for claims; Outcome is set on claims only.
type Event struct {
	Type    EventType      `json:"type"`
	Digest  common.Hash    `json:"digest"`
	Actor   common.Address `json:"actor"`
	Amount  *big.Int       `json:"amount,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
}

// EventSink receives events synchronously after each committed mutation.
// Implementations must not block.
type EventSink interface {
	Publish(Event)
}
