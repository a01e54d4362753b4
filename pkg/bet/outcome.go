package bet

import (
	"errors"
	"fmt"
)

// Outcome is the settlement result decoded from a resolution payload.
// The codes are a closed enumeration; anything else is rejected.
type Outcome uint8

const (
	BackerWins     Outcome = 1
	BackerHalfWins Outcome = 2
	LayerWins      Outcome = 3
	LayerHalfWins  Outcome = 4
	Push           Outcome = 5
)

var ErrInvalidOutcome = errors.New("bet: invalid outcome payload")

func (oc Outcome) String() string {
	switch oc {
	case BackerWins:
		return "backer_wins"
	case BackerHalfWins:
		return "backer_half_wins"
	case LayerWins:
		return "layer_wins"
	case LayerHalfWins:
		return "layer_half_wins"
	case Push:
		return "push"
	default:
		return "unknown"
	}
}

// DecodeOutcome reads an outcome code from an ABI-style payload: the value
// sits in the last byte of the first 32-byte word. Shorter payloads carry
// the code in their last byte. Zero and out-of-range codes fail.
func DecodeOutcome(payload []byte) (Outcome, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidOutcome)
	}

	var code byte
	if len(payload) >= 32 {
		word := payload[:32]
		for _, b := range word[:31] {
			if b != 0 {
				return 0, fmt.Errorf("%w: non-scalar word", ErrInvalidOutcome)
			}
		}
		code = word[31]
	} else {
		code = payload[len(payload)-1]
	}

	oc := Outcome(code)
	if oc < BackerWins || oc > Push {
		return 0, fmt.Errorf("%w: code %d", ErrInvalidOutcome, code)
	}
	return oc, nil
}
