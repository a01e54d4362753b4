package engine

import "errors"

// Validation failures on the submitted order or fill.
var (
	ErrInvalidSignature   = errors.New("engine: signature does not recover to backer")
	ErrInvalidOrderParams = errors.New("engine: invalid order parameters")
	ErrExpired            = errors.New("engine: order has expired")
)

// Authorization failures on the caller.
var (
	ErrSelfFill          = errors.New("engine: backer cannot fill own order")
	ErrUnauthorizedLayer = errors.New("engine: caller is not the designated layer")
	ErrUnauthorized      = errors.New("engine: caller is not a party to the order")
)

// State conflicts against current per-digest state.
var (
	ErrUnknownOrder     = errors.New("engine: unknown order")
	ErrAlreadyCancelled = errors.New("engine: order is cancelled")
	ErrAlreadyFilled    = errors.New("engine: order is fully filled")
	ErrCapacityExceeded = errors.New("engine: fill exceeds remaining capacity")
	ErrAlreadyClaimed   = errors.New("engine: caller already claimed")
	ErrUnresolved       = errors.New("engine: fixture is not resolved")
)

// External dependency rejections surfaced from the league service.
var (
	ErrInvalidFixture       = errors.New("engine: fixture is not valid for league")
	ErrUnregisteredResolver = errors.New("engine: resolver is not registered for league")
	ErrAlreadyResolved      = errors.New("engine: fixture is already resolved")
)

// Escrow shortfalls.
var ErrInsufficientEscrow = errors.New("engine: insufficient escrow balance or approval")
