package seat

import "errors"

// Seat-level and shape errors.
var (
	ErrInvalidShape    = errors.New("invalid event shape")
	ErrOutOfBounds     = errors.New("coordinate out of bounds")
	ErrAlreadyReserved = errors.New("seat already reserved")
)
