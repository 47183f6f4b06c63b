package smoothie

import "errors"

var (
	// ErrAxisCount is returned when a position or parameter field carries
	// a number of values other than three or six.
	ErrAxisCount = errors.New("unexpected axis count")

	// ErrNotDecimal is returned when a coordinate token is not a decimal
	// literal.
	ErrNotDecimal = errors.New("not a decimal value")

	// ErrNotCounter is returned when a buffer counter or probe result is
	// not a non-negative integer.
	ErrNotCounter = errors.New("not a counter value")

	// ErrPinState is returned when a limit pin token contains anything
	// other than 0/1 flags.
	ErrPinState = errors.New("malformed pin state")

	// ErrParameter is returned when a parameter dump cannot be decoded
	// for its key.
	ErrParameter = errors.New("malformed parameter")

	// ErrUnknownKind is returned by ParseKind for a name no event kind uses.
	ErrUnknownKind = errors.New("unknown event kind")
)
