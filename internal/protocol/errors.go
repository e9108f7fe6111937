package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Maze/state layer.
	ErrInvalidDimension = "E_INVALID_DIMENSION"
	ErrOutOfBounds      = "E_OUT_OF_BOUNDS"
	ErrMalformedEvent   = "E_MALFORMED_EVENT"
	ErrLoadFailure      = "E_LOAD_FAILURE"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownAgent  = "E_UNKNOWN_AGENT"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrInvalidDimension: {},
	ErrOutOfBounds:      {},
	ErrMalformedEvent:   {},
	ErrLoadFailure:      {},
	ErrBadRequest:       {},
	ErrUnknownAgent:     {},
	ErrInvalidTarget:    {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
