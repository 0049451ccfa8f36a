package mixrack

import "errors"

// Errors used to classify discarded mutations. Callers should test them with
// errors.Is, as they are usually wrapped with the offending index or name.
var (
	ErrOutOfRange    = errors.New("index out of range")
	ErrTypeMismatch  = errors.New("unknown variant")
	ErrStaleUpdate   = errors.New("stale update")
	ErrUnknownEffect = errors.New("unknown effect type")
	ErrInvalidRoute  = errors.New("invalid route")
)
