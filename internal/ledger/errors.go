package ledger

import "errors"

// Ledger errors.
var (
	ErrUnknownField  = errors.New("unknown field")
	ErrComputedField = errors.New("field is computed by a formula")
	ErrNotComputed   = errors.New("field has no formula")
	ErrReadOnlySheet = errors.New("sheet is read-only")
	ErrInvalidValue  = errors.New("invalid value")
)
