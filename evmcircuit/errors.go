package evmcircuit

import "errors"

var (
	// ErrValueOverflow is returned when a witness value does not fit the
	// width the constraints assume, e.g. 64-bit gas arithmetic.
	ErrValueOverflow = errors.New("evmcircuit: witness value overflows expected width")
	// ErrIdentityUnsatisfied is returned when an intermediate algebraic
	// identity needed for bookkeeping cannot be computed consistently.
	ErrIdentityUnsatisfied = errors.New("evmcircuit: algebraic identity unsatisfied")
	// ErrCellConflict is returned on assigning two different values to the
	// same cell of the same row.
	ErrCellConflict = errors.New("evmcircuit: conflicting cell assignment")
)
