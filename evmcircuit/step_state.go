package evmcircuit

import (
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// StepState is the typed per-step circuit state: one set of cells for the
// current row, one for the next. The transition between them is declared by
// every gadget and verified by the constraint system regardless of which
// gadget produced the row.
type StepState struct {
	RwCounter              *Cell
	CallID                 *Cell
	IsRoot                 *Cell
	IsCreate               *Cell
	CodeHash               WordLoHiCell
	ProgramCounter         *Cell
	StackPointer           *Cell
	GasLeft                *Cell
	MemoryWordSize         *Cell
	ReversibleWriteCounter *Cell
}

// TransitionKind says how one state field moves between rows.
type TransitionKind uint8

const (
	// TransitionSame keeps the field unchanged. The zero value, so any field
	// left unset in a StepStateTransition is constrained to stay equal.
	TransitionSame TransitionKind = iota
	// TransitionDelta moves the field by a fixed expression.
	TransitionDelta
	// TransitionTo sets the field to an absolute target expression.
	TransitionTo
	// TransitionAny leaves the field unconstrained.
	TransitionAny
)

// Transition is one field's declared movement.
type Transition struct {
	Kind  TransitionKind
	Value *expr.Expression
}

// Delta declares a fixed-delta transition.
func Delta(e *expr.Expression) Transition {
	return Transition{Kind: TransitionDelta, Value: e}
}

// To declares an absolute-target transition.
func To(e *expr.Expression) Transition {
	return Transition{Kind: TransitionTo, Value: e}
}

// Same declares an explicit keep-equal transition.
func Same() Transition { return Transition{Kind: TransitionSame} }

// Any declares an unconstrained transition.
func Any() Transition { return Transition{Kind: TransitionAny} }

// WordTransition is Transition for the code-hash word field.
type WordTransition struct {
	Kind  TransitionKind
	Value WordLoHi
}

// ToWord declares an absolute-target word transition.
func ToWord(w WordLoHi) WordTransition {
	return WordTransition{Kind: TransitionTo, Value: w}
}

// StepStateTransition declares how every state field moves from the current
// row to the next. Zero-valued fields mean "stays the same".
type StepStateTransition struct {
	RwCounter              Transition
	CallID                 Transition
	IsRoot                 Transition
	IsCreate               Transition
	CodeHash               WordTransition
	ProgramCounter         Transition
	StackPointer           Transition
	GasLeft                Transition
	MemoryWordSize         Transition
	ReversibleWriteCounter Transition
}

// NewContextTransition returns the transition base used when control enters
// a fresh callee frame: program counter and memory restart at zero, the
// stack is empty. Callers override the remaining fields.
func NewContextTransition() StepStateTransition {
	return StepStateTransition{
		ProgramCounter: To(expr.Zero()),
		StackPointer:   To(expr.U64(StackCapacity)),
		MemoryWordSize: To(expr.Zero()),
	}
}

// StepStateValues are the concrete values of a step's typed state, used to
// assign the current and next state cells of a row.
type StepStateValues struct {
	RwCounter              uint64
	CallID                 uint64
	IsRoot                 bool
	IsCreate               bool
	CodeHash               uint256.Int
	ProgramCounter         uint64
	StackPointer           uint64
	GasLeft                uint64
	MemoryWordSize         uint64
	ReversibleWriteCounter uint64
}

func (s *StepState) assign(region *CachedRegion, offset int, v StepStateValues) error {
	if err := s.RwCounter.AssignU64(region, offset, v.RwCounter); err != nil {
		return err
	}
	if err := s.CallID.AssignU64(region, offset, v.CallID); err != nil {
		return err
	}
	if err := s.IsRoot.AssignBool(region, offset, v.IsRoot); err != nil {
		return err
	}
	if err := s.IsCreate.AssignBool(region, offset, v.IsCreate); err != nil {
		return err
	}
	if err := s.CodeHash.AssignU256(region, offset, &v.CodeHash); err != nil {
		return err
	}
	if err := s.ProgramCounter.AssignU64(region, offset, v.ProgramCounter); err != nil {
		return err
	}
	if err := s.StackPointer.AssignU64(region, offset, v.StackPointer); err != nil {
		return err
	}
	if err := s.GasLeft.AssignU64(region, offset, v.GasLeft); err != nil {
		return err
	}
	if err := s.MemoryWordSize.AssignU64(region, offset, v.MemoryWordSize); err != nil {
		return err
	}
	return s.ReversibleWriteCounter.AssignU64(region, offset, v.ReversibleWriteCounter)
}
