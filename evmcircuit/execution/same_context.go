// Package execution holds the per-opcode execution gadgets and the
// dispatcher that routes witness steps to them. Each gadget pairs a
// configure-time constructor emitting constraints on an EVMConstraintBuilder
// with an Assign method filling the queried cells from one execution step.
package execution

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/mathgadget"
	"github.com/consensys/zkevm-gadgets/witness"
)

// SameContextGadget covers the bookkeeping shared by every opcode that stays
// in its call frame: the opcode lookup, the gas underflow check and the
// declared step-state transition.
type SameContextGadget struct {
	opcode            *evmcircuit.Cell
	sufficientGasLeft *mathgadget.RangeCheckGadget
}

func NewSameContext(cb *evmcircuit.EVMConstraintBuilder, opcode *evmcircuit.Cell, t evmcircuit.StepStateTransition) *SameContextGadget {
	cb.OpcodeLookup(opcode.Expr())
	// Gas left on the next row must be a non-negative 64-bit quantity,
	// otherwise the gas deduction underflowed.
	sufficientGasLeft := mathgadget.NewRangeCheck(cb, evmcircuit.NBytesGas, cb.Next().GasLeft.Expr())
	cb.RequireStepStateTransition(t)
	return &SameContextGadget{
		opcode:            opcode,
		sufficientGasLeft: sufficientGasLeft,
	}
}

func (g *SameContextGadget) Assign(region *evmcircuit.CachedRegion, offset int, step *witness.ExecStep, gasCost uint64) error {
	if err := g.opcode.AssignU64(region, offset, uint64(step.Opcode)); err != nil {
		return err
	}
	if step.GasLeft < gasCost {
		return evmcircuit.ErrValueOverflow
	}
	return g.sufficientGasLeft.Assign(region, offset, fr.NewElement(step.GasLeft-gasCost))
}
