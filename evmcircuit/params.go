// Package evmcircuit implements the execution-gadget framework: cell and
// word allocation, the EVM constraint builder, the step-state transition
// contract, fixed tables and the witness verification harness. Execution
// gadgets are configured once against a builder, producing an immutable
// constraint set, and assigned once per matching execution step.
package evmcircuit

import "github.com/consensys/zkevm-gadgets/evm"

// Byte widths used to size range-constrained cells.
const (
	NBytesU64            = 8
	NBytesGas            = 8
	NBytesAccountAddress = 20
	NBytesMemoryAddress  = 5
	NBytesMemoryWordSize = 4
	NBytesWord           = 32
)

const (
	// StackCapacity is the stack pointer value of an empty stack.
	StackCapacity = 1024
	// CallDepthLimit bounds the call nesting depth; a call at depth 1025
	// fails its precheck.
	CallDepthLimit = 1025
	// MemoryExpansionQuadCoeffDiv is the divisor of the quadratic memory
	// expansion gas term.
	MemoryExpansionQuadCoeffDiv = 512
	// MemoryExpansionLinearCoeff is the per-word linear memory gas cost.
	MemoryExpansionLinearCoeff = 3
)

// ExecutionState identifies which gadget owns a step.
type ExecutionState uint8

const (
	StateSdivSmod ExecutionState = iota + 1
	StateShlShr
	StateCallOp
)

func (s ExecutionState) String() string {
	switch s {
	case StateSdivSmod:
		return "SDIV_SMOD"
	case StateShlShr:
		return "SHL_SHR"
	case StateCallOp:
		return "CALL_OP"
	}
	return "executionState(?)"
}

// StateForOpcode maps an opcode to the execution state of the gadget that
// handles it.
func StateForOpcode(op evm.OpCode) (ExecutionState, bool) {
	switch op {
	case evm.SDIV, evm.SMOD:
		return StateSdivSmod, true
	case evm.SHL, evm.SHR:
		return StateShlShr, true
	case evm.CALL, evm.CALLCODE, evm.DELEGATECALL, evm.STATICCALL:
		return StateCallOp, true
	}
	return 0, false
}
