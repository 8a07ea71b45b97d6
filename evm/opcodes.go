// Package evm defines the opcode vocabulary shared by the witness and circuit
// layers: opcode identifiers, their constant gas costs, and precompile
// address metadata.
package evm

import "fmt"

// OpCode is an EVM opcode identifier.
type OpCode byte

// Opcodes covered by the execution gadgets in this module.
const (
	SDIV OpCode = 0x05
	SMOD OpCode = 0x07
	SHL  OpCode = 0x1b
	SHR  OpCode = 0x1c

	CALL         OpCode = 0xf1
	CALLCODE     OpCode = 0xf2
	DELEGATECALL OpCode = 0xf4
	STATICCALL   OpCode = 0xfa
)

// Constant gas cost tiers, as defined by the yellow paper gas schedule.
const (
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasWarmAccess  uint64 = 100
)

var opNames = map[OpCode]string{
	SDIV:         "SDIV",
	SMOD:         "SMOD",
	SHL:          "SHL",
	SHR:          "SHR",
	CALL:         "CALL",
	CALLCODE:     "CALLCODE",
	DELEGATECALL: "DELEGATECALL",
	STATICCALL:   "STATICCALL",
}

func (op OpCode) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("opcode(%#x)", byte(op))
}

// ConstantGasCost returns the static gas charged for op, before any dynamic
// component (memory expansion, cold access, value transfer).
func (op OpCode) ConstantGasCost() uint64 {
	switch op {
	case SDIV, SMOD:
		return GasFastStep
	case SHL, SHR:
		return GasFastestStep
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		// Berlin and later: the static part is folded into the warm access
		// cost, charged by the access-list surcharge logic.
		return 0
	default:
		panic(fmt.Sprintf("no constant gas cost for %v", op))
	}
}

// IsCallFamily reports whether op is one of the four generic call opcodes.
func (op OpCode) IsCallFamily() bool {
	switch op {
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return true
	}
	return false
}
