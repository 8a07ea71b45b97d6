package witness

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evm"
)

// ExecStep is one recorded execution step. It maps to exactly one gadget
// invocation during assignment.
type ExecStep struct {
	Opcode evm.OpCode

	RwCounter              uint64
	ProgramCounter         uint64
	StackPointer           uint64
	GasLeft                uint64
	MemoryWordSize         uint64
	ReversibleWriteCounter uint64
	CallID                 uint64

	// Rws are the read/write entries this step consumed, in the order the
	// constraints assume.
	Rws []Rw
}

// Call is the call-frame context shared by every step executing in it.
type Call struct {
	ID                      uint64
	IsRoot                  bool
	IsCreate                bool
	IsStatic                bool
	IsPersistent            bool
	RwCounterEndOfReversion uint64
	CodeHash                uint256.Int
}

// Transaction carries the per-transaction scalars gadgets may read.
type Transaction struct {
	ID uint64
}

// CopyEvent is one expected copy-table row: a bulk byte copy between two
// data sources, recorded so copy-table lookups can be checked against the
// witness.
type CopyEvent struct {
	SrcID   uint64
	SrcTag  CopyDataType
	DstID   uint64
	DstTag  CopyDataType
	SrcAddr uint64
	SrcEnd  uint64
	DstAddr uint64
	Length  uint64
	// Rlc is the running random-linear-combination accumulator of the copied
	// bytes under the block challenge.
	Rlc fr.Element
	// RwCounter is the number of rw-table rows the copy consumed.
	RwCounter uint64
}

// Block groups the trace-wide read-only tables: all steps, calls,
// transactions and expected copy events, plus the RLC challenge.
type Block struct {
	Steps      []ExecStep
	Calls      []Call
	Txs        []Transaction
	CopyEvents []CopyEvent

	// Challenge is the randomness used for byte RLC accumulators.
	Challenge fr.Element
}

// GetRws returns the idx-th rw entry of step.
func (b *Block) GetRws(step *ExecStep, idx int) Rw {
	return step.Rws[idx]
}

// Rlc folds bs into a running random-linear-combination accumulator under
// the block challenge, most significant byte first.
func (b *Block) Rlc(bs []byte) fr.Element {
	var acc fr.Element
	for _, v := range bs {
		e := fr.NewElement(uint64(v))
		acc.Mul(&acc, &b.Challenge)
		acc.Add(&acc, &e)
	}
	return acc
}
