package execution

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/evmcircuit/mathgadget"
)

// MemoryAddressGadget decodes an (offset, length) pair popped from the
// stack. The offset word is only bound to its 5-byte decomposition when the
// length is non-zero: a zero-length access may carry an arbitrarily large
// offset without touching memory.
type MemoryAddressGadget struct {
	offsetWord   evmcircuit.WordLoHiCell
	offsetBytes  []*evmcircuit.Cell
	lengthBytes  []*evmcircuit.Cell
	lengthIsZero *mathgadget.IsZeroGadget
}

func NewMemoryAddress(cb *evmcircuit.EVMConstraintBuilder) *MemoryAddressGadget {
	g := &MemoryAddressGadget{
		offsetWord:  cb.QueryWordLoHi(),
		offsetBytes: cb.QueryBytes(evmcircuit.NBytesMemoryAddress),
		lengthBytes: cb.QueryBytes(evmcircuit.NBytesMemoryAddress),
	}
	lengthLimbs := make([]*expr.Expression, len(g.lengthBytes))
	for i, c := range g.lengthBytes {
		lengthLimbs[i] = c.Expr()
	}
	g.lengthIsZero = mathgadget.NewIsZero(cb, expr.Sum(lengthLimbs))

	cb.Condition(g.HasLength(), func() {
		cb.RequireEqualWord(
			"memory offset fits the address space when length != 0",
			g.offsetWord.ToWord(),
			evmcircuit.WordFromLo(evmcircuit.RecomposeBytes(g.offsetBytes)),
		)
	})
	return g
}

// OffsetWord returns the raw offset word as popped from the stack.
func (g *MemoryAddressGadget) OffsetWord() evmcircuit.WordLoHi { return g.offsetWord.ToWord() }

// LengthWord returns the length as a stack word.
func (g *MemoryAddressGadget) LengthWord() evmcircuit.WordLoHi {
	return evmcircuit.WordFromLo(g.Length())
}

// HasLength is one iff the access touches at least one byte.
func (g *MemoryAddressGadget) HasLength() *expr.Expression {
	return expr.Not(g.lengthIsZero.Expr())
}

// Offset is the effective start address, zero for zero-length accesses.
func (g *MemoryAddressGadget) Offset() *expr.Expression {
	return expr.Mul(g.HasLength(), evmcircuit.RecomposeBytes(g.offsetBytes))
}

// Length is the access length in bytes.
func (g *MemoryAddressGadget) Length() *expr.Expression {
	return evmcircuit.RecomposeBytes(g.lengthBytes)
}

// Address is the end address offset+length, driving memory expansion.
func (g *MemoryAddressGadget) Address() *expr.Expression {
	return expr.Add(g.Offset(), g.Length())
}

// Assign decodes the concrete stack words and returns the end address.
func (g *MemoryAddressGadget) Assign(region *evmcircuit.CachedRegion, offset int, memOffset, memLength *uint256.Int) (uint64, error) {
	if err := g.offsetWord.AssignU256(region, offset, memOffset); err != nil {
		return 0, err
	}
	if !memLength.IsUint64() {
		return 0, evmcircuit.ErrValueOverflow
	}
	length := memLength.Uint64()

	var start uint64
	if length != 0 {
		if !memOffset.IsUint64() {
			return 0, evmcircuit.ErrValueOverflow
		}
		start = memOffset.Uint64()
	}
	if err := assignAddressBytes(region, offset, g.offsetBytes, start); err != nil {
		return 0, err
	}
	if err := assignAddressBytes(region, offset, g.lengthBytes, length); err != nil {
		return 0, err
	}

	var byteSum uint64
	for i := 0; i < len(g.lengthBytes); i++ {
		byteSum += length >> (8 * i) & 0xff
	}
	if err := g.lengthIsZero.Assign(region, offset, fr.NewElement(byteSum)); err != nil {
		return 0, err
	}
	if length == 0 {
		return 0, nil
	}
	return start + length, nil
}

func assignAddressBytes(region *evmcircuit.CachedRegion, offset int, cells []*evmcircuit.Cell, v uint64) error {
	if len(cells) < 8 && v >= 1<<(8*len(cells)) {
		return evmcircuit.ErrValueOverflow
	}
	for i, c := range cells {
		if err := c.AssignU64(region, offset, v>>(8*i)&0xff); err != nil {
			return err
		}
	}
	return nil
}

// MemoryWordSizeGadget computes the EVM memory size in 32-byte words
// covering an end address: ceil(address / 32).
type MemoryWordSizeGadget struct {
	div *mathgadget.ConstantDivisionGadget
}

func NewMemoryWordSize(cb *evmcircuit.EVMConstraintBuilder, address *expr.Expression) *MemoryWordSizeGadget {
	return &MemoryWordSizeGadget{
		div: mathgadget.NewConstantDivision(cb, evmcircuit.NBytesMemoryWordSize, expr.Add(address, expr.U64(31)), 32),
	}
}

func (g *MemoryWordSizeGadget) WordSize() *expr.Expression { return g.div.Quotient() }

func (g *MemoryWordSizeGadget) Assign(region *evmcircuit.CachedRegion, offset int, address uint64) (uint64, error) {
	q, _, err := g.div.AssignU64(region, offset, address+31)
	return q, err
}

// MemoryExpansionGadget tracks the growth of the memory word size over the
// end addresses of the step's accesses and prices it:
//
//	gas = 3 * (next_size - curr_size) + next_size²/512 - curr_size²/512
type MemoryExpansionGadget struct {
	wordSizes [2]*MemoryWordSizeGadget
	maxSizes  [2]*mathgadget.MinMaxGadget
	currQuad  *mathgadget.ConstantDivisionGadget
	nextQuad  *mathgadget.ConstantDivisionGadget
	next      *expr.Expression
	gasCost   *expr.Expression
}

func NewMemoryExpansion(cb *evmcircuit.EVMConstraintBuilder, addresses [2]*expr.Expression) *MemoryExpansionGadget {
	g := &MemoryExpansionGadget{}
	curr := cb.Curr().MemoryWordSize.Expr()

	last := curr
	for i := range addresses {
		g.wordSizes[i] = NewMemoryWordSize(cb, addresses[i])
		g.maxSizes[i] = mathgadget.NewMinMax(cb, evmcircuit.NBytesMemoryWordSize, last, g.wordSizes[i].WordSize())
		last = g.maxSizes[i].Max()
	}
	g.next = last

	g.currQuad = mathgadget.NewConstantDivision(cb, evmcircuit.NBytesGas, expr.Mul(curr, curr), evmcircuit.MemoryExpansionQuadCoeffDiv)
	g.nextQuad = mathgadget.NewConstantDivision(cb, evmcircuit.NBytesGas, expr.Mul(g.next, g.next), evmcircuit.MemoryExpansionQuadCoeffDiv)

	g.gasCost = expr.Add(
		expr.Mul(expr.U64(evmcircuit.MemoryExpansionLinearCoeff), expr.Sub(g.next, curr)),
		expr.Sub(g.nextQuad.Quotient(), g.currQuad.Quotient()),
	)
	return g
}

// NextMemoryWordSize is the memory word size after this step.
func (g *MemoryExpansionGadget) NextMemoryWordSize() *expr.Expression { return g.next }

// GasCost is the memory expansion gas charge.
func (g *MemoryExpansionGadget) GasCost() *expr.Expression { return g.gasCost }

// Assign computes and fills the expansion chain for the concrete end
// addresses, returning the next word size and the gas charged.
func (g *MemoryExpansionGadget) Assign(region *evmcircuit.CachedRegion, offset int, currWordSize uint64, addresses [2]uint64) (nextWordSize, gasCost uint64, err error) {
	next := currWordSize
	for i, addr := range addresses {
		var ws uint64
		if ws, err = g.wordSizes[i].Assign(region, offset, addr); err != nil {
			return 0, 0, err
		}
		prev := next
		if ws > next {
			next = ws
		}
		if err = g.maxSizes[i].Assign(region, offset, fr.NewElement(prev), fr.NewElement(ws)); err != nil {
			return 0, 0, err
		}
	}

	quad := func(div *mathgadget.ConstantDivisionGadget, size uint64) (uint64, error) {
		sq := new(big.Int).SetUint64(size)
		sq.Mul(sq, sq)
		q, _, err := div.Assign(region, offset, sq)
		return q, err
	}
	currQuad, err := quad(g.currQuad, currWordSize)
	if err != nil {
		return 0, 0, err
	}
	nextQuad, err := quad(g.nextQuad, next)
	if err != nil {
		return 0, 0, err
	}

	gasCost = evmcircuit.MemoryExpansionLinearCoeff*(next-currWordSize) + nextQuad - currQuad
	return next, gasCost, nil
}
