package mathgadget

import (
	"math/big"
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// AddWordsGadget binds three 256-bit words by a + b = sum over 128-bit
// halves with boolean carries:
//
//	a_lo + b_lo = sum_lo + carry_lo * 2^128
//	a_hi + b_hi + carry_lo = sum_hi + carry_hi * 2^128
//
// With checkOverflow the high carry is pinned to zero, making the addition
// exact. The words are owned by the caller; the gadget only allocates the
// carries.
type AddWordsGadget struct {
	a, b, sum *evmcircuit.Word32Cell
	carryLo   *evmcircuit.Cell
	carryHi   *evmcircuit.Cell
}

func NewAddWords(cb *evmcircuit.EVMConstraintBuilder, a, b, sum *evmcircuit.Word32Cell, checkOverflow bool) *AddWordsGadget {
	g := &AddWordsGadget{
		a:       a,
		b:       b,
		sum:     sum,
		carryLo: cb.QueryBool(),
		carryHi: cb.QueryBool(),
	}

	pow128 := expr.Big(new(big.Int).Lsh(big.NewInt(1), 128))
	aw, bw, sw := a.ToWord(), b.ToWord(), sum.ToWord()

	cb.RequireEqual(
		"add_words: a_lo + b_lo == sum_lo + carry_lo * 2^128",
		expr.Add(aw.Lo, bw.Lo),
		expr.Add(sw.Lo, expr.Mul(g.carryLo.Expr(), pow128)),
	)
	cb.RequireEqual(
		"add_words: a_hi + b_hi + carry_lo == sum_hi + carry_hi * 2^128",
		expr.Add(aw.Hi, bw.Hi, g.carryLo.Expr()),
		expr.Add(sw.Hi, expr.Mul(g.carryHi.Expr(), pow128)),
	)
	if checkOverflow {
		cb.RequireZero("add_words: no overflow", g.carryHi.Expr())
	}
	return g
}

// CarryHi returns the overflow bit of the addition.
func (g *AddWordsGadget) CarryHi() *expr.Expression { return g.carryHi.Expr() }

// Assign fills the carry cells from concrete word values. The word cells
// themselves are assigned by their owners. Returns ErrIdentityUnsatisfied
// when sum != a + b (mod 2^256).
func (g *AddWordsGadget) Assign(region *evmcircuit.CachedRegion, offset int, a, b, sum *uint256.Int) error {
	var check uint256.Int
	_, carryHi := check.AddOverflow(a, b)
	if !check.Eq(sum) {
		return evmcircuit.ErrIdentityUnsatisfied
	}
	// carry_lo is set iff the low halves wrap.
	_, c := bits.Add64(a[0], b[0], 0)
	_, c = bits.Add64(a[1], b[1], c)
	carryLo := c != 0

	if err := g.carryLo.AssignBool(region, offset, carryLo); err != nil {
		return err
	}
	return g.carryHi.AssignBool(region, offset, carryHi)
}
