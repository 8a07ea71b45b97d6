package mathgadget

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// AbsWordGadget relates a 256-bit word x to its two's-complement absolute
// value. The sign is read off the most significant byte, and for negative x
// the halves are bound by x + x_abs = 2^256:
//
//	x_lo + x_abs_lo = carry * 2^128
//	x_hi + x_abs_hi + carry = 2^128
type AbsWordGadget struct {
	x     *evmcircuit.Word32Cell
	xAbs  *evmcircuit.Word32Cell
	isNeg *LtGadget
	carry *evmcircuit.Cell
}

func NewAbsWord(cb *evmcircuit.EVMConstraintBuilder) *AbsWordGadget {
	g := &AbsWordGadget{
		x:     cb.QueryWord32(),
		xAbs:  cb.QueryWord32(),
		carry: cb.QueryBool(),
	}
	g.isNeg = NewLt(cb, 1, expr.U64(127), g.x.Limbs[31].Expr())

	x := g.x.ToWord()
	xAbs := g.xAbs.ToWord()
	pow128 := expr.Big(new(big.Int).Lsh(big.NewInt(1), 128))

	cb.Condition(expr.Not(g.isNeg.Expr()), func() {
		cb.RequireEqual("abs_word: x_abs_lo == x_lo when non-negative", xAbs.Lo, x.Lo)
		cb.RequireEqual("abs_word: x_abs_hi == x_hi when non-negative", xAbs.Hi, x.Hi)
	})
	cb.Condition(g.isNeg.Expr(), func() {
		cb.RequireEqual(
			"abs_word: x_lo + x_abs_lo == carry * 2^128 when negative",
			expr.Add(x.Lo, xAbs.Lo),
			expr.Mul(g.carry.Expr(), pow128),
		)
		cb.RequireEqual(
			"abs_word: x_hi + x_abs_hi + carry == 2^128 when negative",
			expr.Add(x.Hi, xAbs.Hi, g.carry.Expr()),
			pow128,
		)
	})
	return g
}

func (g *AbsWordGadget) X() *evmcircuit.Word32Cell { return g.x }

func (g *AbsWordGadget) XAbs() *evmcircuit.Word32Cell { return g.xAbs }

// IsNeg returns the sign bit, one iff x has its top bit set.
func (g *AbsWordGadget) IsNeg() *expr.Expression { return g.isNeg.Expr() }

func (g *AbsWordGadget) Assign(region *evmcircuit.CachedRegion, offset int, x, xAbs *uint256.Int) error {
	if err := g.x.AssignU256(region, offset, x); err != nil {
		return err
	}
	if err := g.xAbs.AssignU256(region, offset, xAbs); err != nil {
		return err
	}

	b := x.Bytes32()
	var topByte, limit fr.Element
	topByte.SetUint64(uint64(b[0]))
	limit.SetUint64(127)
	if err := g.isNeg.Assign(region, offset, limit, topByte); err != nil {
		return err
	}

	// For negative x the low halves sum to 2^128 exactly when x_lo != 0.
	carry := b[0] > 127 && (x[0] != 0 || x[1] != 0)
	return g.carry.AssignBool(region, offset, carry)
}
