// Package mathgadget provides small arithmetic gadgets composed by the
// execution gadgets: zero and equality tests, byte-range comparisons,
// 256-bit absolute value, 512-bit multiply-add and constant division.
//
// Each gadget follows the same shape. A constructor emits constraints and
// queries cells on an EVMConstraintBuilder at configure time, and Assign
// fills the queried cells from concrete values at witness time.
package mathgadget

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// IsZeroGadget tests a field element for zero. The witness carries the
// multiplicative inverse of the value (or zero), and the output expression
// 1 - value*inverse is constrained to behave as a boolean indicator.
type IsZeroGadget struct {
	inverse *evmcircuit.Cell
	isZero  *expr.Expression
}

func NewIsZero(cb *evmcircuit.EVMConstraintBuilder, value *expr.Expression) *IsZeroGadget {
	inverse := cb.QueryCell()
	isZero := expr.Sub(expr.One(), expr.Mul(value, inverse.Expr()))

	// Either value or inverse is zero, and when value is zero the output is
	// forced to one.
	cb.AddConstraint("is_zero: value * (1 - value * inverse)", expr.Mul(value, isZero))
	cb.AddConstraint("is_zero: inverse * (1 - value * inverse)", expr.Mul(inverse.Expr(), isZero))

	return &IsZeroGadget{inverse: inverse, isZero: isZero}
}

// Expr returns the boolean indicator, one iff the value is zero.
func (g *IsZeroGadget) Expr() *expr.Expression { return g.isZero }

func (g *IsZeroGadget) Assign(region *evmcircuit.CachedRegion, offset int, value fr.Element) error {
	var inv fr.Element
	if !value.IsZero() {
		inv.Inverse(&value)
	}
	return g.inverse.Assign(region, offset, inv)
}

// IsZeroWordGadget tests a 256-bit word for zero by testing both 128-bit
// halves.
type IsZeroWordGadget struct {
	lo, hi *IsZeroGadget
	isZero *expr.Expression
}

func NewIsZeroWord(cb *evmcircuit.EVMConstraintBuilder, w evmcircuit.WordLoHi) *IsZeroWordGadget {
	lo := NewIsZero(cb, w.Lo)
	hi := NewIsZero(cb, w.Hi)
	return &IsZeroWordGadget{
		lo:     lo,
		hi:     hi,
		isZero: expr.And(lo.Expr(), hi.Expr()),
	}
}

func (g *IsZeroWordGadget) Expr() *expr.Expression { return g.isZero }

func (g *IsZeroWordGadget) Assign(region *evmcircuit.CachedRegion, offset int, value *uint256.Int) error {
	lo, hi := evmcircuit.WordToLoHi(value)
	if err := g.lo.Assign(region, offset, lo); err != nil {
		return err
	}
	return g.hi.Assign(region, offset, hi)
}

// IsEqualWordGadget tests two 256-bit words for equality.
type IsEqualWordGadget struct {
	lo, hi  *IsZeroGadget
	isEqual *expr.Expression
}

func NewIsEqualWord(cb *evmcircuit.EVMConstraintBuilder, a, b evmcircuit.WordLoHi) *IsEqualWordGadget {
	lo := NewIsZero(cb, expr.Sub(a.Lo, b.Lo))
	hi := NewIsZero(cb, expr.Sub(a.Hi, b.Hi))
	return &IsEqualWordGadget{
		lo:      lo,
		hi:      hi,
		isEqual: expr.And(lo.Expr(), hi.Expr()),
	}
}

func (g *IsEqualWordGadget) Expr() *expr.Expression { return g.isEqual }

func (g *IsEqualWordGadget) Assign(region *evmcircuit.CachedRegion, offset int, a, b *uint256.Int) error {
	aLo, aHi := evmcircuit.WordToLoHi(a)
	bLo, bHi := evmcircuit.WordToLoHi(b)
	var dLo, dHi fr.Element
	dLo.Sub(&aLo, &bLo)
	dHi.Sub(&aHi, &bHi)
	if err := g.lo.Assign(region, offset, dLo); err != nil {
		return err
	}
	return g.hi.Assign(region, offset, dHi)
}
