package mathgadget

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// ConstantDivisionGadget divides a value by a fixed denominator, binding
//
//	quotient * denominator + remainder = numerator
//
// with the quotient range-checked to nBytes bytes and the remainder held
// below the denominator.
type ConstantDivisionGadget struct {
	quotient    []*evmcircuit.Cell
	remainder   *evmcircuit.Cell
	remainderLt *LtGadget
	denominator uint64
}

func NewConstantDivision(cb *evmcircuit.EVMConstraintBuilder, nBytes int, numerator *expr.Expression, denominator uint64) *ConstantDivisionGadget {
	g := &ConstantDivisionGadget{
		quotient:    cb.QueryBytes(nBytes),
		remainder:   cb.QueryCell(),
		denominator: denominator,
	}
	g.remainderLt = NewLt(cb, nBytes, g.remainder.Expr(), expr.U64(denominator))
	cb.RequireTrue("constant_division: remainder < denominator", g.remainderLt.Expr())
	cb.RequireEqual(
		"constant_division: quotient * denominator + remainder == numerator",
		expr.Add(expr.Mul(g.Quotient(), expr.U64(denominator)), g.remainder.Expr()),
		numerator,
	)
	return g
}

func (g *ConstantDivisionGadget) Quotient() *expr.Expression {
	return evmcircuit.RecomposeBytes(g.quotient)
}

func (g *ConstantDivisionGadget) Remainder() *expr.Expression { return g.remainder.Expr() }

func (g *ConstantDivisionGadget) Assign(region *evmcircuit.CachedRegion, offset int, numerator *big.Int) (quotient, remainder uint64, err error) {
	den := new(big.Int).SetUint64(g.denominator)
	q, r := new(big.Int).QuoRem(numerator, den, new(big.Int))
	if !q.IsUint64() {
		return 0, 0, evmcircuit.ErrValueOverflow
	}
	quotient, remainder = q.Uint64(), r.Uint64()

	if err = assignBytesLE(region, offset, g.quotient, q); err != nil {
		return 0, 0, err
	}
	if err = g.remainder.AssignU64(region, offset, remainder); err != nil {
		return 0, 0, err
	}
	var rem, den2 fr.Element
	rem.SetUint64(remainder)
	den2.SetUint64(g.denominator)
	if err = g.remainderLt.Assign(region, offset, rem, den2); err != nil {
		return 0, 0, err
	}
	return quotient, remainder, nil
}

// AssignU64 is Assign for numerators that fit in a uint64.
func (g *ConstantDivisionGadget) AssignU64(region *evmcircuit.CachedRegion, offset int, numerator uint64) (quotient, remainder uint64, err error) {
	return g.Assign(region, offset, new(big.Int).SetUint64(numerator))
}
