package mathgadget

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// LtGadget compares two values known to fit in nBytes bytes. The witness
// carries the comparison bit and the byte decomposition of the wrapped
// difference, bound by
//
//	lhs - rhs = diff - lt * 2^(8*nBytes)
type LtGadget struct {
	nBytes int
	lt     *evmcircuit.Cell
	diff   []*evmcircuit.Cell
	rng    *big.Int
}

func NewLt(cb *evmcircuit.EVMConstraintBuilder, nBytes int, lhs, rhs *expr.Expression) *LtGadget {
	g := &LtGadget{
		nBytes: nBytes,
		lt:     cb.QueryBool(),
		diff:   cb.QueryBytes(nBytes),
		rng:    new(big.Int).Lsh(big.NewInt(1), uint(8*nBytes)),
	}
	cb.RequireEqual(
		"lt: lhs - rhs == diff - lt * range",
		expr.Sub(lhs, rhs),
		expr.Sub(evmcircuit.RecomposeBytes(g.diff), expr.Mul(g.lt.Expr(), expr.Big(g.rng))),
	)
	return g
}

// Expr returns the comparison bit, one iff lhs < rhs.
func (g *LtGadget) Expr() *expr.Expression { return g.lt.Expr() }

func (g *LtGadget) Assign(region *evmcircuit.CachedRegion, offset int, lhs, rhs fr.Element) error {
	lhsB := lhs.BigInt(new(big.Int))
	rhsB := rhs.BigInt(new(big.Int))

	lt := lhsB.Cmp(rhsB) < 0
	diff := new(big.Int).Sub(lhsB, rhsB)
	if lt {
		diff.Add(diff, g.rng)
	}
	if diff.Sign() < 0 || diff.Cmp(g.rng) >= 0 {
		return evmcircuit.ErrValueOverflow
	}
	if err := g.lt.AssignBool(region, offset, lt); err != nil {
		return err
	}
	return assignBytesLE(region, offset, g.diff, diff)
}

// LtWordGadget compares two 256-bit words by comparing the high halves and
// breaking ties on the low halves.
type LtWordGadget struct {
	hiLt *LtGadget
	hiEq *IsZeroGadget
	loLt *LtGadget
	lt   *expr.Expression
}

func NewLtWord(cb *evmcircuit.EVMConstraintBuilder, lhs, rhs evmcircuit.WordLoHi) *LtWordGadget {
	hiLt := NewLt(cb, 16, lhs.Hi, rhs.Hi)
	hiEq := NewIsZero(cb, expr.Sub(lhs.Hi, rhs.Hi))
	loLt := NewLt(cb, 16, lhs.Lo, rhs.Lo)
	return &LtWordGadget{
		hiLt: hiLt,
		hiEq: hiEq,
		loLt: loLt,
		// hi_lt and hi_eq*lo_lt are mutually exclusive.
		lt: expr.Add(hiLt.Expr(), expr.Mul(hiEq.Expr(), loLt.Expr())),
	}
}

// Expr returns the comparison bit, one iff lhs < rhs.
func (g *LtWordGadget) Expr() *expr.Expression { return g.lt }

func (g *LtWordGadget) Assign(region *evmcircuit.CachedRegion, offset int, lhs, rhs *uint256.Int) error {
	lhsLo, lhsHi := evmcircuit.WordToLoHi(lhs)
	rhsLo, rhsHi := evmcircuit.WordToLoHi(rhs)
	if err := g.hiLt.Assign(region, offset, lhsHi, rhsHi); err != nil {
		return err
	}
	var hiDiff fr.Element
	hiDiff.Sub(&lhsHi, &rhsHi)
	if err := g.hiEq.Assign(region, offset, hiDiff); err != nil {
		return err
	}
	return g.loLt.Assign(region, offset, lhsLo, rhsLo)
}

// MinMaxGadget selects the minimum and maximum of two values known to fit in
// nBytes bytes.
type MinMaxGadget struct {
	lt       *LtGadget
	min, max *expr.Expression
}

func NewMinMax(cb *evmcircuit.EVMConstraintBuilder, nBytes int, a, b *expr.Expression) *MinMaxGadget {
	lt := NewLt(cb, nBytes, a, b)
	return &MinMaxGadget{
		lt:  lt,
		min: expr.Select(lt.Expr(), a, b),
		max: expr.Select(lt.Expr(), b, a),
	}
}

func (g *MinMaxGadget) Min() *expr.Expression { return g.min }

func (g *MinMaxGadget) Max() *expr.Expression { return g.max }

func (g *MinMaxGadget) Assign(region *evmcircuit.CachedRegion, offset int, a, b fr.Element) error {
	return g.lt.Assign(region, offset, a, b)
}

// assignBytesLE spreads a non-negative integer over byte cells, little-endian.
// The value must fit in len(cells) bytes.
func assignBytesLE(region *evmcircuit.CachedRegion, offset int, cells []*evmcircuit.Cell, v *big.Int) error {
	be := v.Bytes()
	if len(be) > len(cells) {
		return evmcircuit.ErrValueOverflow
	}
	for i, c := range cells {
		var b byte
		if i < len(be) {
			b = be[len(be)-1-i]
		}
		if err := c.AssignU64(region, offset, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}
