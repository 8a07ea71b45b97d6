package evmcircuit

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// CellKind is the range constraint attached to a cell.
type CellKind uint8

const (
	KindAny CellKind = iota
	KindBool
	KindByte
)

// Cell is one named, range-constrained circuit slot owned by a gadget.
// Cells are allocated by the builder at configuration time and physically
// reused for every row assigned to the gadget.
type Cell struct {
	id   expr.CellID
	kind CellKind
	e    *expr.Expression
}

// ID returns the cell's allocation id.
func (c *Cell) ID() expr.CellID { return c.id }

// Kind returns the cell's range constraint.
func (c *Cell) Kind() CellKind { return c.kind }

// Expr returns the expression referencing this cell.
func (c *Cell) Expr() *expr.Expression { return c.e }

// Assign writes v into the cell at the given row offset.
func (c *Cell) Assign(region *CachedRegion, offset int, v fr.Element) error {
	return region.AssignCell(offset, c.id, v)
}

// AssignU64 writes the uint64 v into the cell.
func (c *Cell) AssignU64(region *CachedRegion, offset int, v uint64) error {
	return region.AssignCell(offset, c.id, fr.NewElement(v))
}

// AssignBool writes 0 or 1 into the cell.
func (c *Cell) AssignBool(region *CachedRegion, offset int, v bool) error {
	var e fr.Element
	if v {
		e.SetOne()
	}
	return region.AssignCell(offset, c.id, e)
}

// WordLoHi is a 256-bit word as a pair of 128-bit limb expressions.
type WordLoHi struct {
	Lo, Hi *expr.Expression
}

// WordZero returns the constant zero word.
func WordZero() WordLoHi {
	return WordLoHi{Lo: expr.Zero(), Hi: expr.Zero()}
}

// WordFromLo lifts a scalar expression, assumed to fit 128 bits, into a word.
func WordFromLo(lo *expr.Expression) WordLoHi {
	return WordLoHi{Lo: lo, Hi: expr.Zero()}
}

// WordSelect returns sel*a + (1-sel)*b limb-wise. sel must be boolean.
func WordSelect(sel *expr.Expression, a, b WordLoHi) WordLoHi {
	return WordLoHi{
		Lo: expr.Select(sel, a.Lo, b.Lo),
		Hi: expr.Select(sel, a.Hi, b.Hi),
	}
}

// MulSelector scales both limbs by the boolean sel.
func (w WordLoHi) MulSelector(sel *expr.Expression) WordLoHi {
	return WordLoHi{Lo: expr.Mul(sel, w.Lo), Hi: expr.Mul(sel, w.Hi)}
}

// AddUnchecked adds limb-wise without carry propagation.
func (w WordLoHi) AddUnchecked(o WordLoHi) WordLoHi {
	return WordLoHi{Lo: expr.Add(w.Lo, o.Lo), Hi: expr.Add(w.Hi, o.Hi)}
}

// SubUnchecked subtracts limb-wise without borrow propagation.
func (w WordLoHi) SubUnchecked(o WordLoHi) WordLoHi {
	return WordLoHi{Lo: expr.Sub(w.Lo, o.Lo), Hi: expr.Sub(w.Hi, o.Hi)}
}

// WordLoHiCell is a 256-bit word stored as two 128-bit limb cells.
type WordLoHiCell struct {
	Lo, Hi *Cell
}

// ToWord returns the word expression over the two limb cells.
func (w WordLoHiCell) ToWord() WordLoHi {
	return WordLoHi{Lo: w.Lo.Expr(), Hi: w.Hi.Expr()}
}

// AssignU256 writes v into the limb cells.
func (w WordLoHiCell) AssignU256(region *CachedRegion, offset int, v *uint256.Int) error {
	lo, hi := WordToLoHi(v)
	if err := w.Lo.Assign(region, offset, lo); err != nil {
		return err
	}
	return w.Hi.Assign(region, offset, hi)
}

// Word32Cell is a 256-bit word stored as 32 byte-range cells, little-endian.
type Word32Cell struct {
	Limbs [32]*Cell
}

// ToWord recomposes the byte limbs into 128-bit lo/hi limb expressions.
func (w *Word32Cell) ToWord() WordLoHi {
	return WordLoHi{
		Lo: recomposeBytes(w.Limbs[:16]),
		Hi: recomposeBytes(w.Limbs[16:]),
	}
}

// Expr returns the full-word recomposition as a single expression. Only
// meaningful when the value is known to fit the field, e.g. for addresses.
func (w *Word32Cell) Expr() *expr.Expression {
	return recomposeBytes(w.Limbs[:])
}

// AddressExpr recomposes the low 20 bytes, the account-address window.
func (w *Word32Cell) AddressExpr() *expr.Expression {
	return recomposeBytes(w.Limbs[:NBytesAccountAddress])
}

// AssignU256 writes v into the byte cells.
func (w *Word32Cell) AssignU256(region *CachedRegion, offset int, v *uint256.Int) error {
	b := v.Bytes32() // big endian
	for i := 0; i < 32; i++ {
		if err := w.Limbs[i].AssignU64(region, offset, uint64(b[31-i])); err != nil {
			return err
		}
	}
	return nil
}

// Limb64 returns the i-th 64-bit limb of the word, recomposed from its byte
// cells, little-endian.
func (w *Word32Cell) Limb64(i int) *expr.Expression {
	return recomposeBytes(w.Limbs[8*i : 8*i+8])
}

// RecomposeBytes returns the little-endian recomposition of byte cells as a
// single expression.
func RecomposeBytes(limbs []*Cell) *expr.Expression {
	return recomposeBytes(limbs)
}

func recomposeBytes(limbs []*Cell) *expr.Expression {
	terms := make([]*expr.Expression, len(limbs))
	shift := big.NewInt(1)
	base := big.NewInt(256)
	for i, c := range limbs {
		terms[i] = expr.Mul(expr.Big(new(big.Int).Set(shift)), c.Expr())
		shift.Mul(shift, base)
	}
	return expr.Add(terms...)
}

// WordToLoHi splits v into its 128-bit limbs as field elements.
func WordToLoHi(v *uint256.Int) (lo, hi fr.Element) {
	b := v.Bytes32()
	lo.SetBytes(b[16:])
	hi.SetBytes(b[:16])
	return lo, hi
}
