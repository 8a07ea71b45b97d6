// Package expr implements the symbolic expression tree the constraint
// builder accumulates at configuration time. Expressions are immutable DAGs
// over circuit cells with coefficients in the bn254 scalar field; they are
// evaluated against a concrete witness during verification.
package expr

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// CellID identifies one allocated circuit cell.
type CellID uint32

type op uint8

const (
	opConstant op = iota
	opCell
	opAdd
	opMul
	opNeg
)

// Expression is an immutable arithmetic expression over cells and constants.
// The zero value is not usable; use the package constructors.
type Expression struct {
	op       op
	constant fr.Element
	cell     CellID
	children []*Expression
}

// Constant returns the expression holding the fixed field element v.
func Constant(v fr.Element) *Expression {
	return &Expression{op: opConstant, constant: v}
}

// U64 returns the constant expression for v.
func U64(v uint64) *Expression {
	return Constant(fr.NewElement(v))
}

// Big returns the constant expression for v reduced into the field.
func Big(v *big.Int) *Expression {
	var e fr.Element
	e.SetBigInt(v)
	return Constant(e)
}

// Zero returns the constant 0.
func Zero() *Expression { return U64(0) }

// One returns the constant 1.
func One() *Expression { return U64(1) }

// CellVar returns the expression referencing the cell id.
func CellVar(id CellID) *Expression {
	return &Expression{op: opCell, cell: id}
}

// Add returns the sum of terms.
func Add(terms ...*Expression) *Expression {
	switch len(terms) {
	case 0:
		return Zero()
	case 1:
		return terms[0]
	}
	return &Expression{op: opAdd, children: terms}
}

// Mul returns the product of factors.
func Mul(factors ...*Expression) *Expression {
	switch len(factors) {
	case 0:
		return One()
	case 1:
		return factors[0]
	}
	return &Expression{op: opMul, children: factors}
}

// Neg returns -e.
func Neg(e *Expression) *Expression {
	return &Expression{op: opNeg, children: []*Expression{e}}
}

// Sub returns a - b.
func Sub(a, b *Expression) *Expression {
	return Add(a, Neg(b))
}

// Not returns 1 - sel. sel must be a boolean expression.
func Not(sel *Expression) *Expression {
	return Sub(One(), sel)
}

// And returns the conjunction of boolean expressions.
func And(sels ...*Expression) *Expression {
	return Mul(sels...)
}

// Or returns a + b - a*b for boolean a, b.
func Or(a, b *Expression) *Expression {
	return Sub(Add(a, b), Mul(a, b))
}

// Select returns sel*a + (1-sel)*b. sel must be boolean.
func Select(sel, a, b *Expression) *Expression {
	return Add(Mul(sel, a), Mul(Not(sel), b))
}

// Sum returns the sum of terms, Zero() when empty.
func Sum(terms []*Expression) *Expression {
	return Add(terms...)
}

// Eval evaluates the expression, resolving cell references through resolve.
func (e *Expression) Eval(resolve func(CellID) fr.Element) fr.Element {
	switch e.op {
	case opConstant:
		return e.constant
	case opCell:
		return resolve(e.cell)
	case opAdd:
		var acc fr.Element
		for _, c := range e.children {
			v := c.Eval(resolve)
			acc.Add(&acc, &v)
		}
		return acc
	case opMul:
		acc := fr.One()
		for _, c := range e.children {
			v := c.Eval(resolve)
			acc.Mul(&acc, &v)
		}
		return acc
	case opNeg:
		v := e.children[0].Eval(resolve)
		var acc fr.Element
		acc.Neg(&v)
		return acc
	}
	panic("unreachable")
}

// Degree returns the polynomial degree of the expression in its cells.
func (e *Expression) Degree() int {
	switch e.op {
	case opConstant:
		return 0
	case opCell:
		return 1
	case opAdd:
		max := 0
		for _, c := range e.children {
			if d := c.Degree(); d > max {
				max = d
			}
		}
		return max
	case opMul:
		sum := 0
		for _, c := range e.children {
			sum += c.Degree()
		}
		return sum
	case opNeg:
		return e.children[0].Degree()
	}
	panic("unreachable")
}

// Cells appends the ids of every cell referenced by the expression to dst,
// possibly with duplicates, and returns the extended slice.
func (e *Expression) Cells(dst []CellID) []CellID {
	switch e.op {
	case opCell:
		return append(dst, e.cell)
	case opAdd, opMul, opNeg:
		for _, c := range e.children {
			dst = c.Cells(dst)
		}
	}
	return dst
}
