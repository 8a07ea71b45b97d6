package expr

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolver(values map[CellID]uint64) func(CellID) fr.Element {
	return func(id CellID) fr.Element {
		return fr.NewElement(values[id])
	}
}

func TestEvalArithmetic(t *testing.T) {
	assert := require.New(t)
	r := resolver(map[CellID]uint64{0: 3, 1: 5})
	a := CellVar(0)
	b := CellVar(1)

	want := fr.NewElement(3 + 5)
	got := Add(a, b).Eval(r)
	assert.True(got.Equal(&want))

	want = fr.NewElement(3 * 5)
	got = Mul(a, b).Eval(r)
	assert.True(got.Equal(&want))

	want = fr.NewElement(3*5 + 7)
	got = Add(Mul(a, b), U64(7)).Eval(r)
	assert.True(got.Equal(&want))

	// 5 - 3 via Sub, 3 - 5 wraps into the field.
	want = fr.NewElement(2)
	got = Sub(b, a).Eval(r)
	assert.True(got.Equal(&want))

	neg := fr.NewElement(2)
	neg.Neg(&neg)
	got = Sub(a, b).Eval(r)
	assert.True(got.Equal(&neg))
}

func TestEvalSelectors(t *testing.T) {
	assert := require.New(t)
	r := resolver(map[CellID]uint64{0: 1, 1: 0, 2: 42})

	on := CellVar(0)
	off := CellVar(1)
	v := CellVar(2)

	want := fr.NewElement(42)
	got := Select(on, v, U64(7)).Eval(r)
	assert.True(got.Equal(&want))

	want = fr.NewElement(7)
	got = Select(off, v, U64(7)).Eval(r)
	assert.True(got.Equal(&want))

	one := fr.NewElement(1)
	got = Not(off).Eval(r)
	assert.True(got.Equal(&one))
	got = Or(on, off).Eval(r)
	assert.True(got.Equal(&one))
	got = And(on, on).Eval(r)
	assert.True(got.Equal(&one))

	zero := fr.NewElement(0)
	got = And(on, off).Eval(r)
	assert.True(got.Equal(&zero))
}

func TestDegree(t *testing.T) {
	a := CellVar(0)
	b := CellVar(1)

	assert.Equal(t, 0, U64(9).Degree())
	assert.Equal(t, 1, a.Degree())
	assert.Equal(t, 1, Add(a, b).Degree())
	assert.Equal(t, 2, Mul(a, b).Degree())
	assert.Equal(t, 3, Mul(a, b, a).Degree())
	assert.Equal(t, 2, Add(Mul(a, b), a).Degree())
	assert.Equal(t, 2, Select(a, b, U64(1)).Degree())
	assert.Equal(t, 1, Neg(a).Degree())
}

func TestCellsCollectsEveryLeaf(t *testing.T) {
	e := Add(Mul(CellVar(3), CellVar(7)), Neg(CellVar(3)), U64(11))
	ids := e.Cells(nil)
	seen := map[CellID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	assert.True(t, seen[3])
	assert.True(t, seen[7])
}

func TestSumOfNothingIsZero(t *testing.T) {
	r := resolver(nil)
	got := Sum(nil).Eval(r)
	assert.True(t, got.IsZero())
}
