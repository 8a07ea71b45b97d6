package mathgadget

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// MulAddWordsGadget binds four 256-bit words by a * b + c = d (mod 2^256)
// over 64-bit limbs, exposing the discarded high half as an overflow
// expression.
//
// With t0..t3 the cross products of the low limbs,
//
//	c_lo + t0 + t1 * 2^64 = d_lo + carry_lo * 2^128
//	c_hi + t2 + t3 * 2^64 + carry_lo = d_hi + carry_hi * 2^128
//
// The words are owned by the caller; the gadget only allocates the carries.
type MulAddWordsGadget struct {
	words    [4]*evmcircuit.Word32Cell
	carryLo  []*evmcircuit.Cell
	carryHi  []*evmcircuit.Cell
	overflow *expr.Expression
}

func NewMulAddWords(cb *evmcircuit.EVMConstraintBuilder, words [4]*evmcircuit.Word32Cell) *MulAddWordsGadget {
	g := &MulAddWordsGadget{
		words: words,
		// Each carry is below 2^66, nine bytes cover it.
		carryLo: cb.QueryBytes(9),
		carryHi: cb.QueryBytes(9),
	}

	a, b, c, d := words[0], words[1], words[2], words[3]
	var aLimb, bLimb [4]*expr.Expression
	for i := 0; i < 4; i++ {
		aLimb[i] = a.Limb64(i)
		bLimb[i] = b.Limb64(i)
	}

	t0 := expr.Mul(aLimb[0], bLimb[0])
	t1 := expr.Add(expr.Mul(aLimb[0], bLimb[1]), expr.Mul(aLimb[1], bLimb[0]))
	t2 := expr.Add(
		expr.Mul(aLimb[0], bLimb[2]),
		expr.Mul(aLimb[1], bLimb[1]),
		expr.Mul(aLimb[2], bLimb[0]),
	)
	t3 := expr.Add(
		expr.Mul(aLimb[0], bLimb[3]),
		expr.Mul(aLimb[1], bLimb[2]),
		expr.Mul(aLimb[2], bLimb[1]),
		expr.Mul(aLimb[3], bLimb[0]),
	)

	pow64 := expr.Big(new(big.Int).Lsh(big.NewInt(1), 64))
	pow128 := expr.Big(new(big.Int).Lsh(big.NewInt(1), 128))
	carryLo := evmcircuit.RecomposeBytes(g.carryLo)
	carryHi := evmcircuit.RecomposeBytes(g.carryHi)
	cWord, dWord := c.ToWord(), d.ToWord()

	cb.RequireEqual(
		"mul_add_words: c_lo + t0 + t1 * 2^64 == d_lo + carry_lo * 2^128",
		expr.Add(cWord.Lo, t0, expr.Mul(t1, pow64)),
		expr.Add(dWord.Lo, expr.Mul(carryLo, pow128)),
	)
	cb.RequireEqual(
		"mul_add_words: c_hi + t2 + t3 * 2^64 + carry_lo == d_hi + carry_hi * 2^128",
		expr.Add(cWord.Hi, t2, expr.Mul(t3, pow64), carryLo),
		expr.Add(dWord.Hi, expr.Mul(carryHi, pow128)),
	)

	g.overflow = expr.Add(
		carryHi,
		expr.Mul(aLimb[1], bLimb[3]),
		expr.Mul(aLimb[2], bLimb[2]),
		expr.Mul(aLimb[3], bLimb[1]),
		expr.Mul(aLimb[2], bLimb[3]),
		expr.Mul(aLimb[3], bLimb[2]),
		expr.Mul(aLimb[3], bLimb[3]),
	)
	return g
}

// Overflow returns the part of a * b + c discarded by the mod 2^256
// reduction. It is zero iff the product fits.
func (g *MulAddWordsGadget) Overflow() *expr.Expression { return g.overflow }

// Assign fills the carry cells from concrete word values. The word cells
// themselves are assigned by their owners. Returns ErrIdentityUnsatisfied
// when d != a * b + c (mod 2^256).
func (g *MulAddWordsGadget) Assign(region *evmcircuit.CachedRegion, offset int, words [4]*uint256.Int) error {
	a, b, c, d := words[0], words[1], words[2], words[3]

	limb := func(v *uint256.Int, i int) *big.Int {
		return new(big.Int).SetUint64(v[i])
	}
	half := func(v *uint256.Int, hi bool) *big.Int {
		o := 0
		if hi {
			o = 2
		}
		r := new(big.Int).Lsh(limb(v, o+1), 64)
		return r.Add(r, limb(v, o))
	}

	t := make([]*big.Int, 4)
	for k := range t {
		t[k] = new(big.Int)
		for i := 0; i <= k; i++ {
			t[k].Add(t[k], new(big.Int).Mul(limb(a, i), limb(b, k-i)))
		}
	}

	pow128 := new(big.Int).Lsh(big.NewInt(1), 128)

	carryLo := new(big.Int).Add(half(c, false), t[0])
	carryLo.Add(carryLo, new(big.Int).Lsh(t[1], 64))
	carryLo.Sub(carryLo, half(d, false))
	var rem big.Int
	carryLo.QuoRem(carryLo, pow128, &rem)
	if rem.Sign() != 0 || carryLo.Sign() < 0 {
		return evmcircuit.ErrIdentityUnsatisfied
	}

	carryHi := new(big.Int).Add(half(c, true), t[2])
	carryHi.Add(carryHi, new(big.Int).Lsh(t[3], 64))
	carryHi.Add(carryHi, carryLo)
	carryHi.Sub(carryHi, half(d, true))
	carryHi.QuoRem(carryHi, pow128, &rem)
	if rem.Sign() != 0 || carryHi.Sign() < 0 {
		return evmcircuit.ErrIdentityUnsatisfied
	}

	if err := assignBytesLE(region, offset, g.carryLo, carryLo); err != nil {
		return err
	}
	return assignBytesLE(region, offset, g.carryHi, carryHi)
}
