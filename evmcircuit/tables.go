package evmcircuit

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
)

// Pow2TableRow returns the lo/hi 128-bit limbs of 2^n, the row of the fixed
// power-of-two table indexed by the byte n.
func Pow2TableRow(n byte) (lo, hi fr.Element) {
	var p uint256.Int
	p.Lsh(uint256.NewInt(1), uint(n))
	return WordToLoHi(&p)
}

// pow2TableContains reports whether (n, lo, hi) is a row of the fixed
// power-of-two table.
func pow2TableContains(n, lo, hi fr.Element) bool {
	if !n.IsUint64() || n.Uint64() > 255 {
		return false
	}
	wantLo, wantHi := Pow2TableRow(byte(n.Uint64()))
	return lo.Equal(&wantLo) && hi.Equal(&wantHi)
}
