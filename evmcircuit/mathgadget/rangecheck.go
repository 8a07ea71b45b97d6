package mathgadget

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
)

// RangeCheckGadget asserts a value fits in nBytes bytes by binding it to a
// byte decomposition.
type RangeCheckGadget struct {
	parts []*evmcircuit.Cell
}

func NewRangeCheck(cb *evmcircuit.EVMConstraintBuilder, nBytes int, value *expr.Expression) *RangeCheckGadget {
	g := &RangeCheckGadget{parts: cb.QueryBytes(nBytes)}
	cb.RequireEqual("range_check: bytes recompose to value", evmcircuit.RecomposeBytes(g.parts), value)
	return g
}

func (g *RangeCheckGadget) Assign(region *evmcircuit.CachedRegion, offset int, value fr.Element) error {
	return assignBytesLE(region, offset, g.parts, value.BigInt(new(big.Int)))
}
