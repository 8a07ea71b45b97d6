package execution

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/consensys/zkevm-gadgets/evm"
	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/evmcircuit/mathgadget"
)

// precompileCount is the number of precompiled contracts, at addresses
// 0x01 through 0x09.
const precompileCount = 9

// PrecompileGadget binds the callee address of a precompile call to a
// one-hot selector over the precompiled contracts and constrains the input
// window: fixed-input precompiles read at most their declared size, the
// rest consume the whole call data.
type PrecompileGadget struct {
	selectors [precompileCount]*evmcircuit.Cell
	inputCap  *mathgadget.MinMaxGadget
}

func NewPrecompile(
	cb *evmcircuit.EVMConstraintBuilder,
	calleeAddress *expr.Expression,
	cdLength *expr.Expression,
	inputLen *expr.Expression,
) *PrecompileGadget {
	g := &PrecompileGadget{}

	terms := make([]*expr.Expression, precompileCount)
	addrTerms := make([]*expr.Expression, precompileCount)
	for i := range g.selectors {
		g.selectors[i] = cb.QueryBool()
		terms[i] = g.selectors[i].Expr()
		addrTerms[i] = expr.Mul(g.selectors[i].Expr(), expr.U64(uint64(i+1)))
	}
	cb.RequireEqual("exactly one precompile is selected", expr.Sum(terms), expr.One())
	cb.RequireEqual("selector matches the callee address", expr.Sum(addrTerms), calleeAddress)

	fixedLen := expr.Zero()
	hasFixed := expr.Zero()
	for i := range g.selectors {
		if n, ok := evm.PrecompileInputLen(byte(i + 1)); ok {
			fixedLen = expr.Add(fixedLen, expr.Mul(g.selectors[i].Expr(), expr.U64(uint64(n))))
			hasFixed = expr.Add(hasFixed, g.selectors[i].Expr())
		}
	}
	g.inputCap = mathgadget.NewMinMax(cb, evmcircuit.NBytesMemoryAddress, fixedLen, cdLength)
	cb.Condition(hasFixed, func() {
		cb.RequireEqual("input length is capped by the fixed input size", inputLen, g.inputCap.Min())
	})
	cb.Condition(expr.Not(hasFixed), func() {
		cb.RequireEqual("input length is the call data length", inputLen, cdLength)
	})
	return g
}

// Assign sets the selector matching the precompile address byte.
func (g *PrecompileGadget) Assign(region *evmcircuit.CachedRegion, offset int, addrByte byte, cdLength uint64) error {
	if addrByte == 0 || int(addrByte) > precompileCount {
		return fmt.Errorf("%w: precompile address %#x", evmcircuit.ErrValueOverflow, addrByte)
	}
	for i := range g.selectors {
		if err := g.selectors[i].AssignBool(region, offset, int(addrByte) == i+1); err != nil {
			return err
		}
	}
	var fixed uint64
	if n, ok := evm.PrecompileInputLen(addrByte); ok {
		fixed = uint64(n)
	}
	return g.inputCap.Assign(region, offset, fr.NewElement(fixed), fr.NewElement(cdLength))
}
