package execution

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evm"
	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/evmcircuit/mathgadget"
	"github.com/consensys/zkevm-gadgets/witness"
)

// SignedDivModGadget verifies SDIV and SMOD through the shared identity
// |quotient| * |divisor| + |remainder| = |dividend| over two's-complement
// absolute values, plus sign bookkeeping.
type SignedDivModGadget struct {
	sameContext *SameContextGadget
	opcode      *evmcircuit.Cell

	quotientAbs  *mathgadget.AbsWordGadget
	divisorAbs   *mathgadget.AbsWordGadget
	remainderAbs *mathgadget.AbsWordGadget
	dividendAbs  *mathgadget.AbsWordGadget

	mulAddWords              *mathgadget.MulAddWordsGadget
	remainderAbsLtDivisorAbs *mathgadget.LtWordGadget
	dividendIsSignedOverflow *mathgadget.LtGadget

	quotientIsZero  *mathgadget.IsZeroWordGadget
	divisorIsZero   *mathgadget.IsZeroWordGadget
	remainderIsZero *mathgadget.IsZeroWordGadget
}

func NewSignedDivMod(cb *evmcircuit.EVMConstraintBuilder) *SignedDivModGadget {
	g := &SignedDivModGadget{opcode: cb.QueryCell()}

	// (SMOD - opcode) / 2 is 1 for SDIV (0x05) and 0 for SMOD (0x07).
	var half fr.Element
	half.SetUint64(2)
	half.Inverse(&half)
	isSdiv := expr.Mul(
		expr.Sub(expr.U64(uint64(evm.SMOD)), g.opcode.Expr()),
		expr.Constant(half),
	)

	g.quotientAbs = mathgadget.NewAbsWord(cb)
	g.divisorAbs = mathgadget.NewAbsWord(cb)
	g.remainderAbs = mathgadget.NewAbsWord(cb)
	g.dividendAbs = mathgadget.NewAbsWord(cb)
	g.quotientIsZero = mathgadget.NewIsZeroWord(cb, g.quotientAbs.X().ToWord())
	g.divisorIsZero = mathgadget.NewIsZeroWord(cb, g.divisorAbs.X().ToWord())
	g.remainderIsZero = mathgadget.NewIsZeroWord(cb, g.remainderAbs.X().ToWord())

	cb.StackPop(g.dividendAbs.X().ToWord())
	cb.StackPop(g.divisorAbs.X().ToWord())
	divisorNonZero := expr.Not(g.divisorIsZero.Expr())
	cb.StackPush(evmcircuit.WordSelect(
		isSdiv,
		g.quotientAbs.X().ToWord().MulSelector(divisorNonZero),
		g.remainderAbs.X().ToWord().MulSelector(divisorNonZero),
	))

	g.mulAddWords = mathgadget.NewMulAddWords(cb, [4]*evmcircuit.Word32Cell{
		g.quotientAbs.XAbs(),
		g.divisorAbs.XAbs(),
		g.remainderAbs.XAbs(),
		g.dividendAbs.XAbs(),
	})
	cb.RequireZero("|quotient| * |divisor| + |remainder| does not overflow", g.mulAddWords.Overflow())

	g.remainderAbsLtDivisorAbs = mathgadget.NewLtWord(cb, g.remainderAbs.XAbs().ToWord(), g.divisorAbs.XAbs().ToWord())
	cb.RequireZero(
		"|remainder| < |divisor| when divisor != 0",
		expr.Mul(expr.Not(g.remainderAbsLtDivisorAbs.Expr()), divisorNonZero),
	)

	cb.Condition(
		expr.Mul(
			expr.Not(g.quotientIsZero.Expr()),
			divisorNonZero,
			expr.Not(g.remainderIsZero.Expr()),
		),
		func() {
			cb.RequireZero(
				"sign(dividend) == sign(remainder) when quotient, divisor and remainder are all non-zero",
				expr.Sub(g.dividendAbs.IsNeg(), g.remainderAbs.IsNeg()),
			)
		},
	)

	// The lone signed case the sign rule cannot cover: dividend = -(1<<255)
	// with divisor = -1 yields quotient 1<<255, which has no positive
	// two's-complement encoding.
	g.dividendIsSignedOverflow = mathgadget.NewLt(cb, 1, expr.U64(127), g.dividendAbs.XAbs().Limbs[31].Expr())

	cb.Condition(
		expr.Mul(
			expr.Not(g.quotientIsZero.Expr()),
			divisorNonZero,
			expr.Not(g.dividendIsSignedOverflow.Expr()),
		),
		func() {
			cb.RequireZero(
				"sign(dividend) == sign(divisor) xor sign(quotient)",
				expr.Sub(
					expr.Add(g.quotientAbs.IsNeg(), g.divisorAbs.IsNeg()),
					expr.Add(
						g.dividendAbs.IsNeg(),
						expr.Mul(expr.U64(2), g.quotientAbs.IsNeg(), g.divisorAbs.IsNeg()),
					),
				),
			)
		},
	)

	g.sameContext = NewSameContext(cb, g.opcode, evmcircuit.StepStateTransition{
		RwCounter:      evmcircuit.Delta(cb.RwCounterOffset()),
		ProgramCounter: evmcircuit.Delta(expr.One()),
		StackPointer:   evmcircuit.Delta(cb.StackPointerOffset()),
		GasLeft:        evmcircuit.Delta(expr.Neg(expr.U64(evm.GasFastStep))),
	})
	return g
}

func (g *SignedDivModGadget) Assign(
	region *evmcircuit.CachedRegion, offset int,
	block *witness.Block, tx *witness.Transaction, call *witness.Call, step *witness.ExecStep,
) error {
	if err := g.sameContext.Assign(region, offset, step, evm.GasFastStep); err != nil {
		return err
	}

	rws := witness.NewStepRws(step)
	pop1 := rws.StackValue()
	pop2 := rws.StackValue()
	push := rws.StackValue()
	if err := rws.Finish(); err != nil {
		return err
	}

	var quotient, divisor, remainder, dividend uint256.Int
	dividend = pop1
	divisor = pop2
	switch step.Opcode {
	case evm.SDIV:
		quotient = push
		// remainder = |dividend| - |quotient| * |divisor|, re-signed to the
		// dividend. Wrapping arithmetic also covers -(1<<255) / -1.
		var t uint256.Int
		t.Mul(abs(&push), abs(&pop2))
		t.Sub(abs(&pop1), &t)
		if isNeg(&pop1) {
			t.Neg(&t)
		}
		remainder = t
	case evm.SMOD:
		if pop2.IsZero() {
			remainder = pop1
		} else {
			remainder = push
			var q uint256.Int
			q.Div(abs(&pop1), abs(&pop2))
			if isNeg(&pop1) != isNeg(&pop2) {
				q.Neg(&q)
			}
			quotient = q
		}
	default:
		return evmcircuit.ErrIdentityUnsatisfied
	}

	quotientAbs := abs(&quotient)
	divisorAbs := abs(&divisor)
	remainderAbs := abs(&remainder)
	dividendAbs := abs(&dividend)

	if err := g.quotientAbs.Assign(region, offset, &quotient, quotientAbs); err != nil {
		return err
	}
	if err := g.divisorAbs.Assign(region, offset, &divisor, divisorAbs); err != nil {
		return err
	}
	if err := g.remainderAbs.Assign(region, offset, &remainder, remainderAbs); err != nil {
		return err
	}
	if err := g.dividendAbs.Assign(region, offset, &dividend, dividendAbs); err != nil {
		return err
	}
	if err := g.mulAddWords.Assign(region, offset, [4]*uint256.Int{quotientAbs, divisorAbs, remainderAbs, dividendAbs}); err != nil {
		return err
	}
	if err := g.remainderAbsLtDivisorAbs.Assign(region, offset, remainderAbs, divisorAbs); err != nil {
		return err
	}

	dividendTop := dividendAbs.Bytes32()[0]
	if err := g.dividendIsSignedOverflow.Assign(region, offset, fr.NewElement(127), fr.NewElement(uint64(dividendTop))); err != nil {
		return err
	}

	if err := g.quotientIsZero.Assign(region, offset, &quotient); err != nil {
		return err
	}
	if err := g.divisorIsZero.Assign(region, offset, &divisor); err != nil {
		return err
	}
	return g.remainderIsZero.Assign(region, offset, &remainder)
}

func isNeg(x *uint256.Int) bool { return x.Sign() < 0 }

func abs(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Abs(x)
}
