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

// ShlShrGadget verifies SHL and SHR as one multiplication identity against
// the divisor 2^shift:
//
//	SHL: pop1 * 2^pop2 mod 2^256 == push
//	SHR: pop1 / 2^pop2 == push
type ShlShrGadget struct {
	sameContext *SameContextGadget
	opcode      *evmcircuit.Cell

	quotient  *evmcircuit.Word32Cell
	divisor   *evmcircuit.Word32Cell
	remainder *evmcircuit.Word32Cell
	dividend  *evmcircuit.Word32Cell
	shift     *evmcircuit.Word32Cell
	// shf0 is the least significant byte of the shift word.
	shf0 *evmcircuit.Cell

	mulAddWords        *mathgadget.MulAddWordsGadget
	shfLt256           *mathgadget.IsZeroGadget
	divisorIsZero      *mathgadget.IsZeroWordGadget
	remainderIsZero    *mathgadget.IsZeroWordGadget
	remainderLtDivisor *mathgadget.LtWordGadget
}

func NewShlShr(cb *evmcircuit.EVMConstraintBuilder) *ShlShrGadget {
	g := &ShlShrGadget{opcode: cb.QueryCell()}

	// SHR - opcode is 1 for SHL (0x1b) and 0 for SHR (0x1c).
	isShl := expr.Sub(expr.U64(uint64(evm.SHR)), g.opcode.Expr())
	isShr := expr.Not(isShl)

	g.quotient = cb.QueryWord32()
	g.divisor = cb.QueryWord32()
	g.remainder = cb.QueryWord32()
	g.dividend = cb.QueryWord32()
	g.shift = cb.QueryWord32()
	g.shf0 = cb.QueryCell()

	g.mulAddWords = mathgadget.NewMulAddWords(cb, [4]*evmcircuit.Word32Cell{
		g.quotient, g.divisor, g.remainder, g.dividend,
	})

	shiftHigh := make([]*expr.Expression, 0, 31)
	for _, c := range g.shift.Limbs[1:] {
		shiftHigh = append(shiftHigh, c.Expr())
	}
	g.shfLt256 = mathgadget.NewIsZero(cb, expr.Sum(shiftHigh))
	g.divisorIsZero = mathgadget.NewIsZeroWord(cb, g.divisor.ToWord())
	g.remainderIsZero = mathgadget.NewIsZeroWord(cb, g.remainder.ToWord())
	g.remainderLtDivisor = mathgadget.NewLtWord(cb, g.remainder.ToWord(), g.divisor.ToWord())
	divisorNonZero := expr.Not(g.divisorIsZero.Expr())

	// For SHL the second pop is the quotient and the push the dividend; for
	// SHR the second pop is the dividend and the push the quotient.
	cb.StackPop(g.shift.ToWord())
	cb.StackPop(
		g.quotient.ToWord().MulSelector(isShl).
			AddUnchecked(g.dividend.ToWord().MulSelector(isShr)),
	)
	cb.StackPush(
		g.dividend.ToWord().MulSelector(isShl).
			AddUnchecked(g.quotient.ToWord().MulSelector(isShr)).
			MulSelector(divisorNonZero),
	)

	cb.RequireZero(
		"shf0 == shift.limbs[0]",
		expr.Sub(g.shf0.Expr(), g.shift.Limbs[0].Expr()),
	)

	cb.RequireZeroWord(
		"shift == shift.limbs[0] when divisor != 0",
		g.shift.ToWord().
			SubUnchecked(evmcircuit.WordFromLo(g.shift.Limbs[0].Expr())).
			MulSelector(divisorNonZero),
	)

	cb.RequireZero(
		"shift < 256 iff divisor != 0",
		expr.Sub(divisorNonZero, g.shfLt256.Expr()),
	)

	cb.RequireZero(
		"remainder < divisor when divisor != 0",
		expr.Mul(divisorNonZero, expr.Not(g.remainderLtDivisor.Expr())),
	)

	cb.RequireZero(
		"remainder == 0 for SHL",
		expr.Mul(isShl, expr.Not(g.remainderIsZero.Expr())),
	)

	cb.RequireZero(
		"overflow == 0 for SHR",
		expr.Mul(isShr, g.mulAddWords.Overflow()),
	)

	divisorWord := g.divisor.ToWord()
	cb.Condition(divisorNonZero, func() {
		cb.Pow2Lookup("divisor == 2^shf0", g.shf0.Expr(), divisorWord.Lo, divisorWord.Hi)
	})

	g.sameContext = NewSameContext(cb, g.opcode, evmcircuit.StepStateTransition{
		RwCounter:      evmcircuit.Delta(cb.RwCounterOffset()),
		ProgramCounter: evmcircuit.Delta(expr.One()),
		StackPointer:   evmcircuit.Delta(cb.StackPointerOffset()),
		GasLeft:        evmcircuit.Delta(expr.Neg(expr.U64(evm.GasFastestStep))),
	})
	return g
}

func (g *ShlShrGadget) Assign(
	region *evmcircuit.CachedRegion, offset int,
	block *witness.Block, tx *witness.Transaction, call *witness.Call, step *witness.ExecStep,
) error {
	if err := g.sameContext.Assign(region, offset, step, evm.GasFastestStep); err != nil {
		return err
	}

	rws := witness.NewStepRws(step)
	pop1 := rws.StackValue()
	pop2 := rws.StackValue()
	push := rws.StackValue()
	if err := rws.Finish(); err != nil {
		return err
	}

	shiftBytes := pop1.Bytes32()
	shf0 := uint64(shiftBytes[31])
	var highSum uint64
	for _, b := range shiftBytes[:31] {
		highSum += uint64(b)
	}

	var divisor uint256.Int
	if highSum == 0 {
		divisor.Lsh(uint256.NewInt(1), uint(shf0))
	}

	var quotient, remainder, dividend uint256.Int
	switch step.Opcode {
	case evm.SHL:
		quotient = pop2
		dividend = push
	case evm.SHR:
		quotient = push
		dividend = pop2
		var t uint256.Int
		t.Mul(&push, &divisor)
		remainder.Sub(&pop2, &t)
	default:
		return evmcircuit.ErrIdentityUnsatisfied
	}

	if err := g.quotient.AssignU256(region, offset, &quotient); err != nil {
		return err
	}
	if err := g.divisor.AssignU256(region, offset, &divisor); err != nil {
		return err
	}
	if err := g.remainder.AssignU256(region, offset, &remainder); err != nil {
		return err
	}
	if err := g.dividend.AssignU256(region, offset, &dividend); err != nil {
		return err
	}
	if err := g.shift.AssignU256(region, offset, &pop1); err != nil {
		return err
	}
	if err := g.shf0.AssignU64(region, offset, shf0); err != nil {
		return err
	}
	if err := g.mulAddWords.Assign(region, offset, [4]*uint256.Int{&quotient, &divisor, &remainder, &dividend}); err != nil {
		return err
	}
	if err := g.shfLt256.Assign(region, offset, fr.NewElement(highSum)); err != nil {
		return err
	}
	if err := g.divisorIsZero.Assign(region, offset, &divisor); err != nil {
		return err
	}
	if err := g.remainderIsZero.Assign(region, offset, &remainder); err != nil {
		return err
	}
	return g.remainderLtDivisor.Assign(region, offset, &remainder, &divisor)
}
