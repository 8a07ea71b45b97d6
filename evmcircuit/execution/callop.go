package execution

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evm"
	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/evmcircuit/mathgadget"
	"github.com/consensys/zkevm-gadgets/witness"
)

// CallOpGadget verifies CALL, CALLCODE, DELEGATECALL and STATICCALL, both
// for successful calls and for the insufficient-balance and depth-overflow
// failure cases. The step branches four ways: precompile callee, callee
// without code, failed precheck, and a regular callee frame.
type CallOpGadget struct {
	opcode         *evmcircuit.Cell
	isCall         *mathgadget.IsZeroGadget
	isCallcode     *mathgadget.IsZeroGadget
	isDelegatecall *mathgadget.IsZeroGadget
	isStaticcall   *mathgadget.IsZeroGadget

	txID                 *evmcircuit.Cell
	reversionInfo        *evmcircuit.ReversionInfo
	currentCalleeAddress evmcircuit.WordLoHiCell
	currentCallerAddress evmcircuit.WordLoHiCell
	currentValue         evmcircuit.WordLoHiCell
	isStatic             *evmcircuit.Cell
	depth                *evmcircuit.Cell

	call                *CommonCallGadget
	isWarm              *evmcircuit.Cell
	isWarmPrev          *evmcircuit.Cell
	calleeReversionInfo *evmcircuit.ReversionInfo
	transfer            *TransferGadget

	callerBalance         evmcircuit.WordLoHiCell
	isInsufficientBalance *mathgadget.LtWordGadget
	isDepthOK             *mathgadget.LtGadget

	one64thGas          *mathgadget.ConstantDivisionGadget
	cappedCalleeGasLeft *mathgadget.MinMaxGadget

	isCodeAddressZero *mathgadget.IsZeroGadget
	isPrecompileLt    *mathgadget.LtGadget
	precompile        *PrecompileGadget

	precompileReturnLength       *evmcircuit.Cell
	precompileReturnLengthZero   *mathgadget.IsZeroGadget
	precompileReturnDataCopySize *mathgadget.MinMaxGadget
	precompileInputLen           *evmcircuit.Cell
	precompileInputRlc           *evmcircuit.Cell
	precompileOutputRlc          *evmcircuit.Cell
	precompileInputRws           *evmcircuit.Cell
	precompileOutputRws          *evmcircuit.Cell
	precompileReturnRws          *evmcircuit.Cell

	precompileOutputWordSizeDiv     *mathgadget.ConstantDivisionGadget
	precompileOutputWordSizeDivZero *mathgadget.IsZeroGadget
}

var pow128 = new(big.Int).Lsh(big.NewInt(1), 128)

// addressScalar folds a word known to hold an account address (< 2^160)
// into a single field scalar.
func addressScalar(w evmcircuit.WordLoHi) *expr.Expression {
	return expr.Add(w.Lo, expr.Mul(w.Hi, expr.Big(pow128)))
}

func NewCallOp(cb *evmcircuit.EVMConstraintBuilder) *CallOpGadget {
	g := &CallOpGadget{opcode: cb.QueryCell()}
	cb.OpcodeLookup(g.opcode.Expr())

	g.isCall = mathgadget.NewIsZero(cb, expr.Sub(g.opcode.Expr(), expr.U64(uint64(evm.CALL))))
	g.isCallcode = mathgadget.NewIsZero(cb, expr.Sub(g.opcode.Expr(), expr.U64(uint64(evm.CALLCODE))))
	g.isDelegatecall = mathgadget.NewIsZero(cb, expr.Sub(g.opcode.Expr(), expr.U64(uint64(evm.DELEGATECALL))))
	g.isStaticcall = mathgadget.NewIsZero(cb, expr.Sub(g.opcode.Expr(), expr.U64(uint64(evm.STATICCALL))))
	isCall := g.isCall.Expr()
	isCallcode := g.isCallcode.Expr()
	isDelegatecall := g.isDelegatecall.Expr()
	isStaticcall := g.isStaticcall.Expr()

	// The rw counter of the triggering step doubles as the new call's id.
	calleeCallID := cb.Curr().RwCounter.Expr()

	g.txID = cb.CallContext(nil, witness.TxID)
	g.reversionInfo = cb.ReversionInfoRead(nil)
	g.isStatic = cb.CallContext(nil, witness.IsStatic)
	g.depth = cb.CallContext(nil, witness.Depth)
	g.currentCalleeAddress = cb.CallContextAsWord(nil, witness.CalleeAddress)
	cb.Condition(isDelegatecall, func() {
		g.currentCallerAddress = cb.CallContextAsWord(nil, witness.CallerAddress)
		g.currentValue = cb.CallContextAsWord(nil, witness.Value)
	})

	g.call = NewCommonCall(cb, isCall, isCallcode, isDelegatecall, isStaticcall)
	cb.Condition(expr.Not(expr.Add(isCall, isCallcode)), func() {
		cb.RequireZeroWord("value is zero unless CALL or CALLCODE", g.call.Value.ToWord())
	})

	callerAddress := addressScalar(evmcircuit.WordSelect(
		isDelegatecall,
		g.currentCallerAddress.ToWord(),
		g.currentCalleeAddress.ToWord(),
	))
	calleeAddress := expr.Select(
		expr.Add(isCallcode, isDelegatecall),
		addressScalar(g.currentCalleeAddress.ToWord()),
		g.call.CalleeAddressExpr(),
	)

	// Add the callee to the access list.
	g.isWarm = cb.QueryBool()
	g.isWarmPrev = cb.QueryBool()
	cb.RequireTrue("callee is updated to warm", g.isWarm.Expr())
	cb.AccountAccessListWrite(g.txID.Expr(), g.call.CalleeAddressExpr(), g.isWarm.Expr(), g.isWarmPrev.Expr())

	// Propagate rw_counter_end_of_reversion and is_persistent to the callee.
	g.calleeReversionInfo = cb.ReversionInfoWriteUnchecked(calleeCallID)
	cb.RequireEqual(
		"callee persists iff the caller persists and the call succeeds",
		g.calleeReversionInfo.IsPersistent(),
		expr.Mul(g.reversionInfo.IsPersistent(), g.call.IsSuccess.Expr()),
	)
	cb.Condition(expr.Mul(g.call.IsSuccess.Expr(), expr.Not(g.reversionInfo.IsPersistent())), func() {
		cb.RequireEqual(
			"callee reversion ends where the caller's next reversible write reverts",
			g.calleeReversionInfo.RwCounterEndOfReversion(),
			g.reversionInfo.RwCounterOfReversion(expr.One()),
		)
	})

	cb.Condition(expr.Mul(isCall, g.call.HasValue), func() {
		cb.RequireZero("CALL with value is forbidden in a static context", g.isStatic.Expr())
	})

	g.callerBalance = cb.QueryWordLoHi()
	cb.AccountRead(callerAddress, witness.AccountBalance, g.callerBalance.ToWord())
	g.isInsufficientBalance = mathgadget.NewLtWord(cb, g.callerBalance.ToWord(), g.call.Value.ToWord())
	g.isDepthOK = mathgadget.NewLt(cb, evmcircuit.NBytesU64, g.depth.Expr(), expr.U64(evmcircuit.CallDepthLimit))
	isPrecheckOK := expr.And(g.isDepthOK.Expr(), expr.Not(g.isInsufficientBalance.Expr()))

	cb.Condition(expr.Not(isPrecheckOK), func() {
		cb.RequireZero("a call failing its precheck pushes zero", g.call.IsSuccess.Expr())
	})

	// Precompiled contracts live at addresses 0x01 through 0x09.
	g.isCodeAddressZero = mathgadget.NewIsZero(cb, g.call.CalleeAddressExpr())
	g.isPrecompileLt = mathgadget.NewLt(cb, evmcircuit.NBytesAccountAddress, g.call.CalleeAddressExpr(), expr.U64(0x0a))
	isPrecompile := expr.And(expr.Not(g.isCodeAddressZero.Expr()), g.isPrecompileLt.Expr())

	g.precompileReturnLength = cb.QueryCell()
	g.precompileReturnLengthZero = mathgadget.NewIsZero(cb, g.precompileReturnLength.Expr())
	g.precompileReturnDataCopySize = mathgadget.NewMinMax(
		cb, evmcircuit.NBytesMemoryAddress,
		g.precompileReturnLength.Expr(), g.call.RdAddress.Length(),
	)
	g.precompileInputRws = cb.QueryCell()
	g.precompileOutputRws = cb.QueryCell()
	g.precompileReturnRws = cb.QueryCell()
	g.precompileInputLen = cb.QueryCell()

	// Transfer only happens for a CALL passing its precheck. A zero value
	// skips it, so a non-existing callee is not created by accident.
	cb.Condition(expr.Mul(isCall, isPrecheckOK), func() {
		g.transfer = NewTransfer(cb, callerAddress, calleeAddress, expr.Not(g.call.CalleeNotExists.Expr()), g.call.Value)
	})

	// For CALL the transfer covers this implicitly.
	cb.Condition(expr.Mul(isCallcode, g.call.IsSuccess.Expr()), func() {
		cb.RequireZero("successful CALLCODE requires caller balance >= value", g.isInsufficientBalance.Expr())
	})

	// The callee has no code when its account has the empty code hash or
	// does not exist at all (encoded as code hash zero).
	noCalleeCode := expr.Add(g.call.IsEmptyCodeHash.Expr(), g.call.CalleeNotExists.Expr())

	gasCost := g.call.GasCostExpr(g.isWarmPrev.Expr(), isCall)
	// EIP 150: the callee receives at most 63/64 of the remaining gas.
	gasAvailable := expr.Sub(cb.Curr().GasLeft.Expr(), gasCost)
	g.one64thGas = mathgadget.NewConstantDivision(cb, evmcircuit.NBytesGas, gasAvailable, 64)
	allButOne64th := expr.Sub(gasAvailable, g.one64thGas.Quotient())
	g.cappedCalleeGasLeft = mathgadget.NewMinMax(cb, evmcircuit.NBytesGas, g.call.GasExpr(), allButOne64th)
	calleeGasLeft := expr.Select(g.call.GasIsU64.Expr(), g.cappedCalleeGasLeft.Min(), allButOne64th)
	calleeGasWithStipend := expr.Add(calleeGasLeft, expr.Mul(g.call.HasValue, expr.U64(callStipend)))

	callerGasLeft := expr.Sub(expr.Sub(cb.Curr().GasLeft.Expr(), gasCost), calleeGasLeft)
	callerStackPointer := expr.Add(cb.Curr().StackPointer.Expr(), cb.StackPointerOffset())
	calleeReversibleDelta := expr.Mul(isCall, g.transfer.ReversibleWDelta())

	// Branch 1: calls into a precompiled contract.
	cb.Condition(expr.And(isPrecompile, isPrecheckOK), func() {
		cb.RequireTrue("precompile callee has no code", noCalleeCode)
		cb.RequireTrue("precompile addresses are always warm", expr.And(g.isWarm.Expr(), g.isWarmPrev.Expr()))

		cb.CallContextLookupWrite(calleeCallID, witness.IsSuccess, evmcircuit.WordFromLo(g.call.IsSuccess.Expr()))
		cb.CallContextLookupWrite(calleeCallID, witness.CalleeAddress, g.call.CalleeAddr.ToWord())
		for _, w := range []struct {
			field witness.CallContextFieldTag
			value *expr.Expression
		}{
			{witness.CallerID, cb.Curr().CallID.Expr()},
			{witness.CallDataOffset, g.call.CdAddress.Offset()},
			{witness.CallDataLength, g.call.CdAddress.Length()},
			{witness.ReturnDataOffset, g.call.RdAddress.Offset()},
			{witness.ReturnDataLength, g.call.RdAddress.Length()},
		} {
			cb.CallContextLookupWrite(calleeCallID, w.field, evmcircuit.WordFromLo(w.value))
		}

		// Save the caller's call state.
		for _, w := range []struct {
			field witness.CallContextFieldTag
			value *expr.Expression
		}{
			{witness.ProgramCounter, expr.Add(cb.Curr().ProgramCounter.Expr(), expr.One())},
			{witness.StackPointer, callerStackPointer},
			{witness.GasLeft, callerGasLeft},
			{witness.MemorySize, g.call.MemExpand.NextMemoryWordSize()},
			{witness.ReversibleWriteCounter, expr.Add(cb.Curr().ReversibleWriteCounter.Expr(), expr.One())},
			{witness.LastCalleeID, calleeCallID},
			{witness.LastCalleeReturnDataOffset, expr.Zero()},
			{witness.LastCalleeReturnDataLength, g.precompileReturnLength.Expr()},
		} {
			cb.CallContextLookupWrite(nil, w.field, evmcircuit.WordFromLo(w.value))
		}

		// The precompile input is copied from the caller's memory into an
		// RLC accumulator the precompile is verified against.
		cb.Condition(g.call.CdAddress.HasLength(), func() {
			g.precompileInputRlc = cb.QueryCell()
			cb.CopyTableLookup(
				"precompile input copy",
				cb.Curr().CallID.Expr(), witness.CopyMemory,
				calleeCallID, witness.CopyRlcAcc,
				g.call.CdAddress.Offset(),
				expr.Add(g.call.CdAddress.Offset(), g.precompileInputLen.Expr()),
				expr.Zero(),
				g.precompileInputLen.Expr(),
				g.precompileInputRlc.Expr(),
				g.precompileInputRws.Expr(),
			)
		})

		// The precompile output lands in the callee's memory.
		cb.Condition(expr.And(g.call.IsSuccess.Expr(), expr.Not(g.precompileReturnLengthZero.Expr())), func() {
			g.precompileOutputRlc = cb.QueryCell()
			cb.CopyTableLookup(
				"precompile output copy",
				calleeCallID, witness.CopyRlcAcc,
				calleeCallID, witness.CopyMemory,
				expr.Zero(),
				g.precompileReturnLength.Expr(),
				expr.Zero(),
				g.precompileReturnLength.Expr(),
				g.precompileOutputRlc.Expr(),
				g.precompileOutputRws.Expr(),
			)
		})

		// On success the return data window of the caller receives
		// min(return_length, rd_length) bytes of the output.
		cb.Condition(expr.And(
			g.call.IsSuccess.Expr(),
			g.call.RdAddress.HasLength(),
			expr.Not(g.precompileReturnLengthZero.Expr()),
		), func() {
			cb.CopyTableLookup(
				"precompile return copy",
				calleeCallID, witness.CopyMemory,
				cb.Curr().CallID.Expr(), witness.CopyMemory,
				expr.Zero(),
				g.precompileReturnDataCopySize.Min(),
				g.call.RdAddress.Offset(),
				g.precompileReturnDataCopySize.Min(),
				expr.Zero(),
				g.precompileReturnRws.Expr(),
			)
		})

		g.precompileOutputWordSizeDiv = mathgadget.NewConstantDivision(cb, evmcircuit.NBytesU64, g.precompileOutputRws.Expr(), 32)
		g.precompileOutputWordSizeDivZero = mathgadget.NewIsZero(cb, g.precompileOutputWordSizeDiv.Remainder())
		outputWordSize := expr.Sub(
			expr.Add(g.precompileOutputWordSizeDiv.Quotient(), expr.One()),
			g.precompileOutputWordSizeDivZero.Expr(),
		)

		cb.RequireStepStateTransition(evmcircuit.StepStateTransition{
			RwCounter:              evmcircuit.Delta(cb.RwCounterOffset()),
			CallID:                 evmcircuit.To(calleeCallID),
			IsRoot:                 evmcircuit.To(expr.Zero()),
			IsCreate:               evmcircuit.To(expr.Zero()),
			CodeHash:               evmcircuit.ToWord(cb.EmptyCodeHashWord()),
			ProgramCounter:         evmcircuit.Delta(expr.One()),
			StackPointer:           evmcircuit.Delta(cb.StackPointerOffset()),
			GasLeft:                evmcircuit.To(calleeGasWithStipend),
			MemoryWordSize:         evmcircuit.To(outputWordSize),
			ReversibleWriteCounter: evmcircuit.To(calleeReversibleDelta),
		})

		g.precompile = NewPrecompile(cb, g.call.CalleeAddressExpr(), g.call.CdAddress.Length(), g.precompileInputLen.Expr())
	})

	// Branch 2: calls into an account without code.
	cb.Condition(expr.And(expr.Not(isPrecompile), noCalleeCode, isPrecheckOK), func() {
		cb.CallContextLookupWrite(nil, witness.LastCalleeID, evmcircuit.WordFromLo(calleeCallID))
		cb.CallContextLookupWrite(nil, witness.LastCalleeReturnDataOffset, evmcircuit.WordZero())
		cb.CallContextLookupWrite(nil, witness.LastCalleeReturnDataLength, evmcircuit.WordZero())

		cb.RequireStepStateTransition(evmcircuit.StepStateTransition{
			RwCounter:              evmcircuit.Delta(cb.RwCounterOffset()),
			ProgramCounter:         evmcircuit.Delta(expr.One()),
			StackPointer:           evmcircuit.Delta(cb.StackPointerOffset()),
			GasLeft:                evmcircuit.Delta(expr.Sub(expr.Mul(g.call.HasValue, expr.U64(callStipend)), gasCost)),
			MemoryWordSize:         evmcircuit.To(g.call.MemExpand.NextMemoryWordSize()),
			ReversibleWriteCounter: evmcircuit.Delta(expr.Add(expr.One(), calleeReversibleDelta)),
		})
	})

	// Branch 3: the precheck failed on depth or balance.
	cb.Condition(expr.Not(isPrecheckOK), func() {
		cb.CallContextLookupWrite(nil, witness.LastCalleeID, evmcircuit.WordFromLo(calleeCallID))
		cb.CallContextLookupWrite(nil, witness.LastCalleeReturnDataOffset, evmcircuit.WordZero())
		cb.CallContextLookupWrite(nil, witness.LastCalleeReturnDataLength, evmcircuit.WordZero())

		cb.RequireStepStateTransition(evmcircuit.StepStateTransition{
			RwCounter:              evmcircuit.Delta(cb.RwCounterOffset()),
			ProgramCounter:         evmcircuit.Delta(expr.One()),
			StackPointer:           evmcircuit.Delta(cb.StackPointerOffset()),
			GasLeft:                evmcircuit.Delta(expr.Sub(expr.Mul(g.call.HasValue, expr.U64(callStipend)), gasCost)),
			MemoryWordSize:         evmcircuit.To(g.call.MemExpand.NextMemoryWordSize()),
			ReversibleWriteCounter: evmcircuit.Delta(expr.One()),
		})
	})

	// Branch 4: a regular call into a contract.
	cb.Condition(expr.And(expr.Not(isPrecompile), expr.Not(noCalleeCode), isPrecheckOK), func() {
		// Save the caller's call state.
		for _, w := range []struct {
			field witness.CallContextFieldTag
			value *expr.Expression
		}{
			{witness.ProgramCounter, expr.Add(cb.Curr().ProgramCounter.Expr(), expr.One())},
			{witness.StackPointer, callerStackPointer},
			{witness.GasLeft, callerGasLeft},
			{witness.MemorySize, g.call.MemExpand.NextMemoryWordSize()},
			{witness.ReversibleWriteCounter, expr.Add(cb.Curr().ReversibleWriteCounter.Expr(), expr.One())},
		} {
			cb.CallContextLookupWrite(nil, w.field, evmcircuit.WordFromLo(w.value))
		}

		// Set up the callee's context.
		for _, w := range []struct {
			field witness.CallContextFieldTag
			value evmcircuit.WordLoHi
		}{
			{witness.CallerID, evmcircuit.WordFromLo(cb.Curr().CallID.Expr())},
			{witness.TxID, evmcircuit.WordFromLo(g.txID.Expr())},
			{witness.Depth, evmcircuit.WordFromLo(expr.Add(g.depth.Expr(), expr.One()))},
			{witness.CallerAddress, evmcircuit.WordSelect(
				isDelegatecall, g.currentCallerAddress.ToWord(), g.currentCalleeAddress.ToWord())},
			{witness.CalleeAddress, evmcircuit.WordSelect(
				expr.Add(isCallcode, isDelegatecall), g.currentCalleeAddress.ToWord(), g.call.CalleeAddr.ToWord())},
			{witness.CallDataOffset, evmcircuit.WordFromLo(g.call.CdAddress.Offset())},
			{witness.CallDataLength, evmcircuit.WordFromLo(g.call.CdAddress.Length())},
			{witness.ReturnDataOffset, evmcircuit.WordFromLo(g.call.RdAddress.Offset())},
			{witness.ReturnDataLength, evmcircuit.WordFromLo(g.call.RdAddress.Length())},
			{witness.Value, evmcircuit.WordSelect(
				isDelegatecall, g.currentValue.ToWord(), g.call.Value.ToWord())},
			{witness.IsSuccess, evmcircuit.WordFromLo(g.call.IsSuccess.Expr())},
			{witness.IsStatic, evmcircuit.WordFromLo(expr.Or(g.isStatic.Expr(), isStaticcall))},
			{witness.LastCalleeID, evmcircuit.WordZero()},
			{witness.LastCalleeReturnDataOffset, evmcircuit.WordZero()},
			{witness.LastCalleeReturnDataLength, evmcircuit.WordZero()},
			{witness.IsRoot, evmcircuit.WordZero()},
			{witness.IsCreate, evmcircuit.WordZero()},
			{witness.CodeHash, g.call.CalleeCodeHash.ToWord()},
		} {
			cb.CallContextLookupWrite(calleeCallID, w.field, w.value)
		}

		t := evmcircuit.NewContextTransition()
		t.RwCounter = evmcircuit.Delta(cb.RwCounterOffset())
		t.CallID = evmcircuit.To(calleeCallID)
		t.IsRoot = evmcircuit.To(expr.Zero())
		t.IsCreate = evmcircuit.To(expr.Zero())
		t.CodeHash = evmcircuit.ToWord(g.call.CalleeCodeHash.ToWord())
		t.GasLeft = evmcircuit.To(calleeGasWithStipend)
		t.ReversibleWriteCounter = evmcircuit.To(calleeReversibleDelta)
		cb.RequireStepStateTransition(t)
	})

	return g
}

func frDiff(a, b uint64) fr.Element {
	x := fr.NewElement(a)
	y := fr.NewElement(b)
	x.Sub(&x, &y)
	return x
}

func (g *CallOpGadget) Assign(
	region *evmcircuit.CachedRegion, offset int,
	block *witness.Block, tx *witness.Transaction, call *witness.Call, step *witness.ExecStep,
) error {
	op := step.Opcode
	isCall := op == evm.CALL
	isCallcode := op == evm.CALLCODE
	isDelegatecall := op == evm.DELEGATECALL

	rws := witness.NewStepRws(step)
	txID := rws.CallContextValueTagged(witness.TxID)
	rws.OffsetAdd(2) // RwCounterEndOfReversion, IsPersistent
	isStatic := rws.CallContextValueTagged(witness.IsStatic)
	depth := rws.CallContextValueTagged(witness.Depth)
	currentCalleeAddress := rws.CallContextValueTagged(witness.CalleeAddress)

	if err := g.isDepthOK.Assign(region, offset, fr.NewElement(depth.Uint64()), fr.NewElement(evmcircuit.CallDepthLimit)); err != nil {
		return err
	}

	var currentCallerAddress, currentValue uint256.Int
	if isDelegatecall {
		currentCallerAddress = rws.CallContextValueTagged(witness.CallerAddress)
		currentValue = rws.CallContextValueTagged(witness.Value)
	}
	gas := rws.StackValue()
	calleeStackWord := rws.StackValue()
	var value uint256.Int
	if isCall || isCallcode {
		value = rws.StackValue()
	}
	cdOffset := rws.StackValue()
	cdLength := rws.StackValue()
	rdOffset := rws.StackValue()
	rdLength := rws.StackValue()
	isSuccess := rws.StackValue()

	calleeCodeHash, _ := rws.AccountCodeHashPair()
	calleeExists := !calleeCodeHash.IsZero()
	isWarm, isWarmPrev := rws.TxAccessListValuePair()
	calleeRwcEndOfReversion := rws.CallContextValueTagged(witness.RwCounterEndOfReversion)
	calleeIsPersistent := rws.CallContextValueTagged(witness.IsPersistent)

	callerBalance, _ := rws.AccountBalancePair()
	if err := g.callerBalance.AssignU256(region, offset, &callerBalance); err != nil {
		return err
	}
	if err := g.isInsufficientBalance.Assign(region, offset, &callerBalance, &value); err != nil {
		return err
	}
	isPrecheckOK := depth.Uint64() < evmcircuit.CallDepthLimit &&
		(!(isCall || isCallcode) || callerBalance.Cmp(&value) >= 0)

	if isCall && isPrecheckOK && !value.IsZero() {
		if !calleeExists {
			rws.AccountCodeHashPair() // creation write
		}
		sv, svPrev := rws.AccountBalancePair()
		rv, rvPrev := rws.AccountBalancePair()
		if err := g.transfer.Assign(region, offset, [2]uint256.Int{sv, svPrev}, [2]uint256.Int{rv, rvPrev}, &value); err != nil {
			return err
		}
	}

	if err := g.opcode.AssignU64(region, offset, uint64(op)); err != nil {
		return err
	}
	for _, s := range []struct {
		gadget *mathgadget.IsZeroGadget
		target evm.OpCode
	}{
		{g.isCall, evm.CALL},
		{g.isCallcode, evm.CALLCODE},
		{g.isDelegatecall, evm.DELEGATECALL},
		{g.isStaticcall, evm.STATICCALL},
	} {
		if err := s.gadget.Assign(region, offset, frDiff(uint64(op), uint64(s.target))); err != nil {
			return err
		}
	}
	if err := g.txID.AssignU64(region, offset, txID.Uint64()); err != nil {
		return err
	}
	if err := g.reversionInfo.Assign(region, offset, call.RwCounterEndOfReversion, call.IsPersistent); err != nil {
		return err
	}
	if err := g.currentCalleeAddress.AssignU256(region, offset, &currentCalleeAddress); err != nil {
		return err
	}
	if err := g.currentCallerAddress.AssignU256(region, offset, &currentCallerAddress); err != nil {
		return err
	}
	if err := g.currentValue.AssignU256(region, offset, &currentValue); err != nil {
		return err
	}
	if err := g.isStatic.AssignU64(region, offset, isStatic.Uint64()); err != nil {
		return err
	}
	if err := g.depth.AssignU64(region, offset, depth.Uint64()); err != nil {
		return err
	}

	memExpansionGas, err := g.call.Assign(
		region, offset,
		&gas, &calleeStackWord, &value, &isSuccess,
		&cdOffset, &cdLength, &rdOffset, &rdLength,
		step.MemoryWordSize, &calleeCodeHash,
	)
	if err != nil {
		return err
	}
	if err := g.isWarm.AssignBool(region, offset, isWarm); err != nil {
		return err
	}
	if err := g.isWarmPrev.AssignBool(region, offset, isWarmPrev); err != nil {
		return err
	}
	if err := g.calleeReversionInfo.Assign(region, offset, calleeRwcEndOfReversion.Uint64(), !calleeIsPersistent.IsZero()); err != nil {
		return err
	}

	hasValue := !value.IsZero() && !isDelegatecall
	gasCost := g.call.GasCostForAssignment(memExpansionGas, isWarmPrev, isCall, hasValue, !calleeExists)
	if step.GasLeft < gasCost {
		return fmt.Errorf("%w: gas left %d under call cost %d", evmcircuit.ErrValueOverflow, step.GasLeft, gasCost)
	}
	gasAvailable := step.GasLeft - gasCost
	if _, _, err := g.one64thGas.AssignU64(region, offset, gasAvailable); err != nil {
		return err
	}
	if err := g.cappedCalleeGasLeft.Assign(region, offset,
		fr.NewElement(gas.Uint64()),
		fr.NewElement(gasAvailable-gasAvailable/64),
	); err != nil {
		return err
	}

	calleeBytes := calleeStackWord.Bytes32()
	calleeAddr := common.BytesToAddress(calleeBytes[12:])
	var addrScalar fr.Element
	addrScalar.SetBytes(calleeAddr.Bytes())
	if err := g.isCodeAddressZero.Assign(region, offset, addrScalar); err != nil {
		return err
	}
	if err := g.isPrecompileLt.Assign(region, offset, addrScalar, fr.NewElement(0x0a)); err != nil {
		return err
	}
	isPrecompile := evm.IsPrecompiled(calleeAddr)

	var returnLength uint64
	if isPrecompile && isPrecheckOK {
		rws.OffsetAdd(14)
		rdl := rws.CallContextValueTagged(witness.LastCalleeReturnDataLength)
		returnLength = rdl.Uint64()
	}
	if err := g.precompileReturnLength.AssignU64(region, offset, returnLength); err != nil {
		return err
	}
	if err := g.precompileReturnLengthZero.Assign(region, offset, fr.NewElement(returnLength)); err != nil {
		return err
	}
	if err := g.precompileReturnDataCopySize.Assign(region, offset,
		fr.NewElement(returnLength), fr.NewElement(rdLength.Uint64())); err != nil {
		return err
	}

	var inputLen, inputRws, outputRws, returnRws uint64
	if isPrecompile && isPrecheckOK {
		inputLen = cdLength.Uint64()
		if n, ok := evm.PrecompileInputLen(calleeAddr[19]); ok && uint64(n) < inputLen {
			inputLen = uint64(n)
		}

		inputBytes := make([]byte, inputLen)
		for i := range inputBytes {
			inputBytes[i] = rws.MemoryValue()
		}
		outputBytes := make([]byte, returnLength)
		for i := range outputBytes {
			outputBytes[i] = rws.MemoryValue()
		}
		copySize := returnLength
		if rdLength.Uint64() < copySize {
			copySize = rdLength.Uint64()
		}
		returnBytes := make([]byte, 0, copySize)
		for i := uint64(0); i < 2*copySize; i++ {
			b := rws.MemoryValue()
			if i%2 == 0 {
				returnBytes = append(returnBytes, b)
			}
		}

		inputRws = inputLen
		outputRws = returnLength
		returnRws = 2 * copySize

		if err := g.precompileInputRlc.Assign(region, offset, block.Rlc(inputBytes)); err != nil {
			return err
		}
		if err := g.precompileOutputRlc.Assign(region, offset, block.Rlc(outputBytes)); err != nil {
			return err
		}
	}

	if err := g.precompileInputLen.AssignU64(region, offset, inputLen); err != nil {
		return err
	}
	if err := g.precompileInputRws.AssignU64(region, offset, inputRws); err != nil {
		return err
	}
	if err := g.precompileOutputRws.AssignU64(region, offset, outputRws); err != nil {
		return err
	}
	if err := g.precompileReturnRws.AssignU64(region, offset, returnRws); err != nil {
		return err
	}

	_, rem, err := g.precompileOutputWordSizeDiv.AssignU64(region, offset, outputRws)
	if err != nil {
		return err
	}
	if err := g.precompileOutputWordSizeDivZero.Assign(region, offset, fr.NewElement(rem)); err != nil {
		return err
	}

	if isPrecompile && isPrecheckOK {
		if err := g.precompile.Assign(region, offset, calleeAddr[19], cdLength.Uint64()); err != nil {
			return err
		}
	}

	// Skip the branch's remaining call-context writes so the trace is
	// consumed exactly.
	noCalleeCode := !calleeExists || calleeCodeHash.Eq(evmcircuit.EmptyCodeHash)
	switch {
	case !isPrecheckOK:
		rws.OffsetAdd(3)
	case isPrecompile:
		// consumed above
	case noCalleeCode:
		rws.OffsetAdd(3)
	default:
		rws.OffsetAdd(23)
	}
	return rws.Finish()
}
