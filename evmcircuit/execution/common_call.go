package execution

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/expr"
	"github.com/consensys/zkevm-gadgets/evmcircuit/mathgadget"
	"github.com/consensys/zkevm-gadgets/witness"
)

// CommonCallGadget decodes the stack frame shared by the four call opcodes:
// gas, callee address, optional value, call data and return data windows and
// the success flag, plus the callee code hash read and the memory expansion
// over both data windows.
type CommonCallGadget struct {
	IsSuccess   *evmcircuit.Cell
	Gas         *evmcircuit.Word32Cell
	GasIsU64    *mathgadget.IsZeroGadget
	CalleeAddr  *evmcircuit.Word32Cell
	Value       *evmcircuit.Word32Cell
	CdAddress   *MemoryAddressGadget
	RdAddress   *MemoryAddressGadget
	MemExpand   *MemoryExpansionGadget
	ValueIsZero *mathgadget.IsZeroWordGadget
	// HasValue is one when a CALL or CALLCODE transfers a non-zero value.
	HasValue *expr.Expression

	CalleeCodeHash  evmcircuit.WordLoHiCell
	IsEmptyCodeHash *mathgadget.IsEqualWordGadget
	CalleeNotExists *mathgadget.IsZeroWordGadget

	isCall, isCallcode *expr.Expression
}

func NewCommonCall(cb *evmcircuit.EVMConstraintBuilder, isCall, isCallcode, isDelegatecall, isStaticcall *expr.Expression) *CommonCallGadget {
	cb.RequireEqual(
		"exactly one call opcode selector is set",
		expr.Add(isCall, isCallcode, isDelegatecall, isStaticcall),
		expr.One(),
	)

	g := &CommonCallGadget{
		IsSuccess:  cb.QueryBool(),
		Gas:        cb.QueryWord32(),
		CalleeAddr: cb.QueryWord32(),
		Value:      cb.QueryWord32(),
		isCall:     isCall,
		isCallcode: isCallcode,
	}
	g.CdAddress = NewMemoryAddress(cb)
	g.RdAddress = NewMemoryAddress(cb)

	cb.StackPop(g.Gas.ToWord())
	cb.StackPop(g.CalleeAddr.ToWord())
	cb.Condition(expr.Add(isCall, isCallcode), func() {
		cb.StackPop(g.Value.ToWord())
	})
	cb.StackPop(g.CdAddress.OffsetWord())
	cb.StackPop(g.CdAddress.LengthWord())
	cb.StackPop(g.RdAddress.OffsetWord())
	cb.StackPop(g.RdAddress.LengthWord())
	cb.StackPush(evmcircuit.WordFromLo(g.IsSuccess.Expr()))

	g.MemExpand = NewMemoryExpansion(cb, [2]*expr.Expression{g.CdAddress.Address(), g.RdAddress.Address()})

	gasHigh := make([]*expr.Expression, 0, 24)
	for _, c := range g.Gas.Limbs[evmcircuit.NBytesGas:] {
		gasHigh = append(gasHigh, c.Expr())
	}
	g.GasIsU64 = mathgadget.NewIsZero(cb, expr.Sum(gasHigh))

	g.ValueIsZero = mathgadget.NewIsZeroWord(cb, g.Value.ToWord())
	g.HasValue = expr.Select(
		expr.Add(isDelegatecall, isStaticcall),
		expr.Zero(),
		expr.Not(g.ValueIsZero.Expr()),
	)

	g.CalleeCodeHash = cb.QueryWordLoHi()
	cb.AccountRead(g.CalleeAddressExpr(), witness.AccountCodeHash, g.CalleeCodeHash.ToWord())
	g.IsEmptyCodeHash = mathgadget.NewIsEqualWord(cb, g.CalleeCodeHash.ToWord(), cb.EmptyCodeHashWord())
	g.CalleeNotExists = mathgadget.NewIsZeroWord(cb, g.CalleeCodeHash.ToWord())
	return g
}

// CalleeAddressExpr is the callee account address: the low 20 bytes of the
// address stack word.
func (g *CommonCallGadget) CalleeAddressExpr() *expr.Expression {
	return g.CalleeAddr.AddressExpr()
}

// GasExpr is the requested gas as a 64-bit scalar (low 8 bytes of the gas
// word). Only meaningful when GasIsU64 holds.
func (g *CommonCallGadget) GasExpr() *expr.Expression {
	return evmcircuit.RecomposeBytes(g.Gas.Limbs[:evmcircuit.NBytesGas])
}

// RwDelta is the number of rw entries this gadget declares.
func (g *CommonCallGadget) RwDelta() *expr.Expression {
	// 6 + is_call + is_callcode stack pops, 1 push, 1 code hash read.
	return expr.Add(expr.U64(8), g.isCall, g.isCallcode)
}

// GasCostExpr prices the call before the 63/64 capping: access-list
// surcharge, value transfer, possible account creation and memory
// expansion. Only a CALL can turn an empty account non-empty.
func (g *CommonCallGadget) GasCostExpr(isWarmPrev, isCall *expr.Expression) *expr.Expression {
	return expr.Add(
		expr.Select(isWarmPrev,
			expr.U64(params.WarmStorageReadCostEIP2929),
			expr.U64(params.ColdAccountAccessCostEIP2929)),
		expr.Mul(g.HasValue, expr.Add(
			expr.U64(params.CallValueTransferGas),
			expr.Mul(isCall, g.CalleeNotExists.Expr(), expr.U64(params.CallNewAccountGas)),
		)),
		g.MemExpand.GasCost(),
	)
}

// GasCostForAssignment is GasCostExpr over concrete values.
func (g *CommonCallGadget) GasCostForAssignment(memExpansionGas uint64, isWarmPrev, isCall, hasValue, calleeNotExists bool) uint64 {
	cost := uint64(params.ColdAccountAccessCostEIP2929)
	if isWarmPrev {
		cost = params.WarmStorageReadCostEIP2929
	}
	if hasValue {
		cost += params.CallValueTransferGas
		if isCall && calleeNotExists {
			cost += params.CallNewAccountGas
		}
	}
	return cost + memExpansionGas
}

// Assign fills the frame cells from the concrete stack words and returns
// the memory expansion gas charge.
func (g *CommonCallGadget) Assign(
	region *evmcircuit.CachedRegion, offset int,
	gas, calleeAddr, value, isSuccess *uint256.Int,
	cdOffset, cdLength, rdOffset, rdLength *uint256.Int,
	currMemWordSize uint64, calleeCodeHash *uint256.Int,
) (memExpansionGas uint64, err error) {
	if err = g.IsSuccess.AssignBool(region, offset, !isSuccess.IsZero()); err != nil {
		return 0, err
	}
	if err = g.Gas.AssignU256(region, offset, gas); err != nil {
		return 0, err
	}
	if err = g.CalleeAddr.AssignU256(region, offset, calleeAddr); err != nil {
		return 0, err
	}
	if err = g.Value.AssignU256(region, offset, value); err != nil {
		return 0, err
	}

	gasBytes := gas.Bytes32()
	var highSum uint64
	for _, b := range gasBytes[:32-evmcircuit.NBytesGas] {
		highSum += uint64(b)
	}
	if err = g.GasIsU64.Assign(region, offset, fr.NewElement(highSum)); err != nil {
		return 0, err
	}

	cdAddr, err := g.CdAddress.Assign(region, offset, cdOffset, cdLength)
	if err != nil {
		return 0, err
	}
	rdAddr, err := g.RdAddress.Assign(region, offset, rdOffset, rdLength)
	if err != nil {
		return 0, err
	}
	_, memExpansionGas, err = g.MemExpand.Assign(region, offset, currMemWordSize, [2]uint64{cdAddr, rdAddr})
	if err != nil {
		return 0, err
	}

	if err = g.ValueIsZero.Assign(region, offset, value); err != nil {
		return 0, err
	}
	if err = g.CalleeCodeHash.AssignU256(region, offset, calleeCodeHash); err != nil {
		return 0, err
	}
	if err = g.IsEmptyCodeHash.Assign(region, offset, calleeCodeHash, evmcircuit.EmptyCodeHash); err != nil {
		return 0, err
	}
	if err = g.CalleeNotExists.Assign(region, offset, calleeCodeHash); err != nil {
		return 0, err
	}
	return memExpansionGas, nil
}

// TransferGadget moves value from sender to receiver, creating the receiver
// account when it does not exist yet. All its constraints are scoped by the
// condition active at construction.
type TransferGadget struct {
	valueIsZero *mathgadget.IsZeroWordGadget

	senderBalance       *evmcircuit.Word32Cell
	senderBalancePrev   *evmcircuit.Word32Cell
	receiverBalance     *evmcircuit.Word32Cell
	receiverBalancePrev *evmcircuit.Word32Cell
	senderSub           *mathgadget.AddWordsGadget
	receiverAdd         *mathgadget.AddWordsGadget
}

func NewTransfer(
	cb *evmcircuit.EVMConstraintBuilder,
	senderAddress, receiverAddress *expr.Expression,
	receiverExists *expr.Expression,
	value *evmcircuit.Word32Cell,
) *TransferGadget {
	g := &TransferGadget{
		valueIsZero:         mathgadget.NewIsZeroWord(cb, value.ToWord()),
		senderBalance:       cb.QueryWord32(),
		senderBalancePrev:   cb.QueryWord32(),
		receiverBalance:     cb.QueryWord32(),
		receiverBalancePrev: cb.QueryWord32(),
	}

	// A non-zero transfer to a non-existing account creates it, recorded as
	// a code hash write from zero to the empty code hash.
	cb.Condition(expr.And(expr.Not(receiverExists), expr.Not(g.valueIsZero.Expr())), func() {
		cb.AccountWrite(receiverAddress, witness.AccountCodeHash, cb.EmptyCodeHashWord(), evmcircuit.WordZero())
	})

	cb.Condition(expr.Not(g.valueIsZero.Expr()), func() {
		g.senderSub = mathgadget.NewAddWords(cb, g.senderBalance, value, g.senderBalancePrev, true)
		cb.AccountWrite(senderAddress, witness.AccountBalance, g.senderBalance.ToWord(), g.senderBalancePrev.ToWord())
		g.receiverAdd = mathgadget.NewAddWords(cb, g.receiverBalancePrev, value, g.receiverBalance, true)
		cb.AccountWrite(receiverAddress, witness.AccountBalance, g.receiverBalance.ToWord(), g.receiverBalancePrev.ToWord())
	})
	return g
}

// ValueIsZero is one when no value moves.
func (g *TransferGadget) ValueIsZero() *expr.Expression { return g.valueIsZero.Expr() }

// ReversibleWDelta is the number of reversible writes the transfer makes:
// the two balance writes when value is non-zero.
func (g *TransferGadget) ReversibleWDelta() *expr.Expression {
	return expr.Mul(expr.Not(g.valueIsZero.Expr()), expr.U64(2))
}

// Assign fills the balance cells from the recorded (value, previous) pairs.
func (g *TransferGadget) Assign(
	region *evmcircuit.CachedRegion, offset int,
	senderPair, receiverPair [2]uint256.Int,
	value *uint256.Int,
) error {
	if err := g.valueIsZero.Assign(region, offset, value); err != nil {
		return err
	}
	if err := g.senderBalance.AssignU256(region, offset, &senderPair[0]); err != nil {
		return err
	}
	if err := g.senderBalancePrev.AssignU256(region, offset, &senderPair[1]); err != nil {
		return err
	}
	if err := g.receiverBalance.AssignU256(region, offset, &receiverPair[0]); err != nil {
		return err
	}
	if err := g.receiverBalancePrev.AssignU256(region, offset, &receiverPair[1]); err != nil {
		return err
	}
	if err := g.senderSub.Assign(region, offset, &senderPair[0], value, &senderPair[1]); err != nil {
		return err
	}
	return g.receiverAdd.Assign(region, offset, &receiverPair[1], value, &receiverPair[0])
}

// callStipend is the gas stipend granted to the callee of a value transfer.
const callStipend = params.CallStipend
