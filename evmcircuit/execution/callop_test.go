package execution_test

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/consensys/zkevm-gadgets/evm"
	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/execution"
	"github.com/consensys/zkevm-gadgets/witness"
)

// The call fixtures below share one caller frame: call id 1, tx id 7,
// depth 1, pc 7, stack pointer 1017, 10000 gas and rw counter 50, so the
// callee call id is always 50.
const (
	callerID     = uint64(1)
	calleeCallID = uint64(50)
	fixtureTxID  = uint64(7)
)

func testAddr(last byte) common.Address {
	var a common.Address
	a[0] = 0x5a
	a[19] = last
	return a
}

func addrWord(a common.Address) uint256.Int {
	var w uint256.Int
	w.SetBytes(a[:])
	return w
}

func val(n uint64) uint256.Int { return *uint256.NewInt(n) }

func ccRead(field witness.CallContextFieldTag, v uint256.Int) witness.Rw {
	return witness.CallContextRw(callerID, false, field, v)
}

func ccWrite(callID uint64, field witness.CallContextFieldTag, v uint256.Int) witness.Rw {
	return witness.CallContextRw(callID, true, field, v)
}

func pop(v uint256.Int) witness.Rw  { return witness.StackRw(callerID, false, v) }
func push(v uint256.Int) witness.Rw { return witness.StackRw(callerID, true, v) }

// contextReads is the shared prefix every call opcode consumes: tx id,
// reversion info, static flag, depth and the current callee address.
func contextReads(isStatic, depth uint64, self common.Address) []witness.Rw {
	return []witness.Rw{
		ccRead(witness.TxID, val(fixtureTxID)),
		ccRead(witness.RwCounterEndOfReversion, val(0)),
		ccRead(witness.IsPersistent, val(1)),
		ccRead(witness.IsStatic, val(isStatic)),
		ccRead(witness.Depth, val(depth)),
		ccRead(witness.CalleeAddress, addrWord(self)),
	}
}

func currStep(op evm.OpCode, rws []witness.Rw) witness.ExecStep {
	return witness.ExecStep{
		Opcode:                 op,
		RwCounter:              calleeCallID,
		ProgramCounter:         7,
		StackPointer:           1017,
		GasLeft:                10000,
		MemoryWordSize:         0,
		ReversibleWriteCounter: 4,
		CallID:                 callerID,
		Rws:                    rws,
	}
}

func callerCall() witness.Call {
	return witness.Call{
		ID:           callerID,
		IsRoot:       true,
		IsPersistent: true,
		CodeHash:     val(0xc0de),
	}
}

// requireRwDeltaMatchesTrace pins the symbolic rw-counter delta of each
// assigned row to the number of rw entries the step recorded. Every branch
// fixture calls this, so a lookup added without advancing the counter (or
// the reverse) fails here even if the trace still verifies.
func requireRwDeltaMatchesTrace(t *testing.T, circuit *execution.Circuit, block *witness.Block, asg *execution.Assignment) {
	t.Helper()
	for _, row := range asg.Rows {
		cb, ok := circuit.Builder(row.State)
		require.True(t, ok)
		delta := cb.RwCounterOffset().Eval(asg.Regions[row.State].Resolver(row.Offset))
		require.Equal(t, uint64(len(block.Steps[row.StepIdx].Rws)), delta.Uint64())
	}
}

// TestCallToContract drives a CALL with value into an existing contract:
// the access-list write, the balance transfer, the caller state saves and
// the fresh callee context, ending in a new-frame transition.
func TestCallToContract(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	callee := testAddr(0x02)
	codeHash := val(0xfeed)

	rws := contextReads(0, 1, caller)
	rws = append(rws,
		pop(val(0)),             // gas
		pop(addrWord(callee)),   // callee address
		pop(val(100)),           // value
		pop(val(0)), pop(val(0)), // call data window
		pop(val(0)), pop(val(0)), // return data window
		push(val(1)), // is_success
		witness.AccountRw(callee, false, witness.AccountCodeHash, codeHash, codeHash),
		witness.AccessListRw(fixtureTxID, callee, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(1)),
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		// Transfer: sender loses the value, the receiver gains it.
		witness.AccountRw(caller, true, witness.AccountBalance, val(999900), val(1000000)),
		witness.AccountRw(callee, true, witness.AccountBalance, val(105), val(5)),
		// Caller state saves.
		ccWrite(callerID, witness.ProgramCounter, val(8)),
		ccWrite(callerID, witness.StackPointer, val(1023)),
		ccWrite(callerID, witness.GasLeft, val(900)),
		ccWrite(callerID, witness.MemorySize, val(0)),
		ccWrite(callerID, witness.ReversibleWriteCounter, val(5)),
		// Callee context.
		ccWrite(calleeCallID, witness.CallerID, val(callerID)),
		ccWrite(calleeCallID, witness.TxID, val(fixtureTxID)),
		ccWrite(calleeCallID, witness.Depth, val(2)),
		ccWrite(calleeCallID, witness.CallerAddress, addrWord(caller)),
		ccWrite(calleeCallID, witness.CalleeAddress, addrWord(callee)),
		ccWrite(calleeCallID, witness.CallDataOffset, val(0)),
		ccWrite(calleeCallID, witness.CallDataLength, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataLength, val(0)),
		ccWrite(calleeCallID, witness.Value, val(100)),
		ccWrite(calleeCallID, witness.IsSuccess, val(1)),
		ccWrite(calleeCallID, witness.IsStatic, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeID, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeReturnDataLength, val(0)),
		ccWrite(calleeCallID, witness.IsRoot, val(0)),
		ccWrite(calleeCallID, witness.IsCreate, val(0)),
		ccWrite(calleeCallID, witness.CodeHash, codeHash),
	)
	assert.Len(rws, 44)

	block := &witness.Block{
		Calls: []witness.Call{
			callerCall(),
			{ID: calleeCallID, IsPersistent: true, CodeHash: codeHash},
		},
		Txs: []witness.Transaction{{ID: fixtureTxID}},
		Steps: []witness.ExecStep{
			currStep(evm.CALL, rws),
			{
				// The callee's first step: a fresh frame with the 2300 gas
				// stipend of the value transfer.
				Opcode:                 unmappedOpcode,
				RwCounter:              94,
				ProgramCounter:         0,
				StackPointer:           1024,
				GasLeft:                2300,
				MemoryWordSize:         0,
				ReversibleWriteCounter: 2,
				CallID:                 calleeCallID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.Len(asg.Rows, 1)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)

	// A tampered callee gas breaks the transition.
	block.Steps[1].GasLeft = 2301
	asg, err = circuit.AssignBlock(block)
	assert.NoError(err)
	assert.Error(circuit.Verify(block, asg))
}

// TestCallToAccountWithoutCode drives a zero-value CALL into an account
// that does not exist: the caller stays in its frame and only pays the
// cold access cost.
func TestCallToAccountWithoutCode(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	callee := testAddr(0x04)

	rws := contextReads(0, 1, caller)
	rws = append(rws,
		pop(val(0)),           // gas
		pop(addrWord(callee)), // callee address
		pop(val(0)),           // value
		pop(val(0)), pop(val(0)),
		pop(val(0)), pop(val(0)),
		push(val(1)),
		witness.AccountRw(callee, false, witness.AccountCodeHash, val(0), val(0)),
		witness.AccessListRw(fixtureTxID, callee, true, false),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(1)),
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		ccWrite(callerID, witness.LastCalleeID, val(calleeCallID)),
		ccWrite(callerID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(callerID, witness.LastCalleeReturnDataLength, val(0)),
	)
	assert.Len(rws, 22)

	block := &witness.Block{
		Calls: []witness.Call{callerCall()},
		Steps: []witness.ExecStep{
			currStep(evm.CALL, rws),
			{
				Opcode:                 unmappedOpcode,
				RwCounter:              72,
				ProgramCounter:         8,
				StackPointer:           1023,
				GasLeft:                10000 - 2600, // cold access, no transfer
				MemoryWordSize:         0,
				ReversibleWriteCounter: 5,
				CallID:                 callerID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)
}

// TestStaticcallDepthOverflow drives a STATICCALL at the depth limit: the
// precheck fails, zero is pushed and the frame keeps running.
func TestStaticcallDepthOverflow(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	callee := testAddr(0x02)
	codeHash := val(0xfeed)

	rws := contextReads(1, 1025, caller)
	rws = append(rws,
		pop(val(0)),           // gas
		pop(addrWord(callee)), // callee address
		pop(val(0)), pop(val(0)),
		pop(val(0)), pop(val(0)),
		push(val(0)), // failed call pushes zero
		witness.AccountRw(callee, false, witness.AccountCodeHash, codeHash, codeHash),
		witness.AccessListRw(fixtureTxID, callee, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(0)),
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		ccWrite(callerID, witness.LastCalleeID, val(calleeCallID)),
		ccWrite(callerID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(callerID, witness.LastCalleeReturnDataLength, val(0)),
	)
	assert.Len(rws, 21)

	block := &witness.Block{
		Calls: []witness.Call{callerCall()},
		Steps: []witness.ExecStep{
			currStep(evm.STATICCALL, rws),
			{
				Opcode:                 unmappedOpcode,
				RwCounter:              71,
				ProgramCounter:         8,
				StackPointer:           1022,
				GasLeft:                10000 - 100, // warm access only
				MemoryWordSize:         0,
				ReversibleWriteCounter: 5,
				CallID:                 callerID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)
}

// TestCallInsufficientBalance drives a CALL whose value exceeds the caller
// balance: the precheck fails before any transfer.
func TestCallInsufficientBalance(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	callee := testAddr(0x02)
	codeHash := val(0xfeed)

	rws := contextReads(0, 1, caller)
	rws = append(rws,
		pop(val(0)),           // gas
		pop(addrWord(callee)), // callee address
		pop(val(2000000)),     // value above the balance
		pop(val(0)), pop(val(0)),
		pop(val(0)), pop(val(0)),
		push(val(0)),
		witness.AccountRw(callee, false, witness.AccountCodeHash, codeHash, codeHash),
		witness.AccessListRw(fixtureTxID, callee, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(0)),
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		ccWrite(callerID, witness.LastCalleeID, val(calleeCallID)),
		ccWrite(callerID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(callerID, witness.LastCalleeReturnDataLength, val(0)),
	)
	assert.Len(rws, 22)

	block := &witness.Block{
		Calls: []witness.Call{callerCall()},
		Steps: []witness.ExecStep{
			currStep(evm.CALL, rws),
			{
				Opcode:         unmappedOpcode,
				RwCounter:      72,
				ProgramCounter: 8,
				StackPointer:   1023,
				// Warm access and value surcharge paid, stipend refunded.
				GasLeft:                10000 - 9100 + 2300,
				MemoryWordSize:         0,
				ReversibleWriteCounter: 5,
				CallID:                 callerID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)
}

// TestCallcodeToContract drives a CALLCODE with value: the target's code
// runs in a fresh frame that keeps the caller's own address on both sides,
// and no balance moves.
func TestCallcodeToContract(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	codeAddr := testAddr(0x02)
	codeHash := val(0xfeed)

	rws := contextReads(0, 1, caller)
	rws = append(rws,
		pop(val(0)),             // gas
		pop(addrWord(codeAddr)), // code address
		pop(val(100)),           // value
		pop(val(0)), pop(val(0)), // call data window
		pop(val(0)), pop(val(0)), // return data window
		push(val(1)), // is_success
		witness.AccountRw(codeAddr, false, witness.AccountCodeHash, codeHash, codeHash),
		witness.AccessListRw(fixtureTxID, codeAddr, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(1)),
		// The balance check reads the caller's own account; no transfer
		// follows.
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		// Caller state saves.
		ccWrite(callerID, witness.ProgramCounter, val(8)),
		ccWrite(callerID, witness.StackPointer, val(1023)),
		ccWrite(callerID, witness.GasLeft, val(900)),
		ccWrite(callerID, witness.MemorySize, val(0)),
		ccWrite(callerID, witness.ReversibleWriteCounter, val(5)),
		// Callee context: caller and callee address are both the caller's.
		ccWrite(calleeCallID, witness.CallerID, val(callerID)),
		ccWrite(calleeCallID, witness.TxID, val(fixtureTxID)),
		ccWrite(calleeCallID, witness.Depth, val(2)),
		ccWrite(calleeCallID, witness.CallerAddress, addrWord(caller)),
		ccWrite(calleeCallID, witness.CalleeAddress, addrWord(caller)),
		ccWrite(calleeCallID, witness.CallDataOffset, val(0)),
		ccWrite(calleeCallID, witness.CallDataLength, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataLength, val(0)),
		ccWrite(calleeCallID, witness.Value, val(100)),
		ccWrite(calleeCallID, witness.IsSuccess, val(1)),
		ccWrite(calleeCallID, witness.IsStatic, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeID, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeReturnDataLength, val(0)),
		ccWrite(calleeCallID, witness.IsRoot, val(0)),
		ccWrite(calleeCallID, witness.IsCreate, val(0)),
		ccWrite(calleeCallID, witness.CodeHash, codeHash),
	)
	assert.Len(rws, 42)

	block := &witness.Block{
		Calls: []witness.Call{
			callerCall(),
			{ID: calleeCallID, IsPersistent: true, CodeHash: codeHash},
		},
		Txs: []witness.Transaction{{ID: fixtureTxID}},
		Steps: []witness.ExecStep{
			currStep(evm.CALLCODE, rws),
			{
				// The value surcharge buys the stipend, but nothing was
				// transferred, so no write is reversible.
				Opcode:                 unmappedOpcode,
				RwCounter:              92,
				ProgramCounter:         0,
				StackPointer:           1024,
				GasLeft:                2300,
				MemoryWordSize:         0,
				ReversibleWriteCounter: 0,
				CallID:                 calleeCallID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)
}

// TestCallcodeInsufficientBalance drives a CALLCODE whose value exceeds the
// caller's own balance: the precheck fails and the caller keeps its frame.
func TestCallcodeInsufficientBalance(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	codeAddr := testAddr(0x02)
	codeHash := val(0xfeed)

	rws := contextReads(0, 1, caller)
	rws = append(rws,
		pop(val(0)),             // gas
		pop(addrWord(codeAddr)), // code address
		pop(val(2000000)),       // value above the balance
		pop(val(0)), pop(val(0)),
		pop(val(0)), pop(val(0)),
		push(val(0)),
		witness.AccountRw(codeAddr, false, witness.AccountCodeHash, codeHash, codeHash),
		witness.AccessListRw(fixtureTxID, codeAddr, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(0)),
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		ccWrite(callerID, witness.LastCalleeID, val(calleeCallID)),
		ccWrite(callerID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(callerID, witness.LastCalleeReturnDataLength, val(0)),
	)
	assert.Len(rws, 22)

	block := &witness.Block{
		Calls: []witness.Call{callerCall()},
		Steps: []witness.ExecStep{
			currStep(evm.CALLCODE, rws),
			{
				Opcode:                 unmappedOpcode,
				RwCounter:              72,
				ProgramCounter:         8,
				StackPointer:           1023,
				GasLeft:                10000 - 9100 + 2300,
				MemoryWordSize:         0,
				ReversibleWriteCounter: 5,
				CallID:                 callerID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)

	// Claiming success despite the failed precheck breaks the balance
	// requirement.
	block.Steps[0].Rws[13] = push(val(1))
	asg, err = circuit.AssignBlock(block)
	assert.NoError(err)
	assert.Error(circuit.Verify(block, asg))
}

// TestDelegatecall drives a DELEGATECALL into a contract: the callee frame
// inherits the caller's address, value and storage context while running
// the target's code.
func TestDelegatecall(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	self := testAddr(0x01)     // current callee, becomes the new callee too
	parent := testAddr(0x03)   // current caller, inherited by the new frame
	codeAddr := testAddr(0x02) // where the executed code lives
	codeHash := val(0xfeed)

	rws := contextReads(0, 1, self)
	rws = append(rws,
		ccRead(witness.CallerAddress, addrWord(parent)),
		ccRead(witness.Value, val(55)),
		pop(val(0)),             // gas
		pop(addrWord(codeAddr)), // code address
		pop(val(0)), pop(val(0)),
		pop(val(0)), pop(val(0)),
		push(val(1)),
		witness.AccountRw(codeAddr, false, witness.AccountCodeHash, codeHash, codeHash),
		witness.AccessListRw(fixtureTxID, codeAddr, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(1)),
		witness.AccountRw(parent, false, witness.AccountBalance, val(1000000), val(1000000)),
		// Caller state saves.
		ccWrite(callerID, witness.ProgramCounter, val(8)),
		ccWrite(callerID, witness.StackPointer, val(1022)),
		ccWrite(callerID, witness.GasLeft, val(9900)),
		ccWrite(callerID, witness.MemorySize, val(0)),
		ccWrite(callerID, witness.ReversibleWriteCounter, val(5)),
		// Callee context, bound to the caller's identity.
		ccWrite(calleeCallID, witness.CallerID, val(callerID)),
		ccWrite(calleeCallID, witness.TxID, val(fixtureTxID)),
		ccWrite(calleeCallID, witness.Depth, val(2)),
		ccWrite(calleeCallID, witness.CallerAddress, addrWord(parent)),
		ccWrite(calleeCallID, witness.CalleeAddress, addrWord(self)),
		ccWrite(calleeCallID, witness.CallDataOffset, val(0)),
		ccWrite(calleeCallID, witness.CallDataLength, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataLength, val(0)),
		ccWrite(calleeCallID, witness.Value, val(55)),
		ccWrite(calleeCallID, witness.IsSuccess, val(1)),
		ccWrite(calleeCallID, witness.IsStatic, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeID, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.LastCalleeReturnDataLength, val(0)),
		ccWrite(calleeCallID, witness.IsRoot, val(0)),
		ccWrite(calleeCallID, witness.IsCreate, val(0)),
		ccWrite(calleeCallID, witness.CodeHash, codeHash),
	)
	assert.Len(rws, 43)

	block := &witness.Block{
		Calls: []witness.Call{
			callerCall(),
			{ID: calleeCallID, IsPersistent: true, CodeHash: codeHash},
		},
		Steps: []witness.ExecStep{
			currStep(evm.DELEGATECALL, rws),
			{
				Opcode:                 unmappedOpcode,
				RwCounter:              93,
				ProgramCounter:         0,
				StackPointer:           1024,
				GasLeft:                0, // requested gas word was zero
				MemoryWordSize:         0,
				ReversibleWriteCounter: 0,
				CallID:                 calleeCallID,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)
}

// TestStaticcallToPrecompile drives a STATICCALL into the identity
// precompile at 0x04: the call data is copied into the precompile, the
// output lands in the callee memory and its head is copied back into the
// caller's return window.
func TestStaticcallToPrecompile(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	caller := testAddr(0x01)
	precompile := common.Address{19: evm.PrecompileIdentity}

	input := []byte{0xde, 0xad, 0xbe, 0xef}
	output := []byte{0x11, 0x22, 0x33, 0x44}

	rws := contextReads(0, 1, caller)
	rws = append(rws,
		pop(val(50000)),           // gas
		pop(addrWord(precompile)), // callee address
		pop(val(0)), pop(val(4)), // call data window
		pop(val(0)), pop(val(2)), // return data window
		push(val(1)),
		witness.AccountRw(precompile, false, witness.AccountCodeHash, val(0), val(0)),
		witness.AccessListRw(fixtureTxID, precompile, true, true),
		ccWrite(calleeCallID, witness.RwCounterEndOfReversion, val(0)),
		ccWrite(calleeCallID, witness.IsPersistent, val(1)),
		witness.AccountRw(caller, false, witness.AccountBalance, val(1000000), val(1000000)),
		// Callee context.
		ccWrite(calleeCallID, witness.IsSuccess, val(1)),
		ccWrite(calleeCallID, witness.CalleeAddress, addrWord(precompile)),
		ccWrite(calleeCallID, witness.CallerID, val(callerID)),
		ccWrite(calleeCallID, witness.CallDataOffset, val(0)),
		ccWrite(calleeCallID, witness.CallDataLength, val(4)),
		ccWrite(calleeCallID, witness.ReturnDataOffset, val(0)),
		ccWrite(calleeCallID, witness.ReturnDataLength, val(2)),
		// Caller state saves.
		ccWrite(callerID, witness.ProgramCounter, val(8)),
		ccWrite(callerID, witness.StackPointer, val(1022)),
		ccWrite(callerID, witness.GasLeft, val(154)),
		ccWrite(callerID, witness.MemorySize, val(1)),
		ccWrite(callerID, witness.ReversibleWriteCounter, val(5)),
		ccWrite(callerID, witness.LastCalleeID, val(calleeCallID)),
		ccWrite(callerID, witness.LastCalleeReturnDataOffset, val(0)),
		ccWrite(callerID, witness.LastCalleeReturnDataLength, val(4)),
	)
	// Input copy: caller memory reads.
	for _, b := range input {
		rws = append(rws, witness.MemoryRw(callerID, false, b))
	}
	// Output copy: callee memory writes.
	for _, b := range output {
		rws = append(rws, witness.MemoryRw(calleeCallID, true, b))
	}
	// Return copy: read from the callee, write into the caller, byte by
	// byte, capped by the return window length.
	for _, b := range output[:2] {
		rws = append(rws,
			witness.MemoryRw(calleeCallID, false, b),
			witness.MemoryRw(callerID, true, b),
		)
	}
	assert.Len(rws, 45)

	challenge := fr.NewElement(1000003)
	block := &witness.Block{
		Challenge: challenge,
		Calls: []witness.Call{
			callerCall(),
			{ID: calleeCallID, IsPersistent: true, CodeHash: *evmcircuit.EmptyCodeHash},
		},
		Steps: []witness.ExecStep{
			currStep(evm.STATICCALL, rws),
			{
				Opcode:         unmappedOpcode,
				RwCounter:      95,
				ProgramCounter: 8,
				StackPointer:   1022,
				// 10000 gas: 103 cost (warm access plus 3 of memory
				// expansion) leaves 9897, one 64th is 154, so the callee
				// receives min(50000, 9743) and the caller keeps 154.
				GasLeft:                9743,
				MemoryWordSize:         1,
				ReversibleWriteCounter: 0,
				CallID:                 calleeCallID,
			},
		},
	}
	block.CopyEvents = []witness.CopyEvent{
		{
			SrcID: callerID, SrcTag: witness.CopyMemory,
			DstID: calleeCallID, DstTag: witness.CopyRlcAcc,
			SrcAddr: 0, SrcEnd: 4, DstAddr: 0, Length: 4,
			Rlc: block.Rlc(input), RwCounter: 4,
		},
		{
			SrcID: calleeCallID, SrcTag: witness.CopyRlcAcc,
			DstID: calleeCallID, DstTag: witness.CopyMemory,
			SrcAddr: 0, SrcEnd: 4, DstAddr: 0, Length: 4,
			Rlc: block.Rlc(output), RwCounter: 4,
		},
		{
			SrcID: calleeCallID, SrcTag: witness.CopyMemory,
			DstID: callerID, DstTag: witness.CopyMemory,
			SrcAddr: 0, SrcEnd: 2, DstAddr: 0, Length: 2,
			Rlc: fr.Element{}, RwCounter: 4,
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.NoError(circuit.Verify(block, asg))
	requireRwDeltaMatchesTrace(t, circuit, block, asg)

	// Cold precompile addresses are rejected.
	block.Steps[0].Rws[14] = witness.AccessListRw(fixtureTxID, precompile, true, false)
	asg, err = circuit.AssignBlock(block)
	assert.NoError(err)
	assert.Error(circuit.Verify(block, asg))
}
