package execution_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/consensys/zkevm-gadgets/evm"
	"github.com/consensys/zkevm-gadgets/evmcircuit"
	"github.com/consensys/zkevm-gadgets/evmcircuit/execution"
	"github.com/consensys/zkevm-gadgets/witness"
)

func TestAssignBlockRoutesStatesAndOffsets(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	stack := func(isWrite bool, v uint64) witness.Rw {
		return witness.StackRw(1, isWrite, *uint256.NewInt(v))
	}
	block := &witness.Block{
		Calls: []witness.Call{{ID: 1, IsRoot: true, CodeHash: *uint256.NewInt(0xc0de)}},
		Steps: []witness.ExecStep{
			{
				Opcode: evm.SDIV, RwCounter: 1, ProgramCounter: 10, StackPointer: 1020,
				GasLeft: 100, CallID: 1,
				Rws: []witness.Rw{stack(false, 7), stack(false, 3), stack(true, 2)},
			},
			{
				Opcode: evm.SHL, RwCounter: 4, ProgramCounter: 11, StackPointer: 1021,
				GasLeft: 95, CallID: 1,
				Rws: []witness.Rw{stack(false, 1), stack(false, 2), stack(true, 4)},
			},
			{
				Opcode: unmappedOpcode, RwCounter: 7, ProgramCounter: 12, StackPointer: 1022,
				GasLeft: 92, CallID: 1,
			},
		},
	}

	asg, err := circuit.AssignBlock(block)
	assert.NoError(err)
	assert.Len(asg.Rows, 2)

	states := map[evmcircuit.ExecutionState]int{}
	for _, row := range asg.Rows {
		assert.Equal(0, row.Offset, "first row of each state sits at offset zero")
		states[row.State]++
	}
	assert.Equal(map[evmcircuit.ExecutionState]int{
		evmcircuit.StateSdivSmod: 1,
		evmcircuit.StateShlShr:   1,
	}, states)

	assert.NoError(circuit.Verify(block, asg))
}

func TestAssignBlockRequiresSuccessorStep(t *testing.T) {
	circuit := execution.NewCircuit()

	block := &witness.Block{
		Calls: []witness.Call{{ID: 1, IsRoot: true}},
		Steps: []witness.ExecStep{
			{
				Opcode: evm.SDIV, RwCounter: 1, ProgramCounter: 10, StackPointer: 1020,
				GasLeft: 100, CallID: 1,
				Rws: []witness.Rw{
					witness.StackRw(1, false, *uint256.NewInt(7)),
					witness.StackRw(1, false, *uint256.NewInt(3)),
					witness.StackRw(1, true, *uint256.NewInt(2)),
				},
			},
		},
	}
	_, err := circuit.AssignBlock(block)
	require.ErrorContains(t, err, "successor")
}

func TestAssignBlockSkipsUnhandledOpcodes(t *testing.T) {
	circuit := execution.NewCircuit()

	block := &witness.Block{
		Calls: []witness.Call{{ID: 1, IsRoot: true}},
		Steps: []witness.ExecStep{
			{Opcode: unmappedOpcode, RwCounter: 1, CallID: 1},
			{Opcode: unmappedOpcode, RwCounter: 1, CallID: 1},
		},
	}
	asg, err := circuit.AssignBlock(block)
	require.NoError(t, err)
	require.Empty(t, asg.Rows)
}

func TestManifestsExposeEveryState(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	for _, state := range []evmcircuit.ExecutionState{
		evmcircuit.StateSdivSmod,
		evmcircuit.StateShlShr,
		evmcircuit.StateCallOp,
	} {
		m, ok := circuit.Manifest(state)
		assert.True(ok, "state %v", state)
		assert.NotZero(m.Cells, "state %v", state)
		assert.NotEmpty(m.Constraints, "state %v", state)
		assert.NotZero(m.RwLookups, "state %v", state)
	}
}
