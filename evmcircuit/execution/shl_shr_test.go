package execution_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/consensys/zkevm-gadgets/evm"
	"github.com/consensys/zkevm-gadgets/evmcircuit/execution"
)

func TestShlShr(t *testing.T) {
	circuit := execution.NewCircuit()

	pattern := uint256.MustFromHex("0x8090a0b0c0d0e0f0102030405060708090a0b0c0d0e0f010203040506070809f")
	values := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(0xff),
		pattern,
		new(uint256.Int).Neg(uint256.NewInt(1)),
	}
	shifts := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(8),
		uint256.NewInt(127),
		uint256.NewInt(255),
		uint256.NewInt(256),
		uint256.NewInt(300),
		new(uint256.Int).Lsh(uint256.NewInt(1), 128),
	}

	for _, op := range []evm.OpCode{evm.SHL, evm.SHR} {
		for _, value := range values {
			for _, shift := range shifts {
				var want uint256.Int
				if op == evm.SHL {
					want.Lsh(value, uint(shift.Uint64()&0x1ff))
				} else {
					want.Rsh(value, uint(shift.Uint64()&0x1ff))
				}
				if !shift.LtUint64(256) {
					want.Clear()
				}

				block := stackOpBlock(op, evm.GasFastestStep, shift, value, &want)
				asg, err := circuit.AssignBlock(block)
				require.NoError(t, err, "%v value=%s shift=%s", op, value.Hex(), shift.Hex())
				require.NoError(t, circuit.Verify(block, asg), "%v value=%s shift=%s", op, value.Hex(), shift.Hex())
			}
		}
	}
}

func TestShlShrRejectsWrongResult(t *testing.T) {
	assert := require.New(t)
	circuit := execution.NewCircuit()

	// 0xff << 4 is 0xff0, not 0xf0.
	block := stackOpBlock(evm.SHL, evm.GasFastestStep, uint256.NewInt(4), uint256.NewInt(0xff), uint256.NewInt(0xf0))
	asg, err := circuit.AssignBlock(block)
	if err == nil {
		err = circuit.Verify(block, asg)
	}
	assert.Error(err)
}

func TestShlShrProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60

	circuit := execution.NewCircuit()

	properties := gopter.NewProperties(parameters)
	properties.Property("shl and shr agree with the reference shifts", prop.ForAll(
		func(a0, a1, a2, a3, rawShift uint64, left bool) bool {
			value := &uint256.Int{a0, a1, a2, a3}
			// Bias towards in-range shifts while still hitting >= 256.
			shift := uint256.NewInt(rawShift % 320)

			op := evm.SHR
			var want uint256.Int
			if left {
				op = evm.SHL
				want.Lsh(value, uint(shift.Uint64()))
			} else {
				want.Rsh(value, uint(shift.Uint64()))
			}
			if !shift.LtUint64(256) {
				want.Clear()
			}

			block := stackOpBlock(op, evm.GasFastestStep, shift, value, &want)
			asg, err := circuit.AssignBlock(block)
			if err != nil {
				return false
			}
			return circuit.Verify(block, asg) == nil
		},
		gen.UInt64(), gen.UInt64(), gen.UInt64(), gen.UInt64(),
		gen.UInt64(), gen.Bool(),
	))
	properties.TestingRun(t)
}
