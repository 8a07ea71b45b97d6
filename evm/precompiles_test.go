package evm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestIsPrecompiled(t *testing.T) {
	for b := byte(0x01); b <= 0x09; b++ {
		assert.True(t, IsPrecompiled(common.Address{19: b}), "address %#x", b)
	}
	assert.False(t, IsPrecompiled(common.Address{}))
	assert.False(t, IsPrecompiled(common.Address{19: 0x0a}))
	assert.False(t, IsPrecompiled(common.Address{0: 1, 19: 0x04}))
}

func TestIsPrecompiledWord(t *testing.T) {
	assert.True(t, IsPrecompiledWord(uint256.NewInt(4)))
	assert.False(t, IsPrecompiledWord(uint256.NewInt(0)))
	assert.False(t, IsPrecompiledWord(uint256.NewInt(0x0a)))
	assert.False(t, IsPrecompiledWord(new(uint256.Int).Lsh(uint256.NewInt(1), 160)))
}

func TestPrecompileInputLen(t *testing.T) {
	fixed := map[byte]int{
		PrecompileEcrecover: 128,
		PrecompileBn256Add:  128,
		PrecompileBn256Mul:  96,
		PrecompileBlake2F:   213,
	}
	for b := byte(0x01); b <= 0x09; b++ {
		n, ok := PrecompileInputLen(b)
		if want, isFixed := fixed[b]; isFixed {
			assert.True(t, ok, "address %#x", b)
			assert.Equal(t, want, n, "address %#x", b)
		} else {
			assert.False(t, ok, "address %#x", b)
		}
	}
}
