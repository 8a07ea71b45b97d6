package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Precompiled contract addresses occupy [0x01, 0x09].
const (
	PrecompileEcrecover byte = 0x01
	PrecompileSha256    byte = 0x02
	PrecompileRipemd160 byte = 0x03
	PrecompileIdentity  byte = 0x04
	PrecompileModExp    byte = 0x05
	PrecompileBn256Add  byte = 0x06
	PrecompileBn256Mul  byte = 0x07
	PrecompileBn256Pair byte = 0x08
	PrecompileBlake2F   byte = 0x09

	precompileAddrBound byte = 0x0a
)

// IsPrecompiled reports whether addr is a precompiled contract address.
func IsPrecompiled(addr common.Address) bool {
	for _, b := range addr[:19] {
		if b != 0 {
			return false
		}
	}
	return addr[19] != 0 && addr[19] < precompileAddrBound
}

// IsPrecompiledWord reports whether the 256-bit stack word w denotes a
// precompiled contract address.
func IsPrecompiledWord(w *uint256.Int) bool {
	return !w.IsZero() && w.LtUint64(uint64(precompileAddrBound))
}

// PrecompileInputLen returns the fixed input length consumed by the
// precompile at address byte p, and whether such a fixed length exists.
// Precompiles without a fixed length consume the whole call data.
func PrecompileInputLen(p byte) (int, bool) {
	switch p {
	case PrecompileEcrecover:
		return 128, true
	case PrecompileBn256Add:
		return 128, true
	case PrecompileBn256Mul:
		return 96, true
	case PrecompileBlake2F:
		return 213, true
	}
	return 0, false
}
