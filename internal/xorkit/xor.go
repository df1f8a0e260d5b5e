package xorkit

import (
	"encoding/binary"

	"github.com/klauspost/cpuid/v2"
)

const wordSize = 8

// wideVectors reports whether the CPU carries vector registers of at least
// 128 bits, in which case the unrolled word loop below compiles down to
// vector loads/stores.
var wideVectors = cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.SSE2) || cpuid.CPU.Supports(cpuid.ASIMD)

// XorInto updates dst[i] ^= src[i] over min(len(dst), len(src)) bytes and
// returns the number of bytes processed. The bulk of the range is handled
// in 64-bit words, the tail byte by byte. No allocation.
//
// XOR is commutative and associative, so folding several sources into the
// same dst yields their combined XOR regardless of order.
func XorInto(dst, src []byte) int {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}

	i := 0
	if wideVectors {
		for ; i+4*wordSize <= n; i += 4 * wordSize {
			d, s := dst[i:i+4*wordSize], src[i:i+4*wordSize]
			binary.LittleEndian.PutUint64(d[0:], binary.LittleEndian.Uint64(d[0:])^binary.LittleEndian.Uint64(s[0:]))
			binary.LittleEndian.PutUint64(d[8:], binary.LittleEndian.Uint64(d[8:])^binary.LittleEndian.Uint64(s[8:]))
			binary.LittleEndian.PutUint64(d[16:], binary.LittleEndian.Uint64(d[16:])^binary.LittleEndian.Uint64(s[16:]))
			binary.LittleEndian.PutUint64(d[24:], binary.LittleEndian.Uint64(d[24:])^binary.LittleEndian.Uint64(s[24:]))
		}
	}
	for ; i+wordSize <= n; i += wordSize {
		binary.LittleEndian.PutUint64(dst[i:], binary.LittleEndian.Uint64(dst[i:])^binary.LittleEndian.Uint64(src[i:]))
	}
	for ; i < n; i++ {
		dst[i] ^= src[i]
	}

	return n
}

// Zero clears buf in place.
func Zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
