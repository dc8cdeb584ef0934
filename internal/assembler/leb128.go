// Package assembler turns a codegen.Module into a binary WebAssembly
// module per spec.md §4.7. Section layout and ordering are grounded on
// the wazero reference module struct surveyed in other_examples
// (`..._internal-wasm-module.go`'s ordered TypeSection/ImportSection/
// FunctionSection/.../CodeSection fields); LEB128 is hand-rolled since
// wazero's own encoder lives in its unexported internal/leb128 package
// and cannot be imported from outside the module.
package assembler

import "math"

// appendUleb128 appends the unsigned LEB128 encoding of v to buf.
func appendUleb128(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// appendSleb128 appends the signed LEB128 (two's-complement sign
// extension) encoding of v to buf.
func appendSleb128(buf []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// appendF64LE appends the IEEE-754 little-endian 8-byte encoding of v.
func appendF64LE(buf []byte, v float64) []byte {
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(bits>>(8*uint(i))))
	}
	return buf
}
