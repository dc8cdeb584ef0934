package assembler

import "wasmjit/internal/types"

// valType maps a types.WasmType to its binary value-type byte, per
// spec.md §4.7.
func valType(wt types.WasmType) (byte, bool) {
	switch wt {
	case types.I32:
		return 0x7f, true
	case types.F64:
		return 0x7c, true
	case types.ExternRef:
		return 0x6f, true
	case types.FuncRef:
		return 0x70, true
	default:
		return 0, false
	}
}

// opcode is the fixed textual-mnemonic -> byte table of spec.md §4.7,
// grounded on the mnemonic/byte pairing shown in the retrieved wazero
// WAT disassembler reference file. Instructions that carry an immediate
// (i32.const, local.get/set/tee, call, br, br_if) are handled specially
// by the encoder and are listed here only for completeness of the table.
var opcode = map[string]byte{
	"unreachable": 0x00,
	"nop":         0x01,
	"block":       0x02,
	"loop":        0x03,
	"if":          0x04,
	"else":        0x05,
	"end":         0x0b,
	"br":          0x0c,
	"br_if":       0x0d,
	"return":      0x0f,
	"call":        0x10,
	"drop":        0x1a,
	"local.get":   0x20,
	"local.set":   0x21,
	"local.tee":   0x22,
	"i32.const":   0x41,
	"f64.const":   0x44,
	"i32.eqz":     0x45,
	"i32.eq":      0x46,
	"i32.ne":      0x47,
	"i32.lt_s":    0x48,
	"i32.gt_s":    0x4a,
	"i32.le_s":    0x4c,
	"i32.ge_s":    0x4e,
	"f64.eq":      0x61,
	"f64.ne":      0x62,
	"f64.lt":      0x63,
	"f64.gt":      0x64,
	"f64.le":      0x65,
	"f64.ge":      0x66,
	"i32.add":     0x6a,
	"i32.sub":     0x6b,
	"i32.mul":     0x6c,
	"i32.div_s":   0x6d,
	"i32.rem_s":   0x6f,
	"i32.and":     0x71,
	"i32.or":      0x72,
	"i32.shl":     0x74,
	"i32.shr_s":   0x75,
	"i32.shr_u":   0x76,
	"f64.add":     0xa0,
	"f64.sub":     0xa1,
	"f64.mul":     0xa2,
	"f64.div":     0xa3,
}
