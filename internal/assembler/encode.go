package assembler

import (
	"fmt"

	"wasmjit/internal/codegen"
)

// encodeBody encodes one function's locals declaration plus opcode
// stream plus the trailing `end`, per spec.md §4.7 item 6. funcIndex
// resolves every call target name to its binary function index, fixed
// by the functions' order in the module before any body is encoded.
func encodeBody(fn *codegen.Func, funcIndex map[string]uint32) ([]byte, error) {
	var body []byte
	body = append(body, encodeLocalsDecl(fn.Locals)...)

	enc := &encoder{localIndex: localIndexMap(fn), funcIndex: funcIndex}
	instrBytes, err := enc.instrs(fn.Body, nil)
	if err != nil {
		return nil, err
	}
	body = append(body, instrBytes...)
	body = append(body, 0x0b) // end
	return body, nil
}

// encodeLocalsDecl groups consecutive locals of the same type into
// (count, type) runs, the binary format's compact locals encoding.
func encodeLocalsDecl(locals []codegen.Local) []byte {
	type run struct {
		count uint64
		typ   byte
	}
	var runs []run
	for _, l := range locals {
		b, ok := valType(l.Type)
		if !ok {
			continue
		}
		if len(runs) > 0 && runs[len(runs)-1].typ == b {
			runs[len(runs)-1].count++
		} else {
			runs = append(runs, run{count: 1, typ: b})
		}
	}
	var out []byte
	out = appendUleb128(out, uint64(len(runs)))
	for _, r := range runs {
		out = appendUleb128(out, r.count)
		out = append(out, r.typ)
	}
	return out
}

// localIndexMap assigns each local (params first, then body locals) its
// binary local index, per the function index-namespace rule of §4.7.
func localIndexMap(fn *codegen.Func) map[string]uint32 {
	idx := make(map[string]uint32, len(fn.Params)+len(fn.Locals))
	var n uint32
	for _, p := range fn.Params {
		idx[p.Name] = n
		n++
	}
	for _, l := range fn.Locals {
		idx[l.Name] = n
		n++
	}
	return idx
}

type encoder struct {
	localIndex map[string]uint32
	funcIndex  map[string]uint32
}

// instrs encodes a flat instruction slice. labelStack holds the labels of
// enclosing block/loop constructs, innermost last, used to resolve
// br/br_if targets to relative depth.
func (e *encoder) instrs(body []codegen.Instr, labelStack []string) ([]byte, error) {
	var out []byte
	for _, in := range body {
		b, err := e.instr(in, labelStack)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (e *encoder) instr(in codegen.Instr, labelStack []string) ([]byte, error) {
	if in.Block != nil {
		return e.block(in, labelStack)
	}
	switch in.Op {
	case "i32.const":
		out := []byte{opcode["i32.const"]}
		return appendSleb128(out, in.IntVal), nil
	case "f64.const":
		out := []byte{opcode["f64.const"]}
		return appendF64LE(out, in.FloatVal), nil
	case "local.get", "local.set", "local.tee":
		idx, ok := e.localIndex[in.Name]
		if !ok {
			return nil, fmt.Errorf("unknown local %q", in.Name)
		}
		out := []byte{opcode[in.Op]}
		return appendUleb128(out, uint64(idx)), nil
	case "call":
		idx, ok := e.funcIndex[in.Name]
		if !ok {
			return nil, fmt.Errorf("call target %q is not a defined function", in.Name)
		}
		out := []byte{opcode["call"]}
		return appendUleb128(out, uint64(idx)), nil
	case "br", "br_if":
		depth, ok := depthOf(labelStack, in.Name)
		if !ok {
			return nil, fmt.Errorf("unresolved branch target %q", in.Name)
		}
		out := []byte{opcode[in.Op]}
		return appendUleb128(out, uint64(depth)), nil
	case "ref.null":
		return []byte{0xd0, 0x6f}, nil
	default:
		b, ok := opcode[in.Op]
		if !ok {
			return nil, fmt.Errorf("unknown mnemonic %q", in.Op)
		}
		return []byte{b}, nil
	}
}

func (e *encoder) block(in codegen.Instr, labelStack []string) ([]byte, error) {
	b := in.Block
	var out []byte
	switch b.Kind {
	case codegen.KindBlock:
		out = append(out, opcode["block"], 0x40)
		inner, err := e.instrs(b.Then, append(labelStack, b.Label))
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
		out = append(out, 0x0b)
	case codegen.KindLoop:
		out = append(out, opcode["loop"], 0x40)
		inner, err := e.instrs(b.Then, append(labelStack, b.Label))
		if err != nil {
			return nil, err
		}
		out = append(out, inner...)
		out = append(out, 0x0b)
	case codegen.KindIf:
		out = append(out, opcode["if"], 0x40)
		then, err := e.instrs(b.Then, append(labelStack, ""))
		if err != nil {
			return nil, err
		}
		out = append(out, then...)
		if len(b.Else) > 0 {
			out = append(out, 0x05)
			els, err := e.instrs(b.Else, append(labelStack, ""))
			if err != nil {
				return nil, err
			}
			out = append(out, els...)
		}
		out = append(out, 0x0b)
	}
	return out, nil
}

func depthOf(labelStack []string, name string) (int, bool) {
	for i := len(labelStack) - 1; i >= 0; i-- {
		if labelStack[i] == name {
			return len(labelStack) - 1 - i, true
		}
	}
	return 0, false
}
