package assembler

import (
	"wasmjit/internal/codegen"
	"wasmjit/internal/errors"
	"wasmjit/internal/types"
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d}
var version = []byte{0x01, 0x00, 0x00, 0x00}

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secExport   = 7
	secCode     = 10
)

// funcSig is the deduplication key for the type section: a function's
// parameter types followed by its result type.
type funcSig struct {
	params []byte
	result byte
	hasRes bool
}

func (s funcSig) key() string {
	b := make([]byte, 0, len(s.params)+2)
	b = append(b, s.params...)
	b = append(b, 0xff)
	if s.hasRes {
		b = append(b, s.result)
	}
	return string(b)
}

// Assemble encodes m into a WebAssembly binary module, per spec.md §4.7's
// strict section order (only non-empty sections are emitted) and runs
// the four post-assembly validation checks before returning. A function
// whose body fails to encode (unknown mnemonic) is reported and omitted
// from the output module rather than aborting the whole assembly, per
// the error-propagation policy.
func Assemble(m *codegen.Module) ([]byte, []*errors.CompilerError) {
	var errs []*errors.CompilerError

	// Function indices are fixed by declaration order before any body is
	// encoded, since call sites reference other functions by index.
	funcIndex := make(map[string]uint32, len(m.Functions))
	for i, fn := range m.Functions {
		funcIndex[fn.Name] = uint32(i)
	}

	sigIndex := map[string]int{}
	var sigs []funcSig
	funcTypeIdx := make([]int, 0, len(m.Functions))

	encoded := make([][]byte, 0, len(m.Functions))
	kept := make([]*codegen.Func, 0, len(m.Functions))

	for _, fn := range m.Functions {
		sig, ok := signatureOf(fn)
		if !ok {
			errs = append(errs, errors.NewAssemblyError(fn.Name, "unsupported value type in signature"))
			continue
		}
		k := sig.key()
		idx, exists := sigIndex[k]
		if !exists {
			idx = len(sigs)
			sigs = append(sigs, sig)
			sigIndex[k] = idx
		}

		body, err := encodeBody(fn, funcIndex)
		if err != nil {
			errs = append(errs, errors.NewAssemblyError(fn.Name, err.Error()))
			continue
		}
		funcTypeIdx = append(funcTypeIdx, idx)
		encoded = append(encoded, body)
		kept = append(kept, fn)
	}

	if vErrs := validate(kept); len(vErrs) > 0 {
		return nil, append(errs, vErrs...)
	}

	var out []byte
	out = append(out, magic...)
	out = append(out, version...)

	if len(sigs) > 0 {
		out = append(out, encodeTypeSection(sigs)...)
	}
	if len(funcTypeIdx) > 0 {
		out = append(out, encodeFunctionSection(funcTypeIdx)...)
	}
	if exports := encodeExportSection(kept, funcIndex); exports != nil {
		out = append(out, exports...)
	}
	if len(encoded) > 0 {
		out = append(out, encodeCodeSection(encoded)...)
	}

	return out, errs
}

func signatureOf(fn *codegen.Func) (funcSig, bool) {
	var sig funcSig
	for _, p := range fn.Params {
		b, ok := valType(p.Type)
		if !ok {
			return sig, false
		}
		sig.params = append(sig.params, b)
	}
	if fn.Result != types.NoResult {
		b, ok := valType(fn.Result)
		if !ok {
			return sig, false
		}
		sig.result = b
		sig.hasRes = true
	}
	return sig, true
}

func encodeSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = appendUleb128(out, uint64(len(payload)))
	return append(out, payload...)
}

func encodeTypeSection(sigs []funcSig) []byte {
	var payload []byte
	payload = appendUleb128(payload, uint64(len(sigs)))
	for _, s := range sigs {
		payload = append(payload, 0x60) // functype tag
		payload = appendUleb128(payload, uint64(len(s.params)))
		payload = append(payload, s.params...)
		if s.hasRes {
			payload = appendUleb128(payload, 1)
			payload = append(payload, s.result)
		} else {
			payload = appendUleb128(payload, 0)
		}
	}
	return encodeSection(secType, payload)
}

func encodeFunctionSection(idx []int) []byte {
	var payload []byte
	payload = appendUleb128(payload, uint64(len(idx)))
	for _, i := range idx {
		payload = appendUleb128(payload, uint64(i))
	}
	return encodeSection(secFunction, payload)
}

// encodeExportSection emits the export for each exported function that
// survived encoding, using funcIndex (fixed before any body was encoded)
// so an export's index always agrees with what call sites resolved to.
func encodeExportSection(fns []*codegen.Func, funcIndex map[string]uint32) []byte {
	var names []string
	for _, f := range fns {
		if f.Exported {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	var payload []byte
	payload = appendUleb128(payload, uint64(len(names)))
	for _, name := range names {
		payload = appendUleb128(payload, uint64(len(name)))
		payload = append(payload, []byte(name)...)
		payload = append(payload, 0x00) // export kind: function
		payload = appendUleb128(payload, uint64(funcIndex[name]))
	}
	return encodeSection(secExport, payload)
}

func encodeCodeSection(bodies [][]byte) []byte {
	var payload []byte
	payload = appendUleb128(payload, uint64(len(bodies)))
	for _, b := range bodies {
		payload = appendUleb128(payload, uint64(len(b)))
		payload = append(payload, b...)
	}
	return encodeSection(secCode, payload)
}
