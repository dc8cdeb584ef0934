package assembler

import (
	"wasmjit/internal/codegen"
	"wasmjit/internal/errors"
	"wasmjit/internal/types"
)

// validate runs the four post-assembly checks of spec.md §4.7 against
// the set of functions that survived encoding. Validation failure on the
// whole module is fatal, per the error-propagation policy; a non-empty
// return aborts Assemble before any bytes are produced.
func validate(fns []*codegen.Func) []*errors.CompilerError {
	var errs []*errors.CompilerError
	names := make(map[string]bool, len(fns))
	calls := make(map[string]codegen.CallSignature, len(fns))
	for _, f := range fns {
		names[f.Name] = true
		results := 0
		if f.Result != types.NoResult {
			results = 1
		}
		calls[f.Name] = codegen.CallSignature{Params: len(f.Params), Results: results}
	}

	for _, f := range fns {
		// (a) declared result arity matches the net stack effect of the body.
		want := 0
		if f.Result != types.NoResult {
			want = 1
		}
		if !codegen.ReturnArityOK(f.Body, want, calls) {
			errs = append(errs, errors.NewValidationError(
				"declared result arity does not match net stack effect").WithFunction(f.Name))
		}

		localCount := len(f.Params) + len(f.Locals)
		validNames := make(map[string]bool, localCount)
		for _, p := range f.Params {
			validNames[p.Name] = true
		}
		for _, l := range f.Locals {
			validNames[l.Name] = true
		}

		walkValidate(f.Body, validNames, names, f.Name, &errs)
	}

	// (d) every export references a defined item.
	for _, f := range fns {
		if f.Exported && !names[f.Name] {
			errs = append(errs, errors.NewValidationError("export references an undefined function").WithFunction(f.Name))
		}
	}
	return errs
}

func walkValidate(body []codegen.Instr, validLocals map[string]bool, funcNames map[string]bool, fnName string, errs *[]*errors.CompilerError) {
	for _, in := range body {
		if in.Block != nil {
			walkValidate(in.Block.Then, validLocals, funcNames, fnName, errs)
			if in.Block.Else != nil {
				walkValidate(in.Block.Else, validLocals, funcNames, fnName, errs)
			}
			continue
		}
		switch in.Op {
		case "local.get", "local.set", "local.tee":
			// (b) every local.* index (here, name) is within the function's
			// declared local set.
			if !validLocals[in.Name] {
				*errs = append(*errs, errors.NewValidationError(
					"local reference out of bounds: "+in.Name).WithFunction(fnName))
			}
		case "call":
			// (c) every call target index is within the total function count.
			if !funcNames[in.Name] {
				*errs = append(*errs, errors.NewValidationError(
					"call target is not a defined function: "+in.Name).WithFunction(fnName))
			}
		}
	}
}
