package pipeline

import (
	"math/rand"
	"testing"

	"wasmjit/internal/config"
)

func TestCompileIdentityAdditionProducesValidWasm(t *testing.T) {
	p := New(config.Default(), rand.New(rand.NewSource(7)), nil, nil)
	result := p.Compile("function add(a, b) { return a + b; }", "test.wj")
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected compile errors: %v", result.Errors)
	}
	if len(result.Functions) != 1 {
		t.Fatalf("expected one function result, got %d", len(result.Functions))
	}
	fr := result.Functions[0]
	if len(fr.Errors) > 0 {
		t.Fatalf("unexpected function errors: %v", fr.Errors)
	}
	if fr.Name != "add" {
		t.Fatalf("expected function name add, got %q", fr.Name)
	}
	magic := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if len(fr.WasmBinary) < 8 {
		t.Fatalf("expected at least a header, got %d bytes", len(fr.WasmBinary))
	}
	for i, b := range magic {
		if fr.WasmBinary[i] != b {
			t.Fatalf("byte %d: got %#x want %#x", i, fr.WasmBinary[i], b)
		}
	}
}

func TestCompileRecordsCallGraphEdgeAcrossFunctions(t *testing.T) {
	p := New(config.Default(), rand.New(rand.NewSource(7)), nil, nil)
	src := `
		function helper(x) { return x * 2; }
		function outer(x) { return helper(x) + 1; }
	`
	result := p.Compile(src, "test.wj")
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected compile errors: %v", result.Errors)
	}
	if p.Store().Graph().IsRecursive("outer") {
		t.Fatalf("outer should not be recursive")
	}
	callees := p.Store().Graph().Callees("outer")
	if len(callees) != 1 || callees[0] != "helper" {
		t.Fatalf("expected outer to statically call helper, got %v", callees)
	}
}

func TestCompileDetectsDirectRecursion(t *testing.T) {
	p := New(config.Default(), rand.New(rand.NewSource(7)), nil, nil)
	src := "function fact(n) { if (n < 2) { return 1; } return n * fact(n - 1); }"
	result := p.Compile(src, "test.wj")
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected compile errors: %v", result.Errors)
	}
	if !p.Store().Graph().IsRecursive("fact") {
		t.Fatalf("expected fact to be classified as recursive")
	}
	fr := result.Functions[0]
	for _, k := range fr.Plan.Selected {
		if k.String() == "Inlining" {
			t.Fatalf("inlining should be disabled for a recursive function")
		}
	}
	if len(fr.Errors) > 0 {
		t.Fatalf("unexpected function errors compiling a branchy recursive function: %v", fr.Errors)
	}
	if len(fr.WasmBinary) == 0 {
		t.Fatalf("expected a non-empty wasm binary for fact, got none (body: %q)", fr.WatText)
	}
}

func TestCompilePropagatesParseErrorsWithoutPanicking(t *testing.T) {
	p := New(config.Default(), rand.New(rand.NewSource(7)), nil, nil)
	result := p.Compile("function broken(a) { return a +; }", "test.wj")
	if len(result.Errors) == 0 {
		t.Fatalf("expected a parse error for malformed source")
	}
	if len(result.Functions) != 0 {
		t.Fatalf("expected no function results when parsing fails")
	}
}
