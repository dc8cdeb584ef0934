package codegen

import (
	"strings"
	"testing"

	"wasmjit/internal/ast"
	"wasmjit/internal/lexer"
	"wasmjit/internal/parser"
	"wasmjit/internal/types"
)

func lowerSource(t *testing.T, src string) (*Func, *ast.Arena) {
	t.Helper()
	toks, lexErrs := lexer.NewScanner(src, "t").Scan()
	if len(lexErrs) != 0 {
		t.Fatalf("unexpected lex errors: %v", lexErrs)
	}
	root, arena, parseErrs := parser.New(toks, "t").Parse()
	if len(parseErrs) != 0 {
		t.Fatalf("unexpected parse errors: %v", parseErrs)
	}
	if errs := types.NewAnalyzer(arena, "t").Analyze(root); len(errs) != 0 {
		t.Fatalf("unexpected type errors: %v", errs)
	}
	fnID := arena.Get(root).Body[0]
	fn, codeErrs := NewLowerer(arena, "t").Lower(fnID, true)
	if len(codeErrs) != 0 {
		t.Fatalf("unexpected codegen errors: %v", codeErrs)
	}
	return fn, arena
}

func TestLowerIdentityAddition(t *testing.T) {
	fn, _ := lowerSource(t, "function add(a, b) { return a + b; }")
	if len(fn.Params) != 2 || fn.Result != types.I32 {
		t.Fatalf("unexpected signature: %+v", fn)
	}
	want := []Instr{localGet("a"), localGet("b"), op("i32.add"), op("return")}
	if len(fn.Body) != len(want) {
		t.Fatalf("expected %d instructions, got %#v", len(want), fn.Body)
	}
	for i := range want {
		if fn.Body[i].Op != want[i].Op || fn.Body[i].Name != want[i].Name {
			t.Fatalf("instruction %d mismatch: got %#v want %#v", i, fn.Body[i], want[i])
		}
	}
}

func TestLowerCountedLoopSum(t *testing.T) {
	fn, _ := lowerSource(t, `function sumTo(n) {
		var total = 0;
		var i = 0;
		while (i < n) {
			total = total + i;
			i = i + 1;
		}
		return total;
	}`)
	rendered := fn.Render()
	if !strings.Contains(rendered, "(loop $lp1") || !strings.Contains(rendered, "br_if $brk1") {
		t.Fatalf("expected a structured block/loop shape, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "br $lp1") {
		t.Fatalf("expected the loop to branch back to itself, got:\n%s", rendered)
	}
}

func TestLowerIfProducesStructuredForm(t *testing.T) {
	fn, _ := lowerSource(t, `function clamp(x) {
		if (x < 0) {
			return 0;
		} else {
			return x;
		}
	}`)
	rendered := fn.Render()
	if !strings.Contains(rendered, "(if") || !strings.Contains(rendered, "(then") || !strings.Contains(rendered, "(else") {
		t.Fatalf("expected structured if/then/else, got:\n%s", rendered)
	}
}

func TestLowerDropsUnusedExpressionStatementValue(t *testing.T) {
	fn, _ := lowerSource(t, `function sideEffect(a) {
		a = a + 1;
		return a;
	}`)
	found := false
	for _, in := range fn.Body {
		if in.Op == "drop" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the assignment expression statement to be dropped, got %#v", fn.Body)
	}
}

func TestStackEffectOfIdentityAdditionIsOne(t *testing.T) {
	fn, _ := lowerSource(t, "function add(a, b) { return a + b; }")
	body := fn.Body[:len(fn.Body)-1] // exclude the trailing `return`
	if got := StackEffect(body, nil); got != 1 {
		t.Fatalf("expected a single result value on the stack, got %d", got)
	}
}
