package parser

import (
	"testing"

	"wasmjit/internal/ast"
	"wasmjit/internal/lexer"
)

func parseSource(t *testing.T, src string) (ast.NodeID, *ast.Arena) {
	t.Helper()
	toks, lexErrs := lexer.NewScanner(src, "test").Scan()
	if len(lexErrs) > 0 {
		t.Fatalf("unexpected lex errors: %v", lexErrs)
	}
	root, arena, errs := New(toks, "test").Parse()
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return root, arena
}

func TestIdentityAddition(t *testing.T) {
	root, arena := parseSource(t, "function add(a, b) { return a + b; }")
	prog := arena.Get(root)
	if len(prog.Body) != 1 {
		t.Fatalf("expected 1 top-level declaration, got %d", len(prog.Body))
	}
	fn := arena.Get(prog.Body[0])
	if fn.Kind != ast.FunctionDeclaration || fn.Name != "add" || len(fn.Params) != 2 {
		t.Fatalf("unexpected function node: %+v", fn)
	}
	body := arena.Get(fn.FuncBody)
	if body.Kind != ast.BlockStatement || len(body.Body) != 1 {
		t.Fatalf("expected single-statement body, got %+v", body)
	}
	ret := arena.Get(body.Body[0])
	if ret.Kind != ast.ReturnStatement {
		t.Fatalf("expected ReturnStatement, got %s", ret.Kind)
	}
	bin := arena.Get(ret.Argument)
	if bin.Kind != ast.BinaryExpression || bin.Operator != "+" {
		t.Fatalf("expected BinaryExpression(+), got %+v", bin)
	}
}

func TestCountedLoopSum(t *testing.T) {
	src := "function sum(n) { var s = 0; for (var i = 0; i < n; i = i + 1) { s = s + i; } return s; }"
	root, arena := parseSource(t, src)
	fn := arena.Get(arena.Get(root).Body[0])
	body := arena.Get(fn.FuncBody)
	if len(body.Body) != 3 {
		t.Fatalf("expected var/for/return, got %d statements", len(body.Body))
	}
	forNode := arena.Get(body.Body[1])
	if forNode.Kind != ast.ForStatement {
		t.Fatalf("expected ForStatement, got %s", forNode.Kind)
	}
	if forNode.ForInit == ast.Invalid || forNode.ForTest == ast.Invalid || forNode.ForUpdate == ast.Invalid {
		t.Fatalf("expected all three for-clauses present")
	}
}

func TestOperatorPrecedence(t *testing.T) {
	root, arena := parseSource(t, "function f() { return 1 + 2 * 3; }")
	fn := arena.Get(arena.Get(root).Body[0])
	body := arena.Get(fn.FuncBody)
	ret := arena.Get(body.Body[0])
	top := arena.Get(ret.Argument)
	if top.Operator != "+" {
		t.Fatalf("expected '+' at the root (lowest precedence binds last), got %q", top.Operator)
	}
	rhs := arena.Get(top.Right)
	if rhs.Operator != "*" {
		t.Fatalf("expected '*' nested on the right, got %q", rhs.Operator)
	}
}

func TestArrowFunctionShorthand(t *testing.T) {
	root, arena := parseSource(t, "var f = x => x + 1;")
	decl := arena.Get(arena.Get(root).Body[0])
	if decl.Kind != ast.VariableDeclaration {
		t.Fatalf("expected VariableDeclaration, got %s", decl.Kind)
	}
	arrow := arena.Get(decl.Init)
	if arrow.Kind != ast.ArrowFunctionExpression || !arrow.IsExprArrow || len(arrow.Params) != 1 {
		t.Fatalf("unexpected arrow node: %+v", arrow)
	}
}

func TestEmptySourceProducesEmptyProgram(t *testing.T) {
	root, arena := parseSource(t, "")
	prog := arena.Get(root)
	if prog.Kind != ast.Program || len(prog.Body) != 0 {
		t.Fatalf("expected empty Program, got %+v", prog)
	}
}

func TestSynchronizationRecoversFromBadStatement(t *testing.T) {
	toks, _ := lexer.NewScanner("function f() { var = 1; } function g() { return 1; }", "test").Scan()
	root, arena, errs := New(toks, "test").Parse()
	if len(errs) == 0 {
		t.Fatalf("expected at least one parse error")
	}
	prog := arena.Get(root)
	found := false
	for _, id := range prog.Body {
		n := arena.Get(id)
		if n.Kind == ast.FunctionDeclaration && n.Name == "g" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected parser to recover and still find function g")
	}
}

func TestTailRecursionShape(t *testing.T) {
	src := "function fact(n, acc) { if (n <= 1) return acc; return fact(n - 1, n * acc); }"
	root, arena := parseSource(t, src)
	fn := arena.Get(arena.Get(root).Body[0])
	body := arena.Get(fn.FuncBody)
	if len(body.Body) != 2 {
		t.Fatalf("expected if-stmt and return-stmt, got %d", len(body.Body))
	}
	ret := arena.Get(body.Body[1])
	call := arena.Get(ret.Argument)
	if call.Kind != ast.CallExpression || len(call.Args) != 2 {
		t.Fatalf("expected recursive call with 2 args, got %+v", call)
	}
}
