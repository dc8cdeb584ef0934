package types

import (
	"wasmjit/internal/ast"
	"wasmjit/internal/errors"
)

// Env is a lexically scoped environment mapping identifier names to their
// inferred type, chained to an enclosing scope. This follows the
// teacher's walker idiom of threading an explicit environment through a
// single downward AST pass (see internal/parser and internal/compiler in
// the teacher, which both carry scope state as they walk), generalized
// here from value binding to type binding.
type Env struct {
	parent *Env
	vars   map[string]*Type
}

// NewEnv creates a root (no-parent) environment.
func NewEnv() *Env {
	return &Env{vars: make(map[string]*Type)}
}

func (e *Env) child() *Env {
	return &Env{parent: e, vars: make(map[string]*Type)}
}

func (e *Env) define(name string, t *Type) {
	e.vars[name] = t
}

func (e *Env) lookup(name string) (*Type, bool) {
	for s := e; s != nil; s = s.parent {
		if t, ok := s.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Analyzer walks an ast.Arena in program order and attaches InferredType
// to every expression node, per spec §4.3. It never halts on error: type
// errors are collected and the offending node defaults to Unknown.
type Analyzer struct {
	arena *ast.Arena
	file  string
	errs  []*errors.CompilerError
}

func NewAnalyzer(arena *ast.Arena, file string) *Analyzer {
	return &Analyzer{arena: arena, file: file}
}

// Analyze type-checks the Program rooted at root and returns accumulated
// type errors. Every expression node in the arena ends up with a non-nil
// InferredType, satisfying the testable property that no expression node
// has a null inferredType after analysis.
func (a *Analyzer) Analyze(root ast.NodeID) []*errors.CompilerError {
	env := NewEnv()
	prog := a.arena.Get(root)
	for _, stmt := range prog.Body {
		a.hoistFunction(stmt, env)
	}
	for _, stmt := range prog.Body {
		a.statement(stmt, env)
	}
	return a.errs
}

// hoistFunction registers a top-level function's signature before the
// body of any function is walked, so forward/mutually-recursive calls
// resolve a Function type instead of falling back to Unknown.
func (a *Analyzer) hoistFunction(id ast.NodeID, env *Env) {
	n := a.arena.Get(id)
	if n.Kind != ast.FunctionDeclaration {
		return
	}
	params := make([]*Type, len(n.Params))
	for i := range params {
		params[i] = TUnknown
	}
	env.define(n.Name, &Type{Kind: Function, Params: params, Return: TUnknown})
}

func (a *Analyzer) statement(id ast.NodeID, env *Env) {
	if id == ast.Invalid {
		return
	}
	n := a.arena.Get(id)
	switch n.Kind {
	case ast.FunctionDeclaration:
		a.function(n, env)
	case ast.VariableDeclaration:
		t := TUnknown
		if n.Init != ast.Invalid {
			t = a.expr(n.Init, env)
		}
		env.define(n.IdentName, t)
	case ast.BlockStatement:
		inner := env.child()
		for _, s := range n.Body {
			a.statement(s, inner)
		}
	case ast.ReturnStatement:
		if n.Argument != ast.Invalid {
			a.expr(n.Argument, env)
		}
	case ast.IfStatement:
		a.expr(n.Test, env)
		a.statement(n.Consequent, env)
		a.statement(n.Alternate, env)
	case ast.WhileStatement:
		a.expr(n.Test, env)
		a.statement(n.Loop, env)
	case ast.ForStatement:
		inner := env.child()
		a.statement(n.ForInit, inner)
		if n.ForTest != ast.Invalid {
			a.expr(n.ForTest, inner)
		}
		if n.ForUpdate != ast.Invalid {
			a.expr(n.ForUpdate, inner)
		}
		a.statement(n.ForBody, inner)
	case ast.ExpressionStatement:
		a.expr(n.Expr, env)
	}
}

func (a *Analyzer) function(n *ast.Node, env *Env) {
	inner := env.child()
	paramTypes := make([]*Type, len(n.Params))
	for i, p := range n.Params {
		// No call history at declaration time: parameters default to
		// Integer absent other constraints, per scenario 1 of spec §8.
		paramTypes[i] = TInteger
		inner.define(p, TInteger)
	}
	n.ParamTypes = paramTypes
	a.statement(n.FuncBody, inner)
}

// expr infers and attaches the type of the expression rooted at id,
// returning that type for use by the caller (e.g. a VariableDeclaration
// initializer or a binary operand).
func (a *Analyzer) expr(id ast.NodeID, env *Env) *Type {
	if id == ast.Invalid {
		return TUnknown
	}
	n := a.arena.Get(id)
	var t *Type
	switch n.Kind {
	case ast.NumberLiteral:
		if n.HasFraction {
			t = TNumber
		} else {
			t = TInteger
		}
	case ast.StringLiteral:
		t = TString
	case ast.BooleanLiteral:
		t = TBoolean
	case ast.NullLiteral:
		t = TUnknown
	case ast.Identifier:
		if found, ok := env.lookup(n.IdentName); ok {
			t = found
		} else {
			a.errs = append(a.errs, errors.NewTypeError("unknown identifier '"+n.IdentName+"'",
				errors.SourceLocation{File: a.file, Line: n.Line, Column: n.Col}))
			t = TUnknown
		}
	case ast.BinaryExpression:
		t = a.binary(n, env)
	case ast.UnaryExpression:
		operand := a.expr(n.Operand, env)
		if n.Operator == "!" {
			t = TBoolean
		} else {
			t = operand
		}
	case ast.AssignmentExpression:
		rhs := a.expr(n.Right, env)
		if left := a.arena.Get(n.Left); left.Kind == ast.Identifier {
			env.define(left.IdentName, rhs)
		}
		t = rhs
	case ast.CallExpression:
		t = a.call(n, env)
	case ast.MemberExpression:
		a.expr(n.Object, env)
		if n.Computed {
			a.expr(n.Property, env)
		}
		t = TUnknown
	case ast.ArrowFunctionExpression:
		a.function(n, env)
		t = &Type{Kind: Function, Params: n.ParamTypes, Return: TUnknown}
	default:
		t = TUnknown
	}
	n.InferredType = t
	return t
}

func (a *Analyzer) binary(n *ast.Node, env *Env) *Type {
	left := a.expr(n.Left, env)
	right := a.expr(n.Right, env)
	switch n.Operator {
	case "==", "===", "!=", "!==", "<", ">", "<=", ">=":
		return TBoolean
	case "&&", "||":
		return TBoolean
	case "/":
		// Division always yields Number to preserve JS semantics, even
		// for two Integer operands, per spec §4.3.
		if IsNumeric(left) && IsNumeric(right) {
			return TNumber
		}
		return TUnknown
	case "+", "-", "*", "%":
		if IsNumeric(left) && IsNumeric(right) {
			return Widen(left, right)
		}
		if n.Operator == "+" && (left.Kind == String || right.Kind == String) {
			return TString
		}
		return TUnknown
	default:
		return TUnknown
	}
}

func (a *Analyzer) call(n *ast.Node, env *Env) *Type {
	for _, arg := range n.Args {
		a.expr(arg, env)
	}
	callee := a.arena.Get(n.Callee)
	if callee.Kind != ast.Identifier {
		a.expr(n.Callee, env)
		return TUnknown
	}
	fnType, ok := env.lookup(callee.IdentName)
	if !ok {
		fnType = TUnknown
	}
	callee.InferredType = fnType
	if fnType.Kind != Function {
		return TUnknown
	}
	if fnType.Return == nil {
		return TUnknown
	}
	return fnType.Return
}
