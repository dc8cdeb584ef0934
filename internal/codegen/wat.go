// Package codegen lowers a typed AST function to WebAssembly Text Format
// and applies the optimization-transform pipeline of spec §4.6. The
// postfix-traversal lowering strategy and jump-patch handling for
// if/while follow the teacher's internal/compiler/compiler.go
// (VisitBinaryExpr/VisitIfExpr's jumpIfFalsePos/elseStart byte patching),
// retargeted from the teacher's flat bytecode.Chunk stack machine to
// WASM's structured block/loop/if control flow and from untyped opcodes
// to type-directed ones (spec §4.6's Integer->i32, Number->f64 mapping).
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"wasmjit/internal/types"
)

// Instr is one WAT instruction. Simple instructions (local.get, i32.add,
// return, drop, ...) use Name/IntVal/FloatVal as needed; Block is non-nil
// only for the structured block/loop/if forms.
type Instr struct {
	Op       string
	Name     string // identifier operand, e.g. local name or call target
	IntVal   int64
	FloatVal float64
	IsFloat  bool
	Block    *BlockBody
}

// BlockKind distinguishes the three WASM structured control constructs.
type BlockKind int

const (
	KindBlock BlockKind = iota
	KindLoop
	KindIf
)

// BlockBody holds the nested instruction sequence(s) of a structured
// control-flow instruction.
type BlockBody struct {
	Kind  BlockKind
	Label string
	Then  []Instr
	Else  []Instr // only meaningful for KindIf
}

func constI32(v int64) Instr  { return Instr{Op: "i32.const", IntVal: v} }
func constF64(v float64) Instr { return Instr{Op: "f64.const", FloatVal: v, IsFloat: true} }
func localGet(name string) Instr { return Instr{Op: "local.get", Name: name} }
func localSet(name string) Instr { return Instr{Op: "local.set", Name: name} }
func localTee(name string) Instr { return Instr{Op: "local.tee", Name: name} }
func op(name string) Instr       { return Instr{Op: name} }
func callInstr(name string) Instr { return Instr{Op: "call", Name: name} }

// Local is one declared local variable, parameter or body-scoped.
type Local struct {
	Name string
	Type types.WasmType
}

// Func is a single lowered function ready for optimization and assembly.
type Func struct {
	Name    string
	Params  []Local
	Result  types.WasmType
	Locals  []Local // body-scoped locals only (params are separate)
	Body    []Instr
	Exported bool
}

// Module is the textual counterpart of the assembler's WatModule.
type Module struct {
	Functions []*Func
	Exports   []string
}

// Render produces the textual WAT for this function alone, wrapping it in
// a throwaway single-function module for reuse of renderFunc.
func (f *Func) Render() string {
	m := &Module{Functions: []*Func{f}}
	return m.Render()
}

// Render produces the textual WAT for the whole module, purely for
// inspection (spec §6: "Textual WAT is emitted alongside for inspection").
func (m *Module) Render() string {
	var sb strings.Builder
	sb.WriteString("(module\n")
	for _, f := range m.Functions {
		renderFunc(&sb, f)
	}
	sb.WriteString(")\n")
	return sb.String()
}

func renderFunc(sb *strings.Builder, f *Func) {
	sb.WriteString("  (func $")
	sb.WriteString(f.Name)
	for _, p := range f.Params {
		fmt.Fprintf(sb, " (param $%s %s)", p.Name, p.Type)
	}
	if f.Result != types.NoResult {
		fmt.Fprintf(sb, " (result %s)", f.Result)
	}
	if f.Exported {
		fmt.Fprintf(sb, " (export \"%s\")", f.Name)
	}
	sb.WriteString("\n")
	for _, l := range f.Locals {
		fmt.Fprintf(sb, "    (local $%s %s)\n", l.Name, l.Type)
	}
	renderInstrs(sb, f.Body, 4)
	sb.WriteString("  )\n")
}

func renderInstrs(sb *strings.Builder, instrs []Instr, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, in := range instrs {
		switch {
		case in.Block != nil:
			renderBlock(sb, in, pad, indent)
		case in.Op == "i32.const":
			fmt.Fprintf(sb, "%s%s %d\n", pad, in.Op, in.IntVal)
		case in.Op == "f64.const":
			fmt.Fprintf(sb, "%s%s %s\n", pad, in.Op, strconv.FormatFloat(in.FloatVal, 'g', -1, 64))
		case in.Name != "":
			fmt.Fprintf(sb, "%s%s $%s\n", pad, in.Op, in.Name)
		default:
			fmt.Fprintf(sb, "%s%s\n", pad, in.Op)
		}
	}
}

func renderBlock(sb *strings.Builder, in Instr, pad string, indent int) {
	b := in.Block
	switch b.Kind {
	case KindBlock:
		fmt.Fprintf(sb, "%s(block $%s\n", pad, b.Label)
		renderInstrs(sb, b.Then, indent+2)
		fmt.Fprintf(sb, "%s)\n", pad)
	case KindLoop:
		fmt.Fprintf(sb, "%s(loop $%s\n", pad, b.Label)
		renderInstrs(sb, b.Then, indent+2)
		fmt.Fprintf(sb, "%s)\n", pad)
	case KindIf:
		fmt.Fprintf(sb, "%s(if\n%s  (then\n", pad, pad)
		renderInstrs(sb, b.Then, indent+4)
		fmt.Fprintf(sb, "%s  )\n", pad)
		if len(b.Else) > 0 {
			fmt.Fprintf(sb, "%s  (else\n", pad)
			renderInstrs(sb, b.Else, indent+4)
			fmt.Fprintf(sb, "%s  )\n", pad)
		}
		fmt.Fprintf(sb, "%s)\n", pad)
	}
}

// CallSignature is the (parameter count, result arity) pair StackEffect
// needs to net a call site correctly. The assembler builds this table
// from a module's function set before validation.
type CallSignature struct {
	Params  int
	Results int
}

// StackEffect reports the net number of values the instruction sequence
// leaves on the stack by summing straight through from the start,
// assuming the sequence's only relevant exit is wherever it ends. That
// assumption holds for a flat sequence ending in its own trailing
// return, which is what the rest of instrEffect uses it for internally,
// but not for a body whose returns sit inside a loop that never falls
// through to anything after it; the assembler's validation pass uses
// ReturnArityOK for that reason instead. calls resolves a call target's
// signature to net that call site as results-minus-params; a callee
// missing from calls nets 0 (validate's separate call-target check
// catches an actually-undefined callee, so a nil/partial table only
// affects the numeric result, used in isolation by tests that never
// emit a call).
func StackEffect(instrs []Instr, calls map[string]CallSignature) int {
	depth := 0
	for _, in := range instrs {
		depth += instrEffect(in, calls)
	}
	return depth
}

func instrEffect(in Instr, calls map[string]CallSignature) int {
	if in.Block != nil {
		switch in.Block.Kind {
		case KindIf:
			// the if instruction itself pops the condition the preceding
			// instruction pushed. A branch ending in return never falls
			// through to whatever follows the if, so it cannot
			// contribute to that net effect (mirrors WASM's own
			// stack-polymorphism rule for code after return/unreachable);
			// the arm that does fall through governs the if's
			// contribution, and an if whose arms both return contributes
			// nothing further since nothing after it executes.
			thenTerm := isTerminal(in.Block.Then)
			elseTerm := isTerminal(in.Block.Else)
			var net int
			switch {
			case thenTerm && elseTerm:
				net = 0
			case thenTerm:
				net = StackEffect(in.Block.Else, calls)
			case elseTerm:
				net = StackEffect(in.Block.Then, calls)
			default:
				net = StackEffect(in.Block.Then, calls)
			}
			return -1 + net
		default:
			return StackEffect(in.Block.Then, calls)
		}
	}
	switch in.Op {
	case "i32.const", "f64.const", "local.get", "local.tee":
		return 1
	case "local.set", "drop", "br_if":
		return -1
	case "br", "return":
		return 0
	case "call":
		sig, ok := calls[in.Name]
		if !ok {
			return 0
		}
		return sig.Results - sig.Params
	case "i32.add", "i32.sub", "i32.mul", "i32.div_s", "i32.rem_s",
		"f64.add", "f64.sub", "f64.mul", "f64.div",
		"i32.eq", "i32.ne", "i32.lt_s", "i32.gt_s", "i32.le_s", "i32.ge_s",
		"f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge",
		"i32.and", "i32.or", "i32.shl", "i32.shr_s", "i32.shr_u":
		return -1 // two operands popped, one result pushed: net -1
	case "i32.eqz":
		return 0 // one popped, one pushed
	default:
		return 0
	}
}

// isTerminal reports whether executing instrs always ends in a `return`
// or an unconditional `br` (directly, or through a nested if/loop/block
// that never falls through), so code positioned after this sequence
// (in whatever block contains it) is unreachable along this path.
func isTerminal(instrs []Instr) bool {
	if len(instrs) == 0 {
		return false
	}
	last := instrs[len(instrs)-1]
	switch last.Op {
	case "return", "br":
		return true
	}
	if last.Block != nil {
		switch last.Block.Kind {
		case KindIf:
			return isTerminal(last.Block.Then) && isTerminal(last.Block.Else)
		case KindLoop, KindBlock:
			// a loop/block that itself never falls through (every path
			// inside it returns or branches onward) is terminal too, the
			// shape applyTailCall's synthesized loop always produces.
			return isTerminal(last.Block.Then)
		}
	}
	return false
}

// ReturnArityOK reports whether every `return` in instrs leaves exactly
// want values on the stack, tracking depth through nested if/loop/block
// structure rather than summing a single flat net the way StackEffect
// does. StackEffect alone is only meaningful when the function's single
// value-producing return sits at the outermost level of the body (true
// of most lowered functions); applyTailCall's synthesized loop (spec §8
// scenario 4) instead buries every return inside a loop that never
// falls through to anything after it, which a flat top-down sum cannot
// see into. calls is the same call-signature table StackEffect uses.
func ReturnArityOK(instrs []Instr, want int, calls map[string]CallSignature) bool {
	depth, ok := returnArity(instrs, 0, want, calls)
	if !ok {
		return false
	}
	if isTerminal(instrs) {
		return true // every path already returned or branched away; nothing falls off the end
	}
	return depth == want
}

// returnArity walks instrs from a starting depth, failing as soon as a
// return is reached with the wrong depth or a branchy if's two
// fall-through arms disagree on the depth they leave behind. It returns
// the depth reachable after instrs for a sequence that can fall through
// normally (unused by a caller whose own sequence never reaches past
// instrs); the second value is false as soon as any check above fails.
func returnArity(instrs []Instr, depth, want int, calls map[string]CallSignature) (int, bool) {
	for _, in := range instrs {
		if in.Block != nil {
			switch in.Block.Kind {
			case KindIf:
				d := depth - 1 // the if opcode pops the condition
				thenDepth, thenOK := returnArity(in.Block.Then, d, want, calls)
				elseDepth, elseOK := returnArity(in.Block.Else, d, want, calls)
				if !thenOK || !elseOK {
					return 0, false
				}
				switch {
				case isTerminal(in.Block.Then) && isTerminal(in.Block.Else):
					return depth, true // neither arm falls through; nothing follows
				case isTerminal(in.Block.Then):
					depth = elseDepth
				case isTerminal(in.Block.Else):
					depth = thenDepth
				default:
					if thenDepth != elseDepth {
						return 0, false
					}
					depth = thenDepth
				}
				continue
			case KindLoop, KindBlock:
				if _, ok := returnArity(in.Block.Then, depth, want, calls); !ok {
					return 0, false
				}
				continue
			}
		}
		switch in.Op {
		case "return":
			if depth != want {
				return 0, false
			}
			return depth, true
		case "br":
			return depth, true
		default:
			depth += instrEffect(in, calls)
		}
	}
	return depth, true
}
