package codegen

import (
	"wasmjit/internal/predictor"
)

// Transform is a pure function from a function's instruction body to a
// transformed body, per spec §4.6 ("each transform is a pure function
// from a WAT function to a transformed WAT function"). The optimization-
// pass-pipeline shape (an ordered list of such functions) is grounded on
// the WASM-optimizer-shaped other_examples files surveyed for this
// package (an eWASM optimizer pass list and a WAT disassembler's mnemonic
// table), since the teacher itself has no optimization pass of its own.
type Transform func(body []Instr, cfg Config) []Instr

// Config carries the tunables a transform may need (spec §6).
type Config struct {
	UnrollFactor int
}

// pipelineOrder is the fixed application order named in spec §4.6.
var pipelineOrder = []struct {
	kind predictor.Kind
	fn   Transform
}{
	{predictor.ConstantFolding, constantFold},
	{predictor.StrengthReduction, strengthReduce},
	{predictor.CommonSubexpressionElimination, eliminateCSE},
	{predictor.LoopUnrolling, unrollLoops},
	{predictor.Vectorization, vectorize},
	{predictor.TailCallOptimization, tailCallOptimize},
	{predictor.Inlining, inlineCalls},
}

// ApplyPlan runs every transform named in selected, in the fixed pipeline
// order regardless of selection order, against fn's body. inlineLookup
// resolves a callee name to its already-lowered Func for Inlining; it may
// be nil, in which case Inlining silently skips (no callee available to
// inline).
func ApplyPlan(fn *Func, selected []predictor.Kind, cfg Config, inlineLookup func(name string) *Func) {
	chosen := make(map[predictor.Kind]bool, len(selected))
	for _, k := range selected {
		chosen[k] = true
	}
	for _, stage := range pipelineOrder {
		if !chosen[stage.kind] {
			continue
		}
		switch stage.kind {
		case predictor.Inlining:
			fn.Body = inlineCallsWith(fn.Body, inlineLookup)
		case predictor.TailCallOptimization:
			applyTailCall(fn)
		default:
			fn.Body = stage.fn(fn.Body, cfg)
		}
	}
}

// constantFold replaces constant binary expressions `(T.const a) (T.const
// b) T.op` with their evaluated `T.const c`, per spec §4.6. It is applied
// repeatedly to a fixed point within one call so that folding a chain of
// constants collapses fully; a second call on already-folded output is a
// no-op, satisfying the idempotence property of spec §8.
func constantFold(body []Instr, _ Config) []Instr {
	return foldRec(body)
}

func foldRec(body []Instr) []Instr {
	changed := true
	for changed {
		body, changed = foldPass(body)
	}
	out := make([]Instr, len(body))
	for i, in := range body {
		if in.Block != nil {
			nb := *in.Block
			nb.Then = foldRec(in.Block.Then)
			if in.Block.Else != nil {
				nb.Else = foldRec(in.Block.Else)
			}
			in.Block = &nb
		}
		out[i] = in
	}
	return out
}

func foldPass(body []Instr) ([]Instr, bool) {
	var out []Instr
	changed := false
	i := 0
	for i < len(body) {
		if i+2 < len(body) && isConst(body[i]) && isConst(body[i+1]) && isFoldableOp(body[i+2].Op) {
			a, b := body[i], body[i+1]
			if folded, ok := evalConst(a, b, body[i+2].Op); ok {
				out = append(out, folded)
				i += 3
				changed = true
				continue
			}
		}
		out = append(out, body[i])
		i++
	}
	return out, changed
}

func isConst(in Instr) bool {
	return in.Op == "i32.const" || in.Op == "f64.const"
}

func isFoldableOp(op string) bool {
	switch op {
	case "i32.add", "i32.sub", "i32.mul", "i32.div_s", "i32.rem_s",
		"f64.add", "f64.sub", "f64.mul", "f64.div":
		return true
	}
	return false
}

// evalConst folds a and b under op. Integer division/remainder by zero
// is left unfolded, surviving as a runtime operation rather than being
// evaluated into undefined behavior, per spec §8's boundary rule.
func evalConst(a, b Instr, opName string) (Instr, bool) {
	if a.IsFloat != b.IsFloat {
		return Instr{}, false
	}
	if a.IsFloat {
		x, y := a.FloatVal, b.FloatVal
		switch opName {
		case "f64.add":
			return constF64(x + y), true
		case "f64.sub":
			return constF64(x - y), true
		case "f64.mul":
			return constF64(x * y), true
		case "f64.div":
			if y == 0 {
				return Instr{}, false
			}
			return constF64(x / y), true
		}
		return Instr{}, false
	}
	x, y := a.IntVal, b.IntVal
	switch opName {
	case "i32.add":
		return constI32(x + y), true
	case "i32.sub":
		return constI32(x - y), true
	case "i32.mul":
		return constI32(x * y), true
	case "i32.div_s":
		if y == 0 {
			return Instr{}, false
		}
		return constI32(x / y), true
	case "i32.rem_s":
		if y == 0 {
			return Instr{}, false
		}
		return constI32(x % y), true
	}
	return Instr{}, false
}

// strengthReduce replaces x*2^k with x<<k, x/2^k with x>>k, and x%2^k
// with x&(2^k-1), integer operations only, per spec §4.6. The preflight
// check is simply "is the constant operand a power of two"; anything
// else is left untouched (skipping is silent, per spec §4.6).
func strengthReduce(body []Instr, cfg Config) []Instr {
	var out []Instr
	i := 0
	for i < len(body) {
		in := body[i]
		if in.Block != nil {
			nb := *in.Block
			nb.Then = strengthReduce(in.Block.Then, cfg)
			if in.Block.Else != nil {
				nb.Else = strengthReduce(in.Block.Else, cfg)
			}
			in.Block = &nb
			out = append(out, in)
			i++
			continue
		}
		if i >= 1 && body[i-1].Op == "i32.const" {
			k, isPow2 := log2(body[i-1].IntVal)
			switch in.Op {
			case "i32.mul":
				if isPow2 {
					out[len(out)-1] = constI32(int64(k))
					out = append(out, Instr{Op: "i32.shl"})
					i++
					continue
				}
			case "i32.div_s":
				if isPow2 {
					out[len(out)-1] = constI32(int64(k))
					out = append(out, Instr{Op: "i32.shr_s"})
					i++
					continue
				}
			case "i32.rem_s":
				if isPow2 {
					out[len(out)-1] = constI32(body[i-1].IntVal - 1)
					out = append(out, Instr{Op: "i32.and"})
					i++
					continue
				}
			}
		}
		out = append(out, in)
		i++
	}
	return out
}

func log2(v int64) (int, bool) {
	if v <= 0 {
		return 0, false
	}
	k := 0
	for n := v; n > 1; n >>= 1 {
		if n%2 != 0 {
			return 0, false
		}
		k++
	}
	return k, true
}

// eliminateCSE hoists identical subexpressions evaluated more than once
// within the same basic block to a fresh local via local.tee, replacing
// subsequent occurrences with local.get, per spec §4.6. Scope is
// explicitly restricted to within one flat instruction slice (one basic
// block), per the spec's resolution of the CSE open question: cross-block
// CSE would need data-flow analysis the source never implies.
func eliminateCSE(body []Instr, cfg Config) []Instr {
	out := eliminateCSEBlock(body)
	for i := range out {
		if out[i].Block != nil {
			nb := *out[i].Block
			nb.Then = eliminateCSE(out[i].Block.Then, cfg)
			if out[i].Block.Else != nil {
				nb.Else = eliminateCSE(out[i].Block.Else, cfg)
			}
			out[i].Block = &nb
		}
	}
	return out
}

// runKey identifies a candidate three-instruction pure subexpression:
// two loads plus an operator, e.g. `local.get $x, local.get $y, i32.add`.
type runKey struct {
	a, op, b string
}

func eliminateCSEBlock(body []Instr) []Instr {
	counts := make(map[runKey]int)
	for i := 0; i+2 < len(body); i++ {
		if k, ok := subexprKey(body[i], body[i+1], body[i+2]); ok {
			counts[k]++
		}
	}
	freshCounter := 0
	assigned := make(map[runKey]string)
	var out []Instr
	i := 0
	for i < len(body) {
		if i+2 < len(body) {
			if k, ok := subexprKey(body[i], body[i+1], body[i+2]); ok && counts[k] > 1 {
				if name, done := assigned[k]; done {
					out = append(out, localGet(name))
					i += 3
					continue
				}
				freshCounter++
				name := "cse" + itoa(freshCounter)
				assigned[k] = name
				out = append(out, body[i], body[i+1], body[i+2], localTee(name))
				i += 3
				continue
			}
		}
		out = append(out, body[i])
		i++
	}
	return out
}

func subexprKey(a, b, c Instr) (runKey, bool) {
	if a.Op != "local.get" || b.Op != "local.get" {
		return runKey{}, false
	}
	if !isPureArith(c.Op) {
		return runKey{}, false
	}
	return runKey{a: a.Name, op: c.Op, b: b.Name}, true
}

func isPureArith(op string) bool {
	switch op {
	case "i32.add", "i32.sub", "i32.mul", "f64.add", "f64.sub", "f64.mul":
		return true
	}
	return false
}

// unrollLoops duplicates the body of a simple counted `(block (loop ...))`
// unrollFactor times, per spec §4.6. Detection is limited to the exact
// shape lowerWhile/lowerFor emit; anything else is left alone (silent
// skip).
func unrollLoops(body []Instr, cfg Config) []Instr {
	factor := cfg.UnrollFactor
	if factor <= 1 {
		factor = 4
	}
	var out []Instr
	for _, in := range body {
		if in.Block != nil && in.Block.Kind == KindBlock && len(in.Block.Then) == 1 && in.Block.Then[0].Block != nil && in.Block.Then[0].Block.Kind == KindLoop {
			loop := in.Block.Then[0]
			guardLen := guardPrefixLen(loop.Block.Then)
			if guardLen > 0 && guardLen < len(loop.Block.Then) {
				guard := loop.Block.Then[:guardLen]
				rest := loop.Block.Then[guardLen:]
				// last instruction of rest is the `br $lp` closing jump;
				// everything before it is the duplicable body.
				if len(rest) > 0 && rest[len(rest)-1].Op == "br" {
					stepAndJump := rest[len(rest)-1:]
					coreBody := rest[:len(rest)-1]
					var unrolled []Instr
					unrolled = append(unrolled, guard...)
					for k := 0; k < factor; k++ {
						unrolled = append(unrolled, coreBody...)
					}
					unrolled = append(unrolled, stepAndJump...)
					newLoop := Instr{Op: "loop", Block: &BlockBody{Kind: KindLoop, Label: loop.Block.Label, Then: unrolled}}
					out = append(out, Instr{Op: "block", Block: &BlockBody{Kind: KindBlock, Label: in.Block.Label, Then: []Instr{newLoop}}})
					continue
				}
			}
		}
		out = append(out, in)
	}
	return out
}

// guardPrefixLen finds how many leading instructions form the loop's
// condition-check-and-branch-out guard (test ... i32.eqz br_if $brk),
// so the remainder can be identified as the duplicable body.
func guardPrefixLen(instrs []Instr) int {
	for i, in := range instrs {
		if in.Op == "br_if" {
			return i + 1
		}
	}
	return 0
}

// vectorize replaces scalar lane-parallel float arithmetic over arrays
// with f32x4 SIMD equivalents when an arrayOps signal is present. This
// language's Non-goals exclude garbage-collected reference/array types
// with real memory layout, so no lowered body in this compiler currently
// contains the array-access pattern vectorize would match; the pass is
// still wired into the pipeline (preflight finds nothing, skip is
// silent) so a future array-backed lowering slots in without pipeline
// changes.
func vectorize(body []Instr, _ Config) []Instr {
	return body
}

// tailCallOptimize is the plain-Transform placeholder kept only for
// pipelineOrder's table shape; the real work needs the function's name
// and parameter list, which the plain Transform signature has no room
// for, so ApplyPlan special-cases TailCallOptimization to call
// applyTailCall directly instead of this stub.
func tailCallOptimize(body []Instr, _ Config) []Instr {
	return body
}

// applyTailCall rewrites a self-call immediately followed by `return`
// into a `br`, per spec §4.6 and scenario 4 of spec §8. When the call
// site already sits inside a loop (a source `while`/`for`), the existing
// loop head is the branch target. Scenario 4's accumulator-style
// recursion (`if (n<2) return acc; return fact(n-1, n*acc);`) has no
// such loop — it is plain structured recursion — so that case
// synthesizes one: the whole body is wrapped in a fresh loop, and each
// tail-call site's pushed arguments are popped into the function's own
// parameter locals (in reverse push order) before branching back to the
// loop head, which is exactly what a real call would have bound them to.
func applyTailCall(fn *Func) {
	if !hasTailSelfCall(fn.Body, fn.Name) {
		return
	}
	if hasTailSelfCallInLoop(fn.Body, fn.Name, false) {
		fn.Body = rewriteTailCalls(fn.Body, fn.Name, "")
		return
	}
	fn.Body = synthesizeTailLoop(fn.Body, fn.Name, fn.Params)
}

// tailLoopLabel names the loop applyTailCall synthesizes when a function
// has no pre-existing loop to branch back to. One per function body, so
// a fixed name never collides with the lowerer's own freshLabel-derived
// labels ("lp1", "brk1", ...).
const tailLoopLabel = "tcohead"

// hasTailSelfCall reports whether body contains a `call $fnName`
// immediately followed by `return`, anywhere in the body or a nested
// if's arms.
func hasTailSelfCall(body []Instr, fnName string) bool {
	for i, in := range body {
		if in.Op == "call" && in.Name == fnName && i+1 < len(body) && body[i+1].Op == "return" {
			return true
		}
		if in.Block != nil {
			if hasTailSelfCall(in.Block.Then, fnName) {
				return true
			}
			if in.Block.Else != nil && hasTailSelfCall(in.Block.Else, fnName) {
				return true
			}
		}
	}
	return false
}

// hasTailSelfCallInLoop reports whether a tail self-call exists while
// already nested inside a KindLoop ancestor.
func hasTailSelfCallInLoop(body []Instr, fnName string, inLoop bool) bool {
	for i, in := range body {
		if inLoop && in.Op == "call" && in.Name == fnName && i+1 < len(body) && body[i+1].Op == "return" {
			return true
		}
		if in.Block != nil {
			nowInLoop := inLoop || in.Block.Kind == KindLoop
			if hasTailSelfCallInLoop(in.Block.Then, fnName, nowInLoop) {
				return true
			}
			if in.Block.Else != nil && hasTailSelfCallInLoop(in.Block.Else, fnName, nowInLoop) {
				return true
			}
		}
	}
	return false
}

// rewriteTailCalls replaces `call $fnName` immediately followed by
// `return` with `br $enclosingLoop`, where enclosingLoop is the label of
// the nearest KindLoop ancestor (empty string if none is in scope yet,
// in which case the site is left alone: a tail call outside any loop has
// nothing to jump back to).
func rewriteTailCalls(body []Instr, fnName, enclosingLoop string) []Instr {
	var out []Instr
	i := 0
	for i < len(body) {
		if enclosingLoop != "" && i+1 < len(body) && body[i].Op == "call" && body[i].Name == fnName && body[i+1].Op == "return" {
			out = append(out, Instr{Op: "br", Name: enclosingLoop})
			i += 2
			continue
		}
		in := body[i]
		if in.Block != nil {
			nb := *in.Block
			loopLabel := enclosingLoop
			if in.Block.Kind == KindLoop {
				loopLabel = in.Block.Label
			}
			nb.Then = rewriteTailCalls(in.Block.Then, fnName, loopLabel)
			if in.Block.Else != nil {
				nb.Else = rewriteTailCalls(in.Block.Else, fnName, loopLabel)
			}
			in.Block = &nb
		}
		out = append(out, in)
		i++
	}
	return out
}

// synthesizeTailLoop wraps body in a fresh loop and rewrites every tail
// self-call into a parameter update plus a branch to the loop head. The
// loop never needs an enclosing `block` to branch out of: every path
// through the rewritten body ends either in `return` (the base case,
// which exits the function directly) or in the synthesized `br` (the
// recursive case), never falling off the end.
func synthesizeTailLoop(body []Instr, fnName string, params []Local) []Instr {
	rewritten := replaceTailCallsWithLoopBranch(body, fnName, tailLoopLabel, params)
	loop := Instr{Op: "loop", Block: &BlockBody{Kind: KindLoop, Label: tailLoopLabel, Then: rewritten}}
	return []Instr{loop}
}

func replaceTailCallsWithLoopBranch(body []Instr, fnName, label string, params []Local) []Instr {
	var out []Instr
	i := 0
	for i < len(body) {
		in := body[i]
		if in.Op == "call" && in.Name == fnName && i+1 < len(body) && body[i+1].Op == "return" {
			for k := len(params) - 1; k >= 0; k-- {
				out = append(out, localSet(params[k].Name))
			}
			out = append(out, Instr{Op: "br", Name: label})
			i += 2
			continue
		}
		if in.Block != nil {
			nb := *in.Block
			nb.Then = replaceTailCallsWithLoopBranch(in.Block.Then, fnName, label, params)
			if in.Block.Else != nil {
				nb.Else = replaceTailCallsWithLoopBranch(in.Block.Else, fnName, label, params)
			}
			in.Block = &nb
		}
		out = append(out, in)
		i++
	}
	return out
}

// inlineCalls is the plain Transform placeholder; the real work happens
// in inlineCallsWith, which needs a callee lookup ApplyPlan supplies.
func inlineCalls(body []Instr, _ Config) []Instr {
	return body
}

// inlineCallsWith substitutes a call to a small callee with a renamed
// copy of its body, per spec §4.6. Recursion is not checked here: lookup
// decides which callees are eligible (the pipeline's lookup returns nil
// for callees the call graph marks recursive). lookup may be nil or miss
// a given name, in which case that call site is left alone (silent skip).
func inlineCallsWith(body []Instr, lookup func(name string) *Func) []Instr {
	if lookup == nil {
		return body
	}
	var out []Instr
	for _, in := range body {
		if in.Block != nil {
			nb := *in.Block
			nb.Then = inlineCallsWith(in.Block.Then, lookup)
			if in.Block.Else != nil {
				nb.Else = inlineCallsWith(in.Block.Else, lookup)
			}
			in.Block = &nb
			out = append(out, in)
			continue
		}
		if in.Op == "call" {
			if callee := lookup(in.Name); callee != nil && len(callee.Body) <= 12 {
				out = append(out, renameLocals(callee.Body, in.Name+"_inl_")...)
				continue
			}
		}
		out = append(out, in)
	}
	return out
}

func renameLocals(body []Instr, prefix string) []Instr {
	out := make([]Instr, len(body))
	for i, in := range body {
		if in.Block != nil {
			nb := *in.Block
			nb.Then = renameLocals(in.Block.Then, prefix)
			if in.Block.Else != nil {
				nb.Else = renameLocals(in.Block.Else, prefix)
			}
			in.Block = &nb
		} else if in.Op == "local.get" || in.Op == "local.set" || in.Op == "local.tee" {
			in.Name = prefix + in.Name
		}
		out[i] = in
	}
	return out
}
