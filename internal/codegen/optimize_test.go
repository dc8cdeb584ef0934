package codegen

import (
	"testing"

	"wasmjit/internal/predictor"
)

func TestConstantFoldCollapsesChain(t *testing.T) {
	body := []Instr{constI32(3), constI32(4), op("i32.add")}
	out := constantFold(body, Config{})
	if len(out) != 1 || out[0].Op != "i32.const" || out[0].IntVal != 7 {
		t.Fatalf("expected a single folded const 7, got %#v", out)
	}
}

func TestConstantFoldIsIdempotent(t *testing.T) {
	body := []Instr{constI32(2), constI32(3), op("i32.mul"), constI32(1), op("i32.add")}
	once := constantFold(body, Config{})
	twice := constantFold(once, Config{})
	if len(once) != len(twice) {
		t.Fatalf("expected idempotent folding, got %#v then %#v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("expected identical result on second fold at index %d", i)
		}
	}
}

func TestConstantFoldLeavesDivisionByZeroLiteralUnfolded(t *testing.T) {
	body := []Instr{constI32(5), constI32(0), op("i32.div_s")}
	out := constantFold(body, Config{})
	if len(out) != 3 {
		t.Fatalf("expected division by a zero literal to survive unfolded, got %#v", out)
	}
}

func TestStrengthReductionRewritesPowerOfTwoMultiply(t *testing.T) {
	body := []Instr{localGet("x"), constI32(2), op("i32.mul")}
	out := strengthReduce(body, Config{})
	if len(out) != 3 || out[2].Op != "i32.shl" {
		t.Fatalf("expected shl rewrite, got %#v", out)
	}
	if out[1].IntVal != 1 {
		t.Fatalf("expected shift amount 1, got %v", out[1].IntVal)
	}
}

func TestStrengthReductionSkipsNonPowerOfTwo(t *testing.T) {
	body := []Instr{localGet("x"), constI32(3), op("i32.mul")}
	out := strengthReduce(body, Config{})
	if out[2].Op != "i32.mul" {
		t.Fatalf("expected i32.mul to survive when constant is not a power of two, got %#v", out)
	}
}

func TestCSEHoistsRepeatedSubexpression(t *testing.T) {
	body := []Instr{
		localGet("a"), localGet("b"), op("i32.add"),
		localGet("a"), localGet("b"), op("i32.add"),
	}
	out := eliminateCSE(body, Config{})
	if len(out) != 5 {
		t.Fatalf("expected the second occurrence collapsed to a local.get, got %#v", out)
	}
	if out[3].Op != "local.tee" {
		t.Fatalf("expected first occurrence to tee into a fresh local, got %#v", out[3])
	}
	if out[4].Op != "local.get" || out[4].Name != out[3].Name {
		t.Fatalf("expected second occurrence to read the same fresh local, got %#v", out[4])
	}
}

func TestTailCallRewritesExistingLoopBranch(t *testing.T) {
	loopBody := []Instr{
		localGet("n"), op("i32.eqz"), {Op: "br_if", Name: "brk1"},
		localGet("n"), callInstr("fact"), op("return"),
	}
	fn := &Func{Name: "fact", Body: []Instr{
		{Op: "block", Block: &BlockBody{Kind: KindBlock, Label: "brk1", Then: []Instr{
			{Op: "loop", Block: &BlockBody{Kind: KindLoop, Label: "lp1", Then: loopBody}},
		}}},
	}}
	applyTailCall(fn)
	rewritten := fn.Body[0].Block.Then[0].Block.Then
	last := rewritten[len(rewritten)-1]
	if last.Op != "br" || last.Name != "lp1" {
		t.Fatalf("expected trailing call+return to become br $lp1, got %#v", rewritten)
	}
}

// TestTailCallSynthesizesLoopForBranchyRecursion exercises the real
// lowering path for spec §8 scenario 4: a tail-recursive function with
// no source-level loop at all, structured purely as an if/return guard
// followed by a tail call. applyTailCall must synthesize the loop head
// itself, since rewriteTailCalls alone has nothing to branch back to.
func TestTailCallSynthesizesLoopForBranchyRecursion(t *testing.T) {
	fn, _ := lowerSource(t, `function fact(n, acc) {
		if (n < 2) {
			return acc;
		}
		return fact(n - 1, n * acc);
	}`)
	applyTailCall(fn)

	if len(fn.Body) != 1 || fn.Body[0].Op != "loop" || fn.Body[0].Block == nil {
		t.Fatalf("expected the body rewritten into a single synthesized loop, got %#v", fn.Body)
	}
	if fn.Body[0].Block.Label != tailLoopLabel {
		t.Fatalf("expected loop label %q, got %q", tailLoopLabel, fn.Body[0].Block.Label)
	}

	rewritten := fn.Body[0].Block.Then
	for _, in := range rewritten {
		if in.Op == "call" && in.Name == "fact" {
			t.Fatalf("expected the tail call to fact to be rewritten away, got %#v", rewritten)
		}
	}
	last := rewritten[len(rewritten)-1]
	if last.Op != "br" || last.Name != tailLoopLabel {
		t.Fatalf("expected the recursive path to end in br $%s, got %#v", tailLoopLabel, last)
	}

	setCount := 0
	for _, in := range rewritten {
		if in.Op == "local.set" && (in.Name == "n" || in.Name == "acc") {
			setCount++
		}
	}
	if setCount != 2 {
		t.Fatalf("expected both parameters reassigned before the branch, got %d local.set", setCount)
	}
}

func TestApplyPlanRunsOnlySelectedStages(t *testing.T) {
	fn := &Func{Name: "f", Body: []Instr{constI32(2), constI32(3), op("i32.add")}}
	ApplyPlan(fn, []predictor.Kind{predictor.ConstantFolding}, Config{}, nil)
	if len(fn.Body) != 1 || fn.Body[0].IntVal != 5 {
		t.Fatalf("expected constant folding to run, got %#v", fn.Body)
	}
}

func TestApplyPlanInliningSubstitutesSmallCallee(t *testing.T) {
	callee := &Func{Name: "inc", Body: []Instr{localGet("x"), constI32(1), op("i32.add")}}
	fn := &Func{Name: "caller", Body: []Instr{localGet("x"), callInstr("inc")}}
	lookup := func(name string) *Func {
		if name == "inc" {
			return callee
		}
		return nil
	}
	ApplyPlan(fn, []predictor.Kind{predictor.Inlining}, Config{}, lookup)
	for _, in := range fn.Body {
		if in.Op == "call" {
			t.Fatalf("expected the call to be substituted away, got %#v", fn.Body)
		}
	}
}
