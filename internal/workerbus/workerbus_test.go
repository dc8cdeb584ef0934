package workerbus

import (
	"math/rand"
	"testing"

	"wasmjit/internal/ast"
	"wasmjit/internal/codegen"
	"wasmjit/internal/config"
	"wasmjit/internal/predictor"
	"wasmjit/internal/profile"
	"wasmjit/internal/types"
)

type echoWorker struct{}

func (echoWorker) Name() string { return "echo" }
func (echoWorker) Handle(req Request) Response {
	return Response{ID: req.ID, Command: req.Command, Result: req.Data}
}

func TestBusDispatchesToRegisteredWorker(t *testing.T) {
	bus := NewBus()
	bus.Register(echoWorker{})
	resp := bus.Dispatch("echo", NewRequest("ping", "hello"))
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	if resp.Result != "hello" {
		t.Fatalf("expected echoed payload, got %v", resp.Result)
	}
}

func TestBusReturnsErrorForUnknownWorker(t *testing.T) {
	bus := NewBus()
	resp := bus.Dispatch("missing", NewRequest("x", nil))
	if resp.Err == nil {
		t.Fatalf("expected an error dispatching to an unregistered worker")
	}
}

func TestProfilerWorkerGetStats(t *testing.T) {
	store := profile.NewStore(10)
	store.RecordCall("f", 100, "")
	w := &ProfilerWorker{Store: store, HotCallThreshold: 100}
	resp := w.Handle(Request{ID: "1", Command: "getStats"})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	profiles, ok := resp.Result.([]*profile.FunctionProfile)
	if !ok || len(profiles) != 1 {
		t.Fatalf("expected one profile, got %#v", resp.Result)
	}
}

func TestAnalyzerWorkerAnalyzeFunction(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := predictor.NewNetwork([]int{50, 16, 7}, 1e-3, rng)
	w := &AnalyzerWorker{Network: net}

	store := profile.NewStore(10)
	store.RecordCall("f", 100, "")
	p := store.Get("f")

	arena := ast.NewArena()
	fnID := arena.Add(ast.Node{Kind: ast.FunctionDeclaration, Name: "f", FuncBody: arena.Add(ast.Node{Kind: ast.BlockStatement})})
	store.StaticAnalyze("f", "function f(){}", arena, fnID)

	resp := w.Handle(Request{ID: "1", Command: "analyzeFunction", Data: AnalyzeFunctionInput{
		Profile: p, Graph: store.Graph(), HotCallThr: 100, Budget: 10,
	}})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	plan, ok := resp.Result.(predictor.Plan)
	if !ok {
		t.Fatalf("expected a Plan result, got %#v", resp.Result)
	}
	if plan.TotalCost > 10 {
		t.Fatalf("expected plan within budget, got cost %d", plan.TotalCost)
	}
}

func TestCodegenWorkerGenerateSingle(t *testing.T) {
	w := NewCodegenWorker(config.Default())
	fn := &codegen.Func{Name: "f", Body: []codegen.Instr{}}
	resp := w.Handle(Request{ID: "1", Command: "generateSingle", Data: GenerateSingleInput{
		Lowered: fn, Plan: predictor.Plan{Selected: []predictor.Kind{predictor.ConstantFolding}},
	}})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	stats := w.Handle(Request{ID: "2", Command: "getStatistics"})
	cs, ok := stats.Result.(codegenStats)
	if !ok || cs.generated != 1 {
		t.Fatalf("expected one generation recorded, got %#v", stats.Result)
	}
}

func TestWasmWorkerCompileProducesValidMagic(t *testing.T) {
	w := NewWasmWorker(nil)
	mod := &codegen.Module{Functions: []*codegen.Func{{
		Name:   "add",
		Params: []codegen.Local{{Name: "a", Type: types.I32}, {Name: "b", Type: types.I32}},
		Result: types.I32,
		Body: []codegen.Instr{
			{Op: "local.get", Name: "a"}, {Op: "local.get", Name: "b"}, {Op: "i32.add"}, {Op: "return"},
		},
		Exported: true,
	}}}
	resp := w.Handle(Request{ID: "1", Command: "compile", Data: CompileInput{Module: mod, Name: "add", Source: "src"}})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	bin, ok := resp.Result.([]byte)
	if !ok || len(bin) < 4 || bin[0] != 0x00 || bin[1] != 0x61 {
		t.Fatalf("expected a valid wasm binary, got %#v", resp.Result)
	}
}
