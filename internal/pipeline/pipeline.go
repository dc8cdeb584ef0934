// Package pipeline wires the compiler stages of spec.md §2 into one
// entry point, Compile, which compiles a source unit of one or more
// functions that share one profile store and call graph. It is the in-process
// equivalent of dispatching through internal/workerbus's four workers;
// callers that want the worker-per-stage concurrency model use that
// package directly, while callers that just want an answer use this one.
package pipeline

import (
	"math/rand"
	"time"

	"wasmjit/internal/assembler"
	"wasmjit/internal/ast"
	"wasmjit/internal/cache"
	"wasmjit/internal/codegen"
	"wasmjit/internal/config"
	"wasmjit/internal/errors"
	"wasmjit/internal/features"
	"wasmjit/internal/lexer"
	"wasmjit/internal/parser"
	"wasmjit/internal/predictor"
	"wasmjit/internal/profile"
	"wasmjit/internal/types"
)

// FunctionResult is the per-function outcome of running the full
// pipeline: lex, parse, type-check, profile, predict, lower, optimize,
// assemble.
type FunctionResult struct {
	Name       string
	Plan       predictor.Plan
	Lowered    *codegen.Func
	WatText    string
	WasmBinary []byte
	Errors     []*errors.CompilerError
}

// CompilationResult is the outcome of compiling one source unit, which
// may declare several functions.
type CompilationResult struct {
	Source    string
	Tokens    []lexer.Token
	Arena     *ast.Arena
	Root      ast.NodeID
	Functions []*FunctionResult
	Errors    []*errors.CompilerError
}

// Pipeline holds the state that must persist across calls: the profile
// store (and the call graph it owns), the predictor network, and an
// optional compiled-module cache. A zero-value Pipeline is not usable;
// construct one with New.
type Pipeline struct {
	cfg     config.Config
	store   *profile.Store
	network *predictor.Network
	cache   *cache.Store
}

// New builds a Pipeline from cfg, seeding the predictor network with rng
// (pass a fixed-seed rand.Rand for reproducible predictions, as spec.md
// §4.5 requires of the learned predictor). store may be nil, signaling
// an on-the-fly profile.NewStore(cfg.SampleCapacity); cacheStore may be
// nil to run without a compiled-module cache.
func New(cfg config.Config, rng *rand.Rand, store *profile.Store, cacheStore *cache.Store) *Pipeline {
	if store == nil {
		store = profile.NewStore(cfg.SampleCapacity)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		network: predictor.NewNetwork(cfg.Predictor.Architecture, cfg.Predictor.LearningRate, rng),
		cache:   cacheStore,
	}
}

// Store exposes the pipeline's profile store, e.g. so a caller can record
// runtime samples between compilations.
func (p *Pipeline) Store() *profile.Store { return p.store }

// Compile runs every stage of spec.md §2 over source and returns the
// combined result. Parse or type errors short-circuit before codegen;
// per-function codegen/assembly errors are attached to that function's
// FunctionResult and also folded into the top-level Errors, so a caller
// that only checks CompilationResult.Errors still sees a function that
// failed to lower or assemble, without having to walk every
// FunctionResult individually. Compilation of the other functions in
// the source unit is not aborted by one function's failure.
func (p *Pipeline) Compile(source, file string) CompilationResult {
	result := CompilationResult{Source: source}

	scanner := lexer.NewScanner(source, file)
	tokens, lexErrs := scanner.Scan()
	result.Tokens = tokens
	result.Errors = append(result.Errors, lexErrs...)
	if len(lexErrs) > 0 {
		return result
	}

	prs := parser.New(tokens, file)
	root, arena, parseErrs := prs.Parse()
	result.Arena = arena
	result.Root = root
	result.Errors = append(result.Errors, parseErrs...)
	if len(parseErrs) > 0 {
		return result
	}

	analyzer := types.NewAnalyzer(arena, file)
	typeErrs := analyzer.Analyze(root)
	result.Errors = append(result.Errors, typeErrs...)
	if len(typeErrs) > 0 {
		return result
	}

	fnIDs := topLevelFunctions(arena, root)
	noteCallEdges(p.store, arena, fnIDs)

	lowered := make(map[string]*codegen.Func, len(fnIDs))
	for _, id := range fnIDs {
		n := arena.Get(id)
		p.store.StaticAnalyze(n.Name, source, arena, id)

		lw := codegen.NewLowerer(arena, file)
		fn, codeErrs := lw.Lower(id, true)
		if len(codeErrs) > 0 {
			result.Functions = append(result.Functions, &FunctionResult{Name: n.Name, Errors: codeErrs})
			result.Errors = append(result.Errors, codeErrs...)
			continue
		}
		lowered[n.Name] = fn
	}

	for _, id := range fnIDs {
		n := arena.Get(id)
		fn, ok := lowered[n.Name]
		if !ok {
			continue
		}
		fr := p.compileFunction(n.Name, source, fn, lowered)
		result.Functions = append(result.Functions, fr)
		result.Errors = append(result.Errors, fr.Errors...)
	}

	return result
}

// compileFunction runs the profile->predict->optimize->assemble tail of
// the pipeline for one already-lowered function.
func (p *Pipeline) compileFunction(name, source string, fn *codegen.Func, siblings map[string]*codegen.Func) *FunctionResult {
	fr := &FunctionResult{Name: name}

	prof := p.store.Get(name)
	vec := features.Extract(prof, p.store.Graph(), p.cfg.HotCallThreshold)
	speedups := predictor.Predict(p.network, vec[:])
	plan := predictor.SelectPlan(speedups, p.cfg.OptimizationBudget)
	plan = predictor.DisableInliningForRecursion(plan, p.store.Graph().IsRecursive(name))
	fr.Plan = plan

	lookup := func(callee string) *codegen.Func {
		if p.store.Graph().IsRecursive(callee) {
			return nil
		}
		return siblings[callee]
	}
	codegen.ApplyPlan(fn, plan.Selected, codegen.Config{UnrollFactor: p.cfg.UnrollFactor}, lookup)
	fr.Lowered = fn
	fr.WatText = fn.Render()

	mod := &codegen.Module{Functions: []*codegen.Func{fn}}
	binary, asmErrs := assembler.Assemble(mod)
	if len(asmErrs) > 0 {
		fr.Errors = append(fr.Errors, asmErrs...)
		return fr
	}
	fr.WasmBinary = binary

	if p.cache != nil {
		key := cache.Key(source, name, planSignature(plan))
		_ = p.cache.Put(key, name, fr.WatText, binary, time.Now())
	}
	return fr
}

// planSignature renders a plan's selected optimizations into a cache-key
// component, in the order SelectPlan chose them (descending score, ties
// broken by predictor.Kind order), so the same set of kinds selected in a
// different order yields a different signature.
func planSignature(plan predictor.Plan) string {
	sig := ""
	for i, k := range plan.Selected {
		if i > 0 {
			sig += ","
		}
		sig += k.String()
	}
	return sig
}

// topLevelFunctions collects the FunctionDeclaration children of root in
// source order, skipping every other statement, including arrow functions
// (those are not compiled as standalone wasm exports, and the lowerer
// rejects an arrow expression inside a function body as unsupported).
func topLevelFunctions(arena *ast.Arena, root ast.NodeID) []ast.NodeID {
	n := arena.Get(root)
	if n == nil {
		return nil
	}
	var out []ast.NodeID
	for _, id := range n.Body {
		child := arena.Get(id)
		if child.Kind == ast.FunctionDeclaration {
			out = append(out, id)
		}
	}
	return out
}

// noteCallEdges walks each top-level function's body recording a static
// caller->callee edge for every direct call of a top-level function
// (including the caller itself, which marks direct recursion), per
// spec.md §4.4's note-edge operation. Calls through a computed callee
// (anything but a bare identifier) are not statically resolvable and are
// skipped, as are calls of names that are not top-level functions.
func noteCallEdges(store *profile.Store, arena *ast.Arena, fnIDs []ast.NodeID) {
	names := make(map[string]bool, len(fnIDs))
	for _, id := range fnIDs {
		names[arena.Get(id).Name] = true
	}
	for _, id := range fnIDs {
		caller := arena.Get(id).Name
		walkCalls(arena, arena.Get(id).FuncBody, func(callee string) {
			if names[callee] {
				store.NoteEdge(caller, callee)
			}
		})
	}
}

func walkCalls(arena *ast.Arena, id ast.NodeID, visit func(callee string)) {
	if id == ast.Invalid {
		return
	}
	n := arena.Get(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.CallExpression:
		if callee := arena.Get(n.Callee); callee != nil && callee.Kind == ast.Identifier {
			visit(callee.IdentName)
		}
		for _, a := range n.Args {
			walkCalls(arena, a, visit)
		}
	case ast.BlockStatement, ast.Program:
		for _, s := range n.Body {
			walkCalls(arena, s, visit)
		}
	case ast.ReturnStatement:
		walkCalls(arena, n.Argument, visit)
	case ast.IfStatement:
		walkCalls(arena, n.Test, visit)
		walkCalls(arena, n.Consequent, visit)
		walkCalls(arena, n.Alternate, visit)
	case ast.WhileStatement:
		walkCalls(arena, n.Test, visit)
		walkCalls(arena, n.Loop, visit)
	case ast.ForStatement:
		walkCalls(arena, n.ForInit, visit)
		walkCalls(arena, n.ForTest, visit)
		walkCalls(arena, n.ForUpdate, visit)
		walkCalls(arena, n.ForBody, visit)
	case ast.ExpressionStatement:
		walkCalls(arena, n.Expr, visit)
	case ast.VariableDeclaration:
		walkCalls(arena, n.Init, visit)
	case ast.BinaryExpression, ast.AssignmentExpression:
		walkCalls(arena, n.Left, visit)
		walkCalls(arena, n.Right, visit)
	case ast.UnaryExpression:
		walkCalls(arena, n.Operand, visit)
	case ast.MemberExpression:
		walkCalls(arena, n.Object, visit)
		if n.Computed {
			walkCalls(arena, n.Property, visit)
		}
	}
}
