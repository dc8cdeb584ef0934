package workerbus

import (
	"fmt"
	"time"

	"wasmjit/internal/assembler"
	"wasmjit/internal/cache"
	"wasmjit/internal/callgraph"
	"wasmjit/internal/codegen"
	"wasmjit/internal/config"
	"wasmjit/internal/features"
	"wasmjit/internal/predictor"
	"wasmjit/internal/profile"
)

// ProfilerWorker answers the profiler commands of spec.md §6: `profile`,
// `findHotPaths{maxDepth}`, `getRecommendations`, `getStats`.
type ProfilerWorker struct {
	Store            *profile.Store
	HotCallThreshold int
}

func (w *ProfilerWorker) Name() string { return "profiler" }

func (w *ProfilerWorker) Handle(req Request) Response {
	switch req.Command {
	case "profile":
		name, _ := req.Data.(string)
		p := w.Store.Get(name)
		if p == nil {
			return errResp(req, fmt.Errorf("profiler: no profile for %q", name))
		}
		return Response{ID: req.ID, Command: req.Command, Result: p}
	case "findHotPaths":
		maxDepth, _ := req.Data.(int)
		return Response{ID: req.ID, Command: req.Command, Result: w.findHotPaths(maxDepth)}
	case "getRecommendations":
		return Response{ID: req.ID, Command: req.Command, Result: w.recommendations()}
	case "getStats":
		return Response{ID: req.ID, Command: req.Command, Result: w.Store.All()}
	default:
		return errResp(req, fmt.Errorf("profiler: unknown command %q", req.Command))
	}
}

func (w *ProfilerWorker) findHotPaths(maxDepth int) []string {
	var hot []string
	for _, p := range w.Store.All() {
		if profile.ClassifyTier(p.CallCount, w.HotCallThreshold) == profile.TierCold {
			continue
		}
		if w.Store.Graph().Depth(p.Name) <= maxDepth {
			hot = append(hot, p.Name)
		}
	}
	return hot
}

func (w *ProfilerWorker) recommendations() map[string]string {
	out := make(map[string]string)
	for _, p := range w.Store.All() {
		switch profile.ClassifyTier(p.CallCount, w.HotCallThreshold) {
		case profile.TierHot:
			out[p.Name] = "prioritize for optimization"
		case profile.TierWarm:
			out[p.Name] = "monitor"
		default:
			out[p.Name] = "leave unoptimized"
		}
	}
	return out
}

// AnalyzerWorker answers `analyze{profiles, callGraph}`,
// `analyzeFunction{profile}`, `getStrategies`.
type AnalyzerWorker struct {
	Network *predictor.Network
}

func (w *AnalyzerWorker) Name() string { return "analyzer" }

// AnalyzeFunctionInput is the payload shape for `analyzeFunction`.
type AnalyzeFunctionInput struct {
	Profile    *profile.FunctionProfile
	Graph      *callgraph.Graph
	HotCallThr int
	Budget     int
}

func (w *AnalyzerWorker) Handle(req Request) Response {
	switch req.Command {
	case "analyzeFunction":
		in, ok := req.Data.(AnalyzeFunctionInput)
		if !ok {
			return errResp(req, fmt.Errorf("analyzer: bad payload for analyzeFunction"))
		}
		vec := extractVector(in.Profile, in.Graph, in.HotCallThr)
		speedups := predictor.Predict(w.Network, vec[:])
		plan := predictor.SelectPlan(speedups, in.Budget)
		recursive := in.Graph != nil && in.Graph.IsRecursive(in.Profile.Name)
		plan = predictor.DisableInliningForRecursion(plan, recursive)
		return Response{ID: req.ID, Command: req.Command, Result: plan}
	case "analyze":
		in, ok := req.Data.(map[string]*profile.FunctionProfile)
		if !ok {
			return errResp(req, fmt.Errorf("analyzer: bad payload for analyze"))
		}
		plans := make(map[string]predictor.Plan, len(in))
		for name, p := range in {
			vec := extractVector(p, nil, 100)
			speedups := predictor.Predict(w.Network, vec[:])
			plans[name] = predictor.SelectPlan(speedups, 10)
		}
		return Response{ID: req.ID, Command: req.Command, Result: plans}
	case "getStrategies":
		return Response{ID: req.ID, Command: req.Command, Result: allStrategyNames()}
	default:
		return errResp(req, fmt.Errorf("analyzer: unknown command %q", req.Command))
	}
}

func allStrategyNames() []string {
	names := make([]string, 0, 7)
	for k := predictor.Inlining; k.String() != "Unknown"; k++ {
		names = append(names, k.String())
		if len(names) == 7 {
			break
		}
	}
	return names
}

// CodegenWorker answers `generateAll{profiles, optimizations}`,
// `generateSingle{profile, optimizations}`, `getStatistics`, `reset`.
type CodegenWorker struct {
	cfg      config.Config
	stats    codegenStats
}

type codegenStats struct {
	generated int
}

func NewCodegenWorker(cfg config.Config) *CodegenWorker {
	return &CodegenWorker{cfg: cfg}
}

func (w *CodegenWorker) Name() string { return "codegen" }

// GenerateSingleInput is the payload shape for `generateSingle`.
type GenerateSingleInput struct {
	Lowered   *codegen.Func
	Plan      predictor.Plan
	Lookup    func(name string) *codegen.Func
}

func (w *CodegenWorker) Handle(req Request) Response {
	switch req.Command {
	case "generateSingle":
		in, ok := req.Data.(GenerateSingleInput)
		if !ok {
			return errResp(req, fmt.Errorf("codegen: bad payload for generateSingle"))
		}
		codegen.ApplyPlan(in.Lowered, in.Plan.Selected, codegen.Config{UnrollFactor: w.cfg.UnrollFactor}, in.Lookup)
		w.stats.generated++
		return Response{ID: req.ID, Command: req.Command, Result: in.Lowered}
	case "generateAll":
		in, ok := req.Data.([]GenerateSingleInput)
		if !ok {
			return errResp(req, fmt.Errorf("codegen: bad payload for generateAll"))
		}
		out := make([]*codegen.Func, 0, len(in))
		for _, item := range in {
			codegen.ApplyPlan(item.Lowered, item.Plan.Selected, codegen.Config{UnrollFactor: w.cfg.UnrollFactor}, item.Lookup)
			out = append(out, item.Lowered)
		}
		w.stats.generated += len(in)
		return Response{ID: req.ID, Command: req.Command, Result: out}
	case "getStatistics":
		return Response{ID: req.ID, Command: req.Command, Result: w.stats}
	case "reset":
		w.stats = codegenStats{}
		return Response{ID: req.ID, Command: req.Command}
	default:
		return errResp(req, fmt.Errorf("codegen: unknown command %q", req.Command))
	}
}

// WasmWorker answers `compile{wat, name}`, `compileAll{watSources}`,
// `instantiate{moduleName, imports}`, `getStatistics`,
// `getModuleInfo{moduleName}`, `clearCache`. The `wat`/`watSources`
// inputs here are already-lowered codegen.Module values rather than
// re-parsed text, since this pipeline never round-trips through the
// textual form internally (Render exists purely for inspection, per
// spec.md §4.7).
type WasmWorker struct {
	Cache *cache.Store
	stats wasmStats
}

type wasmStats struct {
	compiled int
	cacheHits int
}

func NewWasmWorker(c *cache.Store) *WasmWorker {
	return &WasmWorker{Cache: c}
}

func (w *WasmWorker) Name() string { return "wasm" }

// CompileInput is the payload shape for `compile`.
type CompileInput struct {
	Module       *codegen.Module
	Name         string
	Source       string
	PlanSignature string
}

func (w *WasmWorker) Handle(req Request) Response {
	switch req.Command {
	case "compile":
		in, ok := req.Data.(CompileInput)
		if !ok {
			return errResp(req, fmt.Errorf("wasm: bad payload for compile"))
		}
		return w.compile(req, in)
	case "compileAll":
		in, ok := req.Data.([]CompileInput)
		if !ok {
			return errResp(req, fmt.Errorf("wasm: bad payload for compileAll"))
		}
		results := make([]Response, 0, len(in))
		for _, item := range in {
			results = append(results, w.compile(req, item))
		}
		return Response{ID: req.ID, Command: req.Command, Result: results}
	case "instantiate":
		// Instantiation (loading the binary into a WASM runtime) is a
		// host concern outside this compiler's scope (spec.md's
		// "Deliberately out of scope" host-integration list); this
		// command acknowledges the request without a runtime to hand
		// the module to.
		return Response{ID: req.ID, Command: req.Command, Result: "instantiation is a host responsibility"}
	case "getStatistics":
		return Response{ID: req.ID, Command: req.Command, Result: w.stats}
	case "getModuleInfo":
		name, _ := req.Data.(string)
		if w.Cache == nil {
			return errResp(req, fmt.Errorf("wasm: no cache configured"))
		}
		info, ok, err := w.Cache.GetModuleInfo(name)
		if err != nil {
			return errResp(req, err)
		}
		if !ok {
			return errResp(req, fmt.Errorf("wasm: no cached module for %q", name))
		}
		return Response{ID: req.ID, Command: req.Command, Result: info}
	case "clearCache":
		if w.Cache == nil {
			return Response{ID: req.ID, Command: req.Command}
		}
		if err := w.Cache.ClearCache(); err != nil {
			return errResp(req, err)
		}
		return Response{ID: req.ID, Command: req.Command}
	default:
		return errResp(req, fmt.Errorf("wasm: unknown command %q", req.Command))
	}
}

func (w *WasmWorker) compile(req Request, in CompileInput) Response {
	var key string
	if w.Cache != nil {
		key = cache.Key(in.Source, in.Name, in.PlanSignature)
		if info, ok, _ := w.Cache.Get(key); ok {
			w.stats.cacheHits++
			return Response{ID: req.ID, Command: "compile", Result: info.Binary}
		}
	}

	binary, errs := assembler.Assemble(in.Module)
	if len(errs) > 0 {
		return Response{ID: req.ID, Command: "compile", Err: fmt.Errorf("%v", errs)}
	}
	w.stats.compiled++

	if w.Cache != nil {
		_ = w.Cache.Put(key, in.Name, in.Module.Render(), binary, time.Now())
	}
	return Response{ID: req.ID, Command: "compile", Result: binary}
}

func errResp(req Request, err error) Response {
	return Response{ID: req.ID, Command: req.Command, Err: err}
}

func extractVector(p *profile.FunctionProfile, g *callgraph.Graph, hotThreshold int) [50]float64 {
	return features.Extract(p, g, hotThreshold)
}
