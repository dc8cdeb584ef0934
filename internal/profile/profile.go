// Package profile implements the profile collector of spec §4.4: the set
// of FunctionProfile records plus the call graph, updated by record-call,
// note-edge, and static-analyze. It generalizes the teacher's
// internal/jit/jit.go Profiler (a bare call-count map keyed by *Function,
// triggering JIT tiers at two fixed thresholds) into the full static +
// dynamic profile record the spec's data model names, and replaces the
// teacher's pointer-keyed map with a name-keyed store so it composes with
// the callgraph package's index-addressed graph.
package profile

import (
	"math"
	"sync"

	"wasmjit/internal/ast"
	"wasmjit/internal/callgraph"
)

// StaticStats holds the code statistics gathered once per function by
// static-analyze, per spec §3's FunctionProfile fields.
type StaticStats struct {
	LineCount         int
	CyclomaticComplex int
	MaxNestingDepth    int
	LoopCount         int
	ConditionalCount  int
	CallCount         int
	ArrayOpCount      int
	ObjectOpCount     int
	ArithmeticCount   int
	ComparisonCount   int
	LogicalCount      int
	BitwiseCount      int
	AssignmentCount   int
	HasLoop           bool
	HasConditional    bool
	HasAsync          bool
	HasRecursion      bool
	IsLeaf            bool
}

// ArgShape is a coarse runtime argument-shape key (the type kind name of
// each argument, joined), used to build the histogram backing feature
// indices 35-39.
type ArgShape string

// FunctionProfile is the per-function record named in spec §3.
type FunctionProfile struct {
	Name   string
	Source string

	Static StaticStats

	CallCount    int
	TotalTimeNs  float64
	MinTimeNs    float64
	MaxTimeNs    float64
	timeSum      float64
	timeSumSq    float64
	Samples      []float64 // FIFO-capped timing samples, nanoseconds
	sampleCap    int

	ArgShapeHist map[ArgShape]int

	mu sync.Mutex
}

func newProfile(name, source string, sampleCap int) *FunctionProfile {
	return &FunctionProfile{
		Name:         name,
		Source:       source,
		MinTimeNs:    math.Inf(1),
		ArgShapeHist: make(map[ArgShape]int),
		sampleCap:    sampleCap,
	}
}

// AvgTimeNs returns total/count, 0 when count is 0, preserving the
// invariant avg = total / count when count > 0 (spec §3).
func (p *FunctionProfile) AvgTimeNs() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CallCount == 0 {
		return 0
	}
	return p.TotalTimeNs / float64(p.CallCount)
}

// MinTimeNsOrZero returns MinTimeNs, or 0 when no calls have been
// recorded yet (MinTimeNs otherwise starts at +Inf, which the feature
// extractor's normalization step would rather not see).
func (p *FunctionProfile) MinTimeNsOrZero() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CallCount == 0 {
		return 0
	}
	return p.MinTimeNs
}

// Variance and StdDev are computed from the running sum and sum-of-squares
// so they stay O(1) per call rather than rescanning the sample list.
func (p *FunctionProfile) Variance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.varianceLocked()
}

func (p *FunctionProfile) varianceLocked() float64 {
	if p.CallCount < 2 {
		return 0
	}
	n := float64(p.CallCount)
	mean := p.timeSum / n
	v := p.timeSumSq/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func (p *FunctionProfile) StdDev() float64 {
	return math.Sqrt(p.Variance())
}

// recordCall updates running statistics for one observed call, matching
// the monotonic-counter invariant: count, total, min, max only ever grow
// or tighten toward the new observation.
func (p *FunctionProfile) recordCall(durationNs float64, argShape ArgShape) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount++
	p.TotalTimeNs += durationNs
	p.timeSum += durationNs
	p.timeSumSq += durationNs * durationNs
	if durationNs < p.MinTimeNs {
		p.MinTimeNs = durationNs
	}
	if durationNs > p.MaxTimeNs {
		p.MaxTimeNs = durationNs
	}
	p.Samples = append(p.Samples, durationNs)
	if len(p.Samples) > p.sampleCap {
		p.Samples = p.Samples[len(p.Samples)-p.sampleCap:]
	}
	if argShape != "" {
		p.ArgShapeHist[argShape]++
	}
}

// Percentile returns the pth percentile (0-100) of the current sample
// list using nearest-rank interpolation over a sorted copy.
func (p *FunctionProfile) Percentile(pct float64) float64 {
	p.mu.Lock()
	samples := append([]float64(nil), p.Samples...)
	p.mu.Unlock()
	if len(samples) == 0 {
		return 0
	}
	sortFloats(samples)
	idx := int(math.Ceil(pct/100*float64(len(samples)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	return samples[idx]
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// Store owns every FunctionProfile and the shared call graph. Mutation
// discipline follows spec §5: a single writer at a time per function
// record (enforced by each FunctionProfile's own mutex), the call graph
// append-only during profiling.
type Store struct {
	mu        sync.RWMutex
	profiles  map[string]*FunctionProfile
	graph     *callgraph.Graph
	sampleCap int
}

// NewStore creates an empty Store with the given per-function sample cap
// (spec §6 sampleCapacity, default 1000).
func NewStore(sampleCap int) *Store {
	if sampleCap <= 0 {
		sampleCap = 1000
	}
	return &Store{
		profiles:  make(map[string]*FunctionProfile),
		graph:     callgraph.New(),
		sampleCap: sampleCap,
	}
}

// Graph exposes the underlying call graph for read access.
func (s *Store) Graph() *callgraph.Graph {
	return s.graph
}

// Get returns the profile for name, creating an empty one if absent.
func (s *Store) Get(name string) *FunctionProfile {
	s.mu.RLock()
	p, ok := s.profiles[name]
	s.mu.RUnlock()
	if ok {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[name]; ok {
		return p
	}
	p = newProfile(name, "", s.sampleCap)
	s.profiles[name] = p
	return p
}

// All returns every known profile, snapshotted under the store lock.
func (s *Store) All() []*FunctionProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FunctionProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// RecordCall implements spec §4.4's record-call(name, duration, arg-shapes).
func (s *Store) RecordCall(name string, durationNs float64, argShape ArgShape) {
	s.Get(name).recordCall(durationNs, argShape)
}

// NoteEdge implements note-edge(caller, callee): inserts the edge and its
// reverse into the call graph.
func (s *Store) NoteEdge(caller, callee string) {
	s.graph.AddEdge(caller, callee)
	s.Get(caller)
	s.Get(callee)
}

// StaticAnalyze implements static-analyze(name, source): called once when
// a function is first seen, filling static code statistics by walking the
// already-parsed AST for that function's body.
func (s *Store) StaticAnalyze(name, source string, arena *ast.Arena, fnNode ast.NodeID) {
	p := s.Get(name)
	p.mu.Lock()
	if p.Source != "" {
		p.mu.Unlock()
		return
	}
	p.Source = source
	p.mu.Unlock()

	w := &statWalker{arena: arena, selfName: name}
	w.walk(fnNode, 0)
	w.stats.LineCount = countLines(source)
	w.stats.IsLeaf = w.stats.CallCount == 0
	w.stats.HasRecursion = w.sawSelfCall

	p.mu.Lock()
	p.Static = w.stats
	p.mu.Unlock()
}

func countLines(source string) int {
	if source == "" {
		return 0
	}
	n := 1
	for _, c := range source {
		if c == '\n' {
			n++
		}
	}
	return n
}

// statWalker accumulates static statistics over a function's AST, per the
// positions documented in spec §4.3 (indices 0-19).
type statWalker struct {
	arena       *ast.Arena
	selfName    string
	sawSelfCall bool
	stats       StaticStats
}

func (w *statWalker) walk(id ast.NodeID, depth int) {
	if id == ast.Invalid {
		return
	}
	if depth > w.stats.MaxNestingDepth {
		w.stats.MaxNestingDepth = depth
	}
	n := w.arena.Get(id)
	switch n.Kind {
	case ast.FunctionDeclaration, ast.ArrowFunctionExpression:
		w.walk(n.FuncBody, depth)
	case ast.BlockStatement:
		for _, s := range n.Body {
			w.walk(s, depth)
		}
	case ast.IfStatement:
		w.stats.ConditionalCount++
		w.stats.HasConditional = true
		w.stats.CyclomaticComplex++
		w.walk(n.Test, depth)
		w.walk(n.Consequent, depth+1)
		w.walk(n.Alternate, depth+1)
	case ast.WhileStatement:
		w.stats.LoopCount++
		w.stats.HasLoop = true
		w.stats.CyclomaticComplex++
		w.walk(n.Test, depth)
		w.walk(n.Loop, depth+1)
	case ast.ForStatement:
		w.stats.LoopCount++
		w.stats.HasLoop = true
		w.stats.CyclomaticComplex++
		w.walk(n.ForInit, depth)
		w.walk(n.ForTest, depth)
		w.walk(n.ForUpdate, depth)
		w.walk(n.ForBody, depth+1)
	case ast.ReturnStatement:
		w.walk(n.Argument, depth)
	case ast.VariableDeclaration:
		w.walk(n.Init, depth)
	case ast.ExpressionStatement:
		w.walk(n.Expr, depth)
	case ast.BinaryExpression:
		w.classifyOp(n.Operator)
		w.walk(n.Left, depth)
		w.walk(n.Right, depth)
	case ast.UnaryExpression:
		w.walk(n.Operand, depth)
	case ast.AssignmentExpression:
		w.stats.AssignmentCount++
		w.walk(n.Left, depth)
		w.walk(n.Right, depth)
	case ast.CallExpression:
		w.stats.CallCount++
		if callee := w.arena.Get(n.Callee); callee.Kind == ast.Identifier && callee.IdentName == w.selfName {
			w.sawSelfCall = true
		}
		w.walk(n.Callee, depth)
		for _, a := range n.Args {
			w.walk(a, depth)
		}
	case ast.MemberExpression:
		w.stats.ArrayOpCount++
		w.walk(n.Object, depth)
		if n.Computed {
			w.walk(n.Property, depth)
		}
	}
}

func (w *statWalker) classifyOp(op string) {
	switch op {
	case "+", "-", "*", "/", "%":
		w.stats.ArithmeticCount++
	case "==", "===", "!=", "!==", "<", ">", "<=", ">=":
		w.stats.ComparisonCount++
	case "&&", "||":
		w.stats.LogicalCount++
	case "&", "|", "^", "<<", ">>":
		w.stats.BitwiseCount++
	}
}
