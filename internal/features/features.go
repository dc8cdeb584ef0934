// Package features implements the feature extractor of spec §4.3: a pure
// function from a FunctionProfile to a fixed 50-element normalized
// numeric vector. The teacher has no direct analogue (its internal/ml
// package does ad hoc string-matching on already-named "features"), so
// the index layout here is grounded directly on the spec's own positions
// table rather than any pack file.
package features

import (
	"math"

	"wasmjit/internal/profile"
)

// VectorLength is the fixed feature-vector length named in spec §3.
const VectorLength = 50

// Extract produces the 50-element vector for p, using graph for the
// call-graph-derived indices (30-34) and hotCallThreshold for the
// hotness flags, per spec §6's configuration.
func Extract(p *profile.FunctionProfile, g callGraph, hotCallThreshold int) [VectorLength]float64 {
	var v [VectorLength]float64
	s := p.Static

	// 0-19: static code statistics.
	v[0] = norm(float64(s.LineCount))
	v[1] = norm(float64(s.CyclomaticComplex))
	v[2] = norm(float64(s.MaxNestingDepth))
	v[3] = norm(float64(totalOps(s)))
	v[4] = norm(float64(s.LineCount)) // code length proxy, same units as line count
	v[5] = norm(float64(s.ConditionalCount))
	v[6] = norm(float64(s.LoopCount))
	v[7] = norm(float64(s.CallCount))
	v[8] = norm(float64(s.ArrayOpCount))
	v[9] = norm(float64(s.ObjectOpCount))
	v[10] = norm(float64(s.ArithmeticCount))
	v[11] = norm(float64(s.ComparisonCount))
	v[12] = norm(float64(s.LogicalCount))
	v[13] = norm(float64(s.BitwiseCount))
	v[14] = norm(float64(s.AssignmentCount))
	v[15] = boolFloat(s.HasLoop)
	v[16] = boolFloat(s.HasConditional)
	v[17] = boolFloat(s.HasAsync)
	v[18] = boolFloat(s.HasRecursion)
	v[19] = boolFloat(s.IsLeaf)

	// 20-29: dynamic.
	v[20] = norm(math.Log1p(float64(p.CallCount)))
	v[21] = norm(p.AvgTimeNs())
	v[22] = norm(p.TotalTimeNs)
	v[23] = norm(p.MinTimeNsOrZero())
	v[24] = norm(p.MaxTimeNs)
	v[25] = norm(p.Variance())
	v[26] = norm(p.StdDev())
	v[27] = boolFloat(p.CallCount >= hotCallThreshold)
	v[28] = norm(p.Percentile(95))
	v[29] = norm(p.Percentile(99))

	// 30-34: call-graph.
	if g != nil {
		v[30] = norm(float64(g.OutDegree(p.Name)))
		v[31] = norm(float64(g.InDegree(p.Name)))
		v[32] = norm(float64(g.Depth(p.Name)))
		v[33] = boolFloat(g.IsRecursive(p.Name))
		v[34] = norm(float64(g.OutDegree(p.Name)))
	}

	// 35-39: argument-pattern summaries, resolved per the spec's open
	// question as modal-frequency (the most common argument shape's
	// share of all observed calls), since it stays stable at the low
	// sample counts typical early in a function's profiling lifetime,
	// unlike an entropy estimate.
	modal, total := modalFrequency(p)
	v[35] = modal
	v[36] = norm(float64(total))
	v[37] = norm(float64(len(p.ArgShapeHist)))
	v[38] = modal
	v[39] = boolFloat(total > 0 && modal > 0.9)

	// 40-49: optimization hints.
	v[40] = boolFloat(s.HasLoop && s.ArrayOpCount > 0) // vectorizable loop
	v[41] = boolFloat(s.LineCount > 0 && s.LineCount <= 20 && !s.HasRecursion) // inlinable size
	v[42] = boolFloat(s.HasRecursion && s.IsLeaf == false)                    // tail-recursive shape (candidate)
	v[43] = boolFloat(s.ArithmeticCount > s.CallCount)                        // common-subexpression likely
	v[44] = boolFloat(s.ArithmeticCount > 0)                                  // strength-reduction opportunity
	v[45] = norm(float64(s.LoopCount) * float64(s.MaxNestingDepth))
	v[46] = norm(float64(s.CyclomaticComplex))
	v[47] = boolFloat(s.HasLoop)
	v[48] = boolFloat(s.CallCount > 0)
	v[49] = norm(float64(s.AssignmentCount))

	for i := range v {
		if !isFinite(v[i]) {
			v[i] = 0
		}
	}
	return v
}

// callGraph is the minimal surface features.Extract needs from
// *callgraph.Graph, kept as an interface so this package does not import
// internal/callgraph directly and stays a pure function of its inputs.
type callGraph interface {
	OutDegree(name string) int
	InDegree(name string) int
	Depth(name string) int
	IsRecursive(name string) bool
}

func totalOps(s profile.StaticStats) int {
	return s.ArithmeticCount + s.ComparisonCount + s.LogicalCount + s.BitwiseCount +
		s.AssignmentCount + s.CallCount + s.ArrayOpCount + s.ObjectOpCount
}

func modalFrequency(p *profile.FunctionProfile) (modalShare float64, total int) {
	best := 0
	for _, count := range p.ArgShapeHist {
		total += count
		if count > best {
			best = count
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(best) / float64(total), total
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// norm implements spec §4.3's normalization rule: non-finite -> 0, values
// above 1000 log-compressed, (10,100] divided by 10, (100,1000] divided
// by 100, [0,10] passed through.
func norm(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	if x < 0 {
		x = -x
	}
	switch {
	case x > 1000:
		return math.Log10(x)
	case x > 100:
		return x / 100
	case x > 10:
		return x / 10
	default:
		return x
	}
}
