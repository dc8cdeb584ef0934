package predictor

import (
	"math"
	"sort"
)

// Kind is the closed set of optimizations the predictor can select,
// per spec §3.
type Kind int

const (
	Inlining Kind = iota
	LoopUnrolling
	Vectorization
	ConstantFolding
	TailCallOptimization
	CommonSubexpressionElimination
	StrengthReduction
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Inlining:
		return "Inlining"
	case LoopUnrolling:
		return "LoopUnrolling"
	case Vectorization:
		return "Vectorization"
	case ConstantFolding:
		return "ConstantFolding"
	case TailCallOptimization:
		return "TailCallOptimization"
	case CommonSubexpressionElimination:
		return "CommonSubexpressionElimination"
	case StrengthReduction:
		return "StrengthReduction"
	default:
		return "Unknown"
	}
}

// costTable and sizeTable are the fixed tables from spec §4.5. Index
// order matches the Kind iota declaration above.
var costTable = [numKinds]int{
	Inlining:                        2,
	LoopUnrolling:                   4,
	Vectorization:                   5,
	ConstantFolding:                 1,
	TailCallOptimization:            3,
	CommonSubexpressionElimination:  3,
	StrengthReduction:               2,
}

var sizeTable = [numKinds]float64{
	Inlining:                        1.5,
	LoopUnrolling:                   3.0,
	Vectorization:                   1.2,
	ConstantFolding:                 0.9,
	TailCallOptimization:            1.0,
	CommonSubexpressionElimination:  1.1,
	StrengthReduction:               1.0,
}

// Cost returns the fixed compilation-cost unit for kind.
func Cost(kind Kind) int { return costTable[kind] }

// SizeMultiplier returns the fixed code-size multiplier for kind.
func SizeMultiplier(kind Kind) float64 { return sizeTable[kind] }

// Plan is the per-function result named in spec §3: an ordered selection
// of optimizations whose total cost stays within budget, plus the
// expected multiplicative speedup.
type Plan struct {
	Selected       []Kind
	TotalCost      int
	ExpectedSpeedup float64
}

// Predict maps a feature vector to seven clamped speedup coefficients
// (one per Kind, ordered as the Kind iota declares), never below 1.0 —
// per spec §4.5's "no pessimization" rule.
func Predict(n *Network, featureVector []float64) [numKinds]float64 {
	raw := n.Forward(featureVector)
	var out [numKinds]float64
	for i := 0; i < int(numKinds) && i < len(raw); i++ {
		v := raw[i]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 1.0 {
			v = 1.0
		}
		out[i] = v
	}
	return out
}

// SelectPlan runs the greedy budget-constrained selection of spec §4.5:
// score = (speedup-1) / (cost * sqrt(size)), sorted descending, greedily
// added while accumulated cost stays within budget. Selection order is
// deterministic for identical inputs (ties broken by Kind order), per
// spec §8's testable property.
func SelectPlan(speedups [numKinds]float64, budget int) Plan {
	type scored struct {
		kind  Kind
		score float64
	}
	candidates := make([]scored, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		score := (speedups[k] - 1) / (float64(costTable[k]) * math.Sqrt(sizeTable[k]))
		candidates = append(candidates, scored{kind: k, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].kind < candidates[j].kind
	})

	plan := Plan{ExpectedSpeedup: 1.0}
	for _, c := range candidates {
		cost := costTable[c.kind]
		if plan.TotalCost+cost > budget {
			continue
		}
		plan.Selected = append(plan.Selected, c.kind)
		plan.TotalCost += cost
		plan.ExpectedSpeedup *= speedups[c.kind]
	}
	return plan
}

// DisableInliningForRecursion removes Inlining from a candidate plan when
// the function participates in a call-graph cycle, per spec §8's rule
// that a call-graph cycle disables Inlining for all its members.
func DisableInliningForRecursion(plan Plan, recursive bool) Plan {
	if !recursive {
		return plan
	}
	filtered := plan
	filtered.Selected = filtered.Selected[:0]
	filtered.TotalCost = 0
	filtered.ExpectedSpeedup = 1.0
	for _, k := range plan.Selected {
		if k == Inlining {
			continue
		}
		filtered.Selected = append(filtered.Selected, k)
		filtered.TotalCost += costTable[k]
	}
	return filtered
}
