package predictor

import (
	"math"
	"math/rand"
	"testing"
)

func TestForwardOutputLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n := NewNetwork([]int{50, 128, 64, 32, 7}, 1e-3, rng)
	input := make([]float64, 50)
	for i := range input {
		input[i] = 0.1
	}
	out := n.Forward(input)
	if len(out) != 7 {
		t.Fatalf("expected output length 7, got %d", len(out))
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("output %d is non-finite: %v", i, v)
		}
	}
}

func TestTrainingReducesMSE(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := NewNetwork([]int{50, 128, 64, 32, 7}, 1e-3, rng)

	dataRng := rand.New(rand.NewSource(7))
	data := make([]Dataset, 32)
	for i := range data {
		feat := make([]float64, 50)
		for j := range feat {
			feat[j] = dataRng.Float64()
		}
		expected := make([]float64, 7)
		for j := range expected {
			expected[j] = 1 + dataRng.Float64()
		}
		data[i] = Dataset{Features: feat, Expected: expected}
	}

	mses := n.TrainBatch(data, 100, rand.New(rand.NewSource(99)))
	if len(mses) != 100 {
		t.Fatalf("expected 100 epoch MSE values, got %d", len(mses))
	}
	if !(mses[len(mses)-1] < mses[0]) {
		t.Fatalf("expected final MSE below initial MSE, got initial=%v final=%v", mses[0], mses[len(mses)-1])
	}
}

func TestDeterministicGivenFixedSeed(t *testing.T) {
	build := func() *Network {
		rng := rand.New(rand.NewSource(123))
		return NewNetwork([]int{50, 128, 64, 32, 7}, 1e-3, rng)
	}
	input := make([]float64, 50)
	for i := range input {
		input[i] = 0.5
	}
	n1 := build()
	out1 := n1.Forward(input)
	n2 := build()
	out2 := n2.Forward(input)
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("expected bit-identical outputs for the same seed at index %d: %v vs %v", i, out1[i], out2[i])
		}
	}
}

func TestSelectPlanStaysWithinBudget(t *testing.T) {
	speedups := [numKinds]float64{
		Inlining: 2.0, LoopUnrolling: 1.8, Vectorization: 1.5, ConstantFolding: 1.2,
		TailCallOptimization: 1.9, CommonSubexpressionElimination: 1.3, StrengthReduction: 1.1,
	}
	plan := SelectPlan(speedups, 10)
	if plan.TotalCost > 10 {
		t.Fatalf("expected total cost <= budget, got %d", plan.TotalCost)
	}
	if len(plan.Selected) == 0 {
		t.Fatalf("expected at least one optimization selected")
	}
}

func TestSelectPlanIsDeterministic(t *testing.T) {
	speedups := [numKinds]float64{
		Inlining: 1.5, LoopUnrolling: 1.5, Vectorization: 1.1, ConstantFolding: 1.05,
		TailCallOptimization: 1.3, CommonSubexpressionElimination: 1.2, StrengthReduction: 1.05,
	}
	p1 := SelectPlan(speedups, 10)
	p2 := SelectPlan(speedups, 10)
	if len(p1.Selected) != len(p2.Selected) {
		t.Fatalf("expected identical selection across runs")
	}
	for i := range p1.Selected {
		if p1.Selected[i] != p2.Selected[i] {
			t.Fatalf("expected identical selection order at index %d", i)
		}
	}
}

func TestRecursionDisablesInlining(t *testing.T) {
	speedups := [numKinds]float64{Inlining: 3.0, StrengthReduction: 1.1}
	plan := SelectPlan(speedups, 10)
	filtered := DisableInliningForRecursion(plan, true)
	for _, k := range filtered.Selected {
		if k == Inlining {
			t.Fatalf("expected Inlining to be removed for a recursive function")
		}
	}
}
