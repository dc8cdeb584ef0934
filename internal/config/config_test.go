package config

import "testing"

func TestDefaultMatchesSpecConstants(t *testing.T) {
	c := Default()
	if c.OptimizationBudget != 10 {
		t.Fatalf("expected optimization budget 10, got %d", c.OptimizationBudget)
	}
	if c.UnrollFactor != 4 {
		t.Fatalf("expected unroll factor 4, got %d", c.UnrollFactor)
	}
	if c.SampleCapacity != 1000 {
		t.Fatalf("expected sample capacity 1000, got %d", c.SampleCapacity)
	}
	if c.HotCallThreshold != 100 {
		t.Fatalf("expected hot call threshold 100, got %d", c.HotCallThreshold)
	}
	want := []int{50, 128, 64, 32, 7}
	if len(c.Predictor.Architecture) != len(want) {
		t.Fatalf("unexpected architecture length: %v", c.Predictor.Architecture)
	}
	for i, v := range want {
		if c.Predictor.Architecture[i] != v {
			t.Fatalf("architecture[%d]: got %d want %d", i, c.Predictor.Architecture[i], v)
		}
	}
}
