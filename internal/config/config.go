// Package config holds the tunables referenced throughout the pipeline
// (optimization budget, predictor architecture, sampling, hotness
// threshold), grounded on spec.md §6's configuration surface and given
// concrete defaults per spec.md §4.4/§4.5.
package config

// PredictorConfig configures internal/predictor.Network construction.
type PredictorConfig struct {
	// Architecture is the per-layer neuron count, input layer first
	// (must start at features.VectorLength) and output layer last (must
	// equal the number of predictor.Kind values).
	Architecture []int
	LearningRate float64
}

// Config is the full set of compiler tunables.
type Config struct {
	// OptimizationBudget is the per-function compilation-cost ceiling
	// spent by predictor.SelectPlan, per spec.md §4.5.
	OptimizationBudget int
	// UnrollFactor is the default LoopUnrolling duplication factor.
	UnrollFactor int
	// SampleCapacity bounds the FIFO timing-sample list kept per
	// function profile, per spec.md §4.4.
	SampleCapacity int
	// HotCallThreshold is the call count at which a function is
	// classified profile.TierWarm (ten times that, profile.TierHot).
	HotCallThreshold int
	Predictor        PredictorConfig
}

// Default returns the configuration the pipeline uses absent explicit
// overrides.
func Default() Config {
	return Config{
		OptimizationBudget: 10,
		UnrollFactor:       4,
		SampleCapacity:     1000,
		HotCallThreshold:   100,
		Predictor: PredictorConfig{
			Architecture: []int{50, 128, 64, 32, 7},
			LearningRate: 1e-3,
		},
	}
}
