// Package predictor implements the neural optimization predictor of
// spec §4.5: a feed-forward network mapping a 50-dim feature vector to
// seven predicted per-optimization speedup coefficients, plus the
// greedy budget-constrained selection algorithm built on top of it.
//
// The teacher's own internal/ml/ml.go is rule-based string matching over
// feature names ("error", "rate", "entropy") with no real weights or
// backpropagation, so the network implementation here is grounded
// instead on SeleniaProject-Orizon's internal/stdlib/ml/ml.go
// (NewNeuralNetwork, AddLayer's Xavier-limit initialization, Forward,
// Backward, Train) — the only genuine feed-forward/backprop
// implementation in the retrieved example pack. Dense matrices use
// gonum.org/v1/gonum/mat, grounded on lookatitude-beluga-ai's use of
// gonum.org/v1/gonum/floats for vector arithmetic in
// pkg/vectorstores/vectorstores/inmemory.go, the only pack repo wiring a
// real numerical dependency to concrete code.
package predictor

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation selects the nonlinearity applied to a layer's pre-activation
// values. Hidden layers use ReLU, the output layer uses Linear, per
// spec §3's NeuralNetwork data model.
type Activation int

const (
	ReLU Activation = iota
	Linear
)

func apply(a Activation, z float64) float64 {
	if a == ReLU {
		if z > 0 {
			return z
		}
		return 0
	}
	return z
}

func derivative(a Activation, z float64) float64 {
	if a == ReLU {
		if z > 0 {
			return 1
		}
		return 0
	}
	return 1
}

// Layer is one dense layer: weights W[out x in], bias b[out], and an
// activation selector, matching the NeuralNetwork data model in spec §3.
type Layer struct {
	W          *mat.Dense
	B          *mat.VecDense
	Activation Activation

	// cached forward-pass state, reused by Backward.
	lastInput *mat.VecDense
	preAct    *mat.VecDense
	postAct   *mat.VecDense
}

func newLayer(in, out int, activation Activation, rng *rand.Rand) *Layer {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := mat.NewDense(out, in, nil)
	for r := 0; r < out; r++ {
		for c := 0; c < in; c++ {
			w.Set(r, c, (rng.Float64()*2-1)*limit)
		}
	}
	b := mat.NewVecDense(out, make([]float64, out))
	return &Layer{W: w, B: b, Activation: activation}
}

// Network is a sequence of dense layers, mapping feature vectors to
// optimization speedup predictions. Dimensions are configuration, default
// [50,128,64,32,7] per spec §3 and §6.
type Network struct {
	Layers       []*Layer
	LearningRate float64
}

// NewNetwork builds a network with the given layer sizes (len(sizes)-1
// layers total), hidden layers ReLU and the final layer Linear, Xavier-
// limit initialized from rng so results are reproducible given a fixed
// seed (spec §8 scenario 5).
func NewNetwork(sizes []int, learningRate float64, rng *rand.Rand) *Network {
	n := &Network{LearningRate: learningRate}
	for i := 0; i < len(sizes)-1; i++ {
		activation := ReLU
		if i == len(sizes)-2 {
			activation = Linear
		}
		n.Layers = append(n.Layers, newLayer(sizes[i], sizes[i+1], activation, rng))
	}
	return n
}

// Forward runs input through every layer, caching pre/post-activation
// values for the following Backward call, and returns the final layer's
// output as a plain slice.
func (n *Network) Forward(input []float64) []float64 {
	cur := mat.NewVecDense(len(input), append([]float64(nil), input...))
	for _, l := range n.Layers {
		l.lastInput = cur
		rows, _ := l.W.Dims()
		z := mat.NewVecDense(rows, nil)
		z.MulVec(l.W, cur)
		z.AddVec(z, l.B)
		a := mat.NewVecDense(rows, nil)
		for i := 0; i < rows; i++ {
			a.SetVec(i, apply(l.Activation, z.AtVec(i)))
		}
		l.preAct = z
		l.postAct = a
		cur = a
	}
	return denseToSlice(cur)
}

// Backward performs one stochastic-gradient step given the expected
// output vector, following spec §4.5's training contract precisely:
// gradients for every layer are computed first (each layer's backward
// pass reads only pre-update weights), then every weight/bias update is
// applied, and every gradient is elementwise-clamped to [-1,1] with
// non-finite entries zeroed before it is used.
func (n *Network) Backward(expected []float64) {
	L := len(n.Layers)
	deltas := make([]*mat.VecDense, L)

	last := n.Layers[L-1]
	rows, _ := last.W.Dims()
	delta := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		errTerm := last.postAct.AtVec(i) - expected[i]
		d := errTerm * derivative(last.Activation, last.preAct.AtVec(i))
		delta.SetVec(i, clampGrad(d))
	}
	deltas[L-1] = delta

	for l := L - 2; l >= 0; l-- {
		layer := n.Layers[l]
		next := n.Layers[l+1]
		rows, _ := layer.W.Dims()
		d := mat.NewVecDense(rows, nil)
		var propagated mat.VecDense
		propagated.MulVec(next.W.T(), deltas[l+1])
		for i := 0; i < rows; i++ {
			v := propagated.AtVec(i) * derivative(layer.Activation, layer.preAct.AtVec(i))
			d.SetVec(i, clampGrad(v))
		}
		deltas[l] = d
	}

	type pendingUpdate struct {
		dW *mat.Dense
		dB *mat.VecDense
	}
	updates := make([]pendingUpdate, L)
	for l := 0; l < L; l++ {
		layer := n.Layers[l]
		rows, cols := layer.W.Dims()
		dW := mat.NewDense(rows, cols, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dW.Set(r, c, clampGrad(deltas[l].AtVec(r)*layer.lastInput.AtVec(c)))
			}
		}
		updates[l] = pendingUpdate{dW: dW, dB: deltas[l]}
	}

	for l := 0; l < L; l++ {
		layer := n.Layers[l]
		var scaledW mat.Dense
		scaledW.Scale(n.LearningRate, updates[l].dW)
		layer.W.Sub(layer.W, &scaledW)

		rows, _ := layer.W.Dims()
		scaledB := mat.NewVecDense(rows, nil)
		scaledB.ScaleVec(n.LearningRate, updates[l].dB)
		layer.B.SubVec(layer.B, scaledB)
	}
}

func clampGrad(g float64) float64 {
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0
	}
	if g > 1 {
		return 1
	}
	if g < -1 {
		return -1
	}
	return g
}

func denseToSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// MSE computes the mean squared error between predicted and expected,
// used by both online recording and batch-epoch reporting.
func MSE(predicted, expected []float64) float64 {
	sum := 0.0
	for i := range predicted {
		d := predicted[i] - expected[i]
		sum += d * d
	}
	return sum / float64(len(predicted))
}

// Dataset is one (feature-vector, expected-speedup-vector) training pair.
type Dataset struct {
	Features []float64
	Expected []float64
}

// TrainBatch iterates epochs times, shuffling the dataset each epoch via
// rng, and reports mean squared error per epoch, per spec §4.5's batch
// training contract.
func (n *Network) TrainBatch(data []Dataset, epochs int, rng *rand.Rand) []float64 {
	mses := make([]float64, 0, epochs)
	order := make([]int, len(data))
	for i := range order {
		order[i] = i
	}
	for e := 0; e < epochs; e++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		epochErr := 0.0
		for _, idx := range order {
			d := data[idx]
			pred := n.Forward(d.Features)
			epochErr += MSE(pred, d.Expected)
			n.Backward(d.Expected)
		}
		mses = append(mses, epochErr/float64(len(order)))
	}
	return mses
}
