// Package optim implements gradient-descent optimizers for nn parameters.
//
// Optimizers read the gradients accumulated on each Parameter during the
// backward pass and mutate the parameter values in place. The model itself
// never mutates its parameters; all updates happen through Step between
// forward/backward calls.
package optim

import (
	"math"

	"github.com/chaintag-ml/chaintag/internal/nn"
)

// Optimizer is the interface shared by all optimizers.
type Optimizer interface {
	// Step applies one update to every parameter from its accumulated
	// gradient.
	Step()

	// ZeroGrad clears the accumulated gradients of every parameter.
	ZeroGrad()
}

// zeroGrads clears gradients on a parameter list.
func zeroGrads(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// ClipGradNorm rescales all gradients so that their global L2 norm does not
// exceed maxNorm, and returns the norm before clipping.
//
// A maxNorm <= 0 disables clipping.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) float64 {
	sum := 0.0
	for _, p := range params {
		g := p.Grad().RawMatrix().Data
		for _, x := range g {
			sum += x * x
		}
	}
	norm := math.Sqrt(sum)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		g := p.Grad().RawMatrix().Data
		for i := range g {
			g[i] *= scale
		}
	}
	return norm
}
