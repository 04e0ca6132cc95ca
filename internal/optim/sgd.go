package optim

import (
	"gonum.org/v1/gonum/mat"

	"github.com/chaintag-ml/chaintag/internal/nn"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	param -= lr * grad
//
// With momentum:
//
//	velocity = momentum * velocity + grad
//	param   -= lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter]*mat.Dense
}

// SGDConfig holds SGD hyperparameters.
type SGDConfig struct {
	LR       float64 // learning rate (default 0.01)
	Momentum float64 // momentum factor in [0, 1)
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter]*mat.Dense),
	}
}

// Step applies one SGD update to every parameter.
func (s *SGD) Step() {
	for _, p := range s.params {
		grad := p.Grad().RawMatrix().Data
		value := p.Value().RawMatrix().Data

		if s.momentum == 0 {
			for i := range value {
				value[i] -= s.lr * grad[i]
			}
			continue
		}

		vel, ok := s.velocities[p]
		if !ok {
			r, c := p.Dims()
			vel = mat.NewDense(r, c, nil)
			s.velocities[p] = vel
		}
		v := vel.RawMatrix().Data
		for i := range value {
			v[i] = s.momentum*v[i] + grad[i]
			value[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (s *SGD) ZeroGrad() { zeroGrads(s.params) }

// LR returns the current learning rate.
func (s *SGD) LR() float64 { return s.lr }

// SetLR updates the learning rate; useful for scheduling.
func (s *SGD) SetLR(lr float64) { s.lr = lr }
