package optim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/chaintag-ml/chaintag/internal/nn"
)

// Adam implements the Adam optimizer (Kingma & Ba, 2015) with bias-corrected
// first and second moment estimates:
//
//	m = beta1*m + (1-beta1)*grad
//	v = beta2*v + (1-beta2)*grad²
//	param -= lr * mhat / (sqrt(vhat) + eps)
type Adam struct {
	params []*nn.Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	step   int
	m      map[*nn.Parameter]*mat.Dense
	v      map[*nn.Parameter]*mat.Dense
}

// AdamConfig holds Adam hyperparameters. Zero values take the usual
// defaults: LR 0.001, Beta1 0.9, Beta2 0.999, Eps 1e-8.
type AdamConfig struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Beta1,
		beta2:  config.Beta2,
		eps:    config.Eps,
		m:      make(map[*nn.Parameter]*mat.Dense),
		v:      make(map[*nn.Parameter]*mat.Dense),
	}
}

// Step applies one Adam update to every parameter.
func (a *Adam) Step() {
	a.step++
	c1 := 1 - math.Pow(a.beta1, float64(a.step))
	c2 := 1 - math.Pow(a.beta2, float64(a.step))

	for _, p := range a.params {
		grad := p.Grad().RawMatrix().Data
		value := p.Value().RawMatrix().Data

		m, ok := a.m[p]
		if !ok {
			r, c := p.Dims()
			m = mat.NewDense(r, c, nil)
			a.m[p] = m
			a.v[p] = mat.NewDense(r, c, nil)
		}
		v := a.v[p]
		md := m.RawMatrix().Data
		vd := v.RawMatrix().Data

		for i := range value {
			md[i] = a.beta1*md[i] + (1-a.beta1)*grad[i]
			vd[i] = a.beta2*vd[i] + (1-a.beta2)*grad[i]*grad[i]
			mhat := md[i] / c1
			vhat := vd[i] / c2
			value[i] -= a.lr * mhat / (math.Sqrt(vhat) + a.eps)
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (a *Adam) ZeroGrad() { zeroGrads(a.params) }
