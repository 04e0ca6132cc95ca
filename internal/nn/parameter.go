package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are matrices that receive gradient contributions during the
// backward pass. Vector-shaped parameters (biases, transition start/end
// terms) are stored as 1×n matrices so that optimizers can treat every
// parameter uniformly.
//
// The gradient buffer is allocated eagerly with the same shape as the value
// and accumulates across backward calls until ZeroGrad is called. This
// matches the usual train-step contract:
//
//	loss := model.Loss(batch)   // accumulates gradients
//	optim.ClipGradNorm(params, clip)
//	optimizer.Step()            // reads gradients, mutates values
//	optimizer.ZeroGrad()
type Parameter struct {
	name  string
	value *mat.Dense
	grad  *mat.Dense
}

// NewParameter creates a new trainable parameter wrapping the given value.
//
// The gradient buffer is allocated zeroed with the same shape.
func NewParameter(name string, value *mat.Dense) *Parameter {
	r, c := value.Dims()
	return &Parameter{
		name:  name,
		value: value,
		grad:  mat.NewDense(r, c, nil),
	}
}

// Name returns the parameter name (e.g. "proj.weight").
func (p *Parameter) Name() string { return p.name }

// Value returns the parameter value matrix.
//
// The returned matrix is the live storage: optimizers mutate it in place.
func (p *Parameter) Value() *mat.Dense { return p.value }

// Grad returns the accumulated gradient matrix.
func (p *Parameter) Grad() *mat.Dense { return p.grad }

// Dims returns the parameter shape.
func (p *Parameter) Dims() (rows, cols int) { return p.value.Dims() }

// AddGrad accumulates delta into the gradient buffer.
//
// Panics if delta's shape differs from the parameter shape.
func (p *Parameter) AddGrad(delta mat.Matrix) {
	p.grad.Add(p.grad, delta)
}

// ZeroGrad clears the accumulated gradient.
//
// Call before each training iteration to avoid mixing gradients from
// previous iterations.
func (p *Parameter) ZeroGrad() {
	p.grad.Zero()
}
