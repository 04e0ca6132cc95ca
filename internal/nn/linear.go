package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation y = x Wᵀ + b where:
//   - x is the input with shape [steps, inFeatures]
//   - W is the weight matrix with shape [outFeatures, inFeatures]
//   - b is the bias vector with shape [outFeatures]
//   - y is the output with shape [steps, outFeatures]
//
// Weights use Xavier/Glorot initialization, biases start at zero.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [outFeatures, inFeatures]
	bias        *Parameter // [1, outFeatures]
}

// NewLinear creates a new Linear layer.
func NewLinear(name string, inFeatures, outFeatures int) *Linear {
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", Xavier(inFeatures, outFeatures, outFeatures, inFeatures)),
		bias:        NewParameter(name+".bias", Zeros(1, outFeatures)),
	}
}

// Forward computes y = x Wᵀ + b for a [steps, inFeatures] input.
//
// Panics if the input feature dimension does not match the layer.
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	if cols != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, cols))
	}

	var y mat.Dense
	y.Mul(x, l.weight.Value().T()) // [steps, out]

	b := l.bias.Value().RawRowView(0)
	for r := 0; r < rows; r++ {
		row := y.RawRowView(r)
		for c := range row {
			row[c] += b[c]
		}
	}
	return &y
}

// Backward accumulates parameter gradients for the forward pass y = x Wᵀ + b
// and returns the gradient with respect to x.
//
// Given dy with shape [steps, outFeatures] and the original input x:
//
//	dW += dyᵀ x
//	db += column sums of dy
//	dx  = dy W
func (l *Linear) Backward(x, dy *mat.Dense) *mat.Dense {
	var dw mat.Dense
	dw.Mul(dy.T(), x) // [out, in]
	l.weight.AddGrad(&dw)

	rows, _ := dy.Dims()
	db := l.bias.Grad().RawRowView(0)
	for r := 0; r < rows; r++ {
		row := dy.RawRowView(r)
		for c := range row {
			db[c] += row[c]
		}
	}

	var dx mat.Dense
	dx.Mul(dy, l.weight.Value()) // [steps, in]
	return &dx
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int { return l.outFeatures }

// Parameters returns [weight, bias].
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}
