package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout implements inverted dropout.
//
// During training each element is zeroed with probability p and the
// survivors are scaled by 1/(1-p), so evaluation needs no rescaling.
type Dropout struct {
	p float64
}

// NewDropout creates a Dropout layer with drop probability p in [0, 1).
func NewDropout(p float64) *Dropout {
	return &Dropout{p: p}
}

// Forward applies dropout to x when train is true.
//
// Returns the output and the scaled keep-mask needed by Backward. When
// train is false or p == 0 the input is returned unchanged with a nil mask.
func (d *Dropout) Forward(x *mat.Dense, train bool) (*mat.Dense, *mat.Dense) {
	if !train || d.p == 0 {
		return x, nil
	}
	rows, cols := x.Dims()
	scale := 1.0 / (1.0 - d.p)
	mask := mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		xrow := x.RawRowView(r)
		mrow := mask.RawRowView(r)
		orow := out.RawRowView(r)
		for c := range xrow {
			//nolint:gosec // math/rand is appropriate for dropout sampling
			if rand.Float64() >= d.p {
				mrow[c] = scale
				orow[c] = xrow[c] * scale
			}
		}
	}
	return out, mask
}

// Backward propagates dy through the mask returned by Forward.
//
// A nil mask (evaluation mode) passes dy through unchanged.
func (d *Dropout) Backward(dy, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return dy
	}
	var dx mat.Dense
	dx.MulElem(dy, mask)
	return &dx
}

// Parameters returns an empty slice: dropout has no trainable parameters.
func (d *Dropout) Parameters() []*Parameter { return nil }
