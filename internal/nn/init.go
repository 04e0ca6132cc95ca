package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Xavier returns a rows×cols matrix initialized with Xavier/Glorot uniform
// values: U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
//
// This initialization keeps activation variance roughly constant across
// layers, which matters for the tanh/sigmoid gates of the recurrent cells.
func Xavier(fanIn, fanOut, rows, cols int) *mat.Dense {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	data := make([]float64, rows*cols)
	for i := range data {
		//nolint:gosec // math/rand is appropriate for weight initialization
		data[i] = (rand.Float64()*2.0 - 1.0) * bound
	}
	return mat.NewDense(rows, cols, data)
}

// Normal returns a rows×cols matrix with entries drawn from N(0, std²).
func Normal(std float64, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		//nolint:gosec // math/rand is appropriate for weight initialization
		data[i] = rand.NormFloat64() * std
	}
	return mat.NewDense(rows, cols, data)
}

// Zeros returns a zeroed rows×cols matrix.
func Zeros(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}
