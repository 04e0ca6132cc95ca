package nn

import "math"

// sigmoid computes the logistic function 1/(1+e^-x).
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// tanh is a local alias to keep the gate math readable.
func tanh(x float64) float64 {
	return math.Tanh(x)
}
