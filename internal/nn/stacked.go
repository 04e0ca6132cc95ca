package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// rnnLayer pairs a forward-direction cell with an optional reverse cell.
type rnnLayer struct {
	fwd *LSTM
	bwd *LSTM // nil when unidirectional
}

// StackedLSTM is a multi-layer, optionally bidirectional LSTM with dropout
// applied between layers.
//
// Layer outputs are the concatenation of the forward and (when enabled)
// reverse hidden states, so each layer after the first consumes
// hidden×directions features. Dropout is applied to the inputs of every
// layer except the first, and only in training mode.
type StackedLSTM struct {
	inSize        int
	hidden        int
	numLayers     int
	bidirectional bool
	cells         []rnnLayer
	drop          *Dropout
}

// NewStackedLSTM creates a stacked (bi)LSTM.
//
// inSize is the feature size of the input sequence, hidden the per-direction
// hidden size, numLayers the number of stacked layers, dropout the
// between-layer drop probability.
func NewStackedLSTM(name string, inSize, hidden, numLayers int, dropout float64, bidirectional bool) *StackedLSTM {
	if numLayers < 1 {
		panic(fmt.Sprintf("NewStackedLSTM: numLayers must be >= 1, got %d", numLayers))
	}
	s := &StackedLSTM{
		inSize:        inSize,
		hidden:        hidden,
		numLayers:     numLayers,
		bidirectional: bidirectional,
		drop:          NewDropout(dropout),
	}
	in := inSize
	for l := 0; l < numLayers; l++ {
		layer := rnnLayer{fwd: NewLSTM(fmt.Sprintf("%s.%d.fwd", name, l), in, hidden)}
		if bidirectional {
			layer.bwd = NewLSTM(fmt.Sprintf("%s.%d.bwd", name, l), in, hidden)
		}
		s.cells = append(s.cells, layer)
		in = s.OutputSize()
	}
	return s
}

// OutputSize returns hidden×2 when bidirectional, hidden otherwise.
func (s *StackedLSTM) OutputSize() int {
	if s.bidirectional {
		return 2 * s.hidden
	}
	return s.hidden
}

// Parameters returns the parameters of every cell in stack order.
func (s *StackedLSTM) Parameters() []*Parameter {
	var params []*Parameter
	for _, layer := range s.cells {
		params = append(params, layer.fwd.Parameters()...)
		if layer.bwd != nil {
			params = append(params, layer.bwd.Parameters()...)
		}
	}
	return params
}

// StackedCache records per-layer state for Backward.
type StackedCache struct {
	fwd   []*LSTMCache
	bwd   []*LSTMCache
	masks []*mat.Dense // dropout masks for layer inputs; index 0 unused
}

// Forward runs the stack over a [T, inSize] sequence.
//
// Returns the top layer's [T, OutputSize()] hidden states. In training mode
// (train == true) dropout is active and a cache for Backward is returned;
// in evaluation mode the cache is nil and no per-step state is retained.
func (s *StackedLSTM) Forward(xs *mat.Dense, train bool) (*mat.Dense, *StackedCache) {
	var cache *StackedCache
	if train {
		cache = &StackedCache{
			fwd:   make([]*LSTMCache, s.numLayers),
			bwd:   make([]*LSTMCache, s.numLayers),
			masks: make([]*mat.Dense, s.numLayers),
		}
	}

	cur := xs
	for l, layer := range s.cells {
		if l > 0 {
			dropped, mask := s.drop.Forward(cur, train)
			cur = dropped
			if train {
				cache.masks[l] = mask
			}
		}

		outF, cf := layer.fwd.Forward(cur, false, train)
		if train {
			cache.fwd[l] = cf
		}
		if layer.bwd == nil {
			cur = outF
			continue
		}
		outB, cb := layer.bwd.Forward(cur, true, train)
		if train {
			cache.bwd[l] = cb
		}
		cur = hconcat(outF, outB)
	}
	return cur, cache
}

// Backward backpropagates dy through the whole stack, accumulating cell
// gradients and returning the gradient with respect to the input sequence.
func (s *StackedLSTM) Backward(cache *StackedCache, dy *mat.Dense) *mat.Dense {
	cur := dy
	for l := s.numLayers - 1; l >= 0; l-- {
		layer := s.cells[l]
		var dx *mat.Dense
		if layer.bwd == nil {
			dx = layer.fwd.Backward(cache.fwd[l], cur)
		} else {
			T, _ := cur.Dims()
			dyF := denseView(cur, 0, T, 0, s.hidden)
			dyB := denseView(cur, 0, T, s.hidden, 2*s.hidden)
			dxF := layer.fwd.Backward(cache.fwd[l], dyF)
			dxB := layer.bwd.Backward(cache.bwd[l], dyB)
			dxF.Add(dxF, dxB)
			dx = dxF
		}
		if l > 0 {
			dx = s.drop.Backward(dx, cache.masks[l])
		}
		cur = dx
	}
	return cur
}

// hconcat concatenates two matrices with equal row counts along columns.
func hconcat(a, b *mat.Dense) *mat.Dense {
	rows, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(rows, ca+cb, nil)
	for r := 0; r < rows; r++ {
		row := out.RawRowView(r)
		copy(row[:ca], a.RawRowView(r))
		copy(row[ca:], b.RawRowView(r))
	}
	return out
}

// denseView slices a Dense and re-asserts the concrete type.
func denseView(m *mat.Dense, i, k, j, l int) *mat.Dense {
	return m.Slice(i, k, j, l).(*mat.Dense)
}
