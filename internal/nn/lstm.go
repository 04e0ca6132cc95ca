package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LSTM is a single-direction LSTM layer applied to a whole sequence.
//
// The gate pre-activations for step t are
//
//	a = Wx·x(t) + Wh·h(t-1) + b
//
// with a laid out as four stacked blocks of size hidden:
// input gate i, forget gate f, cell candidate g, output gate o. The cell
// update is the standard
//
//	c(t) = f ⊙ c(t-1) + i ⊙ g
//	h(t) = o ⊙ tanh(c(t))
//
// Backward implements explicit backpropagation through time over a cache
// recorded during Forward. Caches are per-call values, never shared state,
// so concurrent sequences do not interfere.
type LSTM struct {
	inSize int
	hidden int
	wx     *Parameter // [4H, inSize]
	wh     *Parameter // [4H, hidden]
	b      *Parameter // [1, 4H]
}

// NewLSTM creates an LSTM layer.
//
// Weights use Xavier initialization. The forget-gate bias starts at 1 so
// that early training does not erase cell state.
func NewLSTM(name string, inSize, hidden int) *LSTM {
	l := &LSTM{
		inSize: inSize,
		hidden: hidden,
		wx:     NewParameter(name+".wx", Xavier(inSize, hidden, 4*hidden, inSize)),
		wh:     NewParameter(name+".wh", Xavier(hidden, hidden, 4*hidden, hidden)),
		b:      NewParameter(name+".b", Zeros(1, 4*hidden)),
	}
	bias := l.b.Value().RawRowView(0)
	for j := hidden; j < 2*hidden; j++ {
		bias[j] = 1.0
	}
	return l
}

// Hidden returns the hidden state size.
func (l *LSTM) Hidden() int { return l.hidden }

// InSize returns the input feature size.
func (l *LSTM) InSize() int { return l.inSize }

// Parameters returns [wx, wh, b].
func (l *LSTM) Parameters() []*Parameter {
	return []*Parameter{l.wx, l.wh, l.b}
}

// lstmStep holds everything Backward needs for one timestep.
type lstmStep struct {
	pos   int // row index into the input/output sequence
	hPrev []float64
	cPrev []float64
	i     []float64
	f     []float64
	g     []float64
	o     []float64
	tanhC []float64
}

// LSTMCache records the intermediate states of one Forward call.
type LSTMCache struct {
	xs    *mat.Dense
	steps []lstmStep // in processing order
}

// Forward runs the LSTM over a [T, inSize] sequence and returns the
// [T, hidden] hidden states, with output row t corresponding to input row t
// regardless of direction.
//
// When reverse is true the sequence is processed from the last row to the
// first, so the "final" state sits at output row 0. When withCache is true
// the returned cache supports a later Backward call; otherwise the cache is
// nil and no per-step state is retained.
//
// Panics if the input width does not match the layer.
func (l *LSTM) Forward(xs *mat.Dense, reverse, withCache bool) (*mat.Dense, *LSTMCache) {
	T, cols := xs.Dims()
	if cols != l.inSize {
		panic(fmt.Sprintf("LSTM.Forward: expected input with %d features, got %d", l.inSize, cols))
	}

	H := l.hidden
	out := mat.NewDense(T, H, nil)
	h := make([]float64, H)
	c := make([]float64, H)

	var cache *LSTMCache
	if withCache {
		cache = &LSTMCache{xs: xs, steps: make([]lstmStep, 0, T)}
	}

	bias := l.b.Value().RawRowView(0)
	for k := 0; k < T; k++ {
		t := k
		if reverse {
			t = T - 1 - k
		}

		// a = Wx·x + Wh·h + b
		var a, ah mat.VecDense
		a.MulVec(l.wx.Value(), xs.RowView(t))
		ah.MulVec(l.wh.Value(), mat.NewVecDense(H, h))
		a.AddVec(&a, &ah)
		raw := a.RawVector().Data
		for j := range raw {
			raw[j] += bias[j]
		}

		gi := make([]float64, H)
		gf := make([]float64, H)
		gg := make([]float64, H)
		go_ := make([]float64, H)
		cNew := make([]float64, H)
		tc := make([]float64, H)
		hNew := make([]float64, H)
		for j := 0; j < H; j++ {
			gi[j] = sigmoid(raw[j])
			gf[j] = sigmoid(raw[H+j])
			gg[j] = tanh(raw[2*H+j])
			go_[j] = sigmoid(raw[3*H+j])
			cNew[j] = gf[j]*c[j] + gi[j]*gg[j]
			tc[j] = tanh(cNew[j])
			hNew[j] = go_[j] * tc[j]
		}
		out.SetRow(t, hNew)

		if withCache {
			cache.steps = append(cache.steps, lstmStep{
				pos:   t,
				hPrev: h,
				cPrev: c,
				i:     gi,
				f:     gf,
				g:     gg,
				o:     go_,
				tanhC: tc,
			})
		}
		h = hNew
		c = cNew
	}
	return out, cache
}

// Backward backpropagates dy (shape [T, hidden], aligned with Forward's
// output rows) through a cached Forward call.
//
// Parameter gradients are accumulated in place; the returned matrix is the
// gradient with respect to the input sequence, shape [T, inSize].
func (l *LSTM) Backward(cache *LSTMCache, dy *mat.Dense) *mat.Dense {
	T, _ := cache.xs.Dims()
	H := l.hidden
	dx := mat.NewDense(T, l.inSize, nil)

	dh := make([]float64, H) // carried gradient w.r.t. h(t)
	dc := make([]float64, H) // carried gradient w.r.t. c(t)
	da := make([]float64, 4*H)
	dbias := l.b.Grad().RawRowView(0)

	for k := len(cache.steps) - 1; k >= 0; k-- {
		st := cache.steps[k]
		t := st.pos
		dyRow := dy.RawRowView(t)

		for j := 0; j < H; j++ {
			dhj := dyRow[j] + dh[j]
			tc := st.tanhC[j]

			do_ := dhj * tc
			dcj := dc[j] + dhj*st.o[j]*(1-tc*tc)

			di := dcj * st.g[j]
			df := dcj * st.cPrev[j]
			dg := dcj * st.i[j]

			da[j] = di * st.i[j] * (1 - st.i[j])
			da[H+j] = df * st.f[j] * (1 - st.f[j])
			da[2*H+j] = dg * (1 - st.g[j]*st.g[j])
			da[3*H+j] = do_ * st.o[j] * (1 - st.o[j])

			// carried into step t-1
			dc[j] = dcj * st.f[j]
		}

		daVec := mat.NewVecDense(4*H, da)

		var dwx, dwh mat.Dense
		dwx.Outer(1, daVec, cache.xs.RowView(t))
		l.wx.AddGrad(&dwx)
		dwh.Outer(1, daVec, mat.NewVecDense(H, st.hPrev))
		l.wh.AddGrad(&dwh)
		for j := range da {
			dbias[j] += da[j]
		}

		var dxv, dhv mat.VecDense
		dxv.MulVec(l.wx.Value().T(), daVec)
		dx.SetRow(t, dxv.RawVector().Data)
		dhv.MulVec(l.wh.Value().T(), daVec)
		copy(dh, dhv.RawVector().Data)
	}
	return dx
}
