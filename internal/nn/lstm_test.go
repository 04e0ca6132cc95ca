package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLSTMForwardShape(t *testing.T) {
	l := NewLSTM("test", 3, 5)
	xs := randDense(rand.New(rand.NewSource(1)), 7, 3)

	out, cache := l.Forward(xs, false, false)
	r, c := out.Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, 5, c)
	assert.Nil(t, cache)

	_, cache = l.Forward(xs, false, true)
	require.NotNil(t, cache)
	assert.Len(t, cache.steps, 7)
}

func TestLSTMForwardPanicsOnWidthMismatch(t *testing.T) {
	l := NewLSTM("test", 3, 5)
	assert.Panics(t, func() {
		l.Forward(mat.NewDense(2, 4, nil), false, false)
	})
}

func TestLSTMReverseEqualsForwardOnReversedInput(t *testing.T) {
	// Processing a sequence in reverse with the same weights must equal
	// processing the row-reversed sequence forward, with outputs mirrored.
	l := NewLSTM("test", 2, 3)
	rng := rand.New(rand.NewSource(2))
	xs := randDense(rng, 5, 2)

	flipped := mat.NewDense(5, 2, nil)
	for i := 0; i < 5; i++ {
		flipped.SetRow(i, xs.RawRowView(4-i))
	}

	outRev, _ := l.Forward(xs, true, false)
	outFwd, _ := l.Forward(flipped, false, false)
	for i := 0; i < 5; i++ {
		assert.Equal(t, outFwd.RawRowView(i), outRev.RawRowView(4-i))
	}
}

func TestLSTMBackwardMatchesFiniteDifferences(t *testing.T) {
	const eps = 1e-6

	for _, reverse := range []bool{false, true} {
		l := NewLSTM("test", 2, 3)
		rng := rand.New(rand.NewSource(3))
		xs := randDense(rng, 4, 2)
		coeff := randDense(rng, 4, 3) // dLoss/dOut

		lossAt := func() float64 {
			out, _ := l.Forward(xs, reverse, false)
			return weightedSum(out, coeff)
		}

		_, cache := l.Forward(xs, reverse, true)
		dx := l.Backward(cache, coeff)
		dWx := mat.DenseCopyOf(l.wx.Grad())
		dWh := mat.DenseCopyOf(l.wh.Grad())
		db := mat.DenseCopyOf(l.b.Grad())
		for _, p := range l.Parameters() {
			p.ZeroGrad()
		}

		fdCheck := func(value *mat.Dense, grad *mat.Dense) {
			rows, cols := value.Dims()
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					orig := value.At(i, j)
					value.Set(i, j, orig+eps)
					up := lossAt()
					value.Set(i, j, orig-eps)
					down := lossAt()
					value.Set(i, j, orig)
					assert.InDelta(t, (up-down)/(2*eps), grad.At(i, j), 1e-5)
				}
			}
		}
		fdCheck(xs, dx)
		fdCheck(l.wx.Value(), dWx)
		fdCheck(l.wh.Value(), dWh)
		fdCheck(l.b.Value(), db)
	}
}

func TestStackedLSTMOutputSize(t *testing.T) {
	uni := NewStackedLSTM("test", 4, 6, 2, 0, false)
	assert.Equal(t, 6, uni.OutputSize())
	assert.Len(t, uni.Parameters(), 6) // 2 layers × (wx, wh, b)

	bi := NewStackedLSTM("test", 4, 6, 2, 0, true)
	assert.Equal(t, 12, bi.OutputSize())
	assert.Len(t, bi.Parameters(), 12)

	xs := randDense(rand.New(rand.NewSource(4)), 3, 4)
	out, cache := bi.Forward(xs, false)
	r, c := out.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 12, c)
	assert.Nil(t, cache)
}

func TestStackedLSTMBackwardMatchesFiniteDifferences(t *testing.T) {
	const eps = 1e-6

	// Two bidirectional layers, zero dropout so the loss is deterministic.
	s := NewStackedLSTM("test", 2, 3, 2, 0, true)
	rng := rand.New(rand.NewSource(5))
	xs := randDense(rng, 4, 2)
	coeff := randDense(rng, 4, 6)

	lossAt := func() float64 {
		out, _ := s.Forward(xs, false)
		return weightedSum(out, coeff)
	}

	_, cache := s.Forward(xs, true)
	dx := s.Backward(cache, coeff)
	grads := make([]*mat.Dense, 0)
	for _, p := range s.Parameters() {
		grads = append(grads, mat.DenseCopyOf(p.Grad()))
		p.ZeroGrad()
	}

	fdCheck := func(value *mat.Dense, grad *mat.Dense) {
		rows, cols := value.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				orig := value.At(i, j)
				value.Set(i, j, orig+eps)
				up := lossAt()
				value.Set(i, j, orig-eps)
				down := lossAt()
				value.Set(i, j, orig)
				assert.InDelta(t, (up-down)/(2*eps), grad.At(i, j), 1e-5)
			}
		}
	}
	fdCheck(xs, dx)
	for i, p := range s.Parameters() {
		fdCheck(p.Value(), grads[i])
	}
}
