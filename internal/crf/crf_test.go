package crf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// randFeats returns an [n, k] emission matrix with entries in [-scale, scale].
func randFeats(rng *rand.Rand, n, k int, scale float64) *mat.Dense {
	data := make([]float64, n*k)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(n, k, data)
}

// enumerate calls fn with every label sequence of length n over k labels,
// in lexicographic order.
func enumerate(n, k int, fn func(seq []int)) {
	seq := make([]int, n)
	for {
		fn(seq)
		t := n - 1
		for t >= 0 {
			seq[t]++
			if seq[t] < k {
				break
			}
			seq[t] = 0
			t--
		}
		if t < 0 {
			return
		}
	}
}

func TestNewRejectsBadLabelCount(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-3)
	assert.Error(t, err)
}

func TestLengthOneReduction(t *testing.T) {
	// For a single position the partition function must reduce exactly to
	// logsumexp_j(start[j] + feats[0][j] + end[j]).
	c, err := New(4)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	feats := randFeats(rng, 1, 4, 3.0)

	logZ, err := c.LogPartition([]*mat.Dense{feats}, []int{1})
	require.NoError(t, err)

	work := make([]float64, 4)
	for j := 0; j < 4; j++ {
		work[j] = c.Start().Value().At(0, j) + feats.At(0, j) + c.End().Value().At(0, j)
	}
	assert.InDelta(t, floats.LogSumExp(work), logZ[0], 1e-12)
}

func TestPartitionMatchesBruteForce(t *testing.T) {
	// logZ must equal the log-sum-exp over the scores of every possible
	// label sequence.
	c, err := New(3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	feats := randFeats(rng, 4, 3, 2.0)

	logZ, err := c.LogPartition([]*mat.Dense{feats}, []int{4})
	require.NoError(t, err)

	var scores []float64
	enumerate(4, 3, func(seq []int) {
		s, err := c.Score([]*mat.Dense{feats}, [][]int{seq}, []int{4})
		require.NoError(t, err)
		scores = append(scores, s[0])
	})
	assert.InDelta(t, floats.LogSumExp(scores), logZ[0], 1e-10)
}

func TestPartitionDominatesEveryScore(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	feats := randFeats(rng, 5, 3, 4.0)

	logZ, err := c.LogPartition([]*mat.Dense{feats}, []int{5})
	require.NoError(t, err)

	enumerate(5, 3, func(seq []int) {
		s, err := c.Score([]*mat.Dense{feats}, [][]int{seq}, []int{5})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, logZ[0], s[0])
	})
}

func TestDecodeMatchesBruteForce(t *testing.T) {
	// Viterbi must return the sequence that literally maximizes Score.
	// Random continuous emissions make the argmax unique.
	for _, size := range []struct{ n, k int }{{1, 2}, {3, 3}, {5, 4}} {
		c, err := New(size.k)
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(int64(10 + size.n)))
		feats := randFeats(rng, size.n, size.k, 2.0)

		paths, err := c.Decode([]*mat.Dense{feats}, []int{size.n})
		require.NoError(t, err)

		best := math.Inf(-1)
		var bestSeq []int
		enumerate(size.n, size.k, func(seq []int) {
			s, err := c.Score([]*mat.Dense{feats}, [][]int{seq}, []int{size.n})
			require.NoError(t, err)
			if s[0] > best {
				best = s[0]
				bestSeq = append([]int(nil), seq...)
			}
		})

		got, err := c.Score([]*mat.Dense{feats}, [][]int{paths[0]}, []int{size.n})
		require.NoError(t, err)
		assert.InDelta(t, best, got[0], 1e-10)
		assert.Equal(t, bestSeq, paths[0])
	}
}

func TestDecodeTieBreakPrefersLowestLabel(t *testing.T) {
	// With all parameters and emissions zero every sequence ties, so the
	// deterministic tie-break must pick label 0 everywhere.
	c, err := New(3)
	require.NoError(t, err)
	c.Transitions().Value().Zero()
	c.Start().Value().Zero()
	c.End().Value().Zero()

	feats := mat.NewDense(4, 3, nil)
	paths, err := c.Decode([]*mat.Dense{feats}, []int{4})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0}, paths[0])
}

func TestMaskedPositionsAreInert(t *testing.T) {
	// Padding rows beyond the true length with garbage, even NaN, must not
	// change any result for that sequence.
	c, err := New(3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(4))
	clean := randFeats(rng, 3, 3, 2.0)

	padded := mat.NewDense(6, 3, nil)
	for t2 := 0; t2 < 3; t2++ {
		padded.SetRow(t2, clean.RawRowView(t2))
	}
	for t2 := 3; t2 < 6; t2++ {
		padded.SetRow(t2, []float64{math.NaN(), 1e30, -1e30})
	}

	labs := []int{2, 0, 1}

	logZClean, err := c.LogPartition([]*mat.Dense{clean}, []int{3})
	require.NoError(t, err)
	logZPad, err := c.LogPartition([]*mat.Dense{padded}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, logZClean[0], logZPad[0])

	sClean, err := c.Score([]*mat.Dense{clean}, [][]int{labs}, []int{3})
	require.NoError(t, err)
	sPad, err := c.Score([]*mat.Dense{padded}, [][]int{labs}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, sClean[0], sPad[0])

	pClean, err := c.Decode([]*mat.Dense{clean}, []int{3})
	require.NoError(t, err)
	pPad, err := c.Decode([]*mat.Dense{padded}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, pClean[0], pPad[0])

	lClean, _, err := c.Loss([]*mat.Dense{clean}, [][]int{labs}, []int{3})
	require.NoError(t, err)
	for _, p := range c.Parameters() {
		p.ZeroGrad()
	}
	lPad, dPad, err := c.Loss([]*mat.Dense{padded}, [][]int{labs}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, lClean, lPad)

	// Padded rows of the emission gradient stay zero.
	for t2 := 3; t2 < 6; t2++ {
		for j := 0; j < 3; j++ {
			assert.Zero(t, dPad[0].At(t2, j))
		}
	}
}

func TestRaggedBatchDecodesIndependently(t *testing.T) {
	// Each batch element must be decoded at its own length; results match
	// decoding the elements one by one.
	c, err := New(3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	a := randFeats(rng, 5, 3, 2.0)
	b := randFeats(rng, 5, 3, 2.0) // only first 2 rows valid

	batch, err := c.Decode([]*mat.Dense{a, b}, []int{5, 2})
	require.NoError(t, err)
	single, err := c.Decode([]*mat.Dense{b}, []int{2})
	require.NoError(t, err)

	assert.Len(t, batch[0], 5)
	assert.Equal(t, single[0], batch[1])
}

func TestNumericalStabilityAtLargeMagnitude(t *testing.T) {
	// Emission scores with magnitude ~1e4 must not overflow the forward
	// algorithm.
	c, err := New(4)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(6))
	feats := randFeats(rng, 20, 4, 1e4)

	logZ, err := c.LogPartition([]*mat.Dense{feats}, []int{20})
	require.NoError(t, err)
	assert.False(t, math.IsInf(logZ[0], 0))
	assert.False(t, math.IsNaN(logZ[0]))

	labs := make([]int, 20)
	nll, _, err := c.Loss([]*mat.Dense{feats}, [][]int{labs}, []int{20})
	require.NoError(t, err)
	assert.False(t, math.IsInf(nll, 0))
	assert.False(t, math.IsNaN(nll))
	assert.GreaterOrEqual(t, nll, 0.0)
}

func TestBIOScenario(t *testing.T) {
	// Labels {O=0, B=1, I=2}: with transitions favoring O->O and B->I and
	// emissions strongly favoring [B, I, O], the decoded path is [1, 2, 0].
	c, err := New(3)
	require.NoError(t, err)
	c.Start().Value().Zero()
	c.End().Value().Zero()
	c.Transitions().Value().Zero()
	c.Transitions().Value().Set(0, 0, 1.0) // O -> O
	c.Transitions().Value().Set(1, 2, 1.0) // B -> I

	feats := mat.NewDense(3, 3, []float64{
		0, 10, 0, // B
		0, 0, 10, // I
		10, 0, 0, // O
	})
	paths, err := c.Decode([]*mat.Dense{feats}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, paths[0])
}

func TestLossIsNonNegativeAndTightOnlyForPeakedScores(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	feats := randFeats(rng, 4, 3, 1.0)

	paths, err := c.Decode([]*mat.Dense{feats}, []int{4})
	require.NoError(t, err)

	// Even with the decoded path as gold the NLL stays positive: the
	// partition still sums mass from every other sequence.
	nll, _, err := c.Loss([]*mat.Dense{feats}, [][]int{paths[0]}, []int{4})
	require.NoError(t, err)
	assert.Greater(t, nll, 0.0)

	// Any other gold sequence costs at least as much.
	for _, p := range c.Parameters() {
		p.ZeroGrad()
	}
	other := []int{2, 2, 2, 2}
	nllOther, _, err := c.Loss([]*mat.Dense{feats}, [][]int{other}, []int{4})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, nllOther, nll)
}

func TestLossEmissionGradientRowsSumToZero(t *testing.T) {
	// Each valid gradient row is a probability distribution minus a one-hot
	// indicator, so it must sum to zero.
	c, err := New(4)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(8))
	feats := randFeats(rng, 5, 4, 2.0)
	labs := []int{3, 1, 0, 2, 1}

	_, dFeats, err := c.Loss([]*mat.Dense{feats}, [][]int{labs}, []int{5})
	require.NoError(t, err)
	for t2 := 0; t2 < 5; t2++ {
		assert.InDelta(t, 0.0, floats.Sum(dFeats[0].RawRowView(t2)), 1e-10)
	}
}

func TestLossGradientsMatchFiniteDifferences(t *testing.T) {
	const eps = 1e-6

	c, err := New(3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	featsA := randFeats(rng, 4, 3, 1.5)
	featsB := randFeats(rng, 4, 3, 1.5) // length 2, rows 2-3 padded
	feats := []*mat.Dense{featsA, featsB}
	labs := [][]int{{0, 2, 1, 1}, {1, 0}}
	lens := []int{4, 2}

	lossAt := func() float64 {
		nll, _, err := c.Loss(feats, labs, lens)
		require.NoError(t, err)
		for _, p := range c.Parameters() {
			p.ZeroGrad()
		}
		return nll
	}

	_, dFeats, err := c.Loss(feats, labs, lens)
	require.NoError(t, err)
	dTrans := mat.DenseCopyOf(c.Transitions().Grad())
	dStart := mat.DenseCopyOf(c.Start().Grad())
	dEnd := mat.DenseCopyOf(c.End().Grad())
	for _, p := range c.Parameters() {
		p.ZeroGrad()
	}

	// Emission gradients, including padded rows of the short element.
	for b, f := range feats {
		rows, _ := f.Dims()
		for t2 := 0; t2 < rows; t2++ {
			for j := 0; j < 3; j++ {
				orig := f.At(t2, j)
				f.Set(t2, j, orig+eps)
				up := lossAt()
				f.Set(t2, j, orig-eps)
				down := lossAt()
				f.Set(t2, j, orig)
				assert.InDelta(t, (up-down)/(2*eps), dFeats[b].At(t2, j), 1e-5)
			}
		}
	}

	// Parameter gradients.
	check := func(value *mat.Dense, grad *mat.Dense) {
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
	check(c.Transitions().Value(), dTrans)
	check(c.Start().Value(), dStart)
	check(c.End().Value(), dEnd)
}

func TestRejectsInvalidInputs(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)
	feats := mat.NewDense(4, 3, nil)

	// Zero and negative lengths.
	_, err = c.LogPartition([]*mat.Dense{feats}, []int{0})
	assert.Error(t, err)
	_, err = c.Decode([]*mat.Dense{feats}, []int{-1})
	assert.Error(t, err)

	// Length beyond the available rows.
	_, err = c.LogPartition([]*mat.Dense{feats}, []int{5})
	assert.Error(t, err)

	// Wrong label column count.
	bad := mat.NewDense(4, 2, nil)
	_, err = c.LogPartition([]*mat.Dense{bad}, []int{4})
	assert.Error(t, err)

	// Batch size mismatch.
	_, err = c.LogPartition([]*mat.Dense{feats, feats}, []int{4})
	assert.Error(t, err)

	// Label id out of range and label sequence shorter than the length.
	_, err = c.Score([]*mat.Dense{feats}, [][]int{{0, 1, 3, 0}}, []int{4})
	assert.Error(t, err)
	_, err = c.Score([]*mat.Dense{feats}, [][]int{{0, 1}}, []int{4})
	assert.Error(t, err)
}
