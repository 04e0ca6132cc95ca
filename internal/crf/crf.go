// Package crf implements a linear-chain conditional random field layer.
//
// The layer owns a learned transition matrix between labels plus start and
// end bias vectors, and provides the four operations a CRF tagger needs:
//
//   - Score: the score of one specific label sequence
//   - LogPartition: the log-sum-exp over all label sequences (forward
//     algorithm)
//   - Loss: negative log-likelihood with analytic gradients
//     (forward-backward expected counts)
//   - Decode: the highest-scoring label sequence (Viterbi)
//
// All operations work on batches of emission-score matrices with an explicit
// length vector: feats[b] has one row per position and one column per label,
// and only rows t < lens[b] are ever read, so padded rows are inert no
// matter what they contain.
//
// The recurrences are sequential over positions; all log-sum-exp reductions
// go through gonum's max-shifted floats.LogSumExp, which keeps the forward
// algorithm finite even for emission scores with magnitude around 1e4.
package crf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/chaintag-ml/chaintag/internal/nn"
)

// CRF is a linear-chain conditional random field over a fixed label set.
//
// Parameters are mutated only by optimizer steps between calls. Score,
// LogPartition and Decode allocate per-call state and are safe to run on
// independent batches concurrently; Loss accumulates into the shared
// parameter gradients and is not.
type CRF struct {
	numLabels int
	trans     *nn.Parameter // [K, K]; trans[i][j] scores the move i -> j
	start     *nn.Parameter // [1, K]; score of starting in label j
	end       *nn.Parameter // [1, K]; score of ending in label j
}

// New creates a CRF over numLabels labels with small random parameters.
func New(numLabels int) (*CRF, error) {
	if numLabels < 1 {
		return nil, fmt.Errorf("crf: numLabels must be >= 1, got %d", numLabels)
	}
	return &CRF{
		numLabels: numLabels,
		trans:     nn.NewParameter("crf.transitions", nn.Normal(0.1, numLabels, numLabels)),
		start:     nn.NewParameter("crf.start", nn.Normal(0.1, 1, numLabels)),
		end:       nn.NewParameter("crf.end", nn.Normal(0.1, 1, numLabels)),
	}, nil
}

// NumLabels returns the size of the label set.
func (c *CRF) NumLabels() int { return c.numLabels }

// Transitions returns the transition parameter ([K, K]).
func (c *CRF) Transitions() *nn.Parameter { return c.trans }

// Start returns the start bias parameter ([1, K]).
func (c *CRF) Start() *nn.Parameter { return c.start }

// End returns the end bias parameter ([1, K]).
func (c *CRF) End() *nn.Parameter { return c.end }

// Parameters returns [transitions, start, end].
func (c *CRF) Parameters() []*nn.Parameter {
	return []*nn.Parameter{c.trans, c.start, c.end}
}

// checkBatch validates a batch of emission matrices against the length
// vector before any recursion runs.
func (c *CRF) checkBatch(feats []*mat.Dense, lens []int) error {
	if len(feats) != len(lens) {
		return fmt.Errorf("crf: got %d emission matrices but %d lengths", len(feats), len(lens))
	}
	for b, f := range feats {
		rows, cols := f.Dims()
		if cols != c.numLabels {
			return fmt.Errorf("crf: batch element %d has %d label columns, want %d", b, cols, c.numLabels)
		}
		if lens[b] < 1 {
			return fmt.Errorf("crf: batch element %d has length %d, want >= 1", b, lens[b])
		}
		if lens[b] > rows {
			return fmt.Errorf("crf: batch element %d has length %d but only %d rows", b, lens[b], rows)
		}
	}
	return nil
}

// checkLabels validates gold label sequences for Score and Loss.
func (c *CRF) checkLabels(labs [][]int, lens []int) error {
	if len(labs) != len(lens) {
		return fmt.Errorf("crf: got %d label sequences but %d lengths", len(labs), len(lens))
	}
	for b, seq := range labs {
		if len(seq) < lens[b] {
			return fmt.Errorf("crf: batch element %d has %d labels but length %d", b, len(seq), lens[b])
		}
		for t := 0; t < lens[b]; t++ {
			if seq[t] < 0 || seq[t] >= c.numLabels {
				return fmt.Errorf("crf: batch element %d label %d at position %d out of range [0, %d)",
					b, seq[t], t, c.numLabels)
			}
		}
	}
	return nil
}

// Score computes, per batch element, the score of the gold label sequence:
// the sum over valid positions of the gold emission score plus the
// transition score from the previous gold label, plus the start bias at
// position 0 and the end bias at the last valid position. Positions at or
// beyond lens[b] contribute nothing.
func (c *CRF) Score(feats []*mat.Dense, labs [][]int, lens []int) ([]float64, error) {
	if err := c.checkBatch(feats, lens); err != nil {
		return nil, err
	}
	if err := c.checkLabels(labs, lens); err != nil {
		return nil, err
	}
	out := make([]float64, len(feats))
	for b, f := range feats {
		out[b] = c.seqScore(f, labs[b], lens[b])
	}
	return out, nil
}

// seqScore scores one gold path over the first n rows of feats.
func (c *CRF) seqScore(feats *mat.Dense, labs []int, n int) float64 {
	trans := c.trans.Value()
	s := c.start.Value().At(0, labs[0]) + feats.At(0, labs[0])
	for t := 1; t < n; t++ {
		s += trans.At(labs[t-1], labs[t]) + feats.At(t, labs[t])
	}
	return s + c.end.Value().At(0, labs[n-1])
}

// LogPartition computes, per batch element, the log-sum-exp over all label
// sequences of their total score (the forward algorithm).
//
// The recurrence keeps a vector alpha[j] = log-sum-exp over all partial
// sequences ending at the current position in label j. Positions beyond the
// true length are never visited, which is equivalent to freezing alpha at
// the last valid position.
func (c *CRF) LogPartition(feats []*mat.Dense, lens []int) ([]float64, error) {
	if err := c.checkBatch(feats, lens); err != nil {
		return nil, err
	}
	out := make([]float64, len(feats))
	for b, f := range feats {
		alpha := c.forward(f, lens[b])
		out[b] = c.terminate(alpha.RawRowView(lens[b] - 1))
	}
	return out, nil
}

// forward fills the [n, K] alpha table for the first n rows of feats:
//
//	alpha[0][j] = start[j] + feats[0][j]
//	alpha[t][j] = logsumexp_i(alpha[t-1][i] + trans[i][j]) + feats[t][j]
func (c *CRF) forward(feats *mat.Dense, n int) *mat.Dense {
	K := c.numLabels
	trans := c.trans.Value()
	start := c.start.Value().RawRowView(0)

	alpha := mat.NewDense(n, K, nil)
	row := alpha.RawRowView(0)
	for j := 0; j < K; j++ {
		row[j] = start[j] + feats.At(0, j)
	}

	work := make([]float64, K)
	for t := 1; t < n; t++ {
		prev := alpha.RawRowView(t - 1)
		row = alpha.RawRowView(t)
		for j := 0; j < K; j++ {
			for i := 0; i < K; i++ {
				work[i] = prev[i] + trans.At(i, j)
			}
			row[j] = floats.LogSumExp(work) + feats.At(t, j)
		}
	}
	return alpha
}

// terminate folds the end biases into the final alpha row.
func (c *CRF) terminate(alphaLast []float64) float64 {
	end := c.end.Value().RawRowView(0)
	work := make([]float64, c.numLabels)
	for j := range work {
		work[j] = alphaLast[j] + end[j]
	}
	return floats.LogSumExp(work)
}

// backward fills the [n, K] beta table, the mirror recursion of forward:
//
//	beta[n-1][j] = end[j]
//	beta[t][i]   = logsumexp_j(trans[i][j] + feats[t+1][j] + beta[t+1][j])
func (c *CRF) backward(feats *mat.Dense, n int) *mat.Dense {
	K := c.numLabels
	trans := c.trans.Value()
	end := c.end.Value().RawRowView(0)

	beta := mat.NewDense(n, K, nil)
	beta.SetRow(n-1, end)

	work := make([]float64, K)
	for t := n - 2; t >= 0; t-- {
		next := beta.RawRowView(t + 1)
		row := beta.RawRowView(t)
		for i := 0; i < K; i++ {
			for j := 0; j < K; j++ {
				work[j] = trans.At(i, j) + feats.At(t+1, j) + next[j]
			}
			row[i] = floats.LogSumExp(work)
		}
	}
	return beta
}

// Loss computes the summed negative log-likelihood of the gold label
// sequences and its analytic gradients.
//
// The returned dFeats holds, per batch element, the gradient of the loss
// with respect to the emission scores: the posterior label marginal minus
// the gold indicator at each valid position, zero at padded positions.
// Gradients with respect to the transition matrix and the start/end biases
// (expected transition counts minus gold counts) are accumulated into the
// CRF's own parameters.
//
// The loss is always >= 0: the partition function dominates the score of
// any single sequence.
func (c *CRF) Loss(feats []*mat.Dense, labs [][]int, lens []int) (float64, []*mat.Dense, error) {
	if err := c.checkBatch(feats, lens); err != nil {
		return 0, nil, err
	}
	if err := c.checkLabels(labs, lens); err != nil {
		return 0, nil, err
	}

	K := c.numLabels
	trans := c.trans.Value()
	dTrans := c.trans.Grad()
	dStart := c.start.Grad().RawRowView(0)
	dEnd := c.end.Grad().RawRowView(0)

	total := 0.0
	dFeats := make([]*mat.Dense, len(feats))
	for b, f := range feats {
		n := lens[b]
		gold := labs[b]

		alpha := c.forward(f, n)
		beta := c.backward(f, n)
		logZ := c.terminate(alpha.RawRowView(n - 1))
		total += logZ - c.seqScore(f, gold, n)

		rows, _ := f.Dims()
		df := mat.NewDense(rows, K, nil)
		dFeats[b] = df

		// Unary marginals: p_t(j) = exp(alpha[t][j] + beta[t][j] - logZ).
		for t := 0; t < n; t++ {
			arow := alpha.RawRowView(t)
			brow := beta.RawRowView(t)
			drow := df.RawRowView(t)
			for j := 0; j < K; j++ {
				drow[j] = math.Exp(arow[j] + brow[j] - logZ)
			}
			drow[gold[t]] -= 1
		}

		// Start/end gradients reuse the boundary marginals.
		arow0 := alpha.RawRowView(0)
		brow0 := beta.RawRowView(0)
		for j := 0; j < K; j++ {
			dStart[j] += math.Exp(arow0[j] + brow0[j] - logZ)
		}
		dStart[gold[0]] -= 1

		arowN := alpha.RawRowView(n - 1)
		browN := beta.RawRowView(n - 1)
		for j := 0; j < K; j++ {
			dEnd[j] += math.Exp(arowN[j] + browN[j] - logZ)
		}
		dEnd[gold[n-1]] -= 1

		// Pairwise marginals:
		// p_t(i,j) = exp(alpha[t-1][i] + trans[i][j] + feats[t][j] + beta[t][j] - logZ).
		for t := 1; t < n; t++ {
			aprev := alpha.RawRowView(t - 1)
			brow := beta.RawRowView(t)
			for i := 0; i < K; i++ {
				for j := 0; j < K; j++ {
					dTrans.Set(i, j, dTrans.At(i, j)+
						math.Exp(aprev[i]+trans.At(i, j)+f.At(t, j)+brow[j]-logZ))
				}
			}
			dTrans.Set(gold[t-1], gold[t], dTrans.At(gold[t-1], gold[t])-1)
		}
	}
	return total, dFeats, nil
}

// Decode returns, per batch element, the highest-scoring label sequence of
// its true length (Viterbi).
//
// The recurrence mirrors the forward algorithm with max in place of
// log-sum-exp, recording the argmax predecessor at each step. Each element
// is decoded at its own length; padded positions are never touched.
//
// Ties are broken deterministically toward the lowest label id: candidates
// are scanned in ascending order and the running best is replaced only on a
// strictly greater score.
func (c *CRF) Decode(feats []*mat.Dense, lens []int) ([][]int, error) {
	if err := c.checkBatch(feats, lens); err != nil {
		return nil, err
	}
	out := make([][]int, len(feats))
	for b, f := range feats {
		out[b] = c.viterbi(f, lens[b])
	}
	return out, nil
}

// viterbi decodes one sequence over the first n rows of feats.
func (c *CRF) viterbi(feats *mat.Dense, n int) []int {
	K := c.numLabels
	trans := c.trans.Value()
	start := c.start.Value().RawRowView(0)
	end := c.end.Value().RawRowView(0)

	vit := make([]float64, K)
	for j := 0; j < K; j++ {
		vit[j] = start[j] + feats.At(0, j)
	}

	// backptr[t][j] = predecessor label of j on the best path to (t, j).
	backptr := make([][]int, n)
	next := make([]float64, K)
	for t := 1; t < n; t++ {
		backptr[t] = make([]int, K)
		for j := 0; j < K; j++ {
			best := math.Inf(-1)
			bestPrev := 0
			for i := 0; i < K; i++ {
				score := vit[i] + trans.At(i, j)
				if score > best {
					best = score
					bestPrev = i
				}
			}
			next[j] = best + feats.At(t, j)
			backptr[t][j] = bestPrev
		}
		vit, next = next, vit
	}

	bestLast := 0
	best := math.Inf(-1)
	for j := 0; j < K; j++ {
		if s := vit[j] + end[j]; s > best {
			best = s
			bestLast = j
		}
	}

	path := make([]int, n)
	path[n-1] = bestLast
	for t := n - 1; t > 0; t-- {
		path[t-1] = backptr[t][path[t]]
	}
	return path
}
