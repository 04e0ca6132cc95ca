// Package tagger wires the character encoder, the recurrent feature
// composer and the CRF layer into a sentence tagger.
//
// The pipeline for one sentence follows the classic Bi-LSTM CRF
// architecture: each word is encoded from its characters, the char vector
// is concatenated with the word's pretrained embedding, the concatenated
// sequence runs through a (bi)LSTM stack, and a linear projection produces
// per-label emission scores that the CRF scores and decodes.
package tagger

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/chaintag-ml/chaintag/internal/crf"
	"github.com/chaintag-ml/chaintag/internal/nn"
	"github.com/chaintag-ml/chaintag/internal/vocab"
)

// Config holds the feature composer's hyperparameters.
type Config struct {
	HiddenDim     int     // per-direction recurrent hidden size (default 100)
	Layers        int     // stacked recurrent layers (default 1)
	Dropout       float64 // between-layer dropout probability
	Bidirectional bool    // bidirectional recurrent layer
}

// Tagger is the sequence-labeling model.
//
// Parameters are mutated only by optimizer steps between calls. Loss
// accumulates gradients; Predict is read-only.
type Tagger struct {
	vocab    *vocab.Vocab
	charLSTM *CharLSTM
	crf      *crf.CRF
	rnn      *nn.StackedLSTM
	proj     *nn.Linear
}

// New creates a Tagger and validates that the components agree on the
// vocabulary: the character encoder must cover exactly the vocab's
// characters and the CRF exactly its labels. Mismatches fail fast here
// rather than mis-indexing during training.
func New(v *vocab.Vocab, charLSTM *CharLSTM, c *crf.CRF, cfg Config) (*Tagger, error) {
	if v.NChars() != charLSTM.NChars() {
		return nil, fmt.Errorf("tagger: vocab has %d characters but char encoder was built for %d",
			v.NChars(), charLSTM.NChars())
	}
	if v.NLabels() != c.NumLabels() {
		return nil, fmt.Errorf("tagger: vocab has %d labels but CRF was built for %d",
			v.NLabels(), c.NumLabels())
	}
	if cfg.HiddenDim == 0 {
		cfg.HiddenDim = 100
	}
	if cfg.Layers == 0 {
		cfg.Layers = 1
	}

	inSize := charLSTM.OutputSize() + v.WordDim()
	rnn := nn.NewStackedLSTM("rnn", inSize, cfg.HiddenDim, cfg.Layers, cfg.Dropout, cfg.Bidirectional)
	return &Tagger{
		vocab:    v,
		charLSTM: charLSTM,
		crf:      c,
		rnn:      rnn,
		proj:     nn.NewLinear("proj", rnn.OutputSize(), v.NLabels()),
	}, nil
}

// Vocab returns the vocabulary the tagger was built against.
func (t *Tagger) Vocab() *vocab.Vocab { return t.vocab }

// CRF returns the tagger's CRF layer.
func (t *Tagger) CRF() *crf.CRF { return t.crf }

// Parameters returns every trainable parameter of the model.
func (t *Tagger) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	params = append(params, t.charLSTM.Parameters()...)
	params = append(params, t.rnn.Parameters()...)
	params = append(params, t.proj.Parameters()...)
	params = append(params, t.crf.Parameters()...)
	return params
}

// featCache carries the intermediate activations of one training forward
// pass; it is per-call state, never shared between sentences.
type featCache struct {
	charCache *charCache
	rnnCache  *nn.StackedCache
	rnnOut    *mat.Dense
}

// features computes the [sentLen, nLabels] emission scores for one sentence.
//
// chars holds the character-id sequence of every word; words the parallel
// [sentLen, WordDim] pretrained embeddings. Shape mismatches are rejected
// before any recurrence runs.
func (t *Tagger) features(chars [][]int, words *mat.Dense, train bool) (*mat.Dense, *featCache, error) {
	rows, cols := words.Dims()
	if len(chars) != rows {
		return nil, nil, fmt.Errorf("tagger: %d character sequences but %d word embeddings", len(chars), rows)
	}
	if cols != t.vocab.WordDim() {
		return nil, nil, fmt.Errorf("tagger: word embeddings have dimension %d, want %d", cols, t.vocab.WordDim())
	}

	charFeats, cc, err := t.charLSTM.Forward(chars, train)
	if err != nil {
		return nil, nil, err
	}

	rnnIn := hconcat(charFeats, words)
	rnnOut, rc := t.rnn.Forward(rnnIn, train)
	feats := t.proj.Forward(rnnOut)

	if !train {
		return feats, nil, nil
	}
	return feats, &featCache{charCache: cc, rnnCache: rc, rnnOut: rnnOut}, nil
}

// Predict returns the Viterbi-decoded label-id sequence for one sentence.
//
// Runs in evaluation mode: dropout is inactive and no gradient state is
// recorded.
func (t *Tagger) Predict(chars [][]int, words *mat.Dense) ([]int, error) {
	feats, _, err := t.features(chars, words, false)
	if err != nil {
		return nil, err
	}
	n, _ := feats.Dims()
	paths, err := t.crf.Decode([]*mat.Dense{feats}, []int{n})
	if err != nil {
		return nil, err
	}
	return paths[0], nil
}

// Loss computes the negative log-likelihood of the gold label sequence for
// one sentence and accumulates gradients for every parameter.
//
// The emission gradient from the CRF flows back through the projection, the
// recurrent stack and the character encoder; the pretrained word embeddings
// are inputs, not parameters, and receive no gradient.
func (t *Tagger) Loss(chars [][]int, words *mat.Dense, labs []int) (float64, error) {
	if len(labs) != len(chars) {
		return 0, fmt.Errorf("tagger: %d labels but %d words", len(labs), len(chars))
	}

	feats, cache, err := t.features(chars, words, true)
	if err != nil {
		return 0, err
	}
	n, _ := feats.Dims()
	nll, dFeats, err := t.crf.Loss([]*mat.Dense{feats}, [][]int{labs}, []int{n})
	if err != nil {
		return 0, err
	}

	dOut := t.proj.Backward(cache.rnnOut, dFeats[0])
	dIn := t.rnn.Backward(cache.rnnCache, dOut)

	charOut := t.charLSTM.OutputSize()
	dChar := dIn.Slice(0, n, 0, charOut).(*mat.Dense)
	t.charLSTM.Backward(cache.charCache, dChar)

	return nll, nil
}

// StateDict returns a name-to-value map of every parameter, suitable for
// checkpointing.
func (t *Tagger) StateDict() map[string]*mat.Dense {
	sd := make(map[string]*mat.Dense)
	for _, p := range t.Parameters() {
		sd[p.Name()] = p.Value()
	}
	return sd
}

// LoadStateDict copies parameter values from a state dict produced by
// StateDict. Every parameter must be present with a matching shape.
func (t *Tagger) LoadStateDict(sd map[string]*mat.Dense) error {
	for _, p := range t.Parameters() {
		src, ok := sd[p.Name()]
		if !ok {
			return fmt.Errorf("tagger: missing %s in state dict", p.Name())
		}
		pr, pc := p.Dims()
		sr, sc := src.Dims()
		if pr != sr || pc != sc {
			return fmt.Errorf("tagger: %s shape mismatch: have %dx%d, want %dx%d", p.Name(), sr, sc, pr, pc)
		}
		p.Value().Copy(src)
	}
	return nil
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
