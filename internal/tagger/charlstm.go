package tagger

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/chaintag-ml/chaintag/internal/nn"
)

// CharLSTM encodes each word of a sentence into one fixed-size vector from
// its character sequence.
//
// Every word is embedded character-by-character and run through a recurrent
// cell at its own true length, so no masking is needed here. The word vector
// is the final hidden state, or for the bidirectional variant the
// concatenation of the forward cell's final state and the reverse cell's
// final state (which sits at the first character).
type CharLSTM struct {
	embed         *nn.Embedding
	fwd           *nn.LSTM
	bwd           *nn.LSTM // nil when unidirectional
	nChars        int
	hidden        int
	bidirectional bool
}

// NewCharLSTM creates a character encoder.
//
// nChars is the character vocabulary size, embedDim the character embedding
// dimension, hidden the per-direction recurrent hidden size.
func NewCharLSTM(nChars, embedDim, hidden int, bidirectional bool) (*CharLSTM, error) {
	if nChars < 1 {
		return nil, fmt.Errorf("charlstm: nChars must be >= 1, got %d", nChars)
	}
	c := &CharLSTM{
		embed:         nn.NewEmbedding("charlstm.embed", nChars, embedDim),
		fwd:           nn.NewLSTM("charlstm.fwd", embedDim, hidden),
		nChars:        nChars,
		hidden:        hidden,
		bidirectional: bidirectional,
	}
	if bidirectional {
		c.bwd = nn.NewLSTM("charlstm.bwd", embedDim, hidden)
	}
	return c, nil
}

// NChars returns the character vocabulary size the encoder was built for.
func (c *CharLSTM) NChars() int { return c.nChars }

// OutputSize returns the word-vector size: hidden×2 when bidirectional.
func (c *CharLSTM) OutputSize() int {
	if c.bidirectional {
		return 2 * c.hidden
	}
	return c.hidden
}

// Parameters returns the embedding and cell parameters.
func (c *CharLSTM) Parameters() []*nn.Parameter {
	params := append([]*nn.Parameter{}, c.embed.Parameters()...)
	params = append(params, c.fwd.Parameters()...)
	if c.bwd != nil {
		params = append(params, c.bwd.Parameters()...)
	}
	return params
}

// charCache holds the per-word state needed to backpropagate one Forward.
type charCache struct {
	words [][]int
	fwd   []*nn.LSTMCache
	bwd   []*nn.LSTMCache
}

// Forward encodes every word of a sentence, returning a
// [len(words), OutputSize()] matrix with one vector per word.
//
// Each entry of words is the character-id sequence of one word. Words must
// be non-empty and ids must lie in [0, NChars()); both are rejected with an
// error before any computation.
//
// withCache enables a later Backward call.
func (c *CharLSTM) Forward(words [][]int, withCache bool) (*mat.Dense, *charCache, error) {
	if len(words) == 0 {
		return nil, nil, fmt.Errorf("charlstm: empty sentence")
	}
	for w, ids := range words {
		if len(ids) == 0 {
			return nil, nil, fmt.Errorf("charlstm: word %d has no characters", w)
		}
		for _, id := range ids {
			if id < 0 || id >= c.nChars {
				return nil, nil, fmt.Errorf("charlstm: word %d has character id %d out of range [0, %d)",
					w, id, c.nChars)
			}
		}
	}

	out := mat.NewDense(len(words), c.OutputSize(), nil)
	var cache *charCache
	if withCache {
		cache = &charCache{
			words: words,
			fwd:   make([]*nn.LSTMCache, len(words)),
			bwd:   make([]*nn.LSTMCache, len(words)),
		}
	}

	for w, ids := range words {
		emb := c.embed.Forward(ids)

		hf, cf := c.fwd.Forward(emb, false, withCache)
		row := out.RawRowView(w)
		copy(row[:c.hidden], hf.RawRowView(len(ids)-1))
		if withCache {
			cache.fwd[w] = cf
		}

		if c.bwd != nil {
			hb, cb := c.bwd.Forward(emb, true, withCache)
			copy(row[c.hidden:], hb.RawRowView(0))
			if withCache {
				cache.bwd[w] = cb
			}
		}
	}
	return out, cache, nil
}

// Backward backpropagates per-word output gradients (shape
// [len(words), OutputSize()]) through the cells and scatter-adds into the
// character embedding table.
func (c *CharLSTM) Backward(cache *charCache, dy *mat.Dense) {
	for w, ids := range cache.words {
		T := len(ids)
		dyRow := dy.RawRowView(w)

		// Only the final hidden state of each direction fed the output.
		dhF := mat.NewDense(T, c.hidden, nil)
		dhF.SetRow(T-1, dyRow[:c.hidden])
		dEmb := c.fwd.Backward(cache.fwd[w], dhF)

		if c.bwd != nil {
			dhB := mat.NewDense(T, c.hidden, nil)
			dhB.SetRow(0, dyRow[c.hidden:])
			dEmbB := c.bwd.Backward(cache.bwd[w], dhB)
			dEmb.Add(dEmb, dEmbB)
		}
		c.embed.Backward(ids, dEmb)
	}
}
