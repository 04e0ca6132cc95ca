package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Embedding is a lookup table that maps discrete ids to dense vectors.
//
// The table is a learnable [numEmbed, embedDim] parameter. Forward gathers
// rows; Backward scatter-adds output gradients back into the corresponding
// rows of the table gradient.
type Embedding struct {
	weight   *Parameter // [numEmbed, embedDim]
	numEmbed int
	embedDim int
}

// NewEmbedding creates an Embedding with weights drawn from N(0, 0.1²).
func NewEmbedding(name string, numEmbed, embedDim int) *Embedding {
	return &Embedding{
		weight:   NewParameter(name+".weight", Normal(0.1, numEmbed, embedDim)),
		numEmbed: numEmbed,
		embedDim: embedDim,
	}
}

// NumEmbed returns the number of table entries.
func (e *Embedding) NumEmbed() int { return e.numEmbed }

// EmbedDim returns the embedding dimension.
func (e *Embedding) EmbedDim() int { return e.embedDim }

// Forward gathers the embedding vectors for ids, returning a
// [len(ids), embedDim] matrix.
//
// Panics if any id is outside [0, NumEmbed); callers validate upstream.
func (e *Embedding) Forward(ids []int) *mat.Dense {
	out := mat.NewDense(len(ids), e.embedDim, nil)
	w := e.weight.Value()
	for r, id := range ids {
		if id < 0 || id >= e.numEmbed {
			panic(fmt.Sprintf("Embedding.Forward: id %d out of range [0, %d)", id, e.numEmbed))
		}
		out.SetRow(r, w.RawRowView(id))
	}
	return out
}

// Backward scatter-adds dy rows into the table gradient at the looked-up ids.
//
// dy must have shape [len(ids), embedDim].
func (e *Embedding) Backward(ids []int, dy *mat.Dense) {
	g := e.weight.Grad()
	for r, id := range ids {
		grow := g.RawRowView(id)
		drow := dy.RawRowView(r)
		for c := range grow {
			grow[c] += drow[c]
		}
	}
}

// Parameters returns the embedding table parameter.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.weight}
}
