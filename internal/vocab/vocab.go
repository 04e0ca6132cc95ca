// Package vocab maps raw tokens, characters and labels to the numeric
// structures the tagger consumes.
//
// A Vocab is constructed once before training and read-only afterwards: it
// holds the character and label id maps plus the pretrained word-vector
// table. Unknown characters map to a reserved id 0; unknown words map to a
// zero vector of the table's dimension.
package vocab

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// UnknownChar is the reserved character id for characters never seen while
// building the vocabulary.
const UnknownChar = 0

// Vocab is an immutable token/character/label encoder.
type Vocab struct {
	charIdx  map[rune]int
	labels   []string
	labelIdx map[string]int
	vectors  map[string][]float64
	wordDim  int
}

// Build constructs a Vocab from raw training sentences and their label
// sequences plus a pretrained word-vector table.
//
// Character and label ids are assigned in first-seen order, so building from
// the same data always yields the same encoding. Every vector in the table
// must have length wordDim.
func Build(sentences [][]string, labelSeqs [][]string, vectors map[string][]float64, wordDim int) (*Vocab, error) {
	if wordDim < 1 {
		return nil, fmt.Errorf("vocab: word vector dimension must be >= 1, got %d", wordDim)
	}
	for w, vec := range vectors {
		if len(vec) != wordDim {
			return nil, fmt.Errorf("vocab: vector for %q has dimension %d, want %d", w, len(vec), wordDim)
		}
	}

	v := &Vocab{
		charIdx:  make(map[rune]int),
		labelIdx: make(map[string]int),
		vectors:  vectors,
		wordDim:  wordDim,
	}
	for _, sent := range sentences {
		for _, tok := range sent {
			for _, r := range tok {
				if _, ok := v.charIdx[r]; !ok {
					v.charIdx[r] = len(v.charIdx) + 1 // 0 is reserved for unknown
				}
			}
		}
	}
	for _, seq := range labelSeqs {
		for _, lab := range seq {
			if _, ok := v.labelIdx[lab]; !ok {
				v.labelIdx[lab] = len(v.labels)
				v.labels = append(v.labels, lab)
			}
		}
	}
	if len(v.labels) == 0 {
		return nil, fmt.Errorf("vocab: no labels in training data")
	}
	return v, nil
}

// NChars returns the character vocabulary size, including the unknown id.
func (v *Vocab) NChars() int { return len(v.charIdx) + 1 }

// NLabels returns the number of distinct labels.
func (v *Vocab) NLabels() int { return len(v.labels) }

// WordDim returns the word-vector dimension.
func (v *Vocab) WordDim() int { return v.wordDim }

// Labels returns the label names in id order.
func (v *Vocab) Labels() []string { return v.labels }

// LabelID returns the id of a label name.
func (v *Vocab) LabelID(name string) (int, bool) {
	id, ok := v.labelIdx[name]
	return id, ok
}

// LabelName returns the name of a label id.
//
// Panics if id is out of range; decoded ids always come from the CRF, which
// was sized against this vocabulary at construction.
func (v *Vocab) LabelName(id int) string { return v.labels[id] }

// CharIDs encodes a token's characters, mapping unseen characters to
// UnknownChar.
func (v *Vocab) CharIDs(token string) []int {
	ids := make([]int, 0, len(token))
	for _, r := range token {
		ids = append(ids, v.charIdx[r]) // zero value is UnknownChar
	}
	return ids
}

// WordVector returns the pretrained vector for a token, or a zero vector
// for unknown words.
func (v *Vocab) WordVector(token string) []float64 {
	if vec, ok := v.vectors[token]; ok {
		return vec
	}
	return make([]float64, v.wordDim)
}

// EncodeTokens converts a sentence into the two numeric structures the
// tagger consumes: per-word character-id sequences and the
// [len(tokens), WordDim()] embedding matrix.
//
// Empty sentences and empty tokens are rejected: the character encoder
// requires at least one character per word.
func (v *Vocab) EncodeTokens(tokens []string) ([][]int, *mat.Dense, error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("vocab: empty sentence")
	}
	chars := make([][]int, len(tokens))
	words := mat.NewDense(len(tokens), v.wordDim, nil)
	for i, tok := range tokens {
		ids := v.CharIDs(tok)
		if len(ids) == 0 {
			return nil, nil, fmt.Errorf("vocab: token %d is empty", i)
		}
		chars[i] = ids
		words.SetRow(i, v.WordVector(tok))
	}
	return chars, words, nil
}

// EncodeLabels converts a label-name sequence into ids.
func (v *Vocab) EncodeLabels(names []string) ([]int, error) {
	ids := make([]int, len(names))
	for i, name := range names {
		id, ok := v.labelIdx[name]
		if !ok {
			return nil, fmt.Errorf("vocab: unknown label %q", name)
		}
		ids[i] = id
	}
	return ids, nil
}

// LoadVectors reads a plain text word-vector file: one word per line
// followed by its whitespace-separated components. Returns the table and
// the (constant) vector dimension.
func LoadVectors(path string) (map[string][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("vocab: open vectors: %w", err)
	}
	defer f.Close()

	vectors := make(map[string][]float64)
	dim := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		vec := make([]float64, len(fields)-1)
		for i, s := range fields[1:] {
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("vocab: vectors line %d: %w", line, err)
			}
			vec[i] = x
		}
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return nil, 0, fmt.Errorf("vocab: vectors line %d: dimension %d, want %d", line, len(vec), dim)
		}
		vectors[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("vocab: read vectors: %w", err)
	}
	if dim == 0 {
		return nil, 0, fmt.Errorf("vocab: no vectors in %s", path)
	}
	return vectors, dim, nil
}
