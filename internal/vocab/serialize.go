package vocab

import (
	"encoding/gob"
	"fmt"
	"os"
)

// vocabFile is the gob-encoded on-disk form of a Vocab.
type vocabFile struct {
	Chars   map[rune]int
	Labels  []string
	Vectors map[string][]float64
	WordDim int
}

// Save writes the vocabulary to path so that a trained model can be
// reconstructed for tagging.
func (v *Vocab) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vocab: create: %w", err)
	}
	defer f.Close()

	vf := vocabFile{
		Chars:   v.charIdx,
		Labels:  v.labels,
		Vectors: v.vectors,
		WordDim: v.wordDim,
	}
	if err := gob.NewEncoder(f).Encode(vf); err != nil {
		return fmt.Errorf("vocab: encode: %w", err)
	}
	return nil
}

// Load reads a vocabulary written by Save.
func Load(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: open: %w", err)
	}
	defer f.Close()

	var vf vocabFile
	if err := gob.NewDecoder(f).Decode(&vf); err != nil {
		return nil, fmt.Errorf("vocab: decode: %w", err)
	}

	v := &Vocab{
		charIdx:  vf.Chars,
		labels:   vf.Labels,
		labelIdx: make(map[string]int, len(vf.Labels)),
		vectors:  vf.Vectors,
		wordDim:  vf.WordDim,
	}
	for id, name := range vf.Labels {
		v.labelIdx[name] = id
	}
	return v, nil
}
