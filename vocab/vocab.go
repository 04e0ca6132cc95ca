// Copyright 2025 The chaintag Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vocab provides the public API for the vocabulary that encodes
// tokens, characters and labels for the tagger.
//
// A Vocab is built once from raw training data plus a pretrained
// word-vector table and is read-only afterwards:
//
//	vectors, dim, err := vocab.LoadVectors("vectors.txt")
//	voc, err := vocab.Build(sentences, labelSeqs, vectors, dim)
//	chars, words, err := voc.EncodeTokens(tokens)
package vocab

import (
	"github.com/chaintag-ml/chaintag/internal/vocab"
)

// UnknownChar is the reserved character id for characters never seen while
// building the vocabulary.
const UnknownChar = vocab.UnknownChar

// Vocab is an immutable token/character/label encoder.
type Vocab = vocab.Vocab

// Build constructs a Vocab from raw training sentences and their label
// sequences plus a pretrained word-vector table.
func Build(sentences [][]string, labelSeqs [][]string, vectors map[string][]float64, wordDim int) (*Vocab, error) {
	return vocab.Build(sentences, labelSeqs, vectors, wordDim)
}

// Load reads a vocabulary written by Vocab.Save.
func Load(path string) (*Vocab, error) {
	return vocab.Load(path)
}

// LoadVectors reads a plain text word-vector file: one word per line
// followed by its whitespace-separated components. Returns the table and
// the (constant) vector dimension.
func LoadVectors(path string) (map[string][]float64, int, error) {
	return vocab.LoadVectors(path)
}
