// Copyright 2025 The chaintag Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tagger provides the public API for the Bi-LSTM CRF sentence
// tagger.
//
// A Tagger combines a character-level encoder, a recurrent feature composer
// and a CRF layer:
//
//	charEnc, err := tagger.NewCharLSTM(voc.NChars(), 30, 25, true)
//	layer, err := crf.New(voc.NLabels())
//	model, err := tagger.New(voc, charEnc, layer, tagger.Config{
//	    HiddenDim:     100,
//	    Bidirectional: true,
//	})
//
//	path, err := model.Predict(chars, words) // best label ids
//	nll, err := model.Loss(chars, words, golds)
package tagger

import (
	"github.com/chaintag-ml/chaintag/internal/crf"
	"github.com/chaintag-ml/chaintag/internal/tagger"
	"github.com/chaintag-ml/chaintag/internal/vocab"
)

// Tagger is the sequence-labeling model.
type Tagger = tagger.Tagger

// Config holds the feature composer's hyperparameters.
type Config = tagger.Config

// CharLSTM encodes each word into one vector from its characters.
type CharLSTM = tagger.CharLSTM

// New creates a Tagger, validating that the components agree on the
// vocabulary's character and label counts.
func New(v *vocab.Vocab, charLSTM *CharLSTM, c *crf.CRF, cfg Config) (*Tagger, error) {
	return tagger.New(v, charLSTM, c, cfg)
}

// NewCharLSTM creates a character encoder.
func NewCharLSTM(nChars, embedDim, hidden int, bidirectional bool) (*CharLSTM, error) {
	return tagger.NewCharLSTM(nChars, embedDim, hidden, bidirectional)
}
