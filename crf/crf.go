// Copyright 2025 The chaintag Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package crf provides the public API for the linear-chain conditional
// random field layer.
//
// The CRF owns a learned label-transition matrix plus start/end bias terms
// and operates on batches of emission-score matrices with an explicit
// length vector:
//
//	layer, err := crf.New(nLabels)
//	logZ, err := layer.LogPartition(feats, lens)   // forward algorithm
//	scores, err := layer.Score(feats, golds, lens) // gold-path scores
//	paths, err := layer.Decode(feats, lens)        // Viterbi decoding
//	nll, dFeats, err := layer.Loss(feats, golds, lens)
package crf

import (
	"github.com/chaintag-ml/chaintag/internal/crf"
)

// CRF is a linear-chain conditional random field over a fixed label set.
type CRF = crf.CRF

// New creates a CRF over numLabels labels with small random parameters.
func New(numLabels int) (*CRF, error) {
	return crf.New(numLabels)
}
