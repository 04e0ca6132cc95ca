// Package dataset loads and iterates over tagged-sentence corpora.
//
// The expected file format is one token and its tab-separated label per
// line, with a blank line between sentences:
//
//	Hi	O
//	there	O
//
//	how	O
//	are	O
//	you	O
//
// Loading happens in two stages: ReadRaw parses the file into token/label
// strings (used to build the vocabulary), and Load encodes a file against an
// existing vocabulary into the numeric structures the tagger consumes.
package dataset

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/mat"

	"github.com/chaintag-ml/chaintag/internal/vocab"
)

// Sentence is one encoded training or evaluation example.
type Sentence struct {
	Tokens []string
	Chars  [][]int    // per-word character ids
	Words  *mat.Dense // [len(Tokens), WordDim] pretrained embeddings
	Labels []int      // gold label ids, parallel to Tokens
}

// Dataset is an ordered collection of encoded sentences.
type Dataset struct {
	Sentences []*Sentence
}

// Len returns the number of sentences.
func (d *Dataset) Len() int { return len(d.Sentences) }

// Shuffle permutes the sentences in place using rng.
//
// Tokens and labels travel together: a sentence is shuffled as a unit.
func (d *Dataset) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.Sentences), func(i, j int) {
		d.Sentences[i], d.Sentences[j] = d.Sentences[j], d.Sentences[i]
	})
}

// ReadRaw parses a corpus file into raw token and label sequences.
//
// Malformed lines (no tab separator) are skipped with a warning. limit > 0
// stops after that many sentences.
func ReadRaw(path string, limit int) (tokens [][]string, labels [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: open: %w", err)
	}
	defer f.Close()

	glog.Infof("loading %s", path)

	var src, tgt []string
	flush := func() {
		if len(src) > 0 {
			tokens = append(tokens, src)
			labels = append(labels, tgt)
			src, tgt = nil, nil
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			flush()
			if limit > 0 && len(tokens) == limit {
				return tokens, labels, nil
			}
			continue
		}
		tok, lab, ok := strings.Cut(text, "\t")
		if !ok || tok == "" {
			glog.Warningf("%s:%d: skipping malformed line %q", path, line, text)
			continue
		}
		src = append(src, tok)
		tgt = append(tgt, lab)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("dataset: read: %w", err)
	}
	flush()
	return tokens, labels, nil
}

// Load reads a corpus file and encodes it against v.
func Load(path string, v *vocab.Vocab, limit int) (*Dataset, error) {
	tokens, labels, err := ReadRaw(path, limit)
	if err != nil {
		return nil, err
	}
	d := &Dataset{}
	for i := range tokens {
		chars, words, err := v.EncodeTokens(tokens[i])
		if err != nil {
			return nil, fmt.Errorf("dataset: sentence %d: %w", i, err)
		}
		labs, err := v.EncodeLabels(labels[i])
		if err != nil {
			return nil, fmt.Errorf("dataset: sentence %d: %w", i, err)
		}
		d.Sentences = append(d.Sentences, &Sentence{
			Tokens: tokens[i],
			Chars:  chars,
			Words:  words,
			Labels: labs,
		})
	}
	glog.Infof("loaded %d sentences from %s", d.Len(), path)
	return d, nil
}
