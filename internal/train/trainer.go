// Package train runs the training loop for the tagger.
package train

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/glog"
	"github.com/gosuri/uiprogress"

	"github.com/chaintag-ml/chaintag/internal/checkpoint"
	"github.com/chaintag-ml/chaintag/internal/dataset"
	"github.com/chaintag-ml/chaintag/internal/nn"
	"github.com/chaintag-ml/chaintag/internal/optim"
	"github.com/chaintag-ml/chaintag/internal/tagger"
)

// Trainer drives epochs of gradient descent over a dataset.
type Trainer struct {
	cfg    *Config
	model  *tagger.Tagger
	opt    optim.Optimizer
	params []*nn.Parameter
	rng    *rand.Rand

	// Progress indicates whether to render a per-epoch progress bar.
	// Off by default so tests and non-interactive runs stay quiet.
	Progress bool
}

// New creates a Trainer for the given model and config.
func New(cfg *Config, model *tagger.Tagger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params := model.Parameters()
	var opt optim.Optimizer
	switch cfg.Optimizer {
	case "sgd":
		opt = optim.NewSGD(params, optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum})
	case "adam":
		opt = optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR})
	default:
		return nil, fmt.Errorf("train: unknown optimizer %q", cfg.Optimizer)
	}
	return &Trainer{
		cfg:    cfg,
		model:  model,
		opt:    opt,
		params: params,
		rng:    rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // reproducible shuffling
	}, nil
}

// Run trains over the dataset for the configured number of epochs.
//
// A slice of EvalFraction sentences is held out for token accuracy; the
// checkpoint with the best held-out accuracy (or lowest training loss when
// nothing is held out) is kept.
func (t *Trainer) Run(ds *dataset.Dataset) error {
	if ds.Len() == 0 {
		return fmt.Errorf("train: empty dataset")
	}

	nEval := int(float64(ds.Len()) * t.cfg.EvalFraction)
	trainSet := &dataset.Dataset{Sentences: ds.Sentences[:ds.Len()-nEval]}
	evalSet := &dataset.Dataset{Sentences: ds.Sentences[ds.Len()-nEval:]}
	if trainSet.Len() == 0 {
		return fmt.Errorf("train: no sentences left after holding out %d for eval", nEval)
	}
	glog.Infof("training on %d sentences, evaluating on %d", trainSet.Len(), evalSet.Len())

	bestScore := math.Inf(-1)
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		trainSet.Shuffle(t.rng)

		var bar *uiprogress.Bar
		if t.Progress {
			uiprogress.Start()
			bar = uiprogress.AddBar(trainSet.Len())
			bar.AppendCompleted()
			bar.PrependElapsed()
		}

		totalLoss := 0.0
		for _, sent := range trainSet.Sentences {
			loss, err := t.model.Loss(sent.Chars, sent.Words, sent.Labels)
			if err != nil {
				if bar != nil {
					uiprogress.Stop()
				}
				return fmt.Errorf("train: epoch %d: %w", epoch, err)
			}
			totalLoss += loss

			norm := optim.ClipGradNorm(t.params, t.cfg.GradClip)
			if glog.V(2) {
				glog.Infof("epoch %d: loss %.4f grad norm %.4f", epoch, loss, norm)
			}
			t.opt.Step()
			t.opt.ZeroGrad()

			if bar != nil {
				bar.Incr()
			}
		}
		if bar != nil {
			uiprogress.Stop()
		}

		meanLoss := totalLoss / float64(trainSet.Len())
		score := -meanLoss
		if evalSet.Len() > 0 {
			acc, err := t.Accuracy(evalSet)
			if err != nil {
				return fmt.Errorf("train: epoch %d eval: %w", epoch, err)
			}
			score = acc
			glog.Infof("epoch %d: mean loss %.4f, eval accuracy %.4f", epoch, meanLoss, acc)
		} else {
			glog.Infof("epoch %d: mean loss %.4f", epoch, meanLoss)
		}

		if t.cfg.Checkpoint != "" && score > bestScore {
			bestScore = score
			if err := checkpoint.Save(t.cfg.Checkpoint, t.model.StateDict()); err != nil {
				return err
			}
			glog.Infof("epoch %d: saved checkpoint to %s", epoch, t.cfg.Checkpoint)
		}
	}
	return nil
}

// Accuracy computes token-level accuracy of the model's decoded paths over
// a dataset.
func (t *Trainer) Accuracy(ds *dataset.Dataset) (float64, error) {
	correct, total := 0, 0
	for _, sent := range ds.Sentences {
		path, err := t.model.Predict(sent.Chars, sent.Words)
		if err != nil {
			return 0, err
		}
		for i, lab := range sent.Labels {
			if path[i] == lab {
				correct++
			}
			total++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}
