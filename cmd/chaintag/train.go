package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chaintag-ml/chaintag/internal/crf"
	"github.com/chaintag-ml/chaintag/internal/dataset"
	"github.com/chaintag-ml/chaintag/internal/tagger"
	"github.com/chaintag-ml/chaintag/internal/train"
	"github.com/chaintag-ml/chaintag/internal/vocab"
)

func trainCommand() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "train a tagger on a token/label corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Usage:    "training corpus: token TAB label per line, blank line between sentences",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "vectors",
				Usage:    "pretrained word vectors: word followed by its components, one word per line",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML training config (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:  "checkpoint",
				Usage: "where to write the best model (overrides config)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "load at most this many sentences (overrides config)",
			},
		},
		Action: runTrain,
	}
}

func runTrain(ctx *cli.Context) error {
	cfg := train.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = train.LoadConfig(path); err != nil {
			return err
		}
	}
	if ctx.IsSet("checkpoint") {
		cfg.Checkpoint = ctx.String("checkpoint")
	}
	if ctx.IsSet("limit") {
		cfg.Limit = ctx.Int("limit")
	}

	vectors, wordDim, err := vocab.LoadVectors(ctx.String("vectors"))
	if err != nil {
		return err
	}

	tokens, labels, err := dataset.ReadRaw(ctx.String("data"), cfg.Limit)
	if err != nil {
		return err
	}
	voc, err := vocab.Build(tokens, labels, vectors, wordDim)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(ctx.String("data"), voc, cfg.Limit)
	if err != nil {
		return err
	}

	model, err := buildModel(voc, cfg)
	if err != nil {
		return err
	}

	trainer, err := train.New(cfg, model)
	if err != nil {
		return err
	}
	trainer.Progress = true
	if err := trainer.Run(ds); err != nil {
		return err
	}

	if cfg.Checkpoint != "" {
		vocabPath := cfg.Checkpoint + ".vocab"
		if err := voc.Save(vocabPath); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "model written to %s, vocabulary to %s\n", cfg.Checkpoint, vocabPath)
	}
	return nil
}

// buildModel assembles the char encoder, CRF and tagger from a config.
func buildModel(voc *vocab.Vocab, cfg *train.Config) (*tagger.Tagger, error) {
	charEnc, err := tagger.NewCharLSTM(voc.NChars(), cfg.CharEmbedDim, cfg.CharHiddenDim, cfg.CharBidirectional)
	if err != nil {
		return nil, err
	}
	c, err := crf.New(voc.NLabels())
	if err != nil {
		return nil, err
	}
	return tagger.New(voc, charEnc, c, tagger.Config{
		HiddenDim:     cfg.HiddenDim,
		Layers:        cfg.Layers,
		Dropout:       cfg.Dropout,
		Bidirectional: cfg.Bidirectional,
	})
}
