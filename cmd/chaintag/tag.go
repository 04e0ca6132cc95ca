package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chaintag-ml/chaintag/internal/checkpoint"
	"github.com/chaintag-ml/chaintag/internal/train"
	"github.com/chaintag-ml/chaintag/internal/vocab"
)

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "label sentences with a trained model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "checkpoint",
				Usage:    "model checkpoint written by train",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "vocab",
				Usage: "vocabulary file (defaults to <checkpoint>.vocab)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML config the model was trained with (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "input file, one whitespace-tokenized sentence per line (defaults to stdin)",
			},
		},
		Action: runTag,
	}
}

func runTag(ctx *cli.Context) error {
	cfg := train.DefaultConfig()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = train.LoadConfig(path); err != nil {
			return err
		}
	}

	vocabPath := ctx.String("vocab")
	if vocabPath == "" {
		vocabPath = ctx.String("checkpoint") + ".vocab"
	}
	voc, err := vocab.Load(vocabPath)
	if err != nil {
		return err
	}

	model, err := buildModel(voc, cfg)
	if err != nil {
		return err
	}
	sd, err := checkpoint.Load(ctx.String("checkpoint"))
	if err != nil {
		return err
	}
	if err := model.LoadStateDict(sd); err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path := ctx.String("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	out := ctx.App.Writer
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		chars, words, err := voc.EncodeTokens(tokens)
		if err != nil {
			return err
		}
		path, err := model.Predict(chars, words)
		if err != nil {
			return err
		}
		for i, tok := range tokens {
			fmt.Fprintf(out, "%s\t%s\n", tok, voc.LabelName(path[i]))
		}
		fmt.Fprintln(out)
	}
	return scanner.Err()
}
