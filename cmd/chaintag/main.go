// Command chaintag trains and applies a character-aware CRF sequence
// labeler.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const version = "v0.1.0"

func main() {
	// glog logs to files by default; a CLI wants stderr.
	_ = flag.Set("logtostderr", "true")
	flag.Parse()

	app := &cli.App{
		Name:    "chaintag",
		Usage:   "train and apply a character-aware CRF sequence labeler",
		Version: version,
		Commands: []*cli.Command{
			trainCommand(),
			tagCommand(),
			versionCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "chaintag: %v\n", err)
		os.Exit(1)
	}
}
