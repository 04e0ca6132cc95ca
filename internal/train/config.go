package train

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds every training and model hyperparameter.
//
// Field names map to snake_case TOML keys, e.g.:
//
//	epochs = 20
//	lr = 0.01
//	optimizer = "sgd"
//	hidden_dim = 100
//	bidirectional = true
type Config struct {
	Epochs    int     `toml:"epochs"`
	LR        float64 `toml:"lr"`
	Optimizer string  `toml:"optimizer"` // "sgd" or "adam"
	Momentum  float64 `toml:"momentum"`
	GradClip  float64 `toml:"grad_clip"`

	CharEmbedDim      int  `toml:"char_embed_dim"`
	CharHiddenDim     int  `toml:"char_hidden_dim"`
	CharBidirectional bool `toml:"char_bidirectional"`

	HiddenDim     int     `toml:"hidden_dim"`
	Layers        int     `toml:"layers"`
	Dropout       float64 `toml:"dropout"`
	Bidirectional bool    `toml:"bidirectional"`

	Limit        int     `toml:"limit"`         // max sentences to load (0 = all)
	EvalFraction float64 `toml:"eval_fraction"` // held-out slice for accuracy
	Checkpoint   string  `toml:"checkpoint"`
	Seed         int64   `toml:"seed"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() *Config {
	return &Config{
		Epochs:            20,
		LR:                0.01,
		Optimizer:         "sgd",
		Momentum:          0.9,
		GradClip:          5.0,
		CharEmbedDim:      30,
		CharHiddenDim:     25,
		CharBidirectional: true,
		HiddenDim:         100,
		Layers:            1,
		Dropout:           0.0,
		Bidirectional:     true,
		EvalFraction:      0.1,
		Checkpoint:        "chaintag.ckpt",
		Seed:              1,
	}
}

// LoadConfig reads a TOML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("train: config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the trainer cannot run.
func (c *Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("train: epochs must be >= 1, got %d", c.Epochs)
	}
	if c.Optimizer != "sgd" && c.Optimizer != "adam" {
		return fmt.Errorf("train: unknown optimizer %q", c.Optimizer)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("train: dropout must be in [0, 1), got %g", c.Dropout)
	}
	if c.EvalFraction < 0 || c.EvalFraction >= 1 {
		return fmt.Errorf("train: eval_fraction must be in [0, 1), got %g", c.EvalFraction)
	}
	return nil
}
