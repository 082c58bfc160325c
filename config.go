package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config contains all key hyperparameters.
//
// - n_inputs: number of features per sample
// - layers: output size of each layer, last one is the network output
// - learning_rate: step size for gradient descent
// - iterations: number of training steps a run performs
// - log_every: report cadence, in iterations
// - hidden_relu: apply ReLU between layers (off reproduces a purely affine net)
// - seed: weight initialization seed, 0 picks a random one
type Config struct {
	NInputs      int     `json:"n_inputs"`
	Layers       []int   `json:"layers"`
	LearningRate float64 `json:"learning_rate"`
	Iterations   int     `json:"iterations"`
	LogEvery     int     `json:"log_every"`
	HiddenReLU   bool    `json:"hidden_relu"`
	Seed         uint64  `json:"seed"`
}

// DefaultConfig returns the settings of the reference training run.
func DefaultConfig() Config {
	return Config{
		NInputs:      3,
		Layers:       []int{4, 4, 1},
		LearningRate: 0.005,
		Iterations:   100,
		LogEvery:     10,
	}
}

// LoadConfig reads a JSON config file on top of the defaults.
// Fields missing from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate rejects configs that cannot build or train a network.
func (c Config) Validate() error {
	if c.NInputs < 1 {
		return errors.Errorf("n_inputs must be positive, got %d", c.NInputs)
	}
	if len(c.Layers) == 0 {
		return errors.New("layers must not be empty")
	}
	for i, n := range c.Layers {
		if n < 1 {
			return errors.Errorf("layer %d size must be positive, got %d", i, n)
		}
	}
	if c.Layers[len(c.Layers)-1] != 1 {
		return errors.Errorf("last layer must have one output, got %d", c.Layers[len(c.Layers)-1])
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.Iterations < 0 {
		return errors.Errorf("iterations must not be negative, got %d", c.Iterations)
	}
	if c.LogEvery < 0 {
		return errors.Errorf("log_every must not be negative, got %d", c.LogEvery)
	}
	return nil
}
