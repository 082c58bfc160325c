package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"nanograd/engine"
	"nanograd/nn"
)

// ErrDiverged reports a step whose loss or predictions left the finite range.
var ErrDiverged = errors.New("training diverged: loss is no longer finite")

// Dataset is a set of input rows with one scalar target each.
type Dataset struct {
	Inputs  [][]float64 `json:"inputs"`
	Targets []float64   `json:"targets"`
}

// DefaultDataset is the four-sample toy problem the reference run trains on.
func DefaultDataset() Dataset {
	return Dataset{
		Inputs: [][]float64{
			{2, 3, -1},
			{3, -1, 0.5},
			{0.5, 1, 1},
			{1, 1, -1},
		},
		Targets: []float64{1, -1, -1, 1},
	}
}

func (d Dataset) validate(nin int) error {
	if len(d.Inputs) == 0 {
		return errors.New("dataset is empty")
	}
	if len(d.Inputs) != len(d.Targets) {
		return errors.Errorf("dataset has %d inputs but %d targets", len(d.Inputs), len(d.Targets))
	}
	for i, row := range d.Inputs {
		if len(row) != nin {
			return errors.Errorf("sample %d has %d features, want %d", i, len(row), nin)
		}
	}
	return nil
}

// toValues wraps raw numbers as fresh leaf nodes.
func toValues(xs []float64) []*engine.Value {
	out := make([]*engine.Value, len(xs))
	for i, x := range xs {
		out[i] = engine.NewValue(x)
	}
	return out
}

// SquaredErrorLoss builds Σ (ŷ - y)² out of engine operations only.
// The difference is formed as (-y) + ŷ since the engine has no subtraction.
func SquaredErrorLoss(preds []*engine.Value, targets []float64) *engine.Value {
	loss := engine.NewValue(0)
	for i, yd := range preds {
		diff := engine.NewValue(-targets[i]).Add(yd)
		loss = loss.Add(diff.Mul(diff))
	}
	return loss
}

// StepReport summarizes one gradient-descent step.
//
// Loss is measured before the update, Predictions after it.
type StepReport struct {
	Iteration   int       `json:"iteration"`
	Loss        float64   `json:"loss"`
	Predictions []float64 `json:"predictions"`
	MaxAbsError float64   `json:"max_abs_error"`
}

// Diverged reports whether the loss or any prediction is NaN or infinite.
func (r StepReport) Diverged() bool {
	if math.IsNaN(r.Loss) || math.IsInf(r.Loss, 0) {
		return true
	}
	for _, p := range r.Predictions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return true
		}
	}
	return false
}

// ParamState is one parameter's value and most recent gradient.
type ParamState struct {
	Data float64 `json:"data"`
	Grad float64 `json:"grad"`
}

// Trainer owns a network and the data it is fitted to.
//
// mu serializes steps: a computation graph must only be built and
// differentiated by one goroutine at a time.
type Trainer struct {
	Config Config
	Data   Dataset

	mu    sync.Mutex
	net   *nn.MLP
	steps int
}

// NewTrainer validates cfg and data and initializes a fresh network.
func NewTrainer(cfg Config, data Dataset) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if err := data.validate(cfg.NInputs); err != nil {
		return nil, errors.Wrap(err, "invalid dataset")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	opts := []nn.Option{nn.WithSource(rand.NewPCG(seed, seed))}
	if cfg.HiddenReLU {
		opts = append(opts, nn.WithHiddenReLU())
	}

	return &Trainer{
		Config: cfg,
		Data:   data,
		net:    nn.NewMLP(cfg.NInputs, cfg.Layers, opts...),
	}, nil
}

// Steps returns how many updates have been applied so far.
func (t *Trainer) Steps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steps
}

// NumParams returns the number of trainable scalars.
func (t *Trainer) NumParams() int {
	return len(t.net.Parameters())
}

// Step runs one forward pass over the whole dataset, backpropagates the
// squared-error loss, and moves every parameter against its gradient.
func (t *Trainer) Step() StepReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step()
}

func (t *Trainer) step() StepReport {
	preds := make([]*engine.Value, len(t.Data.Inputs))
	for i, x := range t.Data.Inputs {
		preds[i] = t.net.Forward(toValues(x))[0]
	}
	loss := SquaredErrorLoss(preds, t.Data.Targets)

	// Parameters persist across steps, so last step's gradients must go.
	t.net.ZeroGrad()
	loss.Backward()

	for _, p := range t.net.Parameters() {
		p.Data += t.Config.LearningRate * -p.Grad
	}
	t.steps++

	after := t.predict(t.Data.Inputs)
	return StepReport{
		Iteration:   t.steps,
		Loss:        loss.Data,
		Predictions: after,
		MaxAbsError: floats.Distance(after, t.Data.Targets, math.Inf(1)),
	}
}

// Run performs Config.Iterations steps, writing a report to w every
// Config.LogEvery iterations. It stops early if ctx is cancelled or the
// loss stops being finite.
func (t *Trainer) Run(ctx context.Context, w io.Writer) (StepReport, error) {
	var last StepReport
	for i := 0; i < t.Config.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return last, errors.Wrapf(err, "training stopped after %d iterations", i)
		}
		last = t.Step()
		if last.Diverged() {
			return last, errors.Wrapf(ErrDiverged, "iteration %d", last.Iteration)
		}
		if t.Config.LogEvery > 0 && (i+1)%t.Config.LogEvery == 0 {
			if err := writeReport(w, last); err != nil {
				return last, err
			}
		}
	}
	return last, nil
}

// writeReport prints a step in the reference run's layout: a rule, the
// iteration and loss separated by two spaces, then the predictions as a
// bracketed, comma-separated list.
func writeReport(w io.Writer, r StepReport) error {
	preds := make([]string, len(r.Predictions))
	for i, p := range r.Predictions {
		preds[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	_, err := fmt.Fprintf(w, "=====================\niteration %d loss  %s\n[%s]\n",
		r.Iteration, strconv.FormatFloat(r.Loss, 'g', -1, 64), strings.Join(preds, ", "))
	return errors.Wrap(err, "write report")
}

// Predict runs the network forward on each row and returns the outputs.
func (t *Trainer) Predict(inputs [][]float64) ([]float64, error) {
	for i, row := range inputs {
		if len(row) != t.Config.NInputs {
			return nil, errors.Errorf("input %d has %d features, want %d", i, len(row), t.Config.NInputs)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.predict(inputs), nil
}

func (t *Trainer) predict(inputs [][]float64) []float64 {
	out := make([]float64, len(inputs))
	for i, x := range inputs {
		out[i] = t.net.Forward(toValues(x))[0].Data
	}
	return out
}

// Params snapshots every parameter in network order.
func (t *Trainer) Params() []ParamState {
	t.mu.Lock()
	defer t.mu.Unlock()
	params := t.net.Parameters()
	out := make([]ParamState, len(params))
	for i, p := range params {
		out[i] = ParamState{Data: p.Data, Grad: p.Grad}
	}
	return out
}
