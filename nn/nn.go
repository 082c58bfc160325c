// Package nn builds small feed-forward networks out of engine values.
package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"nanograd/engine"
)

// Neuron computes b + Σ w_i·x_i, optionally followed by ReLU.
type Neuron struct {
	W         []*engine.Value
	B         *engine.Value
	NonLinear bool
}

// NewNeuron creates a neuron with nin weights drawn from init and a zero bias.
func NewNeuron(nin int, init distuv.Uniform, nonLinear bool) *Neuron {
	w := make([]*engine.Value, nin)
	for i := range w {
		w[i] = engine.NewValue(init.Rand())
	}
	return &Neuron{W: w, B: engine.NewValue(0), NonLinear: nonLinear}
}

// Forward folds the weighted inputs onto the bias, left to right.
// Extra inputs beyond len(W) are ignored.
func (n *Neuron) Forward(xs []*engine.Value) *engine.Value {
	act := n.B
	for i, w := range n.W {
		if i >= len(xs) {
			break
		}
		act = act.Add(w.Mul(xs[i]))
	}
	if n.NonLinear {
		// Relu clamps its input in place; never hand it the bias itself.
		if act == n.B {
			act = n.B.Add(engine.NewValue(0))
		}
		return act.Relu()
	}
	return act
}

// Parameters returns the weights followed by the bias.
func (n *Neuron) Parameters() []*engine.Value {
	return append(append([]*engine.Value(nil), n.W...), n.B)
}

// Layer is a row of neurons that all see the same inputs.
type Layer struct {
	Neurons []*Neuron
}

func NewLayer(nin, nout int, init distuv.Uniform, nonLinear bool) *Layer {
	ns := make([]*Neuron, nout)
	for i := range ns {
		ns[i] = NewNeuron(nin, init, nonLinear)
	}
	return &Layer{Neurons: ns}
}

func (l *Layer) Forward(xs []*engine.Value) []*engine.Value {
	out := make([]*engine.Value, len(l.Neurons))
	for i, n := range l.Neurons {
		out[i] = n.Forward(xs)
	}
	return out
}

func (l *Layer) Parameters() []*engine.Value {
	var params []*engine.Value
	for _, n := range l.Neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

// MLP is a stack of fully connected layers.
type MLP struct {
	Layers []*Layer
}

type options struct {
	src        rand.Source
	hiddenReLU bool
}

// Option configures NewMLP.
type Option func(*options)

// WithSource draws initial weights from src instead of the global generator.
func WithSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithHiddenReLU applies ReLU after every layer except the last.
func WithHiddenReLU() Option {
	return func(o *options) { o.hiddenReLU = true }
}

// NewMLP builds a network taking nin inputs, with one layer per entry of
// nouts. Weights are uniform in [-1, 1), biases start at zero.
func NewMLP(nin int, nouts []int, opts ...Option) *MLP {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	init := distuv.Uniform{Min: -1, Max: 1, Src: o.src}

	sizes := append([]int{nin}, nouts...)
	layers := make([]*Layer, len(nouts))
	for i := range layers {
		nonLinear := o.hiddenReLU && i != len(nouts)-1
		layers[i] = NewLayer(sizes[i], sizes[i+1], init, nonLinear)
	}
	return &MLP{Layers: layers}
}

// Forward runs xs through every layer and returns the last layer's outputs.
func (m *MLP) Forward(xs []*engine.Value) []*engine.Value {
	for _, l := range m.Layers {
		xs = l.Forward(xs)
	}
	return xs
}

// Parameters lists every weight and bias in layer order.
func (m *MLP) Parameters() []*engine.Value {
	var params []*engine.Value
	for _, l := range m.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// ZeroGrad clears the gradient of every parameter.
func (m *MLP) ZeroGrad() {
	engine.ZeroGrads(m.Parameters()...)
}
