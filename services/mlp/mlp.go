// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mlp composes engine operators into a multilayer perceptron.
//
// A Neuron computes activation(Σ wᵢ·xᵢ + b); a Layer is a list of neurons
// fed the same inputs; an MLP chains layers. Weights and biases are leaves
// of the engine graph passed at construction, so a loss built from the
// network outputs differentiates with respect to every parameter in one
// backward pass.
//
// # Thread Safety
//
// Not safe for concurrent use; see package engine.
package mlp

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/AleutianAI/backprop/services/engine"
)

var (
	// ErrInputSize is returned when the input count does not match the weights.
	ErrInputSize = errors.New("input size mismatch")

	// ErrUnknownActivation is returned for an unrecognized activation name.
	ErrUnknownActivation = errors.New("unknown activation function")

	// ErrInvalidShape is returned for a non-positive input or layer size.
	ErrInvalidShape = errors.New("invalid network shape")
)

// Activation selects a neuron's non-linearity.
type Activation string

const (
	Tanh    Activation = "tanh"
	Sigmoid Activation = "sigmoid"
	ReLU    Activation = "relu"
)

// ParseActivation converts a case-insensitive name to an Activation.
func ParseActivation(name string) (Activation, error) {
	switch a := Activation(strings.ToLower(name)); a {
	case Tanh, Sigmoid, ReLU:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActivation, name)
	}
}

// Apply applies the activation to n.
func (a Activation) Apply(n engine.Node) (engine.Node, error) {
	switch a {
	case Tanh:
		return n.Tanh(), nil
	case Sigmoid:
		return n.Sigmoid(), nil
	case ReLU:
		return n.ReLU(), nil
	default:
		return engine.Node{}, fmt.Errorf("%w: %q", ErrUnknownActivation, string(a))
	}
}

// Neuron holds one weight per input plus a bias.
type Neuron struct {
	weights    []engine.Node
	bias       engine.Node
	activation Activation
}

// NewNeuron creates a neuron with weights and bias drawn uniformly from [-1, 1).
func NewNeuron(g *engine.Graph, inputs int, activation Activation, rng *rand.Rand) (*Neuron, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("%w: %d inputs", ErrInvalidShape, inputs)
	}
	if _, err := ParseActivation(string(activation)); err != nil {
		return nil, err
	}

	weights := make([]engine.Node, inputs)
	for i := range weights {
		weights[i] = g.Leaf(uniform(rng))
	}
	return &Neuron{
		weights:    weights,
		bias:       g.Leaf(uniform(rng)),
		activation: activation,
	}, nil
}

func uniform(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

// Apply builds activation(Σ wᵢ·xᵢ + b) over inputs.
func (n *Neuron) Apply(inputs []engine.Operand) (engine.Node, error) {
	if len(inputs) != len(n.weights) {
		return engine.Node{}, fmt.Errorf("%w: got %d inputs, want %d", ErrInputSize, len(inputs), len(n.weights))
	}

	sum := n.bias
	for i, w := range n.weights {
		sum = sum.Add(w.Mul(inputs[i]))
	}
	return n.activation.Apply(sum)
}

// Weights returns the weight nodes.
func (n *Neuron) Weights() []engine.Node { return n.weights }

// Bias returns the bias node.
func (n *Neuron) Bias() engine.Node { return n.bias }

// Activation returns the neuron's activation.
func (n *Neuron) Activation() Activation { return n.activation }

// Parameters returns the weights followed by the bias.
func (n *Neuron) Parameters() []engine.Node {
	params := make([]engine.Node, 0, len(n.weights)+1)
	params = append(params, n.weights...)
	return append(params, n.bias)
}

// Descend applies one gradient-descent step to every parameter.
func (n *Neuron) Descend(step float64) {
	engine.Descend(step, n.Parameters()...)
}

// String renders weights, bias and activation: "N(0.120, -0.530)	(0.410 tanh)".
func (n *Neuron) String() string {
	ws := make([]string, len(n.weights))
	for i, w := range n.weights {
		ws[i] = w.String()
	}
	return fmt.Sprintf("N(%s)\t(%s %s)", strings.Join(ws, ", "), n.bias, n.activation)
}

// Layer is a set of neurons sharing the same inputs.
type Layer struct {
	neurons []*Neuron
}

// NewLayer creates outputs neurons of inputs weights each.
func NewLayer(g *engine.Graph, inputs, outputs int, activation Activation, rng *rand.Rand) (*Layer, error) {
	if outputs <= 0 {
		return nil, fmt.Errorf("%w: %d outputs", ErrInvalidShape, outputs)
	}
	neurons := make([]*Neuron, outputs)
	for i := range neurons {
		n, err := NewNeuron(g, inputs, activation, rng)
		if err != nil {
			return nil, err
		}
		neurons[i] = n
	}
	return &Layer{neurons: neurons}, nil
}

// Apply returns one output node per neuron.
func (l *Layer) Apply(inputs []engine.Operand) ([]engine.Node, error) {
	outs := make([]engine.Node, len(l.neurons))
	for i, n := range l.neurons {
		out, err := n.Apply(inputs)
		if err != nil {
			return nil, fmt.Errorf("neuron %d: %w", i, err)
		}
		outs[i] = out
	}
	return outs, nil
}

// Neurons returns the layer's neurons.
func (l *Layer) Neurons() []*Neuron { return l.neurons }

// Parameters returns every neuron's parameters in order.
func (l *Layer) Parameters() []engine.Node {
	var params []engine.Node
	for _, n := range l.neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

// Descend applies one gradient-descent step to every parameter.
func (l *Layer) Descend(step float64) {
	for _, n := range l.neurons {
		n.Descend(step)
	}
}

func (l *Layer) String() string {
	lines := make([]string, len(l.neurons))
	for i, n := range l.neurons {
		lines[i] = n.String()
	}
	return strings.Join(lines, "\n")
}

// MLP is an ordered list of layers, each consuming the previous layer's outputs.
type MLP struct {
	layers []*Layer
}

// NewMLP creates a network with inputs inputs and one layer per entry of sizes.
//
// Example:
//
//	net, err := mlp.NewMLP(g, 3, []int{4, 4, 1}, mlp.Tanh, rng)
func NewMLP(g *engine.Graph, inputs int, sizes []int, activation Activation, rng *rand.Rand) (*MLP, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidShape)
	}
	layers := make([]*Layer, len(sizes))
	in := inputs
	for i, out := range sizes {
		l, err := NewLayer(g, in, out, activation, rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = l
		in = out
	}
	return &MLP{layers: layers}, nil
}

// Apply feeds inputs through every layer and returns the last layer's outputs.
func (m *MLP) Apply(inputs []engine.Operand) ([]engine.Node, error) {
	x := inputs
	var outs []engine.Node
	for i, l := range m.layers {
		var err error
		outs, err = l.Apply(x)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		x = Operands(outs)
	}
	return outs, nil
}

// Layers returns the network's layers.
func (m *MLP) Layers() []*Layer { return m.layers }

// Parameters returns every weight and bias in the network.
func (m *MLP) Parameters() []engine.Node {
	var params []engine.Node
	for _, l := range m.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// Descend applies one gradient-descent step to every parameter.
func (m *MLP) Descend(step float64) {
	for _, l := range m.layers {
		l.Descend(step)
	}
}

func (m *MLP) String() string {
	blocks := make([]string, len(m.layers))
	for i, l := range m.layers {
		blocks[i] = l.String()
	}
	return strings.Join(blocks, "\n\n")
}

// Operands converts nodes to operands.
func Operands(nodes []engine.Node) []engine.Operand {
	ops := make([]engine.Operand, len(nodes))
	for i, n := range nodes {
		ops[i] = n
	}
	return ops
}

// Consts converts raw inputs to operands.
func Consts(xs []float64) []engine.Operand {
	ops := make([]engine.Operand, len(xs))
	for i, x := range xs {
		ops[i] = engine.Const(x)
	}
	return ops
}

// MeanSquaredError returns Σ (targetᵢ - predictionᵢ)² / n as a graph node.
func MeanSquaredError(targets []engine.Operand, predictions []engine.Node) (engine.Node, error) {
	if len(targets) != len(predictions) {
		return engine.Node{}, fmt.Errorf("%w: %d targets, %d predictions", ErrInputSize, len(targets), len(predictions))
	}
	if len(predictions) == 0 {
		return engine.Node{}, fmt.Errorf("%w: no predictions", ErrInputSize)
	}

	var sum engine.Node
	for i, p := range predictions {
		sq := p.Sub(targets[i]).Pow(2)
		if i == 0 {
			sum = sq
			continue
		}
		sum = sum.Add(sq)
	}
	return sum.Div(engine.Const(float64(len(predictions)))), nil
}
