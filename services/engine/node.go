// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import "context"

// Operand is anything an operator accepts: a Node of the same graph, or a
// Const that is boxed into a fresh leaf.
type Operand interface {
	bind(g *Graph) (Node, error)
}

// Const is a raw scalar operand.
type Const float64

func (c Const) bind(g *Graph) (Node, error) {
	return g.Leaf(float64(c)), nil
}

// Node is a handle to a scalar in a Graph.
//
// Description:
//
//	Node is a small value type (graph pointer plus arena index) and is
//	compared with ==. The zero Node is invalid. Accessors and operator
//	methods panic with a *NodeError when the handle is invalid, stale or,
//	for operators, mixed with a node from another graph; Graph.Apply
//	reports the same conditions as errors.
type Node struct {
	g   *Graph
	idx int32
	gen uint32
}

func (n Node) bind(g *Graph) (Node, error) {
	if err := g.owns(n); err != nil {
		return Node{}, err
	}
	return n, nil
}

// rec returns the node's record, panicking on an unusable handle.
func (n Node) rec() *record {
	if n.g == nil {
		panic(newNodeError(-1, OpLeaf, ErrInvalidNode))
	}
	if err := n.g.owns(n); err != nil {
		panic(err)
	}
	return &n.g.records[n.idx]
}

// graph returns the owning graph, panicking on the zero handle.
func (n Node) graph() *Graph {
	if n.g == nil {
		panic(newNodeError(-1, OpLeaf, ErrInvalidNode))
	}
	return n.g
}

// Valid reports whether n refers to a live node.
func (n Node) Valid() bool {
	return n.g != nil && n.g.owns(n) == nil
}

// Graph returns the graph n was recorded in.
func (n Node) Graph() *Graph {
	return n.g
}

// Index returns the node's arena index. Operands always have a smaller index.
func (n Node) Index() int {
	return int(n.idx)
}

// Value returns the node's forward value.
func (n Node) Value() float64 {
	return n.rec().value
}

// Gradient returns d(root)/d(n) from the last backward pass that reached n.
func (n Node) Gradient() float64 {
	return n.rec().gradient
}

// Op returns the operation that produced n.
func (n Node) Op() Op {
	return n.rec().op
}

// Exponent returns the real exponent of an OpPow node, and zero otherwise.
func (n Node) Exponent() float64 {
	return n.rec().exponent
}

// Label returns the node's debug label.
func (n Node) Label() string {
	return n.rec().label
}

// WithLabel sets the debug label and returns n for chaining.
func (n Node) WithLabel(label string) Node {
	n.rec().label = label
	return n
}

// Operands returns the nodes n was computed from, in order.
func (n Node) Operands() []Node {
	r := n.rec()
	arity := r.op.Arity()
	out := make([]Node, arity)
	for i := 0; i < arity; i++ {
		idx := r.operands[i]
		out[i] = Node{g: n.g, idx: idx, gen: n.g.records[idx].gen}
	}
	return out
}

// SetValue overwrites the value of a leaf.
//
// Nodes computed from the leaf are not updated: the graph is a one-shot
// record of the forward pass.
func (n Node) SetValue(x float64) error {
	r := n.rec()
	if r.op != OpLeaf {
		return newNodeError(n.Index(), r.op, ErrNotLeaf)
	}
	r.value = x
	return nil
}

// Descend applies one gradient-descent step: value -= step * gradient.
//
// The gradient is left untouched. NaN and Inf propagate as floating-point
// arithmetic dictates.
func (n Node) Descend(step float64) {
	r := n.rec()
	r.value -= step * r.gradient
}

// Descend applies one gradient-descent step to every parameter.
func Descend(step float64, params ...Node) {
	for _, p := range params {
		p.Descend(step)
	}
}

// Backward runs a backward pass rooted at n with a background context.
func (n Node) Backward() error {
	if n.g == nil {
		return newNodeError(-1, OpLeaf, ErrInvalidNode)
	}
	return n.g.Backward(context.Background(), n)
}
