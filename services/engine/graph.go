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

import (
	"log/slog"

	"github.com/google/uuid"
)

// record is the arena storage for one node.
type record struct {
	value    float64
	gradient float64
	exponent float64
	operands [2]int32
	op       Op
	gen      uint32
	label    string
}

// Graph is an append-only arena of scalar nodes.
//
// Description:
//
//	Operators append a new record whose operands always have a smaller
//	index, so the arena can never hold a cycle. Records are never removed
//	individually; Rewind truncates the arena back to a Checkpoint, which
//	lets a training loop drop one iteration's expression while keeping the
//	parameter leaves created before the mark.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use.
type Graph struct {
	id      string
	records []record
	gen     uint32
	logger  *slog.Logger
}

// NewGraph creates an empty graph.
//
// Inputs:
//
//	logger - Logger for backward pass diagnostics. If nil, uses slog.Default().
//
// Outputs:
//
//	*Graph - The empty graph.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()[:12]
	return &Graph{
		id:      id,
		records: make([]record, 0, 64),
		logger:  logger.With(slog.String("graph_id", id)),
	}
}

// ID returns the graph's identifier, used to correlate logs and spans.
func (g *Graph) ID() string {
	return g.id
}

// Len returns the number of nodes currently recorded.
func (g *Graph) Len() int {
	return len(g.records)
}

// Leaf records x as an input or constant node.
//
// The leaf starts with a zero gradient and no operands. Always succeeds.
func (g *Graph) Leaf(x float64) Node {
	return g.push(record{value: x, op: OpLeaf})
}

// Apply records op over operands, computing the forward value eagerly.
//
// Description:
//
//	Apply is the checked constructor behind every operator. Operands may be
//	nodes of this graph or Const values, which are boxed into fresh leaves.
//	For OpPow the operands are the base and the exponent, and the exponent
//	must be a Const: the engine differentiates with respect to the base only.
//	Leaves are created with Leaf, never with Apply.
//
// Inputs:
//
//	op - The operation. Must not be OpLeaf.
//	operands - Exactly Arity() operands (two for OpPow).
//
// Outputs:
//
//	Node - The new node.
//	error - ErrMalformedNode on an arity mismatch or OpLeaf,
//	        ErrUnsupportedOperandKind for a node exponent,
//	        ErrForeignNode / ErrStaleNode / ErrInvalidNode for a bad operand.
func (g *Graph) Apply(op Op, operands ...Operand) (Node, error) {
	if op == OpLeaf || op >= opCount {
		return Node{}, newNodeError(-1, op, ErrMalformedNode)
	}

	want := op.Arity()
	var exponent float64
	if op == OpPow {
		if len(operands) != 2 {
			return Node{}, newNodeError(-1, op, ErrMalformedNode)
		}
		c, ok := operands[1].(Const)
		if !ok {
			return Node{}, newNodeError(-1, op, ErrUnsupportedOperandKind)
		}
		exponent = float64(c)
		operands = operands[:1]
	}
	if len(operands) != want {
		return Node{}, newNodeError(-1, op, ErrMalformedNode)
	}

	// Validate every handle before boxing constants so a failed Apply
	// leaves the arena untouched.
	for _, o := range operands {
		if n, ok := o.(Node); ok {
			if err := g.owns(n); err != nil {
				return Node{}, err
			}
		}
	}

	var idx [2]int32
	var vals [2]float64
	for i, o := range operands {
		n, err := o.bind(g)
		if err != nil {
			return Node{}, err
		}
		idx[i] = n.idx
		vals[i] = g.records[n.idx].value
	}

	return g.push(record{
		value:    rules[op].forward(vals[0], vals[1], exponent),
		exponent: exponent,
		operands: idx,
		op:       op,
	}), nil
}

// mustApply is Apply for the infix operator methods.
// It panics with a *NodeError on a contract violation.
func (g *Graph) mustApply(op Op, operands ...Operand) Node {
	n, err := g.Apply(op, operands...)
	if err != nil {
		panic(err)
	}
	return n
}

func (g *Graph) push(r record) Node {
	r.gen = g.gen
	g.records = append(g.records, r)
	return Node{g: g, idx: int32(len(g.records) - 1), gen: g.gen}
}

// owns reports whether n is a live handle into this graph.
func (g *Graph) owns(n Node) error {
	if n.g == nil {
		return newNodeError(-1, OpLeaf, ErrInvalidNode)
	}
	if n.g != g {
		return newNodeError(int(n.idx), OpLeaf, ErrForeignNode)
	}
	if int(n.idx) >= len(g.records) || g.records[n.idx].gen != n.gen {
		return newNodeError(int(n.idx), OpLeaf, ErrStaleNode)
	}
	return nil
}

// Mark is a position in a graph's arena returned by Checkpoint.
type Mark struct {
	n   int
	gen uint32
}

// Checkpoint returns a mark for the current end of the arena.
func (g *Graph) Checkpoint() Mark {
	return Mark{n: len(g.records), gen: g.gen}
}

// Rewind discards every node recorded after mark.
//
// Description:
//
//	Nodes created before the mark keep their values and gradients. Handles
//	to discarded nodes become stale: accessors panic with ErrStaleNode and
//	Apply rejects them, even after the arena grows past the mark again.
//
// Outputs:
//
//	error - ErrInvalidMark if the mark lies beyond the current arena, or
//	        was taken in a generation that has since been rewound below it.
func (g *Graph) Rewind(mark Mark) error {
	if mark.n > len(g.records) {
		return ErrInvalidMark
	}
	if mark.n > 0 && g.records[mark.n-1].gen > mark.gen {
		return ErrInvalidMark
	}
	clear(g.records[mark.n:])
	g.records = g.records[:mark.n]
	g.gen++
	return nil
}
