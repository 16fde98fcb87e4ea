// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements scalar reverse-mode automatic differentiation.
//
// Expressions are recorded eagerly into a Graph, an append-only arena of
// scalar nodes. Every operator computes its forward value at construction
// and tags the new node with the operation that produced it. Backward then
// walks the subgraph reachable from a root in reverse-topological order and
// applies each operation's local-gradient rule exactly once, so a node used
// by several downstream expressions receives the sum of all their
// contributions before it propagates further upstream.
//
// # Operations
//
// Primitive: Add, Mul, Pow (real exponent only), Exp, Tanh, ReLU.
// Composed from primitives: Neg, Sub, Div, Sigmoid.
//
// # Thread Safety
//
// A Graph and its nodes are NOT safe for concurrent use. Gradient
// accumulation mutates node state in place. Separate graphs share nothing
// and may be used from separate goroutines.
//
// # Example
//
//	g := engine.NewGraph(logger)
//	x1 := g.Leaf(2).WithLabel("x1")
//	w1 := g.Leaf(-3).WithLabel("w1")
//	b := g.Leaf(6.8813735870195432).WithLabel("b")
//
//	o := x1.Mul(w1).Add(b).Tanh()
//	if err := g.Backward(ctx, o); err != nil {
//	    return err
//	}
//	fmt.Println(w1.Gradient()) // do/dw1
//
//	// gradient-descent step on the parameters
//	engine.Descend(0.1, w1, b)
package engine
