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
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("backprop.engine")
	meter  = otel.Meter("backprop.engine")
)

// Metrics are shared by every graph and initialized on the first backward pass.
var (
	metricsOnce      sync.Once
	backwardPasses   metric.Int64Counter
	backwardNodes    metric.Int64Histogram
	backwardDuration metric.Float64Histogram
)

// initMetrics lazily initializes metrics.
// Failures are logged and the pass continues without the instrument.
func initMetrics(logger *slog.Logger) {
	metricsOnce.Do(func() {
		var initErrors []string

		var err error
		backwardPasses, err = meter.Int64Counter("engine_backward_passes_total",
			metric.WithDescription("Number of completed backward passes"),
		)
		if err != nil {
			initErrors = append(initErrors, "backward_passes: "+err.Error())
		}

		backwardNodes, err = meter.Int64Histogram("engine_backward_nodes",
			metric.WithDescription("Nodes reachable from the root of a backward pass"),
		)
		if err != nil {
			initErrors = append(initErrors, "backward_nodes: "+err.Error())
		}

		backwardDuration, err = meter.Float64Histogram("engine_backward_duration_seconds",
			metric.WithDescription("Time spent in a backward pass"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "backward_duration: "+err.Error())
		}

		if len(initErrors) > 0 {
			logger.Error("failed to initialize some engine metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// TopologicalOrder returns the subgraph reachable from root, operands first.
//
// Description:
//
//	The order is a depth-first post-order: a node is appended only after all
//	of its operands, and each node appears exactly once no matter how many
//	consumers reach it. root is always last. Nodes of the graph that root
//	does not depend on are excluded.
//
// Outputs:
//
//	[]Node - Reachable nodes in topological order.
//	error - Non-nil if root is not a live node of g.
func (g *Graph) TopologicalOrder(root Node) ([]Node, error) {
	if err := g.owns(root); err != nil {
		return nil, err
	}
	order := g.order(root.idx)
	nodes := make([]Node, len(order))
	for i, idx := range order {
		nodes[i] = Node{g: g, idx: idx, gen: g.records[idx].gen}
	}
	return nodes, nil
}

// order computes the post-order of arena indices reachable from root.
//
// Iterative so deep chains cannot exhaust the goroutine stack. A node is
// marked visited when first pushed; in a DAG a visited node is never still
// pending below the top of the stack.
func (g *Graph) order(root int32) []int32 {
	type frame struct {
		idx  int32
		next int
	}

	// operands always precede their consumer in the arena
	visited := make([]bool, root+1)
	order := make([]int32, 0, root+1)
	stack := []frame{{idx: root}}
	visited[root] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		r := &g.records[top.idx]
		if top.next < r.op.Arity() {
			child := r.operands[top.next]
			top.next++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{idx: child})
			}
			continue
		}
		order = append(order, top.idx)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Backward computes d(root)/d(node) for every node reachable from root.
//
// Description:
//
//	Resets the gradient of every reachable node to zero, seeds root with
//	1.0, then walks the topological order from root back to the leaves and
//	fires each node's local-gradient rule once. Because every consumer of a
//	node precedes it in that walk, a node's gradient is fully accumulated
//	before its own rule runs. Calling Backward twice on an unchanged graph
//	yields identical gradients.
//
//	Nodes not reachable from root keep whatever gradient they had.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	root - The node to differentiate.
//
// Outputs:
//
//	error - Non-nil if ctx is nil or root is not a live node of g.
func (g *Graph) Backward(ctx context.Context, root Node) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := g.owns(root); err != nil {
		return err
	}

	initMetrics(g.logger)

	ctx, span := tracer.Start(ctx, "engine.Backward",
		trace.WithAttributes(
			attribute.String("engine.graph_id", g.id),
			attribute.Int("engine.root", root.Index()),
			attribute.String("engine.root_op", g.records[root.idx].op.String()),
		),
	)
	defer span.End()

	start := time.Now()
	order := g.order(root.idx)

	for _, idx := range order {
		g.records[idx].gradient = 0
	}
	g.records[root.idx].gradient = 1

	for i := len(order) - 1; i >= 0; i-- {
		r := &g.records[order[i]]
		rules[r.op].backward(g.records, r)
	}

	duration := time.Since(start)
	attrs := metric.WithAttributes(attribute.String("root_op", g.records[root.idx].op.String()))
	if backwardPasses != nil {
		backwardPasses.Add(ctx, 1, attrs)
	}
	if backwardNodes != nil {
		backwardNodes.Record(ctx, int64(len(order)), attrs)
	}
	if backwardDuration != nil {
		backwardDuration.Record(ctx, duration.Seconds(), attrs)
	}

	span.SetAttributes(attribute.Int("engine.nodes", len(order)))
	span.SetStatus(codes.Ok, "")

	g.logger.Debug("backward pass completed",
		slog.Int("root", root.Index()),
		slog.Int("nodes", len(order)),
		slog.Duration("duration", duration),
	)
	return nil
}
