// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package train fits an mlp.MLP to a generated dataset by gradient descent.
//
// Each iteration records its forward graph after a checkpoint and rewinds
// to it once the parameters are updated, so the engine arena stays the size
// of the network no matter how many iterations run.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/backprop/services/engine"
	"github.com/AleutianAI/backprop/services/mlp"
)

var tracer = otel.Tracer("backprop.train")

// ErrNilContext is returned when Run is given a nil context.
var ErrNilContext = errors.New("context must not be nil")

// Result summarizes a finished run.
type Result struct {
	RunID string

	// Losses holds the loss of every completed iteration.
	Losses []float64

	// Predictions holds the network output for each example after the
	// last update.
	Predictions []float64

	Duration time.Duration
}

// FinalLoss returns the loss of the last completed iteration, or 0 when no
// iteration completed.
func (r *Result) FinalLoss() float64 {
	if len(r.Losses) == 0 {
		return 0
	}
	return r.Losses[len(r.Losses)-1]
}

type metrics struct {
	iterations prometheus.Counter
	loss       prometheus.Gauge
	duration   prometheus.Histogram
	nodes      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "backprop_train_iterations_total",
			Help: "Completed gradient-descent iterations",
		}),
		loss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backprop_train_loss",
			Help: "Mean squared error of the latest iteration",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backprop_train_iteration_duration_seconds",
			Help:    "Wall time of one forward, backward and update step",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backprop_train_graph_nodes",
			Help: "Nodes recorded by the latest forward pass",
		}),
	}
}

// Trainer owns a graph, a network and a dataset.
//
// Thread Safety: Run must not be called concurrently. Registry may be
// gathered from any goroutine.
type Trainer struct {
	config   Config
	graph    *engine.Graph
	net      *mlp.MLP
	data     *Dataset
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics
}

// NewTrainer validates config and builds the network and dataset from its seed.
//
// Inputs:
//
//	config - Training configuration. Validated here.
//	logger - Destination for progress logs. nil uses slog.Default().
//
// Outputs:
//
//	*Trainer - Ready to Run.
//	error - ErrInvalidConfig on validation failure.
func NewTrainer(config Config, logger *slog.Logger) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	act, err := mlp.ParseActivation(config.Activation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	data, err := NewDataset(config.Inputs, config.Examples, rng)
	if err != nil {
		return nil, err
	}

	graph := engine.NewGraph(logger)
	net, err := mlp.NewMLP(graph, config.Inputs, config.Layers, act, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	registry := prometheus.NewRegistry()
	return &Trainer{
		config:   config,
		graph:    graph,
		net:      net,
		data:     data,
		logger:   logger,
		registry: registry,
		metrics:  newMetrics(registry),
	}, nil
}

// Network returns the network being trained.
func (t *Trainer) Network() *mlp.MLP { return t.net }

// Dataset returns the training data.
func (t *Trainer) Dataset() *Dataset { return t.data }

// Registry returns the trainer's Prometheus registry.
func (t *Trainer) Registry() *prometheus.Registry { return t.registry }

// Run performs config.Iterations descent steps.
//
// Description:
//
//	Each iteration checkpoints the graph, builds predictions and the mean
//	squared error, runs Backward, descends every parameter by StepSize and
//	rewinds the graph. Cancellation is checked between iterations; a
//	cancelled run returns the partial Result together with ctx.Err().
//
// Inputs:
//
//	ctx - Cancellation and tracing. Must not be nil.
//
// Outputs:
//
//	*Result - Losses per completed iteration and final predictions.
//	error - ctx.Err() on cancellation, or an engine error.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	runID := uuid.NewString()
	logger := t.logger.With(slog.String("run_id", runID))

	ctx, span := tracer.Start(ctx, "train.Run",
		trace.WithAttributes(
			attribute.String("train.run_id", runID),
			attribute.Int("train.iterations", t.config.Iterations),
			attribute.Int("train.parameters", len(t.net.Parameters())),
		),
	)
	defer span.End()

	logger.Info("training started",
		slog.Int("examples", t.data.Len()),
		slog.Any("layers", t.config.Layers),
		slog.String("activation", t.config.Activation),
		slog.Int("parameters", len(t.net.Parameters())),
	)

	start := time.Now()
	result := &Result{
		RunID:  runID,
		Losses: make([]float64, 0, t.config.Iterations),
	}

	for i := range t.config.Iterations {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			span.SetStatus(codes.Error, "cancelled")
			logger.Warn("training cancelled", slog.Int("iteration", i))
			return result, ctx.Err()
		default:
		}

		loss, err := t.step(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return result, fmt.Errorf("iteration %d: %w", i, err)
		}
		result.Losses = append(result.Losses, loss)

		if t.config.LogInterval > 0 && i%t.config.LogInterval == 0 {
			logger.Info("iteration", slog.Int("iteration", i), slog.Float64("loss", loss))
		}
	}

	preds, err := t.Predict()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	result.Predictions = preds
	result.Duration = time.Since(start)

	span.SetAttributes(attribute.Float64("train.final_loss", result.FinalLoss()))
	span.SetStatus(codes.Ok, "")
	logger.Info("training completed",
		slog.Float64("loss", result.FinalLoss()),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

func (t *Trainer) step(ctx context.Context) (float64, error) {
	start := time.Now()
	mark := t.graph.Checkpoint()
	base := t.graph.Len()

	loss, err := t.loss()
	if err != nil {
		_ = t.graph.Rewind(mark)
		return 0, err
	}
	if err := t.graph.Backward(ctx, loss); err != nil {
		_ = t.graph.Rewind(mark)
		return 0, err
	}
	value := loss.Value()
	nodes := t.graph.Len() - base

	t.net.Descend(t.config.StepSize)
	if err := t.graph.Rewind(mark); err != nil {
		return 0, err
	}

	t.metrics.iterations.Inc()
	t.metrics.loss.Set(value)
	t.metrics.nodes.Set(float64(nodes))
	t.metrics.duration.Observe(time.Since(start).Seconds())
	return value, nil
}

func (t *Trainer) loss() (engine.Node, error) {
	preds := make([]engine.Node, t.data.Len())
	for i, row := range t.data.Inputs {
		outs, err := t.net.Apply(mlp.Consts(row))
		if err != nil {
			return engine.Node{}, fmt.Errorf("example %d: %w", i, err)
		}
		preds[i] = outs[0]
	}
	return mlp.MeanSquaredError(mlp.Consts(t.data.Targets), preds)
}

// Predict returns the network output for every example without touching
// gradients or growing the graph.
func (t *Trainer) Predict() ([]float64, error) {
	mark := t.graph.Checkpoint()
	defer func() { _ = t.graph.Rewind(mark) }()

	preds := make([]float64, t.data.Len())
	for i, row := range t.data.Inputs {
		outs, err := t.net.Apply(mlp.Consts(row))
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		preds[i] = outs[0].Value()
	}
	return preds, nil
}
