// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/backprop/pkg/telemetry"
	"github.com/AleutianAI/backprop/services/train"
)

const shutdownTimeout = 5 * time.Second

func newTrainCmd(c *cli) *cobra.Command {
	var (
		configPath  string
		metricsAddr string
		iterations  int
		seed        uint64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a multilayer perceptron on random data",
		Long: `Generates a random dataset and fits a multilayer perceptron to it by
gradient descent on the mean squared error. Without --config, trains a
[4, 4, 1] tanh network on 10 examples for 999 iterations.

With --metrics-addr, serves Prometheus metrics on /metrics and a health
check on /healthz while training runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := train.DefaultConfig()
			if configPath != "" {
				loaded, err := train.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("iterations") {
				cfg.Iterations = iterations
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}

			trainer, err := train.NewTrainer(cfg, c.slog())
			if err != nil {
				return err
			}

			var result *train.Result
			if metricsAddr == "" {
				result, err = trainer.Run(cmd.Context())
			} else {
				result, err = runWithMetrics(cmd.Context(), trainer, metricsAddr, c.slog())
			}
			if err != nil {
				return err
			}

			printResult(cmd, trainer, result)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML training config file")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while training")
	flags.IntVar(&iterations, "iterations", 0, "override the configured iteration count")
	flags.Uint64Var(&seed, "seed", 0, "override the configured random seed")
	return cmd
}

// runWithMetrics runs the trainer and an HTTP metrics server side by side.
// The server stops once training finishes; a server failure cancels training.
func runWithMetrics(ctx context.Context, trainer *train.Trainer, addr string, logger *slog.Logger) (*train.Result, error) {
	gatherers := prometheus.Gatherers{trainer.Registry()}
	if g := telemetry.Gatherer(); g != nil {
		gatherers = append(gatherers, g)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsRouter(gatherers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	trainDone := make(chan struct{})
	var result *train.Result

	group.Go(func() error {
		defer close(trainDone)
		var err error
		result, err = trainer.Run(gctx)
		return err
	})

	group.Go(func() error {
		logger.Info("metrics server listening", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		select {
		case <-trainDone:
		case <-gctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// newMetricsRouter serves gatherer on /metrics and a liveness check on /healthz.
func newMetricsRouter(gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("backprop"))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func printResult(cmd *cobra.Command, trainer *train.Trainer, result *train.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d iterations in %s\n", result.RunID, len(result.Losses), result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "final loss: %.6f\n", result.FinalLoss())

	targets := trainer.Dataset().Targets
	for i, p := range result.Predictions {
		fmt.Fprintf(out, "  target %.4f  prediction %.4f\n", targets[i], p)
	}
}
