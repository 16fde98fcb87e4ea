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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/backprop/pkg/logging"
	"github.com/AleutianAI/backprop/pkg/telemetry"
)

// cli holds persistent flag values and the resources they configure.
type cli struct {
	logLevel string
	logJSON  bool
	logDir   string
	traces   string
	metrics  string

	logger   *logging.Logger
	shutdown func(context.Context) error
}

// slog returns the configured logger, or slog.Default before setup runs.
func (c *cli) slog() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger.Slog()
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	c.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  c.logDir,
		Service: "backprop",
		JSON:    c.logJSON,
		Output:  cmd.ErrOrStderr(),
	})

	tcfg := telemetry.DefaultConfig()
	tcfg.TraceExporter = c.traces
	tcfg.MetricExporter = c.metrics
	tcfg.Writer = cmd.ErrOrStderr()

	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	c.shutdown = shutdown
	return nil
}

func (c *cli) close(ctx context.Context) error {
	var errs []error
	if c.shutdown != nil {
		if err := c.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		c.shutdown = nil
	}
	if c.logger != nil {
		if err := c.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	defaults := telemetry.DefaultConfig()

	root := &cobra.Command{
		Use:   "backprop",
		Short: "Scalar reverse-mode automatic differentiation",
		Long: `backprop builds expression graphs over scalars, runs reverse-mode
differentiation over them, and trains small multilayer perceptrons
by gradient descent.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&c.logJSON, "log-json", false, "write console logs as JSON")
	flags.StringVar(&c.logDir, "log-dir", "", "also write JSON logs to this directory")
	flags.StringVar(&c.traces, "traces", defaults.TraceExporter, "trace exporter: none, stdout, otlp")
	flags.StringVar(&c.metrics, "metrics", defaults.MetricExporter, "metric exporter: none, stdout, prometheus")

	root.AddCommand(
		newNeuronCmd(c),
		newExprCmd(c),
		newCelsiusCmd(c),
		newTrainCmd(c),
	)
	return root, c
}
