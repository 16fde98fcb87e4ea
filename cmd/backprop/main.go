// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command backprop runs worked examples and training loops on the scalar
// reverse-mode autodiff engine.
//
// Usage:
//
//	backprop neuron
//	backprop expr
//	backprop celsius 212
//	backprop train --config train.yaml --metrics-addr :9090
//
// With traces printed to stderr:
//
//	backprop --traces stdout --log-level debug expr
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// execute runs the command tree with args and releases logging and
// telemetry afterwards, whether or not the command failed.
func execute(ctx context.Context, args []string) error {
	root, c := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if closeErr := c.close(context.WithoutCancel(ctx)); err == nil {
		err = closeErr
	}
	return err
}
