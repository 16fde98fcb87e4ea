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
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/backprop/services/engine"
)

func newNeuronCmd(c *cli) *cobra.Command {
	var expanded bool

	cmd := &cobra.Command{
		Use:   "neuron",
		Short: "Differentiate a single tanh neuron with two inputs",
		Long: `Builds o = tanh(x1*w1 + x2*w2 + b) with x1=2, x2=0, w1=-3, w2=1 and
b chosen so that o ≈ 0.7071, runs backward from o and prints the graph.

With --expanded, tanh is computed as (e^2n - 1) / (e^2n + 1) from the
exp, pow and multiply primitives; gradients match the tanh version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := engine.NewGraph(c.slog())

			x1 := g.Leaf(2).WithLabel("x1")
			x2 := g.Leaf(0).WithLabel("x2")
			w1 := g.Leaf(-3).WithLabel("w1")
			w2 := g.Leaf(1).WithLabel("w2")
			b := g.Leaf(6.8813735870195432).WithLabel("b")

			x1w1 := x1.Mul(w1).WithLabel("x1*w1")
			x2w2 := x2.Mul(w2).WithLabel("x2*w2")
			n := x1w1.Add(x2w2).WithLabel("x1*w1 + x2*w2").Add(b).WithLabel("n")

			var o engine.Node
			if expanded {
				e := n.Mul(engine.Const(2)).Exp().WithLabel("e")
				o = e.Sub(engine.Const(1)).Div(e.Add(engine.Const(1))).WithLabel("o")
			} else {
				o = n.Tanh().WithLabel("o")
			}

			if err := g.Backward(cmd.Context(), o); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, o.Tree())
			for _, p := range []engine.Node{x1, x2, w1, w2, b} {
				fmt.Fprintf(out, "d%s = %.4f\n", p.Label(), p.Gradient())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&expanded, "expanded", false, "compute tanh from exp and division")
	return cmd
}

func newExprCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "expr",
		Short: "Differentiate L = (a*b + c) * f",
		Long: `Builds L = (a*b + c) * f with a=2, b=-3, c=10, f=-2, runs backward
from L and prints every node with its gradient.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := engine.NewGraph(c.slog())

			a := g.Leaf(2).WithLabel("a")
			b := g.Leaf(-3).WithLabel("b")
			cc := g.Leaf(10).WithLabel("c")
			e := a.Mul(b).WithLabel("e")
			d := e.Add(cc).WithLabel("d")
			f := g.Leaf(-2).WithLabel("f")
			l := d.Mul(f).WithLabel("L")

			if err := g.Backward(cmd.Context(), l); err != nil {
				return err
			}

			order, err := g.TopologicalOrder(l)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, n := range order {
				fmt.Fprintln(out, n.Describe())
			}
			return nil
		},
	}
}

func newCelsiusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "celsius [fahrenheit]",
		Short: "Convert Fahrenheit to Celsius and differentiate the conversion",
		Long: `Computes C = (F - 32) * 5 / 9 on the engine and prints C together
with dC/dF. F defaults to 100.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fahrenheit := 100.0
			if len(args) == 1 {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid temperature %q: %w", args[0], err)
				}
				fahrenheit = v
			}

			g := engine.NewGraph(c.slog())
			f := g.Leaf(fahrenheit).WithLabel("F")
			celsius := f.Sub(engine.Const(32)).Mul(engine.Const(5)).Div(engine.Const(9)).WithLabel("C")

			if err := g.Backward(cmd.Context(), celsius); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%gF = %.4fC\ndC/dF = %.4f\n",
				fahrenheit, celsius.Value(), f.Gradient())
			return nil
		},
	}
}
