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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	g := NewGraph(nil)

	assert.Equal(t, "2.300", g.Leaf(2.3).String())
	assert.Equal(t, "x1=2.000", g.Leaf(2).WithLabel("x1").String())
	assert.Equal(t, "<invalid>", Node{}.String())
	assert.Equal(t, "f=68.500", fmt.Sprint(g.Leaf(68.5).WithLabel("f")))
}

func TestDescribe(t *testing.T) {
	g := NewGraph(nil)
	x1 := g.Leaf(2.0).WithLabel("x1")
	w1 := g.Leaf(-3.0).WithLabel("w1")
	b := g.Leaf(6.8813735870195432).WithLabel("b")
	n := x1.Mul(w1).Add(b).WithLabel("n")
	o := n.Tanh().WithLabel("o")
	require.NoError(t, o.Backward())

	assert.Equal(t, "o(0.707 gradient=1.000 tanh(n=0.881))", o.Describe())
	assert.Equal(t, "x1(2.000 gradient=-1.500)", x1.Describe())

	p := g.Leaf(2).WithLabel("a").Pow(10)
	assert.Equal(t, "pow(1024.000 gradient=0.000 pow(a=2.000, 10))", p.Describe())
}

func TestTree(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(3).WithLabel("a")
	b := g.Leaf(4).WithLabel("b")
	e := a.Mul(b).WithLabel("e")
	d := e.Add(a).WithLabel("d")
	require.NoError(t, d.Backward())

	lines := strings.Split(d.Tree(), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "d(15.000 gradient=1.000 add(e=12.000, a=3.000))", lines[0])
	assert.Equal(t, "\te(12.000 gradient=1.000 mul(a=3.000, b=4.000))", lines[1])
	assert.Equal(t, "\t\ta(3.000 gradient=5.000)", lines[2])
	assert.Equal(t, "\t\tb(4.000 gradient=3.000)", lines[3])
	assert.Equal(t, "\ta(3.000 gradient=5.000)", lines[4])
}
