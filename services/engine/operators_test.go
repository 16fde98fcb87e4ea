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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

// numericGradient estimates d f(x) / dx with a central difference.
func numericGradient(f func(x float64) float64, x float64) float64 {
	const h = 1e-6
	return (f(x+h) - f(x-h)) / (2 * h)
}

func TestAdd(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(1.0)
	b := g.Leaf(2.0)
	s := a.Add(b)

	assert.Equal(t, 3.0, s.Value())
	assert.Equal(t, OpAdd, s.Op())
	assert.Equal(t, []Node{a, b}, s.Operands())

	require.NoError(t, s.Backward())
	assert.Equal(t, 1.0, s.Gradient())
	assert.Equal(t, 1.0, a.Gradient())
	assert.Equal(t, 1.0, b.Gradient())
}

func TestAdd_Const(t *testing.T) {
	g := NewGraph(nil)
	v := g.Leaf(2.3)
	sum := v.Add(Const(3))

	assert.InDelta(t, 5.3, sum.Value(), eps)
	ops := sum.Operands()
	require.Len(t, ops, 2)
	assert.Equal(t, v, ops[0])
	assert.Equal(t, OpLeaf, ops[1].Op())
	assert.Equal(t, 3.0, ops[1].Value())
}

func TestMul(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(-1.0)
	b := g.Leaf(2.5)
	p := a.Mul(b)

	assert.Equal(t, -2.5, p.Value())
	assert.Equal(t, OpMul, p.Op())

	require.NoError(t, p.Backward())
	assert.Equal(t, 1.0, p.Gradient())
	assert.Equal(t, b.Value(), a.Gradient())
	assert.Equal(t, a.Value(), b.Gradient())
}

func TestPow(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(2.0)
	r := a.Pow(10)

	assert.Equal(t, 1024.0, r.Value())
	assert.Equal(t, OpPow, r.Op())
	assert.Equal(t, 10.0, r.Exponent())
	assert.Equal(t, []Node{a}, r.Operands())

	require.NoError(t, r.Backward())
	assert.Equal(t, 1.0, r.Gradient())
	assert.InDelta(t, 5120.0, a.Gradient(), eps)
}

func TestPower_RejectsNodeExponent(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(2.0)
	before := g.Len()

	_, err := a.Power(g.Leaf(3.0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedOperandKind)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, OpPow, nodeErr.Op)

	// only the exponent leaf itself was recorded
	assert.Equal(t, before+1, g.Len())
}

func TestPower_ConstExponent(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(3.0)

	r, err := a.Power(Const(2))
	require.NoError(t, err)
	assert.Equal(t, 9.0, r.Value())

	require.NoError(t, r.Backward())
	assert.InDelta(t, 6.0, a.Gradient(), eps)
}

func TestExp(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(2.4)
	e := a.Exp()

	assert.InDelta(t, math.Exp(2.4), e.Value(), eps)
	assert.Equal(t, OpExp, e.Op())

	require.NoError(t, e.Backward())
	assert.Equal(t, 1.0, e.Gradient())
	assert.Equal(t, e.Value(), a.Gradient())
}

func TestTanh(t *testing.T) {
	for _, x := range []float64{-2, -0.5, 0, 0.3, 1.7} {
		g := NewGraph(nil)
		a := g.Leaf(x)
		o := a.Tanh()

		assert.InDelta(t, math.Tanh(x), o.Value(), eps)
		require.NoError(t, o.Backward())
		assert.InDelta(t, numericGradient(math.Tanh, x), a.Gradient(), 1e-6, "x=%v", x)
	}
}

func TestReLU(t *testing.T) {
	tests := []struct {
		name     string
		x        float64
		value    float64
		gradient float64
	}{
		{"positive", 2.5, 2.5, 1},
		{"zero", 0, 0, 0},
		{"negative", -1.5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(nil)
			a := g.Leaf(tt.x)
			r := a.ReLU()

			assert.Equal(t, tt.value, r.Value())
			assert.Equal(t, OpReLU, r.Op())
			require.NoError(t, r.Backward())
			assert.Equal(t, tt.gradient, a.Gradient())
		})
	}
}

func TestSub(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(10)
	b := g.Leaf(4)
	diff := a.Sub(b)

	assert.InDelta(t, 6.0, diff.Value(), eps)
	assert.Equal(t, OpAdd, diff.Op())
	assert.Contains(t, diff.Operands(), a)
	assert.NotContains(t, diff.Operands(), b)

	require.NoError(t, diff.Backward())
	assert.Equal(t, 1.0, a.Gradient())
	assert.Equal(t, -1.0, b.Gradient())
}

func TestSub_Const(t *testing.T) {
	g := NewGraph(nil)
	f := g.Leaf(68.5)
	c := f.Sub(Const(32)).Mul(Const(5)).Div(Const(9))

	assert.InDelta(t, (68.5-32)*5/9, c.Value(), eps)
	require.NoError(t, c.Backward())
	assert.InDelta(t, 5.0/9, f.Gradient(), eps)
}

func TestDiv(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(19.1)
	b := g.Leaf(2.3)
	q := a.Div(b)

	assert.InDelta(t, 19.1/2.3, q.Value(), eps)
	assert.Equal(t, OpMul, q.Op())
	assert.Contains(t, q.Operands(), a)
	assert.NotContains(t, q.Operands(), b)

	require.NoError(t, q.Backward())
	assert.InDelta(t, 1/2.3, a.Gradient(), eps)
	assert.InDelta(t, -19.1/(2.3*2.3), b.Gradient(), eps)
}

func TestDiv_ByZeroPropagatesInf(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(1)
	zero := g.Leaf(0)

	q := a.Div(zero)
	assert.True(t, math.IsInf(q.Value(), 1))

	nan := zero.Div(zero)
	assert.True(t, math.IsNaN(nan.Value()))

	assert.NoError(t, q.Backward())
}

func TestSigmoid(t *testing.T) {
	sigmoid := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

	for _, x := range []float64{-3, 0, 0.8} {
		g := NewGraph(nil)
		a := g.Leaf(x)
		s := a.Sigmoid()

		assert.InDelta(t, sigmoid(x), s.Value(), eps)
		assert.Equal(t, OpPow, s.Op(), "sigmoid is composed, not primitive")

		require.NoError(t, s.Backward())
		assert.InDelta(t, sigmoid(x)*(1-sigmoid(x)), a.Gradient(), 1e-9, "x=%v", x)
	}
}

func TestNeg(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(4)
	n := a.Neg()

	assert.Equal(t, -4.0, n.Value())
	require.NoError(t, n.Backward())
	assert.Equal(t, -1.0, a.Gradient())
}

func TestOperators_DoNotMutateOperands(t *testing.T) {
	g := NewGraph(nil)
	a := g.Leaf(1.5)
	b := g.Leaf(-2)

	_ = a.Add(b).Mul(a).Tanh().Exp().ReLU().Pow(2)

	assert.Equal(t, 1.5, a.Value())
	assert.Equal(t, -2.0, b.Value())
	assert.Equal(t, 0.0, a.Gradient())
	assert.Equal(t, 0.0, b.Gradient())
}

func TestOperators_ForeignNodePanics(t *testing.T) {
	a := NewGraph(nil).Leaf(1)
	b := NewGraph(nil).Leaf(2)

	assert.Panics(t, func() { a.Add(b) })
	assert.Panics(t, func() { a.Sub(b) })
	assert.Panics(t, func() { a.Div(b) })
	assert.Panics(t, func() { Node{}.Tanh() })
}
