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

// Operators never mutate their operands. Each returns a new node whose value
// is computed immediately.

// Add returns n + other.
func (n Node) Add(other Operand) Node {
	return n.graph().mustApply(OpAdd, n, other)
}

// Mul returns n * other.
func (n Node) Mul(other Operand) Node {
	return n.graph().mustApply(OpMul, n, other)
}

// Pow returns n ** exponent.
func (n Node) Pow(exponent float64) Node {
	return n.graph().mustApply(OpPow, n, Const(exponent))
}

// Power returns n ** exponent for an exponent supplied as an Operand.
//
// Only a Const exponent is supported; a Node fails with
// ErrUnsupportedOperandKind since gradients flow to the base alone.
func (n Node) Power(exponent Operand) (Node, error) {
	return n.graph().Apply(OpPow, n, exponent)
}

// Exp returns e ** n.
func (n Node) Exp() Node {
	return n.graph().mustApply(OpExp, n)
}

// Tanh returns tanh(n).
func (n Node) Tanh() Node {
	return n.graph().mustApply(OpTanh, n)
}

// ReLU returns n if n > 0, else 0.
func (n Node) ReLU() Node {
	return n.graph().mustApply(OpReLU, n)
}

// The remaining operators are composed from the primitives above, so their
// gradients follow from the chain rule rather than a formula of their own.

// Neg returns n * -1.
func (n Node) Neg() Node {
	return n.Mul(Const(-1))
}

// Sub returns n + other * -1.
func (n Node) Sub(other Operand) Node {
	g := n.graph()
	o, err := other.bind(g)
	if err != nil {
		panic(err)
	}
	return n.Add(o.Neg())
}

// Div returns n * other ** -1.
//
// Division by a zero-valued node yields Inf or NaN, never an error.
func (n Node) Div(other Operand) Node {
	g := n.graph()
	o, err := other.bind(g)
	if err != nil {
		panic(err)
	}
	return n.Mul(o.Pow(-1))
}

// Sigmoid returns (e ** (n * -1) + 1) ** -1.
func (n Node) Sigmoid() Node {
	return n.Neg().Exp().Add(Const(1)).Pow(-1)
}
