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

import "math"

// Op identifies the differentiable operation that produced a node.
type Op uint8

const (
	// OpLeaf marks an input or constant. Leaves have no operands.
	OpLeaf Op = iota

	// OpAdd is a + b.
	OpAdd

	// OpMul is a * b.
	OpMul

	// OpPow is a ** n for a real constant n stored on the node.
	OpPow

	// OpExp is e ** a.
	OpExp

	// OpTanh is tanh(a).
	OpTanh

	// OpReLU is max(a, 0).
	OpReLU

	opCount
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpPow:
		return "pow"
	case OpExp:
		return "exp"
	case OpTanh:
		return "tanh"
	case OpReLU:
		return "relu"
	default:
		return "unknown"
	}
}

// Arity returns the number of node operands the operation records.
//
// OpPow records one operand; its exponent is a plain real stored on the node.
// Unknown operations report -1.
func (o Op) Arity() int {
	if o >= opCount {
		return -1
	}
	return rules[o].arity
}

// rule is the fixed forward computation and local-gradient formula of an Op.
//
// forward receives operand values a, b (b is zero for unary ops) and the
// exponent. backward receives the whole arena and the node whose rule fires;
// it reads operand values from their records and adds into their gradients.
type rule struct {
	arity    int
	forward  func(a, b, exponent float64) float64
	backward func(records []record, r *record)
}

// rules is the dispatch table indexed by Op.
var rules = [opCount]rule{
	OpLeaf: {
		arity:    0,
		backward: func([]record, *record) {},
	},
	OpAdd: {
		arity:   2,
		forward: func(a, b, _ float64) float64 { return a + b },
		backward: func(records []record, r *record) {
			records[r.operands[0]].gradient += r.gradient
			records[r.operands[1]].gradient += r.gradient
		},
	},
	OpMul: {
		arity:   2,
		forward: func(a, b, _ float64) float64 { return a * b },
		backward: func(records []record, r *record) {
			a, b := &records[r.operands[0]], &records[r.operands[1]]
			a.gradient += r.gradient * b.value
			b.gradient += r.gradient * a.value
		},
	},
	OpPow: {
		arity:   1,
		forward: func(a, _, n float64) float64 { return math.Pow(a, n) },
		backward: func(records []record, r *record) {
			a := &records[r.operands[0]]
			a.gradient += r.gradient * r.exponent * math.Pow(a.value, r.exponent-1)
		},
	},
	OpExp: {
		arity:   1,
		forward: func(a, _, _ float64) float64 { return math.Exp(a) },
		backward: func(records []record, r *record) {
			records[r.operands[0]].gradient += r.gradient * r.value
		},
	},
	OpTanh: {
		arity:   1,
		forward: func(a, _, _ float64) float64 { return math.Tanh(a) },
		backward: func(records []record, r *record) {
			records[r.operands[0]].gradient += r.gradient * (1 - r.value*r.value)
		},
	},
	OpReLU: {
		arity: 1,
		forward: func(a, _, _ float64) float64 {
			if a > 0 {
				return a
			}
			return 0
		},
		backward: func(records []record, r *record) {
			a := &records[r.operands[0]]
			if a.value > 0 {
				a.gradient += r.gradient
			}
		},
	},
}
