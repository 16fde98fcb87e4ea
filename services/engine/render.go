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
)

// String renders the value, prefixed by the label when there is one:
// "0.707" or "o=0.707". The zero Node renders as "<invalid>".
func (n Node) String() string {
	if !n.Valid() {
		return "<invalid>"
	}
	r := n.rec()
	if r.label == "" {
		return fmt.Sprintf("%.3f", r.value)
	}
	return fmt.Sprintf("%s=%.3f", r.label, r.value)
}

// Describe renders value, gradient and, for computed nodes, the operation
// applied to its operands:
//
//	o(0.707 gradient=1.000 tanh(n=0.881))
func (n Node) Describe() string {
	r := n.rec()
	name := r.label
	if name == "" {
		name = r.op.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s(%.3f gradient=%.3f", name, r.value, r.gradient)
	if r.op != OpLeaf {
		ops := n.Operands()
		args := make([]string, 0, len(ops)+1)
		for _, o := range ops {
			args = append(args, o.String())
		}
		if r.op == OpPow {
			args = append(args, fmt.Sprintf("%g", r.exponent))
		}
		fmt.Fprintf(&b, " %s(%s)", r.op, strings.Join(args, ", "))
	}
	b.WriteByte(')')
	return b.String()
}

// Tree renders Describe for n and, indented beneath it, for every operand
// recursively. A shared operand is rendered under each of its consumers.
func (n Node) Tree() string {
	var b strings.Builder
	n.writeTree(&b, 0)
	return b.String()
}

func (n Node) writeTree(b *strings.Builder, depth int) {
	if depth > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("\t", depth))
	b.WriteString(n.Describe())
	for _, o := range n.Operands() {
		o.writeTree(b, depth+1)
	}
}
