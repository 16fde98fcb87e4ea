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
	"errors"
	"fmt"
)

// Sentinel errors for the engine package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrMalformedNode is returned when an operation tag and its operands disagree:
	// operands without an operation, or an operation without its operands.
	ErrMalformedNode = errors.New("malformed node")

	// ErrUnsupportedOperandKind is returned when a differentiable node is
	// supplied where only a plain real constant is accepted (the power exponent).
	ErrUnsupportedOperandKind = errors.New("unsupported operand kind")

	// ErrInvalidNode is returned for the zero Node handle.
	ErrInvalidNode = errors.New("invalid node handle")

	// ErrForeignNode is returned when a node from another graph is used as an operand.
	ErrForeignNode = errors.New("node belongs to a different graph")

	// ErrStaleNode is returned for a handle whose record was discarded by Rewind.
	ErrStaleNode = errors.New("node was discarded by rewind")

	// ErrNotLeaf is returned when setting the value of a computed node.
	ErrNotLeaf = errors.New("node is not a leaf")

	// ErrInvalidMark is returned when rewinding to a mark the graph cannot honor.
	ErrInvalidMark = errors.New("invalid checkpoint mark")
)

// NodeError wraps an error with the node it concerns.
type NodeError struct {
	// Index is the arena index of the node, or -1 when the node was never recorded.
	Index int
	Op    Op
	Err   error
}

// Error returns the error message.
func (e *NodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s node: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("node #%d (%s): %v", e.Index, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

func newNodeError(index int, op Op, err error) *NodeError {
	return &NodeError{Index: index, Op: op, Err: err}
}
