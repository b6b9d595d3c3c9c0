//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
)

// DefaultMaxIterations applies when a loop node has no max_iterations.
const DefaultMaxIterations = 3

// LoopNode counts its visits and publishes whether the loop should go on.
//
// Each visit writes metadata loop_<id>_iteration (the count before this
// visit) and loop_<id>_continue. The stored count only grows while the
// loop continues, so it never passes max_iterations.
type LoopNode struct {
	id            string
	maxIterations int
}

// NewLoopNode creates a loop node.
func NewLoopNode(id string, maxIterations int) *LoopNode {
	if maxIterations < 0 {
		maxIterations = 0
	}
	return &LoopNode{id: id, maxIterations: maxIterations}
}

// ID implements Node.
func (n *LoopNode) ID() string { return n.id }

// MaxIterations returns the configured limit.
func (n *LoopNode) MaxIterations() int { return n.maxIterations }

// Execute implements Node.
func (n *LoopNode) Execute(_ context.Context, c *state.NodeContext) (*state.Update, error) {
	iterations := c.LoopState[n.id]
	proceed := iterations < n.maxIterations
	u := state.NewUpdate().
		SetMetadata(state.LoopIterationKey(n.id), iterations).
		SetMetadata(state.LoopContinueKey(n.id), proceed)
	if proceed {
		u.SetLoop(n.id, iterations+1)
	}
	return u, nil
}
