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

	"trpc.group/trpc-go/trpc-workflow-go/graph/condition"
	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
)

// ConditionalNode records the outcome of one condition in
// conditional_results.
type ConditionalNode struct {
	id   string
	expr condition.Expr
}

// NewConditionalNode creates a conditional-branch node for a parsed
// expression.
func NewConditionalNode(id string, expr condition.Expr) *ConditionalNode {
	if expr == nil {
		expr = condition.Literal{Value: true}
	}
	return &ConditionalNode{id: id, expr: expr}
}

// ID implements Node.
func (n *ConditionalNode) ID() string { return n.id }

// Condition returns the parsed expression.
func (n *ConditionalNode) Condition() condition.Expr { return n.expr }

// Execute implements Node.
func (n *ConditionalNode) Execute(_ context.Context, c *state.NodeContext) (*state.Update, error) {
	return state.NewUpdate().SetConditional(n.id, n.expr.Eval(c)), nil
}
