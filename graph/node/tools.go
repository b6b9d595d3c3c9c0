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
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// ToolsNode runs the tool calls requested by the last transcript turn.
type ToolsNode struct {
	id    string
	tools []tool.Tool
}

var (
	_ Node             = (*ToolsNode)(nil)
	_ ResourceBindable = (*ToolsNode)(nil)
)

// NewToolsNode creates a tool-execution node.
func NewToolsNode(id string) *ToolsNode {
	return &ToolsNode{id: id}
}

// ID implements Node.
func (n *ToolsNode) ID() string { return n.id }

// SetModel implements ResourceBindable.
func (n *ToolsNode) SetModel(model.Model) {}

// SetRetriever implements ResourceBindable.
func (n *ToolsNode) SetRetriever(knowledge.Retriever) {}

// SetTools implements ResourceBindable.
func (n *ToolsNode) SetTools(tools []tool.Tool) { n.tools = tools }

// Execute implements Node. Only successful invocations count towards
// tool_call_count; failures become tool-result turns and error entries.
func (n *ToolsNode) Execute(ctx context.Context, c *state.NodeContext) (*state.Update, error) {
	u := state.NewUpdate()
	if len(n.tools) == 0 {
		return u, nil
	}
	last, ok := c.LastMessage()
	if !ok || !last.HasToolCalls() {
		return u, nil
	}

	var (
		succeeded int
		failures  []string
	)
	for _, call := range last.ToolCalls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := call.Function.Name
		content, err := n.invoke(ctx, call)
		if err != nil {
			log.Warnf("node %s: tool %s failed: %v", n.id, name, err)
			failures = append(failures, fmt.Sprintf("%s (%s): %v", name, call.ID, err))
			content = fmt.Sprintf("Error executing tool %s: %v", name, err)
		} else {
			succeeded++
		}
		u.AddMessages(model.NewToolMessage(call.ID, name, content))
	}
	if succeeded > 0 {
		u.SetToolCallCount(c.ToolCallCount + succeeded)
	}
	if len(failures) > 0 {
		// One entry per node: every failure of the turn is kept.
		u.SetError(state.ErrorKindTool, n.id, strings.Join(failures, "; "))
	}
	return u, nil
}

func (n *ToolsNode) invoke(ctx context.Context, call model.ToolCall) (string, error) {
	t := tool.Find(n.tools, call.Function.Name)
	if t == nil {
		return "", fmt.Errorf("tool %q not found", call.Function.Name)
	}
	callable, ok := t.(tool.CallableTool)
	if !ok {
		return "", fmt.Errorf("tool %q is not callable", call.Function.Name)
	}
	args := call.Function.Arguments
	if len(args) == 0 {
		args = []byte("{}")
	}
	result, err := callable.Call(tool.ContextWithToolCallID(ctx, call.ID), args)
	if err != nil {
		return "", err
	}
	return stringify(result)
}

func stringify(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case fmt.Stringer:
		return r.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(b), nil
}
