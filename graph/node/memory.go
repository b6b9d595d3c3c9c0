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
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

const (
	// DefaultMemoryWindow is the number of recent turns kept verbatim.
	DefaultMemoryWindow = 10
	maxSummaryTurnLen   = 200
)

// MemoryNode bounds the transcript sent to the model. It folds the turns
// older than the window into conversation_summary and publishes the window
// through the memory_window variable. The transcript itself is untouched.
type MemoryNode struct {
	id     string
	window int
}

// NewMemoryNode creates a memory node keeping window recent turns.
func NewMemoryNode(id string, window int) *MemoryNode {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &MemoryNode{id: id, window: window}
}

// ID implements Node.
func (n *MemoryNode) ID() string { return n.id }

// Window returns the number of recent turns kept.
func (n *MemoryNode) Window() int { return n.window }

// Execute implements Node.
func (n *MemoryNode) Execute(_ context.Context, c *state.NodeContext) (*state.Update, error) {
	u := state.NewUpdate().SetVariable(VarMemoryWindow, n.window)
	kept := len(windowed(c.Messages, n.window))
	if kept >= len(c.Messages) {
		return u, nil
	}
	trimmed := c.Messages[:len(c.Messages)-kept]
	return u.SetConversationSummary(summarize(trimmed)), nil
}

func summarize(msgs []model.Message) string {
	var b strings.Builder
	b.WriteString("Previous conversation summary:")
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			continue
		}
		content := strings.Join(strings.Fields(m.Content), " ")
		if content == "" && m.HasToolCalls() {
			names := make([]string, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				names = append(names, tc.Function.Name)
			}
			content = fmt.Sprintf("requested tools %s", strings.Join(names, ", "))
		}
		if content == "" {
			continue
		}
		if r := []rune(content); len(r) > maxSummaryTurnLen {
			content = string(r[:maxSummaryTurnLen]) + "..."
		}
		fmt.Fprintf(&b, "\n- %s: %s", m.Role, content)
	}
	return b.String()
}
