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
	"sort"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// VariableNode sets, increments and captures workflow variables.
//
// Config:
//
//	set:                      {name: value, ...}
//	increment:                {name: delta, ...}
//	capture_last_response_as: name of the variable receiving the last
//	                          assistant turn's content
type VariableNode struct {
	id        string
	set       map[string]any
	increment map[string]any
	captureAs string
}

// NewVariableNode creates a variable node from config.
func NewVariableNode(id string, cfg map[string]any) *VariableNode {
	return &VariableNode{
		id:        id,
		set:       cfgMap(cfg, CfgSet),
		increment: cfgMap(cfg, CfgIncrement),
		captureAs: cfgString(cfg, CfgCaptureAs),
	}
}

// ID implements Node.
func (n *VariableNode) ID() string { return n.id }

// Execute implements Node.
func (n *VariableNode) Execute(_ context.Context, c *state.NodeContext) (*state.Update, error) {
	u := state.NewUpdate()
	for k, v := range n.set {
		u.SetVariable(k, v)
	}
	for _, k := range sortedKeys(n.increment) {
		u.SetVariable(k, addNumbers(currentValue(c, u, k), n.increment[k]))
	}
	if n.captureAs != "" {
		for i := len(c.Messages) - 1; i >= 0; i-- {
			if c.Messages[i].Role == model.RoleAssistant {
				u.SetVariable(n.captureAs, c.Messages[i].Content)
				break
			}
		}
	}
	return u, nil
}

// currentValue prefers a value set earlier in the same update.
func currentValue(c *state.NodeContext, u *state.Update, key string) any {
	if v, ok := u.Variables[key]; ok {
		return v
	}
	return c.Variables[key]
}

// addNumbers keeps integers integral and falls back to float64 otherwise.
// Non-numeric current values count as zero.
func addNumbers(cur, delta any) any {
	ci, cInt := asInt(cur)
	di, dInt := asInt(delta)
	if cInt && dInt {
		return ci + di
	}
	return asFloat(cur) + asFloat(delta)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int, int32, int64:
		return state.ToInt(n)
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	i, _ := state.ToInt(v)
	return float64(i)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
