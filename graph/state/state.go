//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package state holds the per-run mutable state threaded through graph
// nodes and the partial updates nodes return.
package state

import (
	"fmt"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// Variable keys with built-in meaning.
const (
	// VarCapabilities is the nested map of feature flags and limits.
	VarCapabilities = "capabilities"
	// CapEnableMemory, CapEnableRetrieval, CapEnableTools and CapMaxToolCalls
	// are keys under VarCapabilities.
	CapEnableMemory    = "enable_memory"
	CapEnableRetrieval = "enable_retrieval"
	CapEnableTools     = "enable_tools"
	CapMaxToolCalls    = "max_tool_calls"
)

// DefaultMaxToolCalls applies when capabilities carry no max_tool_calls.
const DefaultMaxToolCalls = 10

// Error kinds used as error_state key prefixes.
const (
	ErrorKindModel     = "model_error"
	ErrorKindTool      = "tool_error"
	ErrorKindRetrieval = "retrieval_error"
	ErrorKindMemory    = "memory_error"
	ErrorKindNode      = "node_error"
)

// NodeContext is the state of one run. It is owned by that run exclusively.
type NodeContext struct {
	// Messages is the conversation transcript.
	Messages []model.Message `json:"messages"`
	// Variables holds workflow variables, including the capabilities map.
	Variables map[string]any `json:"variables"`
	// ToolCallCount counts successful tool invocations in this run.
	ToolCallCount int `json:"tool_call_count"`
	// LoopState maps loop node id to its iteration count.
	LoopState map[string]int `json:"loop_state"`
	// Metadata carries routing flags and run metadata.
	Metadata map[string]any `json:"metadata"`
	// ErrorState maps "<kind>_<node id>" to error text.
	ErrorState map[string]string `json:"error_state"`
	// ConditionalResults maps conditional node id to its outcome.
	ConditionalResults map[string]bool `json:"conditional_results"`
	// ExecutionHistory lists executed node ids in order.
	ExecutionHistory []string `json:"execution_history"`
	// RetrievalContext is text injected into model prompts.
	RetrievalContext string `json:"retrieval_context,omitempty"`
	// ConversationSummary summarises turns trimmed from the transcript.
	ConversationSummary string `json:"conversation_summary,omitempty"`
	// Usage accumulates token counters reported by model calls.
	Usage model.Usage `json:"usage"`
}

// New returns an empty NodeContext with initialised maps.
func New() *NodeContext {
	return &NodeContext{
		Variables:          make(map[string]any),
		LoopState:          make(map[string]int),
		Metadata:           make(map[string]any),
		ErrorState:         make(map[string]string),
		ConditionalResults: make(map[string]bool),
	}
}

// Clone returns a copy whose maps and slices can be changed without
// affecting c. Nested variable values are shared.
func (c *NodeContext) Clone() *NodeContext {
	if c == nil {
		return New()
	}
	out := &NodeContext{
		Messages:            append([]model.Message(nil), c.Messages...),
		Variables:           copyMap(c.Variables),
		ToolCallCount:       c.ToolCallCount,
		LoopState:           copyMap(c.LoopState),
		Metadata:            copyMap(c.Metadata),
		ErrorState:          copyMap(c.ErrorState),
		ConditionalResults:  copyMap(c.ConditionalResults),
		ExecutionHistory:    append([]string(nil), c.ExecutionHistory...),
		RetrievalContext:    c.RetrievalContext,
		ConversationSummary: c.ConversationSummary,
		Usage:               c.Usage,
	}
	if caps, ok := c.Variables[VarCapabilities].(map[string]any); ok {
		out.Variables[VarCapabilities] = copyMap(caps)
	}
	return out
}

// LastMessage returns the last transcript turn.
func (c *NodeContext) LastMessage() (model.Message, bool) {
	if c == nil || len(c.Messages) == 0 {
		return model.Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastUserMessage returns the content of the most recent user turn.
func (c *NodeContext) LastUserMessage() string {
	if c == nil {
		return ""
	}
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == model.RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// Capabilities returns the capabilities sub-map, or nil.
func (c *NodeContext) Capabilities() map[string]any {
	if c == nil {
		return nil
	}
	caps, _ := c.Variables[VarCapabilities].(map[string]any)
	return caps
}

// MaxToolCalls returns capabilities.max_tool_calls, or DefaultMaxToolCalls.
func (c *NodeContext) MaxToolCalls() int {
	if n, ok := ToInt(c.Capabilities()[CapMaxToolCalls]); ok {
		return n
	}
	return DefaultMaxToolCalls
}

// HasErrors reports whether any node recorded an error.
func (c *NodeContext) HasErrors() bool {
	return c != nil && len(c.ErrorState) > 0
}

// ErrorKey builds the error_state key for a node.
func ErrorKey(kind, nodeID string) string {
	return kind + "_" + nodeID
}

// LoopContinueKey is the metadata key holding a loop's continue flag.
func LoopContinueKey(loopID string) string {
	return fmt.Sprintf("loop_%s_continue", loopID)
}

// LoopIterationKey is the metadata key holding a loop's iteration marker.
func LoopIterationKey(loopID string) string {
	return fmt.Sprintf("loop_%s_iteration", loopID)
}

// ToInt converts numeric values, including JSON numbers, to int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case uint:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
