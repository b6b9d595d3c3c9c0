//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package state

import "trpc.group/trpc-go/trpc-workflow-go/model"

// Update is the partial state a node returns. Zero-valued fields mean
// "unchanged". Each field has its own merge policy, applied by Apply:
//
//	Messages, ExecutionHistory        appended
//	Variables, Metadata, LoopState,
//	ErrorState, ConditionalResults    shallow-merged, update wins
//	ToolCallCount                     replaced when set
//	RetrievalContext,
//	ConversationSummary               replaced when set
//	Usage                             summed
type Update struct {
	Messages            []model.Message
	Variables           map[string]any
	ToolCallCount       *int
	LoopState           map[string]int
	Metadata            map[string]any
	ErrorState          map[string]string
	ConditionalResults  map[string]bool
	ExecutionHistory    []string
	RetrievalContext    *string
	ConversationSummary *string
	Usage               *model.Usage
}

// NewUpdate returns an empty update.
func NewUpdate() *Update {
	return &Update{}
}

// AddMessages appends transcript turns.
func (u *Update) AddMessages(msgs ...model.Message) *Update {
	u.Messages = append(u.Messages, msgs...)
	return u
}

// SetVariable sets a variable.
func (u *Update) SetVariable(key string, value any) *Update {
	if u.Variables == nil {
		u.Variables = make(map[string]any)
	}
	u.Variables[key] = value
	return u
}

// SetMetadata sets a metadata entry.
func (u *Update) SetMetadata(key string, value any) *Update {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = value
	return u
}

// SetLoop sets a loop counter.
func (u *Update) SetLoop(loopID string, iterations int) *Update {
	if u.LoopState == nil {
		u.LoopState = make(map[string]int)
	}
	u.LoopState[loopID] = iterations
	return u
}

// SetError records an error for a node.
func (u *Update) SetError(kind, nodeID, text string) *Update {
	if u.ErrorState == nil {
		u.ErrorState = make(map[string]string)
	}
	u.ErrorState[ErrorKey(kind, nodeID)] = text
	return u
}

// SetConditional records a conditional node outcome.
func (u *Update) SetConditional(nodeID string, result bool) *Update {
	if u.ConditionalResults == nil {
		u.ConditionalResults = make(map[string]bool)
	}
	u.ConditionalResults[nodeID] = result
	return u
}

// SetToolCallCount replaces the tool call counter.
func (u *Update) SetToolCallCount(n int) *Update {
	u.ToolCallCount = model.Ptr(n)
	return u
}

// SetRetrievalContext replaces the retrieval context.
func (u *Update) SetRetrievalContext(text string) *Update {
	u.RetrievalContext = &text
	return u
}

// SetConversationSummary replaces the conversation summary.
func (u *Update) SetConversationSummary(text string) *Update {
	u.ConversationSummary = &text
	return u
}

// AddUsage adds token counters.
func (u *Update) AddUsage(usage model.Usage) *Update {
	if u.Usage == nil {
		u.Usage = &model.Usage{}
	}
	*u.Usage = u.Usage.Add(usage)
	return u
}

// Apply merges u into c following the per-field policy documented on Update.
// A nil update is a no-op.
func (c *NodeContext) Apply(u *Update) {
	if c == nil || u == nil {
		return
	}
	c.Messages = append(c.Messages, u.Messages...)
	c.ExecutionHistory = append(c.ExecutionHistory, u.ExecutionHistory...)
	c.Variables = mergeMap(c.Variables, u.Variables)
	c.Metadata = mergeMap(c.Metadata, u.Metadata)
	c.LoopState = mergeMap(c.LoopState, u.LoopState)
	c.ErrorState = mergeMap(c.ErrorState, u.ErrorState)
	c.ConditionalResults = mergeMap(c.ConditionalResults, u.ConditionalResults)
	if u.ToolCallCount != nil {
		c.ToolCallCount = *u.ToolCallCount
	}
	if u.RetrievalContext != nil {
		c.RetrievalContext = *u.RetrievalContext
	}
	if u.ConversationSummary != nil {
		c.ConversationSummary = *u.ConversationSummary
	}
	if u.Usage != nil {
		c.Usage = c.Usage.Add(*u.Usage)
	}
}

// Merge returns a copy of c with u applied, leaving c untouched.
func Merge(c *NodeContext, u *Update) *NodeContext {
	out := c.Clone()
	out.Apply(u)
	return out
}

func mergeMap[K comparable, V any](dst, src map[K]V) map[K]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[K]V, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
