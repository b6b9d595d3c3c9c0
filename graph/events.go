//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// EventType tags stream events.
type EventType string

// Stream event types.
const (
	EventNodeStart     EventType = "node_start"
	EventModelToken    EventType = "model_token"
	EventModelComplete EventType = "model_complete"
	EventNodeEnd       EventType = "node_end"
	EventError         EventType = "error"
	EventEnd           EventType = "end"
)

// Event is one item of a streamed run.
type Event struct {
	Type   EventType
	NodeID string
	// Step is the 1-based node execution count at the time of the event.
	Step int
	// Content is the delta of a model_token event and the full content of
	// a model_complete event.
	Content string
	// Message is the finished model turn of a model_complete event.
	Message *model.Message
	// Usage is set on model_complete events.
	Usage *model.Usage
	// State is the final state, set on the end event.
	State *state.NodeContext
	// Err is set on error events.
	Err       error
	Timestamp time.Time
}
