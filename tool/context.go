//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// ContextKeyToolCallID is the context key type for tool call ID.
type ContextKeyToolCallID struct{}

// ContextWithToolCallID returns a child context carrying the call id of the
// tool invocation in progress.
func ContextWithToolCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyToolCallID{}, id)
}

// ToolCallIDFromContext retrieves tool call ID from context.
// Returns the tool call ID and true if found, empty string and false
// otherwise.
func ToolCallIDFromContext(ctx context.Context) (string, bool) {
	toolCallID, ok := ctx.Value(ContextKeyToolCallID{}).(string)
	return toolCallID, ok
}
