//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package trace defines span attribute keys used by the workflow engine.
package trace

// Span attribute keys.
const (
	KeyExecutionID    = "trpc_workflow_go.execution.id"
	KeyWorkflowType   = "trpc_workflow_go.workflow.type"
	KeyWorkflowSource = "trpc_workflow_go.workflow.source_id"
	KeyUserID         = "trpc_workflow_go.user.id"
	KeyStream         = "trpc_workflow_go.is_stream"
	KeyNodeID         = "trpc_workflow_go.node.id"
	KeyNodeStep       = "trpc_workflow_go.node.step"
	KeyToolCallCount  = "trpc_workflow_go.tool_call_count"

	// GenAI attributes shared with other instrumented libraries.
	KeyGenAIConversationID    = "gen_ai.conversation.id"
	KeyGenAISystem            = "gen_ai.system"
	KeyGenAIRequestModel      = "gen_ai.request.model"
	KeyGenAIUsageInputTokens  = "gen_ai.usage.input_tokens"  // #nosec G101 - this is a metric key name, not a credential.
	KeyGenAIUsageOutputTokens = "gen_ai.usage.output_tokens" // #nosec G101 - this is a metric key name, not a credential.
)

// Span names.
const (
	SpanNameExecute  = "workflow.execute"
	SpanNameNode     = "workflow.node"
	SpanNameTracking = "workflow.run"
)
