//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package metrics defines metric names and attribute keys for workflow runs.
package metrics

const (
	// MeterNameWorkflow is the meter all workflow instruments belong to.
	MeterNameWorkflow = "trpc_workflow_go.workflow"

	// MetricRunCount counts finished runs.
	MetricRunCount = "trpc_workflow_go.run.count"
	// MetricRunDuration records run wall time in seconds.
	MetricRunDuration = "trpc_workflow_go.run.duration"
	// MetricRunTokenUsage records tokens consumed per run.
	MetricRunTokenUsage = "trpc_workflow_go.run.token.usage" // #nosec G101 - this is a metric key name, not a credential.
	// MetricNodeCount counts node executions.
	MetricNodeCount = "trpc_workflow_go.node.count"

	// KeyWorkflowType is the workflow classification attribute.
	KeyWorkflowType = "trpc_workflow_go.workflow.type"
	// KeySuccess tells successful runs from failed ones.
	KeySuccess = "trpc_workflow_go.success"
	// KeyErrorType carries the error type tag of failed runs.
	KeyErrorType = "error.type"
	// KeyTokenType is "input" or "output".
	KeyTokenType = "gen_ai.token.type" // #nosec G101 - this is a metric key name, not a credential.
	// KeyNodeType is the node type tag.
	KeyNodeType = "trpc_workflow_go.node.type"

	// TokenTypeInput and TokenTypeOutput are KeyTokenType values.
	TokenTypeInput  = "input"
	TokenTypeOutput = "output"
)
