//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// WorkflowType classifies where a run's graph comes from.
type WorkflowType string

// Workflow types.
const (
	WorkflowTemplate   WorkflowType = "template"
	WorkflowDefinition WorkflowType = "definition"
	WorkflowCustom     WorkflowType = "custom"
	WorkflowChat       WorkflowType = "chat"
)

// Persisted reports whether runs of this type get an execution record.
func (t WorkflowType) Persisted() bool {
	return t == WorkflowTemplate || t == WorkflowDefinition
}

// Request is one execution request.
type Request struct {
	// TemplateID selects a registered or stored template.
	TemplateID string `json:"template_id,omitempty"`

	// DefinitionID selects a stored definition.
	DefinitionID string `json:"definition_id,omitempty"`

	// Nodes, Edges and EntryPoint describe an inline graph.
	Nodes      []graph.NodeSpec `json:"nodes,omitempty"`
	Edges      []graph.EdgeSpec `json:"edges,omitempty"`
	EntryPoint string           `json:"entry_point,omitempty"`

	// Message is the user turn that starts the run. Input is structured
	// input exposed to conditions as the "input" variable.
	Message string         `json:"message,omitempty"`
	Input   map[string]any `json:"input,omitempty"`

	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`

	EnableMemory    bool `json:"enable_memory,omitempty"`
	EnableRetrieval bool `json:"enable_retrieval,omitempty"`
	EnableTools     bool `json:"enable_tools,omitempty"`
	Stream          bool `json:"stream,omitempty"`

	MemoryWindow int  `json:"memory_window,omitempty"`
	MaxToolCalls *int `json:"max_tool_calls,omitempty"`
	MaxDocuments int  `json:"max_documents,omitempty"`

	// ToolNames is an allow-list of tool name globs.
	ToolNames   []string `json:"tool_names,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`

	ConversationID string `json:"conversation_id,omitempty"`

	// WorkflowConfig is merged into the run variables.
	WorkflowConfig map[string]any `json:"workflow_config,omitempty"`
}

// ExecutionConfig is the resolved, immutable configuration of a run.
type ExecutionConfig struct {
	InputData    map[string]any
	Provider     string
	Model        string
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string

	EnableMemory    bool
	EnableRetrieval bool
	EnableTools     bool
	EnableStreaming bool

	MemoryWindow int
	MaxToolCalls int
	MaxDocuments int

	ToolNames      []string
	DocumentIDs    []string
	WorkflowConfig map[string]any
}

// ExecutionContext is created once per run and dropped when it ends.
type ExecutionContext struct {
	ExecutionID    string
	UserID         string
	ConversationID string
	CorrelationID  string
	WorkflowType   WorkflowType

	// SourceID is the template or definition id.
	SourceID string

	// Inline is the graph of a custom run.
	Inline *graph.Definition

	Config *ExecutionConfig
	// State is the live run state.
	State  *state.NodeContext

	Model     model.Model
	Tools     []tool.Tool
	Retriever knowledge.Retriever

	CreatedAt time.Time
}

// ThreadID is the conversation id when present, else the execution id.
func (ec *ExecutionContext) ThreadID() string {
	if ec.ConversationID != "" {
		return ec.ConversationID
	}
	return ec.ExecutionID
}

// ExecutionResult is the normalized outcome of a run.
type ExecutionResult struct {
	ExecutionID    string            `json:"execution_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	WorkflowType   WorkflowType      `json:"workflow_type"`
	Response       string            `json:"response"`
	Usage          model.Usage       `json:"usage"`
	Cost           float64           `json:"cost"`
	ToolCallCount  int               `json:"tool_call_count"`
	Duration       time.Duration     `json:"duration"`
	NodeErrors     map[string]string `json:"node_errors,omitempty"`

	// State is the final run state. It is nil for streamed runs that ended
	// without one.
	State *state.NodeContext `json:"-"`
}

// Map returns the result as a record payload.
func (r *ExecutionResult) Map() map[string]any {
	m := map[string]any{
		"execution_id":      r.ExecutionID,
		"workflow_type":     string(r.WorkflowType),
		"response":          r.Response,
		"prompt_tokens":     r.Usage.PromptTokens,
		"completion_tokens": r.Usage.CompletionTokens,
		"total_tokens":      r.Usage.TotalTokens,
		"cost":              r.Cost,
		"tool_call_count":   r.ToolCallCount,
		"duration_ms":       r.Duration.Milliseconds(),
	}
	if r.ConversationID != "" {
		m["conversation_id"] = r.ConversationID
	}
	if len(r.NodeErrors) > 0 {
		errs := make(map[string]any, len(r.NodeErrors))
		for k, v := range r.NodeErrors {
			errs[k] = v
		}
		m["node_errors"] = errs
	}
	return m
}

// ChunkType tags a streamed chunk.
type ChunkType string

// Chunk types, emitted in the order token*, complete, done.
const (
	ChunkToken    ChunkType = "token"
	ChunkComplete ChunkType = "complete"
	ChunkDone     ChunkType = "done"
)

// Chunk is one item of a streamed run. Content is the token delta, or the
// full response of a complete chunk. ElapsedMs and Result are set on the
// done chunk.
type Chunk struct {
	Type      ChunkType        `json:"type"`
	NodeID    string           `json:"node_id,omitempty"`
	Content   string           `json:"content,omitempty"`
	Usage     *model.Usage     `json:"usage,omitempty"`
	ElapsedMs int64            `json:"elapsed_ms,omitempty"`
	Result    *ExecutionResult `json:"result,omitempty"`
}
