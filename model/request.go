//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package model

import "trpc.group/trpc-go/trpc-workflow-go/tool"

// Role represents the role of a message author.
type Role string

// Role constants for message authors.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message represents a single turn of a transcript.
type Message struct {
	// Role is the role of the message author.
	Role Role `json:"role"`
	// Content is the text content of the message.
	Content string `json:"content,omitempty"`
	// ToolID is the ID of the tool call a tool message answers.
	ToolID string `json:"tool_id,omitempty"`
	// ToolName is the name of the tool a tool message answers.
	ToolName string `json:"tool_name,omitempty"`
	// ToolCalls holds the tool requests carried by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// FinishReason is the completion reason reported by the model for an
	// assistant message, e.g. "stop" or "tool_calls".
	FinishReason string `json:"finish_reason,omitempty"`
}

// HasToolCalls reports whether the message carries tool requests.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a new tool result message.
func NewToolMessage(toolID, toolName, content string) Message {
	return Message{
		Role:     RoleTool,
		ToolID:   toolID,
		ToolName: toolName,
		Content:  content,
	}
}

// ToolCall represents a call to a tool (function) in the model response.
type ToolCall struct {
	// Type of the tool. Currently, only `function` is supported.
	Type string `json:"type"`
	// Function holds the name and encoded arguments of the call.
	Function FunctionDefinitionParam `json:"function"`
	// ID is the ID of the tool call returned by the model.
	ID string `json:"id,omitempty"`
}

// FunctionDefinitionParam represents the function part of a tool call.
type FunctionDefinitionParam struct {
	// Name is the name of the function to be called.
	Name string `json:"name"`
	// Arguments holds the JSON encoded arguments.
	Arguments []byte `json:"arguments,omitempty"`
}

// GenerationConfig contains configuration for text generation.
type GenerationConfig struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens *int `json:"max_tokens,omitempty"`
	// Temperature controls randomness (0.0 to 2.0).
	Temperature *float64 `json:"temperature,omitempty"`
	// Stream indicates whether to stream the response.
	Stream bool `json:"stream"`
}

// Request is the request to the model.
type Request struct {
	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	GenerationConfig `json:",inline"`

	// Tools are the tools bound to the call. A nil map means no tool binding.
	Tools map[string]tool.Tool `json:"-"`
}
