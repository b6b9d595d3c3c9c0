//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package model

import "time"

// Finish reasons reported by models.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
	FinishReasonLength    = "length"
)

// Error type constants for ResponseError.Type.
const (
	ErrorTypeAPIError    = "api_error"
	ErrorTypeStreamError = "stream_error"
)

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`
	// Message is the full message, set on the final response.
	Message Message `json:"message,omitempty"`
	// Delta is the incremental content of a partial response.
	Delta Message `json:"delta,omitempty"`
	// FinishReason is the reason the choice was finished.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// IsZero reports whether no tokens were counted.
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// ResponseError carries an API level error reported inside a response.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Response is a response, or a chunk of a streamed response, from the model.
//
// Response.Error represents errors reported after communication with the
// model service succeeded. Errors returned by GenerateContent itself mean the
// request could not be issued at all.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`
	// Model is the model used to generate the response.
	Model string `json:"model"`
	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`
	// Usage contains token usage information. Usually only set on the final
	// response of a stream.
	Usage *Usage `json:"usage,omitempty"`
	// Error contains API level error information if the request failed.
	Error *ResponseError `json:"error,omitempty"`
	// Timestamp is the time the response was received.
	Timestamp time.Time `json:"timestamp"`
	// Done marks the final response of a call.
	Done bool `json:"done"`
	// IsPartial marks a streamed delta.
	IsPartial bool `json:"is_partial"`
}

// FinalMessage returns the assistant message of the first choice with the
// finish reason copied onto it.
func (rsp *Response) FinalMessage() Message {
	if rsp == nil || len(rsp.Choices) == 0 {
		return Message{Role: RoleAssistant}
	}
	choice := rsp.Choices[0]
	msg := choice.Message
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	if choice.FinishReason != nil && msg.FinishReason == "" {
		msg.FinishReason = *choice.FinishReason
	}
	return msg
}

// DeltaContent returns the streamed text carried by a partial response.
func (rsp *Response) DeltaContent() string {
	if rsp == nil || len(rsp.Choices) == 0 {
		return ""
	}
	return rsp.Choices[0].Delta.Content
}
