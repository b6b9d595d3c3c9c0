//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the transcript types and the model handle interface
// consumed by model-call nodes.
package model

import "context"

// Info describes a model.
type Info struct {
	// Name is the model name, e.g. "gpt-4o-mini".
	Name string
	// Provider is the provider name, e.g. "openai".
	Provider string
}

// Model is the model handle.
//
// GenerateContent returns a channel of responses. For non streaming requests
// the channel yields a single final response. For streaming requests it yields
// partial responses (IsPartial, Choices[0].Delta) followed by one final
// response with Done set, carrying the full message, the finish reason and the
// usage.
type Model interface {
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)
	Info() Info
}

// Collect drains a response channel and returns the final response. Partial
// responses are passed to onDelta when it is non-nil. An API level error in any
// response is returned as an error.
func Collect(ch <-chan *Response, onDelta func(*Response)) (*Response, error) {
	var final *Response
	var content string
	for rsp := range ch {
		if rsp == nil {
			continue
		}
		if rsp.Error != nil {
			return nil, &APIError{Type: rsp.Error.Type, Message: rsp.Error.Message}
		}
		if rsp.IsPartial {
			content += rsp.DeltaContent()
			if onDelta != nil {
				onDelta(rsp)
			}
			continue
		}
		final = rsp
	}
	if final == nil {
		if content == "" {
			return nil, ErrNoResponse
		}
		final = &Response{
			Choices: []Choice{{Message: NewAssistantMessage(content)}},
			Done:    true,
		}
	}
	return final, nil
}
