//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package event defines workflow lifecycle events and the sinks they are
// emitted to.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types.
const (
	TypeWorkflowStarted   = "workflow_started"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowFailed    = "workflow_failed"
)

// Priority is the delivery priority of an event.
type Priority string

// Priorities.
const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Event is a workflow lifecycle notification.
type Event struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Priority       Priority       `json:"priority"`
	ExecutionID    string         `json:"execution_id"`
	UserID         string         `json:"user_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	WorkflowType   string         `json:"workflow_type,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Option configures an Event.
type Option func(*Event)

// WithPriority sets the event priority.
func WithPriority(p Priority) Option {
	return func(e *Event) { e.Priority = p }
}

// WithUser sets the user and conversation identity.
func WithUser(userID, conversationID string) Option {
	return func(e *Event) {
		e.UserID = userID
		e.ConversationID = conversationID
	}
}

// WithWorkflowType sets the workflow classification.
func WithWorkflowType(t string) Option {
	return func(e *Event) { e.WorkflowType = t }
}

// WithPayload merges payload fields into the event.
func WithPayload(payload map[string]any) Option {
	return func(e *Event) {
		if len(payload) == 0 {
			return
		}
		if e.Payload == nil {
			e.Payload = make(map[string]any, len(payload))
		}
		for k, v := range payload {
			e.Payload[k] = v
		}
	}
}

// New creates an event of the given type for an execution.
func New(eventType, executionID string, opts ...Option) *Event {
	e := &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Priority:    PriorityNormal,
		ExecutionID: executionID,
		Timestamp:   time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, e *Event) error
}

// NopSink discards every event.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, *Event) error { return nil }

// EmitWithoutTimeout makes EmitEventWithTimeout wait until the event is
// delivered or the context is done.
const EmitWithoutTimeout time.Duration = 0

// EmitEventTimeoutError reports an event that could not be delivered in time.
type EmitEventTimeoutError struct {
	Message string
}

// NewEmitEventTimeoutError creates an EmitEventTimeoutError.
func NewEmitEventTimeoutError(msg string) *EmitEventTimeoutError {
	return &EmitEventTimeoutError{Message: msg}
}

func (e *EmitEventTimeoutError) Error() string { return e.Message }

// AsEmitEventTimeoutError reports whether err is an EmitEventTimeoutError.
func AsEmitEventTimeoutError(err error) (*EmitEventTimeoutError, bool) {
	var target *EmitEventTimeoutError
	ok := errors.As(err, &target)
	return target, ok
}

// DefaultEmitTimeoutErr is returned when an emit times out.
var DefaultEmitTimeoutErr = NewEmitEventTimeoutError("emit event timeout.")

// EmitEventWithTimeout sends e on ch. A nil channel is a no-op.
func EmitEventWithTimeout(ctx context.Context, ch chan<- *Event, e *Event, timeout time.Duration) error {
	if ch == nil {
		return nil
	}
	if timeout == EmitWithoutTimeout {
		select {
		case ch <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return DefaultEmitTimeoutErr
	}
}
