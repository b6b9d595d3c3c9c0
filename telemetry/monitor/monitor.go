//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package monitor implements tracker.Monitor on OpenTelemetry spans. Each
// tracked run becomes one span that stays open until FinishTracking.
package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-workflow-go/telemetry/semconv/trace"
	itrace "trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-workflow-go/tracker"
)

var _ tracker.Monitor = (*Monitor)(nil)

// Monitor tracks runs as spans.
type Monitor struct {
	tracer oteltrace.Tracer
	mu     sync.Mutex
	spans  map[tracker.Handle]oteltrace.Span
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTracer overrides the tracer. Defaults to telemetry/trace.Tracer at
// construction time.
func WithTracer(t oteltrace.Tracer) Option {
	return func(m *Monitor) { m.tracer = t }
}

// New creates a Monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{tracer: itrace.Tracer, spans: make(map[tracker.Handle]oteltrace.Span)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartTracking implements tracker.Monitor.
func (m *Monitor) StartTracking(ctx context.Context, r *tracker.Run) (tracker.Handle, error) {
	_, span := m.tracer.Start(ctx, trace.SpanNameTracking,
		oteltrace.WithAttributes(
			attribute.String(trace.KeyExecutionID, r.ExecutionID),
			attribute.String(trace.KeyWorkflowType, r.WorkflowType),
			attribute.String(trace.KeyWorkflowSource, r.SourceID),
			attribute.String(trace.KeyUserID, r.UserID),
			attribute.String(trace.KeyGenAIConversationID, r.ConversationID),
		))
	h := tracker.Handle(uuid.NewString())
	m.mu.Lock()
	m.spans[h] = span
	m.mu.Unlock()
	return h, nil
}

// UpdateMetrics implements tracker.Monitor.
func (m *Monitor) UpdateMetrics(_ context.Context, h tracker.Handle, metrics map[string]any) error {
	span, err := m.span(h, false)
	if err != nil {
		return err
	}
	attrs := make([]attribute.KeyValue, 0, len(metrics))
	for k, v := range metrics {
		attrs = append(attrs, toAttribute("workflow.metric."+k, v))
	}
	span.SetAttributes(attrs...)
	return nil
}

// FinishTracking implements tracker.Monitor.
func (m *Monitor) FinishTracking(_ context.Context, h tracker.Handle, success bool) error {
	span, err := m.span(h, true)
	if err != nil {
		return err
	}
	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "workflow failed")
	}
	span.End()
	return nil
}

// Open returns the number of unfinished sessions.
func (m *Monitor) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spans)
}

func (m *Monitor) span(h tracker.Handle, remove bool) (oteltrace.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	span, ok := m.spans[h]
	if !ok {
		return nil, fmt.Errorf("monitor: unknown handle %q", h)
	}
	if remove {
		delete(m.spans, h)
	}
	return span, nil
}

func toAttribute(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case []string:
		return attribute.StringSlice(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}
