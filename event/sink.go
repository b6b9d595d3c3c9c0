//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"context"
	"time"
)

const defaultChannelSinkTimeout = 100 * time.Millisecond

// ChannelSink delivers events to an in-process channel. A slow consumer
// causes Emit to fail after the timeout instead of stalling the run.
type ChannelSink struct {
	ch      chan *Event
	timeout time.Duration
}

// NewChannelSink creates a sink with the given buffer size. A non-positive
// timeout selects the default.
func NewChannelSink(buffer int, timeout time.Duration) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	if timeout <= 0 {
		timeout = defaultChannelSinkTimeout
	}
	return &ChannelSink{ch: make(chan *Event, buffer), timeout: timeout}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan *Event { return s.ch }

// Emit implements Sink.
func (s *ChannelSink) Emit(ctx context.Context, e *Event) error {
	return EmitEventWithTimeout(ctx, s.ch, e, s.timeout)
}

// MultiSink fans an event out to several sinks and returns the first error.
type MultiSink []Sink

// Emit implements Sink. Every sink is attempted.
func (m MultiSink) Emit(ctx context.Context, e *Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
