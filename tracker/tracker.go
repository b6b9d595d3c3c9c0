//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package tracker reports the lifecycle of workflow runs to the record
// store, the monitor and the event sink. Tracking never fails a run: every
// collaborator error is logged and dropped.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
)

// Handle identifies a monitoring session opened by a Monitor.
type Handle string

// Monitor is an external run monitor.
type Monitor interface {
	// StartTracking opens a monitoring session for r.
	StartTracking(ctx context.Context, r *Run) (Handle, error)
	// UpdateMetrics attaches metrics to an open session.
	UpdateMetrics(ctx context.Context, h Handle, metrics map[string]any) error
	// FinishTracking closes the session.
	FinishTracking(ctx context.Context, h Handle, success bool) error
}

// Run is the tracked view of one execution. Tracker fills the unexported
// fields in Start; the same Run must be passed to Complete or Fail.
type Run struct {
	ExecutionID    string
	UserID         string
	ConversationID string
	WorkflowType   string
	SourceID       string
	// Persist requests an execution record. Set for runs sourced from a
	// stored definition or template.
	Persist bool

	recordID string
	handle   Handle
	timer    *metric.RunTimer
	started  time.Time
	done     bool
}

// RecordID returns the id of the persisted record, or "" when none exists.
func (r *Run) RecordID() string { return r.recordID }

// Tracker reports run lifecycles. The zero value is not usable; use New.
type Tracker struct {
	records store.RecordStore
	monitor Monitor
	sink    event.Sink
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecordStore sets where execution records are persisted.
func WithRecordStore(s store.RecordStore) Option {
	return func(t *Tracker) { t.records = s }
}

// WithMonitor sets the run monitor.
func WithMonitor(m Monitor) Option {
	return func(t *Tracker) { t.monitor = m }
}

// WithSink sets the lifecycle event sink.
func WithSink(s event.Sink) Option {
	return func(t *Tracker) { t.sink = s }
}

// New creates a Tracker. Missing collaborators are skipped.
func New(opts ...Option) *Tracker {
	t := &Tracker{sink: event.NopSink{}, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.sink == nil {
		t.sink = event.NopSink{}
	}
	return t
}

// Start records the beginning of r.
func (t *Tracker) Start(ctx context.Context, r *Run) {
	r.started = t.now()
	r.timer = metric.StartRun(r.WorkflowType)
	if r.Persist && t.records != nil {
		id, err := t.records.Create(ctx, &store.ExecutionRecord{
			ExecutionID:    r.ExecutionID,
			UserID:         r.UserID,
			ConversationID: r.ConversationID,
			WorkflowType:   r.WorkflowType,
			SourceID:       r.SourceID,
			Status:         store.StatusRunning,
			StartedAt:      r.started,
		})
		if err != nil {
			log.Errorf("tracker: create record for %s: %v", r.ExecutionID, err)
		} else {
			r.recordID = id
		}
	}
	if t.monitor != nil {
		h, err := t.monitor.StartTracking(ctx, r)
		if err != nil {
			log.Errorf("tracker: start monitoring %s: %v", r.ExecutionID, err)
		} else {
			r.handle = h
		}
	}
	t.emit(ctx, r, event.TypeWorkflowStarted, event.PriorityNormal, map[string]any{
		"source_id": r.SourceID,
	})
}

// Complete records a successful end of r with its result payload.
func (t *Tracker) Complete(ctx context.Context, r *Run, result map[string]any) {
	if !t.finish(r) {
		return
	}
	finished := t.now()
	t.updateRecord(ctx, r, store.RecordUpdate{
		Status:     store.StatusCompleted,
		Result:     result,
		FinishedAt: &finished,
	})
	t.closeMonitor(ctx, r, result, true)
	t.emit(ctx, r, event.TypeWorkflowCompleted, event.PriorityNormal, result)
	if r.timer != nil {
		r.timer.End(ctx, true, "")
	}
}

// Fail records a failed end of r.
func (t *Tracker) Fail(ctx context.Context, r *Run, runErr error) {
	if !t.finish(r) {
		return
	}
	finished := t.now()
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	errType := ErrorType(runErr)
	t.updateRecord(ctx, r, store.RecordUpdate{
		Status:     store.StatusFailed,
		Error:      msg,
		FinishedAt: &finished,
	})
	t.closeMonitor(ctx, r, map[string]any{"error": msg, "error_type": errType}, false)
	t.emit(ctx, r, event.TypeWorkflowFailed, event.PriorityHigh, map[string]any{
		"error":      msg,
		"error_type": errType,
	})
	if r.timer != nil {
		r.timer.End(ctx, false, errType)
	}
}

// finish marks r as ended and reports whether this was the first end.
func (t *Tracker) finish(r *Run) bool {
	if r.done {
		log.Warnf("tracker: run %s already finished", r.ExecutionID)
		return false
	}
	r.done = true
	return true
}

func (t *Tracker) updateRecord(ctx context.Context, r *Run, u store.RecordUpdate) {
	if r.recordID == "" || t.records == nil {
		return
	}
	if err := t.records.Update(ctx, r.recordID, u); err != nil {
		log.Errorf("tracker: update record %s: %v", r.recordID, err)
	}
}

func (t *Tracker) closeMonitor(ctx context.Context, r *Run, metrics map[string]any, success bool) {
	if r.handle == "" || t.monitor == nil {
		return
	}
	if len(metrics) > 0 {
		if err := t.monitor.UpdateMetrics(ctx, r.handle, metrics); err != nil {
			log.Errorf("tracker: update metrics for %s: %v", r.ExecutionID, err)
		}
	}
	if err := t.monitor.FinishTracking(ctx, r.handle, success); err != nil {
		log.Errorf("tracker: finish monitoring %s: %v", r.ExecutionID, err)
	}
}

func (t *Tracker) emit(ctx context.Context, r *Run, eventType string, p event.Priority, payload map[string]any) {
	e := event.New(eventType, r.ExecutionID,
		event.WithPriority(p),
		event.WithUser(r.UserID, r.ConversationID),
		event.WithWorkflowType(r.WorkflowType),
		event.WithPayload(payload),
	)
	if err := t.sink.Emit(ctx, e); err != nil {
		log.Errorf("tracker: emit %s for %s: %v", eventType, r.ExecutionID, err)
	}
}

// ErrorType returns a short type tag for err.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}
	for isFmtWrap(err) {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func isFmtWrap(err error) bool {
	return strings.HasPrefix(fmt.Sprintf("%T", err), "*fmt.wrap")
}
