//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/store/inmemory"
)

type fakeMonitor struct {
	mu       sync.Mutex
	started  []string
	metrics  map[Handle]map[string]any
	finished map[Handle]bool
	fail     bool
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{metrics: map[Handle]map[string]any{}, finished: map[Handle]bool{}}
}

func (m *fakeMonitor) StartTracking(_ context.Context, r *Run) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("monitor down")
	}
	m.started = append(m.started, r.ExecutionID)
	return Handle("h-" + r.ExecutionID), nil
}

func (m *fakeMonitor) UpdateMetrics(_ context.Context, h Handle, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[h] = metrics
	return nil
}

func (m *fakeMonitor) FinishTracking(_ context.Context, h Handle, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[h] = success
	return nil
}

type failingRecords struct{}

func (failingRecords) Create(context.Context, *store.ExecutionRecord) (string, error) {
	return "", errors.New("db down")
}

func (failingRecords) Update(context.Context, string, store.RecordUpdate) error {
	return errors.New("db down")
}

func (failingRecords) Get(context.Context, string) (*store.ExecutionRecord, error) {
	return nil, errors.New("db down")
}

type failingSink struct{}

func (failingSink) Emit(context.Context, *event.Event) error { return errors.New("broker down") }

func drain(sink *event.ChannelSink) []*event.Event {
	var out []*event.Event
	for {
		select {
		case e := <-sink.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestTracker_CompletePersistedRun(t *testing.T) {
	ctx := context.Background()
	records := inmemory.New()
	monitor := newFakeMonitor()
	sink := event.NewChannelSink(8, 0)
	tr := New(WithRecordStore(records), WithMonitor(monitor), WithSink(sink))

	run := &Run{ExecutionID: "e1", UserID: "u1", WorkflowType: "template", SourceID: "t1", Persist: true}
	tr.Start(ctx, run)
	require.NotEmpty(t, run.RecordID())

	rec, err := records.Get(ctx, run.RecordID())
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, rec.Status)
	assert.Equal(t, "t1", rec.SourceID)
	assert.False(t, rec.StartedAt.IsZero())

	tr.Complete(ctx, run, map[string]any{"response": "hi"})
	rec, err = records.Get(ctx, run.RecordID())
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Equal(t, "hi", rec.Result["response"])
	require.NotNil(t, rec.FinishedAt)

	assert.Equal(t, []string{"e1"}, monitor.started)
	assert.True(t, monitor.finished["h-e1"])
	assert.Equal(t, "hi", monitor.metrics["h-e1"]["response"])

	events := drain(sink)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeWorkflowStarted, events[0].Type)
	assert.Equal(t, event.TypeWorkflowCompleted, events[1].Type)
	assert.Equal(t, event.PriorityNormal, events[1].Priority)
	assert.Equal(t, "template", events[1].WorkflowType)
}

func TestTracker_FailEmitsHighPriority(t *testing.T) {
	ctx := context.Background()
	records := inmemory.New()
	monitor := newFakeMonitor()
	sink := event.NewChannelSink(8, 0)
	tr := New(WithRecordStore(records), WithMonitor(monitor), WithSink(sink))

	run := &Run{ExecutionID: "e2", WorkflowType: "definition", SourceID: "d1", Persist: true}
	tr.Start(ctx, run)
	tr.Fail(ctx, run, fmt.Errorf("build: %w", context.DeadlineExceeded))

	rec, err := records.Get(ctx, run.RecordID())
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "deadline exceeded")
	assert.False(t, monitor.finished["h-e2"])

	events := drain(sink)
	require.Len(t, events, 2)
	failed := events[1]
	assert.Equal(t, event.TypeWorkflowFailed, failed.Type)
	assert.Equal(t, event.PriorityHigh, failed.Priority)
	assert.Equal(t, "deadline_exceeded", failed.Payload["error_type"])
}

func TestTracker_ChatRunsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	records := inmemory.New()
	tr := New(WithRecordStore(records))
	run := &Run{ExecutionID: "e3", WorkflowType: "chat"}
	tr.Start(ctx, run)
	tr.Complete(ctx, run, nil)
	assert.Empty(t, run.RecordID())
}

func TestTracker_CollaboratorFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	monitor := newFakeMonitor()
	monitor.fail = true
	tr := New(WithRecordStore(failingRecords{}), WithMonitor(monitor), WithSink(failingSink{}))
	run := &Run{ExecutionID: "e4", WorkflowType: "template", Persist: true}
	assert.NotPanics(t, func() {
		tr.Start(ctx, run)
		tr.Fail(ctx, run, errors.New("boom"))
	})
	assert.Empty(t, run.RecordID())
	assert.Empty(t, monitor.finished)
}

func TestTracker_EndsOnce(t *testing.T) {
	ctx := context.Background()
	sink := event.NewChannelSink(8, 0)
	tr := New(WithSink(sink))
	run := &Run{ExecutionID: "e5", WorkflowType: "chat"}
	tr.Start(ctx, run)
	tr.Complete(ctx, run, nil)
	tr.Fail(ctx, run, errors.New("late"))
	events := drain(sink)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeWorkflowCompleted, events[1].Type)
}

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), "canceled"},
		{"deadline", context.DeadlineExceeded, "deadline_exceeded"},
		{"plain", errors.New("x"), "errors.errorString"},
		{"wrapped typed", fmt.Errorf("a: %w", fmt.Errorf("b: %w", customErr{})), "tracker.customErr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}
