//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/store"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(append([]Option{WithURL("redis://" + mr.Addr())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestNew_RequiresURLOrClient(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	_, err = New(WithURL("://bad"))
	require.Error(t, err)
}

func TestStore_Definitions(t *testing.T) {
	s, mr := newTestStore(t, WithKeyPrefix("wf"))
	ctx := context.Background()
	def := &graph.Definition{
		Name:  "support",
		Nodes: []graph.NodeSpec{{ID: "agent", Type: "llm"}},
		Edges: []graph.EdgeSpec{{Source: "agent", Target: graph.End}},
	}
	require.NoError(t, s.PutDefinition(ctx, "d1", def))
	require.NoError(t, s.PutTemplate(ctx, "t1", def))
	assert.True(t, mr.Exists("wf:definition:d1"))
	assert.True(t, mr.Exists("wf:template:t1"))

	got, err := s.GetDefinition(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	got, err = s.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "support", got.Name)

	_, err = s.GetTemplate(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mr.Set("wf:definition:broken", "{not json"))
	_, err = s.GetDefinition(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Records(t *testing.T) {
	s, mr := newTestStore(t, WithRecordTTL(time.Hour))
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)
	id, err := s.Create(ctx, &store.ExecutionRecord{
		ExecutionID:  "e1",
		UserID:       "u1",
		WorkflowType: "definition",
		SourceID:     "d1",
		Status:       store.StatusRunning,
		StartedAt:    started,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("workflow:record:"+id))

	finished := started.Add(time.Second)
	require.NoError(t, s.Update(ctx, id, store.RecordUpdate{
		Status:     store.StatusFailed,
		Error:      "model unavailable",
		FinishedAt: &finished,
	}))
	assert.Equal(t, time.Hour, mr.TTL("workflow:record:"+id))

	r, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, r.Status)
	assert.Equal(t, "model unavailable", r.Error)
	assert.Equal(t, "d1", r.SourceID)
	assert.True(t, started.Equal(r.StartedAt))
	require.NotNil(t, r.FinishedAt)
	assert.True(t, finished.Equal(*r.FinishedAt))

	assert.ErrorIs(t, s.Update(ctx, "missing", store.RecordUpdate{Status: store.StatusCompleted}), store.ErrNotFound)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s, err := New(WithURL("redis://" + mr.Addr()))
	require.NoError(t, err)
	defer s.Close()
	mr.Close()
	_, err = s.Create(context.Background(), &store.ExecutionRecord{ExecutionID: "e"})
	require.Error(t, err)
}
