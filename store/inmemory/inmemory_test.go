//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/store"
)

func TestStore_Definitions(t *testing.T) {
	s := New()
	ctx := context.Background()
	def := &graph.Definition{
		Name:  "qa",
		Nodes: []graph.NodeSpec{{ID: "agent", Type: "llm", Config: map[string]any{"temperature": 0.5}}},
		Edges: []graph.EdgeSpec{{Source: "agent", Target: graph.End}},
	}
	require.NoError(t, s.PutDefinition("d1", def))
	require.NoError(t, s.PutTemplate("t1", def))

	got, err := s.GetDefinition(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "qa", got.Name)
	assert.Equal(t, 0.5, got.Nodes[0].Config["temperature"])

	got.Nodes[0].ID = "mutated"
	again, err := s.GetDefinition(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "agent", again.Nodes[0].ID)

	_, err = s.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	_, err = s.GetTemplate(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetDefinition(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Records(t *testing.T) {
	s := New()
	ctx := context.Background()
	id, err := s.Create(ctx, &store.ExecutionRecord{ExecutionID: "e1", Status: store.StatusRunning, StartedAt: time.Now()})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	done := time.Now()
	require.NoError(t, s.Update(ctx, id, store.RecordUpdate{
		Status:     store.StatusCompleted,
		Result:     map[string]any{"response": "ok"},
		FinishedAt: &done,
	}))
	r, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, r.Status)
	assert.Equal(t, "ok", r.Result["response"])
	require.NotNil(t, r.FinishedAt)
	assert.Equal(t, "e1", r.ExecutionID)

	fixed, err := s.Create(ctx, &store.ExecutionRecord{ID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", fixed)

	assert.ErrorIs(t, s.Update(ctx, "missing", store.RecordUpdate{Status: store.StatusFailed}), store.ErrNotFound)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
