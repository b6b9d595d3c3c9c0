//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTool implements the Tool interface for testing.
type mockTool struct {
	name        string
	description string
}

func (m *mockTool) Declaration() *Declaration {
	return &Declaration{
		Name:        m.name,
		Description: m.description,
	}
}

// namedOnly has an empty declaration name and relies on Named.
type namedOnly struct{ name string }

func (n *namedOnly) Declaration() *Declaration { return &Declaration{} }
func (n *namedOnly) Name() string              { return n.name }

func names(tools []Tool) []string {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		out = append(out, NameOf(t))
	}
	return out
}

func TestNameOf_FallsBackToNamed(t *testing.T) {
	assert.Equal(t, "echo", NameOf(&mockTool{name: "echo"}))
	assert.Equal(t, "calc", NameOf(&namedOnly{name: "calc"}))
	assert.Equal(t, "", NameOf(nil))
}

func TestFind(t *testing.T) {
	tools := []Tool{&mockTool{name: "echo"}, &namedOnly{name: "calc"}}
	require.NotNil(t, Find(tools, "calc"))
	assert.Equal(t, "calc", NameOf(Find(tools, "calc")))
	assert.Nil(t, Find(tools, "missing"))
}

func TestToMap_FirstWins(t *testing.T) {
	first := &mockTool{name: "echo", description: "first"}
	tools := []Tool{first, &mockTool{name: "echo", description: "second"}, &namedOnly{}}
	m := ToMap(tools)
	require.Len(t, m, 1)
	assert.Same(t, first, m["echo"])
	assert.Nil(t, ToMap(nil))
}

func TestFilterToolSet_Include(t *testing.T) {
	set := NewToolSet("math",
		&mockTool{name: "echo"},
		&mockTool{name: "add"},
		&mockTool{name: "multiply"},
	)
	filtered := FilterToolSet(set, NewIncludeToolNamesFilter("add", "multiply"))
	assert.Equal(t, []string{"add", "multiply"}, names(filtered.Tools(context.Background())))
	assert.Equal(t, "math", filtered.Name())
	assert.NoError(t, filtered.Close())
}

func TestFilterTools_Exclude(t *testing.T) {
	tools := []Tool{&mockTool{name: "echo"}, &mockTool{name: "add"}}
	got := FilterTools(context.Background(), tools, NewExcludeToolNamesFilter("echo"))
	assert.Equal(t, []string{"add"}, names(got))
}

func TestNewAllowListFilter(t *testing.T) {
	tools := []Tool{
		&mockTool{name: "search_web"},
		&mockTool{name: "search_docs"},
		&mockTool{name: "calc_add"},
		&mockTool{name: "calc_div"},
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{name: "empty admits all", patterns: nil, want: []string{"search_web", "search_docs", "calc_add", "calc_div"}},
		{name: "exact", patterns: []string{"calc_add"}, want: []string{"calc_add"}},
		{name: "prefix glob", patterns: []string{"search_*"}, want: []string{"search_web", "search_docs"}},
		{name: "alternation", patterns: []string{"calc_{add,div}"}, want: []string{"calc_add", "calc_div"}},
		{name: "invalid ignored", patterns: []string{"[", "calc_div"}, want: []string{"calc_div"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTools(ctx, tools, NewAllowListFilter(tt.patterns...))
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestToolCallIDFromContext(t *testing.T) {
	_, ok := ToolCallIDFromContext(context.Background())
	assert.False(t, ok)
	id, ok := ToolCallIDFromContext(ContextWithToolCallID(context.Background(), "call_1"))
	assert.True(t, ok)
	assert.Equal(t, "call_1", id)
}
