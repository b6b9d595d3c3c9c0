//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
)

type constNode struct {
	id    string
	label string
}

func (n *constNode) ID() string { return n.id }

func (n *constNode) Execute(context.Context, *state.NodeContext) (*state.Update, error) {
	return state.NewUpdate().SetVariable("label", n.label), nil
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	for _, typ := range []string{
		TypeLLM, TypeCallModel, TypeFinalize, TypeTools, TypeExecuteTools, TypeConditional,
		TypeLoop, TypeVariable, TypeMemory, TypeRetrieval, TypeStart, TypeEnd,
	} {
		assert.True(t, r.Has(typ), typ)
	}
	assert.Len(t, r.Types(), 12)
}

func TestRegistry_CustomCreatorAndFreeze(t *testing.T) {
	r := NewRegistry()
	schema := `{"type":"object","properties":{"label":{"type":"string"}},"required":["label"]}`
	err := r.Register("const", func(id string, cfg map[string]any) (Node, error) {
		return &constNode{id: id, label: cfgString(cfg, "label")}, nil
	}, schema)
	require.NoError(t, err)

	f := NewFactory(WithRegistry(r))
	n, err := f.Create("const", "c1", map[string]any{"label": "x"})
	require.NoError(t, err)
	u, err := n.Execute(context.Background(), state.New())
	require.NoError(t, err)
	assert.Equal(t, "x", u.Variables["label"])

	_, err = f.Create("const", "c2", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label")

	r.Freeze()
	assert.True(t, r.Frozen())
	err = r.Register("late", func(id string, _ map[string]any) (Node, error) { return &passThrough{id: id}, nil }, "")
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	assert.False(t, r.Has("late"))
	assert.True(t, r.Has("const"))
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", func(string, map[string]any) (Node, error) { return nil, nil }, ""))
	assert.Error(t, r.Register("x", nil, ""))
	assert.Error(t, r.Register("x", func(string, map[string]any) (Node, error) { return nil, nil }, "{not json"))
}

func TestFactory_UnknownType(t *testing.T) {
	_, err := NewFactory(WithRegistry(NewRegistry())).Create("quantum", "q", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.ErrorIs(t, NewFactory().Validate("quantum", nil), ErrUnknownType)
}

func TestFactory_SchemaValidation(t *testing.T) {
	f := NewFactory(WithRegistry(NewRegistry()))
	tests := []struct {
		name    string
		typ     string
		config  map[string]any
		wantErr bool
	}{
		{"llm ok", TypeLLM, map[string]any{CfgTemperature: 0.7, CfgMaxTokens: 100}, false},
		{"llm temperature too high", TypeLLM, map[string]any{CfgTemperature: 3.5}, true},
		{"llm prompt wrong type", TypeLLM, map[string]any{CfgSystemPrompt: 12}, true},
		{"conditional missing condition", TypeConditional, map[string]any{}, true},
		{"conditional ok", TypeConditional, map[string]any{CfgCondition: "no_tool_calls"}, false},
		{"loop negative", TypeLoop, map[string]any{CfgMaxIterations: -1}, true},
		{"memory ok", TypeMemory, map[string]any{CfgWindow: 4}, false},
		{"retrieval ids", TypeRetrieval, map[string]any{CfgDocumentIDs: []any{"a", "b"}}, false},
		{"retrieval bad ids", TypeRetrieval, map[string]any{CfgDocumentIDs: "a"}, true},
		{"variable increment string", TypeVariable, map[string]any{CfgIncrement: map[string]any{"n": "one"}}, true},
		{"start no config", TypeStart, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Validate(tt.typ, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFactory_BuiltinKinds(t *testing.T) {
	f := NewFactory(WithRegistry(NewRegistry()))

	n, err := f.Create(TypeCallModel, "agent", nil)
	require.NoError(t, err)
	assert.False(t, n.(*LLMNode).IsFinalize())

	n, err = f.Create(TypeLLM, "final", map[string]any{CfgFinalize: true})
	require.NoError(t, err)
	assert.True(t, n.(*LLMNode).IsFinalize())

	n, err = f.Create(TypeLoop, "loop", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, n.(*LoopNode).MaxIterations())

	n, err = f.Create(TypeMemory, "mem", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMemoryWindow, n.(*MemoryNode).Window())

	n, err = f.Create(TypeEnd, "end", nil)
	require.NoError(t, err)
	assert.False(t, Bind(n, Resources{}))
	u, err := n.Execute(context.Background(), state.New())
	require.NoError(t, err)
	assert.Empty(t, u.Messages)
}
