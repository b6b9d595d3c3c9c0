//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	A    int     `json:"a" description:"first operand"`
	B    int     `json:"b"`
	Note *string `json:"note"`
	Tag  string  `json:"tag,omitempty"`
	skip int
}

func TestFunctionTool_Call(t *testing.T) {
	add := NewFunctionTool(func(_ context.Context, in addInput) (int, error) {
		return in.A + in.B, nil
	}, WithName("add"), WithDescription("adds two numbers"))

	got, err := add.Call(context.Background(), []byte(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	got, err = add.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = add.Call(context.Background(), []byte(`{"a":`))
	assert.Error(t, err)
}

func TestFunctionTool_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	ft := NewFunctionTool(func(context.Context, struct{}) (string, error) {
		return "", boom
	}, WithName("fail"), WithDescription("always fails"))
	_, err := ft.Call(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_Declaration(t *testing.T) {
	ft := NewFunctionTool(func(context.Context, addInput) (int, error) { return 0, nil },
		WithName("add"), WithDescription("adds"))
	decl := ft.Declaration()
	require.NotNil(t, decl)
	assert.Equal(t, "add", decl.Name)
	assert.Equal(t, "add", ft.Name())
	schema := decl.InputSchema
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema.Type)
	assert.ElementsMatch(t, []string{"a", "b"}, schema.Required)
	require.Contains(t, schema.Properties, "a")
	assert.Equal(t, "integer", schema.Properties["a"].Type)
	assert.Equal(t, "first operand", schema.Properties["a"].Description)
	assert.Equal(t, "string", schema.Properties["note"].Type)
	assert.NotContains(t, schema.Properties, "skip")
}

type node struct {
	Name     string  `json:"name"`
	Children []*node `json:"children,omitempty"`
}

func TestGenerateJSONSchema_Recursive(t *testing.T) {
	ft := NewFunctionTool(func(context.Context, node) (int, error) { return 0, nil },
		WithName("tree"), WithDescription("tree"))
	schema := ft.Declaration().InputSchema
	require.Contains(t, schema.Properties, "children")
	children := schema.Properties["children"]
	assert.Equal(t, "array", children.Type)
	require.NotNil(t, children.Items)
	assert.Equal(t, "object", children.Items.Type)
}
