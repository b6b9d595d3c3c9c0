//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package function wraps typed Go functions as callable tools.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// FunctionTool implements tool.CallableTool over a function taking a JSON
// decodable input I and returning O.
type FunctionTool[I, O any] struct {
	name        string
	description string
	inputSchema *tool.Schema
	fn          func(context.Context, I) (O, error)
	unmarshaler unmarshaler
}

// Option is a function that configures a FunctionTool.
type Option func(*functionToolOptions)

type functionToolOptions struct {
	name        string
	description string
	unmarshaler unmarshaler
	inputSchema *tool.Schema
}

// WithName sets the name of the function tool.
//
// Model APIs generally require names matching ^[a-zA-Z0-9_-]+$.
func WithName(name string) Option {
	return func(opts *functionToolOptions) {
		opts.name = name
	}
}

// WithDescription sets the description of the function tool.
func WithDescription(description string) Option {
	return func(opts *functionToolOptions) {
		opts.description = description
	}
}

// WithInputSchema sets a custom input schema, skipping generation from I.
func WithInputSchema(schema *tool.Schema) Option {
	return func(opts *functionToolOptions) {
		opts.inputSchema = schema
	}
}

// NewFunctionTool creates a FunctionTool wrapping fn.
func NewFunctionTool[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	options := &functionToolOptions{
		unmarshaler: &jsonUnmarshaler{},
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.name == "" {
		log.Warnf("FunctionTool: name is empty")
	}
	if options.description == "" {
		log.Warnf("FunctionTool: description is empty")
	}

	iSchema := options.inputSchema
	if iSchema == nil {
		var emptyI I
		iSchema = generateJSONSchema(reflect.TypeOf(emptyI))
	}

	return &FunctionTool[I, O]{
		name:        options.name,
		description: options.description,
		fn:          fn,
		unmarshaler: options.unmarshaler,
		inputSchema: iSchema,
	}
}

// Call decodes jsonArgs into I and invokes the wrapped function. Empty
// arguments decode to the zero value of I.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var input I
	if len(jsonArgs) > 0 {
		if err := ft.unmarshaler.Unmarshal(jsonArgs, &input); err != nil {
			return nil, fmt.Errorf("function tool %s: decode arguments: %w", ft.name, err)
		}
	}
	return ft.fn(ctx, input)
}

// Name returns the configured tool name.
func (ft *FunctionTool[I, O]) Name() string {
	return ft.name
}

// Declaration returns the tool's declaration information.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        ft.name,
		Description: ft.description,
		InputSchema: ft.inputSchema,
	}
}

type unmarshaler interface {
	Unmarshal([]byte, any) error
}

type jsonUnmarshaler struct{}

// Unmarshal unmarshals JSON data into the provided interface.
func (j *jsonUnmarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
