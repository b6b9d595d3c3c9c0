//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the tool handles bound to model-call and
// tool-execution nodes.
package tool

import "context"

// Schema is a minimal JSON schema describing tool input.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
}

// Declaration describes a tool to the model.
type Declaration struct {
	// Name is the unique name of the tool.
	Name string `json:"name"`
	// Description explains what the tool does.
	Description string `json:"description"`
	// InputSchema describes the arguments the tool accepts.
	InputSchema *Schema `json:"inputSchema"`
}

// Tool is anything the model can be told about.
type Tool interface {
	Declaration() *Declaration
}

// CallableTool is a tool that can be invoked with JSON encoded arguments.
type CallableTool interface {
	Tool
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// Named is implemented by tools that expose a name apart from their
// declaration. It is consulted when the declaration carries no name.
type Named interface {
	Name() string
}

// NameOf returns the name a tool is looked up by: the declaration name, or
// Named.Name when the declaration has none.
func NameOf(t Tool) string {
	if t == nil {
		return ""
	}
	if decl := t.Declaration(); decl != nil && decl.Name != "" {
		return decl.Name
	}
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return ""
}

// Find returns the tool named name, or nil.
func Find(tools []Tool, name string) Tool {
	for _, t := range tools {
		if NameOf(t) == name {
			return t
		}
	}
	return nil
}

// ToMap indexes tools by name. Tools without a name are dropped; on duplicate
// names the first one wins.
func ToMap(tools []Tool) map[string]Tool {
	if len(tools) == 0 {
		return nil
	}
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		name := NameOf(t)
		if name == "" {
			continue
		}
		if _, ok := m[name]; ok {
			continue
		}
		m[name] = t
	}
	return m
}
