//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// ToolSet defines an interface for managing a set of tools.
type ToolSet interface {
	// Tools returns the tools currently available in the set.
	Tools(context.Context) []Tool
	// Close releases any resources held by the ToolSet.
	Close() error
	// Name returns the name of the ToolSet.
	Name() string
}

// NewToolSet returns a static ToolSet over tools.
func NewToolSet(name string, tools ...Tool) ToolSet {
	return &staticToolSet{name: name, tools: tools}
}

type staticToolSet struct {
	name  string
	tools []Tool
}

func (s *staticToolSet) Tools(context.Context) []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *staticToolSet) Close() error { return nil }

func (s *staticToolSet) Name() string { return s.name }
