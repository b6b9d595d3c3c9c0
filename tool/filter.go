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

	"github.com/bmatcuk/doublestar/v4"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// FilterFunc is a function that filters tools based on a context and a tool.
type FilterFunc func(ctx context.Context, tool Tool) bool

// FilterTools filters tools from a list of tools based on a filter function.
func FilterTools(ctx context.Context, tools []Tool, filter FilterFunc) []Tool {
	if filter == nil {
		return tools
	}
	filtered := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if filter(ctx, tool) {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}

// FilterToolSet creates a new ToolSet that filters tools from the original ToolSet.
func FilterToolSet(toolset ToolSet, filter FilterFunc) ToolSet {
	return &filteredToolSet{
		original: toolset,
		filter:   filter,
	}
}

// filteredToolSet wraps a ToolSet to filter its tools.
type filteredToolSet struct {
	original ToolSet
	filter   FilterFunc
}

// Tools returns filtered tools from the original ToolSet.
func (f *filteredToolSet) Tools(ctx context.Context) []Tool {
	return FilterTools(ctx, f.original.Tools(ctx), f.filter)
}

// Close implements the ToolSet interface.
func (f *filteredToolSet) Close() error {
	return f.original.Close()
}

// Name implements the ToolSet interface.
func (f *filteredToolSet) Name() string {
	return f.original.Name()
}

// NewIncludeToolNamesFilter creates a FilterFunc that includes only the specified tool names.
func NewIncludeToolNamesFilter(names ...string) FilterFunc {
	allowedNames := make(map[string]struct{}, len(names))
	for _, name := range names {
		allowedNames[name] = struct{}{}
	}
	return func(ctx context.Context, tool Tool) bool {
		_, isAllowed := allowedNames[NameOf(tool)]
		return isAllowed
	}
}

// NewExcludeToolNamesFilter creates a FilterFunc that excludes the specified tool names.
func NewExcludeToolNamesFilter(names ...string) FilterFunc {
	excludedNames := make(map[string]struct{}, len(names))
	for _, name := range names {
		excludedNames[name] = struct{}{}
	}
	return func(ctx context.Context, tool Tool) bool {
		name := NameOf(tool)
		if name == "" {
			return false
		}
		_, isExcluded := excludedNames[name]
		return !isExcluded
	}
}

// NewAllowListFilter creates a FilterFunc admitting tools whose name matches
// any of the glob patterns, e.g. "search_*" or "calc_{add,sub}". An empty
// allow-list admits every tool. Malformed patterns never match.
func NewAllowListFilter(patterns ...string) FilterFunc {
	if len(patterns) == 0 {
		return nil
	}
	valid := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			log.Warnf("tool allow-list: invalid pattern %q ignored", p)
			continue
		}
		valid = append(valid, p)
	}
	return func(ctx context.Context, tool Tool) bool {
		name := NameOf(tool)
		if name == "" {
			return false
		}
		for _, p := range valid {
			if ok, _ := doublestar.Match(p, name); ok {
				return true
			}
		}
		return false
	}
}
