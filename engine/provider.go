//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// ResourceProvider acquires the run-scoped handles of a run. Handles are
// held for the run's duration only.
type ResourceProvider interface {
	// Model returns the model named by cfg. An error aborts the run.
	Model(ctx context.Context, cfg *ExecutionConfig) (model.Model, error)
	// Tools returns the available tools. An error leaves the run without tools.
	Tools(ctx context.Context, cfg *ExecutionConfig) ([]tool.Tool, error)
	// Retriever returns a retriever for cfg.DocumentIDs. An error leaves the
	// run without retrieval.
	Retriever(ctx context.Context, cfg *ExecutionConfig) (knowledge.Retriever, error)
}

// StaticProvider serves fixed handles.
type StaticProvider struct {
	// DefaultModel serves requests naming no model or an unknown one.
	DefaultModel model.Model
	// Models maps model names to handles.
	Models map[string]model.Model
	// ToolSets are flattened into the tool list.
	ToolSets []tool.ToolSet
	// Knowledge is returned as the retriever.
	Knowledge knowledge.Retriever
}

var _ ResourceProvider = (*StaticProvider)(nil)

// Model implements ResourceProvider.
func (p *StaticProvider) Model(_ context.Context, cfg *ExecutionConfig) (model.Model, error) {
	if m, ok := p.Models[cfg.Model]; ok && m != nil {
		return m, nil
	}
	if p.DefaultModel == nil {
		return nil, fmt.Errorf("%w: no model for %q", ErrModelUnavailable, cfg.Model)
	}
	return p.DefaultModel, nil
}

// Tools implements ResourceProvider.
func (p *StaticProvider) Tools(ctx context.Context, _ *ExecutionConfig) ([]tool.Tool, error) {
	var tools []tool.Tool
	for _, ts := range p.ToolSets {
		if ts == nil {
			continue
		}
		tools = append(tools, ts.Tools(ctx)...)
	}
	return tools, nil
}

// Retriever implements ResourceProvider.
func (p *StaticProvider) Retriever(context.Context, *ExecutionConfig) (knowledge.Retriever, error) {
	return p.Knowledge, nil
}
