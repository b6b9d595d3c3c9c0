//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package node provides the node types of a workflow graph and the factory
// that builds them from a type tag and configuration.
package node

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// Built-in node type tags.
const (
	TypeLLM          = "llm"
	TypeCallModel    = "call_model"
	TypeFinalize     = "finalize"
	TypeTools        = "tools"
	TypeExecuteTools = "execute_tools"
	TypeConditional  = "conditional"
	TypeLoop         = "loop"
	TypeVariable     = "variable"
	TypeMemory       = "memory"
	TypeRetrieval    = "retrieval"
	TypeStart        = "start"
	TypeEnd          = "end"
)

// Node is a unit of graph computation.
//
// Execute returns the fields it changed and must not modify c. Failures that
// a node can recover from are reported inside the update (error_state and
// transcript turns); a returned error aborts the run.
type Node interface {
	ID() string
	Execute(ctx context.Context, c *state.NodeContext) (*state.Update, error)
}

// ResourceBindable is implemented by nodes that use run-scoped resources.
type ResourceBindable interface {
	SetModel(m model.Model)
	SetRetriever(r knowledge.Retriever)
	SetTools(tools []tool.Tool)
}

// Resources are the per-run handles shared by a graph's nodes.
type Resources struct {
	Model     model.Model
	Tools     []tool.Tool
	Retriever knowledge.Retriever
}

// Bind hands res to n when n is ResourceBindable. Nil handles are still
// passed so that a node built for one run never sees another run's handles.
func Bind(n Node, res Resources) bool {
	b, ok := n.(ResourceBindable)
	if !ok {
		return false
	}
	b.SetModel(res.Model)
	b.SetRetriever(res.Retriever)
	b.SetTools(res.Tools)
	return true
}

// Emitter receives model output as it is produced. The graph installs one
// on the context of streaming runs.
type Emitter interface {
	// EmitToken forwards a streamed content delta.
	EmitToken(ctx context.Context, nodeID, content string)
	// EmitComplete reports a finished model call.
	EmitComplete(ctx context.Context, nodeID string, msg model.Message, usage model.Usage)
}

type emitterKey struct{}

// ContextWithEmitter returns a child context carrying e.
func ContextWithEmitter(ctx context.Context, e Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, e)
}

// EmitterFromContext returns the emitter installed on ctx, or nil.
func EmitterFromContext(ctx context.Context) Emitter {
	e, _ := ctx.Value(emitterKey{}).(Emitter)
	return e
}

// passThrough marks the graph boundaries. It changes nothing.
type passThrough struct {
	id string
}

func (p *passThrough) ID() string { return p.id }

func (p *passThrough) Execute(context.Context, *state.NodeContext) (*state.Update, error) {
	return state.NewUpdate(), nil
}
