//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-workflow-go/graph/node"
	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
	semconvtrace "trpc.group/trpc-go/trpc-workflow-go/telemetry/semconv/trace"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

// Graph is an executable instance of a Plan. Its nodes carry the resources
// of one run; build a new Graph per run.
type Graph struct {
	plan       *Plan
	nodes      map[string]node.Node
	types      map[string]string
	maxSteps   int
	bufferSize int
}

// Plan returns the compiled plan the graph was built from.
func (g *Graph) Plan() *Plan { return g.plan }

// Node returns the instantiated node with id.
func (g *Graph) Node(id string) (node.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Invoke runs the graph to End and returns the final state. initial is not
// modified.
func (g *Graph) Invoke(ctx context.Context, initial *state.NodeContext) (*state.NodeContext, error) {
	return g.run(ctx, initial, nil)
}

// Stream runs the graph in a new goroutine and reports progress on the
// returned channel, which is closed when the run ends. The last event is
// either EventEnd carrying the final state or EventError.
func (g *Graph) Stream(ctx context.Context, initial *state.NodeContext) (<-chan *Event, error) {
	ch := make(chan *Event, g.bufferSize)
	e := &streamEmitter{ch: ch}
	go func() {
		defer close(ch)
		final, err := g.run(node.ContextWithEmitter(ctx, e), initial, e)
		if err != nil {
			e.send(ctx, &Event{Type: EventError, Err: err})
			return
		}
		e.send(ctx, &Event{Type: EventEnd, State: final})
	}()
	return ch, nil
}

func (g *Graph) run(ctx context.Context, initial *state.NodeContext, e *streamEmitter) (*state.NodeContext, error) {
	c := initial.Clone()
	current := g.plan.entry
	for step := 1; ; step++ {
		if IsTerminal(current) {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			return c, err
		}
		if step > g.maxSteps {
			return c, fmt.Errorf("%w: %d steps, last node %s", ErrMaxStepsExceeded, g.maxSteps, current)
		}
		n, ok := g.nodes[current]
		if !ok {
			return c, fmt.Errorf("node %s not found", current)
		}
		if e != nil {
			e.step = step
			e.send(ctx, &Event{Type: EventNodeStart, NodeID: current})
		}
		u, err := g.execute(ctx, n, c, step)
		if err != nil {
			return c, err
		}
		u.ExecutionHistory = append(u.ExecutionHistory, current)
		c.Apply(u)
		if e != nil {
			e.send(ctx, &Event{Type: EventNodeEnd, NodeID: current})
		}
		current = g.plan.Next(current, c)
	}
}

// execute runs one node. Node failures other than cancellation become a
// node_error entry and the run goes on.
func (g *Graph) execute(ctx context.Context, n node.Node, c *state.NodeContext, step int) (u *state.Update, err error) {
	ctx, span := trace.Tracer.Start(ctx, semconvtrace.SpanNameNode+" "+n.ID(), oteltrace.WithAttributes(
		attribute.String(semconvtrace.KeyNodeID, n.ID()),
		attribute.Int(semconvtrace.KeyNodeStep, step),
	))
	defer span.End()
	metric.IncNodeCount(ctx, g.types[n.ID()])

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("node %s panicked: %v\n%s", n.ID(), r, debug.Stack())
			err = nil
			u = state.NewUpdate().SetError(state.ErrorKindNode, n.ID(), fmt.Sprintf("panic: %v", r))
			span.SetStatus(codes.Error, "panic")
		}
	}()

	u, err = n.Execute(ctx, c)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("node %s: %w", n.ID(), err)
		}
		log.Warnf("node %s failed: %v", n.ID(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state.NewUpdate().SetError(state.ErrorKindNode, n.ID(), err.Error()), nil
	}
	if u == nil {
		u = state.NewUpdate()
	}
	return u, nil
}

// streamEmitter forwards model output to a Stream channel.
type streamEmitter struct {
	ch   chan<- *Event
	step int
}

func (e *streamEmitter) send(ctx context.Context, evt *Event) {
	evt.Step = e.step
	evt.Timestamp = time.Now()
	select {
	case e.ch <- evt:
	case <-ctx.Done():
	}
}

// EmitToken implements node.Emitter.
func (e *streamEmitter) EmitToken(ctx context.Context, nodeID, content string) {
	e.send(ctx, &Event{Type: EventModelToken, NodeID: nodeID, Content: content})
}

// EmitComplete implements node.Emitter.
func (e *streamEmitter) EmitComplete(ctx context.Context, nodeID string, msg model.Message, usage model.Usage) {
	e.send(ctx, &Event{Type: EventModelComplete, NodeID: nodeID, Content: msg.Content, Message: &msg, Usage: &usage})
}
