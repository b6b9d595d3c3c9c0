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
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"trpc.group/trpc-go/trpc-workflow-go/graph/node"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

const (
	// DefaultMaxSteps bounds the node executions of one run.
	DefaultMaxSteps = 100
	// DefaultStreamBufferSize is the event channel buffer of Stream.
	DefaultStreamBufferSize = 256
	// DefaultPlanCacheSize bounds the compiled plans kept by a Builder.
	DefaultPlanCacheSize = 256
)

// Resources are the run-scoped handles bound to a graph's nodes.
// NodeOverrides replaces handles for single nodes; nil fields of an
// override keep the shared handle.
type Resources struct {
	Model         model.Model
	Tools         []tool.Tool
	Retriever     knowledge.Retriever
	NodeOverrides map[string]node.Resources
	// ConfigDefaults holds run-scoped config keys per node type. A node's
	// own config wins over them. They are applied when nodes are created
	// and never reach the plan cache.
	ConfigDefaults map[string]map[string]any
}

func (r Resources) configFor(spec NodeSpec) map[string]any {
	defaults := r.ConfigDefaults[spec.Type]
	if len(defaults) == 0 {
		return spec.Config
	}
	cfg := make(map[string]any, len(spec.Config)+len(defaults))
	for k, v := range defaults {
		cfg[k] = v
	}
	for k, v := range spec.Config {
		cfg[k] = v
	}
	return cfg
}

func (r Resources) forNode(id string) node.Resources {
	res := node.Resources{Model: r.Model, Tools: r.Tools, Retriever: r.Retriever}
	o, ok := r.NodeOverrides[id]
	if !ok {
		return res
	}
	if o.Model != nil {
		res.Model = o.Model
	}
	if o.Tools != nil {
		res.Tools = o.Tools
	}
	if o.Retriever != nil {
		res.Retriever = o.Retriever
	}
	return res
}

// Builder compiles definitions into plans and instantiates graphs.
// Compiled plans are cached by definition shape hash, least recently used
// first out.
type Builder struct {
	factory    *node.Factory
	maxSteps   int
	bufferSize int
	cacheSize  int

	plans *lru.Cache[string, *Plan]
}

// Option configures a Builder.
type Option func(*Builder)

// WithFactory sets the node factory. The default resolves types through
// the process-wide registry.
func WithFactory(f *node.Factory) Option {
	return func(b *Builder) {
		if f != nil {
			b.factory = f
		}
	}
}

// WithMaxSteps sets the per-run node execution ceiling.
func WithMaxSteps(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxSteps = n
		}
	}
}

// WithStreamBufferSize sets the event channel buffer used by Stream.
func WithStreamBufferSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithPlanCacheSize bounds the number of cached plans.
func WithPlanCacheSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.cacheSize = n
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		factory:    node.NewFactory(),
		maxSteps:   DefaultMaxSteps,
		bufferSize: DefaultStreamBufferSize,
		cacheSize:  DefaultPlanCacheSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	// lru.New only fails on a non-positive size.
	b.plans, _ = lru.New[string, *Plan](b.cacheSize)
	return b
}

var (
	defaultBuilder     *Builder
	defaultBuilderOnce sync.Once
)

// DefaultBuilder returns the lazily created process-wide builder.
func DefaultBuilder() *Builder {
	defaultBuilderOnce.Do(func() {
		defaultBuilder = NewBuilder()
	})
	return defaultBuilder
}

// Compile validates def and returns its plan. Problematic cycles are
// logged, not rejected.
func (b *Builder) Compile(def *Definition) (*Plan, error) {
	if def == nil || len(def.Nodes) == 0 {
		return nil, &DefinitionError{Kind: ErrNoNodes}
	}
	hash, err := def.Hash()
	if err != nil {
		return nil, &DefinitionError{Kind: ErrInvalidDefinition, Err: err}
	}
	if p, ok := b.plans.Get(hash); ok {
		return p, nil
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	for _, n := range def.Nodes {
		if err := b.factory.Validate(n.Type, n.Config); err != nil {
			return nil, &DefinitionError{Kind: ErrInvalidNode, NodeID: n.ID, Err: err}
		}
	}
	entry, err := resolveEntryPoint(def)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		def:     cloneDefinition(def),
		hash:    hash,
		entry:   entry,
		routers: buildRouters(def),
		cycles:  findCycles(def),
	}
	for _, c := range p.ProblematicCycles() {
		log.Warnf("workflow %q: cycle without conditional exit: %s", def.Name, c)
	}

	if cached, ok, _ := b.plans.PeekOrAdd(hash, p); ok {
		return cached, nil
	}
	return p, nil
}

// Build compiles def and instantiates its nodes with res bound. Nodes are
// created per call so that runs never share node instances.
func (b *Builder) Build(def *Definition, res Resources) (*Graph, error) {
	p, err := b.Compile(def)
	if err != nil {
		return nil, err
	}
	return b.Instantiate(p, res)
}

// Instantiate creates the nodes of a compiled plan.
func (b *Builder) Instantiate(p *Plan, res Resources) (*Graph, error) {
	nodes := make(map[string]node.Node, len(p.def.Nodes))
	types := make(map[string]string, len(p.def.Nodes))
	for _, spec := range p.def.Nodes {
		n, err := b.factory.Create(spec.Type, spec.ID, res.configFor(spec))
		if err != nil {
			return nil, &DefinitionError{Kind: ErrInvalidNode, NodeID: spec.ID, Err: err}
		}
		node.Bind(n, res.forNode(spec.ID))
		nodes[spec.ID] = n
		types[spec.ID] = spec.Type
	}
	return &Graph{
		plan:       p,
		nodes:      nodes,
		types:      types,
		maxSteps:   b.maxSteps,
		bufferSize: b.bufferSize,
	}, nil
}

// CachedPlans returns the number of cached plans.
func (b *Builder) CachedPlans() int {
	return b.plans.Len()
}

func cloneDefinition(def *Definition) *Definition {
	out := &Definition{
		Name:       def.Name,
		EntryPoint: def.EntryPoint,
		Nodes:      make([]NodeSpec, len(def.Nodes)),
		Edges:      append([]EdgeSpec(nil), def.Edges...),
	}
	for i, n := range def.Nodes {
		cfg := make(map[string]any, len(n.Config))
		for k, v := range n.Config {
			cfg[k] = v
		}
		out.Nodes[i] = NodeSpec{ID: n.ID, Type: n.Type, Config: cfg}
	}
	return out
}

// String describes the plan for diagnostics.
func (p *Plan) String() string {
	return fmt.Sprintf("plan(entry=%s, nodes=%d, edges=%d, cycles=%d)",
		p.entry, len(p.def.Nodes), len(p.def.Edges), len(p.cycles))
}
