//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import "fmt"

// Factory creates nodes through a Registry.
type Factory struct {
	registry *Registry
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRegistry makes the factory use r instead of the process-wide registry.
func WithRegistry(r *Registry) FactoryOption {
	return func(f *Factory) {
		if r != nil {
			f.registry = r
		}
	}
}

// NewFactory creates a node factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{registry: defaultRegistry}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Registry returns the registry the factory resolves types through.
func (f *Factory) Registry() *Registry { return f.registry }

// Create validates config against the type's schema and builds the node.
func (f *Factory) Create(typeName, id string, config map[string]any) (Node, error) {
	e, ok := f.registry.get(typeName)
	if !ok {
		return nil, fmt.Errorf("node %s: %w %q", id, ErrUnknownType, typeName)
	}
	if err := validateConfig(e.schema, config); err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", id, typeName, err)
	}
	n, err := e.creator(id, config)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", id, typeName, err)
	}
	return n, nil
}

// Validate checks config for typeName without building a node.
func (f *Factory) Validate(typeName string, config map[string]any) error {
	e, ok := f.registry.get(typeName)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownType, typeName)
	}
	return validateConfig(e.schema, config)
}
