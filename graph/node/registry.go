//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"
)

// Creator builds a node of one type.
type Creator func(id string, config map[string]any) (Node, error)

// ErrRegistryFrozen is returned by Register once Freeze has been called.
var ErrRegistryFrozen = errors.New("node registry is frozen")

// ErrUnknownType is returned for type tags with no registered creator.
var ErrUnknownType = errors.New("unknown node type")

type entry struct {
	creator Creator
	schema  *gojsonschema.Schema
}

// Registry maps type tags to creators.
//
// Writes happen during startup only. After Freeze the registry is read-only
// and further Register calls fail.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	frozen  atomic.Bool
}

// NewRegistry creates a registry holding the built-in node types.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	registerBuiltins(r)
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a creator to the process-wide registry. schemaJSON is an
// optional JSON schema the node config must satisfy.
func Register(typeName string, creator Creator, schemaJSON string) error {
	return defaultRegistry.Register(typeName, creator, schemaJSON)
}

// Freeze ends the registration phase of the process-wide registry.
func Freeze() { defaultRegistry.Freeze() }

// Register adds or replaces a creator.
func (r *Registry) Register(typeName string, creator Creator, schemaJSON string) error {
	if typeName == "" {
		return errors.New("node type cannot be empty")
	}
	if creator == nil {
		return fmt.Errorf("register %q: creator cannot be nil", typeName)
	}
	e := entry{creator: creator}
	if schemaJSON != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
		if err != nil {
			return fmt.Errorf("register %q: invalid config schema: %w", typeName, err)
		}
		e.schema = schema
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return fmt.Errorf("register %q: %w", typeName, ErrRegistryFrozen)
	}
	r.entries[typeName] = e
	return nil
}

func (r *Registry) mustRegister(typeName string, creator Creator, schemaJSON string) {
	if err := r.Register(typeName, creator, schemaJSON); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	_, ok := r.get(typeName)
	return ok
}

// Types lists the registered type tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) get(typeName string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typeName]
	return e, ok
}

// validateConfig checks config against a compiled schema.
func validateConfig(schema *gojsonschema.Schema, config map[string]any) error {
	if schema == nil {
		return nil
	}
	if config == nil {
		config = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return err
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}
