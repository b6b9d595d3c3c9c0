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
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

// TemplateRegistry holds templates registered in process. They take
// precedence over templates in the definition store.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]*graph.Definition
}

// NewTemplateRegistry creates an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{templates: make(map[string]*graph.Definition)}
}

// Register validates def and stores it under id, replacing any previous
// template with that id.
func (r *TemplateRegistry) Register(id string, def *graph.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[id] = def
	return nil
}

// Get returns the template with id.
func (r *TemplateRegistry) Get(id string) (*graph.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.templates[id]
	return def, ok
}

// IDs returns the registered template ids in order.
func (r *TemplateRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
