//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides process-local definition and record stores.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/store"
)

var (
	_ store.DefinitionStore = (*Store)(nil)
	_ store.RecordStore     = (*Store)(nil)
)

// Store keeps definitions, templates and records in maps. Values are
// copied in and out so callers cannot alias stored state.
type Store struct {
	mu          sync.RWMutex
	definitions map[string][]byte
	templates   map[string][]byte
	records     map[string]*store.ExecutionRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		definitions: make(map[string][]byte),
		templates:   make(map[string][]byte),
		records:     make(map[string]*store.ExecutionRecord),
	}
}

// PutDefinition stores def under id.
func (s *Store) PutDefinition(id string, def *graph.Definition) error {
	return s.put(s.definitions, id, def)
}

// PutTemplate stores def as the template id.
func (s *Store) PutTemplate(id string, def *graph.Definition) error {
	return s.put(s.templates, id, def)
}

func (s *Store) put(m map[string][]byte, id string, def *graph.Definition) error {
	b, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m[id] = b
	return nil
}

// GetDefinition implements store.DefinitionStore.
func (s *Store) GetDefinition(_ context.Context, id string) (*graph.Definition, error) {
	return s.get(s.definitions, "definition", id)
}

// GetTemplate implements store.DefinitionStore.
func (s *Store) GetTemplate(_ context.Context, id string) (*graph.Definition, error) {
	return s.get(s.templates, "template", id)
}

func (s *Store) get(m map[string][]byte, kind, id string) (*graph.Definition, error) {
	s.mu.RLock()
	b, ok := m[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	var def graph.Definition
	if err := json.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return &def, nil
}

// Create implements store.RecordStore.
func (s *Store) Create(_ context.Context, r *store.ExecutionRecord) (string, error) {
	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[cp.ID] = &cp
	return cp.ID, nil
}

// Update implements store.RecordStore.
func (s *Store) Update(_ context.Context, id string, u store.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	u.Apply(r)
	return nil
}

// Get implements store.RecordStore.
func (s *Store) Get(_ context.Context, id string) (*store.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}
