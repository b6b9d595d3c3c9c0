//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package store defines the persistence collaborators of the engine:
// definition/template lookup and execution records.
package store

import (
	"context"
	"errors"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

// ErrNotFound is returned when a definition, template or record is absent.
var ErrNotFound = errors.New("not found")

// Status is the lifecycle state of an execution record.
type Status string

// Record statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ExecutionRecord is the persisted trace of one run.
type ExecutionRecord struct {
	ID             string         `json:"id"`
	ExecutionID    string         `json:"execution_id"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	WorkflowType   string         `json:"workflow_type"`
	SourceID       string         `json:"source_id,omitempty"`
	Status         Status         `json:"status"`
	Result         map[string]any `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// RecordUpdate is the change applied by RecordStore.Update. Zero fields are
// left as they are.
type RecordUpdate struct {
	Status     Status
	Result     map[string]any
	Error      string
	FinishedAt *time.Time
}

// Apply merges u into r.
func (u RecordUpdate) Apply(r *ExecutionRecord) {
	if u.Status != "" {
		r.Status = u.Status
	}
	if u.Result != nil {
		r.Result = u.Result
	}
	if u.Error != "" {
		r.Error = u.Error
	}
	if u.FinishedAt != nil {
		t := *u.FinishedAt
		r.FinishedAt = &t
	}
}

// DefinitionStore resolves stored workflow definitions and templates.
type DefinitionStore interface {
	GetDefinition(ctx context.Context, id string) (*graph.Definition, error)
	GetTemplate(ctx context.Context, id string) (*graph.Definition, error)
}

// RecordStore persists execution records.
type RecordStore interface {
	// Create stores r and returns its id, generating one when r.ID is empty.
	Create(ctx context.Context, r *ExecutionRecord) (string, error)
	// Update applies u to the record with id.
	Update(ctx context.Context, id string, u RecordUpdate) error
	// Get returns the record with id.
	Get(ctx context.Context, id string) (*ExecutionRecord, error)
}
