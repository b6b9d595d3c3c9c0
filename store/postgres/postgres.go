//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package postgres stores definitions, templates and execution records in
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/store"
)

// Definition kinds stored in the definitions table.
const (
	kindDefinition = "definition"
	kindTemplate   = "template"
)

// undefinedTable is the SQLSTATE of a missing relation.
const undefinedTable = "42P01"

const schema = `
CREATE TABLE IF NOT EXISTS workflow_definitions (
	id   TEXT NOT NULL,
	kind TEXT NOT NULL,
	body JSONB NOT NULL,
	PRIMARY KEY (id, kind)
);
CREATE TABLE IF NOT EXISTS workflow_executions (
	id              TEXT PRIMARY KEY,
	execution_id    TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	workflow_type   TEXT NOT NULL,
	source_id       TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	result          JSONB,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ
);`

const (
	queryGetDefinition = `SELECT body FROM workflow_definitions WHERE id = $1 AND kind = $2`
	queryPutDefinition = `INSERT INTO workflow_definitions (id, kind, body) VALUES ($1, $2, $3) ` +
		`ON CONFLICT (id, kind) DO UPDATE SET body = EXCLUDED.body`
	queryCreateRecord = `INSERT INTO workflow_executions (id, execution_id, user_id, conversation_id, ` +
		`workflow_type, source_id, status, result, error, started_at, finished_at) ` +
		`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	queryUpdateRecord = `UPDATE workflow_executions SET status = COALESCE(NULLIF($2, ''), status), ` +
		`result = COALESCE($3, result), error = COALESCE(NULLIF($4, ''), error), ` +
		`finished_at = COALESCE($5, finished_at) WHERE id = $1`
	queryGetRecord = `SELECT id, execution_id, user_id, conversation_id, workflow_type, source_id, ` +
		`status, result, error, started_at, finished_at FROM workflow_executions WHERE id = $1`
)

var (
	_ store.DefinitionStore = (*Store)(nil)
	_ store.RecordStore     = (*Store)(nil)
)

// Store is a PostgreSQL backed definition and record store.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the lib/pq driver.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres: connection string is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return New(db), nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: create schema: %w", err)
	}
	return nil
}

// PutDefinition stores def under id.
func (s *Store) PutDefinition(ctx context.Context, id string, def *graph.Definition) error {
	return s.put(ctx, id, kindDefinition, def)
}

// PutTemplate stores def as the template id.
func (s *Store) PutTemplate(ctx context.Context, id string, def *graph.Definition) error {
	return s.put(ctx, id, kindTemplate, def)
}

func (s *Store) put(ctx context.Context, id, kind string, def *graph.Definition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("postgres: encode %s %s: %w", kind, id, err)
	}
	if _, err := s.db.ExecContext(ctx, queryPutDefinition, id, kind, body); err != nil {
		return wrapErr("put "+kind, err)
	}
	return nil
}

// GetDefinition implements store.DefinitionStore.
func (s *Store) GetDefinition(ctx context.Context, id string) (*graph.Definition, error) {
	return s.get(ctx, id, kindDefinition)
}

// GetTemplate implements store.DefinitionStore.
func (s *Store) GetTemplate(ctx context.Context, id string) (*graph.Definition, error) {
	return s.get(ctx, id, kindTemplate)
}

func (s *Store) get(ctx context.Context, id, kind string) (*graph.Definition, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, queryGetDefinition, id, kind).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get "+kind, err)
	}
	var def graph.Definition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, fmt.Errorf("postgres: decode %s %s: %w", kind, id, err)
	}
	return &def, nil
}

// Create implements store.RecordStore.
func (s *Store) Create(ctx context.Context, r *store.ExecutionRecord) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	result, err := encodeResult(r.Result)
	if err != nil {
		return "", err
	}
	var finished sql.NullTime
	if r.FinishedAt != nil {
		finished = sql.NullTime{Time: *r.FinishedAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, queryCreateRecord,
		id, r.ExecutionID, r.UserID, r.ConversationID, r.WorkflowType, r.SourceID,
		string(r.Status), result, r.Error, r.StartedAt, finished)
	if err != nil {
		return "", wrapErr("create record", err)
	}
	return id, nil
}

// Update implements store.RecordStore.
func (s *Store) Update(ctx context.Context, id string, u store.RecordUpdate) error {
	result, err := encodeResult(u.Result)
	if err != nil {
		return err
	}
	var finished sql.NullTime
	if u.FinishedAt != nil {
		finished = sql.NullTime{Time: *u.FinishedAt, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, queryUpdateRecord, id, string(u.Status), result, u.Error, finished)
	if err != nil {
		return wrapErr("update record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("update record", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// Get implements store.RecordStore.
func (s *Store) Get(ctx context.Context, id string) (*store.ExecutionRecord, error) {
	var (
		r        store.ExecutionRecord
		status   string
		result   []byte
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, queryGetRecord, id).Scan(
		&r.ID, &r.ExecutionID, &r.UserID, &r.ConversationID, &r.WorkflowType, &r.SourceID,
		&status, &result, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get record", err)
	}
	r.Status = store.Status(status)
	if len(result) > 0 {
		if err := json.Unmarshal(result, &r.Result); err != nil {
			return nil, fmt.Errorf("postgres: decode record %s: %w", id, err)
		}
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func encodeResult(result map[string]any) (any, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode result: %w", err)
	}
	return b, nil
}

// wrapErr adds a hint for missing tables.
func wrapErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("postgres: %s: %w (run EnsureSchema first)", op, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
