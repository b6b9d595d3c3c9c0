//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package redis stores definitions, templates and execution records in
// Redis as JSON values.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/store"
)

const defaultKeyPrefix = "workflow"

var (
	_ store.DefinitionStore = (*Store)(nil)
	_ store.RecordStore     = (*Store)(nil)
)

// Store is a Redis backed definition and record store.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	recordTTL time.Duration
	owned     bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	url       string
	client    redis.UniversalClient
	prefix    string
	recordTTL time.Duration
}

// WithURL sets the Redis URL.
// scheme: redis://<username>:<password>@<host>:<port>/<db>?<options>
func WithURL(url string) Option {
	return func(o *options) { o.url = url }
}

// WithClient uses an existing client. The store does not close it.
func WithClient(c redis.UniversalClient) Option {
	return func(o *options) { o.client = c }
}

// WithKeyPrefix sets the key namespace. Default "workflow".
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRecordTTL expires execution records after d. Zero keeps them.
func WithRecordTTL(d time.Duration) Option {
	return func(o *options) { o.recordTTL = d }
}

// New creates a Store from a client or a URL.
func New(opts ...Option) (*Store, error) {
	o := options{prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{client: o.client, prefix: o.prefix, recordTTL: o.recordTTL}
	if s.client == nil {
		if o.url == "" {
			return nil, errors.New("redis: url is empty")
		}
		ropts, err := redis.ParseURL(o.url)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url %s: %w", o.url, err)
		}
		s.client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{ropts.Addr},
			DB:       ropts.DB,
			Username: ropts.Username,
			Password: ropts.Password,
		})
		s.owned = true
	}
	return s, nil
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func (s *Store) definitionKey(id string) string { return s.prefix + ":definition:" + id }

func (s *Store) templateKey(id string) string { return s.prefix + ":template:" + id }

func (s *Store) recordKey(id string) string { return s.prefix + ":record:" + id }

// PutDefinition stores def under id.
func (s *Store) PutDefinition(ctx context.Context, id string, def *graph.Definition) error {
	return s.setJSON(ctx, s.definitionKey(id), def, 0)
}

// PutTemplate stores def as the template id.
func (s *Store) PutTemplate(ctx context.Context, id string, def *graph.Definition) error {
	return s.setJSON(ctx, s.templateKey(id), def, 0)
}

// GetDefinition implements store.DefinitionStore.
func (s *Store) GetDefinition(ctx context.Context, id string) (*graph.Definition, error) {
	var def graph.Definition
	if err := s.getJSON(ctx, s.definitionKey(id), &def); err != nil {
		return nil, fmt.Errorf("definition %s: %w", id, err)
	}
	return &def, nil
}

// GetTemplate implements store.DefinitionStore.
func (s *Store) GetTemplate(ctx context.Context, id string) (*graph.Definition, error) {
	var def graph.Definition
	if err := s.getJSON(ctx, s.templateKey(id), &def); err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	return &def, nil
}

// Create implements store.RecordStore.
func (s *Store) Create(ctx context.Context, r *store.ExecutionRecord) (string, error) {
	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if err := s.setJSON(ctx, s.recordKey(cp.ID), &cp, s.recordTTL); err != nil {
		return "", err
	}
	return cp.ID, nil
}

// Update implements store.RecordStore. The read-modify-write runs under
// WATCH so concurrent updates of one record do not interleave.
func (s *Store) Update(ctx context.Context, id string, u store.RecordUpdate) error {
	key := s.recordKey(id)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("record %s: %w", id, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("redis: get %s: %w", key, err)
		}
		var r store.ExecutionRecord
		if err := json.Unmarshal(b, &r); err != nil {
			return fmt.Errorf("redis: decode %s: %w", key, err)
		}
		u.Apply(&r)
		out, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("redis: encode %s: %w", key, err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
}

// Get implements store.RecordStore.
func (s *Store) Get(ctx context.Context, id string) (*store.ExecutionRecord, error) {
	var r store.ExecutionRecord
	if err := s.getJSON(ctx, s.recordKey(id), &r); err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return nil
}
