//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	wmsink "trpc.group/trpc-go/trpc-workflow-go/event/watermill"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/store/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/store/postgres"
	redisstore "trpc.group/trpc-go/trpc-workflow-go/store/redis"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

// backend is a store serving definitions and records.
type backend interface {
	store.DefinitionStore
	store.RecordStore
}

// services are the external collaborators of a run.
type services struct {
	store   backend
	sink    event.Sink
	closers []func() error
}

func (s *services) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases the services in reverse order of creation.
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}
}

func setupServices(ctx context.Context, cfg *config.Config) (*services, error) {
	s := &services{}
	if err := s.setupTelemetry(ctx, cfg.Telemetry); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.setupStore(ctx, cfg.Store); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.setupEvents(ctx, cfg.Events); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *services) setupTelemetry(ctx context.Context, cfg config.TelemetryConfig) error {
	if cfg.TracesEndpoint != "" {
		opts := []trace.Option{trace.WithEndpoint(cfg.TracesEndpoint)}
		if cfg.ServiceName != "" {
			opts = append(opts, trace.WithServiceName(cfg.ServiceName))
		}
		clean, err := trace.Start(ctx, opts...)
		if err != nil {
			return fmt.Errorf("start tracing: %w", err)
		}
		s.onClose(clean)
	}
	if cfg.MetricsEndpoint != "" {
		opts := []metric.Option{metric.WithEndpoint(cfg.MetricsEndpoint)}
		if cfg.ServiceName != "" {
			opts = append(opts, metric.WithServiceName(cfg.ServiceName))
		}
		clean, err := metric.Start(ctx, opts...)
		if err != nil {
			return fmt.Errorf("start metrics: %w", err)
		}
		s.onClose(clean)
	}
	return nil
}

func (s *services) setupStore(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Backend {
	case config.StoreRedis:
		opts := []redisstore.Option{redisstore.WithURL(cfg.RedisURL)}
		if cfg.KeyPrefix != "" {
			opts = append(opts, redisstore.WithKeyPrefix(cfg.KeyPrefix))
		}
		rs, err := redisstore.New(opts...)
		if err != nil {
			return err
		}
		s.store = rs
		s.onClose(rs.Close)
	case config.StorePostgres:
		ps, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		s.onClose(ps.Close)
		if err := ps.EnsureSchema(ctx); err != nil {
			return err
		}
		s.store = ps
	default:
		s.store = inmemory.New()
	}
	return nil
}

func (s *services) setupEvents(ctx context.Context, cfg config.EventsConfig) error {
	logger := watermill.NopLogger{}
	switch cfg.Backend {
	case config.EventsKafka:
		pub, err := wmsink.NewKafkaPublisher(cfg.Brokers, logger)
		if err != nil {
			return err
		}
		sink := wmsink.NewSink(pub, wmsink.WithTopic(cfg.Topic))
		s.sink = sink
		s.onClose(sink.Close)
	case config.EventsMemory:
		pubSub := wmsink.NewGoChannel(logger)
		sink := wmsink.NewSink(pubSub, wmsink.WithTopic(cfg.Topic))
		messages, err := pubSub.Subscribe(ctx, sink.Topic())
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sink.Topic(), err)
		}
		go logEvents(messages)
		s.sink = sink
		s.onClose(sink.Close)
	default:
		s.sink = event.NopSink{}
	}
	return nil
}
