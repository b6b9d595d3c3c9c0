//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package metric records workflow run metrics through OpenTelemetry.
package metric

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"trpc.group/trpc-go/trpc-workflow-go/telemetry/semconv/metrics"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

// instruments groups the workflow meter's instruments.
type instruments struct {
	runCount    metric.Int64Counter
	runDuration metric.Float64Histogram
	tokenUsage  metric.Int64Histogram
	nodeCount   metric.Int64Counter
}

var (
	mu            sync.RWMutex
	meterProvider metric.MeterProvider = noop.NewMeterProvider()
	inst                               = instruments{
		runCount:    noop.Int64Counter{},
		runDuration: noop.Float64Histogram{},
		tokenUsage:  noop.Int64Histogram{},
		nodeCount:   noop.Int64Counter{},
	}
)

// InitMeterProvider creates the workflow instruments on mp.
func InitMeterProvider(mp metric.MeterProvider) error {
	meter := mp.Meter(metrics.MeterNameWorkflow)
	var (
		next instruments
		err  error
	)
	if next.runCount, err = meter.Int64Counter(
		metrics.MetricRunCount,
		metric.WithDescription("Number of finished workflow runs"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricRunCount, err)
	}
	if next.runDuration, err = meter.Float64Histogram(
		metrics.MetricRunDuration,
		metric.WithDescription("Duration of workflow runs"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricRunDuration, err)
	}
	if next.tokenUsage, err = meter.Int64Histogram(
		metrics.MetricRunTokenUsage,
		metric.WithDescription("Tokens consumed per workflow run"),
		metric.WithUnit("{token}"),
	); err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricRunTokenUsage, err)
	}
	if next.nodeCount, err = meter.Int64Counter(
		metrics.MetricNodeCount,
		metric.WithDescription("Number of node executions"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricNodeCount, err)
	}

	mu.Lock()
	defer mu.Unlock()
	meterProvider = mp
	inst = next
	return nil
}

// GetMeterProvider returns the meter provider in use.
func GetMeterProvider() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()
	return meterProvider
}

func current() instruments {
	mu.RLock()
	defer mu.RUnlock()
	return inst
}

// RunTimer measures one workflow run.
type RunTimer struct {
	workflowType string
	start        time.Time
	once         sync.Once
}

// StartRun begins timing a run of workflowType.
func StartRun(workflowType string) *RunTimer {
	return &RunTimer{workflowType: workflowType, start: time.Now()}
}

// End records the run outcome. errorType is ignored on success. Only the
// first call records.
func (t *RunTimer) End(ctx context.Context, success bool, errorType string) time.Duration {
	elapsed := time.Since(t.start)
	t.once.Do(func() {
		attrs := []attribute.KeyValue{
			attribute.String(metrics.KeyWorkflowType, t.workflowType),
			attribute.Bool(metrics.KeySuccess, success),
		}
		if !success && errorType != "" {
			attrs = append(attrs, attribute.String(metrics.KeyErrorType, errorType))
		}
		set := metric.WithAttributes(attrs...)
		i := current()
		i.runCount.Add(ctx, 1, set)
		i.runDuration.Record(ctx, elapsed.Seconds(), set)
	})
	return elapsed
}

// RecordTokenUsage records the input and output tokens of a run.
func RecordTokenUsage(ctx context.Context, workflowType string, input, output int) {
	i := current()
	if input > 0 {
		i.tokenUsage.Record(ctx, int64(input), metric.WithAttributes(
			attribute.String(metrics.KeyWorkflowType, workflowType),
			attribute.String(metrics.KeyTokenType, metrics.TokenTypeInput),
		))
	}
	if output > 0 {
		i.tokenUsage.Record(ctx, int64(output), metric.WithAttributes(
			attribute.String(metrics.KeyWorkflowType, workflowType),
			attribute.String(metrics.KeyTokenType, metrics.TokenTypeOutput),
		))
	}
}

// IncNodeCount counts one node execution.
func IncNodeCount(ctx context.Context, nodeType string) {
	current().nodeCount.Add(ctx, 1, metric.WithAttributes(attribute.String(metrics.KeyNodeType, nodeType)))
}

// NewMeterProvider creates a meter provider exporting over OTLP/HTTP.
// Endpoint resolution: WithEndpoint, then
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT, then OTEL_EXPORTER_OTLP_ENDPOINT,
// then localhost:4318.
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	o := &options{
		serviceName:      trace.ServiceName,
		serviceVersion:   trace.ServiceVersion,
		serviceNamespace: trace.ServiceNamespace,
		interval:         time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = metricsEndpoint()
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(o.serviceNamespace),
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(o.endpoint),
		otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(o.interval))),
		sdkmetric.WithResource(res),
	), nil
}

// Start creates an OTLP meter provider, installs the workflow instruments on
// it and returns a cleanup that shuts it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	mp, err := NewMeterProvider(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := InitMeterProvider(mp); err != nil {
		return nil, err
	}
	return func() error { return mp.Shutdown(context.Background()) }, nil
}

func metricsEndpoint() string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "localhost:4318"
}

// Option configures NewMeterProvider.
type Option func(*options)

type options struct {
	endpoint         string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
	interval         time.Duration
}

// WithEndpoint sets the collector host:port.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithExportInterval sets how often metrics are pushed.
func WithExportInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}
