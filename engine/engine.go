//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package engine runs workflow requests: it resolves the graph of a request,
// acquires its resources, drives the graph in batch or streaming mode and
// reports the run to the tracker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/graph/node"
	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
	semconvtrace "trpc.group/trpc-go/trpc-workflow-go/telemetry/semconv/trace"
	itrace "trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
	"trpc.group/trpc-go/trpc-workflow-go/tracker"
)

const (
	// DefaultPoolSize is the number of concurrent streaming runs.
	DefaultPoolSize = 64
	// DefaultChunkBuffer is the chunk channel buffer of ExecuteStream.
	DefaultChunkBuffer = 64
)

// Metadata keys seeded into every run.
const (
	MetaExecutionID    = "execution_id"
	MetaUserID         = "user_id"
	MetaConversationID = "conversation_id"
	MetaThreadID       = "thread_id"
	MetaWorkflowType   = "workflow_type"
	MetaProvider       = "provider"
	MetaModel          = "model"
)

// Variable keys seeded into every run.
const (
	// VarInput holds the request's structured input.
	VarInput = "input"
	// InputMessage is the key of the user message in ExecutionConfig.InputData.
	InputMessage = "message"
)

// Defaults fill request fields left empty.
type Defaults struct {
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature"`
	MaxTokens    *int     `yaml:"max_tokens"`
	SystemPrompt string   `yaml:"system_prompt"`
	MemoryWindow int      `yaml:"memory_window"`
	MaxDocuments int      `yaml:"max_documents"`
}

// Engine executes workflow requests. It is safe for concurrent use.
type Engine struct {
	builder     *graph.Builder
	provider    ResourceProvider
	definitions store.DefinitionStore
	templates   *TemplateRegistry
	tracker     *tracker.Tracker
	pricing     Pricing
	defaults    Defaults
	poolSize    int
	chunkBuffer int
	pool        *ants.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuilder sets the graph builder. Defaults to graph.DefaultBuilder().
func WithBuilder(b *graph.Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithProvider sets the resource provider. Required.
func WithProvider(p ResourceProvider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithDefinitionStore sets where definitions and templates are loaded from.
func WithDefinitionStore(s store.DefinitionStore) Option {
	return func(e *Engine) { e.definitions = s }
}

// WithTemplates sets the in-process template registry.
func WithTemplates(r *TemplateRegistry) Option {
	return func(e *Engine) { e.templates = r }
}

// WithTracker sets the run tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithPricing sets the model price table used to compute run cost.
func WithPricing(p Pricing) Option {
	return func(e *Engine) { e.pricing = p }
}

// WithDefaults sets the request defaults.
func WithDefaults(d Defaults) Option {
	return func(e *Engine) { e.defaults = d }
}

// WithPoolSize sets the number of streaming runs executed at once.
func WithPoolSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

// WithChunkBuffer sets the buffer of the chunk channel of ExecuteStream.
func WithChunkBuffer(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.chunkBuffer = n
		}
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		poolSize:    DefaultPoolSize,
		chunkBuffer: DefaultChunkBuffer,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil {
		return nil, errors.New("engine: resource provider is required")
	}
	if e.builder == nil {
		e.builder = graph.DefaultBuilder()
	}
	if e.templates == nil {
		e.templates = NewTemplateRegistry()
	}
	if e.tracker == nil {
		e.tracker = tracker.New()
	}
	pool, err := ants.NewPool(e.poolSize)
	if err != nil {
		return nil, fmt.Errorf("engine: create pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Templates returns the in-process template registry.
func (e *Engine) Templates() *TemplateRegistry { return e.templates }

// Close releases the worker pool. Running streams finish first.
func (e *Engine) Close() {
	e.pool.Release()
}

// Execute runs req to completion. Requests with Stream set are rejected;
// use ExecuteStream for them. Failures after the run started are reported
// to the tracker and returned as *RunError.
func (e *Engine) Execute(ctx context.Context, req *Request, userID string) (*ExecutionResult, error) {
	if req == nil {
		return nil, errors.New("engine: nil request")
	}
	if req.Stream {
		return nil, ErrStreamingRequest
	}
	start := time.Now()
	ec, err := e.createContext(ctx, req, userID)
	if err != nil {
		return nil, &RunError{ExecutionID: ec.ExecutionID, Err: err}
	}
	ctx, span := e.startSpan(ctx, ec, false)
	defer span.End()
	run := e.startTracking(ctx, ec)

	g, err := e.buildGraph(ctx, ec)
	if err != nil {
		return nil, e.fail(ctx, span, ec, run, err)
	}
	final, err := g.Invoke(ctx, ec.State)
	if err != nil {
		return nil, e.fail(ctx, span, ec, run, err)
	}
	ec.State = final
	res := e.result(ec, final, lastResponse(final), final.Usage, time.Since(start))
	e.complete(ctx, span, run, res)
	return res, nil
}

// ExecuteStream runs req on the worker pool and streams its progress. The
// chunk channel yields token chunks, a complete chunk per model call and a
// final done chunk; it is closed when the run ends. The error channel
// yields at most one error and is then closed. On failure no done chunk is
// sent.
func (e *Engine) ExecuteStream(ctx context.Context, req *Request, userID string) (<-chan *Chunk, <-chan error) {
	chunks := make(chan *Chunk, e.chunkBuffer)
	errc := make(chan error, 1)
	if req == nil {
		close(chunks)
		errc <- errors.New("engine: nil request")
		close(errc)
		return chunks, errc
	}
	task := func() {
		defer close(errc)
		defer close(chunks)
		if err := e.stream(ctx, req, userID, chunks); err != nil {
			errc <- err
		}
	}
	if err := e.pool.Submit(task); err != nil {
		close(chunks)
		errc <- fmt.Errorf("engine: submit stream: %w", err)
		close(errc)
	}
	return chunks, errc
}

func (e *Engine) stream(ctx context.Context, req *Request, userID string, chunks chan<- *Chunk) error {
	start := time.Now()
	ec, err := e.createContext(ctx, req, userID)
	if err != nil {
		return &RunError{ExecutionID: ec.ExecutionID, Err: err}
	}
	ec.Config.EnableStreaming = true
	ctx, span := e.startSpan(ctx, ec, true)
	defer span.End()
	run := e.startTracking(ctx, ec)

	g, err := e.buildGraph(ctx, ec)
	if err != nil {
		return e.fail(ctx, span, ec, run, err)
	}
	events, err := g.Stream(ctx, ec.State)
	if err != nil {
		return e.fail(ctx, span, ec, run, err)
	}

	var (
		acc    streamAccumulator
		final  *state.NodeContext
		runErr error
	)
	// Events are drained even after a send fails so the graph goroutine
	// can finish.
	for evt := range events {
		switch evt.Type {
		case graph.EventNodeStart:
			acc.reset()
		case graph.EventModelToken:
			acc.token(evt.Content)
			if runErr == nil {
				runErr = sendChunk(ctx, chunks, &Chunk{Type: ChunkToken, NodeID: evt.NodeID, Content: evt.Content})
			}
		case graph.EventModelComplete:
			content := acc.complete(evt.Content)
			if runErr == nil {
				runErr = sendChunk(ctx, chunks, &Chunk{Type: ChunkComplete, NodeID: evt.NodeID, Content: content, Usage: evt.Usage})
			}
		case graph.EventError:
			if runErr == nil {
				runErr = evt.Err
			}
		case graph.EventEnd:
			final = evt.State
		}
	}
	if runErr == nil && final == nil {
		runErr = ctx.Err()
		if runErr == nil {
			runErr = errors.New("event stream ended without a final state")
		}
	}
	if runErr != nil {
		return e.fail(ctx, span, ec, run, runErr)
	}
	ec.State = final
	res := e.result(ec, final, lastResponse(final), final.Usage, time.Since(start))
	e.complete(ctx, span, run, res)
	return sendChunk(ctx, chunks, &Chunk{Type: ChunkDone, ElapsedMs: res.Duration.Milliseconds(), Result: res})
}

// streamAccumulator collects the deltas of the model call in flight. A call
// that fails after streaming tokens sends no complete event, so the deltas
// are dropped when the next node starts.
type streamAccumulator struct {
	current strings.Builder
}

func (a *streamAccumulator) reset() { a.current.Reset() }

func (a *streamAccumulator) token(s string) { a.current.WriteString(s) }

// complete closes the current model call and returns its content, preferring
// the finished message over the collected deltas.
func (a *streamAccumulator) complete(full string) string {
	content := full
	if content == "" {
		content = a.current.String()
	}
	a.current.Reset()
	return content
}

func sendChunk(ctx context.Context, ch chan<- *Chunk, c *Chunk) error {
	select {
	case ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createContext resolves req into an ExecutionContext. The returned context
// is never nil so that failures can name the execution.
func (e *Engine) createContext(ctx context.Context, req *Request, userID string) (*ExecutionContext, error) {
	ec := &ExecutionContext{
		ExecutionID:    uuid.NewString(),
		CorrelationID:  uuid.NewString(),
		UserID:         userID,
		ConversationID: req.ConversationID,
		CreatedAt:      time.Now(),
		Config:         e.resolveConfig(req),
	}
	switch {
	case req.TemplateID != "":
		ec.WorkflowType, ec.SourceID = WorkflowTemplate, req.TemplateID
	case req.DefinitionID != "":
		ec.WorkflowType, ec.SourceID = WorkflowDefinition, req.DefinitionID
	case len(req.Nodes) > 0:
		ec.WorkflowType = WorkflowCustom
		ec.Inline = &graph.Definition{
			Name:       "custom",
			Nodes:      req.Nodes,
			Edges:      req.Edges,
			EntryPoint: req.EntryPoint,
		}
	default:
		ec.WorkflowType = WorkflowChat
	}

	m, err := e.provider.Model(ctx, ec.Config)
	if err == nil && m == nil {
		err = ErrModelUnavailable
	}
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			err = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		return ec, err
	}
	ec.Model = m
	if ec.Config.Model == "" {
		ec.Config.Model = m.Info().Name
	}
	if ec.Config.Provider == "" {
		ec.Config.Provider = m.Info().Provider
	}
	ec.Tools = e.acquireTools(ctx, ec)
	if ec.Config.EnableRetrieval && len(ec.Config.DocumentIDs) > 0 {
		r, err := e.provider.Retriever(ctx, ec.Config)
		if err != nil {
			log.Warnf("engine: execution %s: retriever unavailable: %v", ec.ExecutionID, err)
		} else {
			ec.Retriever = r
		}
	}
	ec.State = seedState(ec)
	return ec, nil
}

func (e *Engine) acquireTools(ctx context.Context, ec *ExecutionContext) []tool.Tool {
	if !ec.Config.EnableTools {
		return nil
	}
	tools, err := e.provider.Tools(ctx, ec.Config)
	if err != nil {
		log.Warnf("engine: execution %s: tools unavailable: %v", ec.ExecutionID, err)
		return nil
	}
	if len(ec.Config.ToolNames) > 0 {
		tools = tool.FilterTools(ctx, tools, tool.NewAllowListFilter(ec.Config.ToolNames...))
	}
	return tools
}

func (e *Engine) resolveConfig(req *Request) *ExecutionConfig {
	d := e.defaults
	cfg := &ExecutionConfig{
		InputData:       make(map[string]any, len(req.Input)+1),
		Provider:        firstNonEmpty(req.Provider, d.Provider),
		Model:           firstNonEmpty(req.Model, d.Model),
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		SystemPrompt:    firstNonEmpty(req.SystemPrompt, d.SystemPrompt),
		EnableMemory:    req.EnableMemory,
		EnableRetrieval: req.EnableRetrieval,
		EnableTools:     req.EnableTools,
		EnableStreaming: req.Stream,
		MemoryWindow:    req.MemoryWindow,
		MaxToolCalls:    state.DefaultMaxToolCalls,
		MaxDocuments:    req.MaxDocuments,
		ToolNames:       req.ToolNames,
		DocumentIDs:     req.DocumentIDs,
		WorkflowConfig:  req.WorkflowConfig,
	}
	for k, v := range req.Input {
		cfg.InputData[k] = v
	}
	if req.Message != "" {
		cfg.InputData[InputMessage] = req.Message
	}
	if cfg.Temperature == nil {
		cfg.Temperature = d.Temperature
	}
	if cfg.MaxTokens == nil {
		cfg.MaxTokens = d.MaxTokens
	}
	if cfg.MemoryWindow <= 0 {
		cfg.MemoryWindow = d.MemoryWindow
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = d.MaxDocuments
	}
	if req.MaxToolCalls != nil {
		cfg.MaxToolCalls = *req.MaxToolCalls
	}
	return cfg
}

func seedState(ec *ExecutionContext) *state.NodeContext {
	cfg := ec.Config
	c := state.New()
	if msg, _ := cfg.InputData[InputMessage].(string); msg != "" {
		c.Messages = append(c.Messages, model.NewUserMessage(msg))
	}
	for k, v := range cfg.WorkflowConfig {
		c.Variables[k] = v
	}
	c.Variables[state.VarCapabilities] = map[string]any{
		state.CapEnableMemory:    cfg.EnableMemory,
		state.CapEnableRetrieval: cfg.EnableRetrieval,
		state.CapEnableTools:     cfg.EnableTools,
		state.CapMaxToolCalls:    cfg.MaxToolCalls,
	}
	if len(cfg.InputData) > 0 {
		input := make(map[string]any, len(cfg.InputData))
		for k, v := range cfg.InputData {
			input[k] = v
		}
		c.Variables[VarInput] = input
	}
	if len(cfg.DocumentIDs) > 0 {
		c.Variables[node.VarDocumentIDs] = append([]string(nil), cfg.DocumentIDs...)
	}
	c.Metadata[MetaExecutionID] = ec.ExecutionID
	c.Metadata[MetaUserID] = ec.UserID
	c.Metadata[MetaConversationID] = ec.ConversationID
	c.Metadata[MetaThreadID] = ec.ThreadID()
	c.Metadata[MetaWorkflowType] = string(ec.WorkflowType)
	c.Metadata[MetaProvider] = cfg.Provider
	c.Metadata[MetaModel] = cfg.Model
	return c
}

// loadDefinition returns the graph definition of ec.
func (e *Engine) loadDefinition(ctx context.Context, ec *ExecutionContext) (*graph.Definition, error) {
	switch ec.WorkflowType {
	case WorkflowTemplate:
		if def, ok := e.templates.Get(ec.SourceID); ok {
			return def, nil
		}
		if e.definitions == nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, ec.SourceID)
		}
		def, err := e.definitions.GetTemplate(ctx, ec.SourceID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, ec.SourceID)
		}
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", ec.SourceID, err)
		}
		return def, nil
	case WorkflowDefinition:
		if e.definitions == nil {
			return nil, fmt.Errorf("load definition %s: no definition store configured", ec.SourceID)
		}
		def, err := e.definitions.GetDefinition(ctx, ec.SourceID)
		if err != nil {
			return nil, fmt.Errorf("load definition %s: %w", ec.SourceID, err)
		}
		return def, nil
	case WorkflowCustom:
		return ec.Inline, nil
	default:
		return chatDefinition(ec.Config, ec.Retriever != nil, len(ec.Tools) > 0), nil
	}
}

func (e *Engine) buildGraph(ctx context.Context, ec *ExecutionContext) (*graph.Graph, error) {
	def, err := e.loadDefinition(ctx, ec)
	if err != nil {
		return nil, err
	}
	res := graph.Resources{
		Model:          ec.Model,
		Tools:          ec.Tools,
		Retriever:      ec.Retriever,
		NodeOverrides:  e.nodeOverrides(ctx, ec, def),
		ConfigDefaults: modelDefaults(ec.Config),
	}
	return e.builder.Build(def, res)
}

// nodeOverrides acquires the models named in model-call node configs.
// A model that cannot be acquired leaves the node on the run's model.
func (e *Engine) nodeOverrides(ctx context.Context, ec *ExecutionContext, def *graph.Definition) map[string]node.Resources {
	var overrides map[string]node.Resources
	for _, n := range def.Nodes {
		if !isModelNode(n.Type) {
			continue
		}
		name, _ := n.Config[node.CfgModel].(string)
		if name == "" || name == ec.Config.Model {
			continue
		}
		cfg := *ec.Config
		cfg.Model = name
		m, err := e.provider.Model(ctx, &cfg)
		if err != nil || m == nil {
			log.Warnf("engine: execution %s: model %q for node %s unavailable, using %q: %v",
				ec.ExecutionID, name, n.ID, ec.Config.Model, err)
			continue
		}
		if overrides == nil {
			overrides = make(map[string]node.Resources)
		}
		overrides[n.ID] = node.Resources{Model: m}
	}
	return overrides
}

func isModelNode(typeName string) bool {
	switch typeName {
	case node.TypeLLM, node.TypeCallModel, node.TypeFinalize:
		return true
	}
	return false
}

// modelDefaults returns the run's prompt and generation settings for every
// model-call node type. Node configs that set a key keep their value.
func modelDefaults(cfg *ExecutionConfig) map[string]map[string]any {
	c := make(map[string]any, 3)
	if cfg.SystemPrompt != "" {
		c[node.CfgSystemPrompt] = cfg.SystemPrompt
	}
	if cfg.Temperature != nil {
		c[node.CfgTemperature] = *cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		c[node.CfgMaxTokens] = *cfg.MaxTokens
	}
	if len(c) == 0 {
		return nil
	}
	return map[string]map[string]any{
		node.TypeLLM:       c,
		node.TypeCallModel: c,
		node.TypeFinalize:  c,
	}
}

func (e *Engine) result(ec *ExecutionContext, final *state.NodeContext, response string,
	usage model.Usage, elapsed time.Duration) *ExecutionResult {
	res := &ExecutionResult{
		ExecutionID:    ec.ExecutionID,
		ConversationID: ec.ConversationID,
		WorkflowType:   ec.WorkflowType,
		Response:       response,
		Usage:          usage,
		Cost:           e.pricing.Cost(ec.Config.Model, usage),
		ToolCallCount:  final.ToolCallCount,
		Duration:       elapsed,
		State:          final,
	}
	if len(final.ErrorState) > 0 {
		res.NodeErrors = make(map[string]string, len(final.ErrorState))
		for k, v := range final.ErrorState {
			res.NodeErrors[k] = v
		}
	}
	return res
}

// lastResponse returns the content of the last assistant turn.
func lastResponse(c *state.NodeContext) string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == model.RoleAssistant {
			return c.Messages[i].Content
		}
	}
	return ""
}

func (e *Engine) startSpan(ctx context.Context, ec *ExecutionContext, stream bool) (context.Context, oteltrace.Span) {
	return itrace.Tracer.Start(ctx, semconvtrace.SpanNameExecute, oteltrace.WithAttributes(
		attribute.String(semconvtrace.KeyExecutionID, ec.ExecutionID),
		attribute.String(semconvtrace.KeyWorkflowType, string(ec.WorkflowType)),
		attribute.String(semconvtrace.KeyWorkflowSource, ec.SourceID),
		attribute.String(semconvtrace.KeyUserID, ec.UserID),
		attribute.Bool(semconvtrace.KeyStream, stream),
		attribute.String(semconvtrace.KeyGenAIConversationID, ec.ThreadID()),
		attribute.String(semconvtrace.KeyGenAISystem, ec.Config.Provider),
		attribute.String(semconvtrace.KeyGenAIRequestModel, ec.Config.Model),
	))
}

func (e *Engine) startTracking(ctx context.Context, ec *ExecutionContext) *tracker.Run {
	run := &tracker.Run{
		ExecutionID:    ec.ExecutionID,
		UserID:         ec.UserID,
		ConversationID: ec.ConversationID,
		WorkflowType:   string(ec.WorkflowType),
		SourceID:       ec.SourceID,
		Persist:        ec.WorkflowType.Persisted(),
	}
	e.tracker.Start(context.WithoutCancel(ctx), run)
	return run
}

func (e *Engine) complete(ctx context.Context, span oteltrace.Span, run *tracker.Run, res *ExecutionResult) {
	metric.RecordTokenUsage(ctx, string(res.WorkflowType), res.Usage.PromptTokens, res.Usage.CompletionTokens)
	span.SetAttributes(
		attribute.Int(semconvtrace.KeyGenAIUsageInputTokens, res.Usage.PromptTokens),
		attribute.Int(semconvtrace.KeyGenAIUsageOutputTokens, res.Usage.CompletionTokens),
		attribute.Int(semconvtrace.KeyToolCallCount, res.ToolCallCount),
	)
	span.SetStatus(codes.Ok, "")
	e.tracker.Complete(context.WithoutCancel(ctx), run, res.Map())
}

func (e *Engine) fail(ctx context.Context, span oteltrace.Span, ec *ExecutionContext, run *tracker.Run, err error) error {
	log.Errorf("engine: execution %s (%s) failed: %v", ec.ExecutionID, ec.WorkflowType, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.tracker.Fail(context.WithoutCancel(ctx), run, err)
	return &RunError{ExecutionID: ec.ExecutionID, Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
