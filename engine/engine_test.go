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
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/graph/node"
	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	kinmemory "trpc.group/trpc-go/trpc-workflow-go/knowledge/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/store"
	"trpc.group/trpc-go/trpc-workflow-go/store/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
	"trpc.group/trpc-go/trpc-workflow-go/tool/function"
	"trpc.group/trpc-go/trpc-workflow-go/tracker"
)

// chattyModel answers "Hello world", streamed in two pieces when asked.
type chattyModel struct {
	name     string
	mu       sync.Mutex
	requests []*model.Request
}

func (m *chattyModel) GenerateContent(_ context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	ch := make(chan *model.Response, 3)
	if req.Stream {
		ch <- &model.Response{IsPartial: true, Choices: []model.Choice{{Delta: model.Message{Content: "Hello "}}}}
		ch <- &model.Response{IsPartial: true, Choices: []model.Choice{{Delta: model.Message{Content: "world"}}}}
	}
	ch <- &model.Response{
		Choices: []model.Choice{{Message: model.NewAssistantMessage("Hello world"), FinishReason: model.Ptr(model.FinishReasonStop)}},
		Usage:   &model.Usage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6},
		Done:    true,
	}
	close(ch)
	return ch, nil
}

func (m *chattyModel) Info() model.Info { return model.Info{Name: m.name, Provider: "stub"} }

func (m *chattyModel) calls() []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Request(nil), m.requests...)
}

// insistentModel requests the echo tool on every call.
type insistentModel struct {
	mu    sync.Mutex
	tools []int
}

func (m *insistentModel) GenerateContent(_ context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.mu.Lock()
	m.tools = append(m.tools, len(req.Tools))
	m.mu.Unlock()
	msg := model.NewAssistantMessage("checking")
	msg.ToolCalls = []model.ToolCall{{
		Type:     "function",
		ID:       "call-1",
		Function: model.FunctionDefinitionParam{Name: "echo", Arguments: []byte(`{"text":"hi"}`)},
	}}
	ch := make(chan *model.Response, 1)
	ch <- &model.Response{
		Choices: []model.Choice{{Message: msg, FinishReason: model.Ptr(model.FinishReasonToolCalls)}},
		Usage:   &model.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3},
		Done:    true,
	}
	close(ch)
	return ch, nil
}

func (m *insistentModel) Info() model.Info { return model.Info{Name: "insistent"} }

type echoInput struct {
	Text string `json:"text"`
}

func echoTool() tool.Tool {
	return function.NewFunctionTool(func(_ context.Context, in echoInput) (string, error) {
		return in.Text, nil
	}, function.WithName("echo"))
}

func otherTool() tool.Tool {
	return function.NewFunctionTool(func(_ context.Context, in echoInput) (string, error) {
		return "other", nil
	}, function.WithName("shell"))
}

type failingProvider struct {
	StaticProvider
}

func (failingProvider) Tools(context.Context, *ExecutionConfig) ([]tool.Tool, error) {
	return nil, errors.New("tool registry down")
}

func (failingProvider) Retriever(context.Context, *ExecutionConfig) (knowledge.Retriever, error) {
	return nil, errors.New("index down")
}

// capturingRecords remembers the ids of created records.
type capturingRecords struct {
	*inmemory.Store
	mu  sync.Mutex
	ids []string
}

func (c *capturingRecords) Create(ctx context.Context, r *store.ExecutionRecord) (string, error) {
	id, err := c.Store.Create(ctx, r)
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
	return id, err
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithBuilder(graph.NewBuilder())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func drainEvents(sink *event.ChannelSink) []*event.Event {
	var out []*event.Event
	for {
		select {
		case e := <-sink.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func singleNode(name string) *graph.Definition {
	return &graph.Definition{
		Name:  name,
		Nodes: []graph.NodeSpec{{ID: name, Type: node.TypeLLM}},
		Edges: []graph.EdgeSpec{{Source: name, Target: graph.End}},
	}
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New()
	require.Error(t, err)
}

func TestExecute_Chat(t *testing.T) {
	sink := event.NewChannelSink(8, 0)
	m := &chattyModel{name: "chatty"}
	e := newEngine(t,
		WithProvider(&StaticProvider{DefaultModel: m}),
		WithTracker(tracker.New(tracker.WithSink(sink))),
	)

	res, err := e.Execute(context.Background(), &Request{Message: "hi", ConversationID: "conv-1"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, WorkflowChat, res.WorkflowType)
	assert.Equal(t, "Hello world", res.Response)
	assert.Equal(t, 6, res.Usage.TotalTokens)
	assert.Equal(t, "conv-1", res.ConversationID)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, []string{ChatAgentNode}, res.State.ExecutionHistory)
	assert.Equal(t, "conv-1", res.State.Metadata[MetaThreadID])
	assert.Equal(t, "chatty", res.State.Metadata[MetaModel])

	events := drainEvents(sink)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeWorkflowStarted, events[0].Type)
	assert.Equal(t, event.TypeWorkflowCompleted, events[1].Type)
	assert.Equal(t, "Hello world", events[1].Payload["response"])
}

func TestExecute_RejectsStreamingRequest(t *testing.T) {
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}))
	_, err := e.Execute(context.Background(), &Request{Message: "hi", Stream: true}, "u1")
	assert.ErrorIs(t, err, ErrStreamingRequest)
}

func TestExecute_ModelUnavailable(t *testing.T) {
	sink := event.NewChannelSink(8, 0)
	e := newEngine(t, WithProvider(&StaticProvider{}), WithTracker(tracker.New(tracker.WithSink(sink))))
	_, err := e.Execute(context.Background(), &Request{Message: "hi"}, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.NotEmpty(t, runErr.ExecutionID)
	assert.Empty(t, drainEvents(sink))
}

func TestExecute_TemplateRegistryTakesPrecedence(t *testing.T) {
	defs := inmemory.New()
	require.NoError(t, defs.PutTemplate("support", singleNode("stored")))
	e := newEngine(t,
		WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}),
		WithDefinitionStore(defs),
	)

	res, err := e.Execute(context.Background(), &Request{TemplateID: "support", Message: "hi"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stored"}, res.State.ExecutionHistory)

	require.NoError(t, e.Templates().Register("support", singleNode("registered")))
	res, err = e.Execute(context.Background(), &Request{TemplateID: "support", Message: "hi"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, WorkflowTemplate, res.WorkflowType)
	assert.Equal(t, []string{"registered"}, res.State.ExecutionHistory)
	assert.Equal(t, []string{"support"}, e.Templates().IDs())

	_, err = e.Execute(context.Background(), &Request{TemplateID: "missing", Message: "hi"}, "u1")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestExecute_DefinitionRunIsPersisted(t *testing.T) {
	ctx := context.Background()
	defs := inmemory.New()
	require.NoError(t, defs.PutDefinition("d1", singleNode("answer")))
	records := &capturingRecords{Store: inmemory.New()}
	e := newEngine(t,
		WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}),
		WithDefinitionStore(defs),
		WithTracker(tracker.New(tracker.WithRecordStore(records))),
	)

	res, err := e.Execute(ctx, &Request{DefinitionID: "d1", Message: "hi"}, "u1")
	require.NoError(t, err)
	require.Len(t, records.ids, 1)
	rec, err := records.Get(ctx, records.ids[0])
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Equal(t, res.ExecutionID, rec.ExecutionID)
	assert.Equal(t, "d1", rec.SourceID)
	assert.Equal(t, "Hello world", rec.Result["response"])

	_, err = e.Execute(ctx, &Request{Message: "hi"}, "u1")
	require.NoError(t, err)
	assert.Len(t, records.ids, 1)
}

func TestExecute_MissingDefinitionFails(t *testing.T) {
	ctx := context.Background()
	records := &capturingRecords{Store: inmemory.New()}
	sink := event.NewChannelSink(8, 0)
	e := newEngine(t,
		WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}),
		WithDefinitionStore(inmemory.New()),
		WithTracker(tracker.New(tracker.WithRecordStore(records), tracker.WithSink(sink))),
	)

	_, err := e.Execute(ctx, &Request{DefinitionID: "nope", Message: "hi"}, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.Len(t, records.ids, 1)
	rec, err := records.Get(ctx, records.ids[0])
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "nope")

	events := drainEvents(sink)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeWorkflowFailed, events[1].Type)
	assert.Equal(t, event.PriorityHigh, events[1].Priority)
}

func TestExecute_InvalidInlineGraph(t *testing.T) {
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}))
	_, err := e.Execute(context.Background(), &Request{
		Nodes: []graph.NodeSpec{{ID: "a", Type: node.TypeLLM}},
		Edges: []graph.EdgeSpec{{Source: "a", Target: "ghost"}},
	}, "u1")
	assert.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestExecute_ToolLoopWithAllowList(t *testing.T) {
	m := &insistentModel{}
	e := newEngine(t, WithProvider(&StaticProvider{
		DefaultModel: m,
		ToolSets:     []tool.ToolSet{tool.NewToolSet("default", echoTool(), otherTool())},
	}))

	res, err := e.Execute(context.Background(), &Request{
		Message:      "hi",
		EnableTools:  true,
		ToolNames:    []string{"ech*"},
		MaxToolCalls: model.Ptr(1),
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{ChatAgentNode, ChatToolsNode, ChatAgentNode, ChatFinalizeNode}, res.State.ExecutionHistory)
	assert.Equal(t, 1, res.ToolCallCount)
	assert.Equal(t, []int{1, 1, 0}, m.tools)

	var toolTurns []model.Message
	for _, msg := range res.State.Messages {
		if msg.Role == model.RoleTool {
			toolTurns = append(toolTurns, msg)
		}
	}
	require.Len(t, toolTurns, 1)
	assert.Equal(t, "hi", toolTurns[0].Content)
}

func TestExecute_ToolsDisabledSkipsLoop(t *testing.T) {
	m := &insistentModel{}
	e := newEngine(t, WithProvider(&StaticProvider{
		DefaultModel: m,
		ToolSets:     []tool.ToolSet{tool.NewToolSet("default", echoTool())},
	}))
	res, err := e.Execute(context.Background(), &Request{Message: "hi"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{ChatAgentNode}, res.State.ExecutionHistory)
	assert.Equal(t, []int{0}, m.tools)
}

func TestExecute_AcquisitionFailuresDegrade(t *testing.T) {
	e := newEngine(t, WithProvider(&failingProvider{StaticProvider{DefaultModel: &chattyModel{}}}))
	res, err := e.Execute(context.Background(), &Request{
		Message:         "hi",
		EnableTools:     true,
		EnableRetrieval: true,
		DocumentIDs:     []string{"doc"},
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{ChatAgentNode}, res.State.ExecutionHistory)
}

func TestExecute_MemoryAndRetrieval(t *testing.T) {
	m := &chattyModel{}
	kb := kinmemory.New(
		&knowledge.Document{ID: "refunds", Name: "Refunds", Content: "refunds take five days"},
		&knowledge.Document{ID: "shipping", Name: "Shipping", Content: "shipping is free"},
	)
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: m, Knowledge: kb}))

	res, err := e.Execute(context.Background(), &Request{
		Message:         "how long do refunds take",
		SystemPrompt:    "Be brief.",
		EnableMemory:    true,
		EnableRetrieval: true,
		DocumentIDs:     []string{"refunds"},
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{ChatMemoryNode, ChatRetrievalNode, ChatAgentNode}, res.State.ExecutionHistory)
	assert.Contains(t, res.State.RetrievalContext, "five days")

	calls := m.calls()
	require.Len(t, calls, 1)
	system := calls[0].Messages[0]
	assert.Equal(t, model.RoleSystem, system.Role)
	assert.True(t, strings.HasPrefix(system.Content, "Be brief."))
	assert.Contains(t, system.Content, "five days")
	assert.NotContains(t, system.Content, "free")

	// Retrieval needs document ids.
	res, err = e.Execute(context.Background(), &Request{Message: "hi", EnableRetrieval: true}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{ChatAgentNode}, res.State.ExecutionHistory)
}

func TestExecute_NodeModelOverride(t *testing.T) {
	main := &chattyModel{name: "main"}
	critic := &chattyModel{name: "critic"}
	e := newEngine(t, WithProvider(&StaticProvider{
		DefaultModel: main,
		Models:       map[string]model.Model{"critic": critic},
	}))
	_, err := e.Execute(context.Background(), &Request{
		Message: "hi",
		Nodes: []graph.NodeSpec{
			{ID: "draft", Type: node.TypeLLM},
			{ID: "review", Type: node.TypeLLM, Config: map[string]any{node.CfgModel: "critic"}},
		},
		Edges: []graph.EdgeSpec{
			{Source: "draft", Target: "review"},
			{Source: "review", Target: graph.End},
		},
	}, "u1")
	require.NoError(t, err)
	assert.Len(t, main.calls(), 1)
	assert.Len(t, critic.calls(), 1)
}

func TestExecute_Pricing(t *testing.T) {
	e := newEngine(t,
		WithProvider(&StaticProvider{DefaultModel: &chattyModel{name: "chatty"}}),
		WithPricing(Pricing{"chatty": {InputPer1K: 1, OutputPer1K: 2}}),
	)
	res, err := e.Execute(context.Background(), &Request{Message: "hi"}, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.008, res.Cost, 1e-9)
	assert.InDelta(t, 0.008, res.Map()["cost"], 1e-9)
}

func collectStream(chunks <-chan *Chunk, errc <-chan error) ([]*Chunk, error) {
	var out []*Chunk
	for c := range chunks {
		out = append(out, c)
	}
	return out, <-errc
}

func TestExecuteStream_MatchesBatch(t *testing.T) {
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &chattyModel{name: "chatty"}}))
	ctx := context.Background()

	batch, err := e.Execute(ctx, &Request{Message: "hi"}, "u1")
	require.NoError(t, err)

	chunks, err := collectStream(e.ExecuteStream(ctx, &Request{Message: "hi", Stream: true}, "u1"))
	require.NoError(t, err)

	var types []ChunkType
	var tokens string
	for _, c := range chunks {
		types = append(types, c.Type)
		if c.Type == ChunkToken {
			tokens += c.Content
		}
	}
	assert.Equal(t, []ChunkType{ChunkToken, ChunkToken, ChunkComplete, ChunkDone}, types)
	assert.Equal(t, "Hello world", tokens)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 6, chunks[2].Usage.TotalTokens)

	done := chunks[len(chunks)-1]
	require.NotNil(t, done.Result)
	assert.GreaterOrEqual(t, done.ElapsedMs, int64(0))
	streamed := done.Result
	assert.Equal(t, batch.Response, streamed.Response)
	assert.Equal(t, batch.Usage, streamed.Usage)
	assert.Equal(t, batch.ToolCallCount, streamed.ToolCallCount)
	assert.Equal(t, batch.WorkflowType, streamed.WorkflowType)
}

// brokenFirstModel fails its first call after streaming a fragment and
// answers "ok" afterwards.
type brokenFirstModel struct {
	mu    sync.Mutex
	calls int
}

func (m *brokenFirstModel) GenerateContent(_ context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.mu.Lock()
	m.calls++
	first := m.calls == 1
	m.mu.Unlock()
	ch := make(chan *model.Response, 2)
	if first {
		if req.Stream {
			ch <- &model.Response{IsPartial: true, Choices: []model.Choice{{Delta: model.Message{Content: "partial "}}}}
		}
		ch <- &model.Response{Error: &model.ResponseError{Type: model.ErrorTypeAPIError, Message: "upstream reset"}, Done: true}
		close(ch)
		return ch, nil
	}
	if req.Stream {
		ch <- &model.Response{IsPartial: true, Choices: []model.Choice{{Delta: model.Message{Content: "ok"}}}}
	}
	ch <- &model.Response{
		Choices: []model.Choice{{Message: model.NewAssistantMessage("ok"), FinishReason: model.Ptr(model.FinishReasonStop)}},
		Usage:   &model.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		Done:    true,
	}
	close(ch)
	return ch, nil
}

func (m *brokenFirstModel) Info() model.Info { return model.Info{Name: "broken-first"} }

func TestExecuteStream_DropsDeltasOfFailedCall(t *testing.T) {
	req := func(stream bool) *Request {
		return &Request{
			Message: "hi",
			Stream:  stream,
			Nodes: []graph.NodeSpec{
				{ID: "first", Type: node.TypeLLM},
				{ID: "second", Type: node.TypeLLM},
			},
			Edges: []graph.EdgeSpec{
				{Source: "first", Target: "second"},
				{Source: "second", Target: graph.End},
			},
		}
	}
	ctx := context.Background()

	batchEngine := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &brokenFirstModel{}}))
	batch, err := batchEngine.Execute(ctx, req(false), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ok", batch.Response)
	assert.Contains(t, batch.NodeErrors, state.ErrorKey(state.ErrorKindModel, "first"))

	streamEngine := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &brokenFirstModel{}}))
	chunks, err := collectStream(streamEngine.ExecuteStream(ctx, req(true), "u1"))
	require.NoError(t, err)

	var completes []string
	for _, c := range chunks {
		if c.Type == ChunkComplete {
			completes = append(completes, c.Content)
		}
	}
	assert.Equal(t, []string{"ok"}, completes)
	done := chunks[len(chunks)-1]
	require.Equal(t, ChunkDone, done.Type)
	assert.Equal(t, batch.Response, done.Result.Response)
	assert.Equal(t, batch.Usage, done.Result.Usage)
}

func TestExecuteStream_Failure(t *testing.T) {
	sink := event.NewChannelSink(8, 0)
	e := newEngine(t,
		WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}),
		WithDefinitionStore(inmemory.New()),
		WithTracker(tracker.New(tracker.WithSink(sink))),
	)
	chunks, err := collectStream(e.ExecuteStream(context.Background(), &Request{DefinitionID: "nope"}, "u1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, chunks)
	events := drainEvents(sink)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeWorkflowFailed, events[1].Type)
}

func TestExecuteStream_NilRequest(t *testing.T) {
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &chattyModel{}}))
	chunks, err := collectStream(e.ExecuteStream(context.Background(), nil, "u1"))
	require.Error(t, err)
	assert.Empty(t, chunks)
}

func TestSeedState(t *testing.T) {
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: &chattyModel{name: "chatty"}}),
		WithDefaults(Defaults{Provider: "openai"}))
	ec, err := e.createContext(context.Background(), &Request{
		Message:         "hello",
		Input:           map[string]any{"topic": "billing"},
		EnableRetrieval: true,
		DocumentIDs:     []string{"d1"},
		WorkflowConfig:  map[string]any{"tier": "gold"},
	}, "u9")
	require.NoError(t, err)
	c := ec.State
	require.Len(t, c.Messages, 1)
	assert.Equal(t, "hello", c.Messages[0].Content)
	caps := c.Capabilities()
	assert.Equal(t, true, caps[state.CapEnableRetrieval])
	assert.Equal(t, false, caps[state.CapEnableTools])
	assert.Equal(t, state.DefaultMaxToolCalls, c.MaxToolCalls())
	assert.Equal(t, "gold", c.Variables["tier"])
	assert.Equal(t, "billing", c.Variables[VarInput].(map[string]any)["topic"])
	assert.Equal(t, []string{"d1"}, c.Variables[node.VarDocumentIDs])
	assert.Equal(t, ec.ExecutionID, c.Metadata[MetaThreadID])
	assert.Equal(t, "openai", c.Metadata[MetaProvider])
	assert.Equal(t, "u9", c.Metadata[MetaUserID])
}

func TestExecutionContext_ThreadID(t *testing.T) {
	ec := &ExecutionContext{ExecutionID: "e1"}
	assert.Equal(t, "e1", ec.ThreadID())
	ec.ConversationID = "c1"
	assert.Equal(t, "c1", ec.ThreadID())
}

func TestModelDefaults(t *testing.T) {
	assert.Nil(t, modelDefaults(&ExecutionConfig{}))

	got := modelDefaults(&ExecutionConfig{SystemPrompt: "shared", Temperature: model.Ptr(0.2)})
	for _, typ := range []string{node.TypeLLM, node.TypeCallModel, node.TypeFinalize} {
		require.Contains(t, got, typ)
		assert.Equal(t, "shared", got[typ][node.CfgSystemPrompt])
		assert.Equal(t, 0.2, got[typ][node.CfgTemperature])
		assert.NotContains(t, got[typ], node.CfgMaxTokens)
	}
	assert.NotContains(t, got, node.TypeLoop)
}

func TestExecute_PromptsShareOnePlan(t *testing.T) {
	m := &chattyModel{name: "chatty"}
	b := graph.NewBuilder()
	e := newEngine(t, WithBuilder(b), WithProvider(&StaticProvider{DefaultModel: m}))
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := e.Execute(ctx, &Request{Message: "hi", SystemPrompt: fmt.Sprintf("persona %d", i)}, "u1")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.CachedPlans())

	calls := m.calls()
	require.Len(t, calls, 20)
	last := calls[19].Messages[0]
	assert.Equal(t, model.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "persona 19")
}

func TestExecute_NodePromptWinsOverRequest(t *testing.T) {
	m := &chattyModel{name: "chatty"}
	e := newEngine(t, WithProvider(&StaticProvider{DefaultModel: m}))
	_, err := e.Execute(context.Background(), &Request{
		Message:      "hi",
		SystemPrompt: "from request",
		Nodes: []graph.NodeSpec{{ID: "agent", Type: node.TypeLLM, Config: map[string]any{
			node.CfgSystemPrompt: "from node",
		}}},
		Edges: []graph.EdgeSpec{{Source: "agent", Target: graph.End}},
	}, "u1")
	require.NoError(t, err)
	calls := m.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "from node", calls[0].Messages[0].Content)
}
