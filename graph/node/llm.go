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
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

const (
	summaryPrefix        = "Previous conversation summary: "
	retrievalContextHead = "Relevant context:\n"
)

// errNoModel is reported when a model-call node runs without a model.
var errNoModel = errors.New("no model bound to node")

// LLMNode calls the model with the current transcript.
//
// A finalize node never binds tools and drops any tool requests from the
// model's reply, so that a tool loop routed into it always ends.
type LLMNode struct {
	id           string
	systemPrompt string
	temperature  *float64
	maxTokens    *int
	finalize     bool

	model model.Model
	tools []tool.Tool
}

var (
	_ Node             = (*LLMNode)(nil)
	_ ResourceBindable = (*LLMNode)(nil)
)

// NewLLMNode creates a model-call node from config.
func NewLLMNode(id string, cfg map[string]any) *LLMNode {
	n := &LLMNode{
		id:           id,
		systemPrompt: cfgString(cfg, CfgSystemPrompt),
		finalize:     cfgBool(cfg, CfgFinalize),
	}
	if t, ok := cfgFloat(cfg, CfgTemperature); ok {
		n.temperature = model.Ptr(t)
	}
	if mt := cfgInt(cfg, CfgMaxTokens, 0); mt > 0 {
		n.maxTokens = model.Ptr(mt)
	}
	return n
}

// ID implements Node.
func (n *LLMNode) ID() string { return n.id }

// IsFinalize reports whether the node runs without tool bindings.
func (n *LLMNode) IsFinalize() bool { return n.finalize }

// SetModel implements ResourceBindable.
func (n *LLMNode) SetModel(m model.Model) { n.model = m }

// SetRetriever implements ResourceBindable. Model-call nodes read retrieval
// context from state instead.
func (n *LLMNode) SetRetriever(knowledge.Retriever) {}

// SetTools implements ResourceBindable.
func (n *LLMNode) SetTools(tools []tool.Tool) { n.tools = tools }

// Execute implements Node.
func (n *LLMNode) Execute(ctx context.Context, c *state.NodeContext) (*state.Update, error) {
	msg, usage, err := n.call(ctx, c)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warnf("node %s: model call failed: %v", n.id, err)
		return state.NewUpdate().
			AddMessages(model.NewAssistantMessage(fmt.Sprintf("I encountered an error while generating a response: %v", err))).
			SetError(state.ErrorKindModel, n.id, err.Error()), nil
	}
	u := state.NewUpdate().AddMessages(msg)
	if !usage.IsZero() {
		u.AddUsage(usage)
	}
	return u, nil
}

func (n *LLMNode) call(ctx context.Context, c *state.NodeContext) (model.Message, model.Usage, error) {
	if n.model == nil {
		return model.Message{}, model.Usage{}, errNoModel
	}
	emitter := EmitterFromContext(ctx)
	req := &model.Request{
		Messages: n.buildMessages(c),
		GenerationConfig: model.GenerationConfig{
			MaxTokens:   n.maxTokens,
			Temperature: n.temperature,
			Stream:      emitter != nil,
		},
	}
	if len(n.tools) > 0 && !n.finalize {
		req.Tools = tool.ToMap(n.tools)
	}

	ch, err := n.model.GenerateContent(ctx, req)
	if err != nil {
		return model.Message{}, model.Usage{}, err
	}
	var onDelta func(*model.Response)
	if emitter != nil {
		onDelta = func(rsp *model.Response) {
			if delta := rsp.DeltaContent(); delta != "" {
				emitter.EmitToken(ctx, n.id, delta)
			}
		}
	}
	rsp, err := model.Collect(ch, onDelta)
	if err != nil {
		return model.Message{}, model.Usage{}, err
	}

	msg := rsp.FinalMessage()
	if n.finalize && msg.HasToolCalls() {
		log.Warnf("node %s: finalize node dropped %d tool requests", n.id, len(msg.ToolCalls))
		msg.ToolCalls = nil
		msg.FinishReason = model.FinishReasonStop
	}
	var usage model.Usage
	if rsp.Usage != nil {
		usage = *rsp.Usage
	}
	if emitter != nil {
		emitter.EmitComplete(ctx, n.id, msg, usage)
	}
	return msg, usage, nil
}

// buildMessages prepends the summary turn and the system turn to the
// transcript, limited to the memory window when one is set.
func (n *LLMNode) buildMessages(c *state.NodeContext) []model.Message {
	var msgs []model.Message
	if summary := strings.TrimSpace(c.ConversationSummary); summary != "" {
		if !isContextPhrased(summary) {
			summary = summaryPrefix + summary
		}
		msgs = append(msgs, model.NewSystemMessage(summary))
	}
	if sys := n.systemContent(c.RetrievalContext); sys != "" {
		msgs = append(msgs, model.NewSystemMessage(sys))
	}
	return append(msgs, windowed(c.Messages, memoryWindow(c))...)
}

func (n *LLMNode) systemContent(retrieval string) string {
	retrieval = strings.TrimSpace(retrieval)
	switch {
	case n.systemPrompt != "" && retrieval != "":
		return n.systemPrompt + "\n\n" + retrievalContextHead + retrieval
	case retrieval != "":
		return retrievalContextHead + retrieval
	default:
		return n.systemPrompt
	}
}

func isContextPhrased(summary string) bool {
	lower := strings.ToLower(summary)
	return strings.HasPrefix(lower, "previous conversation") ||
		strings.HasPrefix(lower, "conversation summary") ||
		strings.HasPrefix(lower, "summary of")
}

func memoryWindow(c *state.NodeContext) int {
	n, _ := state.ToInt(c.Variables[VarMemoryWindow])
	return n
}

// windowed returns the last window turns, moving the cut back so that tool
// results keep the assistant turn that requested them. Non-positive window
// means the whole transcript.
func windowed(msgs []model.Message, window int) []model.Message {
	if window <= 0 || len(msgs) <= window {
		return msgs
	}
	start := len(msgs) - window
	for start > 0 && msgs[start].Role == model.RoleTool {
		start--
	}
	return msgs[start:]
}
