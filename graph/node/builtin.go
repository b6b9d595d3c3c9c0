//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import "trpc.group/trpc-go/trpc-workflow-go/graph/condition"

const llmSchema = `{
	"type": "object",
	"properties": {
		"system_prompt": {"type": "string"},
		"temperature":   {"type": "number", "minimum": 0, "maximum": 2},
		"max_tokens":    {"type": "integer", "minimum": 1},
		"finalize":      {"type": "boolean"},
		"model":         {"type": "string", "minLength": 1}
	}
}`

const toolsSchema = `{"type": "object"}`

const conditionalSchema = `{
	"type": "object",
	"properties": {"condition": {"type": "string", "minLength": 1}},
	"required": ["condition"]
}`

const loopSchema = `{
	"type": "object",
	"properties": {"max_iterations": {"type": "integer", "minimum": 0}}
}`

const variableSchema = `{
	"type": "object",
	"properties": {
		"set":                      {"type": "object"},
		"increment":                {"type": "object", "additionalProperties": {"type": "number"}},
		"capture_last_response_as": {"type": "string"}
	}
}`

const memorySchema = `{
	"type": "object",
	"properties": {"window": {"type": "integer", "minimum": 1}}
}`

const retrievalSchema = `{
	"type": "object",
	"properties": {
		"limit":        {"type": "integer", "minimum": 1},
		"document_ids": {"type": "array", "items": {"type": "string"}}
	}
}`

func registerBuiltins(r *Registry) {
	llm := func(id string, cfg map[string]any) (Node, error) {
		return NewLLMNode(id, cfg), nil
	}
	finalize := func(id string, cfg map[string]any) (Node, error) {
		n := NewLLMNode(id, cfg)
		n.finalize = true
		return n, nil
	}
	tools := func(id string, _ map[string]any) (Node, error) {
		return NewToolsNode(id), nil
	}
	passThroughCreator := func(id string, _ map[string]any) (Node, error) {
		return &passThrough{id: id}, nil
	}

	r.mustRegister(TypeLLM, llm, llmSchema)
	r.mustRegister(TypeCallModel, llm, llmSchema)
	r.mustRegister(TypeFinalize, finalize, llmSchema)
	r.mustRegister(TypeTools, tools, toolsSchema)
	r.mustRegister(TypeExecuteTools, tools, toolsSchema)
	r.mustRegister(TypeConditional, func(id string, cfg map[string]any) (Node, error) {
		return NewConditionalNode(id, condition.Parse(cfgString(cfg, CfgCondition))), nil
	}, conditionalSchema)
	r.mustRegister(TypeLoop, func(id string, cfg map[string]any) (Node, error) {
		return NewLoopNode(id, cfgInt(cfg, CfgMaxIterations, DefaultMaxIterations)), nil
	}, loopSchema)
	r.mustRegister(TypeVariable, func(id string, cfg map[string]any) (Node, error) {
		return NewVariableNode(id, cfg), nil
	}, variableSchema)
	r.mustRegister(TypeMemory, func(id string, cfg map[string]any) (Node, error) {
		return NewMemoryNode(id, cfgInt(cfg, CfgWindow, DefaultMemoryWindow)), nil
	}, memorySchema)
	r.mustRegister(TypeRetrieval, func(id string, cfg map[string]any) (Node, error) {
		return NewRetrievalNode(id, cfgInt(cfg, CfgLimit, DefaultRetrievalLimit), toStrings(cfg[CfgDocumentIDs])), nil
	}, retrievalSchema)
	r.mustRegister(TypeStart, passThroughCreator, "")
	r.mustRegister(TypeEnd, passThroughCreator, "")
}
