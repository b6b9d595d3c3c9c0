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
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/graph/node"
)

// Node ids of the chat graph.
const (
	ChatMemoryNode    = "memory"
	ChatRetrievalNode = "retrieval"
	ChatAgentNode     = "agent"
	ChatToolsNode     = "tools"
	ChatFinalizeNode  = "finalize"
)

// Routing conditions of the tool loop.
const (
	condCallTools = "has_tool_calls and tool_calls < variable max_tool_calls"
	condFinalize  = "has_tool_calls and tool_calls >= variable max_tool_calls"
	condAnswered  = "no_tool_calls"
)

// chatDefinition builds the graph of a chat run: optional memory and
// retrieval steps, one model call and, when tools are available, a tool
// loop closed by a finalize call.
func chatDefinition(cfg *ExecutionConfig, withRetrieval, withTools bool) *graph.Definition {
	def := &graph.Definition{Name: "chat"}
	var prev string
	chain := func(spec graph.NodeSpec) {
		def.Nodes = append(def.Nodes, spec)
		if prev != "" {
			def.Edges = append(def.Edges, graph.EdgeSpec{Source: prev, Target: spec.ID})
		}
		prev = spec.ID
	}

	if cfg.EnableMemory {
		memCfg := map[string]any{}
		if cfg.MemoryWindow > 0 {
			memCfg[node.CfgWindow] = cfg.MemoryWindow
		}
		chain(graph.NodeSpec{ID: ChatMemoryNode, Type: node.TypeMemory, Config: memCfg})
	}
	if withRetrieval {
		retCfg := map[string]any{}
		if cfg.MaxDocuments > 0 {
			retCfg[node.CfgLimit] = cfg.MaxDocuments
		}
		chain(graph.NodeSpec{ID: ChatRetrievalNode, Type: node.TypeRetrieval, Config: retCfg})
	}
	chain(graph.NodeSpec{ID: ChatAgentNode, Type: node.TypeCallModel})

	if !withTools {
		def.Edges = append(def.Edges, graph.EdgeSpec{Source: ChatAgentNode, Target: graph.End})
		def.EntryPoint = def.Nodes[0].ID
		return def
	}
	def.Nodes = append(def.Nodes,
		graph.NodeSpec{ID: ChatToolsNode, Type: node.TypeExecuteTools},
		graph.NodeSpec{ID: ChatFinalizeNode, Type: node.TypeFinalize},
	)
	def.Edges = append(def.Edges,
		graph.EdgeSpec{Source: ChatAgentNode, Target: ChatToolsNode, Condition: condCallTools},
		graph.EdgeSpec{Source: ChatAgentNode, Target: ChatFinalizeNode, Condition: condFinalize},
		graph.EdgeSpec{Source: ChatAgentNode, Target: graph.End, Condition: condAnswered},
		graph.EdgeSpec{Source: ChatToolsNode, Target: ChatAgentNode},
		graph.EdgeSpec{Source: ChatFinalizeNode, Target: graph.End},
	)
	def.EntryPoint = def.Nodes[0].ID
	return def
}
