//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import "trpc.group/trpc-go/trpc-workflow-go/graph/state"

// Config keys shared by the built-in node types.
const (
	CfgSystemPrompt  = "system_prompt"
	CfgTemperature   = "temperature"
	CfgMaxTokens     = "max_tokens"
	CfgFinalize      = "finalize"
	CfgModel         = "model"
	CfgCondition     = "condition"
	CfgMaxIterations = "max_iterations"
	CfgSet           = "set"
	CfgIncrement     = "increment"
	CfgCaptureAs     = "capture_last_response_as"
	CfgWindow        = "window"
	CfgLimit         = "limit"
	CfgDocumentIDs   = "document_ids"
)

// Variable keys written or read by built-in nodes.
const (
	// VarMemoryWindow bounds the transcript turns model-call nodes send.
	VarMemoryWindow = "memory_window"
	// VarDocumentIDs restricts retrieval when the node config has none.
	VarDocumentIDs = "document_ids"
)

func cfgString(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func cfgBool(cfg map[string]any, key string) bool {
	b, _ := cfg[key].(bool)
	return b
}

func cfgInt(cfg map[string]any, key string, def int) int {
	if n, ok := state.ToInt(cfg[key]); ok {
		return n
	}
	return def
}

func cfgFloat(cfg map[string]any, key string) (float64, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func cfgMap(cfg map[string]any, key string) map[string]any {
	m, _ := cfg[key].(map[string]any)
	return m
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
