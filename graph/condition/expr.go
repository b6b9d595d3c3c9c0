//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package condition implements the edge routing condition language.
//
// Conditions are parsed once into an Expr and evaluated against a
// state.NodeContext without side effects. Grammar:
//
//	expr     := or
//	or       := and { " or " and }
//	and      := unary { " and " unary }
//	unary    := "not " unary | atom
//	atom     := "true" | "false"
//	          | "has_tool_calls" | "no_tool_calls" | "has_errors"
//	          | "tool_calls" op (integer | "variable max_tool_calls")
//	          | "variable" ["capabilities"] name "equals" value
//	          | "loop_" id "_continue"
//	op       := "<" | "<=" | ">" | ">="
//
// There is no grouping. Text matching no rule parses to Unknown, which
// evaluates to true.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// Expr is a parsed condition.
type Expr interface {
	// Eval evaluates the condition. It never modifies c.
	Eval(c *state.NodeContext) bool
	// String returns the canonical text of the condition.
	String() string
}

// Evaluate parses and evaluates text in one step.
func Evaluate(text string, c *state.NodeContext) bool {
	return Parse(text).Eval(c)
}

// And is true when every operand is true.
type And struct{ Operands []Expr }

// Eval implements Expr.
func (e And) Eval(c *state.NodeContext) bool {
	for _, x := range e.Operands {
		if !x.Eval(c) {
			return false
		}
	}
	return true
}

func (e And) String() string { return join(e.Operands, " and ") }

// Or is true when any operand is true.
type Or struct{ Operands []Expr }

// Eval implements Expr.
func (e Or) Eval(c *state.NodeContext) bool {
	for _, x := range e.Operands {
		if x.Eval(c) {
			return true
		}
	}
	return false
}

func (e Or) String() string { return join(e.Operands, " or ") }

// Not negates its operand.
type Not struct{ X Expr }

// Eval implements Expr.
func (e Not) Eval(c *state.NodeContext) bool { return !e.X.Eval(c) }

func (e Not) String() string { return "not " + e.X.String() }

// Literal is a constant.
type Literal struct{ Value bool }

// Eval implements Expr.
func (e Literal) Eval(*state.NodeContext) bool { return e.Value }

func (e Literal) String() string { return strconv.FormatBool(e.Value) }

// HasToolCalls is true when the last turn requests tools and its finish
// reason is not "stop".
type HasToolCalls struct{}

// Eval implements Expr.
func (HasToolCalls) Eval(c *state.NodeContext) bool { return pendingToolCalls(c) }

func (HasToolCalls) String() string { return "has_tool_calls" }

// NoToolCalls is the complement of HasToolCalls.
type NoToolCalls struct{}

// Eval implements Expr.
func (NoToolCalls) Eval(c *state.NodeContext) bool { return !pendingToolCalls(c) }

func (NoToolCalls) String() string { return "no_tool_calls" }

func pendingToolCalls(c *state.NodeContext) bool {
	last, ok := c.LastMessage()
	if !ok || !last.HasToolCalls() {
		return false
	}
	return last.FinishReason != model.FinishReasonStop
}

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
)

func (o Op) compare(a, b int) bool {
	switch o {
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpGT:
		return a > b
	case OpGE:
		return a >= b
	}
	return false
}

// ToolCallsCompare compares tool_call_count against a literal, or against
// capabilities.max_tool_calls when UseMaxToolCalls is set.
type ToolCallsCompare struct {
	Op              Op
	Limit           int
	UseMaxToolCalls bool
}

// Eval implements Expr.
func (e ToolCallsCompare) Eval(c *state.NodeContext) bool {
	limit := e.Limit
	if e.UseMaxToolCalls {
		limit = c.MaxToolCalls()
	}
	var count int
	if c != nil {
		count = c.ToolCallCount
	}
	return e.Op.compare(count, limit)
}

func (e ToolCallsCompare) String() string {
	if e.UseMaxToolCalls {
		return fmt.Sprintf("tool_calls %s variable max_tool_calls", e.Op)
	}
	return fmt.Sprintf("tool_calls %s %d", e.Op, e.Limit)
}

// HasErrors is true when any node recorded an error.
type HasErrors struct{}

// Eval implements Expr.
func (HasErrors) Eval(c *state.NodeContext) bool { return c.HasErrors() }

func (HasErrors) String() string { return "has_errors" }

// VariableEquals compares a variable, case-insensitively, against Value.
// Path is a dotted lookup into variables. A single-segment path that is not
// a variable falls back to the capabilities map. Capabilities forces the
// lookup into the capabilities map. Unresolved paths read as "None".
type VariableEquals struct {
	Path         []string
	Capabilities bool
	Value        string
}

// Eval implements Expr.
func (e VariableEquals) Eval(c *state.NodeContext) bool {
	return strings.EqualFold(stringify(e.resolve(c)), e.Value)
}

func (e VariableEquals) resolve(c *state.NodeContext) (any, bool) {
	if c == nil || len(e.Path) == 0 {
		return nil, false
	}
	if e.Capabilities {
		return lookup(c.Capabilities(), e.Path)
	}
	if v, ok := lookup(c.Variables, e.Path); ok {
		return v, true
	}
	if len(e.Path) == 1 {
		return lookup(c.Capabilities(), e.Path)
	}
	return nil, false
}

func (e VariableEquals) String() string {
	if e.Capabilities {
		return fmt.Sprintf("variable capabilities %s equals %s", strings.Join(e.Path, "."), e.Value)
	}
	return fmt.Sprintf("variable %s equals %s", strings.Join(e.Path, "."), e.Value)
}

// LoopContinue reads a loop node's continue flag, false if absent.
type LoopContinue struct{ LoopID string }

// Eval implements Expr.
func (e LoopContinue) Eval(c *state.NodeContext) bool {
	if c == nil {
		return false
	}
	v, _ := c.Metadata[state.LoopContinueKey(e.LoopID)].(bool)
	return v
}

func (e LoopContinue) String() string { return state.LoopContinueKey(e.LoopID) }

// Unknown is unrecognised condition text. It evaluates to true so that a
// malformed condition never blocks routing.
type Unknown struct{ Text string }

// Eval implements Expr.
func (e Unknown) Eval(*state.NodeContext) bool {
	log.Debugf("condition: unknown condition %q evaluated as true", e.Text)
	return true
}

func (e Unknown) String() string { return e.Text }

func lookup(m map[string]any, path []string) (any, bool) {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = mm[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any, ok bool) string {
	if !ok || v == nil {
		return "None"
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func join(xs []Expr, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return strings.Join(parts, sep)
}
