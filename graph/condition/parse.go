//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package condition

import (
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/log"
)

const (
	kwAnd          = " and "
	kwOr           = " or "
	kwNot          = "not "
	kwVariable     = "variable"
	kwEquals       = "equals"
	kwCapabilities = "capabilities"
	kwToolCalls    = "tool_calls"
	kwMaxToolCalls = "max_tool_calls"
	loopPrefix     = "loop_"
	loopSuffix     = "_continue"
)

// Parse parses condition text. It never fails: text that matches no rule
// yields Unknown, and empty text yields Literal{true}.
func Parse(text string) Expr {
	norm := strings.Join(strings.Fields(text), " ")
	if norm == "" {
		return Literal{Value: true}
	}
	return parseOr(norm)
}

// MustBeKnown reports whether expr contains no Unknown node.
func MustBeKnown(expr Expr) bool {
	switch e := expr.(type) {
	case Unknown:
		return false
	case And:
		for _, x := range e.Operands {
			if !MustBeKnown(x) {
				return false
			}
		}
	case Or:
		for _, x := range e.Operands {
			if !MustBeKnown(x) {
				return false
			}
		}
	case Not:
		return MustBeKnown(e.X)
	}
	return true
}

func parseOr(s string) Expr {
	parts := splitKeyword(s, kwOr)
	if len(parts) == 1 {
		return parseAnd(s)
	}
	ops := make([]Expr, len(parts))
	for i, p := range parts {
		ops[i] = parseAnd(p)
	}
	return Or{Operands: ops}
}

func parseAnd(s string) Expr {
	parts := splitKeyword(s, kwAnd)
	if len(parts) == 1 {
		return parseUnary(s)
	}
	ops := make([]Expr, len(parts))
	for i, p := range parts {
		ops[i] = parseUnary(p)
	}
	return And{Operands: ops}
}

// splitKeyword splits on a keyword outside variable values. The value of a
// "variable ... equals" clause runs to the next keyword, so values cannot
// contain " and " or " or ".
func splitKeyword(s, kw string) []string {
	lower := strings.ToLower(s)
	var parts []string
	for {
		i := strings.Index(lower, kw)
		if i < 0 {
			break
		}
		parts = append(parts, strings.TrimSpace(s[:i]))
		s = s[i+len(kw):]
		lower = lower[i+len(kw):]
	}
	return append(parts, strings.TrimSpace(s))
}

func parseUnary(s string) Expr {
	if strings.HasPrefix(strings.ToLower(s), kwNot) {
		return Not{X: parseUnary(strings.TrimSpace(s[len(kwNot):]))}
	}
	return parseAtom(s)
}

func parseAtom(s string) Expr {
	lower := strings.ToLower(s)
	switch lower {
	case "true":
		return Literal{Value: true}
	case "false":
		return Literal{Value: false}
	case "has_tool_calls":
		return HasToolCalls{}
	case "no_tool_calls":
		return NoToolCalls{}
	case "has_errors":
		return HasErrors{}
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		log.Warnf("condition: empty operand treated as always true")
		return Unknown{Text: s}
	}
	switch {
	case strings.EqualFold(fields[0], kwToolCalls):
		if e, ok := parseToolCalls(fields[1:]); ok {
			return e
		}
	case strings.EqualFold(fields[0], kwVariable):
		if e, ok := parseVariable(fields[1:]); ok {
			return e
		}
	case len(fields) == 1 && strings.HasPrefix(lower, loopPrefix) && strings.HasSuffix(lower, loopSuffix):
		id := s[len(loopPrefix) : len(s)-len(loopSuffix)]
		if id != "" {
			return LoopContinue{LoopID: id}
		}
	}
	log.Warnf("condition: unrecognised condition %q treated as always true", s)
	return Unknown{Text: s}
}

func parseToolCalls(rest []string) (Expr, bool) {
	if len(rest) < 2 {
		return nil, false
	}
	op := Op(rest[0])
	switch op {
	case OpLT, OpLE, OpGT, OpGE:
	default:
		return nil, false
	}
	if len(rest) == 3 && strings.EqualFold(rest[1], kwVariable) && strings.EqualFold(rest[2], kwMaxToolCalls) {
		return ToolCallsCompare{Op: op, UseMaxToolCalls: true}, true
	}
	if len(rest) != 2 {
		return nil, false
	}
	n, err := strconv.Atoi(rest[1])
	if err != nil {
		return nil, false
	}
	return ToolCallsCompare{Op: op, Limit: n}, true
}

func parseVariable(rest []string) (Expr, bool) {
	eq := -1
	for i, f := range rest {
		if strings.EqualFold(f, kwEquals) {
			eq = i
			break
		}
	}
	if eq < 1 || eq == len(rest)-1 {
		return nil, false
	}
	name := rest[:eq]
	value := unquote(strings.Join(rest[eq+1:], " "))
	caps := false
	if len(name) == 2 && strings.EqualFold(name[0], kwCapabilities) {
		caps = true
		name = name[1:]
	}
	if len(name) != 1 {
		return nil, false
	}
	path := strings.Split(name[0], ".")
	for _, p := range path {
		if p == "" {
			return nil, false
		}
	}
	return VariableEquals{Path: path, Capabilities: caps, Value: value}, true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
