//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"errors"
	"fmt"
)

// Definition error kinds. Match them with errors.Is.
var (
	ErrNoNodes           = errors.New("definition has no nodes")
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrUnknownNode       = errors.New("edge references unknown node")
	ErrNoEntryPoint      = errors.New("no resolvable entry point")
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrInvalidNode       = errors.New("invalid node")
)

// ErrMaxStepsExceeded is returned when a run executes more nodes than the
// configured ceiling.
var ErrMaxStepsExceeded = errors.New("maximum step count exceeded")

// DefinitionError reports a malformed definition. It is raised at build
// time and never retried.
type DefinitionError struct {
	Kind   error
	NodeID string
	Detail string
	Err    error
}

// Error implements error.
func (e *DefinitionError) Error() string {
	msg := e.Kind.Error()
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.NodeID)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error kind.
func (e *DefinitionError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause, if any.
func (e *DefinitionError) Unwrap() error { return e.Err }
