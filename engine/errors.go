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
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when no model can be acquired.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrStreamingRequest is returned by Execute for requests with Stream set.
	ErrStreamingRequest = errors.New("streaming requested: use ExecuteStream")
	// ErrTemplateNotFound is returned for unknown template ids.
	ErrTemplateNotFound = errors.New("template not found")
)

// RunError is a failed run.
type RunError struct {
	ExecutionID string
	Err         error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("workflow execution %s failed: %v", e.ExecutionID, e.Err)
}

// Unwrap returns the cause.
func (e *RunError) Unwrap() error { return e.Err }
