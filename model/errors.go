//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"errors"
	"fmt"
)

// ErrNoResponse is returned when a model closes its channel without a response.
var ErrNoResponse = errors.New("no response received from model")

// APIError is an API level error reported by a model response.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("model API error: %s", e.Message)
	}
	return fmt.Sprintf("model API error (%s): %s", e.Type, e.Message)
}
