//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package graph compiles workflow definitions into executable graphs and
// runs them over a state.NodeContext.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// End is the terminal marker. An edge targeting End finishes the run.
const End = "END"

// IsTerminal reports whether target is the terminal marker. "__end__" is
// accepted as an alias.
func IsTerminal(target string) bool {
	return target == End || target == "__end__"
}

// NodeSpec declares one node.
type NodeSpec struct {
	ID     string         `json:"id" yaml:"id" validate:"required"`
	Type   string         `json:"type" yaml:"type" validate:"required"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// EdgeSpec declares a transition. An empty Condition means the edge is
// always taken when reached.
type EdgeSpec struct {
	Source    string `json:"source" yaml:"source" validate:"required"`
	Target    string `json:"target" yaml:"target" validate:"required"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Conditional reports whether the edge carries a routing condition.
func (e EdgeSpec) Conditional() bool {
	return strings.TrimSpace(e.Condition) != ""
}

// Definition is a declarative workflow graph.
type Definition struct {
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes      []NodeSpec `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges      []EdgeSpec `json:"edges" yaml:"edges" validate:"dive"`
	EntryPoint string     `json:"entry_point,omitempty" yaml:"entry_point,omitempty"`
}

// Node returns the spec of the node with id.
func (d *Definition) Node(id string) (NodeSpec, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// Hash returns a digest of the definition's shape. Definitions that differ
// only in map key order hash the same.
func (d *Definition) Hash() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("hash definition: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural invariants: at least one node, required
// fields, unique node ids and edges referencing declared nodes.
func (d *Definition) Validate() error {
	if d == nil || len(d.Nodes) == 0 {
		return &DefinitionError{Kind: ErrNoNodes}
	}
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &DefinitionError{Kind: ErrInvalidDefinition, Detail: verrs[0].Namespace() + " is " + verrs[0].Tag()}
		}
		return &DefinitionError{Kind: ErrInvalidDefinition, Detail: err.Error()}
	}
	seen := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if IsTerminal(n.ID) {
			return &DefinitionError{Kind: ErrInvalidDefinition, NodeID: n.ID, Detail: "node id is reserved"}
		}
		if _, dup := seen[n.ID]; dup {
			return &DefinitionError{Kind: ErrDuplicateNode, NodeID: n.ID}
		}
		seen[n.ID] = struct{}{}
	}
	for _, e := range d.Edges {
		if _, ok := seen[e.Source]; !ok {
			return &DefinitionError{Kind: ErrUnknownNode, NodeID: e.Source, Detail: "edge source " + e.Source + " -> " + e.Target}
		}
		if IsTerminal(e.Target) {
			continue
		}
		if _, ok := seen[e.Target]; !ok {
			return &DefinitionError{Kind: ErrUnknownNode, NodeID: e.Target, Detail: "edge target " + e.Source + " -> " + e.Target}
		}
	}
	if d.EntryPoint != "" {
		if _, ok := seen[d.EntryPoint]; !ok {
			return &DefinitionError{Kind: ErrNoEntryPoint, NodeID: d.EntryPoint, Detail: "entry point is not a declared node"}
		}
	}
	return nil
}
