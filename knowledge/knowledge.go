//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package knowledge defines the retriever handle consulted by retrieval and
// model-call nodes.
package knowledge

import (
	"context"
	"strings"
)

// Document is a unit of retrievable text.
type Document struct {
	// ID is the unique identifier of the document.
	ID string `json:"id"`
	// Name is the name or title of the document.
	Name string `json:"name,omitempty"`
	// Content is the text content of the document.
	Content string `json:"content"`
	// Metadata contains additional information about the document.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Query is a retrieval request.
type Query struct {
	// Text is the query text, usually the latest user turn.
	Text string
	// DocumentIDs restricts retrieval to these documents when non-empty.
	DocumentIDs []string
	// Limit caps the number of returned documents. Zero means no cap.
	Limit int
}

// ScoredDocument is a document with its relevance score.
type ScoredDocument struct {
	Document *Document
	Score    float64
}

// Result is a retrieval result.
type Result struct {
	// Documents are ordered by descending score.
	Documents []*ScoredDocument
	// Context is the text injected into the model prompt.
	Context string
}

// Retriever returns context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, q *Query) (*Result, error)
}

// FormatContext joins documents into prompt context text.
func FormatContext(docs []*ScoredDocument) string {
	var b strings.Builder
	for _, sd := range docs {
		if sd == nil || sd.Document == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if sd.Document.Name != "" {
			b.WriteString("[")
			b.WriteString(sd.Document.Name)
			b.WriteString("]\n")
		}
		b.WriteString(sd.Document.Content)
	}
	return b.String()
}
