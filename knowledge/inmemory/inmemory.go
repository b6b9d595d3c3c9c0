//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a keyword-scored in-memory retriever.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
)

// Retriever scores documents by query term overlap.
type Retriever struct {
	mu    sync.RWMutex
	docs  map[string]*knowledge.Document
	order []string
}

var _ knowledge.Retriever = (*Retriever)(nil)

// New creates a retriever seeded with docs.
func New(docs ...*knowledge.Document) *Retriever {
	r := &Retriever{docs: make(map[string]*knowledge.Document)}
	for _, d := range docs {
		r.Add(d)
	}
	return r
}

// Add stores or replaces a document.
func (r *Retriever) Add(doc *knowledge.Document) {
	if doc == nil || doc.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		r.order = append(r.order, doc.ID)
	}
	r.docs[doc.ID] = doc
}

// Retrieve implements knowledge.Retriever. Documents with no term overlap are
// dropped; ties keep insertion order.
func (r *Retriever) Retrieve(_ context.Context, q *knowledge.Query) (*knowledge.Result, error) {
	if q == nil {
		return &knowledge.Result{}, nil
	}
	terms := tokenize(q.Text)
	allowed := make(map[string]struct{}, len(q.DocumentIDs))
	for _, id := range q.DocumentIDs {
		allowed[id] = struct{}{}
	}

	r.mu.RLock()
	var scored []*knowledge.ScoredDocument
	for _, id := range r.order {
		if len(allowed) > 0 {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}
		doc := r.docs[id]
		if score := overlap(terms, tokenize(doc.Content+" "+doc.Name)); score > 0 {
			scored = append(scored, &knowledge.ScoredDocument{Document: doc, Score: score})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if q.Limit > 0 && len(scored) > q.Limit {
		scored = scored[:q.Limit]
	}
	return &knowledge.Result{Documents: scored, Context: knowledge.FormatContext(scored)}, nil
}

func tokenize(s string) map[string]int {
	out := make(map[string]int)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		out[f]++
	}
	return out
}

// overlap is the fraction of distinct query terms present in the document.
func overlap(query, doc map[string]int) float64 {
	if len(query) == 0 {
		return 0
	}
	var hit int
	for term := range query {
		if doc[term] > 0 {
			hit++
		}
	}
	return float64(hit) / float64(len(query))
}
