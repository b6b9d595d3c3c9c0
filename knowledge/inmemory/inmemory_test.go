//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
)

func newRetriever() *Retriever {
	return New(
		&knowledge.Document{ID: "d1", Name: "Go", Content: "Go channels and goroutines"},
		&knowledge.Document{ID: "d2", Name: "Rust", Content: "ownership and borrowing"},
		&knowledge.Document{ID: "d3", Name: "Tips", Content: "goroutines leak when blocked"},
	)
}

func TestRetrieve_ScoresAndOrders(t *testing.T) {
	r := newRetriever()
	res, err := r.Retrieve(context.Background(), &knowledge.Query{Text: "goroutines channels"})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "d1", res.Documents[0].Document.ID)
	assert.Equal(t, 1.0, res.Documents[0].Score)
	assert.Equal(t, "d3", res.Documents[1].Document.ID)
	assert.Equal(t, 0.5, res.Documents[1].Score)
	assert.Contains(t, res.Context, "[Go]\nGo channels and goroutines")
}

func TestRetrieve_RestrictsToDocumentIDs(t *testing.T) {
	r := newRetriever()
	res, err := r.Retrieve(context.Background(), &knowledge.Query{
		Text:        "goroutines",
		DocumentIDs: []string{"d3"},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "d3", res.Documents[0].Document.ID)
}

func TestRetrieve_Limit(t *testing.T) {
	r := newRetriever()
	res, err := r.Retrieve(context.Background(), &knowledge.Query{Text: "goroutines", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
}

func TestRetrieve_NoMatch(t *testing.T) {
	r := newRetriever()
	res, err := r.Retrieve(context.Background(), &knowledge.Query{Text: "python"})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Empty(t, res.Context)

	res, err = r.Retrieve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}
