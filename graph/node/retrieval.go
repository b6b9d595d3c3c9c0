//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/knowledge"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// DefaultRetrievalLimit caps retrieved documents when no limit is set.
const DefaultRetrievalLimit = 5

// RetrievalNode fills retrieval_context from the bound retriever using the
// latest user turn as query.
type RetrievalNode struct {
	id          string
	limit       int
	documentIDs []string
	retriever   knowledge.Retriever
}

var (
	_ Node             = (*RetrievalNode)(nil)
	_ ResourceBindable = (*RetrievalNode)(nil)
)

// NewRetrievalNode creates a retrieval node. documentIDs, when empty, are
// read from the document_ids variable at run time.
func NewRetrievalNode(id string, limit int, documentIDs []string) *RetrievalNode {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}
	return &RetrievalNode{id: id, limit: limit, documentIDs: documentIDs}
}

// ID implements Node.
func (n *RetrievalNode) ID() string { return n.id }

// SetModel implements ResourceBindable.
func (n *RetrievalNode) SetModel(model.Model) {}

// SetRetriever implements ResourceBindable.
func (n *RetrievalNode) SetRetriever(r knowledge.Retriever) { n.retriever = r }

// SetTools implements ResourceBindable.
func (n *RetrievalNode) SetTools([]tool.Tool) {}

// Execute implements Node.
func (n *RetrievalNode) Execute(ctx context.Context, c *state.NodeContext) (*state.Update, error) {
	u := state.NewUpdate()
	if n.retriever == nil {
		return u, nil
	}
	query := c.LastUserMessage()
	if query == "" {
		return u, nil
	}
	ids := n.documentIDs
	if len(ids) == 0 {
		ids = toStrings(c.Variables[VarDocumentIDs])
	}
	res, err := n.retriever.Retrieve(ctx, &knowledge.Query{Text: query, DocumentIDs: ids, Limit: n.limit})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warnf("node %s: retrieval failed: %v", n.id, err)
		return u.SetError(state.ErrorKindRetrieval, n.id, err.Error()), nil
	}
	if res == nil {
		return u, nil
	}
	text := res.Context
	if text == "" {
		text = knowledge.FormatContext(res.Documents)
	}
	return u.SetRetrievalContext(text), nil
}
