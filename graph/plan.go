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
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph/condition"
	"trpc.group/trpc-go/trpc-workflow-go/graph/node"
	"trpc.group/trpc-go/trpc-workflow-go/graph/state"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Cycle is a simple cycle of node ids, in traversal order.
type Cycle struct {
	Nodes []string
	// Problematic is set when no edge leaving the cycle carries a
	// condition, so nothing but the step ceiling can end it.
	Problematic bool
}

// String renders the cycle as "a -> b -> a".
func (c Cycle) String() string {
	if len(c.Nodes) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), c.Nodes...), c.Nodes[0]), " -> ")
}

type route struct {
	target string
	expr   condition.Expr
}

// router picks the next node after a source.
type router struct {
	conditional []route
	// fallback is the first unconditional target, or End.
	fallback string
}

func (r *router) next(c *state.NodeContext) string {
	for _, rt := range r.conditional {
		if rt.expr.Eval(c) {
			return rt.target
		}
	}
	return r.fallback
}

// Plan is a validated definition with its entry point, routers and cycle
// analysis. A Plan holds no run state and is shared between runs.
type Plan struct {
	def     *Definition
	hash    string
	entry   string
	routers map[string]*router
	cycles  []Cycle
}

// EntryPoint returns the resolved entry node id.
func (p *Plan) EntryPoint() string { return p.entry }

// Hash returns the definition shape hash the plan is cached under.
func (p *Plan) Hash() string { return p.hash }

// Definition returns the compiled definition. Callers must not modify it.
func (p *Plan) Definition() *Definition { return p.def }

// Cycles returns every detected cycle.
func (p *Plan) Cycles() []Cycle { return p.cycles }

// ProblematicCycles returns the cycles without a conditional exit.
func (p *Plan) ProblematicCycles() []Cycle {
	var out []Cycle
	for _, c := range p.cycles {
		if c.Problematic {
			out = append(out, c)
		}
	}
	return out
}

// Next returns the node that follows source for state c. Sources with no
// outgoing edges lead to End.
func (p *Plan) Next(source string, c *state.NodeContext) string {
	r, ok := p.routers[source]
	if !ok {
		return End
	}
	return r.next(c)
}

// resolveEntryPoint picks the explicit entry point, else the only node that
// is a source but never a target. With several candidates a node typed
// "start" wins, then declaration order. Without candidates the first
// declared node is used.
func resolveEntryPoint(def *Definition) (string, error) {
	if def.EntryPoint != "" {
		if _, ok := def.Node(def.EntryPoint); !ok {
			return "", &DefinitionError{Kind: ErrNoEntryPoint, NodeID: def.EntryPoint}
		}
		return def.EntryPoint, nil
	}
	sources := make(map[string]bool)
	targets := make(map[string]bool)
	for _, e := range def.Edges {
		sources[e.Source] = true
		targets[e.Target] = true
	}
	var candidates []NodeSpec
	for _, n := range def.Nodes {
		if sources[n.ID] && !targets[n.ID] {
			candidates = append(candidates, n)
		}
	}
	switch len(candidates) {
	case 0:
		if len(def.Nodes) == 0 {
			return "", &DefinitionError{Kind: ErrNoEntryPoint}
		}
		return def.Nodes[0].ID, nil
	case 1:
		return candidates[0].ID, nil
	}
	for _, n := range candidates {
		if n.Type == node.TypeStart {
			return n.ID, nil
		}
	}
	return candidates[0].ID, nil
}

// buildRouters groups edges by source and parses every condition once.
func buildRouters(def *Definition) map[string]*router {
	routers := make(map[string]*router)
	for _, e := range def.Edges {
		r, ok := routers[e.Source]
		if !ok {
			r = &router{}
			routers[e.Source] = r
		}
		target := e.Target
		if IsTerminal(target) {
			target = End
		}
		if e.Conditional() {
			r.conditional = append(r.conditional, route{target: target, expr: condition.Parse(e.Condition)})
			continue
		}
		if r.fallback == "" {
			r.fallback = target
		}
	}
	for _, r := range routers {
		if r.fallback == "" {
			r.fallback = End
		}
	}
	return routers
}

// maxCycles bounds cycle enumeration on densely cyclic definitions.
const maxCycles = 1000

// findCycles enumerates the simple cycles over non-terminal edges with
// Johnson's circuit search. For each node s, in declaration order, only the
// strongly connected component of s among nodes declared at or after s is
// searched, so every cycle is reported once, starting at its earliest
// declared node, and acyclic regions cost linear time.
func findCycles(def *Definition) []Cycle {
	n := len(def.Nodes)
	index := make(map[string]int, n)
	for i, nd := range def.Nodes {
		index[nd.ID] = i
	}
	adj := make([][]int, n)
	radj := make([][]int, n)
	for _, e := range def.Edges {
		if IsTerminal(e.Target) {
			continue
		}
		from, ok := index[e.Source]
		if !ok {
			continue
		}
		to, ok := index[e.Target]
		if !ok || containsInt(adj[from], to) {
			continue
		}
		adj[from] = append(adj[from], to)
		radj[to] = append(radj[to], from)
	}

	var (
		cycles  []Cycle
		stack   []int
		blocked = make([]bool, n)
		blockOn = make([]map[int]bool, n)
		inComp  []bool
		start   int
	)
	var unblock func(u int)
	unblock = func(u int) {
		blocked[u] = false
		for w := range blockOn[u] {
			delete(blockOn[u], w)
			if blocked[w] {
				unblock(w)
			}
		}
	}
	var circuit func(v int) bool
	circuit = func(v int) bool {
		found := false
		stack = append(stack, v)
		blocked[v] = true
		for _, w := range adj[v] {
			if len(cycles) >= maxCycles {
				break
			}
			if !inComp[w] {
				continue
			}
			if w == start {
				nodes := make([]string, len(stack))
				for i, id := range stack {
					nodes[i] = def.Nodes[id].ID
				}
				cycles = append(cycles, Cycle{Nodes: nodes})
				found = true
			} else if !blocked[w] && circuit(w) {
				found = true
			}
		}
		if found {
			unblock(v)
		} else {
			for _, w := range adj[v] {
				if !inComp[w] {
					continue
				}
				if blockOn[w] == nil {
					blockOn[w] = make(map[int]bool)
				}
				blockOn[w][v] = true
			}
		}
		stack = stack[:len(stack)-1]
		return found
	}

	for start = 0; start < n && len(cycles) < maxCycles; start++ {
		inComp = componentOf(start, adj, radj)
		if inComp == nil {
			continue
		}
		for i := start; i < n; i++ {
			blocked[i] = false
			blockOn[i] = nil
		}
		circuit(start)
	}
	if len(cycles) >= maxCycles {
		log.Warnf("graph %s: cycle analysis stopped after %d cycles", def.Name, maxCycles)
	}

	for i := range cycles {
		cycles[i].Problematic = !hasConditionalExit(def, cycles[i].Nodes)
	}
	return cycles
}

// componentOf returns the strongly connected component of s in the subgraph
// of nodes with index >= s, or nil when s lies on no cycle there.
func componentOf(s int, adj, radj [][]int) []bool {
	forward := reach(s, adj)
	backward := reach(s, radj)
	comp := make([]bool, len(adj))
	nontrivial := false
	for i := s; i < len(adj); i++ {
		if forward[i] && backward[i] {
			comp[i] = true
			if i != s {
				nontrivial = true
			}
		}
	}
	if !nontrivial && !containsInt(adj[s], s) {
		return nil
	}
	return comp
}

// reach marks the nodes with index >= s reachable from s along adj.
func reach(s int, adj [][]int) []bool {
	seen := make([]bool, len(adj))
	seen[s] = true
	queue := []int{s}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj[v] {
			if w < s || seen[w] {
				continue
			}
			seen[w] = true
			queue = append(queue, w)
		}
	}
	return seen
}

// hasConditionalExit reports whether some edge from a cycle node leaves the
// cycle, or reaches End, under a condition.
func hasConditionalExit(def *Definition, nodes []string) bool {
	in := make(map[string]bool, len(nodes))
	for _, id := range nodes {
		in[id] = true
	}
	for _, e := range def.Edges {
		if !in[e.Source] || !e.Conditional() {
			continue
		}
		if IsTerminal(e.Target) || !in[e.Target] {
			return true
		}
	}
	return false
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
