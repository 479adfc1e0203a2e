// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package triggergraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/internal/graphutil"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/iterator"
)

// Graph is the trigger graph. Nodes are functions, numbered by the order of their identifiers.
//
// Graph implements gonum's graph.Directed, where parallel trigger edges are merged into one gonum edge, and the
// graph.Iterator of github.com/yourbasic/graph.
type Graph struct {
	functions []*model.Function
	index     map[string]int

	edges    []Edge
	dropped  []DroppedEdge
	outgoing [][]int
	incoming [][]int
	digraph  *graphutil.Digraph

	// Diagnostics contains an UnresolvedBinding diagnostic per imprecise edge
	Diagnostics diagnostic.List
}

func newGraph(functions []*model.Function) *Graph {
	g := &Graph{index: map[string]int{}}
	for _, f := range functions {
		if f == nil {
			continue
		}
		if _, dup := g.index[f.ID]; dup {
			continue
		}
		g.index[f.ID] = -1
		g.functions = append(g.functions, f)
	}
	sort.Slice(g.functions, func(i, j int) bool { return g.functions[i].ID < g.functions[j].ID })
	for i, f := range g.functions {
		g.index[f.ID] = i
	}
	g.outgoing = make([][]int, len(g.functions))
	g.incoming = make([][]int, len(g.functions))
	g.digraph = graphutil.NewDigraph(len(g.functions))
	return g
}

func (g *Graph) addEdge(e Edge) {
	g.edges = append(g.edges, e)
}

// finish sorts the edges and builds the adjacency of the graph
func (g *Graph) finish() {
	sortEdges(g.edges)
	sort.SliceStable(g.dropped, func(i, j int) bool { return g.dropped[i].less(g.dropped[j].Edge) })
	for i, e := range g.edges {
		p, c := g.index[e.Producer], g.index[e.Consumer]
		g.outgoing[p] = append(g.outgoing[p], i)
		g.incoming[c] = append(g.incoming[c], i)
		g.digraph.AddEdge(p, c)
	}
	g.Diagnostics.Sort()
}

// Functions returns the functions of the graph, sorted by identifier
func (g *Graph) Functions() []*model.Function {
	return g.functions
}

// Function returns the function with the identifier, or nil
func (g *Graph) Function(id string) *model.Function {
	if i, ok := g.index[id]; ok {
		return g.functions[i]
	}
	return nil
}

// Edges returns the trigger edges, sorted by producer, output, consumer and input
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Dropped returns the pairs of matching bindings removed by the IAM and event rule filters
func (g *Graph) Dropped() []DroppedEdge {
	return g.dropped
}

// Outgoing returns the edges whose producer is the function
func (g *Graph) Outgoing(id string) []Edge {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.edgesAt(g.outgoing[i])
}

// Incoming returns the edges whose consumer is the function
func (g *Graph) Incoming(id string) []Edge {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.edgesAt(g.incoming[i])
}

func (g *Graph) edgesAt(idx []int) []Edge {
	r := make([]Edge, len(idx))
	for k, i := range idx {
		r[k] = g.edges[i]
	}
	return r
}

// Cycles returns the elementary cycles of the graph as sequences of function identifiers, where the first function
// is repeated at the end. Self-loops are cycles of length one.
func (g *Graph) Cycles() [][]string {
	var r [][]string
	for _, c := range graphutil.ElementaryCycles(g.digraph) {
		r = append(r, g.names(c))
	}
	return r
}

// Components returns the strongly connected components of the graph
func (g *Graph) Components() [][]string {
	var r [][]string
	for _, c := range g.digraph.Components() {
		r = append(r, g.names(c))
	}
	return r
}

// Acyclic returns true if no trigger chain leads back to its first function
func (g *Graph) Acyclic() bool {
	return g.digraph.Acyclic()
}

func (g *Graph) names(nodes []int) []string {
	r := make([]string, len(nodes))
	for i, n := range nodes {
		r[i] = g.functions[n].ID
	}
	return r
}

// DOT returns the graph in the DOT language
func (g *Graph) DOT(name string) ([]byte, error) {
	b, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not marshal trigger graph: %w", err)
	}
	return b, nil
}

// *************** yourbasic graph.Iterator implementation **********************

// Order returns the number of functions
func (g *Graph) Order() int {
	return len(g.functions)
}

// Visit calls do for each function triggered by the function v
func (g *Graph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	return g.digraph.Visit(v, do)
}

// *************** gonum graph.Directed implementation **********************

// Node is a function of the trigger graph
type Node struct {
	id       int64
	Function *model.Function
}

// ID returns the index of the function in the graph
func (n Node) ID() int64 { return n.id }

// DOTID returns the identifier of the function
func (n Node) DOTID() string { return n.Function.ID }

// Attributes returns the DOT attributes of the function
func (n Node) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "shape", Value: "box"}}
	if !n.Function.Deployed {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

// GraphEdge joins the trigger edges between two functions
type GraphEdge struct {
	from, to Node
	Triggers []Edge
}

// From returns the producer
func (e GraphEdge) From() graph.Node { return e.from }

// To returns the consumer
func (e GraphEdge) To() graph.Node { return e.to }

// ReversedEdge returns the edge from the consumer to the producer
func (e GraphEdge) ReversedEdge() graph.Edge { return GraphEdge{from: e.to, to: e.from, Triggers: e.Triggers} }

// Attributes returns the DOT attributes of the edge: the resources it carries, dashed when one is imprecise
func (e GraphEdge) Attributes() []encoding.Attribute {
	var labels []string
	imprecise := false
	for _, t := range e.Triggers {
		resource := t.Resource
		if resource == "" {
			resource = "?"
		}
		labels = append(labels, string(t.Kind)+":"+resource)
		imprecise = imprecise || t.Imprecise
	}
	attrs := []encoding.Attribute{{Key: "label", Value: strings.Join(labels, ", ")}}
	if imprecise {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}

func (g *Graph) node(i int) Node {
	return Node{id: int64(i), Function: g.functions[i]}
}

func (g *Graph) valid(id int64) bool {
	return id >= 0 && id < int64(len(g.functions))
}

// Node returns the node with the id, or nil
func (g *Graph) Node(id int64) graph.Node {
	if !g.valid(id) {
		return nil
	}
	return g.node(int(id))
}

// Nodes returns all the nodes of the graph
func (g *Graph) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.functions))
	for i := range g.functions {
		nodes[i] = g.node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *Graph) nodesOf(ids []int) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = g.node(id)
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the functions triggered by the function with the id
func (g *Graph) From(id int64) graph.Nodes {
	if !g.valid(id) {
		return graph.Empty
	}
	return g.nodesOf(g.digraph.Succs(int(id)))
}

// To returns the functions triggering the function with the id
func (g *Graph) To(id int64) graph.Nodes {
	if !g.valid(id) {
		return graph.Empty
	}
	seen := map[int]bool{}
	var preds []int
	for _, e := range g.incoming[id] {
		p := g.index[g.edges[e].Producer]
		if !seen[p] {
			seen[p] = true
			preds = append(preds, p)
		}
	}
	sort.Ints(preds)
	return g.nodesOf(preds)
}

// HasEdgeBetween returns true if one of the functions triggers the other
func (g *Graph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns true if the function uid triggers the function vid
func (g *Graph) HasEdgeFromTo(uid, vid int64) bool {
	return g.valid(uid) && g.valid(vid) && g.digraph.HasEdge(int(uid), int(vid))
}

// Edge returns the edge from uid to vid, or nil
func (g *Graph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	e := GraphEdge{from: g.node(int(uid)), to: g.node(int(vid))}
	for _, i := range g.outgoing[uid] {
		if g.index[g.edges[i].Consumer] == int(vid) {
			e.Triggers = append(e.Triggers, g.edges[i])
		}
	}
	return e
}

var _ graph.Directed = (*Graph)(nil)
