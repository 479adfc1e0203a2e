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

// Package graphutil contains graph algorithms over small directed graphs whose vertices are numbered from 0.
package graphutil

import (
	"sort"

	"github.com/yourbasic/graph"
)

// Digraph is a directed graph over the vertices 0..Order()-1. Parallel edges are collapsed. It implements
// graph.Iterator so that the yourbasic algorithms can run on it.
type Digraph struct {
	succs []map[int]bool
}

// NewDigraph returns a graph with n vertices and no edges
func NewDigraph(n int) *Digraph {
	g := &Digraph{succs: make([]map[int]bool, n)}
	for i := range g.succs {
		g.succs[i] = map[int]bool{}
	}
	return g
}

// AddEdge adds the edge v -> w
func (g *Digraph) AddEdge(v, w int) {
	g.succs[v][w] = true
}

// HasEdge returns true if there is an edge v -> w
func (g *Digraph) HasEdge(v, w int) bool {
	return g.succs[v][w]
}

// Order returns the number of vertices. Implements graph.Iterator.
func (g *Digraph) Order() int {
	return len(g.succs)
}

// Succs returns the successors of v in increasing order
func (g *Digraph) Succs(v int) []int {
	r := make([]int, 0, len(g.succs[v]))
	for w := range g.succs[v] {
		r = append(r, w)
	}
	sort.Ints(r)
	return r
}

// Visit calls do for each successor w of v, in increasing order, and stops when do returns true. Implements
// graph.Iterator.
func (g *Digraph) Visit(v int, do func(w int, c int64) bool) bool {
	for _, w := range g.Succs(v) {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// restrict returns the subgraph induced by the vertices >= from. Vertex numbers are unchanged.
func (g *Digraph) restrict(from int) *Digraph {
	sub := NewDigraph(g.Order())
	for v := from; v < g.Order(); v++ {
		for w := range g.succs[v] {
			if w >= from {
				sub.AddEdge(v, w)
			}
		}
	}
	return sub
}

// Components returns the strongly connected components of the graph, each sorted
func (g *Digraph) Components() [][]int {
	components := graph.StrongComponents(g)
	for _, c := range components {
		sort.Ints(c)
	}
	return components
}

// Acyclic returns true if the graph has no cycle, self-loops included
func (g *Digraph) Acyclic() bool {
	return graph.Acyclic(g)
}
