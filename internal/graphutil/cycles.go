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

package graphutil

// ElementaryCycles returns all the elementary cycles of the graph, self-loops included. Each cycle starts with its
// smallest vertex and ends with it, e.g. [0 2 0], and cycles are ordered by their first vertex.
//
// This uses Donald B. Johnson's algorithm presented in
// "Finding All The Elementary Circuits of a Directed Graph", 1975
func ElementaryCycles(g *Digraph) [][]int {
	var cycles [][]int
	start := 0
	for start < g.Order() {
		sub := g.restrict(start)
		least := -1
		for _, c := range sub.Components() {
			if c[0] < start {
				continue
			}
			if len(c) == 1 && !sub.HasEdge(c[0], c[0]) {
				continue
			}
			if least < 0 || c[0] < least {
				least = c[0]
			}
		}
		if least < 0 {
			break
		}
		j := &johnson{
			g:       componentOf(sub, least),
			blocked: map[int]bool{},
			blist:   map[int]map[int]bool{},
		}
		j.circuit(least, least)
		cycles = append(cycles, j.cycles...)
		start = least + 1
	}
	return cycles
}

// componentOf returns the subgraph restricted to the strongly connected component of v
func componentOf(g *Digraph, v int) *Digraph {
	var members []int
	for _, c := range g.Components() {
		for _, x := range c {
			if x == v {
				members = c
			}
		}
	}
	in := map[int]bool{}
	for _, x := range members {
		in[x] = true
	}
	sub := NewDigraph(g.Order())
	for _, x := range members {
		for w := range g.succs[x] {
			if in[w] {
				sub.AddEdge(x, w)
			}
		}
	}
	return sub
}

type johnson struct {
	g       *Digraph
	blocked map[int]bool
	blist   map[int]map[int]bool
	stack   []int
	cycles  [][]int
}

func (j *johnson) unblock(u int) {
	j.blocked[u] = false
	for w := range j.blist[u] {
		delete(j.blist[u], w)
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}

func (j *johnson) circuit(v int, s int) bool {
	found := false
	j.stack = append(j.stack, v)
	j.blocked[v] = true
	for _, w := range j.g.Succs(v) {
		if w == s {
			cycle := make([]int, len(j.stack), len(j.stack)+1)
			copy(cycle, j.stack)
			j.cycles = append(j.cycles, append(cycle, s))
			found = true
		} else if !j.blocked[w] && j.circuit(w, s) {
			found = true
		}
	}
	if found {
		j.unblock(v)
	} else {
		for _, w := range j.g.Succs(v) {
			if j.blist[w] == nil {
				j.blist[w] = map[int]bool{}
			}
			j.blist[w][v] = true
		}
	}
	j.stack = j.stack[:len(j.stack)-1]
	return found
}
