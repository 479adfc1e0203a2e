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

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adjacency map[int][]int

func (m adjacency) nodes() []int {
	var ks []int
	for k := range m {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	return ks
}

func (m adjacency) succs(k int) []int { return m[k] }

func (m adjacency) reaches(x, y int) bool {
	visited := map[int]bool{}
	var visit func(int)
	visit = func(n int) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, w := range m[n] {
			visit(w)
		}
	}
	visit(x)
	return visited[y]
}

// checkBottomUp checks that the SCCs cover the graph, are strongly connected, and that no SCC reaches a later one
func checkBottomUp(m adjacency, sccs [][]int) error {
	covered := map[int]bool{}
	for i, scc := range sccs {
		for _, x := range scc {
			if covered[x] {
				return fmt.Errorf("node %d in two components", x)
			}
			covered[x] = true
			for _, y := range scc {
				if !m.reaches(x, y) {
					return fmt.Errorf("%d does not reach %d in its component", x, y)
				}
			}
			for _, later := range sccs[i+1:] {
				for _, y := range later {
					if m.reaches(x, y) {
						return fmt.Errorf("%d reaches %d of a later component", x, y)
					}
				}
			}
		}
	}
	for n := range m {
		if !covered[n] {
			return fmt.Errorf("node %d is in no component", n)
		}
	}
	return nil
}

func randomAdjacency(size int, seed int64) adjacency {
	m := adjacency{}
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < size; i++ {
		m[i] = []int{}
		for j := 0; j < 3; j++ {
			if r.Float32() < 0.7 {
				m[i] = append(m[i], r.Intn(size))
			}
		}
	}
	return m
}

func TestStronglyConnectedComponents(t *testing.T) {
	graphs := []adjacency{
		{0: {0}},
		{0: {}},
		{0: {0, 1}, 1: {}},
		{0: {1, 2}, 1: {3}, 2: {1}, 3: {}},
		{0: {1, 2}, 1: {3}, 2: {1, 0}, 3: {}},
		{0: {3, 1}, 1: {0}, 2: {1}, 3: {3}},
	}
	for i := 0; i < 50; i++ {
		graphs = append(graphs, randomAdjacency(12, 68348438+int64(i)))
	}
	for i, m := range graphs {
		sccs := StronglyConnectedComponents(m.nodes(), m.succs)
		assert.NoError(t, checkBottomUp(m, sccs), "graph %d: %v", i, m)
	}
}

func TestIsRecursive(t *testing.T) {
	m := adjacency{0: {0}, 1: {2}, 2: {1}, 3: {1}}
	sccs := StronglyConnectedComponents(m.nodes(), m.succs)
	recursive := map[int]bool{}
	for _, scc := range sccs {
		for _, x := range scc {
			recursive[x] = IsRecursive(scc, m.succs)
		}
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true, 3: false}, recursive)
}

func TestElementaryCycles(t *testing.T) {
	g := NewDigraph(5)
	g.AddEdge(0, 1)
	g.AddEdge(1, 0)
	g.AddEdge(1, 2)
	g.AddEdge(2, 0)
	g.AddEdge(3, 3)
	g.AddEdge(3, 4)
	g.AddEdge(1, 2)

	cycles := ElementaryCycles(g)
	require.Len(t, cycles, 3)
	assert.Equal(t, [][]int{{0, 1, 0}, {0, 1, 2, 0}, {3, 3}}, cycles)
	assert.False(t, g.Acyclic())
	assert.Equal(t, [][]int{{0, 1, 2}, {3}, {4}}, sortedComponents(g))
}

func TestElementaryCyclesAcyclic(t *testing.T) {
	g := NewDigraph(4)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(0, 2)
	assert.Empty(t, ElementaryCycles(g))
	assert.True(t, g.Acyclic())
	assert.Equal(t, []int{1, 2}, g.Succs(0))
}

func sortedComponents(g *Digraph) [][]int {
	c := g.Components()
	sort.Slice(c, func(i, j int) bool { return c[i][0] < c[j][0] })
	return c
}
