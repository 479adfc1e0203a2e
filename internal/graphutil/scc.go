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

// StronglyConnectedComponents is an implementation of Tarjan's strongly connected component (SCC) algorithm
// for generic nodes T.
// Successors returns the targets of the directed edges out of a node.
// The SCCs are returned in reverse topological order: if a node of an SCC calls a node of another SCC, the
// callee's SCC comes first. Bottom-up summary computations can process them in order.
// Within an SCC, nodes appear in the order they were first visited.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	t := &tarjan[T]{
		successors: successors,
		index:      map[T]int{},
		lowlink:    map[T]int{},
		onStack:    map[T]bool{},
	}
	for _, v := range nodes {
		if _, visited := t.index[v]; !visited {
			t.visit(v)
		}
	}
	return t.sccs
}

type tarjan[T comparable] struct {
	successors func(T) []T
	index      map[T]int
	lowlink    map[T]int
	onStack    map[T]bool
	stack      []T
	next       int
	sccs       [][]T
}

func (t *tarjan[T]) visit(v T) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.successors(v) {
		if _, visited := t.index[w]; !visited {
			t.visit(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	i := len(t.stack) - 1
	for t.stack[i] != v {
		i--
	}
	scc := make([]T, len(t.stack)-i)
	copy(scc, t.stack[i:])
	for _, w := range scc {
		t.onStack[w] = false
	}
	t.stack = t.stack[:i]
	t.sccs = append(t.sccs, scc)
}

// IsRecursive returns true if the SCC contains a cycle: it has several nodes, or its only node is its own
// successor
func IsRecursive[T comparable](scc []T, successors func(T) []T) bool {
	if len(scc) > 1 {
		return true
	}
	for _, s := range scc {
		for _, w := range successors(s) {
			if w == s {
				return true
			}
		}
	}
	return false
}
