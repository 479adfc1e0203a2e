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

package frontend

import (
	"fmt"

	"github.com/awslabs/cloudflow-go/analysis/model"
)

// A Builder lowers structured code to the statements of a function. Frontends lower each construct with the
// statements that precede it, and get back the statements that continue after it: its exits. A construct lowered
// with no predecessor is the entry when it comes first, and unreachable otherwise.
type Builder struct {
	fn     *model.Function
	loops  []*loopScope
	writes int
}

type loopScope struct {
	head   int
	breaks []int
}

// NewBuilder returns a builder adding statements to the function
func NewBuilder(fn *model.Function) *Builder {
	return &Builder{fn: fn}
}

// Function returns the function being built
func (b *Builder) Function() *model.Function {
	return b.fn
}

// Add appends the statement after the predecessors and returns its identifier
func (b *Builder) Add(preds []int, s *model.Statement) int {
	s.ID = len(b.fn.Statements)
	b.fn.Statements = append(b.fn.Statements, s)
	b.Link(preds, s.ID)
	return s.ID
}

// Link adds the statement as a successor of the predecessors
func (b *Builder) Link(preds []int, to int) {
	for _, p := range preds {
		s := b.fn.Statements[p]
		found := false
		for _, x := range s.Succs {
			if x == to {
				found = true
				break
			}
		}
		if !found {
			s.Succs = append(s.Succs, to)
		}
	}
}

// EnterLoop starts the body of the loop whose head statement is head
func (b *Builder) EnterLoop(head int) {
	b.loops = append(b.loops, &loopScope{head: head})
}

// ExitLoop ends the innermost loop and returns the statements that break out of it
func (b *Builder) ExitLoop() []int {
	l := b.loops[len(b.loops)-1]
	b.loops = b.loops[:len(b.loops)-1]
	return l.breaks
}

// Break records that the predecessors leave the innermost loop. It returns false outside loops.
func (b *Builder) Break(preds []int) bool {
	if len(b.loops) == 0 {
		return false
	}
	l := b.loops[len(b.loops)-1]
	l.breaks = append(l.breaks, preds...)
	return true
}

// Continue links the predecessors to the head of the innermost loop. It returns false outside loops.
func (b *Builder) Continue(preds []int) bool {
	if len(b.loops) == 0 {
		return false
	}
	b.Link(preds, b.loops[len(b.loops)-1].head)
	return true
}

// AddWrite adds the output binding to the function under a fresh identifier, and returns the identifier
func (b *Builder) AddWrite(binding model.Binding) string {
	binding.ID = fmt.Sprintf("%s-write-%d", binding.Kind, b.writes)
	b.writes++
	b.fn.Bindings = append(b.fn.Bindings, binding)
	return binding.ID
}

// Finish returns the function. A function without statements gets a single no-op.
func (b *Builder) Finish() *model.Function {
	if len(b.fn.Statements) == 0 {
		b.Add(nil, &model.Statement{Kind: model.Nop})
	}
	return b.fn
}
