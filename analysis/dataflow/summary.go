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

package dataflow

import (
	"fmt"
	"sort"

	"github.com/awslabs/cloudflow-go/analysis/lattice"
)

// BindingRef identifies an output binding of a function
type BindingRef struct {
	Function string
	Binding  string
}

func (b BindingRef) String() string {
	return b.Function + "." + b.Binding
}

// OutputWrite is a write to an output binding observed in a function or in a helper it calls. The label is the
// label of the payload at the write, before the write hop is appended; it may contain parameter markers.
type OutputWrite struct {
	Ref       BindingRef
	Statement int
	Label     lattice.Label
}

// Hop returns the hop of the write in the trail of the origins of its payload
func (w OutputWrite) Hop() lattice.Hop {
	return lattice.Hop{Function: w.Ref.Function, Statement: w.Statement, Binding: w.Ref.Binding}
}

// SinkHit is a call to a sink with arguments that are not clean. The label may contain parameter markers when the
// arguments depend on the parameters of the function.
type SinkHit struct {
	Site     lattice.Site
	Callee   string
	Category string
	Severity string
	Label    lattice.Label
}

// PropagationEdge is an observed flow from a parameter to an output binding, or to the return value when Return
// is true
type PropagationEdge struct {
	Param  string
	To     BindingRef
	Return bool
}

func (e PropagationEdge) String() string {
	if e.Return {
		return e.Param + " -> return"
	}
	return e.Param + " -> " + e.To.String()
}

// FunctionSummary abstracts the taint behavior of a function: what reaches its outputs, its return value and its
// sinks, as a function of its parameters.
type FunctionSummary struct {
	Function string

	// Params are the labels of the parameters at the entry of the function, without markers
	Params map[string]lattice.Label

	// Writes are the output writes of the function and of the helpers it calls
	Writes []OutputWrite

	// Outputs maps each written binding to the label of its payload, with the write hop appended
	Outputs map[BindingRef]lattice.Label

	// Return is the label of the return value
	Return lattice.Label

	// SinkHits are the sink calls of the function and of the helpers it calls
	SinkHits []SinkHit

	// Edges are the parameter to output or return flows
	Edges []PropagationEdge
}

func newSummary(function string) *FunctionSummary {
	return &FunctionSummary{
		Function: function,
		Params:   map[string]lattice.Label{},
		Outputs:  map[BindingRef]lattice.Label{},
	}
}

// finalize computes the outputs and the propagation edges from the writes and the return label
func (s *FunctionSummary) finalize() {
	sort.SliceStable(s.Writes, func(i, j int) bool {
		a, b := s.Writes[i], s.Writes[j]
		if a.Ref != b.Ref {
			return a.Ref.String() < b.Ref.String()
		}
		return a.Statement < b.Statement
	})
	sort.SliceStable(s.SinkHits, func(i, j int) bool {
		a, b := s.SinkHits[i].Site, s.SinkHits[j].Site
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		return a.Statement < b.Statement
	})
	s.Outputs = map[BindingRef]lattice.Label{}
	edges := map[PropagationEdge]bool{}
	for _, w := range s.Writes {
		s.Outputs[w.Ref] = s.Outputs[w.Ref].Join(w.Label.WithHop(w.Hop()))
		for _, p := range w.Label.Params() {
			edges[PropagationEdge{Param: p, To: w.Ref}] = true
		}
	}
	for _, p := range s.Return.Params() {
		edges[PropagationEdge{Param: p, Return: true}] = true
	}
	s.Edges = s.Edges[:0]
	for e := range edges {
		s.Edges = append(s.Edges, e)
	}
	sort.Slice(s.Edges, func(i, j int) bool { return s.Edges[i].String() < s.Edges[j].String() })
}

// Equal returns true if the summaries have the same writes, return label and sink hits
func (s *FunctionSummary) Equal(other *FunctionSummary) bool {
	if s == nil || other == nil {
		return s == other
	}
	if !s.Return.Equal(other.Return) || len(s.Writes) != len(other.Writes) ||
		len(s.SinkHits) != len(other.SinkHits) || len(s.Outputs) != len(other.Outputs) {
		return false
	}
	for i := range s.Writes {
		a, b := s.Writes[i], other.Writes[i]
		if a.Ref != b.Ref || a.Statement != b.Statement || !a.Label.Equal(b.Label) {
			return false
		}
	}
	for i := range s.SinkHits {
		a, b := s.SinkHits[i], other.SinkHits[i]
		if a.Site != b.Site || a.Callee != b.Callee || !a.Label.Equal(b.Label) {
			return false
		}
	}
	return true
}

// filter returns a copy of the summary where the labels only keep the origins for which keep returns true
func (s *FunctionSummary) filter(keep func(lattice.Origin) bool) *FunctionSummary {
	r := newSummary(s.Function)
	for p, l := range s.Params {
		r.Params[p] = l.Filter(keep)
	}
	for _, w := range s.Writes {
		w.Label = w.Label.Filter(keep)
		if !w.Label.IsClean() {
			r.Writes = append(r.Writes, w)
		}
	}
	for _, h := range s.SinkHits {
		h.Label = h.Label.Filter(keep)
		if !h.Label.IsClean() {
			r.SinkHits = append(r.SinkHits, h)
		}
	}
	r.Return = s.Return.Filter(keep)
	r.finalize()
	return r
}

func (s *FunctionSummary) String() string {
	str := fmt.Sprintf("summary of %s: return %s", s.Function, s.Return)
	for _, w := range s.Writes {
		str += fmt.Sprintf("\n  write %s at %d: %s", w.Ref, w.Statement, w.Label)
	}
	for _, h := range s.SinkHits {
		str += fmt.Sprintf("\n  sink %s at %s: %s", h.Callee, h.Site, h.Label)
	}
	return str
}
