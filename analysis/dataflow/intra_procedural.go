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
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"golang.org/x/tools/container/intsets"
)

// This file implements the intra-procedural analysis: a forward monotone analysis over the control-flow graph of a
// function, followed by a sweep over the fixed point that collects the sink hits, the output writes and the
// return value of the function.
// - `intra_procedural.go` contains the work-list algorithm and the construction of the results.
// - `transfer.go` contains the transfer functions of statements and expressions.
// - `summaries.go` contains the bottom-up computation of the summaries of the functions called directly.

// StatementState is the state before and after a statement
type StatementState struct {
	In  lattice.VariableState
	Out lattice.VariableState
}

// Result holds the results of the intra-procedural analysis of one function
type Result struct {
	Function *model.Function

	// States maps statement identifiers to their states at the fixed point. Unreachable statements have empty
	// states.
	States map[int]StatementState

	Summary *FunctionSummary

	// Diagnostics are the non-fatal problems met during the analysis
	Diagnostics diagnostic.List

	// Iterations is the number of statements visited by the work-list algorithm
	Iterations int
}

// SinkHits returns the sink hits of the function and of the helpers it calls
func (r *Result) SinkHits() []SinkHit {
	return r.Summary.SinkHits
}

// collector accumulates the effects of statements during the final sweep
type collector struct {
	writes   []OutputWrite
	hits     []SinkHit
	returns  lattice.Label
	diags    diagnostic.List
	reported map[diagnosticKey]bool
}

type diagnosticKey struct {
	kind diagnostic.Kind
	stmt int
	msg  string
}

func (c *collector) diagnose(kind diagnostic.Kind, fn string, stmt int, format string, args ...any) {
	d := diagnostic.New(kind, fn, stmt, format, args...)
	key := diagnosticKey{kind, stmt, d.Message}
	if c.reported[key] {
		return
	}
	c.reported[key] = true
	c.diags.Add(d)
}

// intraRun is the state of one run of the intra-procedural analysis
type intraRun struct {
	analyzer *Analyzer
	cfg      *model.CFG
	fn       *model.Function
	// summaryOf returns the summary of a function called directly
	summaryOf func(*model.Function) *FunctionSummary
	in, out   []lattice.VariableState
	rec       *collector
	iteration int
}

// run executes the work-list algorithm over the function from the initial labels of its parameters, then builds
// the result from the fixed point
func (a *Analyzer) run(cfg *model.CFG, initial map[string]lattice.Label,
	summaryOf func(*model.Function) *FunctionSummary) *Result {
	fn := cfg.Function
	r := &intraRun{
		analyzer:  a,
		cfg:       cfg,
		fn:        fn,
		summaryOf: summaryOf,
		in:        make([]lattice.VariableState, cfg.Len()),
		out:       make([]lattice.VariableState, cfg.Len()),
	}
	summary := newSummary(fn.ID)
	entry := lattice.VariableState{}
	for _, p := range fn.Params {
		summary.Params[p] = initial[p].StripParams()
		entry.Set(p, initial[p].Join(lattice.ParamMarker(p)))
	}

	if cfg.Len() > 0 {
		r.fixpoint(entry)
	}
	rec := r.sweep()

	summary.Writes = rec.writes
	summary.SinkHits = rec.hits
	summary.Return = rec.returns
	summary.finalize()

	res := &Result{
		Function:    fn,
		States:      make(map[int]StatementState, cfg.Len()),
		Summary:     summary,
		Diagnostics: rec.diags,
		Iterations:  r.iteration,
	}
	for i := 0; i < cfg.Len(); i++ {
		res.States[cfg.Statement(i).ID] = StatementState{In: orEmpty(r.in[i]), Out: orEmpty(r.out[i])}
	}
	if a.logger.LogsTrace() {
		a.logger.Tracef("%s: fixed point after %d visits\n%s", fn.ID, r.iteration, summary)
	}
	res.Diagnostics.Sort()
	return res
}

func orEmpty(s lattice.VariableState) lattice.VariableState {
	if s == nil {
		return lattice.VariableState{}
	}
	return s
}

// fixpoint runs the work-list algorithm. Statements are visited lowest index first. The new out-state of a
// statement is joined with its previous out-state, so states only grow.
func (r *intraRun) fixpoint(entry lattice.VariableState) {
	var worklist intsets.Sparse
	visited := make([]bool, r.cfg.Len())
	worklist.Insert(0)
	var i int
	for worklist.TakeMin(&i) {
		r.iteration++
		in := lattice.VariableState{}
		if i == 0 {
			in = entry.Clone()
		}
		for _, p := range r.cfg.Preds(i) {
			if r.out[p] != nil {
				in = in.Join(r.out[p])
			}
		}
		r.in[i] = in
		out := r.transfer(i, in.Clone())
		if r.out[i] != nil {
			out = out.Join(r.out[i])
		}
		if visited[i] && out.Equal(r.out[i]) {
			continue
		}
		visited[i] = true
		r.out[i] = out
		for _, s := range r.cfg.Succs(i) {
			worklist.Insert(s)
		}
	}
}

// sweep replays the transfer functions on the fixed point, recording effects
func (r *intraRun) sweep() *collector {
	r.rec = &collector{reported: map[diagnosticKey]bool{}}
	defer func() { r.rec = nil }()
	rec := r.rec
	for i := 0; i < r.cfg.Len(); i++ {
		if r.in[i] == nil {
			continue
		}
		r.transfer(i, r.in[i].Clone())
	}
	return rec
}
