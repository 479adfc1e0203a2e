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
	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
)

// transfer computes the out-state of the statement at index i from its in-state. The state is modified in place.
// When the run has a collector, the effects of the statement are recorded.
func (r *intraRun) transfer(i int, state lattice.VariableState) lattice.VariableState {
	stmt := r.cfg.Statement(i)
	switch stmt.Kind {
	case model.Assign:
		state.Set(stmt.Target, r.eval(stmt, stmt.Value, state))
	case model.Loop:
		l := r.eval(stmt, stmt.Value, state)
		if stmt.Target != "" {
			state.Set(stmt.Target, l)
		}
	case model.CallStmt, model.Branch:
		r.eval(stmt, stmt.Value, state)
	case model.Return:
		l := r.eval(stmt, stmt.Value, state)
		if r.rec != nil {
			r.rec.returns = r.rec.returns.Join(l)
			for _, b := range r.fn.OutputBindings() {
				if b.FromReturn && !l.IsClean() {
					r.rec.writes = append(r.rec.writes, OutputWrite{
						Ref:       BindingRef{Function: r.fn.ID, Binding: b.ID},
						Statement: stmt.ID,
						Label:     l,
					})
				}
			}
		}
	case model.Nop:
	default:
		l := lattice.Of(lattice.NewParseGap(r.fn.ID, stmt.ID)).Join(r.eval(stmt, stmt.Value, state))
		if stmt.Target != "" {
			state.Set(stmt.Target, l)
		}
		if r.rec != nil {
			r.rec.diagnose(diagnostic.ParseGap, r.fn.ID, stmt.ID, "unclassified statement %s", stmt.Kind)
		}
	}
	return state
}

// eval returns the label of the expression in the state. Calls to neutral methods taint their receiver variable
// with their arguments.
func (r *intraRun) eval(stmt *model.Statement, e *model.Expr, state lattice.VariableState) lattice.Label {
	if e == nil {
		return lattice.Clean()
	}
	switch e.Kind {
	case model.ExprLiteral:
		return lattice.Clean()
	case model.ExprVar:
		return state.Get(e.Value)
	case model.ExprOp:
		var l lattice.Label
		for _, o := range e.Operands {
			l = l.Join(r.eval(stmt, o, state))
		}
		return l
	case model.ExprCall:
		if e.Call == nil {
			return r.parseGap(stmt, "call without callee")
		}
		return r.evalCall(stmt, e.Call, state)
	default:
		return r.parseGap(stmt, "unknown expression %q", e.Value)
	}
}

func (r *intraRun) parseGap(stmt *model.Statement, format string, args ...any) lattice.Label {
	if r.rec != nil {
		r.rec.diagnose(diagnostic.ParseGap, r.fn.ID, stmt.ID, format, args...)
	}
	return lattice.Of(lattice.NewParseGap(r.fn.ID, stmt.ID))
}

func (r *intraRun) evalCall(stmt *model.Statement, call *model.Call, state lattice.VariableState) lattice.Label {
	receiver := r.eval(stmt, call.Receiver, state)
	argLabels := make([]lattice.Label, len(call.Args))
	var args lattice.Label
	for i, a := range call.Args {
		argLabels[i] = r.eval(stmt, a.Value, state)
		args = args.Join(argLabels[i])
	}

	if call.Output != "" {
		r.recordWrite(stmt, call, argLabels)
	}

	if callee := r.analyzer.resolve(r.fn, call.Callee); callee != nil {
		return r.applySummary(stmt, call, callee, argLabels)
	}

	entry := r.analyzer.catalog.Lookup(call.Callee)
	switch entry.Role {
	case catalog.Sanitizer:
		return lattice.Clean()
	case catalog.Source:
		return args.Join(lattice.Of(lattice.NewSource(entry.Tag, r.fn.ID, stmt.ID)))
	case catalog.Sink:
		if r.rec != nil && !args.IsClean() {
			r.rec.hits = append(r.rec.hits, SinkHit{
				Site:     lattice.Site{Function: r.fn.ID, Statement: stmt.ID},
				Callee:   call.Callee,
				Category: entry.Category,
				Severity: entry.Severity,
				Label:    args,
			})
		}
		return lattice.Clean()
	case catalog.Neutral:
		l := args.Join(receiver)
		if call.Receiver != nil && call.Receiver.Kind == model.ExprVar && !args.IsClean() {
			state.Set(call.Receiver.Value, state.Get(call.Receiver.Value).Join(args))
		}
		return l
	default:
		if call.Output != "" {
			// Writes to bindings are service calls: their result is metadata of the write
			return lattice.Clean()
		}
		if r.rec != nil {
			r.rec.diagnose(diagnostic.CatalogMiss, r.fn.ID, stmt.ID, "%s is not in the catalog", call.Callee)
		}
		return lattice.Of(lattice.NewUnresolved(call.Callee, r.fn.ID, stmt.ID)).Join(args).Join(receiver)
	}
}

// recordWrite records the write of the payload arguments to the output binding of the call
func (r *intraRun) recordWrite(stmt *model.Statement, call *model.Call, argLabels []lattice.Label) {
	if r.rec == nil {
		return
	}
	b := r.fn.Binding(call.Output)
	if b == nil {
		return
	}
	var payload lattice.Label
	for i, a := range call.Args {
		if b.InPayload(a.Name) {
			payload = payload.Join(argLabels[i])
		}
	}
	if payload.IsClean() {
		return
	}
	r.rec.writes = append(r.rec.writes, OutputWrite{
		Ref:       BindingRef{Function: r.fn.ID, Binding: b.ID},
		Statement: stmt.ID,
		Label:     payload,
	})
}

// applySummary returns the label of the result of a call to a user function, and records the writes and sink hits
// of the callee with the labels of the actual arguments substituted for its parameters
func (r *intraRun) applySummary(stmt *model.Statement, call *model.Call, callee *model.Function,
	argLabels []lattice.Label) lattice.Label {
	summary := r.summaryOf(callee)
	if summary == nil {
		// The callee is in the same recursive component and has no summary yet
		return lattice.Of(recursionPlaceholder(callee, r.fn.ID, stmt.ID))
	}
	actuals := bindArguments(callee, call, argLabels)
	actual := func(param string) lattice.Label { return actuals[param] }

	if r.rec != nil {
		for _, w := range summary.Writes {
			if l := w.Label.Substitute(actual); !l.IsClean() {
				r.rec.writes = append(r.rec.writes, OutputWrite{Ref: w.Ref, Statement: w.Statement, Label: l})
			}
		}
		for _, h := range summary.SinkHits {
			if l := h.Label.Substitute(actual); !l.IsClean() {
				h.Label = l
				r.rec.hits = append(r.rec.hits, h)
			}
		}
	}
	return summary.Return.Substitute(actual)
}

// bindArguments maps the parameters of the callee to the labels of the arguments of the call: positional arguments
// bind parameters in order, named arguments bind the parameters with their name. Extra arguments taint the last
// parameter.
func bindArguments(callee *model.Function, call *model.Call, argLabels []lattice.Label) map[string]lattice.Label {
	actuals := map[string]lattice.Label{}
	if len(callee.Params) == 0 {
		return actuals
	}
	pos := 0
	for i, a := range call.Args {
		switch {
		case a.Name != "" && callee.HasParam(a.Name):
			actuals[a.Name] = actuals[a.Name].Join(argLabels[i])
		case a.Name == "" && pos < len(callee.Params):
			p := callee.Params[pos]
			actuals[p] = actuals[p].Join(argLabels[i])
			pos++
		default:
			last := callee.Params[len(callee.Params)-1]
			actuals[last] = actuals[last].Join(argLabels[i])
		}
	}
	return actuals
}
