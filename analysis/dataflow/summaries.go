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
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/internal/graphutil"
)

const recursionTagPrefix = "recursive-call:"

// recursionPlaceholder returns the origin standing for the result of a recursive call that has not been summarized
func recursionPlaceholder(callee *model.Function, function string, stmt int) lattice.Origin {
	return lattice.NewUnresolved(recursionTagPrefix+callee.ID, function, stmt)
}

func isRecursionPlaceholder(o lattice.Origin) bool {
	return o.Kind == lattice.UnresolvedOrigin && strings.HasPrefix(o.Tag, recursionTagPrefix)
}

// callees returns the identifiers of the user functions called directly by the function
func (a *Analyzer) callees(id string) []string {
	fn := a.cfgs[id].Function
	seen := map[string]bool{}
	var r []string
	for _, stmt := range fn.Statements {
		for _, call := range stmt.Calls() {
			if callee := a.resolve(fn, call.Callee); callee != nil && !seen[callee.ID] {
				seen[callee.ID] = true
				r = append(r, callee.ID)
			}
		}
	}
	return r
}

// computeSummaries computes the summaries of all the valid functions bottom-up over the call graph, so that the
// summary of a callee is available when its callers are analyzed.
//
// In a recursive component, the results of calls to members are Unknown on the first pass; the summaries are
// then refined, without the placeholder results, until they are stable or the number of passes reaches
// max-recursion-passes.
func (a *Analyzer) computeSummaries() {
	ids := make([]string, len(a.functions))
	for i, f := range a.functions {
		ids[i] = f.ID
	}
	for _, scc := range graphutil.StronglyConnectedComponents(ids, a.callees) {
		if !graphutil.IsRecursive(scc, a.callees) {
			res := a.run(a.cfgs[scc[0]], nil, a.summaryOf)
			a.summaries[scc[0]] = res.Summary
			a.addHelperDiagnostics(res)
			continue
		}
		a.summarizeRecursive(scc)
	}
}

func (a *Analyzer) summarizeRecursive(scc []string) {
	a.logger.Debugf("recursive call stack: %s -> %s", strings.Join(scc, " -> "), scc[0])
	component := map[string]bool{}
	for _, id := range scc {
		component[id] = true
	}
	current := map[string]*FunctionSummary{}
	summaryOf := func(f *model.Function) *FunctionSummary {
		if component[f.ID] {
			return current[f.ID]
		}
		return a.summaries[f.ID]
	}

	maxPasses := a.config.MaxRecursionPasses
	if maxPasses <= 0 {
		maxPasses = 1
	}
	var results map[string]*Result
	stable := false
	pass := 0
	for ; pass < maxPasses && !stable; pass++ {
		results = map[string]*Result{}
		next := map[string]*FunctionSummary{}
		for _, id := range scc {
			results[id] = a.run(a.cfgs[id], nil, summaryOf)
			next[id] = results[id].Summary.filter(func(o lattice.Origin) bool { return !isRecursionPlaceholder(o) })
		}
		// The first pass uses the placeholders and is never stable
		stable = pass > 0
		for _, id := range scc {
			if !next[id].Equal(current[id]) {
				stable = false
			}
		}
		current = next
	}
	for _, id := range scc {
		a.summaries[id] = current[id]
		a.addHelperDiagnostics(results[id])
	}
	if !stable {
		a.logger.Warnf("summaries of recursive functions %v not stable after %d passes", scc, pass)
		for _, id := range scc {
			a.diagnostics.Addf(diagnostic.NonConvergence, id, diagnostic.NoStatement,
				"recursive summary not stable after %d passes", pass)
		}
	} else {
		a.logger.Debugf("summaries of recursive functions %v stable after %d passes", scc, pass)
	}
}

// addHelperDiagnostics keeps the diagnostics of the functions that are not deployed. Deployed functions report
// their diagnostics when they are analyzed with their input taint.
func (a *Analyzer) addHelperDiagnostics(res *Result) {
	if !res.Function.Deployed {
		a.diagnostics = append(a.diagnostics, res.Diagnostics...)
	}
}
