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

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
)

// An Analyzer runs the intra-procedural analysis on the functions of an application. It validates the functions
// and computes the summaries of the functions called directly once, when it is created; after that it is
// read-only and Analyze can be called concurrently.
type Analyzer struct {
	config  *config.Config
	logger  *config.LogGroup
	catalog *catalog.Catalog

	functions []*model.Function
	cfgs      map[string]*model.CFG
	malformed map[string]bool

	// byUnit maps deployment units to the functions of the unit, by name and by identifier
	byUnit map[string]map[string]*model.Function

	summaries   map[string]*FunctionSummary
	diagnostics diagnostic.List
}

// NewAnalyzer validates the functions and computes the summaries of the functions they call directly. Malformed
// functions are excluded: a MalformedFunctionModel diagnostic is reported for each. Functions with duplicate
// identifiers are malformed, except the first one.
func NewAnalyzer(cfg *config.Config, logger *config.LogGroup, cat *catalog.Catalog,
	functions []*model.Function) *Analyzer {
	a := &Analyzer{
		config:    cfg,
		logger:    logger,
		catalog:   cat,
		cfgs:      map[string]*model.CFG{},
		malformed: map[string]bool{},
		byUnit:    map[string]map[string]*model.Function{},
		summaries: map[string]*FunctionSummary{},
	}
	for _, f := range functions {
		if f == nil {
			continue
		}
		if _, dup := a.cfgs[f.ID]; dup {
			a.diagnostics.Addf(diagnostic.MalformedFunctionModel, f.ID, diagnostic.NoStatement,
				"duplicate function identifier")
			continue
		}
		cfg, diag := model.NewCFG(f)
		if diag != nil {
			logger.Warnf("excluding function: %v", diag)
			a.diagnostics.Add(diag)
			a.malformed[f.ID] = true
			continue
		}
		a.cfgs[f.ID] = cfg
		a.functions = append(a.functions, f)
		unit := a.byUnit[f.Unit]
		if unit == nil {
			unit = map[string]*model.Function{}
			a.byUnit[f.Unit] = unit
		}
		unit[f.ID] = f
		if f.Name != "" {
			if _, taken := unit[f.Name]; !taken {
				unit[f.Name] = f
			}
		}
	}
	sort.Slice(a.functions, func(i, j int) bool { return a.functions[i].ID < a.functions[j].ID })
	a.computeSummaries()
	return a
}

// AnalyzeFunction runs the intra-procedural analysis of a single function with the default options
func AnalyzeFunction(fn *model.Function, initial map[string]lattice.Label, cat *catalog.Catalog) (*Result, error) {
	cfg := config.NewDefault()
	a := NewAnalyzer(cfg, config.NewLogGroup(cfg), cat, []*model.Function{fn})
	return a.Analyze(fn.ID, initial)
}

// Functions returns the valid functions, sorted by identifier
func (a *Analyzer) Functions() []*model.Function {
	return a.functions
}

// Function returns the valid function with the identifier, or nil
func (a *Analyzer) Function(id string) *model.Function {
	if cfg, ok := a.cfgs[id]; ok {
		return cfg.Function
	}
	return nil
}

// Malformed returns true if the function with the identifier was excluded
func (a *Analyzer) Malformed(id string) bool {
	return a.malformed[id]
}

// Diagnostics returns the diagnostics of the validation of the functions and of the computation of the summaries
func (a *Analyzer) Diagnostics() diagnostic.List {
	return a.diagnostics
}

// Summary returns the summary of the function with no input taint, as used at its direct call sites
func (a *Analyzer) Summary(id string) *FunctionSummary {
	return a.summaries[id]
}

func (a *Analyzer) summaryOf(f *model.Function) *FunctionSummary {
	return a.summaries[f.ID]
}

// Logger returns the logger of the analyzer
func (a *Analyzer) Logger() *config.LogGroup {
	return a.logger
}

// Analyze runs the intra-procedural analysis of the function with the identifier, from the initial labels of its
// parameters. Parameters absent from initial are Untainted.
func (a *Analyzer) Analyze(id string, initial map[string]lattice.Label) (*Result, error) {
	cfg, ok := a.cfgs[id]
	if !ok {
		if a.malformed[id] {
			return nil, fmt.Errorf("function %s: %w", id, diagnostic.ErrMalformedFunctionModel)
		}
		return nil, fmt.Errorf("unknown function %q", id)
	}
	return a.run(cfg, initial, a.summaryOf), nil
}

// Transfer applies the transfer function of one statement of the function to the state. The state is not modified.
func (a *Analyzer) Transfer(id string, stmtID int, state lattice.VariableState) (lattice.VariableState, error) {
	cfg, ok := a.cfgs[id]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", id)
	}
	i, ok := cfg.Index(stmtID)
	if !ok {
		return nil, fmt.Errorf("function %s has no statement %d", id, stmtID)
	}
	r := &intraRun{analyzer: a, cfg: cfg, fn: cfg.Function, summaryOf: a.summaryOf}
	return r.transfer(i, state.Clone()), nil
}

// resolve returns the function of the deployment unit of caller named callee, or nil if callee is not a user
// function
func (a *Analyzer) resolve(caller *model.Function, callee string) *model.Function {
	return a.byUnit[caller.Unit][callee]
}
