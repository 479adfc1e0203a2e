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

// Package taint implements the inter-function taint analysis of a serverless application. Functions are analyzed
// independently by the dataflow package; the labels of the payloads they write to their output bindings are then
// propagated along the edges of the trigger graph to the parameters of the functions they trigger, until the
// labels of all the input bindings are stable. The findings are the sink hits of the last pass.
package taint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/dataflow"
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/analysis/triggergraph"
)

// ErrNoFunctions is returned when there is no valid function to analyze
var ErrNoFunctions = errors.New("no function to analyze")

// AnalysisResult holds the results of the analysis of an application
type AnalysisResult struct {
	// Findings are the deduplicated flows from sources to sinks, most severe first
	Findings []Finding

	// Graph is the trigger graph of the valid functions
	Graph *triggergraph.Graph

	// Summaries maps the identifiers of the valid functions to their summary in the last pass
	Summaries map[string]*dataflow.FunctionSummary

	// Incoming maps the identifiers of the valid functions to the labels of their input bindings
	Incoming map[string]map[string]lattice.Label

	// Diagnostics contains the non-fatal problems found during the analysis
	Diagnostics diagnostic.List

	// Converged is false when the analysis stopped at max-iterations before the labels were stable
	Converged bool

	// Passes is the number of passes of the fixed point
	Passes int
}

// Analyze runs the analysis of the functions with the configuration and the catalogs it describes. The logger is
// created from the configuration.
func Analyze(ctx context.Context, cfg *config.Config, functions []*model.Function) (*AnalysisResult, error) {
	services, err := catalog.ServicesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return AnalyzeWith(ctx, cfg, config.NewLogGroup(cfg), catalog.FromConfig(cfg), services, functions)
}

// AnalyzeWith runs the analysis of the functions.
//
// The only fatal error is the absence of any valid function. When the context is cancelled, the analysis stops
// between two passes and returns the partial result, not converged, with the context's error.
func AnalyzeWith(ctx context.Context, cfg *config.Config, logger *config.LogGroup, cat *catalog.Catalog,
	services *catalog.Services, functions []*model.Function) (*AnalysisResult, error) {

	// ** First step **
	// The functions are validated and the summaries of the functions called directly are computed bottom-up.
	start := time.Now()
	analyzer := dataflow.NewAnalyzer(cfg, logger, cat, functions)
	if len(analyzer.Functions()) == 0 {
		if len(functions) > 0 {
			return nil, fmt.Errorf("%w: all %d functions are malformed: %w", ErrNoFunctions, len(functions),
				diagnostic.ErrMalformedFunctionModel)
		}
		return nil, ErrNoFunctions
	}
	logger.Infof("Loaded %d functions (%d malformed) (%.2f s).", len(analyzer.Functions()),
		analyzer.Diagnostics().Count(diagnostic.MalformedFunctionModel), time.Since(start).Seconds())

	// ** Second step **
	// The trigger graph connects the output bindings of the valid functions to the input bindings of the
	// functions they trigger.
	graph := triggergraph.NewBuilder(cfg, logger, services).Build(analyzer.Functions())
	logger.Infof("Trigger graph has %d edges, %d cycles.", len(graph.Edges()), len(graph.Cycles()))

	// ** Third step **
	// The fixed point over the trigger graph
	e := newEngine(cfg, logger, cat, analyzer, graph)
	err := e.run(ctx)

	// ** Fourth step **
	// The findings are collected from the last pass
	res := &AnalysisResult{
		Graph:     graph,
		Summaries: map[string]*dataflow.FunctionSummary{},
		Incoming:  e.incoming,
		Converged: e.converged,
		Passes:    e.passes,
	}
	res.Diagnostics = append(res.Diagnostics, analyzer.Diagnostics()...)
	res.Diagnostics = append(res.Diagnostics, graph.Diagnostics...)
	for _, f := range analyzer.Functions() {
		if r := e.results[f.ID]; r != nil {
			res.Summaries[f.ID] = r.Summary
			if f.Deployed {
				res.Diagnostics = append(res.Diagnostics, r.Diagnostics...)
			}
		}
	}
	res.Diagnostics = append(res.Diagnostics, e.diagnostics...)
	res.Diagnostics.Sort()
	res.Findings = NewReporter(cfg, cat).Report(e.results, e.converged)
	logger.Infof("Analysis done: %d findings, %d passes, converged: %t (%.2f s).", len(res.Findings), res.Passes,
		res.Converged, time.Since(start).Seconds())
	return res, err
}
