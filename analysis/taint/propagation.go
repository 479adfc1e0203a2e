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

package taint

import (
	"context"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/dataflow"
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/analysis/triggergraph"
	"golang.org/x/sync/errgroup"
)

// engine is the state of the inter-procedural fixed point. Each function owns its entry in incoming and results;
// the entries are only written during the sequential propagation step of a pass.
type engine struct {
	config   *config.Config
	logger   *config.LogGroup
	catalog  *catalog.Catalog
	analyzer *dataflow.Analyzer
	graph    *triggergraph.Graph

	// incoming maps consumers to the labels of their input bindings
	incoming map[string]map[string]lattice.Label
	results  map[string]*dataflow.Result

	diagnostics diagnostic.List
	converged   bool
	passes      int
}

func newEngine(cfg *config.Config, logger *config.LogGroup, cat *catalog.Catalog, analyzer *dataflow.Analyzer,
	graph *triggergraph.Graph) *engine {
	e := &engine{
		config:   cfg,
		logger:   logger,
		catalog:  cat,
		analyzer: analyzer,
		graph:    graph,
		incoming: map[string]map[string]lattice.Label{},
		results:  map[string]*dataflow.Result{},
	}
	for _, f := range analyzer.Functions() {
		e.incoming[f.ID] = map[string]lattice.Label{}
	}
	return e
}

func (e *engine) numWorkers() int {
	return e.config.NumWorkers()
}

// run iterates passes until the incoming labels are stable. The first pass analyzes every function; later passes
// only analyze the functions whose incoming labels changed.
func (e *engine) run(ctx context.Context) error {
	dirty := e.analyzer.Functions()
	for len(dirty) > 0 {
		if err := ctx.Err(); err != nil {
			e.logger.Warnf("analysis cancelled after %d passes", e.passes)
			return err
		}
		if e.passes >= e.config.MaxIterations {
			e.logger.Warnf("labels not stable after %d passes", e.passes)
			for _, f := range dirty {
				e.diagnostics.Addf(diagnostic.NonConvergence, f.ID, diagnostic.NoStatement,
					"incoming labels not stable after %d passes", e.passes)
			}
			return nil
		}
		e.passes++
		if err := e.pass(ctx, dirty); err != nil {
			return err
		}
		dirty = e.propagate()
		e.logger.Debugf("pass %d: %d functions to analyze again", e.passes, len(dirty))
	}
	e.converged = true
	return nil
}

// pass runs the intra-procedural analysis of the functions in parallel. Workers only read the shared state; the
// results are stored after all the workers are done.
func (e *engine) pass(ctx context.Context, functions []*model.Function) error {
	results := make([]*dataflow.Result, len(functions))
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(e.numWorkers())
	for i, f := range functions {
		i, f := i, f
		initial := e.initialLabels(f)
		group.Go(func() error {
			res, err := e.analyzer.Analyze(f.ID, initial)
			results[i] = res
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for i, f := range functions {
		e.results[f.ID] = results[i]
	}
	return nil
}

// initialLabels returns the labels of the parameters bound to input bindings: the label propagated to the binding,
// joined with the trigger origin when the catalog declares the binding's kind as a trigger source
func (e *engine) initialLabels(f *model.Function) map[string]lattice.Label {
	initial := map[string]lattice.Label{}
	for _, b := range f.InputBindings() {
		param, ok := f.BoundParam(b)
		if !ok {
			continue
		}
		l := e.incoming[f.ID][b.ID]
		if entry, isSource := e.catalog.TriggerSource(b.Kind); isSource {
			l = l.Join(lattice.Of(lattice.NewTrigger(entry.Tag, f.ID)))
		}
		initial[param] = initial[param].Join(l)
	}
	return initial
}

// propagate joins the labels written by the producers of every trigger edge into the incoming labels of the
// consumer, and returns the consumers whose incoming labels changed.
//
// The writes of a helper to its own output bindings are in the summaries of its callers, with the labels of the
// callers' arguments, so the label of an output binding is joined over all the results.
func (e *engine) propagate() []*model.Function {
	written := map[dataflow.BindingRef]lattice.Label{}
	for _, f := range e.analyzer.Functions() {
		if res := e.results[f.ID]; res != nil {
			for ref, l := range res.Summary.Outputs {
				written[ref] = written[ref].Join(l.StripParams())
			}
		}
	}
	changed := map[string]bool{}
	for _, edge := range e.graph.Edges() {
		l := crossEdge(e.config, edge, written[dataflow.BindingRef{Function: edge.Producer, Binding: edge.Output}])
		if l.IsClean() {
			continue
		}
		old := e.incoming[edge.Consumer][edge.Input]
		if next := old.Join(l); !next.Equal(old) {
			e.incoming[edge.Consumer][edge.Input] = next
			changed[edge.Consumer] = true
		}
	}
	var r []*model.Function
	for _, f := range e.analyzer.Functions() {
		if changed[f.ID] {
			r = append(r, f)
		}
	}
	return r
}

// crossEdge returns the label delivered to the consumer of the edge when the producer writes the label. The entry
// hop is appended to the trail of every origin; origins that already crossed the edge, or that would exceed
// max-trigger-depth, are dropped.
func crossEdge(cfg *config.Config, edge triggergraph.Edge, written lattice.Label) lattice.Label {
	write := lattice.Hop{Function: edge.Producer, Binding: edge.Output}
	entry := lattice.Hop{
		Function:  edge.Consumer,
		Statement: lattice.EntryStatement,
		Binding:   edge.Input,
		Imprecise: edge.Imprecise,
	}
	var delivered []lattice.Origin
	for _, o := range written.Origins() {
		if o.Crossed(write, entry) {
			continue
		}
		next := o.WithHop(entry)
		if cfg.ExceedsMaxTriggerDepth(next.Depth()) {
			continue
		}
		delivered = append(delivered, next)
	}
	return lattice.Of(delivered...)
}
