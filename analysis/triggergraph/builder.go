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

// Package triggergraph builds the trigger graph of an application: the directed graph of functions connected by
// the resources one function writes to and another function is triggered by.
//
// An edge connects an output binding of a producer to an input binding of a consumer when the bindings have the
// same resource kind and the same resource, and compatible events. Bindings whose resource is not statically known
// are matched on the kind alone, and the edge is imprecise. Self-loops and multi-edges are kept; functions without
// edges are still part of the graph.
package triggergraph

import (
	"path"
	"sort"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/model"
)

// Edge is a trigger edge: the writes of the producer to its output binding invoke the consumer through its input
// binding
type Edge struct {
	Producer string
	Output   string
	Consumer string
	Input    string

	Kind model.ResourceKind
	// Resource is the resource of the edge, empty when one of the bindings is not resolved
	Resource string
	// Imprecise edges were matched on the resource kind only
	Imprecise bool
}

func (e Edge) String() string {
	s := e.Producer + "." + e.Output + " -> " + e.Consumer + "." + e.Input
	if e.Imprecise {
		s += " (imprecise)"
	}
	return s
}

func (e Edge) less(o Edge) bool {
	if e.Producer != o.Producer {
		return e.Producer < o.Producer
	}
	if e.Output != o.Output {
		return e.Output < o.Output
	}
	if e.Consumer != o.Consumer {
		return e.Consumer < o.Consumer
	}
	return e.Input < o.Input
}

// DropReason is the reason a pair of matching bindings did not produce an edge
type DropReason string

const (
	// Unauthorized pairs have a producer whose policy does not allow the write
	Unauthorized DropReason = "unauthorized"
	// EventRule pairs have an object key rejected by the filter of the consumer
	EventRule DropReason = "event-rule"
)

// DroppedEdge is a pair of bindings that match but were filtered out
type DroppedEdge struct {
	Edge
	Reason DropReason
}

// A Builder builds trigger graphs
type Builder struct {
	config   *config.Config
	logger   *config.LogGroup
	services *catalog.Services
}

// NewBuilder returns a builder. The service catalog provides the actions of output bindings that do not declare
// them; it can be nil.
func NewBuilder(cfg *config.Config, logger *config.LogGroup, services *catalog.Services) *Builder {
	return &Builder{config: cfg, logger: logger, services: services}
}

// Build returns the trigger graph of the functions. Nil functions and functions with duplicate identifiers are
// ignored.
func (b *Builder) Build(functions []*model.Function) *Graph {
	g := newGraph(functions)
	for _, producer := range g.functions {
		for _, out := range producer.OutputBindings() {
			for _, consumer := range g.functions {
				for _, in := range consumer.InputBindings() {
					b.match(g, producer, out, consumer, in)
				}
			}
		}
	}
	g.finish()
	b.logger.Debugf("trigger graph: %d functions, %d edges, %d dropped", len(g.functions), len(g.edges),
		len(g.dropped))
	return g
}

// Build returns the trigger graph of the functions with the default options
func Build(functions []*model.Function) *Graph {
	cfg := config.NewDefault()
	return NewBuilder(cfg, config.NewLogGroup(cfg), nil).Build(functions)
}

func (b *Builder) match(g *Graph, producer *model.Function, out *model.Binding, consumer *model.Function,
	in *model.Binding) {
	if out.Kind != in.Kind {
		return
	}
	e := Edge{
		Producer: producer.ID,
		Output:   out.ID,
		Consumer: consumer.ID,
		Input:    in.ID,
		Kind:     out.Kind,
	}
	if out.Resolved() && in.Resolved() {
		if out.Resource != in.Resource || !eventsCompatible(out.Event, in.Event) {
			return
		}
		e.Resource = out.Resource
	} else {
		e.Imprecise = true
	}

	if b.config.FilterEventRules && !admitted(out, in) {
		b.drop(g, e, EventRule)
		return
	}
	if b.config.FilterUnauthorizedTriggers && !b.authorized(producer, out) {
		b.drop(g, e, Unauthorized)
		return
	}
	if e.Imprecise {
		g.Diagnostics.Addf(diagnostic.UnresolvedBinding, consumer.ID, diagnostic.NoStatement,
			"%s matched on resource kind %s only", e, e.Kind)
	}
	g.addEdge(e)
}

func (b *Builder) drop(g *Graph, e Edge, reason DropReason) {
	b.logger.Debugf("dropping trigger edge %s: %s", e, reason)
	g.dropped = append(g.dropped, DroppedEdge{Edge: e, Reason: reason})
}

// eventsCompatible returns true when one of the events is not declared, or when one matches the other as a
// pattern, as s3:ObjectCreated:* matches s3:ObjectCreated:Put
func eventsCompatible(a, b string) bool {
	if a == "" || b == "" || a == "*" || b == "*" || strings.EqualFold(a, b) {
		return true
	}
	return patternMatches(a, b) || patternMatches(b, a)
}

func patternMatches(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return false
	}
	ok, err := path.Match(strings.ToLower(pattern), strings.ToLower(value))
	return err == nil && ok
}

// admitted returns false when the object key written by the producer is known and rejected by the filter of the
// consumer's binding
func admitted(out, in *model.Binding) bool {
	if in.Filter == nil || out.ObjectKey == "" {
		return true
	}
	return in.Filter.Admits(out.ObjectKey)
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].less(edges[j]) })
}
