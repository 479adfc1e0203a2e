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
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/dataflow"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/minio/highwayhash"
	"github.com/samber/lo"
	"golang.org/x/exp/maps"
)

// Confidence is the confidence of a finding: imprecise findings cross at least one trigger edge matched on the
// resource kind only
type Confidence int

const (
	// Precise findings only cross edges between resolved bindings
	Precise Confidence = iota
	// Imprecise findings cross an edge matched on the resource kind only
	Imprecise
)

func (c Confidence) String() string {
	if c == Imprecise {
		return "imprecise"
	}
	return "precise"
}

// MarshalText implements encoding.TextMarshaler
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// SourceSite is where the taint of a finding entered the application
type SourceSite struct {
	Function  string
	Statement int
	Tag       string
	Kind      lattice.OriginKind
}

// SinkSite is the sink call of a finding
type SinkSite struct {
	Function  string
	Statement int
	Category  string
	Callee    string
}

// A Finding is a flow from a source to a sink
type Finding struct {
	// ID is a fingerprint of the source site, the sink site and the hops
	ID     string
	Source SourceSite
	Sink   SinkSite
	// Hops starts at the source site, goes through the writes and entries of the trigger edges crossed, and ends
	// at the sink site. Hops at sites have no binding.
	Hops []lattice.Hop
	// Level is Tainted for sources and triggers, Unknown for unresolved calls and parse gaps
	Level      lattice.Level
	Confidence Confidence
	// Converged is false when the analysis stopped before the labels were stable
	Converged bool
	Severity  string
}

func (f Finding) key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%d|%s|%s|%d|%s", f.Source.Kind, f.Source.Function, f.Source.Statement, f.Source.Tag,
		f.Sink.Function, f.Sink.Statement, f.Sink.Category)
	for _, h := range f.Hops {
		b.WriteString("|" + h.String())
	}
	return b.String()
}

// Path returns the hops of the finding as a string
func (f Finding) Path() string {
	parts := make([]string, len(f.Hops))
	for i, h := range f.Hops {
		if h.Binding == "" {
			parts[i] = lattice.Site{Function: h.Function, Statement: h.Statement}.String()
		} else {
			parts[i] = h.String()
		}
	}
	return strings.Join(parts, " -> ")
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s:%s -> %s (%s, %s)", f.Severity, f.Source.Kind, f.Source.Tag, f.Path(),
		f.Sink.Category, f.Level, f.Confidence)
}

// severityOrder is the order of findings, most severe first. Unknown severities come last.
var severityOrder = []string{"critical", "high", "medium", "low", "info"}

// SeverityRank returns the rank of the severity, 0 for the most severe
func SeverityRank(severity string) int {
	for i, s := range severityOrder {
		if strings.EqualFold(s, severity) {
			return i
		}
	}
	return len(severityOrder)
}

// fingerprintKey is the key of the highwayhash fingerprints of findings. Fixed so that IDs are stable across runs.
var fingerprintKey = []byte("cloudflow-findings-fingerprint-0")

func fingerprint(key string) string {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(key))
	return fmt.Sprintf("%016x", h.Sum64())
}

// A Reporter turns sink hits into findings
type Reporter struct {
	severity         config.SeveritySpec
	catalog          *catalog.Catalog
	reportUnresolved bool
}

// NewReporter returns a reporter using the severity policy and the unresolved-findings option of the configuration
func NewReporter(cfg *config.Config, cat *catalog.Catalog) *Reporter {
	return &Reporter{severity: cfg.Severity, catalog: cat, reportUnresolved: cfg.ReportUnresolved}
}

// Report returns the findings of the sink hits of the results: one per origin of the label of each hit, without
// duplicates, ordered by severity then by source, sink and hops
func (r *Reporter) Report(results map[string]*dataflow.Result, converged bool) []Finding {
	var findings []Finding
	ids := maps.Keys(results)
	sort.Strings(ids)
	for _, id := range ids {
		res := results[id]
		if res == nil {
			continue
		}
		for _, hit := range res.SinkHits() {
			for _, o := range hit.Label.Origins() {
				if o.Unresolved() && !r.reportUnresolved {
					continue
				}
				findings = append(findings, r.finding(o, hit, converged))
			}
		}
	}
	findings = lo.UniqBy(findings, func(f Finding) string { return f.ID })
	SortFindings(findings)
	return findings
}

func (r *Reporter) finding(o lattice.Origin, hit dataflow.SinkHit, converged bool) Finding {
	f := Finding{
		Source: SourceSite{Function: o.Site.Function, Statement: o.Site.Statement, Tag: o.Tag, Kind: o.Kind},
		Sink: SinkSite{
			Function:  hit.Site.Function,
			Statement: hit.Site.Statement,
			Category:  hit.Category,
			Callee:    hit.Callee,
		},
		Level:     o.Kind.Level(),
		Converged: converged,
		Severity:  r.Severity(o, hit),
	}
	f.Hops = append(f.Hops, lattice.Hop{Function: o.Site.Function, Statement: o.Site.Statement})
	f.Hops = append(f.Hops, o.Trail...)
	f.Hops = append(f.Hops, lattice.Hop{Function: hit.Site.Function, Statement: hit.Site.Statement})
	if o.Imprecise() {
		f.Confidence = Imprecise
	}
	f.ID = fingerprint(f.key())
	return f
}

// Severity returns the severity of the flow of the origin to the sink: the severity of the first rule matching the
// tag of the origin and the category of the sink, else the severity of the sink entry, else the severity of the
// source entry, else the default severity. Unresolved origins have the unresolved severity.
func (r *Reporter) Severity(o lattice.Origin, hit dataflow.SinkHit) string {
	if o.Unresolved() {
		return r.severity.Unresolved
	}
	for _, rule := range r.severity.Rules {
		if rule.Matches(o.Tag, hit.Category) {
			return rule.Severity
		}
	}
	if hit.Severity != "" {
		return hit.Severity
	}
	if r.catalog != nil {
		if s := r.catalog.SourceSeverity(o.Tag); s != "" {
			return s
		}
	}
	return r.severity.Default
}

// SortFindings sorts the findings by severity, then by source site, sink site and hops
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := SeverityRank(a.Severity), SeverityRank(b.Severity); ra != rb {
			return ra < rb
		}
		if a.Source != b.Source {
			return lessSource(a.Source, b.Source)
		}
		if a.Sink != b.Sink {
			return lessSink(a.Sink, b.Sink)
		}
		return a.Path() < b.Path()
	})
}

func lessSource(a, b SourceSite) bool {
	if a.Function != b.Function {
		return a.Function < b.Function
	}
	if a.Statement != b.Statement {
		return a.Statement < b.Statement
	}
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	return a.Kind < b.Kind
}

func lessSink(a, b SinkSite) bool {
	if a.Function != b.Function {
		return a.Function < b.Function
	}
	if a.Statement != b.Statement {
		return a.Statement < b.Statement
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.Callee < b.Callee
}

// GroupBySeverity returns the findings grouped by severity, in the order of the findings
func GroupBySeverity(findings []Finding) map[string][]Finding {
	return lo.GroupBy(findings, func(f Finding) string { return f.Severity })
}
