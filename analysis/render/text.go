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

package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/taint"
	"github.com/awslabs/cloudflow-go/internal/formatutil"
	"golang.org/x/exp/maps"
)

// WriteText writes a description of the findings of the result, grouped by severity. Terminal colors are used when
// colored is true.
func WriteText(w io.Writer, r RepositoryResult, colored bool) error {
	paint := func(style func(...interface{}) string, s string) string {
		if colored {
			return style(s)
		}
		return s
	}
	p := &textPrinter{w: w}
	p.printf("%s %s (%s)\n", paint(formatutil.Bold, "Repository"), r.Repository, r.Status())
	if r.Err != nil {
		p.printf("  %s %s\n", paint(formatutil.Red, "error:"), formatutil.Sanitize(r.Err.Error()))
	}
	if r.Result == nil {
		return p.err
	}
	if !r.Result.Converged {
		p.printf("  %s the analysis stopped after %d passes before the labels were stable\n",
			paint(formatutil.Yellow, "warning:"), r.Result.Passes)
	}
	if len(r.Result.Findings) == 0 {
		p.printf("  %s\n", paint(formatutil.Green, "No data flow from a source to a sink"))
		return p.err
	}
	groups := taint.GroupBySeverity(r.Result.Findings)
	for _, sev := range orderedSeverities(groups) {
		label := sev
		if colored {
			label = formatutil.Severity(sev)
		}
		p.printf("  %s: %d\n", label, len(groups[sev]))
		for _, f := range groups[sev] {
			p.finding(f, paint)
		}
	}
	return p.err
}

// orderedSeverities returns the severities of the groups, most severe first
func orderedSeverities(groups map[string][]taint.Finding) []string {
	r := maps.Keys(groups)
	sort.Slice(r, func(i, j int) bool {
		if ri, rj := taint.SeverityRank(r[i]), taint.SeverityRank(r[j]); ri != rj {
			return ri < rj
		}
		return r[i] < r[j]
	})
	return r
}

type textPrinter struct {
	w   io.Writer
	err error
}

func (p *textPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *textPrinter) finding(f taint.Finding, paint func(func(...interface{}) string, string) string) {
	p.printf("    [%s] %s %q reaches %s sink %s\n", f.ID, f.Source.Kind, f.Source.Tag, f.Sink.Category,
		paint(formatutil.Cyan, f.Sink.Callee))
	for i, h := range f.Hops {
		arrow := "->"
		if i == 0 {
			arrow = "  "
		}
		p.printf("      %s %s\n", arrow, hopText(h))
	}
	if f.Confidence == taint.Imprecise {
		p.printf("      %s\n", paint(formatutil.Faint, "crosses a trigger whose resource is not known"))
	}
}

func hopText(h lattice.Hop) string {
	site := lattice.Site{Function: h.Function, Statement: h.Statement}.String()
	switch {
	case h.Binding == "":
		return site
	case h.IsEntry():
		return fmt.Sprintf("%s via input %s", site, h.Binding)
	default:
		s := fmt.Sprintf("%s writes %s", site, h.Binding)
		if h.Imprecise {
			s += " (imprecise)"
		}
		return s
	}
}
