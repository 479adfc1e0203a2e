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

package lattice

import (
	"fmt"
	"strconv"
	"strings"
)

// OriginKind is the kind of event that introduced taint in a label
type OriginKind int

const (
	// SourceOrigin is a call to a source API
	SourceOrigin OriginKind = iota
	// TriggerOrigin is the payload of a sensitive trigger (e.g. an HTTP request)
	TriggerOrigin
	// UnresolvedOrigin is a call the analysis could not resolve: a catalog miss, or a recursive call that has not
	// been summarized yet
	UnresolvedOrigin
	// ParseGapOrigin is a statement or expression the parser could not classify
	ParseGapOrigin
)

func (k OriginKind) String() string {
	switch k {
	case SourceOrigin:
		return "source"
	case TriggerOrigin:
		return "trigger"
	case UnresolvedOrigin:
		return "unresolved"
	case ParseGapOrigin:
		return "parse-gap"
	default:
		return "origin(" + strconv.Itoa(int(k)) + ")"
	}
}

// Level returns the taint level of labels containing an origin of this kind
func (k OriginKind) Level() Level {
	if k == UnresolvedOrigin || k == ParseGapOrigin {
		return Unknown
	}
	return Tainted
}

// EntryStatement is the statement of sites and hops located at the entry of a function, before its first
// statement
const EntryStatement = -1

// Site is a statement in a function
type Site struct {
	Function  string
	Statement int
}

func (s Site) String() string {
	if s.Statement == EntryStatement {
		return s.Function + ":entry"
	}
	return s.Function + ":" + strconv.Itoa(s.Statement)
}

// Hop is one step of the trail of an origin across function boundaries: the write of a producer to one of its
// output bindings, or the entry of a consumer through one of its input bindings.
type Hop struct {
	Function  string
	Statement int
	Binding   string
	// Imprecise is true when the hop crosses an edge whose resource could not be resolved
	Imprecise bool
}

// IsEntry returns true if the hop is the entry of a consumer in a function
func (h Hop) IsEntry() bool {
	return h.Statement == EntryStatement
}

func (h Hop) String() string {
	s := Site{h.Function, h.Statement}.String() + "(" + h.Binding + ")"
	if h.Imprecise {
		s += "?"
	}
	return s
}

// An Origin is where some taint entered the application, with the trail of hops it followed since
type Origin struct {
	Kind OriginKind
	// Tag is the tag of the source or trigger, or a short description for unresolved and parse-gap origins
	Tag   string
	Site  Site
	Trail []Hop
}

// NewSource returns the origin of a source call
func NewSource(tag string, function string, statement int) Origin {
	return Origin{Kind: SourceOrigin, Tag: tag, Site: Site{function, statement}}
}

// NewTrigger returns the origin of a sensitive trigger payload
func NewTrigger(tag string, function string) Origin {
	return Origin{Kind: TriggerOrigin, Tag: tag, Site: Site{function, EntryStatement}}
}

// NewUnresolved returns the origin of a call the analysis could not resolve
func NewUnresolved(callee string, function string, statement int) Origin {
	return Origin{Kind: UnresolvedOrigin, Tag: callee, Site: Site{function, statement}}
}

// NewParseGap returns the origin of an unclassified statement or expression
func NewParseGap(function string, statement int) Origin {
	return Origin{Kind: ParseGapOrigin, Tag: "parse-gap", Site: Site{function, statement}}
}

// Unresolved returns true if the origin does not correspond to an identified source
func (o Origin) Unresolved() bool {
	return o.Kind.Level() == Unknown
}

// Imprecise returns true if one of the hops of the origin crosses an unresolved edge
func (o Origin) Imprecise() bool {
	for _, h := range o.Trail {
		if h.Imprecise {
			return true
		}
	}
	return false
}

// Depth returns the number of trigger edges the origin crossed
func (o Origin) Depth() int {
	n := 0
	for _, h := range o.Trail {
		if h.IsEntry() {
			n++
		}
	}
	return n
}

// WithHop returns a copy of the origin with the hop appended to its trail. The trail of o is not modified.
func (o Origin) WithHop(h Hop) Origin {
	trail := make([]Hop, len(o.Trail), len(o.Trail)+1)
	copy(trail, o.Trail)
	o.Trail = append(trail, h)
	return o
}

// Crossed returns true if the trail of the origin contains the write hop immediately followed by the entry hop,
// ignoring statements and precision
func (o Origin) Crossed(write Hop, entry Hop) bool {
	for i := 0; i+1 < len(o.Trail); i++ {
		a, b := o.Trail[i], o.Trail[i+1]
		if a.Function == write.Function && a.Binding == write.Binding &&
			b.Function == entry.Function && b.Binding == entry.Binding {
			return true
		}
	}
	return false
}

// Key returns a string identifying the origin. Two origins are equal if and only if their keys are equal.
func (o Origin) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|%d", o.Kind, o.Tag, o.Site.Function, o.Site.Statement)
	for _, h := range o.Trail {
		fmt.Fprintf(&b, "|%s#%d#%s#%t", h.Function, h.Statement, h.Binding, h.Imprecise)
	}
	return b.String()
}

func (o Origin) String() string {
	s := o.Kind.String() + ":" + o.Tag + "@" + o.Site.String()
	for _, h := range o.Trail {
		s += " -> " + h.String()
	}
	return s
}
