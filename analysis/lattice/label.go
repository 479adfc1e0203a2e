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
	"sort"
	"strings"
)

// Level is the coarse taint level of a label: Untainted ⊑ Tainted ⊑ Unknown
type Level int

const (
	// Untainted values carry no sensitive data
	Untainted Level = iota
	// Tainted values carry data from an identified source
	Tainted
	// Unknown values may carry anything: the analysis lost precision
	Unknown
)

func (l Level) String() string {
	switch l {
	case Untainted:
		return "untainted"
	case Tainted:
		return "tainted"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

type entry struct {
	key    string
	origin Origin
}

// A Label is an element of the taint lattice: a set of origins and a set of parameter markers. The level of the
// label is derived from its origins. Parameter markers stand for the label of a function's parameter in the
// summary of that function; they are substituted by the labels of the actual arguments when the summary is
// applied.
//
// The zero Label is Untainted. Labels are immutable: operations return new labels.
type Label struct {
	origins []entry  // sorted by key
	params  []string // sorted
}

// Clean returns the Untainted label
func Clean() Label { return Label{} }

// Of returns the label containing the origins
func Of(origins ...Origin) Label {
	var l Label
	for _, o := range origins {
		l.origins = insertEntry(l.origins, entry{o.Key(), o})
	}
	return l
}

// ParamMarker returns the label of the parameter in the summary of its function
func ParamMarker(param string) Label {
	return Label{params: []string{param}}
}

func insertEntry(entries []entry, e entry) []entry {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].key >= e.key })
	if i < len(entries) && entries[i].key == e.key {
		return entries
	}
	r := make([]entry, 0, len(entries)+1)
	r = append(r, entries[:i]...)
	r = append(r, e)
	return append(r, entries[i:]...)
}

// Level returns the maximum level of the origins of the label, Untainted if it has none
func (l Label) Level() Level {
	lvl := Untainted
	for _, e := range l.origins {
		if k := e.origin.Kind.Level(); k > lvl {
			lvl = k
		}
	}
	return lvl
}

// IsClean returns true if the label has no origin and no parameter marker
func (l Label) IsClean() bool {
	return len(l.origins) == 0 && len(l.params) == 0
}

// Origins returns the origins of the label, sorted by key
func (l Label) Origins() []Origin {
	r := make([]Origin, len(l.origins))
	for i, e := range l.origins {
		r[i] = e.origin
	}
	return r
}

// Params returns the parameter markers of the label, sorted
func (l Label) Params() []string {
	return append([]string(nil), l.params...)
}

// HasParam returns true if the label contains the marker of the parameter
func (l Label) HasParam(param string) bool {
	i := sort.SearchStrings(l.params, param)
	return i < len(l.params) && l.params[i] == param
}

// Tags returns the sorted tags of the source and trigger origins of the label
func (l Label) Tags() []string {
	seen := map[string]bool{}
	var tags []string
	for _, e := range l.origins {
		if !e.origin.Unresolved() && !seen[e.origin.Tag] {
			seen[e.origin.Tag] = true
			tags = append(tags, e.origin.Tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Join returns the least upper bound of the labels
func (l Label) Join(other Label) Label {
	if len(other.origins) == 0 && len(other.params) == 0 {
		return l
	}
	if len(l.origins) == 0 && len(l.params) == 0 {
		return other
	}
	return Label{
		origins: mergeEntries(l.origins, other.origins),
		params:  mergeStrings(l.params, other.params),
	}
}

// Join returns the least upper bound of all the labels
func Join(labels ...Label) Label {
	var r Label
	for _, l := range labels {
		r = r.Join(l)
	}
	return r
}

func mergeEntries(a, b []entry) []entry {
	r := make([]entry, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].key < b[j].key:
			r = append(r, a[i])
			i++
		case a[i].key > b[j].key:
			r = append(r, b[j])
			j++
		default:
			r = append(r, a[i])
			i++
			j++
		}
	}
	r = append(r, a[i:]...)
	return append(r, b[j:]...)
}

func mergeStrings(a, b []string) []string {
	r := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			r = append(r, a[i])
			i++
		case a[i] > b[j]:
			r = append(r, b[j])
			j++
		default:
			r = append(r, a[i])
			i++
			j++
		}
	}
	r = append(r, a[i:]...)
	return append(r, b[j:]...)
}

// Leq returns true if l ⊑ other: every origin and every marker of l is in other
func (l Label) Leq(other Label) bool {
	j := 0
	for _, e := range l.origins {
		for j < len(other.origins) && other.origins[j].key < e.key {
			j++
		}
		if j == len(other.origins) || other.origins[j].key != e.key {
			return false
		}
	}
	for _, p := range l.params {
		if !other.HasParam(p) {
			return false
		}
	}
	return true
}

// Equal returns true if the labels contain the same origins and markers
func (l Label) Equal(other Label) bool {
	if len(l.origins) != len(other.origins) || len(l.params) != len(other.params) {
		return false
	}
	for i := range l.origins {
		if l.origins[i].key != other.origins[i].key {
			return false
		}
	}
	for i := range l.params {
		if l.params[i] != other.params[i] {
			return false
		}
	}
	return true
}

// StripParams returns the label without its parameter markers
func (l Label) StripParams() Label {
	return Label{origins: l.origins}
}

// Substitute replaces every parameter marker of the label by the label actual returns for that parameter
func (l Label) Substitute(actual func(param string) Label) Label {
	r := l.StripParams()
	for _, p := range l.params {
		r = r.Join(actual(p))
	}
	return r
}

// Filter returns the label with only the origins for which keep returns true. Markers are kept.
func (l Label) Filter(keep func(Origin) bool) Label {
	r := Label{params: l.params}
	for _, e := range l.origins {
		if keep(e.origin) {
			r.origins = append(r.origins, e)
		}
	}
	return r
}

// Map returns the label with the origins transformed by f. Markers are kept.
func (l Label) Map(f func(Origin) Origin) Label {
	r := Label{params: l.params}
	for _, e := range l.origins {
		o := f(e.origin)
		r.origins = insertEntry(r.origins, entry{o.Key(), o})
	}
	return r
}

// WithHop returns the label with the hop appended to the trail of every origin
func (l Label) WithHop(h Hop) Label {
	return l.Map(func(o Origin) Origin { return o.WithHop(h) })
}

func (l Label) String() string {
	if l.IsClean() {
		return Untainted.String()
	}
	parts := make([]string, 0, len(l.origins)+len(l.params))
	for _, e := range l.origins {
		parts = append(parts, e.origin.Kind.String()+":"+e.origin.Tag+"@"+e.origin.Site.String())
	}
	for _, p := range l.params {
		parts = append(parts, "param:"+p)
	}
	return l.Level().String() + "{" + strings.Join(parts, ", ") + "}"
}
