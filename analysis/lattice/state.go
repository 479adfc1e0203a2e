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

	"golang.org/x/exp/maps"
)

// VariableState maps variables to labels. Variables absent from the map are Untainted; Set never stores clean
// labels so that equal states have equal maps.
type VariableState map[string]Label

// Get returns the label of the variable
func (s VariableState) Get(name string) Label {
	return s[name]
}

// Set sets the label of the variable
func (s VariableState) Set(name string, l Label) {
	if l.IsClean() {
		delete(s, name)
		return
	}
	s[name] = l
}

// Clone returns a copy of the state. Labels are immutable and shared.
func (s VariableState) Clone() VariableState {
	r := make(VariableState, len(s))
	for k, v := range s {
		r[k] = v
	}
	return r
}

// Join returns the pointwise join of the states
func (s VariableState) Join(other VariableState) VariableState {
	r := s.Clone()
	for k, v := range other {
		r.Set(k, r[k].Join(v))
	}
	return r
}

// Leq returns true if every label of s is below the label of the same variable in other
func (s VariableState) Leq(other VariableState) bool {
	for k, v := range s {
		if !v.Leq(other[k]) {
			return false
		}
	}
	return true
}

// Equal returns true if the states map the same variables to equal labels
func (s VariableState) Equal(other VariableState) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		w, ok := other[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Variables returns the sorted names of the variables that are not Untainted
func (s VariableState) Variables() []string {
	keys := maps.Keys(s)
	sort.Strings(keys)
	return keys
}

func (s VariableState) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range s.Variables() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k + ": " + s[k].String())
	}
	b.WriteString("}")
	return b.String()
}
