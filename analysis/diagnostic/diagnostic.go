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

// Package diagnostic defines the errors the analyses report without aborting. Only a malformed function model is
// fatal, and only for the function it describes.
package diagnostic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the category of a diagnostic
type Kind int

const (
	// ParseGap is a statement or expression the parser could not classify. It produces Unknown taint.
	ParseGap Kind = iota + 1
	// UnresolvedBinding is a trigger edge matched on the resource kind only
	UnresolvedBinding
	// CatalogMiss is an API that is not in the sensitivity catalog. Its result is Unknown.
	CatalogMiss
	// NonConvergence is an analysis that reached its iteration cap. The result is partial.
	NonConvergence
	// MalformedFunctionModel is a structurally invalid function. The function is not analyzed.
	MalformedFunctionModel
)

var (
	// ErrParseGap is matched by errors.Is for ParseGap diagnostics
	ErrParseGap = errors.New("parse gap")
	// ErrUnresolvedBinding is matched by errors.Is for UnresolvedBinding diagnostics
	ErrUnresolvedBinding = errors.New("unresolved binding")
	// ErrCatalogMiss is matched by errors.Is for CatalogMiss diagnostics
	ErrCatalogMiss = errors.New("catalog miss")
	// ErrNonConvergence is matched by errors.Is for NonConvergence diagnostics
	ErrNonConvergence = errors.New("analysis did not converge")
	// ErrMalformedFunctionModel is matched by errors.Is for MalformedFunctionModel diagnostics
	ErrMalformedFunctionModel = errors.New("malformed function model")
)

func (k Kind) sentinel() error {
	switch k {
	case ParseGap:
		return ErrParseGap
	case UnresolvedBinding:
		return ErrUnresolvedBinding
	case CatalogMiss:
		return ErrCatalogMiss
	case NonConvergence:
		return ErrNonConvergence
	case MalformedFunctionModel:
		return ErrMalformedFunctionModel
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case ParseGap:
		return "ParseGap"
	case UnresolvedBinding:
		return "UnresolvedBinding"
	case CatalogMiss:
		return "CatalogMiss"
	case NonConvergence:
		return "NonConvergence"
	case MalformedFunctionModel:
		return "MalformedFunctionModel"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// NoStatement is the statement of diagnostics that are not about a specific statement
const NoStatement = -1

// A Diagnostic is a non-aborting error found by an analysis
type Diagnostic struct {
	Kind Kind
	// Function is the identifier of the function the diagnostic is about (empty if none)
	Function string
	// Statement is the identifier of the statement the diagnostic is about, or NoStatement
	Statement int
	// Message describes the problem
	Message string
}

// New returns a diagnostic. The message is formatted in the manner of Printf.
func New(kind Kind, function string, statement int, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:      kind,
		Function:  function,
		Statement: statement,
		Message:   fmt.Sprintf(format, args...),
	}
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Kind.String())
	if d.Function != "" {
		b.WriteString(" in ")
		b.WriteString(d.Function)
		if d.Statement != NoStatement {
			fmt.Fprintf(&b, " at statement %d", d.Statement)
		}
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Is implements errors.Is: a diagnostic is its kind's sentinel error
func (d *Diagnostic) Is(target error) bool {
	return target != nil && target == d.Kind.sentinel()
}

// Fatal returns true when the diagnostic prevents the analysis of its function
func (d *Diagnostic) Fatal() bool {
	return d.Kind == MalformedFunctionModel
}

// List is a list of diagnostics
type List []*Diagnostic

// Add appends the diagnostic to the list
func (l *List) Add(d *Diagnostic) {
	*l = append(*l, d)
}

// Addf creates a diagnostic and appends it to the list
func (l *List) Addf(kind Kind, function string, statement int, format string, args ...any) {
	l.Add(New(kind, function, statement, format, args...))
}

// Count returns the number of diagnostics of the kind
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Filter returns the diagnostics of some kind
func (l List) Filter(kind Kind) List {
	var r List
	for _, d := range l {
		if d.Kind == kind {
			r = append(r, d)
		}
	}
	return r
}

// Sort sorts the diagnostics by function, statement, kind and message
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		if a.Statement != b.Statement {
			return a.Statement < b.Statement
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}

// Err returns the diagnostics joined in one error, or nil if the list is empty
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	errs := make([]error, len(l))
	for i, d := range l {
		errs[i] = d
	}
	return errors.Join(errs...)
}
