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
	"io"

	"github.com/awslabs/cloudflow-go/analysis"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/taint"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the JSON report of a run
type Document struct {
	Version      string               `json:"version"`
	Repositories []RepositoryDocument `json:"repositories"`
}

// RepositoryDocument is the JSON report of the analysis of one repository
type RepositoryDocument struct {
	Repository  string            `json:"repository"`
	RunID       string            `json:"run_id,omitempty"`
	Analysis    string            `json:"analysis"`
	Error       string            `json:"error,omitempty"`
	Converged   bool              `json:"converged"`
	Passes      int               `json:"passes"`
	Findings    []FindingDocument `json:"findings"`
	Diagnostics []string          `json:"diagnostics,omitempty"`
}

// FindingDocument is the JSON representation of a finding
type FindingDocument struct {
	ID         string        `json:"id"`
	Severity   string        `json:"severity"`
	Source     SiteDocument  `json:"source"`
	Sink       SiteDocument  `json:"sink"`
	Hops       []HopDocument `json:"hops"`
	Level      string        `json:"level"`
	Confidence string        `json:"confidence"`
	Converged  bool          `json:"converged"`
}

// SiteDocument is a source or sink site
type SiteDocument struct {
	Function  string `json:"function"`
	Statement int    `json:"statement"`
	// Kind is the origin kind of a source, the callee of a sink
	Kind string `json:"kind,omitempty"`
	// Tag is the tag of a source, the category of a sink
	Tag string `json:"tag"`
}

// HopDocument is one hop of the path of a finding
type HopDocument struct {
	Function  string `json:"function"`
	Statement int    `json:"statement"`
	Binding   string `json:"binding,omitempty"`
	Imprecise bool   `json:"imprecise,omitempty"`
}

// NewDocument returns the JSON report of the results
func NewDocument(results []RepositoryResult) Document {
	return Document{
		Version:      analysis.Version,
		Repositories: lo.Map(results, func(r RepositoryResult, _ int) RepositoryDocument { return repositoryDocument(r) }),
	}
}

func repositoryDocument(r RepositoryResult) RepositoryDocument {
	d := RepositoryDocument{
		Repository: r.Repository,
		RunID:      r.RunID,
		Analysis:   r.Status(),
		Findings:   lo.Map(r.Findings(), func(f taint.Finding, _ int) FindingDocument { return findingDocument(f) }),
	}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	if r.Result != nil {
		d.Converged = r.Result.Converged
		d.Passes = r.Result.Passes
		for _, diag := range r.Result.Diagnostics {
			d.Diagnostics = append(d.Diagnostics, diag.Error())
		}
	}
	return d
}

func findingDocument(f taint.Finding) FindingDocument {
	return FindingDocument{
		ID:       f.ID,
		Severity: f.Severity,
		Source: SiteDocument{
			Function:  f.Source.Function,
			Statement: f.Source.Statement,
			Kind:      f.Source.Kind.String(),
			Tag:       f.Source.Tag,
		},
		Sink: SiteDocument{
			Function:  f.Sink.Function,
			Statement: f.Sink.Statement,
			Kind:      f.Sink.Callee,
			Tag:       f.Sink.Category,
		},
		Hops: lo.Map(f.Hops, func(h lattice.Hop, _ int) HopDocument {
			return HopDocument{Function: h.Function, Statement: h.Statement, Binding: h.Binding, Imprecise: h.Imprecise}
		}),
		Level:      f.Level.String(),
		Confidence: f.Confidence.String(),
		Converged:  f.Converged,
	}
}

// WriteJSON writes the JSON report of the results
func WriteJSON(w io.Writer, results []RepositoryResult) error {
	b, err := json.MarshalIndent(NewDocument(results), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// ReadJSON reads a JSON report
func ReadJSON(r io.Reader) (Document, error) {
	var d Document
	err := json.NewDecoder(r).Decode(&d)
	return d, err
}
