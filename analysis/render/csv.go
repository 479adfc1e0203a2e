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
	"encoding/csv"
	"io"
	"strconv"

	"github.com/awslabs/cloudflow-go/analysis/taint"
)

// SummaryHeader is the header of the summary report
var SummaryHeader = []string{"Repository", "Analysis", "Individual Data Flows"}

// DataFlowsHeader is the header of the data flows report
var DataFlowsHeader = []string{
	"Repository", "Issue", "Severity", "Source Kind", "Source Tag", "Source Function", "Source Statement",
	"Sink Category", "Sink Callee", "Sink Function", "Sink Statement", "Taint Level", "Confidence", "Converged",
	"Path",
}

// WriteSummaryCSV writes one row per repository: its name, the status of its analysis and its number of data flows.
// The number of data flows is N/A when the analysis failed.
func WriteSummaryCSV(w io.Writer, results []RepositoryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range results {
		flows := "N/A"
		if r.Result != nil {
			flows = strconv.Itoa(len(r.Result.Findings))
		}
		if err := cw.Write([]string{r.Repository, r.Status(), flows}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDataFlowsCSV writes one row per finding of the repositories that have findings
func WriteDataFlowsCSV(w io.Writer, results []RepositoryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DataFlowsHeader); err != nil {
		return err
	}
	for _, r := range results {
		for _, f := range r.Findings() {
			if err := cw.Write(dataFlowRow(r.Repository, f)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func dataFlowRow(repository string, f taint.Finding) []string {
	return []string{
		repository,
		f.ID,
		f.Severity,
		f.Source.Kind.String(),
		f.Source.Tag,
		f.Source.Function,
		strconv.Itoa(f.Source.Statement),
		f.Sink.Category,
		f.Sink.Callee,
		f.Sink.Function,
		strconv.Itoa(f.Sink.Statement),
		f.Level.String(),
		f.Confidence.String(),
		strconv.FormatBool(f.Converged),
		f.Path(),
	}
}
