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

// Package render writes the reports of the analyses of serverless applications: a CSV summary with one row per
// analyzed repository, a CSV file of the individual data flows, a JSON document of the findings and a text
// description of each finding.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/taint"
)

// Names of the report files written in the reports directory
const (
	SummaryReportFile   = "cloudflow_summary_report.csv"
	DataFlowsReportFile = "cloudflow_data_flows_report.csv"
	FindingsReportFile  = "cloudflow_findings.json"
	TextReportFile      = "cloudflow_findings.txt"
)

// Analysis statuses of the summary report
const (
	StatusCompleted = "Completed"
	StatusPartial   = "Partial"
	StatusError     = "Error"
)

// RepositoryResult is the outcome of the analysis of one repository
type RepositoryResult struct {
	// Repository is the name of the repository, usually its directory name
	Repository string

	// RunID identifies the run that produced the result
	RunID string

	// Result is nil when the analysis failed
	Result *taint.AnalysisResult

	// Err is the error of the analysis. It may be set with a partial Result.
	Err error
}

// Status returns the analysis status of the summary report
func (r RepositoryResult) Status() string {
	switch {
	case r.Result == nil:
		return StatusError
	case r.Err != nil || !r.Result.Converged:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

// Findings returns the findings of the result, or nil
func (r RepositoryResult) Findings() []taint.Finding {
	if r.Result == nil {
		return nil
	}
	return r.Result.Findings
}

// WriteReports writes the reports of the formats of the configuration in its reports directory and returns the
// paths of the files written
func WriteReports(cfg *config.Config, logger *config.LogGroup, results []RepositoryResult) ([]string, error) {
	if len(cfg.ReportFormats) == 0 {
		return nil, nil
	}
	dir := cfg.ReportsDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("could not create reports directory: %w", err)
	}
	var written []string
	write := func(name string, render func(f *os.File) error) error {
		p := filepath.Join(dir, name)
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("could not create report: %w", err)
		}
		if err := render(f); err != nil {
			f.Close()
			return fmt.Errorf("could not write %s: %w", p, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Infof("Wrote %s", p)
		written = append(written, p)
		return nil
	}
	for _, format := range cfg.ReportFormats {
		var err error
		switch strings.ToLower(format) {
		case config.ReportFormatCSV:
			err = write(SummaryReportFile, func(f *os.File) error { return WriteSummaryCSV(f, results) })
			if err == nil {
				err = write(DataFlowsReportFile, func(f *os.File) error { return WriteDataFlowsCSV(f, results) })
			}
		case config.ReportFormatJSON:
			err = write(FindingsReportFile, func(f *os.File) error { return WriteJSON(f, results) })
		case config.ReportFormatText:
			err = write(TextReportFile, func(f *os.File) error {
				for _, r := range results {
					if err := WriteText(f, r, false); err != nil {
						return err
					}
				}
				return nil
			})
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
