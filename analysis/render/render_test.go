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
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/taint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFinding() taint.Finding {
	return taint.Finding{
		ID:     "0123abcd",
		Source: taint.SourceSite{Function: "ingest", Statement: lattice.EntryStatement, Tag: "user-input", Kind: lattice.TriggerOrigin},
		Sink:   taint.SinkSite{Function: "process", Statement: 2, Category: "exec", Callee: "subprocess.run"},
		Hops: []lattice.Hop{
			{Function: "ingest", Statement: lattice.EntryStatement},
			{Function: "ingest", Statement: 1, Binding: "s3-write-0"},
			{Function: "process", Statement: lattice.EntryStatement, Binding: "s3-0"},
			{Function: "process", Statement: 2},
		},
		Level:     lattice.Tainted,
		Converged: true,
		Severity:  "critical",
	}
}

func testResults() []RepositoryResult {
	return []RepositoryResult{
		{Repository: "shop", RunID: "run-1", Result: &taint.AnalysisResult{
			Findings:  []taint.Finding{testFinding()},
			Converged: true,
			Passes:    2,
		}},
		{Repository: "slow", Result: &taint.AnalysisResult{Passes: 50}},
		{Repository: "broken", Err: errors.New("no serverless.yml")},
	}
}

func TestSummaryCSV(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&b, testResults()))
	want := "Repository,Analysis,Individual Data Flows\n" +
		"shop,Completed,1\n" +
		"slow,Partial,0\n" +
		"broken,Error,N/A\n"
	assert.Equal(t, want, b.String())
}

func TestDataFlowsCSV(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteDataFlowsCSV(&b, testResults()))
	rows, err := csv.NewReader(&b).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, DataFlowsHeader, rows[0])
	assert.Equal(t, []string{
		"shop", "0123abcd", "critical", "trigger", "user-input", "ingest", "-1", "exec", "subprocess.run",
		"process", "2", "tainted", "precise", "true",
		"ingest:entry -> ingest:1(s3-write-0) -> process:entry(s3-0) -> process:2",
	}, rows[1])
}

func TestJSON(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteJSON(&b, testResults()))
	doc, err := ReadJSON(&b)
	require.NoError(t, err)
	require.Len(t, doc.Repositories, 3)

	shop := doc.Repositories[0]
	assert.Equal(t, "run-1", shop.RunID)
	assert.Equal(t, StatusCompleted, shop.Analysis)
	require.Len(t, shop.Findings, 1)
	f := shop.Findings[0]
	assert.Equal(t, "0123abcd", f.ID)
	assert.Equal(t, SiteDocument{Function: "process", Statement: 2, Kind: "subprocess.run", Tag: "exec"}, f.Sink)
	assert.Len(t, f.Hops, 4)
	assert.Equal(t, "s3-write-0", f.Hops[1].Binding)

	assert.Empty(t, doc.Repositories[1].Findings)
	assert.Equal(t, "no serverless.yml", doc.Repositories[2].Error)
}

func TestText(t *testing.T) {
	var b bytes.Buffer
	for _, r := range testResults() {
		require.NoError(t, WriteText(&b, r, false))
	}
	out := b.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "Repository shop (Completed)")
	assert.Contains(t, out, "critical: 1")
	assert.Contains(t, out, `trigger "user-input" reaches exec sink subprocess.run`)
	assert.Contains(t, out, "ingest:1 writes s3-write-0")
	assert.Contains(t, out, "process:entry via input s3-0")
	assert.Contains(t, out, "stopped after 50 passes")
	assert.Contains(t, out, "error: no serverless.yml")
}

func TestOrderedSeverities(t *testing.T) {
	groups := map[string][]taint.Finding{"low": nil, "critical": nil, "custom": nil, "medium": nil}
	assert.Equal(t, []string{"critical", "medium", "low", "custom"}, orderedSeverities(groups))
}

func TestWriteReports(t *testing.T) {
	cfg := config.NewDefault()
	cfg.ReportsDir = filepath.Join(t.TempDir(), "reports")
	cfg.ReportFormats = []string{"csv", "json", "text"}
	written, err := WriteReports(cfg, config.NewLogGroup(cfg), testResults())
	require.NoError(t, err)
	var names []string
	for _, p := range written {
		names = append(names, filepath.Base(p))
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{SummaryReportFile, DataFlowsReportFile, FindingsReportFile, TextReportFile}, names)

	b, err := os.ReadFile(filepath.Join(cfg.ReportsDir, SummaryReportFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "Repository,Analysis,Individual Data Flows\n"))
}

func TestWriteReportsUnknownFormat(t *testing.T) {
	cfg := config.NewDefault()
	cfg.ReportsDir = t.TempDir()
	cfg.ReportFormats = []string{"xml"}
	_, err := WriteReports(cfg, config.NewLogGroup(cfg), nil)
	assert.Error(t, err)
}
