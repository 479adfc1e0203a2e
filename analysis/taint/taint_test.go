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
	"context"
	_ "embed"
	"errors"
	"io"
	"testing"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/dataflow"
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/awslabs/cloudflow-go/analysis/lattice"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

//go:embed testdata/cross.yaml
var crossYaml []byte

//go:embed testdata/cycle.yaml
var cycleYaml []byte

//go:embed testdata/imprecise.yaml
var impreciseYaml []byte

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefault()
	require.NoError(t, err)
	cfg.Workers = 2
	return cfg
}

func analyzeYaml(t *testing.T, cfg *config.Config, data []byte) *AnalysisResult {
	t.Helper()
	app, err := model.Decode(data)
	require.NoError(t, err)
	res, err := analyzeFunctions(context.Background(), cfg, app.Functions)
	require.NoError(t, err)
	return res
}

func analyzeFunctions(ctx context.Context, cfg *config.Config, functions []*model.Function) (*AnalysisResult,
	error) {
	logger := config.NewLogGroup(cfg)
	logger.SetAllOutput(io.Discard)
	services, err := catalog.ServicesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return AnalyzeWith(ctx, cfg, logger, catalog.FromConfig(cfg), services, functions)
}

func TestDirectFlowIsPrecise(t *testing.T) {
	f := &model.Function{ID: "f", Deployed: true, Statements: []*model.Statement{
		{ID: 0, Kind: model.Assign, Target: "x", Value: model.CallOf("s3.get_object"), Succs: []int{1}},
		{ID: 1, Kind: model.CallStmt, Value: model.CallOf("requests.post", model.Ref("x"))},
	}}
	res, err := analyzeFunctions(context.Background(), loadConfig(t), []*model.Function{f})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	finding := res.Findings[0]
	assert.Equal(t, Precise, finding.Confidence)
	assert.Equal(t, lattice.Tainted, finding.Level)
	assert.True(t, finding.Converged)
	assert.Equal(t, SourceSite{Function: "f", Statement: 0, Tag: "stored-data", Kind: lattice.SourceOrigin},
		finding.Source)
	assert.Equal(t, SinkSite{Function: "f", Statement: 1, Category: "http", Callee: "requests.post"}, finding.Sink)
	assert.Equal(t, "high", finding.Severity)
	assert.Len(t, finding.ID, 16)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Passes)
}

func TestSanitizedFlowHasNoFinding(t *testing.T) {
	f := &model.Function{ID: "f", Statements: []*model.Statement{
		{ID: 0, Kind: model.Assign, Target: "x", Value: model.CallOf("s3.get_object"), Succs: []int{1}},
		{ID: 1, Kind: model.Assign, Target: "x", Value: model.CallOf("hashlib.sha256", model.Ref("x")),
			Succs: []int{2}},
		{ID: 2, Kind: model.CallStmt, Value: model.CallOf("requests.post", model.Ref("x"))},
	}}
	res, err := analyzeFunctions(context.Background(), loadConfig(t), []*model.Function{f})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
}

func TestCrossFunctionFlow(t *testing.T) {
	res := analyzeYaml(t, loadConfig(t), crossYaml)
	require.Len(t, res.Findings, 1)
	finding := res.Findings[0]
	assert.Equal(t, "producer", finding.Source.Function)
	assert.Equal(t, "consumer", finding.Sink.Function)
	assert.Equal(t, []lattice.Hop{
		{Function: "producer", Statement: 0},
		{Function: "producer", Statement: 1, Binding: "q"},
		{Function: "consumer", Statement: lattice.EntryStatement, Binding: "jobs"},
		{Function: "consumer", Statement: 0},
	}, finding.Hops)
	assert.Equal(t, "producer:0 -> producer:1(q) -> consumer:entry(jobs) -> consumer:0", finding.Path())
	assert.Equal(t, Precise, finding.Confidence)
	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, []string{"stored-data"}, res.Incoming["consumer"]["jobs"].Tags())
	assert.Contains(t, res.Summaries["consumer"].Params["event"].Tags(), "stored-data")
}

func TestCyclicTriggersConverge(t *testing.T) {
	res := analyzeYaml(t, loadConfig(t), cycleYaml)
	assert.True(t, res.Converged)
	assert.Equal(t, 3, res.Passes)
	require.Len(t, res.Findings, 2)

	exec, log := res.Findings[0], res.Findings[1]
	assert.Equal(t, "critical", exec.Severity)
	assert.Equal(t, "exec", exec.Sink.Category)
	assert.Equal(t, "a:0 -> a:1(out) -> b:entry(in) -> b:1", exec.Path())
	assert.Equal(t, "low", log.Severity)
	assert.Equal(t, "log", log.Sink.Category)
	assert.Equal(t, "a:0 -> a:1(out) -> b:entry(in) -> b:0(out) -> a:entry(in) -> a:2", log.Path())

	ids := map[string]bool{}
	for _, f := range res.Findings {
		assert.False(t, ids[f.ID], "duplicate finding %s", f)
		ids[f.ID] = true
	}
}

func TestIterationCap(t *testing.T) {
	cfg := loadConfig(t)
	cfg.MaxIterations = 1
	res := analyzeYaml(t, cfg, cycleYaml)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Passes)
	diags := res.Diagnostics.Filter(diagnostic.NonConvergence)
	require.Len(t, diags, 1)
	assert.Equal(t, "b", diags[0].Function)
	assert.True(t, errors.Is(diags[0], diagnostic.ErrNonConvergence))
	for _, f := range res.Findings {
		assert.False(t, f.Converged)
	}
}

func TestCancellation(t *testing.T) {
	app, err := model.Decode(cycleYaml)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := analyzeFunctions(ctx, loadConfig(t), app.Functions)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Zero(t, res.Passes)
	assert.Empty(t, res.Findings)
}

func TestImpreciseFlow(t *testing.T) {
	res := analyzeYaml(t, loadConfig(t), impreciseYaml)
	require.Len(t, res.Findings, 1)
	finding := res.Findings[0]
	assert.Equal(t, Imprecise, finding.Confidence)
	assert.Equal(t, "critical", finding.Severity)
	assert.Equal(t, "secret", finding.Source.Tag)
	assert.Equal(t, "relay:0 -> relay:1(topic) -> listener:entry(alerts)? -> listener:0", finding.Path())

	assert.Equal(t, 1, res.Diagnostics.Count(diagnostic.UnresolvedBinding))
	assert.Equal(t, 1, res.Diagnostics.Count(diagnostic.MalformedFunctionModel))
	assert.Nil(t, res.Graph.Function("broken"))
	assert.NotContains(t, res.Summaries, "broken")
}

func TestTriggerSource(t *testing.T) {
	f := &model.Function{
		ID:       "api",
		Params:   []string{"event"},
		Deployed: true,
		Bindings: []model.Binding{{ID: "http", Kind: model.KindHTTP, Resource: "/run", Direction: model.Input}},
		Statements: []*model.Statement{
			{ID: 0, Kind: model.CallStmt, Value: model.CallOf("subprocess.run", model.Ref("event"))},
		},
	}
	res, err := analyzeFunctions(context.Background(), loadConfig(t), []*model.Function{f})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	finding := res.Findings[0]
	assert.Equal(t, lattice.TriggerOrigin, finding.Source.Kind)
	assert.Equal(t, "user-input", finding.Source.Tag)
	assert.Equal(t, lattice.EntryStatement, finding.Source.Statement)
	assert.Equal(t, "critical", finding.Severity)
}

func TestUnresolvedFindings(t *testing.T) {
	f := &model.Function{ID: "f", Statements: []*model.Statement{
		{ID: 0, Kind: model.Assign, Target: "x", Value: model.CallOf("vendor.fetch"), Succs: []int{1}},
		{ID: 1, Kind: model.CallStmt, Value: model.CallOf("requests.post", model.Ref("x"))},
	}}
	cfg := loadConfig(t)
	res, err := analyzeFunctions(context.Background(), cfg, []*model.Function{f})
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, lattice.Unknown, res.Findings[0].Level)
	assert.Equal(t, lattice.UnresolvedOrigin, res.Findings[0].Source.Kind)
	assert.Equal(t, cfg.Severity.Unresolved, res.Findings[0].Severity)
	assert.Equal(t, 1, res.Diagnostics.Count(diagnostic.CatalogMiss))

	cfg.ReportUnresolved = false
	res, err = analyzeFunctions(context.Background(), cfg, []*model.Function{f})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
}

func TestIdempotence(t *testing.T) {
	for _, data := range [][]byte{crossYaml, cycleYaml, impreciseYaml} {
		first := analyzeYaml(t, loadConfig(t), data)
		second := analyzeYaml(t, loadConfig(t), data)
		if diff := cmp.Diff(first.Findings, second.Findings); diff != "" {
			t.Errorf("findings differ between runs (-first +second):\n%s", diff)
		}
	}
}

func TestNoFunctions(t *testing.T) {
	_, err := analyzeFunctions(context.Background(), loadConfig(t), nil)
	assert.ErrorIs(t, err, ErrNoFunctions)

	broken := &model.Function{ID: "f", Statements: []*model.Statement{{ID: 0, Kind: model.Nop, Succs: []int{3}}}}
	_, err = analyzeFunctions(context.Background(), loadConfig(t), []*model.Function{broken})
	assert.ErrorIs(t, err, ErrNoFunctions)
	assert.ErrorIs(t, err, diagnostic.ErrMalformedFunctionModel)
}

func TestMaxTriggerDepth(t *testing.T) {
	cfg := loadConfig(t)
	cfg.MaxTriggerDepth = 1
	res := analyzeYaml(t, cfg, cycleYaml)
	assert.True(t, res.Converged)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "exec", res.Findings[0].Sink.Category)
}

func TestSeverityPolicy(t *testing.T) {
	cfg := loadConfig(t)
	r := NewReporter(cfg, catalog.FromConfig(cfg))
	hit := func(category, severity string) dataflow.SinkHit {
		return dataflow.SinkHit{Category: category, Severity: severity}
	}
	for _, c := range []struct {
		origin lattice.Origin
		hit    dataflow.SinkHit
		want   string
	}{
		{lattice.NewSource("user-input", "f", 0), hit("exec", ""), "critical"},
		{lattice.NewSource("secret", "f", 0), hit("log", ""), "critical"},
		{lattice.NewSource("stored-data", "f", 0), hit("http", ""), "high"},
		{lattice.NewSource("environment", "f", 0), hit("exec", "info"), "info"},
		{lattice.NewSource("environment", "f", 0), hit("exec", ""), cfg.Severity.Default},
		{lattice.NewUnresolved("x.y", "f", 0), hit("exec", "critical"), cfg.Severity.Unresolved},
	} {
		assert.Equal(t, c.want, r.Severity(c.origin, c.hit), "%s to %s", c.origin, c.hit.Category)
	}
}

func TestSortFindings(t *testing.T) {
	findings := []Finding{
		{Severity: "low", Source: SourceSite{Function: "a"}},
		{Severity: "bogus", Source: SourceSite{Function: "a"}},
		{Severity: "critical", Source: SourceSite{Function: "b"}},
		{Severity: "critical", Source: SourceSite{Function: "a"}},
	}
	SortFindings(findings)
	var order []string
	for _, f := range findings {
		order = append(order, f.Severity+":"+f.Source.Function)
	}
	assert.Equal(t, []string{"critical:a", "critical:b", "low:a", "bogus:a"}, order)
	groups := GroupBySeverity(findings)
	assert.Len(t, groups["critical"], 2)
	assert.Len(t, groups["low"], 1)
}
