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

package analysis

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/analysis/serverless"
	"github.com/awslabs/cloudflow-go/analysis/taint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

//go:embed testdata
var testfs embed.FS

// copyTestdata writes the embedded directory to a temporary directory and returns its path
func copyTestdata(t *testing.T, dir string) string {
	t.Helper()
	root := t.TempDir()
	err := fs.WalkDir(testfs, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		b, err := testfs.ReadFile(p)
		if err != nil {
			return err
		}
		target := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		return os.WriteFile(target, b, 0o600)
	})
	require.NoError(t, err)
	return root
}

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefault()
	require.NoError(t, err)
	return cfg
}

func TestLoadApplication(t *testing.T) {
	cfg := defaultConfig(t)
	logger := config.NewLogGroup(cfg)
	root := copyTestdata(t, "testdata/shop")

	app, err := LoadApplication(context.Background(), cfg, logger, afs.New(), root)
	require.NoError(t, err)
	assert.Equal(t, "shop", app.Name)
	assert.Equal(t, []string{"legacy"}, app.SkippedNames())

	require.Len(t, app.Functions, 2)
	ingest := app.Function("ingest")
	require.NotNil(t, ingest)
	assert.True(t, ingest.Deployed)
	assert.Equal(t, []string{"event", "context"}, ingest.Params)
	require.NotNil(t, ingest.IAM)
	outputs := ingest.OutputBindings()
	require.Len(t, outputs, 1)
	assert.Equal(t, model.KindS3, outputs[0].Kind)
	assert.Equal(t, "shop-uploads-dev", outputs[0].Resource)
	assert.Equal(t, "orders/new.json", outputs[0].ObjectKey)

	process := app.Function("process")
	require.NotNil(t, process)
	inputs := process.InputBindings()
	require.Len(t, inputs, 1)
	assert.Equal(t, "shop-uploads-dev", inputs[0].Resource)

	res, err := taint.Analyze(context.Background(), cfg, app.Functions)
	require.NoError(t, err)
	assert.True(t, res.Converged)
	require.Len(t, res.Graph.Edges(), 1)
	require.NotEmpty(t, res.Findings)
	f := res.Findings[0]
	assert.Equal(t, "user-input", f.Source.Tag)
	assert.Equal(t, "process", f.Sink.Function)
	assert.Equal(t, "exec", f.Sink.Category)
	assert.Equal(t, "critical", f.Severity)
}

func TestLoadApplicationRuntimes(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Runtimes = []string{"go"}
	root := copyTestdata(t, "testdata/shop")

	app, err := LoadApplication(context.Background(), cfg, config.NewLogGroup(cfg), afs.New(), root)
	require.NoError(t, err)
	assert.Empty(t, app.Functions)
	assert.Equal(t, []string{"ingest", "legacy", "process"}, app.SkippedNames())
}

func TestLoadApplicationWithoutDescriptor(t *testing.T) {
	cfg := config.NewDefault()
	_, err := LoadApplication(context.Background(), cfg, config.NewLogGroup(cfg), afs.New(), t.TempDir())
	assert.ErrorIs(t, err, serverless.ErrNotFound)
}

func TestParseUnitsMissingModule(t *testing.T) {
	cfg := defaultConfig(t)
	services, err := catalog.ServicesFromConfig(cfg)
	require.NoError(t, err)
	units := []*frontend.Unit{
		{Name: "missing", Runtime: "python3.12", Dir: t.TempDir(), Module: "src/none", Entry: "handler"},
		{Name: "node", Runtime: "nodejs18.x", Dir: t.TempDir(), Module: "index", Entry: "handler"},
	}
	app, err := ParseUnits(context.Background(), cfg, config.NewLogGroup(cfg), afs.New(), services, units)
	assert.ErrorIs(t, err, ErrNoHandlers)
	require.NotNil(t, app)
	assert.Equal(t, []string{"missing", "node"}, app.SkippedNames())
}

func TestParseUnitsMixedOutcomes(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Workers = 4
	services, err := catalog.ServicesFromConfig(cfg)
	require.NoError(t, err)
	root := copyTestdata(t, "testdata/shop")

	var units []*frontend.Unit
	var parsed, skipped []string
	for i := 0; i < 6; i++ {
		n := strconv.Itoa(i)
		units = append(units,
			&frontend.Unit{Name: "ingest-" + n, Runtime: "python3.12", Dir: root, Module: "src/ingest", Entry: "handler"},
			&frontend.Unit{Name: "missing-" + n, Runtime: "python3.12", Dir: root, Module: "src/none", Entry: "handler"},
			&frontend.Unit{Name: "node-" + n, Runtime: "nodejs18.x", Dir: root, Module: "index", Entry: "handler"})
		parsed = append(parsed, "ingest-"+n)
		skipped = append(skipped, "missing-"+n, "node-"+n)
	}
	sort.Strings(skipped)

	app, err := ParseUnits(context.Background(), cfg, config.NewLogGroup(cfg), afs.New(), services, units)
	require.NoError(t, err)
	assert.Equal(t, skipped, app.SkippedNames())
	for _, name := range parsed {
		fn := app.Function(name)
		require.NotNil(t, fn, name)
		assert.True(t, fn.Deployed, name)
	}
	assert.Contains(t, app.Skipped["node-0"], "no frontend")
}

func TestUnits(t *testing.T) {
	d, err := serverless.Parse([]byte(`
service: s
provider:
  runtime: python3.12
  environment:
    A: provider
functions:
  f:
    handler: app/main.run
    environment:
      A: function
`))
	require.NoError(t, err)
	units := Units(config.NewDefault(), d)
	require.Len(t, units, 1)
	u := units[0]
	assert.Equal(t, "app/main", u.Module)
	assert.Equal(t, "run", u.Entry)
	v, ok := u.LookupEnv("A")
	assert.True(t, ok)
	assert.Equal(t, "function", v)
	assert.Nil(t, u.IAM)
}
