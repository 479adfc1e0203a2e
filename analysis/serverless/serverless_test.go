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

package serverless

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

//go:embed testdata/serverless.yml
var descriptorYaml []byte

func parseTestDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	d, err := Parse(descriptorYaml)
	require.NoError(t, err)
	return d
}

func newTestResolver(t *testing.T, doc string) *Resolver {
	t.Helper()
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &root))
	return NewResolver(&root)
}

func TestResolve(t *testing.T) {
	r := newTestResolver(t, `
stage: prod
c: x
a:
  b: ${self:c}
custom:
  prod: p
loop1: ${self:loop2}
loop2: ${self:loop1}
`)
	tests := []struct {
		value string
		want  string
	}{
		{"plain", "plain"},
		{"${self:a.b}", "x"},
		{"pre-${self:c}-post", "pre-x-post"},
		{"${self:c}${self:stage}", "xprod"},
		{"${opt:stage, 'dev'}", "dev"},
		{`${opt:stage, "dev"}`, "dev"},
		{"${self:missing, ${self:c}}", "x"},
		{"${self:custom.${self:stage}}", "p"},
		{"${self:stage, 'dev'}", "prod"},
		{"${file(./config.yml):bucket}", "${file(./config.yml):bucket}"},
		{"${env:HOME}", "${env:HOME}"},
		{"${self:missing}", "${self:missing}"},
	}
	for _, test := range tests {
		t.Run(test.value, func(t *testing.T) {
			assert.Equal(t, test.want, r.Resolve(test.value))
		})
	}
}

func TestResolveCycleTerminates(t *testing.T) {
	r := newTestResolver(t, "a: ${self:b}\nb: ${self:a}\n")
	v := r.Resolve("${self:a}")
	assert.False(t, IsResolved(v))
}

func TestResolveDocumentSubstitutesNodes(t *testing.T) {
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
custom:
  env:
    TABLE: orders-${self:custom.stage}
  stage: dev
functions:
  f:
    environment: ${self:custom.env}
`), &root))
	NewResolver(&root).ResolveDocument()
	var doc struct {
		Functions map[string]struct {
			Environment map[string]string `yaml:"environment"`
		} `yaml:"functions"`
	}
	require.NoError(t, root.Decode(&doc))
	assert.Equal(t, map[string]string{"TABLE": "orders-dev"}, doc.Functions["f"].Environment)
}

func TestIsResolved(t *testing.T) {
	assert.True(t, IsResolved("orders"))
	assert.True(t, IsResolved(""))
	assert.False(t, IsResolved("orders-${opt:stage}"))
}

func TestParseHandlers(t *testing.T) {
	d := parseTestDescriptor(t)
	assert.Equal(t, "shop", d.Service)
	assert.Equal(t, "dev", d.Provider.Stage)
	assert.True(t, d.HasPlugin(iamRolesPerFunction))

	var names []string
	for _, h := range d.Handlers {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"charge", "notify", "process", "upload", "validate", "worker"}, names)
	assert.Contains(t, d.Warnings, "function image: no handler")

	upload := d.Handler("upload")
	require.NotNil(t, upload)
	assert.Equal(t, "python3.12", upload.Runtime)
	file, fn := upload.Entry()
	assert.Equal(t, "src/upload", file)
	assert.Equal(t, "handler", fn)

	worker := d.Handler("worker")
	require.NotNil(t, worker)
	assert.Equal(t, "go", Language(worker.Runtime))
	file, fn = worker.Entry()
	assert.Equal(t, "bin/worker", file)
	assert.Equal(t, "", fn)

	assert.Nil(t, d.Handler("image"))
}

func TestEventBindings(t *testing.T) {
	d := parseTestDescriptor(t)
	assert.Equal(t, []model.Binding{
		{ID: "http-0", Kind: model.KindHTTP, Resource: "upload", Direction: model.Input, Event: "POST"},
	}, d.Handler("upload").Bindings)
	assert.Equal(t, []model.Binding{
		{ID: "s3-0", Kind: model.KindS3, Resource: "shop-uploads-dev", Direction: model.Input,
			Event: "s3:ObjectCreated:*", Filter: &model.EventFilter{Prefix: "incoming/", Suffix: ".json"}},
	}, d.Handler("process").Bindings)
	assert.Equal(t, []model.Binding{
		{ID: "sqs-0", Kind: model.KindSQS, Resource: "orders", Direction: model.Input},
		{ID: "stream-1", Kind: model.KindDynamoDB, Resource: "orders", Direction: model.Input},
	}, d.Handler("worker").Bindings)
	assert.Equal(t, []model.Binding{
		{ID: "sns-0", Kind: model.KindSNS, Direction: model.Input, Imprecise: true},
		{ID: "schedule-1", Kind: model.KindSchedule, Resource: "rate(5 minutes)", Direction: model.Input},
	}, d.Handler("notify").Bindings)
}

func TestStateMachineBindings(t *testing.T) {
	d := parseTestDescriptor(t)
	require.Len(t, d.StateMachines, 1)
	m := d.StateMachines[0]
	assert.Equal(t, "checkout-flow", m.Name)
	assert.Equal(t, "validate", m.States["Validate"].Handler)
	assert.Equal(t, "charge", m.States["Charge"].Handler)
	assert.Equal(t, []string{"Charge"}, m.nextTasks("Validate"))

	assert.Equal(t, []model.Binding{
		{ID: "states-checkout-flow-Validate", Kind: model.KindStates, Resource: "checkout-flow/Validate",
			Direction: model.Input},
		{ID: "next-checkout-flow-Charge", Kind: model.KindStates, Resource: "checkout-flow/Charge",
			Direction: model.Output, FromReturn: true},
		{ID: "states-checkout-flow", Kind: model.KindStates, Resource: "checkout-flow", Direction: model.Input},
		{ID: "checkout-flow-http-0", Kind: model.KindHTTP, Resource: "checkout", Direction: model.Input,
			Event: "POST"},
	}, d.Handler("validate").Bindings)
	assert.Equal(t, []model.Binding{
		{ID: "states-checkout-flow-Charge", Kind: model.KindStates, Resource: "checkout-flow/Charge",
			Direction: model.Input},
	}, d.Handler("charge").Bindings)
}

func TestEnvironment(t *testing.T) {
	d := parseTestDescriptor(t)
	upload := d.Handler("upload")
	v, ok := d.Env(upload, "QUEUE")
	assert.True(t, ok)
	assert.Equal(t, "orders", v)

	v, ok = d.Env(upload, "BUCKET")
	assert.True(t, ok)
	assert.Equal(t, "shop-uploads-dev", v)

	_, ok = d.Env(upload, "REGION")
	assert.False(t, ok, "values known at deployment time are not resolved")

	_, ok = d.Env(d.Handler("process"), "QUEUE")
	assert.False(t, ok)
}

func TestPolicies(t *testing.T) {
	d := parseTestDescriptor(t)
	provider := model.PolicyStatement{
		Effect:    "Allow",
		Actions:   []string{"s3:PutObject", "s3:GetObject"},
		Resources: []string{"arn:aws:s3:::shop-uploads-dev/*"},
	}
	assert.Equal(t, &model.Policy{Statements: []model.PolicyStatement{provider}}, d.Policy(d.Handler("upload")))
	assert.Equal(t, &model.Policy{Statements: []model.PolicyStatement{
		provider,
		{Effect: "Allow", Actions: []string{"sqs:SendMessage"}, Resources: []string{"orders"}},
	}}, d.Policy(d.Handler("process")))
	assert.Equal(t, &model.Policy{Statements: []model.PolicyStatement{
		{Effect: "Allow", Actions: []string{"sns:Publish"}, Resources: []string{"alerts"}},
	}}, d.Policy(d.Handler("worker")))
}

func TestPoliciesWithoutPlugin(t *testing.T) {
	d, err := Parse([]byte(`
service: s
provider:
  iamRoleStatements:
    - Effect: Allow
      Action: "sqs:*"
      Resource: "*"
functions:
  f:
    handler: f.main
    iamRoleStatements:
      - Effect: Allow
        Action: "s3:*"
        Resource: "*"
  g:
    handler: g.main
`))
	require.NoError(t, err)
	want := &model.Policy{Statements: []model.PolicyStatement{
		{Effect: "Allow", Actions: []string{"sqs:*"}, Resources: []string{"*"}},
	}}
	assert.Equal(t, want, d.Policy(d.Handler("f")), "function statements need the per-function roles plugin")
	assert.Equal(t, want, d.Policy(d.Handler("g")))
}

func TestUnknownPolicy(t *testing.T) {
	d, err := Parse([]byte(`
service: s
provider:
  iam:
    role: arn:aws:iam::123456789012:role/shared
functions:
  f:
    handler: f.main
`))
	require.NoError(t, err)
	assert.Nil(t, d.Policy(d.Handler("f")))
	assert.Len(t, d.Warnings, 1)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.ErrorIs(t, err, ErrEmptyDescriptor)
	_, err = Parse([]byte("service: [unclosed"))
	assert.Error(t, err)
}

func TestLogicalID(t *testing.T) {
	assert.Equal(t, "HelloLambdaFunction", logicalID("hello"))
	assert.Equal(t, "HelloDashworldLambdaFunction", logicalID("hello-world"))
	assert.Equal(t, "HelloUnderscoreworldLambdaFunction", logicalID("hello_world"))
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	write := func(name string) {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, descriptorYaml, 0o600))
	}
	write("node_modules/plugin/serverless.yml")
	write("services/api/serverless.yaml")
	write("serverless.yml")

	ctx := context.Background()
	fs := afs.New()
	u, err := Find(ctx, fs, root)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "/serverless.yml"), u)
	assert.NotContains(t, u, "node_modules")
	assert.NotContains(t, u, "services")

	d, err := Load(ctx, fs, u)
	require.NoError(t, err)
	assert.Equal(t, "shop", d.Service)
	assert.Equal(t, u, d.URL)
	assert.True(t, strings.HasSuffix(d.Dir(), filepath.Base(root)), d.Dir())
}

func TestFindNothing(t *testing.T) {
	_, err := Find(context.Background(), afs.New(), t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}
