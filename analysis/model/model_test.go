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

package model

import (
	_ "embed"
	"errors"
	"testing"

	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/app.yaml
var appYaml []byte

//go:embed testdata/malformed.yaml
var malformedYaml []byte

func TestDecodeApplication(t *testing.T) {
	app, err := Decode(appYaml)
	require.NoError(t, err)
	assert.Equal(t, "uploads", app.Name)
	require.Len(t, app.Functions, 2)

	upload := app.Function("upload")
	require.NotNil(t, upload)
	assert.Equal(t, "handler", upload.DisplayName())
	assert.True(t, upload.Deployed)
	assert.Nil(t, upload.IAM)
	require.Len(t, upload.Statements, 3)
	assert.Equal(t, Assign, upload.Statements[0].Kind)
	assert.Equal(t, CallStmt, upload.Statements[1].Kind)
	assert.Equal(t, Return, upload.Statements[2].Kind)

	calls := upload.Statements[1].Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "s3.put_object", calls[0].Callee)
	assert.Equal(t, "out", calls[0].Output)

	out := upload.Binding("out")
	require.NotNil(t, out)
	assert.Equal(t, Output, out.Direction)
	assert.True(t, out.InPayload("Body"))
	assert.False(t, out.InPayload("Bucket"))
	assert.Equal(t, "output:s3:uploads", out.String())
	assert.Len(t, upload.InputBindings(), 1)
	assert.Len(t, upload.OutputBindings(), 1)

	process := app.Function("process")
	require.NotNil(t, process)
	require.NotNil(t, process.IAM)
	assert.Equal(t, "process", process.DisplayName())
	trigger := process.Binding("trigger")
	require.NotNil(t, trigger)
	assert.True(t, trigger.Filter.Admits("incoming/a.txt"))
	assert.False(t, trigger.Filter.Admits("other/a.txt"))
	assert.False(t, trigger.Filter.Admits("incoming/a.csv"))
	param, ok := process.BoundParam(trigger)
	assert.True(t, ok)
	assert.Equal(t, "event", param)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte("functions:\n  - id: f\n    colour: blue\n"))
	assert.Error(t, err)
	_, err = Decode([]byte("functions:\n  - id: f\n    statements:\n      - {id: 0, kind: jump}\n"))
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	app, err := Decode(appYaml)
	require.NoError(t, err)
	b, err := app.Encode()
	require.NoError(t, err)
	again, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, app, again)
}

func TestNewCFG(t *testing.T) {
	app, err := Decode(appYaml)
	require.NoError(t, err)
	cfg, diag := NewCFG(app.Function("upload"))
	require.Nil(t, diag)
	assert.Equal(t, 3, cfg.Len())
	assert.Equal(t, []int{1}, cfg.Succs(0))
	assert.Equal(t, []int{0}, cfg.Preds(1))
	assert.Empty(t, cfg.Succs(2))
	i, ok := cfg.Index(2)
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestNewCFGMalformed(t *testing.T) {
	app, err := Decode(malformedYaml)
	require.NoError(t, err)
	_, diag := NewCFG(app.Functions[0])
	require.NotNil(t, diag)
	assert.True(t, errors.Is(diag, diagnostic.ErrMalformedFunctionModel))
	assert.Equal(t, "dangling", diag.Function)
	assert.Equal(t, 0, diag.Statement)

	cases := map[string]*Function{
		"no id": {Statements: []*Statement{{ID: 0, Kind: Nop}}},
		"duplicate statement": {ID: "f", Statements: []*Statement{
			{ID: 0, Kind: Nop}, {ID: 0, Kind: Nop}}},
		"assign without target": {ID: "f", Statements: []*Statement{
			{ID: 0, Kind: Assign, Value: Lit("x")}}},
		"call statement without call": {ID: "f", Statements: []*Statement{
			{ID: 0, Kind: CallStmt, Value: Ref("x")}}},
		"call without callee": {ID: "f", Statements: []*Statement{
			{ID: 0, Kind: CallStmt, Value: CallOf("")}}},
		"undeclared output": {ID: "f", Statements: []*Statement{
			{ID: 0, Kind: CallStmt, Value: WriteCall("s3.put_object", "nowhere")}}},
		"undeclared parameter": {ID: "f", Params: []string{"event"}, Bindings: []Binding{
			{ID: "in", Kind: KindSQS, Direction: Input, Param: "payload"}}},
		"duplicate binding": {ID: "f", Bindings: []Binding{
			{ID: "b", Kind: KindSQS}, {ID: "b", Kind: KindSNS}}},
		"output used as input": {ID: "f", Bindings: []Binding{{ID: "in", Kind: KindSQS, Direction: Input}},
			Statements: []*Statement{{ID: 0, Kind: CallStmt, Value: WriteCall("sqs.send_message", "in")}}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, diag := NewCFG(f)
			require.NotNil(t, diag)
			assert.True(t, diag.Fatal())
		})
	}
}

func TestBoundParam(t *testing.T) {
	f := &Function{ID: "f", Params: []string{"event", "context"}}
	p, ok := f.BoundParam(&Binding{Param: "context"})
	assert.True(t, ok)
	assert.Equal(t, "context", p)
	_, ok = f.BoundParam(&Binding{Param: "missing"})
	assert.False(t, ok)
	_, ok = (&Function{ID: "g"}).BoundParam(&Binding{})
	assert.False(t, ok)
}

func TestStatementString(t *testing.T) {
	s := &Statement{ID: 4, Kind: Assign, Target: "x", Value: Op(Ref("a"), Lit("b"))}
	assert.Equal(t, `4: x = op(a, "b")`, s.String())
	c := &Statement{ID: 1, Kind: CallStmt, Value: CallOf("os.system", Ref("cmd"))}
	assert.Equal(t, "1: os.system(cmd)", c.String())
	assert.Equal(t, "2: return", (&Statement{ID: 2, Kind: Return}).String())
}

func TestCallsInnermostFirst(t *testing.T) {
	inner := CallOf("json.loads", Ref("body"))
	outer := CallOf("os.system", inner)
	s := &Statement{ID: 0, Kind: CallStmt, Value: outer}
	calls := s.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "json.loads", calls[0].Callee)
	assert.Equal(t, "os.system", calls[1].Callee)
}
