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

package frontend

import (
	"testing"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succs(fn *model.Function) [][]int {
	r := make([][]int, len(fn.Statements))
	for i, s := range fn.Statements {
		r[i] = s.Succs
	}
	return r
}

// Lowers:
//
//	for x in items:     0
//	    if x:           1
//	        break
//	    y = x           2
//	return y            3
func TestBuilderLoop(t *testing.T) {
	b := NewBuilder(&model.Function{ID: "f", Name: "f", Params: []string{"items"}})
	head := b.Add(nil, &model.Statement{Kind: model.Loop, Target: "x", Value: model.Ref("items")})
	b.EnterLoop(head)
	branch := b.Add([]int{head}, &model.Statement{Kind: model.Branch, Value: model.Ref("x")})
	assert.True(t, b.Break([]int{branch}))
	assign := b.Add([]int{branch}, &model.Statement{Kind: model.Assign, Target: "y", Value: model.Ref("x")})
	assert.True(t, b.Continue([]int{assign}))
	exits := append([]int{head}, b.ExitLoop()...)
	b.Add(exits, &model.Statement{Kind: model.Return, Value: model.Ref("y")})

	fn := b.Finish()
	assert.Equal(t, [][]int{{1, 3}, {2, 3}, {0}, nil}, succs(fn))
	_, err := model.NewCFG(fn)
	require.Nil(t, err)

	assert.False(t, b.Break(nil), "no loop left")
	assert.False(t, b.Continue(nil))
}

func TestBuilderEmptyFunction(t *testing.T) {
	fn := NewBuilder(&model.Function{Name: "f"}).Finish()
	require.Len(t, fn.Statements, 1)
	assert.Equal(t, model.Nop, fn.Statements[0].Kind)
}

func TestAddWrite(t *testing.T) {
	b := NewBuilder(&model.Function{Name: "f"})
	assert.Equal(t, "sqs-write-0", b.AddWrite(model.Binding{Kind: model.KindSQS, Direction: model.Output}))
	assert.Equal(t, "s3-write-1", b.AddWrite(model.Binding{Kind: model.KindS3, Direction: model.Output}))
	assert.Len(t, b.Function().Bindings, 2)
}

func TestAssemble(t *testing.T) {
	unit := &Unit{
		Name:     "upload",
		Runtime:  "python3.12",
		Bindings: []model.Binding{{ID: "http-0", Kind: model.KindHTTP, Direction: model.Input}},
		IAM:      &model.Policy{},
	}
	functions := map[string]*model.Function{
		"handler": {Name: "handler", Bindings: []model.Binding{{ID: "s3-write-0", Direction: model.Output}}},
		"save":    {Name: "save"},
		"encode":  {Name: "encode"},
		"unused":  {Name: "unused"},
	}
	calls := map[string][]string{
		"handler": {"save", "json.dumps"},
		"save":    {"encode", "save"},
	}
	fns, err := Assemble(unit, "handler", functions, calls)
	require.NoError(t, err)
	var ids []string
	for _, f := range fns {
		ids = append(ids, f.ID)
		assert.Equal(t, "upload", f.Unit)
		assert.Equal(t, "python3.12", f.Runtime)
		assert.Same(t, unit.IAM, f.IAM)
	}
	assert.Equal(t, []string{"upload", "upload.encode", "upload.save"}, ids)
	assert.True(t, fns[0].Deployed)
	assert.False(t, fns[1].Deployed)
	assert.Equal(t, []string{"http-0", "s3-write-0"}, []string{fns[0].Bindings[0].ID, fns[0].Bindings[1].ID})

	_, err = Assemble(unit, "main", functions, calls)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestWriteBinding(t *testing.T) {
	services, err := catalog.NewServices(nil)
	require.NoError(t, err)

	put, ok := services.LookupCallee("s3.put_object")
	require.True(t, ok)
	b := WriteBinding(put, []ServiceArg{
		{Name: "Bucket", Value: "uploads", Known: true},
		{Name: "Key", Value: "incoming/a.json", Known: true},
		{Name: "Body"},
	}, nil)
	assert.Equal(t, model.Binding{
		Kind:      model.KindS3,
		Resource:  "uploads",
		Direction: model.Output,
		Event:     "s3:ObjectCreated:Put",
		ObjectKey: "incoming/a.json",
		Actions:   []string{"s3:PutObject"},
		Payload:   []string{"Key", "Body"},
	}, b)

	send, ok := services.LookupCallee("sqs.send_message")
	require.True(t, ok)
	b = WriteBinding(send, []ServiceArg{
		{Name: "QueueUrl", Value: "https://sqs.us-east-1.amazonaws.com/123456789012/jobs", Known: true},
		{Name: "MessageBody"},
	}, nil)
	assert.Equal(t, "jobs", b.Resource)
	assert.False(t, b.Imprecise)
	assert.Equal(t, []string{"MessageBody"}, b.Payload)

	b = WriteBinding(send, []ServiceArg{{Name: "QueueUrl"}, {Name: "MessageBody"}}, nil)
	assert.True(t, b.Imprecise)
	assert.Empty(t, b.Resource)

	upload, ok := services.LookupCallee("s3.upload_file")
	require.True(t, ok)
	b = WriteBinding(upload, []ServiceArg{{}, {Value: "reports", Known: true}, {Value: "k", Known: true}}, nil)
	assert.Equal(t, "reports", b.Resource)
	assert.Nil(t, b.Payload)

	putItem, ok := services.LookupCallee("dynamodb.put_item")
	require.True(t, ok)
	b = WriteBinding(putItem, []ServiceArg{{Name: "Item"}}, &ServiceArg{Value: "orders", Known: true})
	assert.Equal(t, "orders", b.Resource)
	assert.Equal(t, model.KindDynamoDB, b.Kind)
}
