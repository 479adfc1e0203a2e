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
	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/model"
)

// ServiceArg is an argument of a call to a cloud service API
type ServiceArg struct {
	// Name is the keyword or field name of the argument, empty for positional arguments
	Name string

	// Value is the constant value of the argument, when Known
	Value string
	Known bool
}

// WriteBinding returns the output binding written by a call to the service API. The resource is the constant value
// of the resource argument, or bound when the call has no resource argument (methods of a Table or Bucket object);
// the object key is the constant value of the key argument. The binding is imprecise when the resource is not
// constant.
func WriteBinding(api catalog.ServiceAPI, args []ServiceArg, bound *ServiceArg) model.Binding {
	b := model.Binding{
		Kind:      api.ResourceKind(),
		Direction: model.Output,
		Event:     api.Event,
		Actions:   append([]string(nil), api.Actions...),
	}
	var names []string
	var resource *ServiceArg
	for i := range args {
		a := &args[i]
		if a.Name == "" {
			if i == api.ResourcePos {
				resource = a
			}
			continue
		}
		names = append(names, a.Name)
		switch {
		case api.IsResourceArg(a.Name):
			resource = a
		case api.IsKeyArg(a.Name) && a.Known:
			b.ObjectKey = a.Value
		}
	}
	b.Payload = api.PayloadArgs(names)
	if resource == nil {
		resource = bound
	}
	if resource != nil && resource.Known && resource.Value != "" {
		b.Resource = api.Normalize(resource.Value)
	}
	if b.Resource == "" {
		b.Imprecise = true
	}
	return b
}
