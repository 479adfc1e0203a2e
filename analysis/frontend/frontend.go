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

// Package frontend contains what the language frontends share: the description of a deployed unit to parse, the
// lowering of structured control flow to statements, and the output bindings of cloud service calls.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/viant/afs"
)

// ErrEntryNotFound is returned when the source of a unit does not define its entry function
var ErrEntryNotFound = errors.New("entry function not found")

// Unit is a deployed function to parse, with the helpers of its source that it calls
type Unit struct {
	// Name is the name of the deployed function. It is the identifier of the entry function and the deployment
	// unit of all the functions parsed for it.
	Name string

	Runtime string

	// Dir is the URL of the directory the module path is relative to
	Dir string

	// Module is the path of the module of the entry function, without extension (src/app), or the path of the
	// executable for compiled runtimes (bin/app)
	Module string

	// Entry is the name of the entry function. Frontends of compiled runtimes find it when it is empty.
	Entry string

	// Bindings are the input and state machine bindings of the deployed function
	Bindings []model.Binding

	// IAM is the policy of the function's role, shared by its helpers
	IAM *model.Policy

	// Env returns the deployment value of an environment variable, if known
	Env func(name string) (string, bool)
}

// LookupEnv returns the value of the environment variable of the unit
func (u *Unit) LookupEnv(name string) (string, bool) {
	if u.Env == nil {
		return "", false
	}
	return u.Env(name)
}

// A Parser builds the function models of a unit from its source code
type Parser interface {
	// Language is the language family of the runtimes the parser handles
	Language() string

	Parse(ctx context.Context, fs afs.Service, unit *Unit) ([]*model.Function, error)
}

// HelperID returns the identifier of the function named name when it is a helper of the unit
func HelperID(unit string, name string) string {
	return unit + "." + name
}

// Assemble returns the function models of the unit: the entry function, deployed with the bindings and the policy of
// the unit, followed by the helpers it calls directly or indirectly, sorted by name. Functions are keyed by name;
// calls lists the names of the functions each function calls.
func Assemble(unit *Unit, entry string, functions map[string]*model.Function,
	calls map[string][]string) ([]*model.Function, error) {
	main, ok := functions[entry]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", unit.Name, ErrEntryNotFound, entry)
	}
	main.ID = unit.Name
	main.Deployed = true
	main.Bindings = append(append([]model.Binding(nil), unit.Bindings...), main.Bindings...)

	reached := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, callee := range calls[name] {
			if _, defined := functions[callee]; defined && !reached[callee] {
				reached[callee] = true
				queue = append(queue, callee)
			}
		}
	}
	var helpers []string
	for name := range reached {
		if name != entry {
			helpers = append(helpers, name)
		}
	}
	sort.Strings(helpers)

	r := []*model.Function{main}
	for _, name := range helpers {
		f := functions[name]
		f.ID = HelperID(unit.Name, name)
		r = append(r, f)
	}
	for _, f := range r {
		f.Unit = unit.Name
		f.Runtime = unit.Runtime
		f.IAM = unit.IAM
	}
	return r, nil
}
