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

// Function is the normalized representation of one function: a deployed handler, or a helper function of the
// same deployment unit that handlers call directly.
//
// A Function is immutable once loaded; the analyses only read it.
type Function struct {
	// ID identifies the function in the application
	ID string `yaml:"id"`

	// Name is the name of the function in its source code. Direct calls are resolved on names within a unit.
	Name string `yaml:"name,omitempty"`

	// Unit is the deployment unit of the function. Functions of different units never call each other directly.
	Unit string `yaml:"unit,omitempty"`

	Runtime string `yaml:"runtime,omitempty"`

	// File is the source file of the function
	File string `yaml:"file,omitempty"`

	Params []string `yaml:"params,omitempty"`

	// Statements are the nodes of the control-flow graph. The first statement is the entry.
	Statements []*Statement `yaml:"statements,omitempty"`

	Bindings []Binding `yaml:"bindings,omitempty"`

	// Deployed is true for handlers, false for helpers
	Deployed bool `yaml:"deployed,omitempty"`

	// IAM is the policy of the function's role. It is nil when the permissions are unknown.
	IAM *Policy `yaml:"iam,omitempty"`
}

// DisplayName returns the Name of the function if set, otherwise its ID
func (f *Function) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// Binding returns the binding with the given ID, or nil if there is none
func (f *Function) Binding(id string) *Binding {
	for i := range f.Bindings {
		if f.Bindings[i].ID == id {
			return &f.Bindings[i]
		}
	}
	return nil
}

// InputBindings returns the triggers of the function
func (f *Function) InputBindings() []*Binding {
	return f.bindings(Input)
}

// OutputBindings returns the resources the function writes to
func (f *Function) OutputBindings() []*Binding {
	return f.bindings(Output)
}

func (f *Function) bindings(d Direction) []*Binding {
	var r []*Binding
	for i := range f.Bindings {
		if f.Bindings[i].Direction == d {
			r = append(r, &f.Bindings[i])
		}
	}
	return r
}

// BoundParam returns the parameter receiving the payload of the input binding: its Param if set, otherwise the
// first parameter of the function. It returns false if the function has no such parameter.
func (f *Function) BoundParam(b *Binding) (string, bool) {
	if b.Param != "" {
		for _, p := range f.Params {
			if p == b.Param {
				return p, true
			}
		}
		return "", false
	}
	if len(f.Params) == 0 {
		return "", false
	}
	return f.Params[0], true
}

// HasParam returns true if name is a parameter of the function
func (f *Function) HasParam(name string) bool {
	for _, p := range f.Params {
		if p == name {
			return true
		}
	}
	return false
}
