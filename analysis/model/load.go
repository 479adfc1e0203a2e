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
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Application is the set of functions of a serverless application
type Application struct {
	Name      string      `yaml:"name,omitempty"`
	Functions []*Function `yaml:"functions"`
}

// Decode reads an application from its yaml representation. Unknown fields are rejected.
func Decode(b []byte) (*Application, error) {
	app := &Application{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(app); err != nil {
		return nil, fmt.Errorf("could not parse function models: %w", err)
	}
	return app, nil
}

// LoadFile reads an application from a yaml file
func LoadFile(filename string) (*Application, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read function models: %w", err)
	}
	app, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return app, nil
}

// Encode returns the yaml representation of the application
func (a *Application) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Function returns the function with the identifier, or nil
func (a *Application) Function(id string) *Function {
	for _, f := range a.Functions {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Sort sorts the functions by identifier
func (a *Application) Sort() {
	sort.Slice(a.Functions, func(i, j int) bool { return a.Functions[i].ID < a.Functions[j].ID })
}
