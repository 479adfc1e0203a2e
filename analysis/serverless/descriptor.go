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

// Package serverless reads the deployment descriptors of Serverless Framework applications (serverless.yml). A
// descriptor declares the deployed functions of the application, the events that trigger them, their environment
// variables and the permissions of their roles; the package turns the events into input bindings and the
// permissions into policies of the Function Model.
//
// Variables referring to the descriptor itself are resolved; values that are only known at deployment time make
// the bindings that use them imprecise.
package serverless

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/model"
	"gopkg.in/yaml.v3"
)

// ErrEmptyDescriptor is returned when a deployment descriptor has no content
var ErrEmptyDescriptor = errors.New("empty deployment descriptor")

// iamRolesPerFunction is the plugin giving each function its own role
const iamRolesPerFunction = "serverless-iam-roles-per-function"

// Descriptor is a parsed deployment descriptor
type Descriptor struct {
	// URL is the location of the descriptor, when it was loaded from a file system
	URL string

	Service  string
	Provider Provider
	Plugins  []string

	// Handlers are the deployed functions, sorted by name
	Handlers []*Handler

	StateMachines []*StateMachine

	// Warnings are the parts of the descriptor that could not be interpreted
	Warnings []string

	// perFunctionIAM is true when the functions can have their own role statements
	perFunctionIAM bool
	resources      map[string]cfnResource
}

// Provider holds the settings shared by all the functions
type Provider struct {
	Name        string
	Runtime     string
	Stage       string
	Region      string
	Environment map[string]string
	Statements  []model.PolicyStatement

	// KnownIAM is false when the descriptor does not declare the role statements of the provider, or uses a role
	// defined elsewhere
	KnownIAM bool
}

// Handler is a deployed function of the descriptor
type Handler struct {
	// Name is the key of the function in the descriptor
	Name string

	// Handler is the entry point: the module path and the function name for interpreted runtimes (src/app.main),
	// the path of the executable for compiled runtimes
	Handler string

	Runtime string

	// Bindings are the input bindings of the events of the function, and the bindings of the state machines it
	// is a task of
	Bindings []model.Binding

	Environment map[string]string

	// Statements are the function's own role statements
	Statements []model.PolicyStatement

	// Inherit is true when the function's role also has the statements of the provider
	Inherit bool
}

// Entry splits the handler into the path of its module and the name of the entry function: src/app.main is
// (src/app, main). The function name is empty when the handler has no dot.
func (h *Handler) Entry() (string, string) {
	i := strings.LastIndex(h.Handler, ".")
	if i <= 0 || strings.ContainsRune(h.Handler[i:], '/') {
		return h.Handler, ""
	}
	return h.Handler[:i], h.Handler[i+1:]
}

// Language returns the language family of a runtime identifier: python3.12 is python, go1.x and provided.al2 are
// go.
func Language(runtime string) string {
	switch {
	case strings.HasPrefix(runtime, "python"):
		return "python"
	case strings.HasPrefix(runtime, "go"), strings.HasPrefix(runtime, "provided"):
		return "go"
	case strings.HasPrefix(runtime, "nodejs"):
		return "nodejs"
	case strings.HasPrefix(runtime, "java"):
		return "java"
	default:
		return runtime
	}
}

// Handler returns the handler with the name, or nil
func (d *Descriptor) Handler(name string) *Handler {
	i := sort.Search(len(d.Handlers), func(i int) bool { return d.Handlers[i].Name >= name })
	if i < len(d.Handlers) && d.Handlers[i].Name == name {
		return d.Handlers[i]
	}
	return nil
}

// Env returns the value of the environment variable of the handler. Variables of the function take precedence over
// the variables of the provider. Values that are not fully resolved are not returned.
func (d *Descriptor) Env(h *Handler, name string) (string, bool) {
	v, ok := h.Environment[name]
	if !ok {
		v, ok = d.Provider.Environment[name]
	}
	if !ok || !IsResolved(v) {
		return "", false
	}
	return v, true
}

// Policy returns the policy of the handler's role, or nil when it is unknown. With the per-function roles plugin,
// the statements of a function replace the statements of the provider, unless the function inherits them.
func (d *Descriptor) Policy(h *Handler) *model.Policy {
	if d.perFunctionIAM && len(h.Statements) > 0 {
		var stmts []model.PolicyStatement
		if h.Inherit {
			stmts = append(stmts, d.Provider.Statements...)
		}
		stmts = append(stmts, h.Statements...)
		return &model.Policy{Statements: stmts}
	}
	if !d.Provider.KnownIAM {
		return nil
	}
	return &model.Policy{Statements: append([]model.PolicyStatement(nil), d.Provider.Statements...)}
}

// HasPlugin returns true if the descriptor uses the plugin
func (d *Descriptor) HasPlugin(name string) bool {
	for _, p := range d.Plugins {
		if p == name {
			return true
		}
	}
	return false
}

func (d *Descriptor) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Parse parses the content of a deployment descriptor and resolves its variables
func Parse(b []byte) (*Descriptor, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("could not parse deployment descriptor: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, ErrEmptyDescriptor
	}
	NewResolver(&doc).ResolveDocument()
	raw := &rawDocument{}
	if err := doc.Decode(raw); err != nil {
		return nil, fmt.Errorf("could not decode deployment descriptor: %w", err)
	}
	d := &Descriptor{
		Service:   serviceName(&raw.Service),
		Plugins:   pluginNames(&raw.Plugins),
		resources: map[string]cfnResource{},
	}
	for id, res := range raw.Resources.Resources {
		d.resources[id] = res
	}
	d.perFunctionIAM = d.HasPlugin(iamRolesPerFunction)
	d.parseProvider(&raw.Provider)

	inheritDefault := false
	if v := raw.Custom.RolesPerFunction.DefaultInherit; v != "" {
		inheritDefault = parseBool(v)
	}
	for name, f := range raw.Functions {
		if f == nil || f.Handler == "" {
			d.warnf("function %s: no handler", name)
			continue
		}
		h := &Handler{
			Name:        name,
			Handler:     f.Handler,
			Runtime:     f.Runtime,
			Environment: d.environment(f.Environment),
			Statements:  d.statements(f.IAMRoleStatements),
			Inherit:     inheritDefault,
		}
		if h.Runtime == "" {
			h.Runtime = d.Provider.Runtime
		}
		if f.Inherit != "" {
			h.Inherit = parseBool(f.Inherit)
		}
		for i := range f.Events {
			if b, ok := d.event(fmt.Sprintf("%s-%d", eventKey(&f.Events[i]), i), &f.Events[i]); ok {
				h.Bindings = append(h.Bindings, b)
			}
		}
		d.Handlers = append(d.Handlers, h)
	}
	sort.Slice(d.Handlers, func(i, j int) bool { return d.Handlers[i].Name < d.Handlers[j].Name })
	d.parseStateMachines(raw.StepFunctions.StateMachines)
	return d, nil
}

func (d *Descriptor) parseProvider(p *rawProvider) {
	d.Provider = Provider{
		Name:        p.Name,
		Runtime:     p.Runtime,
		Stage:       p.Stage,
		Region:      p.Region,
		Environment: d.environment(p.Environment),
	}
	var stmts []rawStatement
	role := &p.IAM.Role
	switch {
	case role.Kind == yaml.MappingNode:
		if n := child(role, "statements"); n != nil {
			if err := n.Decode(&stmts); err != nil {
				d.warnf("provider.iam.role.statements: %v", err)
			}
			d.Provider.KnownIAM = true
		}
	case role.Kind == yaml.ScalarNode && role.Value != "":
		d.warnf("provider.iam.role: role %s is defined outside the descriptor", role.Value)
		return
	case p.IAMRoleStatements != nil:
		stmts = p.IAMRoleStatements
		d.Provider.KnownIAM = true
	}
	d.Provider.Statements = d.statements(stmts)
}

// environment keeps the scalar values of an environment mapping
func (d *Descriptor) environment(env map[string]yaml.Node) map[string]string {
	r := make(map[string]string, len(env))
	for k, v := range env {
		if v.Kind == yaml.ScalarNode {
			r[k] = v.Value
		} else if name, ok := d.intrinsic(&v); ok {
			r[k] = name
		}
	}
	return r
}

func (d *Descriptor) statements(raw []rawStatement) []model.PolicyStatement {
	var r []model.PolicyStatement
	for _, s := range raw {
		r = append(r, model.PolicyStatement{
			Effect:    s.Effect,
			Actions:   scalars(&s.Action),
			Resources: d.policyResources(&s.Resource),
		})
	}
	return r
}

// policyResources returns the resources of a statement. References to resources whose name is not known match
// any resource.
func (d *Descriptor) policyResources(n *yaml.Node) []string {
	var r []string
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		items = n.Content
	}
	for _, item := range items {
		switch {
		case item.Kind == yaml.ScalarNode && item.Tag != "!Ref" && item.Tag != "!GetAtt" && item.Tag != "!Sub":
			if item.Value != "" {
				r = append(r, item.Value)
			}
		default:
			if name, ok := d.intrinsic(item); ok {
				r = append(r, name)
			} else {
				r = append(r, "*")
			}
		}
	}
	return r
}

func serviceName(n *yaml.Node) string {
	if n.Kind == yaml.MappingNode {
		if name := child(n, "name"); name != nil {
			return name.Value
		}
		return ""
	}
	return n.Value
}

func pluginNames(n *yaml.Node) []string {
	if n.Kind == yaml.MappingNode {
		if modules := child(n, "modules"); modules != nil {
			return scalars(modules)
		}
		return nil
	}
	return scalars(n)
}

// scalars returns the value of a scalar node, or the scalar values of a sequence node
func scalars(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		var r []string
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode {
				r = append(r, c.Value)
			}
		}
		return r
	}
	return nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	return err == nil && b
}

type rawDocument struct {
	Service       yaml.Node               `yaml:"service"`
	Provider      rawProvider             `yaml:"provider"`
	Plugins       yaml.Node               `yaml:"plugins"`
	Custom        rawCustom               `yaml:"custom"`
	Functions     map[string]*rawFunction `yaml:"functions"`
	StepFunctions struct {
		StateMachines map[string]*rawStateMachine `yaml:"stateMachines"`
	} `yaml:"stepFunctions"`
	Resources struct {
		Resources map[string]cfnResource `yaml:"Resources"`
	} `yaml:"resources"`
}

type rawProvider struct {
	Name        string               `yaml:"name"`
	Runtime     string               `yaml:"runtime"`
	Stage       string               `yaml:"stage"`
	Region      string               `yaml:"region"`
	Environment map[string]yaml.Node `yaml:"environment"`
	IAM         struct {
		Role yaml.Node `yaml:"role"`
	} `yaml:"iam"`
	IAMRoleStatements []rawStatement `yaml:"iamRoleStatements"`
}

type rawCustom struct {
	RolesPerFunction struct {
		DefaultInherit string `yaml:"defaultInherit"`
	} `yaml:"serverless-iam-roles-per-function"`
}

type rawFunction struct {
	Handler           string               `yaml:"handler"`
	Runtime           string               `yaml:"runtime"`
	Events            []yaml.Node          `yaml:"events"`
	Environment       map[string]yaml.Node `yaml:"environment"`
	IAMRoleStatements []rawStatement       `yaml:"iamRoleStatements"`
	Inherit           string               `yaml:"iamRoleStatementsInherit"`
}

type rawStatement struct {
	Effect   string    `yaml:"Effect"`
	Action   yaml.Node `yaml:"Action"`
	Resource yaml.Node `yaml:"Resource"`
}
