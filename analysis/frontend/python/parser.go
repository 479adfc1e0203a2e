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

// Package python is the frontend of Python handlers. It parses the module of a handler with tree-sitter and lowers
// the entry function and the module functions it calls to the Function Model.
//
// Calls are named after what they call: functions of the module keep their name, imported functions and methods
// of modules get their qualified name (requests.post), methods of boto3 clients and resources get the name of the
// service (s3.put_object), builtins are in the builtins package, and other methods belong to the object package.
// String constants of the module and of the function, environment variables of the deployment descriptor and the
// resources bound by boto3 resource objects are folded, so that the writes of service calls get resource names.
package python

import (
	"context"
	"fmt"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Parser parses Python handlers
type Parser struct {
	config   *config.Config
	logger   *config.LogGroup
	services *catalog.Services
}

// New returns a parser recognizing the writes of the service APIs
func New(cfg *config.Config, logger *config.LogGroup, services *catalog.Services) *Parser {
	return &Parser{config: cfg, logger: logger, services: services}
}

// Language returns python
func (p *Parser) Language() string {
	return "python"
}

// Parse reads the module of the unit and returns its function models
func (p *Parser) Parse(ctx context.Context, fs afs.Service, unit *frontend.Unit) ([]*model.Function, error) {
	candidates := []string{unit.Module + ".py"}
	if !strings.Contains(unit.Module, "/") && strings.Contains(unit.Module, ".") {
		candidates = append(candidates, strings.ReplaceAll(unit.Module, ".", "/")+".py")
	}
	var err error
	for _, file := range candidates {
		var src []byte
		src, err = fs.DownloadWithURL(ctx, url.Join(unit.Dir, file))
		if err == nil {
			return p.ParseSource(ctx, unit, file, src)
		}
	}
	return nil, fmt.Errorf("could not read handler %s: %w", unit.Name, err)
}

// ParseSource returns the function models of the unit from the source of its module
func (p *Parser) ParseSource(ctx context.Context, unit *frontend.Unit, file string,
	src []byte) ([]*model.Function, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", file, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		p.logger.Warnf("%s: syntax errors, unparsed statements will be parse gaps", file)
	}
	m := newModule(p, unit, src)
	m.scan(root)

	functions := map[string]*model.Function{}
	calls := map[string][]string{}
	for name, def := range m.defs {
		fn, callees := m.lowerFunction(name, def)
		fn.File = file
		functions[name] = fn
		calls[name] = callees
	}
	fns, err := frontend.Assemble(unit, unit.Entry, functions, calls)
	if err != nil {
		return nil, err
	}
	p.logger.Debugf("%s: %d functions from %s", unit.Name, len(fns), file)
	return fns, nil
}

// client is what the analysis knows of the value of a variable: a boto3 client or resource of a service,
// possibly bound to a resource, or a logger of a module
type client struct {
	service  string
	resource *frontend.ServiceArg
	module   string
}

// module is the scope of a Python module
type module struct {
	parser *Parser
	unit   *frontend.Unit
	src    []byte

	// imports maps local names to qualified names
	imports map[string]string
	consts  map[string]string
	clients map[string]client
	defs    map[string]*sitter.Node
}

func newModule(p *Parser, unit *frontend.Unit, src []byte) *module {
	return &module{
		parser:  p,
		unit:    unit,
		src:     src,
		imports: map[string]string{},
		consts:  map[string]string{},
		clients: map[string]client{},
		defs:    map[string]*sitter.Node{},
	}
}

func (m *module) text(n *sitter.Node) string {
	return n.Content(m.src)
}

// scan collects the imports, constants, clients and functions of the module
func (m *module) scan(root *sitter.Node) {
	scope := &function{m: m, consts: m.consts, clients: m.clients, locals: map[string]bool{}}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "import_statement", "import_from_statement":
			m.addImport(n)
		case "function_definition":
			m.defs[m.text(n.ChildByFieldName("name"))] = n
		case "decorated_definition":
			if def := n.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
				m.defs[m.text(def.ChildByFieldName("name"))] = def
			}
		case "expression_statement":
			a := n.NamedChild(0)
			if a == nil || a.Type() != "assignment" {
				continue
			}
			left, right := a.ChildByFieldName("left"), a.ChildByFieldName("right")
			if left == nil || right == nil || left.Type() != "identifier" {
				continue
			}
			name := m.text(left)
			if v, ok := scope.constValue(right); ok {
				m.consts[name] = v
			} else if c, ok := scope.clientOf(right); ok {
				m.clients[name] = c
			}
		case "try_statement", "if_statement":
			m.scanImports(n)
		}
	}
}

// scanImports collects the imports nested in compound statements
func (m *module) scanImports(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_statement", "import_from_statement":
			m.addImport(c)
		case "block", "except_clause", "else_clause", "finally_clause", "elif_clause":
			m.scanImports(c)
		}
	}
}

func (m *module) addImport(n *sitter.Node) {
	if n.Type() == "import_statement" {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "dotted_name":
				name := m.text(c)
				head, _, _ := strings.Cut(name, ".")
				m.imports[head] = head
			case "aliased_import":
				m.imports[m.text(c.ChildByFieldName("alias"))] = m.text(c.ChildByFieldName("name"))
			}
		}
		return
	}
	moduleName := n.ChildByFieldName("module_name")
	if moduleName == nil || moduleName.Type() == "relative_import" {
		// Modules of the application: their functions are not known
		return
	}
	prefix := m.text(moduleName)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.FieldNameForChild(i) != "name" {
			continue
		}
		c := n.Child(i)
		switch c.Type() {
		case "dotted_name":
			m.imports[m.text(c)] = prefix + "." + m.text(c)
		case "aliased_import":
			m.imports[m.text(c.ChildByFieldName("alias"))] = prefix + "." + m.text(c.ChildByFieldName("name"))
		}
	}
}
