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

// Package golang is the frontend of Go handlers. It parses the main package of a handler with dst, finds the
// handler passed to lambda.Start and lowers it and the package functions it calls to the Function Model.
//
// Calls to the standard library are named by import path (net/http.Post), calls to other modules by package name
// (uuid.New), and calls on aws-sdk-go-v2 clients by service (s3.PutObject). The fields of the input struct of a
// service call are its named arguments.
package golang

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

const (
	lambdaPackage  = "github.com/aws/aws-lambda-go/lambda"
	servicePackage = "github.com/aws/aws-sdk-go-v2/service/"
)

// Go packages of services whose name differs from the service
var servicePackages = map[string]string{"sfn": "stepfunctions"}

// Parser parses Go handlers
type Parser struct {
	config   *config.Config
	logger   *config.LogGroup
	services *catalog.Services
}

// New returns a parser recognizing the writes of the service APIs
func New(cfg *config.Config, logger *config.LogGroup, services *catalog.Services) *Parser {
	return &Parser{config: cfg, logger: logger, services: services}
}

// Language returns go
func (p *Parser) Language() string {
	return "go"
}

// packageDirs returns the directories that may hold the main package of the unit, relative to its directory.
// The module of a compiled handler is its executable: bin/worker is built from worker, cmd/worker or the root.
func packageDirs(module string) []string {
	name := path.Base(module)
	var r []string
	seen := map[string]bool{}
	for _, dir := range []string{module, name, "cmd/" + name, "functions/" + name, ""} {
		if !seen[dir] {
			seen[dir] = true
			r = append(r, dir)
		}
	}
	return r
}

// Parse reads the main package of the unit and returns its function models
func (p *Parser) Parse(ctx context.Context, fs afs.Service, unit *frontend.Unit) ([]*model.Function, error) {
	for _, dir := range packageDirs(unit.Module) {
		dirURL := unit.Dir
		if dir != "" {
			dirURL = url.Join(unit.Dir, dir)
		}
		files, err := p.readPackage(ctx, fs, dirURL)
		if err != nil || len(files) == 0 {
			continue
		}
		fns, err := p.ParseFiles(ctx, unit, files)
		if err == nil || dir == "" {
			return fns, err
		}
		p.logger.Debugf("%s: no handler in %s: %v", unit.Name, dirURL, err)
	}
	return nil, fmt.Errorf("%s: no Go package for %s", unit.Name, unit.Module)
}

// readPackage returns the sources of the non-test Go files of the directory, by file URL
func (p *Parser) readPackage(ctx context.Context, fs afs.Service, dirURL string) (map[string][]byte, error) {
	var names []string
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo,
		reader io.Reader) (bool, error) {
		if info.IsDir() {
			return false, nil
		}
		if strings.HasSuffix(info.Name(), ".go") && !strings.HasSuffix(info.Name(), "_test.go") {
			names = append(names, info.Name())
		}
		return true, nil
	}
	if err := fs.Walk(ctx, dirURL, visitor); err != nil {
		return nil, err
	}
	files := make(map[string][]byte, len(names))
	for _, name := range names {
		URL := url.Join(dirURL, name)
		src, err := fs.DownloadWithURL(ctx, URL)
		if err != nil {
			return nil, err
		}
		files[URL] = src
	}
	return files, nil
}

// ParseFiles returns the function models of the unit from the sources of its main package, keyed by file name
func (p *Parser) ParseFiles(ctx context.Context, unit *frontend.Unit, files map[string][]byte) ([]*model.Function,
	error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	fset := token.NewFileSet()
	pkg := newPackage(p, unit, fset)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec := decorator.NewDecorator(fset)
		f, err := dec.ParseFile(name, files[name], parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("could not parse %s: %w", name, err)
		}
		pkg.addFile(name, f, dec)
	}
	pkg.scan()

	entry := unit.Entry
	if entry == "" {
		entry = pkg.startedHandler()
	}
	functions := map[string]*model.Function{}
	calls := map[string][]string{}
	for name, decl := range pkg.funcs {
		fn, callees := pkg.lowerFunction(name, decl)
		functions[name] = fn
		calls[name] = callees
	}
	fns, err := frontend.Assemble(unit, entry, functions, calls)
	if err != nil {
		return nil, err
	}
	main := fns[0]
	if param := eventParam(pkg.funcs[entry]); param != "" {
		for i := range main.Bindings {
			if b := &main.Bindings[i]; b.Direction == model.Input && b.Param == "" {
				b.Param = param
			}
		}
	}
	p.logger.Debugf("%s: %d functions from %d files", unit.Name, len(fns), len(files))
	return fns, nil
}

// eventParam returns the parameter of the handler receiving the event: the second one when the first is a
// context.Context
func eventParam(decl *funcDecl) string {
	if decl == nil || decl.decl.Type.Params == nil {
		return ""
	}
	fields := decl.decl.Type.Params.List
	if len(fields) == 0 {
		return ""
	}
	params := paramNames(decl.decl.Type)
	if len(params) < 2 {
		return ""
	}
	if sel, ok := fields[0].Type.(*dst.SelectorExpr); ok && sel.Sel.Name == "Context" {
		if x, ok := sel.X.(*dst.Ident); ok && decl.file.imports[x.Name] == "context" {
			return params[1]
		}
	}
	return ""
}

// paramNames returns the names of the parameters. Unnamed parameters are named after their position.
func paramNames(t *dst.FuncType) []string {
	var r []string
	if t.Params == nil {
		return nil
	}
	for _, field := range t.Params.List {
		if len(field.Names) == 0 {
			r = append(r, "_"+strconv.Itoa(len(r)))
			continue
		}
		for _, n := range field.Names {
			name := n.Name
			if name == "_" {
				name = "_" + strconv.Itoa(len(r))
			}
			r = append(r, name)
		}
	}
	return r
}

// file is a parsed source file with its imports, by local name
type file struct {
	name    string
	ast     *dst.File
	dec     *decorator.Decorator
	imports map[string]string
}

type funcDecl struct {
	decl *dst.FuncDecl
	file *file
}

// client is the aws-sdk-go-v2 service of a client value
type client struct {
	service string
}

// goPackage is the scope of the main package of a handler
type goPackage struct {
	parser *Parser
	unit   *frontend.Unit
	fset   *token.FileSet

	files   []*file
	funcs   map[string]*funcDecl
	consts  map[string]string
	clients map[string]client
	vars    map[string]bool
}

func newPackage(p *Parser, unit *frontend.Unit, fset *token.FileSet) *goPackage {
	return &goPackage{
		parser:  p,
		unit:    unit,
		fset:    fset,
		funcs:   map[string]*funcDecl{},
		consts:  map[string]string{},
		clients: map[string]client{},
		vars:    map[string]bool{},
	}
}

func (pkg *goPackage) addFile(name string, f *dst.File, dec *decorator.Decorator) {
	fl := &file{name: path.Base(name), ast: f, dec: dec, imports: map[string]string{}}
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		local := path.Base(p)
		if strings.HasPrefix(local, "v") && len(local) > 1 && strings.Trim(local[1:], "0123456789") == "" {
			// Major version suffix: the package name is the previous element
			local = path.Base(path.Dir(p))
		}
		if spec.Name != nil {
			local = spec.Name.Name
		}
		if local == "_" || local == "." {
			continue
		}
		fl.imports[local] = p
	}
	pkg.files = append(pkg.files, fl)
	for _, decl := range f.Decls {
		if fd, ok := decl.(*dst.FuncDecl); ok && fd.Recv == nil && fd.Body != nil {
			pkg.funcs[fd.Name.Name] = &funcDecl{decl: fd, file: fl}
		}
	}
}

// scan collects the constants and the clients of the package: constants and variables with constant values,
// variables with a client type or a client value, and package variables assigned a client in a function
func (pkg *goPackage) scan() {
	for _, fl := range pkg.files {
		scope := pkg.scope(fl)
		for _, decl := range fl.ast.Decls {
			gd, ok := decl.(*dst.GenDecl)
			if !ok || (gd.Tok != token.CONST && gd.Tok != token.VAR) {
				continue
			}
			for _, spec := range gd.Specs {
				vs, ok := spec.(*dst.ValueSpec)
				if !ok {
					continue
				}
				for i, n := range vs.Names {
					if gd.Tok == token.VAR {
						pkg.vars[n.Name] = true
					}
					if c, ok := scope.clientType(vs.Type); ok {
						pkg.clients[n.Name] = c
					}
					if i >= len(vs.Values) {
						continue
					}
					if v, ok := scope.constValue(vs.Values[i]); ok {
						pkg.consts[n.Name] = v
					} else if c, ok := scope.clientOf(vs.Values[i]); ok {
						pkg.clients[n.Name] = c
					}
				}
			}
		}
	}
	for _, fd := range pkg.funcs {
		scope := pkg.scope(fd.file)
		dst.Inspect(fd.decl.Body, func(n dst.Node) bool {
			a, ok := n.(*dst.AssignStmt)
			if !ok || a.Tok != token.ASSIGN || len(a.Lhs) != len(a.Rhs) {
				return true
			}
			for i, lhs := range a.Lhs {
				if id, ok := lhs.(*dst.Ident); ok && pkg.vars[id.Name] {
					if c, ok := scope.clientOf(a.Rhs[i]); ok {
						pkg.clients[id.Name] = c
					}
				}
			}
			return true
		})
	}
}

// scope returns the package scope as seen from a file
func (pkg *goPackage) scope(fl *file) *function {
	return &function{pkg: pkg, file: fl, consts: pkg.consts, clients: pkg.clients, locals: map[string]bool{}}
}

// startedHandler returns the name of the function passed to lambda.Start in main
func (pkg *goPackage) startedHandler() string {
	fd := pkg.funcs["main"]
	if fd == nil {
		return ""
	}
	name := ""
	dst.Inspect(fd.decl.Body, func(n dst.Node) bool {
		call, ok := n.(*dst.CallExpr)
		if !ok || name != "" || len(call.Args) == 0 {
			return name == ""
		}
		sel, ok := call.Fun.(*dst.SelectorExpr)
		if !ok || (sel.Sel.Name != "Start" && sel.Sel.Name != "StartWithOptions") {
			return true
		}
		if x, ok := sel.X.(*dst.Ident); !ok || fd.file.imports[x.Name] != lambdaPackage {
			return true
		}
		if id, ok := call.Args[0].(*dst.Ident); ok {
			name = id.Name
		}
		return false
	})
	return name
}

// qualify returns the name of a member of an imported package: the import path for the standard library, the
// package name otherwise
func qualify(importPath string, member string) string {
	if first, _, _ := strings.Cut(importPath, "/"); !strings.Contains(first, ".") {
		return importPath + "." + member
	}
	if strings.HasPrefix(importPath, servicePackage) {
		return serviceName(importPath) + "." + member
	}
	return path.Base(importPath) + "." + member
}

func serviceName(importPath string) string {
	svc := strings.TrimPrefix(importPath, servicePackage)
	svc, _, _ = strings.Cut(svc, "/")
	if s, ok := servicePackages[svc]; ok {
		return s
	}
	return svc
}
