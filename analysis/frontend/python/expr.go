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

package python

import (
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	sitter "github.com/smacker/go-tree-sitter"
)

var builtins = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "bytes": true, "chr": true, "dict": true,
	"enumerate": true, "eval": true, "exec": true, "filter": true, "float": true, "format": true, "getattr": true,
	"hasattr": true, "hash": true, "input": true, "int": true, "isinstance": true, "iter": true, "len": true,
	"list": true, "map": true, "max": true, "min": true, "next": true, "open": true, "ord": true, "print": true,
	"range": true, "repr": true, "reversed": true, "round": true, "set": true, "sorted": true, "str": true,
	"sum": true, "tuple": true, "type": true, "vars": true, "zip": true,
}

// Methods of boto3 resources returning an object bound to one resource
var boundResources = map[string]bool{"Table": true, "Bucket": true, "Queue": true, "Topic": true}

// Expressions combining the labels of their sub-expressions
var operators = map[string]bool{
	"binary_operator": true, "boolean_operator": true, "comparison_operator": true, "not_operator": true,
	"unary_operator": true, "parenthesized_expression": true, "list": true, "tuple": true, "set": true,
	"dictionary": true, "pair": true, "expression_list": true, "conditional_expression": true,
	"list_splat": true, "dictionary_splat": true, "await": true, "yield": true, "list_comprehension": true,
	"set_comprehension": true, "dictionary_comprehension": true, "generator_expression": true,
	"for_in_clause": true, "if_clause": true, "slice": true, "named_expression": true, "interpolation": true,
	"format_expression": true, "argument_list": true, "concatenated_string": true,
	"string": true, "parenthesized_list_splat": true,
}

func (f *function) expr(n *sitter.Node) *model.Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		name := f.m.text(n)
		if v, ok := f.consts[name]; ok {
			return model.Lit(v)
		}
		if q, ok := f.imported(name); ok {
			return model.Lit(q)
		}
		return model.Ref(name)
	case "integer", "float", "true", "false", "none", "ellipsis":
		return model.Lit(f.m.text(n))
	case "string", "concatenated_string":
		if v, ok := f.constValue(n); ok {
			return model.Lit(v)
		}
	case "call":
		return f.call(n)
	case "attribute":
		if q, ok := f.dotted(n); ok {
			return model.Lit(q)
		}
		return model.Op(f.expr(n.ChildByFieldName("object")))
	case "subscript":
		if v, ok, env := f.envSubscript(n); env {
			if !ok {
				v = ""
			}
			return model.Lit(v)
		}
	case "lambda":
		return model.Op(f.expr(n.ChildByFieldName("body")))
	}
	if n.Type() == "subscript" || operators[n.Type()] {
		var ops []*model.Expr
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "comment", "string_start", "string_content", "string_end", "escape_sequence", "type_conversion",
				"format_specifier":
				continue
			}
			ops = append(ops, f.expr(c))
		}
		return model.Op(ops...)
	}
	return model.Unknown(f.m.text(n))
}

// imported returns the qualified name of the import bound to name
func (f *function) imported(name string) (string, bool) {
	if f.locals[name] {
		return "", false
	}
	q, ok := f.m.imports[name]
	return q, ok
}

// dotted returns the qualified name of an imported name or of an attribute chain on one (os.path.join)
func (f *function) dotted(n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "identifier":
		return f.imported(f.m.text(n))
	case "attribute":
		q, ok := f.dotted(n.ChildByFieldName("object"))
		if !ok {
			return "", false
		}
		return q + "." + f.m.text(n.ChildByFieldName("attribute")), true
	}
	return "", false
}

type argument struct {
	name  string
	value *sitter.Node
}

func (f *function) arguments(n *sitter.Node) []argument {
	if n == nil {
		return nil
	}
	if n.Type() == "generator_expression" {
		return []argument{{value: n}}
	}
	var r []argument
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
		case "keyword_argument":
			r = append(r, argument{name: f.m.text(c.ChildByFieldName("name")), value: c.ChildByFieldName("value")})
		default:
			r = append(r, argument{value: c})
		}
	}
	return r
}

func (f *function) call(n *sitter.Node) *model.Expr {
	fn := n.ChildByFieldName("function")
	args := f.arguments(n.ChildByFieldName("arguments"))
	if v, ok, env := f.envCall(fn, args); env {
		if !ok {
			v = ""
		}
		return model.Lit(v)
	}

	callee, receiver, svc := f.callee(fn)
	c := &model.Call{Callee: callee, Receiver: receiver}
	for _, a := range args {
		c.Args = append(c.Args, model.Arg{Name: a.name, Value: f.expr(a.value)})
	}
	if svc != nil && svc.service != "" {
		if api, ok := f.m.parser.services.LookupCallee(callee); ok {
			sargs := make([]frontend.ServiceArg, len(args))
			for i, a := range args {
				sargs[i].Name = a.name
				sargs[i].Value, sargs[i].Known = f.constValue(a.value)
			}
			c.Output = f.b.AddWrite(frontend.WriteBinding(api, sargs, svc.resource))
		}
	}
	if _, defined := f.m.defs[callee]; defined {
		f.callees = append(f.callees, callee)
	}
	return &model.Expr{Kind: model.ExprCall, Call: c}
}

// callee returns the name of the function called by n, the receiver of method calls on values and the client of
// service calls
func (f *function) callee(n *sitter.Node) (string, *model.Expr, *client) {
	switch n.Type() {
	case "identifier":
		name := f.m.text(n)
		if _, defined := f.m.defs[name]; defined && !f.locals[name] {
			return name, nil, nil
		}
		if q, ok := f.imported(name); ok {
			return q, nil, nil
		}
		if builtins[name] && !f.locals[name] {
			return "builtins." + name, nil, nil
		}
		return name, nil, nil
	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := f.m.text(n.ChildByFieldName("attribute"))
		var c client
		ok := false
		switch obj.Type() {
		case "identifier":
			c, ok = f.clients[f.m.text(obj)]
		case "call":
			c, ok = f.clientOf(obj)
		}
		if ok {
			if c.module != "" {
				return c.module + "." + attr, nil, nil
			}
			return c.service + "." + attr, nil, &c
		}
		if q, ok := f.dotted(obj); ok {
			return q + "." + attr, nil, nil
		}
		return "object." + attr, f.expr(obj), nil
	}
	return "object.call", f.expr(n), nil
}

// clientOf returns the client created by the call n: boto3.client("s3"), boto3.resource("dynamodb"),
// dynamodb.Table("orders") or logging.getLogger()
func (f *function) clientOf(n *sitter.Node) (client, bool) {
	if n == nil || n.Type() != "call" {
		return client{}, false
	}
	fn := n.ChildByFieldName("function")
	args := f.arguments(n.ChildByFieldName("arguments"))
	var method string
	var obj *sitter.Node
	switch fn.Type() {
	case "identifier":
		q, ok := f.imported(f.m.text(fn))
		if !ok {
			return client{}, false
		}
		method = q[strings.LastIndex(q, ".")+1:]
		if q == "logging.getLogger" {
			return client{module: "logging"}, true
		}
		if q != "boto3.client" && q != "boto3.resource" {
			return client{}, false
		}
	case "attribute":
		method = f.m.text(fn.ChildByFieldName("attribute"))
		obj = fn.ChildByFieldName("object")
	default:
		return client{}, false
	}

	switch {
	case method == "getLogger":
		if q, ok := f.dotted(obj); ok && q == "logging" {
			return client{module: "logging"}, true
		}
	case method == "client" || method == "resource":
		for _, a := range args {
			if a.name == "" || a.name == "service_name" {
				if v, ok := f.constValue(a.value); ok {
					return client{service: v}, true
				}
				break
			}
		}
	case boundResources[method] && obj != nil:
		var base client
		ok := false
		switch obj.Type() {
		case "identifier":
			base, ok = f.clients[f.m.text(obj)]
		case "call":
			base, ok = f.clientOf(obj)
		}
		if !ok || base.service == "" {
			return client{}, false
		}
		resource := &frontend.ServiceArg{}
		if len(args) > 0 {
			resource.Value, resource.Known = f.constValue(args[0].value)
		}
		return client{service: base.service, resource: resource}, true
	}
	return client{}, false
}

// constValue returns the value of a constant string expression: literals, their concatenations and formatted
// strings of constants, constant names and environment variables with a known value or a constant default
func (f *function) constValue(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
		return f.stringValue(n)
	case "concatenated_string":
		var sb strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			v, ok := f.constValue(n.NamedChild(i))
			if !ok {
				return "", false
			}
			sb.WriteString(v)
		}
		return sb.String(), true
	case "binary_operator":
		if op := n.ChildByFieldName("operator"); op == nil || f.m.text(op) != "+" {
			return "", false
		}
		l, ok := f.constValue(n.ChildByFieldName("left"))
		if !ok {
			return "", false
		}
		r, ok := f.constValue(n.ChildByFieldName("right"))
		return l + r, ok
	case "parenthesized_expression":
		return f.constValue(n.NamedChild(0))
	case "identifier":
		v, ok := f.consts[f.m.text(n)]
		return v, ok
	case "integer", "float":
		return f.m.text(n), true
	case "call":
		v, ok, _ := f.envCall(n.ChildByFieldName("function"), f.arguments(n.ChildByFieldName("arguments")))
		return v, ok
	case "subscript":
		v, ok, _ := f.envSubscript(n)
		return v, ok
	}
	return "", false
}

func (f *function) stringValue(n *sitter.Node) (string, bool) {
	interpolated := false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "interpolation" {
			interpolated = true
		}
	}
	if !interpolated {
		return unquote(f.m.text(n)), true
	}
	var sb strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "string_content", "escape_sequence":
			sb.WriteString(f.m.text(c))
		case "interpolation":
			v, ok := f.constValue(c.NamedChild(0))
			if !ok {
				return "", false
			}
			sb.WriteString(v)
		}
	}
	return sb.String(), true
}

// unquote strips the prefix and the quotes of a string literal. Escape sequences are kept.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// envCall evaluates os.getenv(name, default) and os.environ.get(name, default). env is false for other calls.
func (f *function) envCall(fn *sitter.Node, args []argument) (value string, ok bool, env bool) {
	q, isImport := f.dotted(fn)
	if !isImport || (q != "os.getenv" && q != "os.environ.get") {
		return "", false, false
	}
	if len(args) == 0 {
		return "", false, true
	}
	if name, known := f.constValue(args[0].value); known {
		if v, set := f.m.unit.LookupEnv(name); set {
			return v, true, true
		}
	}
	for _, a := range args[1:] {
		if a.name == "" || a.name == "default" {
			v, known := f.constValue(a.value)
			return v, known, true
		}
	}
	return "", false, true
}

// envSubscript evaluates os.environ[name]
func (f *function) envSubscript(n *sitter.Node) (value string, ok bool, env bool) {
	q, isImport := f.dotted(n.ChildByFieldName("value"))
	if !isImport || q != "os.environ" {
		return "", false, false
	}
	name, known := f.constValue(n.ChildByFieldName("subscript"))
	if !known {
		return "", false, true
	}
	v, set := f.m.unit.LookupEnv(name)
	return v, set, true
}
