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

package golang

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/dave/dst"
)

// Builtin functions and conversions: their result combines their arguments
var builtins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true, "copy": true, "delete": true,
	"imag": true, "len": true, "make": true, "max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true, "string": true, "byte": true, "rune": true, "int": true,
	"int8": true, "int16": true, "int32": true, "int64": true, "uint": true, "uint8": true, "uint16": true,
	"uint32": true, "uint64": true, "float32": true, "float64": true, "bool": true, "any": true, "error": true,
}

// Client constructors of the aws-sdk-go-v2 service packages
var clientConstructors = map[string]bool{"NewFromConfig": true, "New": true}

func (f *function) expr(e dst.Expr) *model.Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *dst.BasicLit:
		if e.Kind == token.STRING {
			if v, err := strconv.Unquote(e.Value); err == nil {
				return model.Lit(v)
			}
		}
		return model.Lit(e.Value)
	case *dst.Ident:
		if e.Name == "nil" || e.Name == "true" || e.Name == "false" || e.Name == "iota" {
			return model.Lit(e.Name)
		}
		if v, ok := f.consts[e.Name]; ok {
			return model.Lit(v)
		}
		return model.Ref(e.Name)
	case *dst.CallExpr:
		return f.call(e)
	case *dst.SelectorExpr:
		if q, ok := f.imported(e); ok {
			return model.Lit(q)
		}
		return model.Op(f.expr(e.X))
	case *dst.BinaryExpr:
		if v, ok := f.constValue(e); ok {
			return model.Lit(v)
		}
		return model.Op(f.expr(e.X), f.expr(e.Y))
	case *dst.ParenExpr:
		return f.expr(e.X)
	case *dst.UnaryExpr:
		return model.Op(f.expr(e.X))
	case *dst.StarExpr:
		return model.Op(f.expr(e.X))
	case *dst.IndexExpr:
		return model.Op(f.expr(e.X), f.expr(e.Index))
	case *dst.SliceExpr:
		return model.Op(f.expr(e.X), f.expr(e.Low), f.expr(e.High), f.expr(e.Max))
	case *dst.TypeAssertExpr:
		return model.Op(f.expr(e.X))
	case *dst.KeyValueExpr:
		return model.Op(f.expr(e.Value))
	case *dst.CompositeLit:
		ops := make([]*model.Expr, 0, len(e.Elts))
		for _, elt := range e.Elts {
			ops = append(ops, f.expr(elt))
		}
		return model.Op(ops...)
	case *dst.FuncLit:
		return model.Unknown("func literal")
	}
	return model.Unknown(fmt.Sprintf("%T", e))
}

// imported returns the qualified name of a member of an imported package (http.MethodPost)
func (f *function) imported(sel *dst.SelectorExpr) (string, bool) {
	x, ok := sel.X.(*dst.Ident)
	if !ok || f.locals[x.Name] {
		return "", false
	}
	p, ok := f.file.imports[x.Name]
	if !ok {
		return "", false
	}
	return qualify(p, sel.Sel.Name), true
}

// importPath returns the import path of the package of a selector on an imported package
func (f *function) importPath(e dst.Expr) (string, string, bool) {
	sel, ok := e.(*dst.SelectorExpr)
	if !ok {
		return "", "", false
	}
	x, ok := sel.X.(*dst.Ident)
	if !ok || f.locals[x.Name] {
		return "", "", false
	}
	p, ok := f.file.imports[x.Name]
	return p, sel.Sel.Name, ok
}

func (f *function) call(e *dst.CallExpr) *model.Expr {
	if id, ok := e.Fun.(*dst.Ident); ok && builtins[id.Name] && !f.locals[id.Name] {
		return f.operation(e.Args)
	}
	switch e.Fun.(type) {
	case *dst.ArrayType, *dst.MapType, *dst.ParenExpr, *dst.InterfaceType, *dst.ChanType, *dst.FuncType:
		// Conversion
		return f.operation(e.Args)
	}

	callee, receiver, svc := f.callee(e.Fun)
	c := &model.Call{Callee: callee, Receiver: receiver}
	var sargs []frontend.ServiceArg
	for _, a := range e.Args {
		if fields, ok := inputFields(a); ok && svc != nil {
			for _, kv := range fields {
				name := kv.Key.(*dst.Ident).Name
				c.Args = append(c.Args, model.Arg{Name: name, Value: f.expr(kv.Value)})
				v, known := f.constValue(kv.Value)
				sargs = append(sargs, frontend.ServiceArg{Name: name, Value: v, Known: known})
			}
			continue
		}
		c.Args = append(c.Args, model.Arg{Value: f.expr(a)})
		v, known := f.constValue(a)
		sargs = append(sargs, frontend.ServiceArg{Value: v, Known: known})
	}
	if svc != nil {
		if api, ok := f.pkg.parser.services.LookupCallee(callee); ok {
			c.Output = f.b.AddWrite(frontend.WriteBinding(api, sargs, nil))
		}
	}
	if _, defined := f.pkg.funcs[callee]; defined && receiver == nil && !f.locals[callee] {
		f.callees = append(f.callees, callee)
	} else {
		f.addOuts(e.Args, c.Args)
	}
	return &model.Expr{Kind: model.ExprCall, Call: c}
}

func (f *function) operation(args []dst.Expr) *model.Expr {
	ops := make([]*model.Expr, len(args))
	for i, a := range args {
		ops[i] = f.expr(a)
	}
	return model.Op(ops...)
}

// addOuts records the variables passed by address to the call
func (f *function) addOuts(args []dst.Expr, lowered []model.Arg) {
	if len(args) != len(lowered) {
		return
	}
	for i, a := range args {
		u, ok := a.(*dst.UnaryExpr)
		if !ok || u.Op != token.AND {
			continue
		}
		id, ok := u.X.(*dst.Ident)
		if !ok || id.Name == "_" {
			continue
		}
		var others []*model.Expr
		for j, l := range lowered {
			if j != i {
				others = append(others, l.Value)
			}
		}
		f.outs = append(f.outs, outParam{name: id.Name, args: others})
	}
}

// inputFields returns the fields of the input struct of a service call (&s3.PutObjectInput{...})
func inputFields(e dst.Expr) ([]*dst.KeyValueExpr, bool) {
	if u, ok := e.(*dst.UnaryExpr); ok && u.Op == token.AND {
		e = u.X
	}
	lit, ok := e.(*dst.CompositeLit)
	if !ok {
		return nil, false
	}
	var r []*dst.KeyValueExpr
	for _, elt := range lit.Elts {
		kv, ok := elt.(*dst.KeyValueExpr)
		if !ok {
			return nil, false
		}
		if _, ok := kv.Key.(*dst.Ident); !ok {
			return nil, false
		}
		r = append(r, kv)
	}
	return r, true
}

// callee returns the name of the function called, the receiver of method calls on values and the client of
// service calls
func (f *function) callee(fun dst.Expr) (string, *model.Expr, *client) {
	switch fun := fun.(type) {
	case *dst.Ident:
		return fun.Name, nil, nil
	case *dst.IndexExpr:
		// Instantiation of a generic function
		return f.callee(fun.X)
	case *dst.IndexListExpr:
		return f.callee(fun.X)
	case *dst.SelectorExpr:
		method := fun.Sel.Name
		var c client
		ok := false
		switch x := fun.X.(type) {
		case *dst.Ident:
			c, ok = f.clients[x.Name]
		case *dst.CallExpr:
			c, ok = f.clientOf(x)
		}
		if ok {
			return c.service + "." + method, nil, &c
		}
		if q, ok := f.imported(fun); ok {
			return q, nil, nil
		}
		return "object." + method, f.expr(fun.X), nil
	}
	return "object.call", f.expr(fun), nil
}

// clientType returns the client of a variable of type *s3.Client
func (f *function) clientType(t dst.Expr) (client, bool) {
	if star, ok := t.(*dst.StarExpr); ok {
		t = star.X
	}
	p, name, ok := f.importPath(t)
	if !ok || name != "Client" || !strings.HasPrefix(p, servicePackage) {
		return client{}, false
	}
	return client{service: serviceName(p)}, true
}

// clientOf returns the client created by s3.NewFromConfig(cfg)
func (f *function) clientOf(e dst.Expr) (client, bool) {
	call, ok := e.(*dst.CallExpr)
	if !ok {
		return client{}, false
	}
	p, name, ok := f.importPath(call.Fun)
	if !ok || !clientConstructors[name] || !strings.HasPrefix(p, servicePackage) {
		return client{}, false
	}
	return client{service: serviceName(p)}, true
}

// constValue returns the value of a constant string expression: literals, their concatenations, constants,
// aws.String of constants, fmt.Sprintf of constants and environment variables with a known value
func (f *function) constValue(e dst.Expr) (string, bool) {
	switch e := e.(type) {
	case *dst.BasicLit:
		if e.Kind == token.STRING {
			v, err := strconv.Unquote(e.Value)
			return v, err == nil
		}
		if e.Kind == token.INT || e.Kind == token.FLOAT {
			return e.Value, true
		}
	case *dst.Ident:
		v, ok := f.consts[e.Name]
		return v, ok
	case *dst.ParenExpr:
		return f.constValue(e.X)
	case *dst.BinaryExpr:
		if e.Op != token.ADD {
			return "", false
		}
		l, ok := f.constValue(e.X)
		if !ok {
			return "", false
		}
		r, ok := f.constValue(e.Y)
		return l + r, ok
	case *dst.CallExpr:
		p, name, ok := f.importPath(e.Fun)
		if !ok {
			return "", false
		}
		args := make([]any, len(e.Args))
		for i, a := range e.Args {
			v, known := f.constValue(a)
			if !known {
				return "", false
			}
			args[i] = v
		}
		switch qualify(p, name) {
		case "aws.String", "aws.ToString":
			if len(args) == 1 {
				return args[0].(string), true
			}
		case "fmt.Sprintf":
			if len(args) > 0 {
				return fmt.Sprintf(args[0].(string), args[1:]...), true
			}
		case "os.Getenv":
			if len(args) == 1 {
				return f.pkg.unit.LookupEnv(args[0].(string))
			}
		}
	}
	return "", false
}
