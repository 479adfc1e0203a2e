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

	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/dave/dst"
)

// function is the scope of a function being lowered
type function struct {
	pkg     *goPackage
	file    *file
	b       *frontend.Builder
	consts  map[string]string
	clients map[string]client
	locals  map[string]bool
	callees []string

	breaks []*breakScope
	// outs are the variables passed by address to the calls of the statement being lowered
	outs []outParam
}

// breakScope is the innermost statement a break leaves: a loop, or a switch or select collecting its exits
type breakScope struct {
	loop  bool
	exits []int
}

// outParam is a variable passed by address to a call that is not a package function: it may receive the data of
// the other arguments, as with json.Unmarshal(b, &v)
type outParam struct {
	name string
	args []*model.Expr
}

func (pkg *goPackage) lowerFunction(name string, fd *funcDecl) (*model.Function, []string) {
	fn := &model.Function{Name: name, Params: paramNames(fd.decl.Type), File: fd.file.name}
	f := pkg.scope(fd.file)
	f.consts = map[string]string{}
	f.clients = map[string]client{}
	f.b = frontend.NewBuilder(fn)
	for _, p := range fn.Params {
		f.locals[p] = true
	}
	f.prescan(fd.decl)
	f.block(fd.decl.Body.List, nil)
	return f.b.Finish(), f.callees
}

// prescan finds the variables the function declares. Variables declared once and never assigned again keep
// their constant or client value in the whole function; the package values of declared names are shadowed.
func (f *function) prescan(decl *dst.FuncDecl) {
	counts := map[string]int{}
	values := map[string]dst.Expr{}
	var order []string
	typed := map[string]client{}
	define := func(id dst.Expr, value dst.Expr) {
		n, ok := id.(*dst.Ident)
		if !ok || n.Name == "_" {
			return
		}
		if counts[n.Name] == 0 {
			order = append(order, n.Name)
		}
		f.locals[n.Name] = true
		counts[n.Name]++
		values[n.Name] = value
	}
	for _, field := range decl.Type.Params.List {
		if c, ok := f.clientType(field.Type); ok {
			for _, n := range field.Names {
				typed[n.Name] = c
			}
		}
	}
	dst.Inspect(decl.Body, func(n dst.Node) bool {
		switch s := n.(type) {
		case *dst.FuncLit:
			return false
		case *dst.AssignStmt:
			for i, lhs := range s.Lhs {
				var value dst.Expr
				if len(s.Lhs) == len(s.Rhs) && s.Tok == token.DEFINE {
					value = s.Rhs[i]
				}
				if s.Tok == token.DEFINE {
					define(lhs, value)
				} else if id, ok := lhs.(*dst.Ident); ok && f.locals[id.Name] {
					counts[id.Name]++
				}
			}
		case *dst.IncDecStmt:
			if id, ok := s.X.(*dst.Ident); ok && f.locals[id.Name] {
				counts[id.Name]++
			}
		case *dst.UnaryExpr:
			if id, ok := s.X.(*dst.Ident); ok && s.Op == token.AND && f.locals[id.Name] {
				counts[id.Name]++
			}
		case *dst.RangeStmt:
			if s.Tok == token.DEFINE {
				define(s.Key, nil)
				if s.Value != nil {
					define(s.Value, nil)
				}
			}
		case *dst.ValueSpec:
			for i, id := range s.Names {
				var value dst.Expr
				if len(s.Values) == len(s.Names) {
					value = s.Values[i]
				}
				define(id, value)
				if c, ok := f.clientType(s.Type); ok {
					typed[id.Name] = c
				}
			}
		}
		return true
	})

	for name, v := range f.pkg.consts {
		if !f.locals[name] {
			f.consts[name] = v
		}
	}
	for name, c := range f.pkg.clients {
		if !f.locals[name] {
			f.clients[name] = c
		}
	}
	for name, c := range typed {
		f.clients[name] = c
	}
	for _, name := range order {
		if counts[name] != 1 || values[name] == nil {
			continue
		}
		if v, ok := f.constValue(values[name]); ok {
			f.consts[name] = v
		} else if c, ok := f.clientOf(values[name]); ok {
			f.clients[name] = c
		}
	}
}

func (f *function) line(n dst.Node) int {
	if a, ok := f.file.dec.Ast.Nodes[n]; ok && a != nil {
		return f.pkg.fset.Position(a.Pos()).Line
	}
	return 0
}

// add adds the statement after preds, followed by the updates of the variables its calls received by address
func (f *function) add(preds []int, n dst.Node, s *model.Statement) []int {
	s.Line = f.line(n)
	preds = []int{f.b.Add(preds, s)}
	outs := f.outs
	f.outs = nil
	for _, o := range outs {
		preds = []int{f.b.Add(preds, &model.Statement{
			Kind:   model.Assign,
			Target: o.name,
			Value:  model.Op(append([]*model.Expr{model.Ref(o.name)}, o.args...)...),
			Line:   s.Line,
		})}
	}
	return preds
}

func (f *function) block(list []dst.Stmt, preds []int) []int {
	for _, s := range list {
		preds = f.stmt(s, preds)
	}
	return preds
}

func (f *function) stmt(s dst.Stmt, preds []int) []int {
	switch s := s.(type) {
	case *dst.AssignStmt:
		return f.assign(s, preds)
	case *dst.DeclStmt:
		return f.decl(s, preds)
	case *dst.ExprStmt:
		return f.calls(preds, s, f.expr(s.X))
	case *dst.DeferStmt:
		return f.calls(preds, s, f.expr(s.Call))
	case *dst.GoStmt:
		return f.calls(preds, s, f.expr(s.Call))
	case *dst.ReturnStmt:
		r := &model.Statement{Kind: model.Return}
		switch len(s.Results) {
		case 0:
		case 1:
			r.Value = f.expr(s.Results[0])
		default:
			ops := make([]*model.Expr, len(s.Results))
			for i, e := range s.Results {
				ops[i] = f.expr(e)
			}
			r.Value = model.Op(ops...)
		}
		f.add(preds, s, r)
		return nil
	case *dst.BlockStmt:
		return f.block(s.List, preds)
	case *dst.IfStmt:
		return f.ifStmt(s, preds)
	case *dst.ForStmt:
		return f.forStmt(s, preds)
	case *dst.RangeStmt:
		return f.rangeStmt(s, preds)
	case *dst.SwitchStmt:
		if s.Init != nil {
			preds = f.stmt(s.Init, preds)
		}
		ops := []*model.Expr{}
		if s.Tag != nil {
			ops = append(ops, f.expr(s.Tag))
		}
		return f.cases(s, preds, ops, s.Body)
	case *dst.TypeSwitchStmt:
		if s.Init != nil {
			preds = f.stmt(s.Init, preds)
		}
		var x dst.Expr
		switch a := s.Assign.(type) {
		case *dst.AssignStmt:
			x = a.Rhs[0]
			if ta, ok := x.(*dst.TypeAssertExpr); ok {
				x = ta.X
			}
			if id, ok := a.Lhs[0].(*dst.Ident); ok && id.Name != "_" {
				preds = f.add(preds, a, &model.Statement{Kind: model.Assign, Target: id.Name, Value: f.expr(x)})
			}
		case *dst.ExprStmt:
			x = a.X
			if ta, ok := x.(*dst.TypeAssertExpr); ok {
				x = ta.X
			}
		}
		return f.cases(s, preds, []*model.Expr{f.expr(x)}, s.Body)
	case *dst.SelectStmt:
		dispatch := f.add(preds, s, &model.Statement{Kind: model.Nop})
		scope := &breakScope{}
		f.breaks = append(f.breaks, scope)
		var exits []int
		for _, c := range s.Body.List {
			cc, ok := c.(*dst.CommClause)
			if !ok {
				continue
			}
			p := dispatch
			if cc.Comm != nil {
				p = f.stmt(cc.Comm, p)
			}
			exits = append(exits, f.block(cc.Body, p)...)
		}
		f.breaks = f.breaks[:len(f.breaks)-1]
		return append(exits, scope.exits...)
	case *dst.BranchStmt:
		return f.branch(s, preds)
	case *dst.LabeledStmt:
		return f.stmt(s.Stmt, preds)
	case *dst.SendStmt:
		if target := base(s.Chan); target != "" {
			return f.add(preds, s, &model.Statement{Kind: model.Assign, Target: target,
				Value: model.Op(model.Ref(target), f.expr(s.Value))})
		}
		return f.calls(preds, s, f.expr(s.Value))
	case *dst.IncDecStmt, *dst.EmptyStmt:
		return preds
	default:
		return f.add(preds, s, &model.Statement{Kind: model.Unclassified, Value: model.Unknown(fmt.Sprintf("%T", s))})
	}
}

// calls adds a call statement for each outermost call of the expression
func (f *function) calls(preds []int, n dst.Node, v *model.Expr) []int {
	v.Walk(func(e *model.Expr) bool {
		if e.Kind != model.ExprCall {
			return true
		}
		preds = f.add(preds, n, &model.Statement{Kind: model.CallStmt, Value: e})
		return false
	})
	if len(f.outs) > 0 {
		// Out parameters of builtin operations
		preds = f.add(preds, n, &model.Statement{Kind: model.Nop})
	}
	return preds
}

// base returns the variable updated through a selector, index or dereference target (a in a.b[c] = v), or ""
func base(e dst.Expr) string {
	for {
		switch x := e.(type) {
		case *dst.Ident:
			if x.Name == "_" {
				return ""
			}
			return x.Name
		case *dst.SelectorExpr:
			e = x.X
		case *dst.IndexExpr:
			e = x.X
		case *dst.StarExpr:
			e = x.X
		case *dst.ParenExpr:
			e = x.X
		default:
			return ""
		}
	}
}

// assignTo lowers the assignment of value to the target. A variable updated through a selector or an index joins
// the value with its own.
func (f *function) assignTo(preds []int, n dst.Node, lhs dst.Expr, value *model.Expr) []int {
	if id, ok := lhs.(*dst.Ident); ok && id.Name != "_" {
		return f.add(preds, n, &model.Statement{Kind: model.Assign, Target: id.Name, Value: value})
	}
	if _, ok := lhs.(*dst.Ident); !ok {
		if target := base(lhs); target != "" {
			return f.add(preds, n, &model.Statement{Kind: model.Assign, Target: target,
				Value: model.Op(model.Ref(target), value)})
		}
	}
	return f.calls(preds, n, value)
}

func (f *function) assign(s *dst.AssignStmt, preds []int) []int {
	if s.Tok != token.ASSIGN && s.Tok != token.DEFINE {
		target := base(s.Lhs[0])
		if target == "" {
			return f.calls(preds, s, f.expr(s.Rhs[0]))
		}
		return f.add(preds, s, &model.Statement{Kind: model.Assign, Target: target,
			Value: model.Op(model.Ref(target), f.expr(s.Rhs[0]))})
	}
	return f.assignValues(preds, s, s.Lhs, s.Rhs)
}

// assignValues lowers parallel assignments, and assignments of the results of a call (a, err := f()): the first
// variable gets the result and the others copy it
func (f *function) assignValues(preds []int, n dst.Node, lhs []dst.Expr, rhs []dst.Expr) []int {
	if len(lhs) == len(rhs) {
		for i := range lhs {
			preds = f.assignTo(preds, n, lhs[i], f.expr(rhs[i]))
		}
		return preds
	}
	if len(rhs) != 1 {
		return f.add(preds, n, &model.Statement{Kind: model.Unclassified, Value: model.Unknown("assignment")})
	}
	value := f.expr(rhs[0])
	first := ""
	for _, l := range lhs {
		id, ok := l.(*dst.Ident)
		if !ok || id.Name == "_" {
			continue
		}
		v := value
		if first != "" {
			v = model.Ref(first)
		} else {
			first = id.Name
		}
		preds = f.add(preds, n, &model.Statement{Kind: model.Assign, Target: id.Name, Value: v})
	}
	if first == "" {
		preds = f.calls(preds, n, value)
	}
	return preds
}

func (f *function) decl(s *dst.DeclStmt, preds []int) []int {
	gd, ok := s.Decl.(*dst.GenDecl)
	if !ok || gd.Tok != token.VAR {
		return preds
	}
	for _, spec := range gd.Specs {
		vs, ok := spec.(*dst.ValueSpec)
		if !ok || len(vs.Values) == 0 {
			continue
		}
		lhs := make([]dst.Expr, len(vs.Names))
		for i, n := range vs.Names {
			lhs[i] = n
		}
		preds = f.assignValues(preds, s, lhs, vs.Values)
	}
	return preds
}

func (f *function) ifStmt(s *dst.IfStmt, preds []int) []int {
	if s.Init != nil {
		preds = f.stmt(s.Init, preds)
	}
	cond := f.add(preds, s, &model.Statement{Kind: model.Branch, Value: f.expr(s.Cond)})
	exits := f.block(s.Body.List, cond)
	if s.Else == nil {
		return append(exits, cond...)
	}
	return append(exits, f.stmt(s.Else, cond)...)
}

func (f *function) loop(head []int, body []dst.Stmt, pre func([]int) []int, post dst.Stmt) []int {
	f.b.EnterLoop(head[0])
	f.breaks = append(f.breaks, &breakScope{loop: true})
	preds := head
	if pre != nil {
		preds = pre(preds)
	}
	exits := f.block(body, preds)
	if post != nil {
		exits = f.stmt(post, exits)
	}
	f.b.Continue(exits)
	f.breaks = f.breaks[:len(f.breaks)-1]
	return f.b.ExitLoop()
}

func (f *function) forStmt(s *dst.ForStmt, preds []int) []int {
	if s.Init != nil {
		preds = f.stmt(s.Init, preds)
	}
	cond := model.Lit("true")
	if s.Cond != nil {
		cond = f.expr(s.Cond)
	}
	head := f.add(preds, s, &model.Statement{Kind: model.Loop, Value: cond})
	breaks := f.loop(head, s.Body.List, nil, s.Post)
	if s.Cond == nil {
		return breaks
	}
	return append(head, breaks...)
}

// rangeStmt lowers range loops. The loop assigns the value variable, or the key when there is none; the key copies
// the value at the start of the body.
func (f *function) rangeStmt(s *dst.RangeStmt, preds []int) []int {
	var names []string
	for _, e := range []dst.Expr{s.Value, s.Key} {
		if id, ok := e.(*dst.Ident); ok && id.Name != "_" {
			names = append(names, id.Name)
		}
	}
	l := &model.Statement{Kind: model.Loop, Value: f.expr(s.X)}
	if len(names) > 0 {
		l.Target = names[0]
	}
	head := f.add(preds, s, l)
	pre := func(p []int) []int {
		for _, name := range names[min(1, len(names)):] {
			p = f.add(p, s, &model.Statement{Kind: model.Assign, Target: name, Value: model.Ref(names[0])})
		}
		return p
	}
	return append(head, f.loop(head, s.Body.List, pre, nil)...)
}

// cases lowers the clauses of switch statements after a branch on the tag and the case expressions. Without
// default clause the branch may skip every clause.
func (f *function) cases(n dst.Node, preds []int, ops []*model.Expr, body *dst.BlockStmt) []int {
	for _, c := range body.List {
		if cc, ok := c.(*dst.CaseClause); ok {
			for _, e := range cc.List {
				ops = append(ops, f.expr(e))
			}
		}
	}
	branch := f.add(preds, n, &model.Statement{Kind: model.Branch, Value: model.Op(ops...)})
	scope := &breakScope{}
	f.breaks = append(f.breaks, scope)
	var exits []int
	hasDefault := false
	for _, c := range body.List {
		cc, ok := c.(*dst.CaseClause)
		if !ok {
			continue
		}
		if cc.List == nil {
			hasDefault = true
		}
		exits = append(exits, f.block(cc.Body, branch)...)
	}
	f.breaks = f.breaks[:len(f.breaks)-1]
	exits = append(exits, scope.exits...)
	if !hasDefault {
		exits = append(exits, branch...)
	}
	return exits
}

func (f *function) branch(s *dst.BranchStmt, preds []int) []int {
	switch s.Tok {
	case token.BREAK:
		if len(f.breaks) > 0 {
			if scope := f.breaks[len(f.breaks)-1]; !scope.loop {
				scope.exits = append(scope.exits, preds...)
				return nil
			}
		}
		if f.b.Break(preds) {
			return nil
		}
	case token.CONTINUE:
		if f.b.Continue(preds) {
			return nil
		}
	case token.GOTO:
		return f.add(preds, s, &model.Statement{Kind: model.Unclassified, Value: model.Unknown("goto")})
	}
	return preds
}
