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
	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/model"
	sitter "github.com/smacker/go-tree-sitter"
)

// function is the scope of a function being lowered. consts and clients hold the values known for the names of
// the function: its own single assignments and the module values it does not shadow.
type function struct {
	m       *module
	b       *frontend.Builder
	consts  map[string]string
	clients map[string]client
	locals  map[string]bool
	callees []string
}

func (m *module) lowerFunction(name string, def *sitter.Node) (*model.Function, []string) {
	fn := &model.Function{Name: name, Params: m.params(def.ChildByFieldName("parameters"))}
	f := &function{
		m:       m,
		b:       frontend.NewBuilder(fn),
		consts:  map[string]string{},
		clients: map[string]client{},
		locals:  map[string]bool{},
	}
	for _, p := range fn.Params {
		f.locals[p] = true
	}
	body := def.ChildByFieldName("body")
	f.prescan(body)
	f.block(body, nil)
	return f.b.Finish(), f.callees
}

func (m *module) params(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	var r []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier":
			r = append(r, m.text(c))
		case "default_parameter", "typed_default_parameter":
			if name := c.ChildByFieldName("name"); name != nil {
				r = append(r, m.text(name))
			}
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstIdentifier(c); id != nil {
				r = append(r, m.text(id))
			}
		}
	}
	return r
}

func firstIdentifier(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "identifier" {
			return c
		}
		if id := firstIdentifier(c); id != nil {
			return id
		}
	}
	return nil
}

// prescan finds the names the function assigns. Names assigned once to a constant or a client keep that value in
// the whole function; the module values of the other assigned names are shadowed.
func (f *function) prescan(body *sitter.Node) {
	counts := map[string]int{}
	values := map[string]*sitter.Node{}
	var order []string
	globals := map[string]bool{}
	assign := func(name string, value *sitter.Node) {
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
		values[name] = value
	}
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition", "class_definition", "lambda", "decorated_definition":
			return
		case "global_statement", "nonlocal_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				globals[f.m.text(n.NamedChild(i))] = true
			}
			return
		case "assignment":
			left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
			if left != nil && left.Type() == "identifier" && right != nil && right.Type() != "assignment" {
				assign(f.m.text(left), right)
			} else if left != nil {
				for _, name := range f.m.targets(left) {
					assign(name, nil)
				}
			}
		case "augmented_assignment", "for_statement", "for_in_clause", "named_expression":
			target := n.ChildByFieldName("left")
			if target == nil {
				target = n.ChildByFieldName("name")
			}
			if target != nil {
				for _, name := range f.m.targets(target) {
					assign(name, nil)
				}
			}
		case "as_pattern_target":
			for _, name := range f.m.targets(n) {
				assign(name, nil)
			}
			return
		case "except_clause":
			if alias := exceptAlias(n); alias != nil {
				assign(f.m.text(alias), nil)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(body)

	for name := range counts {
		if !globals[name] {
			f.locals[name] = true
		}
	}
	for name, v := range f.m.consts {
		if !f.locals[name] {
			f.consts[name] = v
		}
	}
	for name, c := range f.m.clients {
		if !f.locals[name] {
			f.clients[name] = c
		}
	}
	for _, name := range order {
		if counts[name] != 1 || values[name] == nil || globals[name] {
			continue
		}
		if v, ok := f.constValue(values[name]); ok {
			f.consts[name] = v
		} else if c, ok := f.clientOf(values[name]); ok {
			f.clients[name] = c
		}
	}
}

// targets returns the names bound by an assignment target. Attribute and subscript targets bind no name.
func (m *module) targets(n *sitter.Node) []string {
	switch n.Type() {
	case "identifier":
		return []string{m.text(n)}
	case "attribute", "subscript":
		return nil
	}
	var r []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		r = append(r, m.targets(n.NamedChild(i))...)
	}
	return r
}

// base returns the variable updated by an attribute or subscript target (a in a.b[c] = v), or ""
func (m *module) base(n *sitter.Node) string {
	for n != nil {
		switch n.Type() {
		case "identifier":
			return m.text(n)
		case "attribute":
			n = n.ChildByFieldName("object")
		case "subscript":
			n = n.ChildByFieldName("value")
		default:
			return ""
		}
	}
	return ""
}

func exceptAlias(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "as":
			if next := c.NextNamedSibling(); next != nil && next.Type() == "identifier" {
				return next
			}
		case "as_pattern":
			if alias := c.ChildByFieldName("alias"); alias != nil {
				return firstIdentifier(alias)
			}
		}
	}
	return nil
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func (f *function) add(preds []int, n *sitter.Node, s *model.Statement) []int {
	s.Line = line(n)
	return []int{f.b.Add(preds, s)}
}

// block lowers the statements of the block after preds and returns the exits of the block
func (f *function) block(n *sitter.Node, preds []int) []int {
	if n == nil {
		return preds
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		preds = f.stmt(n.NamedChild(i), preds)
	}
	return preds
}

func (f *function) stmt(n *sitter.Node, preds []int) []int {
	switch n.Type() {
	case "expression_statement":
		return f.exprStmt(n, preds)
	case "return_statement":
		s := &model.Statement{Kind: model.Return}
		if v := n.NamedChild(0); v != nil {
			s.Value = f.expr(v)
		}
		f.add(preds, n, s)
		return nil
	case "if_statement":
		return f.ifStmt(n, preds)
	case "for_statement":
		return f.forStmt(n, preds)
	case "while_statement":
		head := f.add(preds, n, &model.Statement{Kind: model.Loop, Value: f.expr(n.ChildByFieldName("condition"))})
		return f.loop(head[0], nil, n.ChildByFieldName("body"), n.ChildByFieldName("alternative"))
	case "try_statement":
		return f.tryStmt(n, preds)
	case "with_statement":
		return f.withStmt(n, preds)
	case "break_statement":
		if f.b.Break(preds) {
			return nil
		}
		return preds
	case "continue_statement":
		if f.b.Continue(preds) {
			return nil
		}
		return preds
	case "raise_statement":
		return nil
	case "assert_statement":
		return f.add(preds, n, &model.Statement{Kind: model.Branch, Value: f.expr(n.NamedChild(0))})
	case "pass_statement", "comment", "global_statement", "nonlocal_statement", "import_statement",
		"import_from_statement", "future_import_statement", "function_definition", "class_definition",
		"decorated_definition", "delete_statement", "type_alias_statement":
		return preds
	default:
		return f.add(preds, n, &model.Statement{Kind: model.Unclassified, Value: model.Unknown(f.m.text(n))})
	}
}

func (f *function) exprStmt(n *sitter.Node, preds []int) []int {
	e := n.NamedChild(0)
	if e == nil {
		return preds
	}
	switch e.Type() {
	case "assignment":
		return f.assignment(e, preds)
	case "augmented_assignment":
		left := e.ChildByFieldName("left")
		target := f.m.base(left)
		if target == "" {
			return f.callStmt(e, preds)
		}
		return f.add(preds, e, &model.Statement{
			Kind:   model.Assign,
			Target: target,
			Value:  model.Op(model.Ref(target), f.expr(e.ChildByFieldName("right"))),
		})
	}
	return f.callStmt(e, preds)
}

// callStmt lowers an expression evaluated for its effects. Expressions without calls have none.
func (f *function) callStmt(n *sitter.Node, preds []int) []int {
	return f.calls(preds, n, f.expr(n))
}

// calls adds a call statement for each outermost call of the expression
func (f *function) calls(preds []int, n *sitter.Node, v *model.Expr) []int {
	v.Walk(func(e *model.Expr) bool {
		if e.Kind != model.ExprCall {
			return true
		}
		preds = f.add(preds, n, &model.Statement{Kind: model.CallStmt, Value: e})
		return false
	})
	return preds
}

// assignment lowers a = v, a = b = v and a, b = v. The first name gets the value and the others copy it; a name
// updated through an attribute or a subscript joins the value with its own.
func (f *function) assignment(n *sitter.Node, preds []int) []int {
	var lefts []*sitter.Node
	right := n
	for right != nil && right.Type() == "assignment" {
		lefts = append(lefts, right.ChildByFieldName("left"))
		right = right.ChildByFieldName("right")
	}
	if right == nil {
		// Annotation without value
		return preds
	}
	value := f.expr(right)
	first := ""
	for _, left := range lefts {
		if left == nil {
			continue
		}
		names := f.m.targets(left)
		if len(names) == 0 {
			if target := f.m.base(left); target != "" {
				preds = f.add(preds, left, &model.Statement{
					Kind:   model.Assign,
					Target: target,
					Value:  model.Op(model.Ref(target), value),
				})
				continue
			}
			preds = f.calls(preds, left, value)
			continue
		}
		for _, name := range names {
			v := value
			if first != "" {
				v = model.Ref(first)
			} else {
				first = name
			}
			preds = f.add(preds, left, &model.Statement{Kind: model.Assign, Target: name, Value: v})
		}
	}
	return preds
}

func (f *function) ifStmt(n *sitter.Node, preds []int) []int {
	cond := f.add(preds, n, &model.Statement{Kind: model.Branch, Value: f.expr(n.ChildByFieldName("condition"))})
	exits := f.block(n.ChildByFieldName("consequence"), cond)
	next := cond
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "elif_clause":
			next = f.add(next, c, &model.Statement{Kind: model.Branch,
				Value: f.expr(c.ChildByFieldName("condition"))})
			exits = append(exits, f.block(c.ChildByFieldName("consequence"), next)...)
		case "else_clause":
			exits = append(exits, f.block(c.ChildByFieldName("body"), next)...)
			next = nil
		}
	}
	return append(exits, next...)
}

func (f *function) forStmt(n *sitter.Node, preds []int) []int {
	names := f.m.targets(n.ChildByFieldName("left"))
	s := &model.Statement{Kind: model.Loop, Value: f.expr(n.ChildByFieldName("right"))}
	if len(names) > 0 {
		s.Target = names[0]
	}
	head := f.add(preds, n, s)
	return f.loop(head[0], names, n.ChildByFieldName("body"), n.ChildByFieldName("alternative"))
}

// loop lowers the body of the loop with head statement head. Extra names of the loop target copy the first one at
// the start of the body. The else clause runs when the loop ends without break.
func (f *function) loop(head int, names []string, body *sitter.Node, alternative *sitter.Node) []int {
	f.b.EnterLoop(head)
	preds := []int{head}
	for i := 1; i < len(names); i++ {
		preds = f.add(preds, body, &model.Statement{Kind: model.Assign, Target: names[i], Value: model.Ref(names[0])})
	}
	f.b.Continue(f.block(body, preds))
	breaks := f.b.ExitLoop()
	exits := []int{head}
	if alternative != nil {
		exits = f.block(alternative.ChildByFieldName("body"), exits)
	}
	return append(exits, breaks...)
}

// tryStmt lowers try statements. Any statement of the body may raise, so the handlers follow the statements
// before the body and every statement of the body.
func (f *function) tryStmt(n *sitter.Node, preds []int) []int {
	start := len(f.b.Function().Statements)
	exits := f.block(n.ChildByFieldName("body"), preds)
	raising := append([]int(nil), preds...)
	for id := start; id < len(f.b.Function().Statements); id++ {
		raising = append(raising, id)
	}
	var handled []int
	var finally *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "except_clause", "except_group_clause":
			hp := raising
			if alias := exceptAlias(c); alias != nil {
				hp = f.add(hp, c, &model.Statement{Kind: model.Assign, Target: f.m.text(alias), Value: model.Op()})
			}
			handled = append(handled, f.block(clauseBlock(c), hp)...)
		case "else_clause":
			exits = f.block(c.ChildByFieldName("body"), exits)
		case "finally_clause":
			finally = clauseBlock(c)
		}
	}
	exits = append(exits, handled...)
	if finally != nil {
		exits = f.block(finally, exits)
	}
	return exits
}

func clauseBlock(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "block" {
			return c
		}
	}
	return nil
}

func (f *function) withStmt(n *sitter.Node, preds []int) []int {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "with_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			item := clause.NamedChild(j)
			value := item.ChildByFieldName("value")
			if value == nil {
				continue
			}
			if value.Type() == "as_pattern" {
				target := value.ChildByFieldName("alias")
				expr := f.expr(value.NamedChild(0))
				names := []string(nil)
				if target != nil {
					names = f.m.targets(target)
				}
				if len(names) == 0 {
					preds = f.calls(preds, item, expr)
					continue
				}
				preds = f.add(preds, item, &model.Statement{Kind: model.Assign, Target: names[0], Value: expr})
				continue
			}
			preds = f.callStmt(value, preds)
		}
	}
	return f.block(n.ChildByFieldName("body"), preds)
}
