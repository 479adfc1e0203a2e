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
	"github.com/awslabs/cloudflow-go/analysis/diagnostic"
)

// CFG is the validated control-flow graph of a function. Statements are indexed by their position in the
// function's statement list; the entry is at index 0.
type CFG struct {
	Function *Function

	index map[int]int
	succs [][]int
	preds [][]int
}

// NewCFG validates the function and builds its control-flow graph. It returns a MalformedFunctionModel diagnostic
// if the function is structurally invalid: no identifier, duplicate statement identifiers, dangling successor
// edges, assignments without targets, calls without callees, input bindings on undeclared parameters or calls
// writing to undeclared output bindings.
func NewCFG(f *Function) (*CFG, *diagnostic.Diagnostic) {
	malformed := func(stmt int, format string, args ...any) *diagnostic.Diagnostic {
		return diagnostic.New(diagnostic.MalformedFunctionModel, f.ID, stmt, format, args...)
	}
	if f.ID == "" {
		return nil, malformed(diagnostic.NoStatement, "function %q has no identifier", f.Name)
	}
	seenBinding := map[string]bool{}
	for _, b := range f.Bindings {
		if b.ID == "" {
			return nil, malformed(diagnostic.NoStatement, "binding with no identifier")
		}
		if seenBinding[b.ID] {
			return nil, malformed(diagnostic.NoStatement, "duplicate binding %q", b.ID)
		}
		seenBinding[b.ID] = true
		if b.Kind == "" {
			return nil, malformed(diagnostic.NoStatement, "binding %q has no resource kind", b.ID)
		}
		if b.Direction == Input && b.Param != "" && !f.HasParam(b.Param) {
			return nil, malformed(diagnostic.NoStatement, "input binding %q receives undeclared parameter %q",
				b.ID, b.Param)
		}
	}

	cfg := &CFG{
		Function: f,
		index:    make(map[int]int, len(f.Statements)),
		succs:    make([][]int, len(f.Statements)),
		preds:    make([][]int, len(f.Statements)),
	}
	for i, s := range f.Statements {
		if s == nil {
			return nil, malformed(diagnostic.NoStatement, "nil statement at position %d", i)
		}
		if _, dup := cfg.index[s.ID]; dup {
			return nil, malformed(s.ID, "duplicate statement identifier")
		}
		cfg.index[s.ID] = i
	}
	for i, s := range f.Statements {
		if err := checkStatement(f, s); err != nil {
			return nil, err
		}
		for _, succ := range s.Succs {
			j, ok := cfg.index[succ]
			if !ok {
				return nil, malformed(s.ID, "successor %d does not exist", succ)
			}
			cfg.succs[i] = append(cfg.succs[i], j)
			cfg.preds[j] = append(cfg.preds[j], i)
		}
	}
	return cfg, nil
}

func checkStatement(f *Function, s *Statement) *diagnostic.Diagnostic {
	malformed := func(format string, args ...any) *diagnostic.Diagnostic {
		return diagnostic.New(diagnostic.MalformedFunctionModel, f.ID, s.ID, format, args...)
	}
	switch s.Kind {
	case Assign:
		if s.Target == "" {
			return malformed("assignment has no target")
		}
		if s.Value == nil {
			return malformed("assignment has no value")
		}
	case CallStmt:
		if s.Value == nil || s.Value.Kind != ExprCall {
			return malformed("call statement has no call")
		}
	case Branch, Loop:
		if s.Value == nil {
			return malformed("%s has no expression", s.Kind)
		}
	}
	var bad *diagnostic.Diagnostic
	s.Value.Walk(func(e *Expr) bool {
		if bad != nil {
			return false
		}
		if e.Kind == ExprCall {
			switch {
			case e.Call == nil || e.Call.Callee == "":
				bad = malformed("call has no callee")
			case e.Call.Output != "":
				if b := f.Binding(e.Call.Output); b == nil || b.Direction != Output {
					bad = malformed("call writes to undeclared output binding %q", e.Call.Output)
				}
			}
		}
		return bad == nil
	})
	return bad
}

// Len returns the number of statements
func (c *CFG) Len() int { return len(c.Function.Statements) }

// Statement returns the statement at index i
func (c *CFG) Statement(i int) *Statement { return c.Function.Statements[i] }

// Index returns the index of the statement with the identifier id
func (c *CFG) Index(id int) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// Succs returns the indexes of the successors of the statement at index i
func (c *CFG) Succs(i int) []int { return c.succs[i] }

// Preds returns the indexes of the predecessors of the statement at index i
func (c *CFG) Preds(i int) []int { return c.preds[i] }
