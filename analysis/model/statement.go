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
	"fmt"
	"strings"
)

// ExprKind is the tag of an expression node
type ExprKind int

const (
	// ExprLiteral is a constant. Value holds its text.
	ExprLiteral ExprKind = iota
	// ExprVar is a reference to a variable. Value holds its name.
	ExprVar
	// ExprCall is a call. Call holds the callee and the arguments.
	ExprCall
	// ExprOp combines its operands: binary operators, attribute and subscript accesses, containers, formatting.
	ExprOp
	// ExprUnknown is an expression the parser could not classify. Value holds its source text.
	ExprUnknown
)

var exprKindNames = []string{"literal", "var", "call", "op", "unknown"}

func (k ExprKind) String() string { return enumName(exprKindNames, int(k)) }

// MarshalText implements encoding.TextMarshaler
func (k ExprKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ExprKind) UnmarshalText(b []byte) error {
	i, err := parseEnum(exprKindNames, "expression kind", string(b))
	*k = ExprKind(i)
	return err
}

// Expr is an expression node
type Expr struct {
	Kind     ExprKind `yaml:"kind"`
	Value    string   `yaml:"value,omitempty"`
	Call     *Call    `yaml:"call,omitempty"`
	Operands []*Expr  `yaml:"operands,omitempty"`
}

// Arg is an argument of a call. Name is empty for positional arguments.
type Arg struct {
	Name  string `yaml:"name,omitempty"`
	Value *Expr  `yaml:"value"`
}

// Call is a call expression
type Call struct {
	// Callee is the dotted identifier of the called API (e.g. s3.put_object), or the name of a user function of
	// the same deployment unit
	Callee string `yaml:"callee"`

	// Receiver is the object of a method call, if any
	Receiver *Expr `yaml:"receiver,omitempty"`

	Args []Arg `yaml:"args,omitempty"`

	// Output is the identifier of the output binding the call writes to, if any
	Output string `yaml:"output,omitempty"`
}

// Lit returns a literal expression
func Lit(value string) *Expr { return &Expr{Kind: ExprLiteral, Value: value} }

// Ref returns a variable reference
func Ref(name string) *Expr { return &Expr{Kind: ExprVar, Value: name} }

// Op returns an expression combining the operands
func Op(operands ...*Expr) *Expr { return &Expr{Kind: ExprOp, Operands: operands} }

// Unknown returns an unclassified expression with its source text
func Unknown(text string) *Expr { return &Expr{Kind: ExprUnknown, Value: text} }

// CallOf returns a call expression with positional arguments
func CallOf(callee string, args ...*Expr) *Expr {
	c := &Call{Callee: callee}
	for _, a := range args {
		c.Args = append(c.Args, Arg{Value: a})
	}
	return &Expr{Kind: ExprCall, Call: c}
}

// WriteCall returns a call expression writing to the output binding
func WriteCall(callee string, output string, args ...Arg) *Expr {
	return &Expr{Kind: ExprCall, Call: &Call{Callee: callee, Args: args, Output: output}}
}

// Walk calls f on e and all its sub-expressions, in pre-order. Walk stops descending in a node when f returns false.
func (e *Expr) Walk(f func(*Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	if e.Call != nil {
		e.Call.Receiver.Walk(f)
		for _, a := range e.Call.Args {
			a.Value.Walk(f)
		}
	}
	for _, o := range e.Operands {
		o.Walk(f)
	}
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprLiteral:
		return fmt.Sprintf("%q", e.Value)
	case ExprVar:
		return e.Value
	case ExprCall:
		if e.Call == nil {
			return "<call>"
		}
		return e.Call.String()
	case ExprOp:
		ops := make([]string, len(e.Operands))
		for i, o := range e.Operands {
			ops[i] = o.String()
		}
		return "op(" + strings.Join(ops, ", ") + ")"
	default:
		return "?(" + e.Value + ")"
	}
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		if a.Name != "" {
			args[i] = a.Name + "=" + a.Value.String()
		} else {
			args[i] = a.Value.String()
		}
	}
	prefix := ""
	if c.Receiver != nil {
		prefix = c.Receiver.String() + "->"
	}
	return prefix + c.Callee + "(" + strings.Join(args, ", ") + ")"
}

// StmtKind is the tag of a statement node
type StmtKind int

const (
	// Assign is Target = Value
	Assign StmtKind = iota
	// CallStmt evaluates the call in Value for its effects
	CallStmt
	// Branch evaluates the condition in Value; its successors are the branches
	Branch
	// Loop assigns each element of Value to Target (if any); its successors are the body and the exit
	Loop
	// Return returns Value (which may be nil)
	Return
	// Nop is a join or exit point
	Nop
	// Unclassified is a statement the parser could not classify. Target, if set, receives Unknown taint.
	Unclassified
)

var stmtKindNames = []string{"assign", "call", "branch", "loop", "return", "nop", "unclassified"}

func (k StmtKind) String() string { return enumName(stmtKindNames, int(k)) }

// MarshalText implements encoding.TextMarshaler
func (k StmtKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (k *StmtKind) UnmarshalText(b []byte) error {
	i, err := parseEnum(stmtKindNames, "statement kind", string(b))
	*k = StmtKind(i)
	return err
}

// Statement is a node of the control-flow graph of a function
type Statement struct {
	// ID identifies the statement in its function
	ID   int      `yaml:"id"`
	Kind StmtKind `yaml:"kind"`
	// Target is the variable assigned by Assign, Loop and Unclassified statements
	Target string `yaml:"target,omitempty"`
	Value  *Expr  `yaml:"value,omitempty"`
	// Succs are the identifiers of the successors in the control-flow graph
	Succs []int `yaml:"succs,omitempty"`
	// Line is the line of the statement in the source file, 0 if unknown
	Line int `yaml:"line,omitempty"`
}

func (s *Statement) String() string {
	switch s.Kind {
	case Assign:
		return fmt.Sprintf("%d: %s = %s", s.ID, s.Target, s.Value)
	case Loop:
		return fmt.Sprintf("%d: for %s in %s", s.ID, s.Target, s.Value)
	case Branch:
		return fmt.Sprintf("%d: if %s", s.ID, s.Value)
	case Return:
		if s.Value == nil {
			return fmt.Sprintf("%d: return", s.ID)
		}
		return fmt.Sprintf("%d: return %s", s.ID, s.Value)
	case CallStmt:
		return fmt.Sprintf("%d: %s", s.ID, s.Value)
	default:
		return fmt.Sprintf("%d: %s", s.ID, s.Kind)
	}
}

// Calls returns the calls of the statement's expression, innermost first
func (s *Statement) Calls() []*Call {
	var calls []*Call
	var visit func(e *Expr)
	visit = func(e *Expr) {
		if e == nil {
			return
		}
		if e.Call != nil {
			visit(e.Call.Receiver)
			for _, a := range e.Call.Args {
				visit(a.Value)
			}
			calls = append(calls, e.Call)
		}
		for _, o := range e.Operands {
			visit(o)
		}
	}
	visit(s.Value)
	return calls
}
