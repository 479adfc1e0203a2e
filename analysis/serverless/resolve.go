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

package serverless

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxResolveDepth caps the number of nested or chained references followed to resolve one value
const maxResolveDepth = 10

// IsResolved returns true if the value contains no variable reference
func IsResolved(value string) bool {
	return !strings.Contains(value, "${")
}

// A Resolver resolves the variables of a deployment descriptor. References to the document itself
// (${self:path.to.value}) are replaced by the value they designate; other sources such as ${opt:stage},
// ${env:NAME} or ${file(...)} are only known at deployment time and are kept as they are, unless the reference has
// a fallback value (${opt:stage, 'dev'}).
type Resolver struct {
	root *yaml.Node
}

// NewResolver returns a resolver for the document node
func NewResolver(doc *yaml.Node) *Resolver {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	return &Resolver{root: root}
}

// Resolve returns the value with its references replaced. Unresolvable references are left in the result, so
// IsResolved tells whether the value is fully known.
func (r *Resolver) Resolve(value string) string {
	return r.resolve(value, maxResolveDepth)
}

func (r *Resolver) resolve(value string, depth int) string {
	if depth <= 0 || IsResolved(value) {
		return value
	}
	var b strings.Builder
	rest := value
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := closing(rest, start)
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(r.variable(rest[start+2:end], depth))
		rest = rest[end+1:]
	}
	return b.String()
}

// variable returns the value of the reference with the body, or the reference itself if it cannot be resolved
func (r *Resolver) variable(body string, depth int) string {
	body = r.resolve(body, depth-1)
	expr, fallback, hasFallback := splitFallback(body)
	if v, ok := r.lookup(expr, depth); ok {
		return v
	}
	if hasFallback {
		return r.resolve(unquote(fallback), depth-1)
	}
	return "${" + body + "}"
}

func (r *Resolver) lookup(expr string, depth int) (string, bool) {
	p, ok := strings.CutPrefix(expr, "self:")
	if !ok {
		return "", false
	}
	n := r.find(p)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return r.resolve(n.Value, depth-1), true
}

// find returns the node at the dotted path of the document, or nil
func (r *Resolver) find(p string) *yaml.Node {
	n := r.root
	for _, key := range strings.Split(strings.TrimSpace(p), ".") {
		if n = child(n, key); n == nil {
			return nil
		}
	}
	return n
}

// reference returns the node designated by the value when the value is a single ${self:...} reference
func (r *Resolver) reference(value string) *yaml.Node {
	if !strings.HasPrefix(value, "${self:") || closing(value, 0) != len(value)-1 {
		return nil
	}
	return r.find(value[len("${self:") : len(value)-1])
}

// ResolveDocument resolves every scalar of the document in place. A scalar that is a single reference to a
// mapping or a sequence is replaced by a copy of it.
func (r *Resolver) ResolveDocument() {
	r.visit(r.root, maxResolveDepth)
}

func (r *Resolver) visit(n *yaml.Node, depth int) {
	switch n.Kind {
	case yaml.ScalarNode:
		if target := r.reference(n.Value); target != nil && target.Kind != yaml.ScalarNode && depth > 0 {
			*n = *deepCopy(target)
			r.visit(n, depth-1)
			return
		}
		n.Value = r.Resolve(n.Value)
	case yaml.MappingNode, yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range n.Content {
			r.visit(c, depth)
		}
	}
}

func child(n *yaml.Node, key string) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == key {
				return n.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(n.Content) {
			return n.Content[i]
		}
	}
	return nil
}

func deepCopy(n *yaml.Node) *yaml.Node {
	c := *n
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, x := range n.Content {
		c.Content[i] = deepCopy(x)
	}
	return &c
}

// closing returns the index of the brace closing the reference that starts at start, or -1
func closing(s string, start int) int {
	level := 0
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return i
			}
		}
	}
	return -1
}

// splitFallback splits the body of a reference at its first comma outside quotes and nested references
func splitFallback(body string) (string, string, bool) {
	level := 0
	var quote byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			level++
		case c == '}':
			level--
		case c == ',' && level == 0:
			return strings.TrimSpace(body[:i]), strings.TrimSpace(body[i+1:]), true
		}
	}
	return strings.TrimSpace(body), "", false
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
