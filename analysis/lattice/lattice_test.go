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

package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	src   = NewSource("user-input", "f", 1)
	src2  = NewSource("secret", "f", 4)
	unres = NewUnresolved("foo.bar", "g", 2)
	gap   = NewParseGap("g", 3)
)

func TestLevels(t *testing.T) {
	assert.Equal(t, Untainted, Clean().Level())
	assert.Equal(t, Untainted, ParamMarker("x").Level())
	assert.Equal(t, Tainted, Of(src).Level())
	assert.Equal(t, Tainted, Of(NewTrigger("user-input", "h")).Level())
	assert.Equal(t, Unknown, Of(unres).Level())
	assert.Equal(t, Unknown, Of(gap).Level())
	assert.Equal(t, Unknown, Of(src, unres).Level())
}

func TestJoinIsLeastUpperBound(t *testing.T) {
	labels := []Label{Clean(), Of(src), Of(src2), Of(unres), ParamMarker("a"), Of(src, gap), ParamMarker("b")}
	for _, a := range labels {
		for _, b := range labels {
			j := a.Join(b)
			assert.True(t, a.Leq(j), "%s <= %s", a, j)
			assert.True(t, b.Leq(j), "%s <= %s", b, j)
			assert.True(t, j.Equal(b.Join(a)), "commutative")
			assert.True(t, j.Equal(j.Join(a)), "idempotent")
			for _, c := range labels {
				assert.True(t, a.Join(b).Join(c).Equal(a.Join(b.Join(c))), "associative")
			}
		}
	}
}

func TestJoinKeepsEveryTag(t *testing.T) {
	l := Join(Of(src), Of(src2), Of(src))
	assert.Equal(t, []string{"secret", "user-input"}, l.Tags())
	assert.Len(t, l.Origins(), 2)
}

func TestLeq(t *testing.T) {
	assert.True(t, Clean().Leq(Of(src)))
	assert.False(t, Of(src).Leq(Clean()))
	assert.False(t, Of(src).Leq(Of(src2)))
	assert.True(t, ParamMarker("a").Leq(ParamMarker("a").Join(Of(src))))
	assert.False(t, ParamMarker("a").Leq(ParamMarker("b")))
}

func TestSubstitute(t *testing.T) {
	summary := Join(ParamMarker("x"), ParamMarker("y"), Of(src2))
	actual := map[string]Label{"x": Of(src), "y": Clean()}
	r := summary.Substitute(func(p string) Label { return actual[p] })
	assert.Empty(t, r.Params())
	assert.True(t, r.Equal(Of(src, src2)))
}

func TestHops(t *testing.T) {
	write := Hop{Function: "a", Statement: 2, Binding: "out"}
	entry := Hop{Function: "b", Statement: EntryStatement, Binding: "in", Imprecise: true}
	l := Of(src).WithHop(write).WithHop(entry)
	o := l.Origins()[0]
	assert.Equal(t, 1, o.Depth())
	assert.True(t, o.Imprecise())
	assert.True(t, o.Crossed(write, entry))
	assert.False(t, o.Crossed(entry, write))
	assert.False(t, l.Equal(Of(src)), "trails distinguish origins")
	assert.Empty(t, src.Trail, "WithHop does not modify its receiver")
	assert.Equal(t, "source:user-input@f:1 -> a:2(out) -> b:entry(in)?", o.String())
}

func TestFilter(t *testing.T) {
	l := Join(Of(src, unres), ParamMarker("p"))
	kept := l.Filter(func(o Origin) bool { return !o.Unresolved() })
	assert.True(t, kept.Equal(Join(Of(src), ParamMarker("p"))))
}

func TestVariableState(t *testing.T) {
	s := VariableState{}
	s.Set("x", Of(src))
	s.Set("y", Clean())
	assert.Equal(t, []string{"x"}, s.Variables())
	assert.Equal(t, Untainted, s.Get("missing").Level())

	other := VariableState{}
	other.Set("y", Of(unres))
	j := s.Join(other)
	assert.True(t, s.Leq(j))
	assert.True(t, other.Leq(j))
	assert.False(t, j.Leq(s))
	assert.True(t, j.Equal(other.Join(s)))
	assert.Len(t, s, 1, "join does not modify its receiver")

	c := j.Clone()
	c.Set("z", Of(gap))
	assert.False(t, c.Equal(j))
	assert.Equal(t, "{x: tainted{source:user-input@f:1}}", s.String())
}
