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

package diagnostic

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticIsSentinel(t *testing.T) {
	d := New(CatalogMiss, "fn", 3, "no entry for %s", "foo.bar")
	assert.True(t, errors.Is(d, ErrCatalogMiss))
	assert.False(t, errors.Is(d, ErrParseGap))
	wrapped := fmt.Errorf("while analyzing: %w", d)
	assert.True(t, errors.Is(wrapped, ErrCatalogMiss))

	var target *Diagnostic
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "fn", target.Function)
}

func TestDiagnosticError(t *testing.T) {
	assert.Equal(t, "ParseGap in fn at statement 2: unclassified statement",
		New(ParseGap, "fn", 2, "unclassified statement").Error())
	assert.Equal(t, "NonConvergence: cap of 3 passes reached",
		New(NonConvergence, "", NoStatement, "cap of %d passes reached", 3).Error())
	assert.Equal(t, "MalformedFunctionModel in fn: dangling edge",
		New(MalformedFunctionModel, "fn", NoStatement, "dangling edge").Error())
}

func TestOnlyMalformedIsFatal(t *testing.T) {
	for _, k := range []Kind{ParseGap, UnresolvedBinding, CatalogMiss, NonConvergence} {
		assert.False(t, New(k, "f", NoStatement, "").Fatal(), k.String())
	}
	assert.True(t, New(MalformedFunctionModel, "f", NoStatement, "").Fatal())
}

func TestList(t *testing.T) {
	var l List
	assert.NoError(t, l.Err())
	l.Addf(ParseGap, "b", 1, "x")
	l.Addf(CatalogMiss, "a", 2, "y")
	l.Addf(CatalogMiss, "a", 1, "z")
	assert.Equal(t, 2, l.Count(CatalogMiss))
	assert.Len(t, l.Filter(ParseGap), 1)

	l.Sort()
	assert.Equal(t, "a", l[0].Function)
	assert.Equal(t, 1, l[0].Statement)
	assert.Equal(t, "b", l[2].Function)

	err := l.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParseGap))
	assert.True(t, errors.Is(err, ErrCatalogMiss))
	assert.False(t, errors.Is(err, ErrNonConvergence))
}
