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

package funcutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapInPlace(t *testing.T) {
	a := []string{" s3 ", "sqs", "  sns"}
	MapInPlace(a, strings.TrimSpace)
	assert.Equal(t, []string{"s3", "sqs", "sns"}, a)

	var empty []string
	MapInPlace(empty, strings.ToUpper)
	assert.Empty(t, empty)
}

func TestContains(t *testing.T) {
	runtimes := []string{"python", "go"}
	assert.True(t, Contains(runtimes, "go"))
	assert.False(t, Contains(runtimes, "nodejs"))
	assert.False(t, Contains(nil, "go"))
	assert.True(t, Exists(runtimes, func(r string) bool { return strings.HasPrefix(r, "py") }))
}
