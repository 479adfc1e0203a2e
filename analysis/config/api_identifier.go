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

package config

import (
	"regexp"
	"strings"
)

// APIIdentifier identifies an API called from a function, e.g. the method get_object of the s3 client, or the
// function post of the requests module.
//
// Package and Method are matched against the callee of a call; the other fields are attributes of catalog
// entries.
type APIIdentifier struct {
	// Package is the module, client service or receiver path of the API (e.g. "requests", "s3", "os.environ")
	Package string `yaml:"package"`
	// Method is the name of the function or method
	Method string `yaml:"method"`
	// Tag is the sensitive-data category a source introduces (e.g. "user-pii", "secret")
	Tag string `yaml:"tag,omitempty"`
	// Category is the kind of sink (e.g. "exec", "http", "log")
	Category string `yaml:"category,omitempty"`
	// Severity is an optional severity class of the entry
	Severity string `yaml:"severity,omitempty"`
	// This will not be part of the yaml config
	computedRegexs *apiIdentifierRegex
}

type apiIdentifierRegex struct {
	packageRegex *regexp.Regexp
	methodRegex  *regexp.Regexp
}

// NewAPIIdentifier returns the identifier of the callee name. The callee name is split on its last dot: the prefix
// is the package and the suffix is the method.
func NewAPIIdentifier(callee string) APIIdentifier {
	pkg, method := SplitCallee(callee)
	return APIIdentifier{Package: pkg, Method: method}
}

// SplitCallee splits a dotted callee name into its package and its method name.
func SplitCallee(callee string) (string, string) {
	i := strings.LastIndex(callee, ".")
	if i < 0 {
		return "", callee
	}
	return callee[:i], callee[i+1:]
}

// String returns the dotted name of the identifier
func (id APIIdentifier) String() string {
	if id.Package == "" {
		return id.Method
	}
	return id.Package + "." + id.Method
}

// CompileRegexes compiles the strings in the API identifier into regexes. It compiles all identifiers into regexes
// or none. Regexes are anchored: the pattern must match the whole field.
// @ensures id.computedRegexs == nil || id.computedRegexs.(*) != nil
func CompileRegexes(id APIIdentifier) APIIdentifier {
	packageRegex, err := regexp.Compile(anchor(id.Package))
	if err != nil {
		return id
	}
	methodRegex, err := regexp.Compile(anchor(id.Method))
	if err != nil {
		return id
	}
	id.computedRegexs = &apiIdentifierRegex{
		packageRegex: packageRegex,
		methodRegex:  methodRegex,
	}
	return id
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (id *APIIdentifier) equalOnNonEmptyFields(ref APIIdentifier) bool {
	if ref.computedRegexs != nil {
		return matchField(ref.Package, ref.computedRegexs.packageRegex, id.Package) &&
			matchField(ref.Method, ref.computedRegexs.methodRegex, id.Method)
	}
	return matchField(ref.Package, nil, id.Package) && matchField(ref.Method, nil, id.Method)
}

// Matches returns true if the callee is identified by id
func (id APIIdentifier) Matches(callee string) bool {
	c := NewAPIIdentifier(callee)
	return c.equalOnNonEmptyFields(id)
}

// ExistsID is true if there is some x in a such that f(x) is true.
// O(len(a))
func ExistsID(a []APIIdentifier, f func(identifier APIIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}

// FindID returns the first identifier x in a such that f(x), and false if there is none
func FindID(a []APIIdentifier, f func(identifier APIIdentifier) bool) (APIIdentifier, bool) {
	for _, x := range a {
		if f(x) {
			return x, true
		}
	}
	return APIIdentifier{}, false
}

// matchField matches value against the pattern: empty patterns match anything, compiled patterns are used as
// regexes, and other patterns must be equal to the value.
func matchField(pattern string, r *regexp.Regexp, value string) bool {
	if pattern == "" {
		return true
	}
	if r != nil {
		return r.MatchString(value)
	}
	return pattern == value
}

func anchor(pattern string) string {
	if pattern == "" {
		return ""
	}
	return "^(?:" + pattern + ")$"
}
