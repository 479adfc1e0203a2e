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

// ResourceKind is the kind of cloud resource a binding refers to
type ResourceKind string

const (
	KindS3       ResourceKind = "s3"
	KindSQS      ResourceKind = "sqs"
	KindSNS      ResourceKind = "sns"
	KindDynamoDB ResourceKind = "dynamodb"
	KindKinesis  ResourceKind = "kinesis"
	KindHTTP     ResourceKind = "http"
	KindSchedule ResourceKind = "schedule"
	// KindStates is a transition between two tasks of a state machine
	KindStates ResourceKind = "states"
	// KindLambda is a direct asynchronous invocation of a function
	KindLambda ResourceKind = "lambda"
)

// Direction is the direction of a binding, from the point of view of the function declaring it
type Direction int

const (
	// Input bindings are triggers: the function is invoked with the resource's event
	Input Direction = iota
	// Output bindings are writes to a resource
	Output
)

var directionNames = []string{"input", "output"}

func (d Direction) String() string {
	return enumName(directionNames, int(d))
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(b []byte) error {
	i, err := parseEnum(directionNames, "direction", string(b))
	*d = Direction(i)
	return err
}

// EventFilter is a set of rules an object key must satisfy for the event to trigger the function
type EventFilter struct {
	Prefix string `yaml:"prefix,omitempty"`
	Suffix string `yaml:"suffix,omitempty"`
}

// Admits returns true if an object with the key would pass the filter
func (f *EventFilter) Admits(key string) bool {
	if f == nil {
		return true
	}
	return strings.HasPrefix(key, f.Prefix) && strings.HasSuffix(key, f.Suffix)
}

// Binding is a declared association between a function and a cloud resource, either as a trigger of the function
// (Input) or as a resource the function writes to (Output).
type Binding struct {
	// ID identifies the binding in its function
	ID string `yaml:"id"`

	// Kind is the kind of resource
	Kind ResourceKind `yaml:"kind"`

	// Resource is the resource identifier (bucket name, queue name, ...). It is empty when it could not be
	// determined statically.
	Resource string `yaml:"resource,omitempty"`

	Direction Direction `yaml:"direction"`

	// Event is the event of the binding (e.g. s3:ObjectCreated:*). It may contain '*' wildcards.
	Event string `yaml:"event,omitempty"`

	// Param is the parameter receiving the event payload of an input binding. It defaults to the first parameter.
	Param string `yaml:"param,omitempty"`

	// Imprecise is true when the resource identifier is computed at runtime
	Imprecise bool `yaml:"imprecise,omitempty"`

	// Filter contains the rules on object keys of an input binding
	Filter *EventFilter `yaml:"filter,omitempty"`

	// ObjectKey is the literal object key written by an output binding, when known
	ObjectKey string `yaml:"object-key,omitempty"`

	// Actions are the IAM actions needed to write to the resource of an output binding
	Actions []string `yaml:"actions,omitempty"`

	// Payload lists the names of the call arguments whose data reaches the event payload of an output binding.
	// If empty, all the arguments do.
	Payload []string `yaml:"payload,omitempty"`

	// FromReturn is true when the payload of an output binding is the return value of the function
	FromReturn bool `yaml:"from-return,omitempty"`
}

// Resolved returns true when the resource identifier has been determined statically
func (b *Binding) Resolved() bool {
	return !b.Imprecise && b.Resource != ""
}

// InPayload returns true if the data of the argument with the given name reaches the payload of the binding
func (b *Binding) InPayload(argName string) bool {
	if len(b.Payload) == 0 {
		return true
	}
	for _, p := range b.Payload {
		if p == argName {
			return true
		}
	}
	return false
}

func (b *Binding) String() string {
	resource := b.Resource
	if !b.Resolved() {
		resource = "?"
	}
	return fmt.Sprintf("%s:%s:%s", b.Direction, b.Kind, resource)
}

// Policy is the set of IAM statements granted to a function
type Policy struct {
	Statements []PolicyStatement `yaml:"statements"`
}

// PolicyStatement is one IAM statement
type PolicyStatement struct {
	// Effect is Allow or Deny
	Effect    string   `yaml:"effect"`
	Actions   []string `yaml:"actions"`
	Resources []string `yaml:"resources"`
}
