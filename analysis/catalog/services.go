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

package catalog

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"gopkg.in/yaml.v3"
)

//go:embed services.yaml
var builtinServices []byte

// Resource formats of service API arguments
const (
	FormatName = "name"
	FormatURL  = "url"
	FormatARN  = "arn"
)

// ServiceAPI is a cloud API writing to a resource that can trigger functions
type ServiceAPI struct {
	config.ServiceSpec
}

// ResourceKind returns the kind of the resources the API writes to
func (s ServiceAPI) ResourceKind() model.ResourceKind {
	return model.ResourceKind(s.Kind)
}

// IsResourceArg returns true if the argument name designates the resource the API writes to
func (s ServiceAPI) IsResourceArg(name string) bool {
	return strings.EqualFold(name, s.ResourceArg)
}

// IsKeyArg returns true if the argument name designates the object key
func (s ServiceAPI) IsKeyArg(name string) bool {
	return s.KeyArg != "" && strings.EqualFold(name, s.KeyArg)
}

// PayloadArgs returns the names of the arguments flowing into the event payload, in the case of the caller's
// argument names
func (s ServiceAPI) PayloadArgs(argNames []string) []string {
	if len(s.Payload) == 0 {
		return nil
	}
	var r []string
	for _, a := range argNames {
		for _, p := range s.Payload {
			if strings.EqualFold(a, p) {
				r = append(r, a)
				break
			}
		}
	}
	if len(r) == 0 {
		// The caller passes the payload positionally: keep every argument
		return nil
	}
	return r
}

// Normalize extracts the resource name from the value of the resource argument: the last path segment of a queue
// URL, the resource part of an ARN, or the value itself.
func (s ServiceAPI) Normalize(value string) string {
	return NormalizeResource(s.ResourceFormat, value)
}

// NormalizeResource extracts the resource name of a resource identifier in the format
func NormalizeResource(format string, value string) string {
	switch format {
	case FormatURL:
		if u, err := url.Parse(value); err == nil && u.Path != "" {
			return lastSegment(u.Path, "/")
		}
		return lastSegment(value, "/")
	case FormatARN:
		if !strings.HasPrefix(value, "arn:") {
			return value
		}
		return ARNResource(value)
	default:
		return value
	}
}

// ARNResource returns the name of the resource of an ARN: arn:aws:sqs:us-east-1:123:queue is queue,
// arn:aws:dynamodb:us-east-1:123:table/orders/stream/2020 is orders, arn:aws:s3:::bucket/key is bucket.
func ARNResource(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return lastSegment(arn, ":")
	}
	resource := parts[5]
	slash := strings.Index(resource, "/")
	if i := strings.Index(resource, ":"); i >= 0 && (slash < 0 || i < slash) {
		// resource-type:resource-id, as in stateMachine:name or function:name
		resource = resource[i+1:]
		if j := strings.Index(resource, ":"); j >= 0 {
			resource = resource[:j]
		}
		return resource
	}
	segments := strings.Split(resource, "/")
	if len(segments) > 1 && isResourceType(segments[0]) {
		return segments[1]
	}
	return segments[0]
}

func isResourceType(s string) bool {
	switch s {
	case "table", "stream", "function", "stateMachine", "topic", "queue":
		return true
	}
	return false
}

func lastSegment(s string, sep string) string {
	s = strings.TrimRight(s, sep)
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

// Services is the catalog of service APIs
type Services struct {
	apis map[string]ServiceAPI
}

func serviceKey(service, method string) string {
	return strings.ToLower(service) + "." + strings.ToLower(strings.ReplaceAll(method, "_", ""))
}

// NewServices returns the built-in service catalog extended with the specs. Specs replace the built-in entries of
// the same service and method.
func NewServices(specs []config.ServiceSpec) (*Services, error) {
	var builtin []config.ServiceSpec
	if err := yaml.Unmarshal(builtinServices, &builtin); err != nil {
		return nil, fmt.Errorf("could not parse built-in service catalog: %w", err)
	}
	s := &Services{apis: make(map[string]ServiceAPI, len(builtin)+len(specs))}
	for _, spec := range append(builtin, specs...) {
		if spec.Service == "" || spec.Method == "" || spec.Kind == "" {
			return nil, fmt.Errorf("service API %s.%s: service, method and kind are required",
				spec.Service, spec.Method)
		}
		s.apis[serviceKey(spec.Service, spec.Method)] = ServiceAPI{spec}
	}
	return s, nil
}

// ServicesFromConfig returns the service catalog of the configuration
func ServicesFromConfig(cfg *config.Config) (*Services, error) {
	return NewServices(cfg.Services)
}

// Lookup returns the service API for the client service and the method. Methods match ignoring case and
// underscores.
func (s *Services) Lookup(service string, method string) (ServiceAPI, bool) {
	api, ok := s.apis[serviceKey(service, method)]
	return api, ok
}

// LookupCallee returns the service API of a dotted callee name such as s3.put_object
func (s *Services) LookupCallee(callee string) (ServiceAPI, bool) {
	service, method := config.SplitCallee(callee)
	if service == "" {
		return ServiceAPI{}, false
	}
	return s.Lookup(service, method)
}

// ActionsFor returns the IAM actions needed to write to resources of the kind, across all known APIs
func (s *Services) ActionsFor(kind model.ResourceKind) []string {
	seen := map[string]bool{}
	var r []string
	for _, api := range s.apis {
		if api.ResourceKind() != kind {
			continue
		}
		for _, a := range api.Actions {
			if !seen[a] {
				seen[a] = true
				r = append(r, a)
			}
		}
	}
	sort.Strings(r)
	return r
}
