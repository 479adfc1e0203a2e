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

package triggergraph

import (
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/model"
)

// authorized returns true if the policy of the producer allows one of the actions of the output binding on its
// resource. Producers without a policy are authorized, as are bindings whose actions are not known and state
// machine transitions, which the platform performs. A matching Deny statement overrides the Allow statements.
func (b *Builder) authorized(producer *model.Function, out *model.Binding) bool {
	if producer.IAM == nil || out.FromReturn {
		return true
	}
	actions := out.Actions
	if len(actions) == 0 && b.services != nil {
		actions = b.services.ActionsFor(out.Kind)
	}
	if len(actions) == 0 {
		return true
	}
	allowed := false
	for _, stmt := range producer.IAM.Statements {
		if !grants(stmt, actions, out) {
			continue
		}
		if strings.EqualFold(stmt.Effect, "deny") {
			return false
		}
		if strings.EqualFold(stmt.Effect, "allow") {
			allowed = true
		}
	}
	return allowed
}

func grants(stmt model.PolicyStatement, actions []string, out *model.Binding) bool {
	actionOK := false
	for _, pattern := range stmt.Actions {
		for _, a := range actions {
			if actionMatches(pattern, a) {
				actionOK = true
			}
		}
	}
	if !actionOK {
		return false
	}
	for _, pattern := range stmt.Resources {
		if resourceMatches(pattern, out) {
			return true
		}
	}
	return false
}

// actionMatches matches an IAM action pattern such as s3:Put* against an action, ignoring case
func actionMatches(pattern, action string) bool {
	return pattern == "*" || strings.EqualFold(pattern, action) || patternMatches(pattern, action)
}

// resourceMatches matches a policy resource against the resource of a binding. Policies refer to resources by ARN,
// which match when their resource name is the binding's; unresolved resources match any policy resource.
func resourceMatches(pattern string, out *model.Binding) bool {
	if pattern == "*" || !out.Resolved() || pattern == out.Resource {
		return true
	}
	name := pattern
	if strings.HasPrefix(pattern, "arn:") {
		name = catalog.ARNResource(pattern)
	}
	if name == "*" || name == out.Resource {
		return true
	}
	if i := strings.Index(name, "/"); i >= 0 && name[:i] == out.Resource {
		return true
	}
	return patternMatches(name, out.Resource)
}
