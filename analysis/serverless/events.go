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
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"gopkg.in/yaml.v3"
)

const defaultS3Event = "s3:ObjectCreated:*"

// cfnResource is a resource of the CloudFormation template of the descriptor
type cfnResource struct {
	Type       string               `yaml:"Type"`
	Properties map[string]yaml.Node `yaml:"Properties"`
}

// nameProperties are the properties holding the physical names of the resources that trigger functions
var nameProperties = []string{"BucketName", "QueueName", "TopicName", "TableName", "Name", "StateMachineName"}

// name returns the physical name of the resource when the template sets it
func (r cfnResource) name() (string, bool) {
	for _, p := range nameProperties {
		if v, ok := r.Properties[p]; ok && v.Kind == yaml.ScalarNode && IsResolved(v.Value) {
			return v.Value, true
		}
	}
	return "", false
}

// intrinsic evaluates the CloudFormation functions designating resources: Ref and Fn::GetAtt of a resource of the
// template give its name, Fn::Join and Fn::Sub give the joined string when all the parts are known.
func (d *Descriptor) intrinsic(n *yaml.Node) (string, bool) {
	switch n.Tag {
	case "!Ref":
		return d.resourceName(n.Value)
	case "!GetAtt":
		logicalID, _, _ := strings.Cut(n.Value, ".")
		return d.resourceName(logicalID)
	case "!Sub":
		if n.Kind == yaml.ScalarNode && IsResolved(n.Value) {
			return n.Value, true
		}
		return "", false
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", false
	}
	arg := n.Content[1]
	switch n.Content[0].Value {
	case "Ref":
		return d.resourceName(arg.Value)
	case "Fn::GetAtt":
		if parts := scalars(arg); len(parts) > 0 {
			logicalID, _, _ := strings.Cut(parts[0], ".")
			return d.resourceName(logicalID)
		}
	case "Fn::Join":
		if arg.Kind != yaml.SequenceNode || len(arg.Content) != 2 || arg.Content[1].Kind != yaml.SequenceNode {
			return "", false
		}
		var parts []string
		for _, p := range arg.Content[1].Content {
			if p.Kind == yaml.ScalarNode && p.Tag != "!Ref" {
				parts = append(parts, p.Value)
				continue
			}
			v, ok := d.intrinsic(p)
			if !ok {
				return "", false
			}
			parts = append(parts, v)
		}
		return strings.Join(parts, arg.Content[0].Value), true
	}
	return "", false
}

func (d *Descriptor) resourceName(logicalID string) (string, bool) {
	if r, ok := d.resources[logicalID]; ok {
		return r.name()
	}
	return "", false
}

// value returns the string designated by a scalar or an intrinsic function
func (d *Descriptor) value(n *yaml.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	if n.Kind == yaml.ScalarNode && n.Tag != "!Ref" && n.Tag != "!GetAtt" {
		return n.Value, n.Value != ""
	}
	return d.intrinsic(n)
}

// eventKey returns the type of an event entry: the key of its single-entry mapping
func eventKey(n *yaml.Node) string {
	if n.Kind == yaml.MappingNode && len(n.Content) >= 2 {
		return n.Content[0].Value
	}
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return "event"
}

// event returns the input binding of an event entry of a function or state machine
func (d *Descriptor) event(id string, n *yaml.Node) (model.Binding, bool) {
	if n.Kind != yaml.MappingNode || len(n.Content) < 2 {
		d.warnf("event %s: expected a mapping", id)
		return model.Binding{}, false
	}
	key, v := n.Content[0].Value, n.Content[1]
	b := model.Binding{ID: id, Direction: model.Input}
	switch key {
	case "s3":
		b.Kind = model.KindS3
		b.Event = defaultS3Event
		if v.Kind == yaml.ScalarNode {
			b.Resource = v.Value
			break
		}
		b.Resource, _ = d.value(child(v, "bucket"))
		if e := child(v, "event"); e != nil && e.Value != "" {
			b.Event = e.Value
		}
		if rules := child(v, "rules"); rules != nil {
			b.Filter = s3Filter(rules)
		}
	case "sqs":
		b.Kind = model.KindSQS
		b.Resource = d.arnOrName(v, "arn", "queueName")
	case "sns":
		b.Kind = model.KindSNS
		b.Resource = d.arnOrName(v, "arn", "topicName")
	case "stream":
		b.Kind = d.streamKind(v)
		b.Resource = d.arnOrName(v, "arn", "")
	case "http", "httpApi":
		b.Kind = model.KindHTTP
		b.Event, b.Resource = httpRoute(v)
	case "schedule":
		b.Kind = model.KindSchedule
		if v.Kind == yaml.ScalarNode {
			b.Resource = v.Value
		} else if rate := child(v, "rate"); rate != nil {
			b.Resource = strings.Join(scalars(rate), ",")
		}
	default:
		d.warnf("event %s: unsupported event type %s", id, key)
		return model.Binding{}, false
	}
	if !IsResolved(b.Resource) || b.Resource == "" {
		b.Resource = ""
		b.Imprecise = true
	}
	return b, true
}

// arnOrName returns the resource name of an event given as an ARN, as a mapping with an ARN field, or as a mapping
// with a name field
func (d *Descriptor) arnOrName(v *yaml.Node, arnField string, nameField string) string {
	if v.Kind == yaml.ScalarNode {
		return catalog.NormalizeResource(catalog.FormatARN, v.Value)
	}
	if arn := child(v, arnField); arn != nil {
		if arn.Kind == yaml.ScalarNode && arn.Tag != "!GetAtt" && arn.Tag != "!Ref" {
			return catalog.NormalizeResource(catalog.FormatARN, arn.Value)
		}
		name, _ := d.intrinsic(arn)
		return name
	}
	if nameField != "" {
		if name := child(v, nameField); name != nil {
			return name.Value
		}
	}
	if v.Kind == yaml.MappingNode {
		// A bare intrinsic function
		name, _ := d.intrinsic(v)
		return name
	}
	return ""
}

// streamKind returns the kind of the stream of a stream event: the type field, the service of a literal ARN or the
// type of the template resource. Streams default to DynamoDB streams.
func (d *Descriptor) streamKind(v *yaml.Node) model.ResourceKind {
	arn := v
	if v.Kind == yaml.MappingNode {
		if t := child(v, "type"); t != nil && t.Value == "kinesis" {
			return model.KindKinesis
		} else if t != nil {
			return model.KindDynamoDB
		}
		if arn = child(v, "arn"); arn == nil {
			return model.KindDynamoDB
		}
	}
	if arn.Kind == yaml.ScalarNode && arnService(arn.Value) == "kinesis" {
		return model.KindKinesis
	}
	if id, ok := getAttID(arn); ok && d.resources[id].Type == "AWS::Kinesis::Stream" {
		return model.KindKinesis
	}
	return model.KindDynamoDB
}

func getAttID(n *yaml.Node) (string, bool) {
	if n.Tag == "!GetAtt" {
		id, _, _ := strings.Cut(n.Value, ".")
		return id, true
	}
	if n.Kind == yaml.MappingNode && len(n.Content) == 2 && n.Content[0].Value == "Fn::GetAtt" {
		if parts := scalars(n.Content[1]); len(parts) > 0 {
			id, _, _ := strings.Cut(parts[0], ".")
			return id, true
		}
	}
	return "", false
}

func arnService(arn string) string {
	parts := strings.SplitN(arn, ":", 4)
	if len(parts) < 3 || parts[0] != "arn" {
		return ""
	}
	return parts[2]
}

// httpRoute returns the method and the path of an http or httpApi event: "GET users/{id}" or a mapping with method
// and path fields. The path has no leading slash; the catch-all route "*" has the method "*".
func httpRoute(v *yaml.Node) (string, string) {
	var method, p string
	if v.Kind == yaml.ScalarNode {
		if v.Value == "*" {
			return "*", "*"
		}
		method, p, _ = strings.Cut(strings.TrimSpace(v.Value), " ")
	} else {
		if m := child(v, "method"); m != nil {
			method = m.Value
		}
		if x := child(v, "path"); x != nil {
			p = x.Value
		}
	}
	if method == "" {
		method = "*"
	}
	return strings.ToUpper(method), strings.TrimPrefix(strings.TrimSpace(p), "/")
}

// s3Filter returns the filter of the rules of an s3 event: a list of single prefix or suffix rules
func s3Filter(rules *yaml.Node) *model.EventFilter {
	f := &model.EventFilter{}
	for _, rule := range rules.Content {
		if p := child(rule, "prefix"); p != nil {
			f.Prefix = p.Value
		}
		if s := child(rule, "suffix"); s != nil {
			f.Suffix = s.Value
		}
	}
	if *f == (model.EventFilter{}) {
		return nil
	}
	return f
}
