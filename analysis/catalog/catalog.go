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

// Package catalog implements the sensitivity catalog, which classifies the APIs called by functions, and the
// service catalog, which describes the cloud APIs writing to resources that trigger functions.
//
// Both catalogs are immutable once built and their lookups are pure, so they can be shared by concurrent
// analyses.
package catalog

import (
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/model"
)

// Role is the role of an API in taint propagation
type Role int

const (
	// Unknown is the role of APIs that are not in the catalog
	Unknown Role = iota
	// Neutral APIs propagate the taint of their arguments to their result
	Neutral
	// Source APIs introduce sensitive data
	Source
	// Sink APIs use or exfiltrate data unsafely
	Sink
	// Sanitizer APIs remove taint
	Sanitizer
)

func (r Role) String() string {
	switch r {
	case Neutral:
		return "neutral"
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Sanitizer:
		return "sanitizer"
	default:
		return "unknown"
	}
}

// Entry is the result of a catalog lookup
type Entry struct {
	Role Role
	// Tag is the sensitive-data category of a source
	Tag string
	// Category is the kind of a sink
	Category string
	// Severity is the optional severity class of the entry
	Severity string
}

// A Catalog classifies API identifiers
type Catalog struct {
	spec     config.CatalogSpec
	triggers map[model.ResourceKind]config.TriggerSourceSpec
}

// New returns the catalog of the catalog spec. The identifiers of the catalog spec must have been compiled
// (config.Load does it).
func New(spec config.CatalogSpec) *Catalog {
	c := &Catalog{
		spec:     spec,
		triggers: make(map[model.ResourceKind]config.TriggerSourceSpec, len(spec.TriggerSources)),
	}
	for _, t := range spec.TriggerSources {
		tag := t.Tag
		if tag == "" {
			tag = t.Kind
		}
		t.Tag = tag
		c.triggers[model.ResourceKind(t.Kind)] = t
	}
	return c
}

// FromConfig returns the catalog of the configuration
func FromConfig(cfg *config.Config) *Catalog {
	return New(cfg.Catalog)
}

// Lookup returns the entry of the callee. When several lists match, the role is the first of Sanitizer, Source,
// Sink and Neutral. Callees that match no list have the role Unknown.
func (c *Catalog) Lookup(callee string) Entry {
	id := config.NewAPIIdentifier(callee)
	lists := []struct {
		role Role
		ids  []config.APIIdentifier
	}{
		{Sanitizer, c.spec.Sanitizers},
		{Source, c.spec.Sources},
		{Sink, c.spec.Sinks},
		{Neutral, c.spec.Neutral},
	}
	for _, l := range lists {
		if ref, ok := config.FindID(l.ids, func(ref config.APIIdentifier) bool { return ref.Matches(callee) }); ok {
			e := Entry{Role: l.role, Tag: ref.Tag, Category: ref.Category, Severity: ref.Severity}
			if e.Role == Source && e.Tag == "" {
				e.Tag = id.String()
			}
			if e.Role == Sink && e.Category == "" {
				e.Category = id.String()
			}
			return e
		}
	}
	return Entry{Role: Unknown}
}

// TriggerSource returns the source entry of the payload of triggers of some kind, if that payload is sensitive
func (c *Catalog) TriggerSource(kind model.ResourceKind) (Entry, bool) {
	t, ok := c.triggers[kind]
	if !ok {
		return Entry{}, false
	}
	return Entry{Role: Source, Tag: t.Tag, Severity: t.Severity}, true
}

// SourceSeverity returns the severity class of the source entries with the tag, if any
func (c *Catalog) SourceSeverity(tag string) string {
	for _, s := range c.spec.Sources {
		if s.Tag == tag && s.Severity != "" {
			return s.Severity
		}
	}
	for _, t := range c.spec.TriggerSources {
		if (t.Tag == tag || t.Tag == "" && t.Kind == tag) && t.Severity != "" {
			return t.Severity
		}
	}
	return ""
}
