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
	_ "embed"
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"

	"github.com/awslabs/cloudflow-go/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string

	//go:embed default.yaml
	defaultConfig []byte
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig. If no file has been set, the embedded
// default configuration is returned.
func LoadGlobal() (*Config, error) {
	if configFile == "" {
		return LoadDefault()
	}
	return Load(configFile)
}

// Config contains the sensitivity catalog, the severity policy and the options of the analysis.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// Catalog lists the APIs that are sources, sinks, sanitizers or neutral, and the trigger kinds whose payload
	// is sensitive
	Catalog CatalogSpec `yaml:"catalog"`

	// Severity is the policy deriving the severity of a finding from its source tag and sink category
	Severity SeveritySpec `yaml:"severity"`

	// Services lists additional cloud service APIs that write to resources able to trigger functions. They are
	// added to the built-in service catalog, and replace built-in entries with the same service and method.
	Services []ServiceSpec `yaml:"services"`
}

// CatalogSpec contains the API identifiers of the sensitivity catalog
type CatalogSpec struct {
	// Sources is the list of APIs introducing sensitive data
	Sources []APIIdentifier `yaml:"sources"`

	// Sinks is the list of APIs using or exfiltrating sensitive data
	Sinks []APIIdentifier `yaml:"sinks"`

	// Sanitizers is the list of APIs removing taint
	Sanitizers []APIIdentifier `yaml:"sanitizers"`

	// Neutral is the list of APIs whose result carries the taint of their arguments. APIs that are in none of the
	// lists are unknown to the analysis.
	Neutral []APIIdentifier `yaml:"neutral"`

	// TriggerSources lists the trigger kinds (e.g. http) whose event payload is sensitive data by itself
	TriggerSources []TriggerSourceSpec `yaml:"trigger-sources"`
}

// TriggerSourceSpec marks the payload of a kind of trigger as a source of sensitive data
type TriggerSourceSpec struct {
	Kind     string `yaml:"kind"`
	Tag      string `yaml:"tag"`
	Severity string `yaml:"severity,omitempty"`
}

// SeveritySpec is the configurable mapping from (source tag, sink category) to severity
type SeveritySpec struct {
	// Default is the severity when no rule and no catalog entry gives one
	Default string `yaml:"default"`

	// Unresolved is the severity of findings whose only origin is an unresolved call or a parse gap
	Unresolved string `yaml:"unresolved"`

	// Rules are tried in order, the first match wins
	Rules []SeverityRule `yaml:"rules"`
}

// SeverityRule maps a source tag and a sink category to a severity. Empty fields match anything; non-empty fields
// are regexes when they compile, strings otherwise.
type SeverityRule struct {
	SourceTag    string `yaml:"source-tag"`
	SinkCategory string `yaml:"sink-category"`
	Severity     string `yaml:"severity"`

	tagRegex      *regexp.Regexp
	categoryRegex *regexp.Regexp
}

// ServiceSpec describes one cloud API writing to a resource that can trigger a function
type ServiceSpec struct {
	// Service is the client service name (s3, sqs, ...)
	Service string `yaml:"service"`
	// Method is the API method name (put_object, send_message, ...)
	Method string `yaml:"method"`
	// Kind is the resource kind of the bindings this API writes to
	Kind string `yaml:"kind"`
	// ResourceArg is the name of the argument holding the resource identifier
	ResourceArg string `yaml:"resource-arg"`
	// ResourcePos is the position of the resource argument when passed positionally (-1 if never)
	ResourcePos int `yaml:"resource-pos"`
	// ResourceFormat tells how to extract the resource name from the argument: name, url or arn
	ResourceFormat string `yaml:"resource-format"`
	// KeyArg is the name of the argument holding the object key, if any
	KeyArg string `yaml:"key-arg,omitempty"`
	// Payload lists the arguments flowing into the event payload. Empty means all arguments.
	Payload []string `yaml:"payload,omitempty"`
	// Actions are the IAM actions required to call the API
	Actions []string `yaml:"actions"`
	// Event is the event emitted by the write
	Event string `yaml:"event,omitempty"`
}

// Options contains the global options of the analysis
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets some report formats, then ReportsDir will be created
	// in the folder of the config file.
	ReportsDir string `yaml:"reports-dir"`

	// ReportFormats lists the formats of the reports written in ReportsDir: csv, json or text
	ReportFormats []string `yaml:"report-formats"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// LogFile, if not empty, is a file where logs are also written in JSON format. The file is rotated.
	LogFile string `yaml:"log-file"`

	// MaxIterations caps the number of passes of the inter-procedural fixed point. When the cap is reached, the
	// partial result is reported as not converged.
	MaxIterations int `yaml:"max-iterations"`

	// MaxTriggerDepth sets a limit for the number of trigger edges a taint origin can cross.
	// If MaxTriggerDepth is <= 0, then it is ignored.
	MaxTriggerDepth int `yaml:"max-trigger-depth"`

	// MaxRecursionPasses caps the refinement of the summaries of mutually recursive functions
	MaxRecursionPasses int `yaml:"max-recursion-passes"`

	// Workers is the number of functions analyzed in parallel in a pass. If <= 0, the number of CPUs minus one is
	// used.
	Workers int `yaml:"workers"`

	// FilterUnauthorizedTriggers drops trigger edges whose producer does not have the IAM permissions needed to
	// write to the resource. Functions without permission information are always authorized.
	FilterUnauthorizedTriggers bool `yaml:"filter-unauthorized-triggers"`

	// FilterEventRules drops trigger edges whose literal object key is rejected by the consumer's event rules
	FilterEventRules bool `yaml:"filter-event-rules"`

	// ReportUnresolved controls whether findings whose only origin is an unresolved call or a parse gap are
	// reported
	ReportUnresolved bool `yaml:"report-unresolved"`

	// Runtimes lists the handler runtimes analyzed by the frontends (e.g. python, go). Empty means all.
	Runtimes []string `yaml:"runtimes"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Catalog:    CatalogSpec{},
		Severity: SeveritySpec{
			Default:    DefaultSeverity,
			Unresolved: DefaultUnresolvedSeverity,
		},
		Options: Options{
			ReportsDir:                 "",
			ReportFormats:              nil,
			LogLevel:                   int(InfoLevel),
			MaxIterations:              DefaultMaxIterations,
			MaxTriggerDepth:            DefaultMaxTriggerDepth,
			MaxRecursionPasses:         DefaultMaxRecursionPasses,
			Workers:                    0,
			FilterUnauthorizedTriggers: true,
			FilterEventRules:           true,
			ReportUnresolved:           true,
			SilenceWarn:                false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadFromBytes(filename, b)
}

// LoadDefault returns the configuration embedded in the binary, with a catalog for Python and Go handlers that use
// the AWS SDKs.
func LoadDefault() (*Config, error) {
	return LoadFromBytes("", defaultConfig)
}

// LoadFromBytes parses the configuration content b. The filename is used to resolve relative paths; it can be
// empty.
func LoadFromBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	for _, f := range cfg.ReportFormats {
		if !funcutil.Contains(reportFormats, f) {
			return nil, fmt.Errorf("unknown report format %q, expected one of %v", f, reportFormats)
		}
	}

	if len(cfg.ReportFormats) > 0 && filename != "" {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxRecursionPasses <= 0 {
		cfg.MaxRecursionPasses = DefaultMaxRecursionPasses
	}
	if cfg.Severity.Default == "" {
		cfg.Severity.Default = DefaultSeverity
	}
	if cfg.Severity.Unresolved == "" {
		cfg.Severity.Unresolved = DefaultUnresolvedSeverity
	}

	cfg.Compile()
	return cfg, nil
}

// Compile computes the regexes of all the identifiers of the configuration. It must be called after a
// configuration has been modified programmatically; Load calls it.
func (c *Config) Compile() {
	funcutil.MapInPlace(c.Catalog.Sources, CompileRegexes)
	funcutil.MapInPlace(c.Catalog.Sinks, CompileRegexes)
	funcutil.MapInPlace(c.Catalog.Sanitizers, CompileRegexes)
	funcutil.MapInPlace(c.Catalog.Neutral, CompileRegexes)
	funcutil.MapInPlace(c.Severity.Rules, compileRule)
}

func compileRule(rule SeverityRule) SeverityRule {
	if r, err := regexp.Compile(anchor(rule.SourceTag)); err == nil {
		rule.tagRegex = r
	}
	if r, err := regexp.Compile(anchor(rule.SinkCategory)); err == nil {
		rule.categoryRegex = r
	}
	return rule
}

// Matches returns true if the rule applies to the source tag and sink category
func (rule SeverityRule) Matches(sourceTag string, sinkCategory string) bool {
	return matchField(rule.SourceTag, rule.tagRegex, sourceTag) &&
		matchField(rule.SinkCategory, rule.categoryRegex, sinkCategory)
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// SourceFile returns the name of the file the config has been loaded from. It is empty for the default config.
func (c Config) SourceFile() string {
	return c.sourceFile
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxTriggerDepth returns true if the input exceeds the maximum trigger depth parameter of the configuration.
// (this implements the logic for using maximum depth; if the configuration setting is < 0, then this returns false)
func (c Config) ExceedsMaxTriggerDepth(d int) bool {
	return !(c.MaxTriggerDepth <= 0) && d > c.MaxTriggerDepth
}

// NumWorkers returns the number of goroutines of parallel steps: Workers, or the number of CPUs minus one
func (c Config) NumWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return max(runtime.NumCPU()-1, 1)
}

// AnalyzesRuntime returns true if handlers written for the runtime should be parsed
func (c Config) AnalyzesRuntime(runtime string) bool {
	if len(c.Runtimes) == 0 {
		return true
	}
	return funcutil.Exists(c.Runtimes, func(r string) bool { return r == runtime })
}

// Below are functions used to query the configuration on specific facts

// IsSource returns true if the API identifier matches a source specification in the config file
func (cs CatalogSpec) IsSource(id APIIdentifier) bool {
	return ExistsID(cs.Sources, id.equalOnNonEmptyFields)
}

// IsSink returns true if the API identifier matches a sink specification in the config file
func (cs CatalogSpec) IsSink(id APIIdentifier) bool {
	return ExistsID(cs.Sinks, id.equalOnNonEmptyFields)
}

// IsSanitizer returns true if the API identifier matches a sanitizer specification in the config file
func (cs CatalogSpec) IsSanitizer(id APIIdentifier) bool {
	return ExistsID(cs.Sanitizers, id.equalOnNonEmptyFields)
}

// IsNeutral returns true if the API identifier matches a neutral specification in the config file
func (cs CatalogSpec) IsNeutral(id APIIdentifier) bool {
	return ExistsID(cs.Neutral, id.equalOnNonEmptyFields)
}
