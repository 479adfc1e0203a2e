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
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

//go:embed testdata
var testfsys embed.FS

func checkEqualOnNonEmptyFields(t *testing.T, id1 APIIdentifier, id2 APIIdentifier) {
	id2c := CompileRegexes(id2)
	if !id1.equalOnNonEmptyFields(id2c) {
		t.Errorf("%v should be equal modulo empty fields to %v", id1, id2)
	}
}

func checkNotEqualOnNonEmptyFields(t *testing.T, id1 APIIdentifier, id2 APIIdentifier) {
	id2c := CompileRegexes(id2)
	if id1.equalOnNonEmptyFields(id2c) {
		t.Errorf("%v should not be equal modulo empty fields to %v", id1, id2)
	}
}

func TestAPIIdentifier_equalOnNonEmptyFields_selfEquals(t *testing.T) {
	id1 := APIIdentifier{Package: "s3", Method: "put_object"}
	checkEqualOnNonEmptyFields(t, id1, id1)
}

func TestAPIIdentifier_equalOnNonEmptyFields_emptyMatchesAny(t *testing.T) {
	id1 := APIIdentifier{Package: "requests", Method: "post"}
	id2 := APIIdentifier{Package: "de", Method: "234jbn"}
	idEmpty := APIIdentifier{}
	checkEqualOnNonEmptyFields(t, id1, idEmpty)
	checkEqualOnNonEmptyFields(t, id2, idEmpty)
}

func TestAPIIdentifier_equalOnNonEmptyFields_oneDiff(t *testing.T) {
	id1 := APIIdentifier{Package: "a", Method: "b"}
	id2 := APIIdentifier{Package: "a"}
	checkEqualOnNonEmptyFields(t, id1, id2)
	checkNotEqualOnNonEmptyFields(t, id2, id1)
}

func TestAPIIdentifier_equalOnNonEmptyFields_regexes(t *testing.T) {
	id1 := APIIdentifier{Package: "requests", Method: "post"}
	id1bis := APIIdentifier{Package: "requests", Method: "put"}
	id2 := APIIdentifier{Package: "requests", Method: "post|put"}
	checkEqualOnNonEmptyFields(t, id1, id2)
	checkEqualOnNonEmptyFields(t, id1bis, id2)
}

func TestAPIIdentifier_equalOnNonEmptyFields_anchored(t *testing.T) {
	// a regex must match the whole field
	id1 := APIIdentifier{Package: "myrequests", Method: "post"}
	id2 := APIIdentifier{Package: "requests"}
	checkNotEqualOnNonEmptyFields(t, id1, id2)
	id3 := APIIdentifier{Package: "urllib.request", Method: "urlopen"}
	id4 := APIIdentifier{Package: `urllib\.request`, Method: "urlopen"}
	checkEqualOnNonEmptyFields(t, id3, id4)
}

func TestAPIIdentifier_equalOnNonEmptyFields_invalidRegexIsString(t *testing.T) {
	id1 := APIIdentifier{Package: "weird(", Method: "call"}
	id2 := CompileRegexes(APIIdentifier{Package: "weird("})
	if id2.computedRegexs != nil {
		t.Fatalf("an invalid regex should not be compiled")
	}
	checkEqualOnNonEmptyFields(t, id1, id2)
}

func TestSplitCallee(t *testing.T) {
	for _, test := range []struct {
		callee string
		pkg    string
		method string
	}{
		{"s3.put_object", "s3", "put_object"},
		{"urllib.request.urlopen", "urllib.request", "urlopen"},
		{"helper", "", "helper"},
		{"net/http.Post", "net/http", "Post"},
	} {
		pkg, method := SplitCallee(test.callee)
		if pkg != test.pkg || method != test.method {
			t.Errorf("SplitCallee(%q) = (%q, %q), expected (%q, %q)", test.callee, pkg, method, test.pkg,
				test.method)
		}
	}
}

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := LoadFromBytes(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %v", filename, err)
	}
	return filename, config, err
}

func TestNewDefault(t *testing.T) {
	// Test that all methods work on the default config file, and check default values
	c := NewDefault()
	if c.MaxIterations != DefaultMaxIterations {
		t.Errorf("Default for MaxIterations should be %d", DefaultMaxIterations)
	}
	if !c.FilterUnauthorizedTriggers || !c.FilterEventRules || !c.ReportUnresolved {
		t.Errorf("Default trigger filters and unresolved reporting should be enabled")
	}
	if c.Verbose() {
		t.Errorf("Default config should not be verbose")
	}
	if c.ExceedsMaxTriggerDepth(DefaultMaxTriggerDepth) {
		t.Errorf("Default max trigger depth should not be exceeded by %d", DefaultMaxTriggerDepth)
	}
	if !c.ExceedsMaxTriggerDepth(DefaultMaxTriggerDepth + 1) {
		t.Errorf("Default max trigger depth should be exceeded by %d", DefaultMaxTriggerDepth+1)
	}
}

func TestLoadFullConfig(t *testing.T) {
	name, c, err := loadFromTestDir("full-config.yaml")
	if err != nil {
		t.Fatalf("could not load %s: %v", name, err)
	}
	if c.LogLevel != int(DebugLevel) || !c.Verbose() {
		t.Errorf("log level should be debug, got %d", c.LogLevel)
	}
	if c.MaxIterations != 12 || c.MaxTriggerDepth != 3 || c.Workers != 2 {
		t.Errorf("options not loaded: %+v", c.Options)
	}
	if c.FilterUnauthorizedTriggers {
		t.Errorf("filter-unauthorized-triggers should be overridden to false")
	}
	if !c.FilterEventRules {
		t.Errorf("filter-event-rules should keep its default value")
	}
	if !c.AnalyzesRuntime("python") || c.AnalyzesRuntime("go") {
		t.Errorf("only python handlers should be analyzed")
	}
	if c.Severity.Default != DefaultSeverity {
		t.Errorf("default severity should be set when missing, got %q", c.Severity.Default)
	}
	if !c.Catalog.IsSource(NewAPIIdentifier("s3.get_object")) {
		t.Errorf("s3.get_object should be a source")
	}
	if !c.Catalog.IsSink(NewAPIIdentifier("requests.put")) {
		t.Errorf("requests.put should be a sink")
	}
	if c.Catalog.IsSink(NewAPIIdentifier("requests.get")) {
		t.Errorf("requests.get should not be a sink")
	}
	if !c.Catalog.IsSanitizer(NewAPIIdentifier("utils.redact")) {
		t.Errorf("redact in any package should be a sanitizer")
	}
	if len(c.Services) != 1 || c.Services[0].Kind != "kinesis" || c.Services[0].ResourcePos != -1 {
		t.Errorf("services not loaded: %+v", c.Services)
	}
	if len(c.Severity.Rules) != 1 || !c.Severity.Rules[0].Matches("stored-data", "http") {
		t.Errorf("severity rule should match (stored-data, http)")
	}
	if c.Severity.Rules[0].Matches("secret", "http") {
		t.Errorf("severity rule should not match (secret, http)")
	}
}

func TestLoadMinimalConfig(t *testing.T) {
	name, c, err := loadFromTestDir("minimal.yaml")
	if err != nil {
		t.Fatalf("could not load %s: %v", name, err)
	}
	if c.LogLevel != int(InfoLevel) {
		t.Errorf("log level should default to info")
	}
	if !c.Catalog.IsSink(NewAPIIdentifier("builtins.print")) {
		t.Errorf("print should be a sink")
	}
	if c.RelPath("x.yaml") != filepath.Join("testdata", "x.yaml") {
		t.Errorf("relative path should be in the config folder, got %q", c.RelPath("x.yaml"))
	}
}

func TestLoadBadFormatReturnsError(t *testing.T) {
	for _, file := range []string{"bad-format.yaml", "bad-report-format.yaml"} {
		_, _, err := loadFromTestDir(file)
		if err == nil {
			t.Errorf("loading %s should return an error", file)
		}
	}
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if err == nil {
		t.Fatalf("loading a missing file should return an error")
	}
	if !strings.Contains(err.Error(), "could not read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadDefault(t *testing.T) {
	c, err := LoadDefault()
	if err != nil {
		t.Fatalf("could not load default config: %v", err)
	}
	if c.SourceFile() != "" {
		t.Errorf("default config has no source file")
	}
	for _, callee := range []string{"s3.get_object", "secretsmanager.GetSecretValue", "builtins.input"} {
		if !c.Catalog.IsSource(NewAPIIdentifier(callee)) {
			t.Errorf("%s should be a source in the default config", callee)
		}
	}
	for _, callee := range []string{"requests.post", "subprocess.run", "os/exec.Command", "builtins.print"} {
		if !c.Catalog.IsSink(NewAPIIdentifier(callee)) {
			t.Errorf("%s should be a sink in the default config", callee)
		}
	}
	if !c.Catalog.IsNeutral(NewAPIIdentifier("object.upper")) {
		t.Errorf("methods of values of unknown types should be neutral")
	}
	if len(c.Catalog.TriggerSources) == 0 || c.Catalog.TriggerSources[0].Kind != "http" {
		t.Errorf("http triggers should be sources in the default config")
	}
}

func TestLoadGlobalDefaultsToEmbedded(t *testing.T) {
	SetGlobalConfig("")
	c, err := LoadGlobal()
	if err != nil {
		t.Fatalf("could not load global config: %v", err)
	}
	if len(c.Catalog.Sinks) == 0 {
		t.Errorf("global config without file should be the embedded default")
	}
}

func TestLogGroupLevels(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(WarnLevel)
	l := NewLogGroup(c)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	l.Errorf("shown %d", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should not be logged at warning level: %q", out)
	}
	if !strings.Contains(out, "shown 2") || !strings.Contains(out, "shown 3") {
		t.Errorf("warning and error messages should be logged: %q", out)
	}

	buf.Reset()
	l.SetLevel(TraceLevel)
	if !l.LogsTrace() {
		t.Errorf("trace level should log traces")
	}
	l.Named("engine").Tracef("visiting %s", "stmt")
	if !strings.Contains(buf.String(), "[TRACE] visiting stmt") || !strings.Contains(buf.String(), "engine") {
		t.Errorf("named trace message should be logged: %q", buf.String())
	}
}
