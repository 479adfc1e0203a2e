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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename, and [LoadDefault]() to load the configuration
embedded in the binary.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml or json format. The top-level fields can be any of the fields defined in the Config
struct type. The other fields are defined by the types of the fields of [Config] and nested struct types.
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  max-iterations: 20

	catalog:
	  sources:
	    - package: s3
	      method: get_object
	      tag: customer-data
	  sinks:
	    - package: requests
	      method: post|put
	      category: http
	  sanitizers:
	    - method: redact
	  trigger-sources:
	    - kind: http
	      tag: user-input

	severity:
	  default: medium
	  rules:
	    - source-tag: secret
	      sink-category: log
	      severity: high

# Identifying APIs

The config uses [APIIdentifier] to identify the APIs called by functions. The callee of a call is split on its last
dot into a package and a method, and each non-empty field of an identifier must match the corresponding part.
An important feature of the identifiers is that the string specifications are seen as regexes if they can be
compiled to regexes, otherwise they are strings. Regexes must match the whole field.

# Logging

[LogGroup] is the leveled logger shared by the analyses. Levels go from 1 (errors only) to 5 (trace). When
log-file is set, logs are also written in JSON format to that file, which is rotated.
*/
package config
