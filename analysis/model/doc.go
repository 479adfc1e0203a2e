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
Package model contains the language-independent representation of serverless functions the analyses operate on.

A Function is a control-flow graph of Statements over a small expression language (literals, variables, calls,
combining operators and unknown expressions) together with the Bindings that tie it to cloud resources. Input
bindings are triggers; output bindings are resource writes identified by the calls that perform them.

The frontends produce Functions from source code; they can also be written by hand in yaml:

	functions:
	  - id: upload
	    params: [event]
	    deployed: true
	    bindings:
	      - {id: api, kind: http, resource: /upload, direction: input}
	      - {id: out, kind: s3, resource: uploads, direction: output}
	    statements:
	      - {id: 0, kind: assign, target: body, value: {kind: var, value: event}, succs: [1]}
	      - id: 1
	        kind: call
	        value: {kind: call, call: {callee: s3.put_object, output: out, args: [{value: {kind: var, value: body}}]}}

NewCFG validates a Function and returns a MalformedFunctionModel diagnostic when it is structurally invalid.
*/
package model
