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
The dataflow package implements the intra-procedural taint analysis of functions and the summaries used at direct
call sites.

The first object to build is an [Analyzer] for the functions of the application. Assuming you have a configuration
cfg, a logger log, a sensitivity catalog cat and functions fns, you can build an analyzer using [NewAnalyzer]:

	analyzer := dataflow.NewAnalyzer(cfg, log, cat, fns)

This validates the functions (malformed functions are reported in analyzer.Diagnostics() and excluded) and
computes the summary of every function bottom-up over the direct call graph.

To analyze a function with some taint on its parameters, run [Analyzer.Analyze]:

	initial := map[string]lattice.Label{"event": lattice.Of(lattice.NewTrigger("user-input", "handler"))}
	result, err := analyzer.Analyze("handler", initial)

The result contains the state at every statement of the function and its [FunctionSummary]: the labels reaching
its output bindings, its return value and its sinks.
*/
package dataflow
