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

const (
	// DefaultMaxIterations is the default cap on the number of passes of the inter-procedural fixed point
	DefaultMaxIterations = 50
	// DefaultMaxTriggerDepth is the default maximum number of trigger edges a taint origin can cross
	DefaultMaxTriggerDepth = 8
	// DefaultMaxRecursionPasses is the default cap on the refinement passes over recursive functions
	DefaultMaxRecursionPasses = 10
	// DefaultSeverity is the severity of findings no rule applies to
	DefaultSeverity = "medium"
	// DefaultUnresolvedSeverity is the severity of findings that only have unresolved origins
	DefaultUnresolvedSeverity = "low"

	// ReportFormatCSV writes the summary and data flows CSV reports
	ReportFormatCSV = "csv"
	// ReportFormatJSON writes the findings as a JSON document
	ReportFormatJSON = "json"
	// ReportFormatText writes one text file per finding with its trace
	ReportFormatText = "text"
)

var reportFormats = []string{ReportFormatCSV, ReportFormatJSON, ReportFormatText}
