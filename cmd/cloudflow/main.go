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

// Cloudflow finds the flows of sensitive data from sources to sinks in serverless applications, across the
// functions the application's events connect.
//
// Usage:
//
//	cloudflow analyze [flags] <repository>
//	cloudflow analyze --multi [flags] <folder of repositories>
//	cloudflow analyze --models functions.yaml
//	cloudflow graph [flags] <repository>
//	cloudflow version
//
// Options can be set in a configuration file (--config), with flags, or with environment variables prefixed by
// CLOUDFLOW_ (CLOUDFLOW_MAX_ITERATIONS=10).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
