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

package main

import (
	"fmt"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/viant/afs"
)

// envPrefix is the prefix of the environment variables overriding the options
const envPrefix = "CLOUDFLOW"

// cli holds the state shared by the commands
type cli struct {
	v  *viper.Viper
	fs afs.Service
}

func newRootCmd() *cobra.Command {
	return (&cli{v: viper.New(), fs: afs.New()}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cloudflow",
		Short:         "Inter-function taint analysis of serverless applications",
		Version:       analysis.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := root.PersistentFlags()
	addOptionFlags(flags)
	_ = c.v.BindPFlags(flags)

	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(c.analyzeCmd(), c.graphCmd(), c.versionCmd())
	return root
}

// addOptionFlags adds the flags of the options shared by the commands
func addOptionFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "configuration file (default: the embedded configuration)")
	flags.Bool("verbose", false, "log at debug level")
	flags.Int("log-level", 0, "log level, from 1 (errors) to 5 (trace)")
	flags.String("log-file", "", "also write JSON logs to this rotated file")
	flags.String("reports-dir", "", "directory of the report files")
	flags.StringSlice("report-formats", nil, "report formats: csv, json, text")
	flags.Int("max-iterations", 0, "cap on the passes of the inter-function fixed point")
	flags.Int("max-trigger-depth", 0, "maximum number of triggers a flow can cross")
	flags.Int("workers", 0, "number of functions analyzed in parallel")
	flags.StringSlice("runtimes", nil, "runtimes of the handlers to analyze: python, go")
	flags.Bool("filter-unauthorized-triggers", true, "drop triggers the producer's role does not allow")
	flags.Bool("filter-event-rules", true, "drop triggers rejected by S3 event rules")
	flags.Bool("report-unresolved", true, "report flows from unresolved calls")
}

// loadConfig returns the configuration of the config file, or the embedded one, with the options set by flags and
// environment variables
func (c *cli) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if p := c.v.GetString("config"); p != "" {
		cfg, err = config.Load(p)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	ints := map[string]*int{
		"log-level":         &cfg.LogLevel,
		"max-iterations":    &cfg.MaxIterations,
		"max-trigger-depth": &cfg.MaxTriggerDepth,
		"workers":           &cfg.Workers,
	}
	for key, field := range ints {
		if c.v.IsSet(key) {
			*field = c.v.GetInt(key)
		}
	}
	bools := map[string]*bool{
		"filter-unauthorized-triggers": &cfg.FilterUnauthorizedTriggers,
		"filter-event-rules":           &cfg.FilterEventRules,
		"report-unresolved":            &cfg.ReportUnresolved,
	}
	for key, field := range bools {
		if c.v.IsSet(key) {
			*field = c.v.GetBool(key)
		}
	}
	if c.v.IsSet("log-file") {
		cfg.LogFile = c.v.GetString("log-file")
	}
	if c.v.IsSet("reports-dir") {
		cfg.ReportsDir = c.v.GetString("reports-dir")
	}
	if c.v.IsSet("report-formats") {
		cfg.ReportFormats = c.list("report-formats")
	}
	if c.v.IsSet("runtimes") {
		cfg.Runtimes = c.list("runtimes")
	}
	if c.v.GetBool("verbose") {
		cfg.LogLevel = int(config.DebugLevel)
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("max-iterations must be positive, got %d", cfg.MaxIterations)
	}
	return cfg, nil
}

// list returns the values of a list option. Environment variables separate values with commas or spaces.
func (c *cli) list(key string) []string {
	var r []string
	for _, s := range c.v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				r = append(r, part)
			}
		}
	}
	return r
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cloudflow %s\n", analysis.Version)
		},
	}
}
