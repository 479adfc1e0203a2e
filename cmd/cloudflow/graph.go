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
	"os"
	"path/filepath"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis"
	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/analysis/triggergraph"
	"github.com/spf13/cobra"
)

func (c *cli) graphCmd() *cobra.Command {
	var models, output string
	var cycles bool
	cmd := &cobra.Command{
		Use:   "graph [flags] <repository>",
		Short: "Print the trigger graph of a serverless application in DOT format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if models == "" && len(args) == 0 {
				return fmt.Errorf("expected a repository, or a model file with --models")
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogGroup(cfg)
			defer func() { _ = logger.Sync() }()

			var name string
			var functions []*model.Function
			if models != "" {
				app, err := model.LoadFile(models)
				if err != nil {
					return err
				}
				name, functions = app.Name, app.Functions
			} else {
				root, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				app, err := analysis.LoadApplication(cmd.Context(), cfg, logger, c.fs, root)
				if err != nil {
					return err
				}
				name, functions = app.Name, app.Functions
			}
			if name == "" {
				name = "triggers"
			}
			services, err := catalog.ServicesFromConfig(cfg)
			if err != nil {
				return err
			}
			g := triggergraph.NewBuilder(cfg, logger, services).Build(functions)
			for _, d := range g.Dropped() {
				logger.Infof("Dropped trigger %s: %s", d.Edge, d.Reason)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("could not create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			if cycles {
				for _, cycle := range g.Cycles() {
					fmt.Fprintf(out, "cycle: %s\n", strings.Join(cycle, " -> "))
				}
				for _, component := range g.Components() {
					fmt.Fprintf(out, "component: %s\n", strings.Join(component, ", "))
				}
				return nil
			}
			b, err := g.DOT(name)
			if err != nil {
				return err
			}
			_, err = out.Write(append(b, '\n'))
			return err
		},
	}
	cmd.Flags().StringVar(&models, "models", "", "read the functions from a function model file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph to this file")
	cmd.Flags().BoolVar(&cycles, "cycles", false, "print the cycles and the connected components instead")
	return cmd
}
