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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis"
	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/analysis/render"
	"github.com/awslabs/cloudflow-go/analysis/taint"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// errFindings is returned by analyze --fail-on-findings when some flow was found
var errFindings = errors.New("data flows from sources to sinks found")

func (c *cli) analyzeCmd() *cobra.Command {
	var multi, failOnFindings bool
	var models string
	cmd := &cobra.Command{
		Use:   "analyze [flags] <repository>",
		Short: "Find the flows from sources to sinks of a serverless application",
		Long: `Analyze finds the deployment descriptor of the repository, parses the handlers of its functions and
reports the flows of sensitive data from sources to sinks, including the flows that cross the triggers connecting
the functions. With --multi, every sub-directory of the folder is analyzed as a repository. With --models, the
functions are read from a function model file instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if models == "" && len(args) == 0 {
				return errors.New("expected a repository, or a model file with --models")
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			logger := config.NewLogGroup(cfg)
			defer func() { _ = logger.Sync() }()
			runID := uuid.NewString()
			logger.Infof("CloudFlow %s, run %s", analysis.Version, runID)

			var results []render.RepositoryResult
			var runErr error
			switch {
			case models != "":
				r := c.analyzeModels(cmd.Context(), cfg, logger, models)
				runErr = r.Err
				results = append(results, r)
			case multi:
				repos, err := subdirectories(args[0])
				if err != nil {
					return err
				}
				for _, repo := range repos {
					r := c.analyzeRepository(cmd.Context(), cfg, logger, repo)
					if r.Err != nil {
						logger.Errorf("%s: %v", r.Repository, r.Err)
					}
					results = append(results, r)
					if cmd.Context().Err() != nil {
						break
					}
				}
			default:
				r := c.analyzeRepository(cmd.Context(), cfg, logger, args[0])
				runErr = r.Err
				results = append(results, r)
			}
			for i := range results {
				results[i].RunID = runID
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				if err := render.WriteText(out, r, out == os.Stdout); err != nil {
					return err
				}
			}
			if _, err := render.WriteReports(cfg, logger, results); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if failOnFindings {
				for _, r := range results {
					if len(r.Findings()) > 0 {
						return errFindings
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&multi, "multi", false, "analyze every sub-directory of the folder")
	cmd.Flags().StringVar(&models, "models", "", "read the functions from a function model file")
	cmd.Flags().BoolVar(&failOnFindings, "fail-on-findings", false, "exit with an error when a flow is found")
	return cmd
}

// analyzeRepository loads and analyzes the application of the repository at dir
func (c *cli) analyzeRepository(ctx context.Context, cfg *config.Config, logger *config.LogGroup,
	dir string) render.RepositoryResult {
	r := render.RepositoryResult{Repository: filepath.Base(filepath.Clean(dir))}
	root, err := filepath.Abs(dir)
	if err != nil {
		r.Err = err
		return r
	}
	app, err := analysis.LoadApplication(ctx, cfg, logger, c.fs, root)
	if err != nil {
		r.Err = err
		return r
	}
	for _, name := range app.SkippedNames() {
		logger.Infof("Skipped handler %s: %s", name, app.Skipped[name])
	}
	r.Result, r.Err = analyzeFunctions(ctx, cfg, logger, app.Functions)
	return r
}

// analyzeModels analyzes the functions of a model file
func (c *cli) analyzeModels(ctx context.Context, cfg *config.Config, logger *config.LogGroup,
	filename string) render.RepositoryResult {
	r := render.RepositoryResult{Repository: strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))}
	app, err := model.LoadFile(filename)
	if err != nil {
		r.Err = err
		return r
	}
	if app.Name != "" {
		r.Repository = app.Name
	}
	r.Result, r.Err = analyzeFunctions(ctx, cfg, logger, app.Functions)
	return r
}

func analyzeFunctions(ctx context.Context, cfg *config.Config, logger *config.LogGroup,
	functions []*model.Function) (*taint.AnalysisResult, error) {
	services, err := catalog.ServicesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := taint.AnalyzeWith(ctx, cfg, logger, catalog.FromConfig(cfg), services, functions)
	if res != nil && cfg.Verbose() {
		for _, d := range res.Diagnostics {
			logger.Debugf("%v", d)
		}
	}
	return res, err
}

// subdirectories returns the directories in dir, sorted, without the hidden ones
func subdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list repositories: %w", err)
	}
	var r []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			r = append(r, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(r)
	return r, nil
}
