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

// Package analysis loads serverless applications: it finds the deployment descriptor of a repository, then parses
// the source of each deployed function with the frontend of its runtime into the function models analyzed by the
// taint package.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/awslabs/cloudflow-go/analysis/catalog"
	"github.com/awslabs/cloudflow-go/analysis/config"
	"github.com/awslabs/cloudflow-go/analysis/frontend"
	"github.com/awslabs/cloudflow-go/analysis/frontend/golang"
	"github.com/awslabs/cloudflow-go/analysis/frontend/python"
	"github.com/awslabs/cloudflow-go/analysis/model"
	"github.com/awslabs/cloudflow-go/analysis/serverless"
	"github.com/panjf2000/ants/v2"
	"github.com/viant/afs"
)

// ErrNoHandlers is returned when no deployed function of the descriptor could be parsed
var ErrNoHandlers = errors.New("no handler could be parsed")

// LoadedApplication is a serverless application with the models of its functions
type LoadedApplication struct {
	*model.Application

	// Descriptor is the deployment descriptor of the application
	Descriptor *serverless.Descriptor

	// Skipped maps the names of the handlers that were not parsed to the reason
	Skipped map[string]string
}

// Units returns the units to parse for the handlers of the descriptor whose runtime is analyzed
func Units(cfg *config.Config, d *serverless.Descriptor) []*frontend.Unit {
	var units []*frontend.Unit
	for _, h := range d.Handlers {
		if !cfg.AnalyzesRuntime(serverless.Language(h.Runtime)) {
			continue
		}
		h := h
		module, entry := h.Entry()
		units = append(units, &frontend.Unit{
			Name:     h.Name,
			Runtime:  h.Runtime,
			Dir:      d.Dir(),
			Module:   module,
			Entry:    entry,
			Bindings: h.Bindings,
			IAM:      d.Policy(h),
			Env:      func(name string) (string, bool) { return d.Env(h, name) },
		})
	}
	return units
}

// Parsers returns the frontends by language family
func Parsers(cfg *config.Config, logger *config.LogGroup, services *catalog.Services) map[string]frontend.Parser {
	r := map[string]frontend.Parser{}
	for _, p := range []frontend.Parser{
		python.New(cfg, logger, services),
		golang.New(cfg, logger, services),
	} {
		r[p.Language()] = p
	}
	return r
}

// LoadApplication finds the deployment descriptor of the repository at root and parses its handlers. Handlers are
// parsed in parallel, by at most cfg.Workers goroutines; the handlers that cannot be parsed are logged and
// skipped.
func LoadApplication(ctx context.Context, cfg *config.Config, logger *config.LogGroup, fs afs.Service,
	root string) (*LoadedApplication, error) {
	start := time.Now()
	URL, err := serverless.Find(ctx, fs, root)
	if err != nil {
		return nil, err
	}
	d, err := serverless.Load(ctx, fs, URL)
	if err != nil {
		return nil, err
	}
	for _, w := range d.Warnings {
		logger.Warnf("%s: %s", URL, w)
	}
	logger.Infof("Loaded %s: service %q, %d handlers, %d state machines", URL, d.Service, len(d.Handlers),
		len(d.StateMachines))

	services, err := catalog.ServicesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	app, err := ParseUnits(ctx, cfg, logger, fs, services, Units(cfg, d))
	if app != nil {
		app.Descriptor = d
		app.Name = d.Service
		for _, h := range d.Handlers {
			if !cfg.AnalyzesRuntime(serverless.Language(h.Runtime)) {
				app.Skipped[h.Name] = fmt.Sprintf("runtime %s is not analyzed", h.Runtime)
			}
		}
		logger.Infof("Parsed %d functions of %s (%.2f s)", len(app.Functions), d.Service,
			time.Since(start).Seconds())
	}
	return app, err
}

// ParseUnits parses the units with the frontends of their runtimes. The error is ErrNoHandlers when there were
// units and none could be parsed.
func ParseUnits(ctx context.Context, cfg *config.Config, logger *config.LogGroup, fs afs.Service,
	services *catalog.Services, units []*frontend.Unit) (*LoadedApplication, error) {
	parsers := Parsers(cfg, logger, services)
	app := &LoadedApplication{Application: &model.Application{}, Skipped: map[string]string{}}

	pool, err := ants.NewPool(cfg.NumWorkers())
	if err != nil {
		return nil, fmt.Errorf("could not create parser pool: %w", err)
	}
	defer pool.Release()

	// app is shared with the parser tasks and is only modified with mu held
	var mu sync.Mutex
	skip := func(name, reason string) {
		mu.Lock()
		defer mu.Unlock()
		app.Skipped[name] = reason
	}
	var wg sync.WaitGroup
	for _, u := range units {
		u := u
		parser, ok := parsers[serverless.Language(u.Runtime)]
		if !ok {
			skip(u.Name, fmt.Sprintf("no frontend for runtime %s", u.Runtime))
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			functions, err := parser.Parse(ctx, fs, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warnf("skipping handler %s: %v", u.Name, err)
				app.Skipped[u.Name] = err.Error()
				return
			}
			logger.Debugf("parsed handler %s: %d functions", u.Name, len(functions))
			app.Functions = append(app.Functions, functions...)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			skip(u.Name, err.Error())
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	app.Sort()
	if len(units) > 0 && len(app.Functions) == 0 {
		return app, ErrNoHandlers
	}
	return app, nil
}

// SkippedNames returns the names of the skipped handlers, sorted
func (a *LoadedApplication) SkippedNames() []string {
	names := make([]string, 0, len(a.Skipped))
	for n := range a.Skipped {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
