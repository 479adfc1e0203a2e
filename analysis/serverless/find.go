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

package serverless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// ErrNotFound is returned when a repository has no deployment descriptor
var ErrNotFound = errors.New("no serverless.yml or serverless.yaml found")

// descriptorNames are the file names of deployment descriptors
var descriptorNames = []string{"serverless.yml", "serverless.yaml"}

// skippedDirs are not searched for descriptors: they hold dependencies or build outputs
var skippedDirs = []string{"node_modules", ".serverless", ".git", "vendor"}

// Find returns the URL of the deployment descriptor of the repository at root. When there are several, the one
// closest to the root is returned, ties broken by name.
func Find(ctx context.Context, fs afs.Service, root string) (string, error) {
	var found []string
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo,
		reader io.Reader) (bool, error) {
		if info.IsDir() || skipped(parent) {
			return true, nil
		}
		for _, name := range descriptorNames {
			if info.Name() == name {
				found = append(found, url.Join(url.Join(baseURL, parent), name))
				break
			}
		}
		return true, nil
	}
	if err := fs.Walk(ctx, root, visitor); err != nil {
		return "", fmt.Errorf("could not walk %s: %w", root, err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%s: %w", root, ErrNotFound)
	}
	sort.Slice(found, func(i, j int) bool {
		di, dj := strings.Count(found[i], "/"), strings.Count(found[j], "/")
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found[0], nil
}

func skipped(parent string) bool {
	for _, dir := range strings.Split(parent, "/") {
		for _, s := range skippedDirs {
			if dir == s {
				return true
			}
		}
	}
	return false
}

// Load reads and parses the deployment descriptor at the URL
func Load(ctx context.Context, fs afs.Service, URL string) (*Descriptor, error) {
	b, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("could not read deployment descriptor: %w", err)
	}
	d, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	d.URL = URL
	return d, nil
}

// Dir returns the URL of the directory of the descriptor, to which handler paths are relative
func (d *Descriptor) Dir() string {
	if i := strings.LastIndex(d.URL, "/"); i >= 0 {
		return strings.TrimRight(d.URL[:i], "/")
	}
	return ""
}
