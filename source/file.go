// Copyright 2023 Buf Technologies, Inc.
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

package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NewFileFetcher returns a fetcher that reads the host list from a file.
// The file is YAML and may hold a sequence of URLs, a mapping with a
// "hosts" sequence, or a single comma-separated string:
//
//	- http://10.0.0.1:8080
//	- http://10.0.0.2:8080
//
//	hosts: [http://10.0.0.1:8080, http://10.0.0.2:8080]
//
//	http://10.0.0.1:8080, http://10.0.0.2:8080
//
// Combine it with NewPollingSource to pick up changes to the file.
func NewFileFetcher(path string) Fetcher {
	return FetcherFunc(func(context.Context) ([]string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		urls, err := parseHostList(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return urls, nil
	})
}

func parseHostList(data []byte) ([]string, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, err
	}
	if len(document.Content) == 0 {
		return nil, nil
	}
	root := document.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var urls []string
		if err := root.Decode(&urls); err != nil {
			return nil, err
		}
		return urls, nil
	case yaml.MappingNode:
		var wrapper struct {
			Hosts []string `yaml:"hosts"`
		}
		if err := root.Decode(&wrapper); err != nil {
			return nil, err
		}
		return wrapper.Hosts, nil
	case yaml.ScalarNode:
		var urls []string
		for _, url := range strings.Split(root.Value, ",") {
			if url = strings.TrimSpace(url); url != "" {
				urls = append(urls, url)
			}
		}
		return urls, nil
	default:
		return nil, fmt.Errorf("unsupported host list at line %d", root.Line)
	}
}
