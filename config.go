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

package hostlb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file representation of the settings of a HostManager and
// its InspectManager. For example:
//
//	hosts:
//	  - http://10.0.0.1:8080
//	  - http://10.0.0.2:8080
//	returnNilIfAllBlocked: true
//	inspectInterval: 5s
//	maxInspectWorkers: 16
type Config struct {
	Hosts                 []string      `yaml:"hosts"`
	ReturnNilIfAllBlocked bool          `yaml:"returnNilIfAllBlocked"`
	InspectInterval       time.Duration `yaml:"inspectInterval"`
	MaxInspectWorkers     int           `yaml:"maxInspectWorkers"`
}

// LoadConfig reads a Config from the YAML file at the given path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a Config from YAML. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if config.InspectInterval < 0 {
		return nil, fmt.Errorf("parse config: inspectInterval must not be negative, got %v", config.InspectInterval)
	}
	if config.MaxInspectWorkers < 0 {
		return nil, fmt.Errorf("parse config: maxInspectWorkers must not be negative, got %d", config.MaxInspectWorkers)
	}
	return &config, nil
}

// ManagerOptions returns the HostManager options this config describes.
func (c *Config) ManagerOptions() []ManagerOption {
	opts := []ManagerOption{WithReturnNilIfAllBlocked(c.ReturnNilIfAllBlocked)}
	if len(c.Hosts) > 0 {
		opts = append(opts, WithHosts(c.Hosts...))
	}
	return opts
}

// InspectOptions returns the InspectManager options this config describes.
// Inspectors are not part of the file format and must be added separately.
func (c *Config) InspectOptions() []InspectOption {
	return []InspectOption{
		WithInspectInterval(c.InspectInterval),
		WithMaxInspectWorkers(c.MaxInspectWorkers),
	}
}
