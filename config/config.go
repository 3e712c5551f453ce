//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of DimETL.
//
// DimETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DimETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with DimETL. If not, see https://www.gnu.org/licenses/.

// Package config loads aggregator registry definitions from YAML.
//
//	aggregators:
//	  - name: SUM
//	    type: sum
//	    id: 1
//	  - name: COUNT
//	    type: count
//	    id: 2
//	  - name: AVG
//	    type: avg
//
// Setting auto_ids: true derives identifiers from implementation type names
// instead; it cannot be combined with explicit ids.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/registry"
)

// File is the root structure of a registry definition.
type File struct {
	Aggregators []Entry `yaml:"aggregators"`
	AutoIDs     bool    `yaml:"auto_ids"`
}

// Entry defines one registered aggregator.
type Entry struct {
	Name string `yaml:"name"` // Name the pipeline refers to, e.g. "SUM"
	Type string `yaml:"type"` // Catalog alias or fully qualified type name
	ID   *int   `yaml:"id,omitempty"`
}

// Parse decodes a registry definition. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the registry definition at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks the document shape. Pairing rules between aggregator kinds
// and identifiers are enforced by registry.New.
func (f *File) Validate() error {
	if len(f.Aggregators) == 0 {
		return errors.New("registry config defines no aggregators")
	}
	seen := make(map[string]bool, len(f.Aggregators))
	for i, e := range f.Aggregators {
		if e.Name == "" {
			return fmt.Errorf("aggregator %d: name is required", i)
		}
		if e.Type == "" {
			return fmt.Errorf("aggregator %s: type is required", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("aggregator %s: defined more than once", e.Name)
		}
		seen[e.Name] = true
		if f.AutoIDs && e.ID != nil {
			return fmt.Errorf("aggregator %s: id cannot be set when auto_ids is enabled", e.Name)
		}
	}
	return nil
}

// Build resolves every entry through catalog and constructs the registry.
func (f *File) Build(catalog *aggregate.Catalog, opts ...registry.Option) (*registry.Registry, error) {
	aggregators := make(map[string]aggregate.Aggregator, len(f.Aggregators))
	ids := make(map[string]int)
	for _, e := range f.Aggregators {
		agg, err := catalog.New(e.Type)
		if err != nil {
			return nil, fmt.Errorf("aggregator %s: %w", e.Name, err)
		}
		aggregators[e.Name] = agg
		if e.ID != nil {
			ids[e.Name] = *e.ID
		}
	}

	if !f.AutoIDs {
		opts = append(opts, registry.WithIdentifiers(ids))
	}
	return registry.New(aggregators, opts...)
}
