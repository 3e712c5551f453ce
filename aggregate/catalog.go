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

package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory returns a fresh aggregator handle.
type Factory func() Aggregator

// Catalog maps textual aggregator kinds to factories. Configuration files refer
// to aggregators by short alias ("sum"); persisted registries refer to them by
// fully qualified implementation type name. Both resolve through a Catalog.
type Catalog struct {
	mu          sync.RWMutex
	byAlias     map[string]Factory
	byTypeName  map[string]Factory
	aliasByType map[string]string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byAlias:     make(map[string]Factory),
		byTypeName:  make(map[string]Factory),
		aliasByType: make(map[string]string),
	}
}

// DefaultCatalog returns a catalog holding the built-in aggregators.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.MustRegister("sum", func() Aggregator { return Sum{} })
	c.MustRegister("count", func() Aggregator { return Count{} })
	c.MustRegister("min", func() Aggregator { return Min{} })
	c.MustRegister("max", func() Aggregator { return Max{} })
	c.MustRegister("avg", func() Aggregator { return Avg{} })
	c.MustRegister("range", func() Aggregator { return Range{} })
	return c
}

// Register adds a factory under alias. Aliases are case-insensitive. Each alias
// and each implementation type may be registered once.
func (c *Catalog) Register(alias string, factory Factory) error {
	key := strings.ToLower(strings.TrimSpace(alias))
	if key == "" {
		return fmt.Errorf("catalog alias is required")
	}
	if factory == nil {
		return fmt.Errorf("catalog factory for %q is nil", alias)
	}
	sample := factory()
	if sample == nil {
		return fmt.Errorf("catalog factory for %q returned nil", alias)
	}
	typeName := TypeName(TypeOf(sample))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byAlias[key]; exists {
		return fmt.Errorf("catalog alias %q already registered", key)
	}
	if prev, exists := c.aliasByType[typeName]; exists {
		return fmt.Errorf("type %s already registered as %q", typeName, prev)
	}
	c.byAlias[key] = factory
	c.byTypeName[typeName] = factory
	c.aliasByType[typeName] = key
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Catalog) MustRegister(alias string, factory Factory) {
	if err := c.Register(alias, factory); err != nil {
		panic(err)
	}
}

// New builds an aggregator from an alias or a fully qualified type name.
func (c *Catalog) New(kind string) (Aggregator, error) {
	c.mu.RLock()
	factory, ok := c.byTypeName[kind]
	if !ok {
		factory, ok = c.byAlias[strings.ToLower(strings.TrimSpace(kind))]
	}
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown aggregator kind %q", kind)
	}
	return factory(), nil
}

// Alias returns the alias an aggregator's implementation type was registered under.
func (c *Catalog) Alias(agg Aggregator) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	alias, ok := c.aliasByType[TypeName(TypeOf(agg))]
	return alias, ok
}

// Aliases returns the registered aliases in sorted order.
func (c *Catalog) Aliases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byAlias))
	for alias := range c.byAlias {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
