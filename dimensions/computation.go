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

// Package dimensions implements a dimensional computation over a registry of
// aggregators: records are grouped by key dimensions, static aggregators keep
// running state per group and field, and on-the-fly aggregators are derived
// from those results when the computation is read.
package dimensions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/core"
	"github.com/aaronlmathis/dimetl/registry"
)

// Measure names a field and the aggregator that summarizes it.
type Measure struct {
	Field      string
	Aggregator string
	// As overrides the output column; defaults to "<field>_<aggregator>".
	As string
}

// Column returns the output column of the measure.
func (m Measure) Column() string {
	if m.As != "" {
		return m.As
	}
	return m.Field + "_" + m.Aggregator
}

// Schema describes a dimensional computation.
type Schema struct {
	Dimensions []string
	Measures   []Measure
}

// ParseMeasure parses "field:AGGREGATOR" or "field:AGGREGATOR:column".
func ParseMeasure(s string) (Measure, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Measure{}, fmt.Errorf("invalid measure %q, want field:AGGREGATOR[:column]", s)
	}
	m := Measure{Field: parts[0], Aggregator: parts[1]}
	if len(parts) == 3 {
		m.As = parts[2]
	}
	return m, nil
}

// Computation groups records and maintains static aggregator state. It is not
// safe for concurrent use; run one Computation per worker and Merge them.
type Computation struct {
	index  *registry.Index
	schema Schema
	// ids lists, per field, the static aggregator identifiers to maintain.
	ids    map[string][]int
	fields []string
	groups map[string]*group
	order  []string
	// staged holds one record's contribution until every field has accepted it.
	staged map[string]map[int]aggregate.Accumulator
}

type group struct {
	key  core.Record
	accs map[string]map[int]aggregate.Accumulator
}

// NewComputation validates schema against the index.
func NewComputation(index *registry.Index, schema Schema) (*Computation, error) {
	if index == nil {
		return nil, errors.New("computation requires a registry index")
	}
	if len(schema.Measures) == 0 {
		return nil, errors.New("computation requires at least one measure")
	}

	ids := make(map[string][]int)
	columns := make(map[string]bool)
	for _, m := range schema.Measures {
		if m.Field == "" {
			return nil, fmt.Errorf("measure %s has no field", m.Column())
		}
		if columns[m.Column()] {
			return nil, fmt.Errorf("duplicate output column %s", m.Column())
		}
		columns[m.Column()] = true

		statics := []string{m.Aggregator}
		if !index.IsStaticAggregator(m.Aggregator) {
			constituents, ok := index.Constituents(m.Aggregator)
			if !ok {
				return nil, fmt.Errorf("measure %s: unknown aggregator %q", m.Column(), m.Aggregator)
			}
			statics = constituents
		}
		for _, name := range statics {
			id, _ := index.ID(name)
			ids[m.Field] = appendUnique(ids[m.Field], id)
		}
	}
	fields := make([]string, 0, len(ids))
	for field := range ids {
		sort.Ints(ids[field])
		fields = append(fields, field)
	}
	sort.Strings(fields)

	c := &Computation{
		index:  index,
		schema: schema,
		ids:    ids,
		fields: fields,
		groups: make(map[string]*group),
	}
	c.staged = c.newAccumulators()
	return c, nil
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Add routes a record to its group and updates every accumulator of the group.
// A record that any accumulator rejects leaves the computation unchanged,
// including the group it would have created.
func (c *Computation) Add(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, field := range c.fields {
		for _, id := range c.ids[field] {
			acc := c.staged[field][id]
			acc.Reset()
			if err := acc.Add(ctx, record); err != nil {
				return fmt.Errorf("aggregation error for field %s: %w", field, err)
			}
		}
	}

	g := c.groupFor(record)
	for _, field := range c.fields {
		for _, id := range c.ids[field] {
			if err := g.accs[field][id].Merge(c.staged[field][id]); err != nil {
				return fmt.Errorf("aggregation error for field %s: %w", field, err)
			}
		}
	}
	return nil
}

func (c *Computation) groupFor(record core.Record) *group {
	key := make(core.Record, len(c.schema.Dimensions))
	for _, dim := range c.schema.Dimensions {
		key[dim] = record[dim]
	}
	return c.lookupGroup(key)
}

func (c *Computation) lookupGroup(key core.Record) *group {
	groupKey := c.encodeKey(key)
	if g, exists := c.groups[groupKey]; exists {
		return g
	}

	g := &group{key: key, accs: c.newAccumulators()}
	c.groups[groupKey] = g
	c.order = append(c.order, groupKey)
	return g
}

func (c *Computation) newAccumulators() map[string]map[int]aggregate.Accumulator {
	accs := make(map[string]map[int]aggregate.Accumulator, len(c.ids))
	for field, ids := range c.ids {
		accs[field] = make(map[int]aggregate.Accumulator, len(ids))
		for _, id := range ids {
			static, _ := c.index.StaticByID(id)
			accs[field][id] = static.NewAccumulator(field)
		}
	}
	return accs
}

// encodeKey builds a group key from typed dimension values; the type prefix
// keeps 1 and "1" apart.
func (c *Computation) encodeKey(key core.Record) string {
	var b strings.Builder
	for _, dim := range c.schema.Dimensions {
		fmt.Fprintf(&b, "%T=%v\x00", key[dim], key[dim])
	}
	return b.String()
}

// Merge folds the groups of other, which must share this computation's schema.
func (c *Computation) Merge(other *Computation) error {
	if other.index != c.index {
		return errors.New("cannot merge computations over different registries")
	}
	if !slices.Equal(c.schema.Dimensions, other.schema.Dimensions) || !slices.Equal(c.fields, other.fields) {
		return errors.New("cannot merge computations with different schemas")
	}
	for _, field := range c.fields {
		if !slices.Equal(c.ids[field], other.ids[field]) {
			return fmt.Errorf("cannot merge computations with different aggregators for field %s", field)
		}
	}
	for _, groupKey := range other.order {
		src := other.groups[groupKey]
		dst := c.lookupGroup(src.key)
		for field, ids := range dst.accs {
			for id, acc := range ids {
				if err := acc.Merge(src.accs[field][id]); err != nil {
					return fmt.Errorf("merge field %s: %w", field, err)
				}
			}
		}
	}
	return nil
}

// Len returns the number of groups.
func (c *Computation) Len() int {
	return len(c.groups)
}

// Reset drops every group.
func (c *Computation) Reset() {
	c.groups = make(map[string]*group)
	c.order = nil
}
