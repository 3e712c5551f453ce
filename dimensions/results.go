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

package dimensions

import (
	"errors"
	"fmt"

	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/core"
)

// Aggregate is the compact form of one group: values are keyed by static
// aggregator identifier, never by name, so the form can be stored or sent
// without the registry's names.
type Aggregate struct {
	Key    core.Record
	Values map[string]map[int]float64 // field → static aggregator id → value
}

// Aggregates returns the compact form of every group in first-seen order.
// Accumulators with no defined result (e.g. min of nothing) are omitted.
func (c *Computation) Aggregates() ([]Aggregate, error) {
	out := make([]Aggregate, 0, len(c.order))
	for _, groupKey := range c.order {
		g := c.groups[groupKey]
		agg := Aggregate{Key: g.key.Clone(), Values: make(map[string]map[int]float64, len(g.accs))}
		for _, field := range c.fields {
			values := make(map[int]float64, len(g.accs[field]))
			for _, id := range c.ids[field] {
				v, err := g.accs[field][id].Result()
				if errors.Is(err, aggregate.ErrNoValues) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("failed to get result for field %s: %w", field, err)
				}
				values[id] = v
			}
			agg.Values[field] = values
		}
		out = append(out, agg)
	}
	return out, nil
}

// Results decodes every group into a record holding the dimension values and
// one column per measure. On-the-fly measures are computed from their
// constituents' results in declaration order.
func (c *Computation) Results() ([]core.Record, error) {
	aggregates, err := c.Aggregates()
	if err != nil {
		return nil, err
	}
	out := make([]core.Record, 0, len(aggregates))
	for _, agg := range aggregates {
		record, err := c.Decode(agg)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Decode turns a compact Aggregate into a result record.
func (c *Computation) Decode(agg Aggregate) (core.Record, error) {
	record := agg.Key.Clone()
	for _, m := range c.schema.Measures {
		values := agg.Values[m.Field]

		if id, ok := c.index.ID(m.Aggregator); ok {
			if v, ok := values[id]; ok {
				record[m.Column()] = v
			}
			continue
		}

		otf, ok := c.index.OTF(m.Aggregator)
		if !ok {
			return nil, fmt.Errorf("measure %s: unknown aggregator %q", m.Column(), m.Aggregator)
		}
		constituents, _ := c.index.Constituents(m.Aggregator)
		inputs := make([]float64, 0, len(constituents))
		for _, name := range constituents {
			id, _ := c.index.ID(name)
			v, ok := values[id]
			if !ok {
				break
			}
			inputs = append(inputs, v)
		}
		if len(inputs) != len(constituents) {
			continue
		}
		v, err := otf.Compute(inputs...)
		if err != nil {
			return nil, fmt.Errorf("measure %s: %w", m.Column(), err)
		}
		record[m.Column()] = v
	}
	return record, nil
}
