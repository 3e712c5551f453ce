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
	"context"
	"fmt"

	"github.com/aaronlmathis/dimetl/core"
)

// Sum totals the numeric values of a field.
type Sum struct{}

func (Sum) Describe() string { return "sum of values" }

func (Sum) NewAccumulator(field string) Accumulator {
	return &sumAccumulator{field: field}
}

// Count counts the records carrying a value for a field.
type Count struct{}

func (Count) Describe() string { return "count of values" }

func (Count) NewAccumulator(field string) Accumulator {
	return &countAccumulator{field: field}
}

// Min tracks the smallest numeric value of a field.
type Min struct{}

func (Min) Describe() string { return "minimum value" }

func (Min) NewAccumulator(field string) Accumulator {
	return &extremumAccumulator{field: field, op: "min", less: func(a, b float64) bool { return a < b }}
}

// Max tracks the largest numeric value of a field.
type Max struct{}

func (Max) Describe() string { return "maximum value" }

func (Max) NewAccumulator(field string) Accumulator {
	return &extremumAccumulator{field: field, op: "max", less: func(a, b float64) bool { return a > b }}
}

type sumAccumulator struct {
	field string
	sum   float64
}

func (s *sumAccumulator) Add(ctx context.Context, record core.Record) error {
	value, ok, err := record.Float(s.field)
	if err != nil {
		return err
	}
	if ok {
		s.sum += value
	}
	return nil
}

func (s *sumAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*sumAccumulator)
	if !ok {
		return mismatch(s, other)
	}
	s.sum += o.sum
	return nil
}

func (s *sumAccumulator) Result() (float64, error) { return s.sum, nil }

func (s *sumAccumulator) Reset() { s.sum = 0 }

type countAccumulator struct {
	field string
	count int64
}

func (c *countAccumulator) Add(ctx context.Context, record core.Record) error {
	if value, exists := record[c.field]; exists && value != nil {
		c.count++
	}
	return nil
}

func (c *countAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*countAccumulator)
	if !ok {
		return mismatch(c, other)
	}
	c.count += o.count
	return nil
}

func (c *countAccumulator) Result() (float64, error) { return float64(c.count), nil }

func (c *countAccumulator) Reset() { c.count = 0 }

// extremumAccumulator keeps the value v for which less(v, x) holds against
// every other observed x.
type extremumAccumulator struct {
	field string
	op    string
	less  func(a, b float64) bool
	value float64
	set   bool
}

func (m *extremumAccumulator) Add(ctx context.Context, record core.Record) error {
	value, ok, err := record.Float(m.field)
	if err != nil {
		return err
	}
	if ok {
		m.observe(value)
	}
	return nil
}

func (m *extremumAccumulator) observe(value float64) {
	if !m.set || m.less(value, m.value) {
		m.value = value
		m.set = true
	}
}

func (m *extremumAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*extremumAccumulator)
	if !ok || o.op != m.op {
		return mismatch(m, other)
	}
	if o.set {
		m.observe(o.value)
	}
	return nil
}

func (m *extremumAccumulator) Result() (float64, error) {
	if !m.set {
		return 0, ErrNoValues
	}
	return m.value, nil
}

func (m *extremumAccumulator) Reset() {
	m.value = 0
	m.set = false
}

func mismatch(a, b Accumulator) error {
	return fmt.Errorf("cannot merge %T into %T", b, a)
}
