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

// Package aggregate defines the aggregation capabilities cataloged by a
// registry.
//
// Two capability kinds exist. A Static aggregator keeps incremental running
// state for a single field over a stream of records and is addressed by a
// persistent integer identifier. An OTF (on-the-fly) aggregator derives its
// value at query time from the outputs of the static aggregators it declares as
// children.
package aggregate

import (
	"context"
	"errors"
	"reflect"

	"github.com/aaronlmathis/dimetl/core"
)

// ErrNoValues is returned by an accumulator that has not observed any value for
// which a result is defined (e.g. the minimum of an empty set).
var ErrNoValues = errors.New("no values aggregated")

// Aggregator is a handle to an aggregation implementation. A usable Aggregator
// also implements exactly one of Static or OTF.
type Aggregator interface {
	// Describe returns a short human-readable summary of the aggregation.
	Describe() string
}

// Static is an aggregator that maintains incremental state over input records.
type Static interface {
	Aggregator
	// NewAccumulator returns empty running state for the given field.
	NewAccumulator(field string) Accumulator
}

// OTF is an aggregator computed on the fly from the results of static
// aggregators.
type OTF interface {
	Aggregator
	// ChildAggregators lists the implementation types of the static aggregators
	// whose results Compute expects, in argument order.
	ChildAggregators() []reflect.Type
	// Compute derives the value from the child results, given in the order of
	// ChildAggregators.
	Compute(inputs ...float64) (float64, error)
}

// Accumulator holds the running state of a static aggregator for one field.
type Accumulator interface {
	// Add processes a record for aggregation.
	Add(ctx context.Context, record core.Record) error
	// Merge folds the state of another accumulator of the same kind into this one.
	Merge(other Accumulator) error
	// Result returns the aggregated value.
	Result() (float64, error)
	// Reset clears the accumulator state for reuse.
	Reset()
}

// TypeOf returns the implementation type of v. Pointer types are dereferenced
// so that Sum{} and &Sum{} share one identity.
func TypeOf(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeName returns the fully qualified name of an implementation type, e.g.
// "github.com/aaronlmathis/dimetl/aggregate.Sum".
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
