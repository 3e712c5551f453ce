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

package registry

import (
	"fmt"
	"maps"

	"github.com/aaronlmathis/dimetl/aggregate"
)

// Snapshot is the persisted form of a Registry. It carries only the two input
// mappings; indexes are rebuilt by Setup after restore.
type Snapshot struct {
	// Aggregators maps aggregator name to fully qualified implementation type name.
	Aggregators map[string]string `json:"aggregators"`
	// Identifiers maps static aggregator name to identifier.
	Identifiers map[string]int `json:"identifiers"`
}

// Snapshot returns the persisted form of r.
func (r *Registry) Snapshot() Snapshot {
	snap := Snapshot{
		Aggregators: make(map[string]string, len(r.aggregators)),
		Identifiers: maps.Clone(r.ids),
	}
	for name, agg := range r.aggregators {
		snap.Aggregators[name] = aggregate.TypeName(aggregate.TypeOf(agg))
	}
	return snap
}

// FromSnapshot rebuilds a Registry, resolving implementation type names through
// catalog. Identifiers are restored verbatim, never regenerated.
func FromSnapshot(snap Snapshot, catalog *aggregate.Catalog, opts ...Option) (*Registry, error) {
	if snap.Aggregators == nil {
		return nil, &ConfigError{Reason: "snapshot has no aggregators", Err: ErrInvalidConfig}
	}
	aggregators := make(map[string]aggregate.Aggregator, len(snap.Aggregators))
	for _, name := range sortedNames(snap.Aggregators) {
		agg, err := catalog.New(snap.Aggregators[name])
		if err != nil {
			return nil, &ConfigError{Name: name, Type: snap.Aggregators[name], Reason: err.Error(), Err: ErrUnsupportedAggregator}
		}
		aggregators[name] = agg
	}
	opts = append(opts, WithIdentifiers(snap.Identifiers))
	reg, err := New(aggregators, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore registry: %w", err)
	}
	return reg, nil
}
