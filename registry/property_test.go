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
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aaronlmathis/dimetl/aggregate"
)

// genRegistryInput draws a valid registry: a subset of the built-in static
// aggregators under random names, plus every built-in OTF whose children made
// it into the subset.
func genRegistryInput(rt *rapid.T) (map[string]aggregate.Aggregator, map[string]int) {
	statics := []aggregate.Aggregator{aggregate.Sum{}, aggregate.Count{}, aggregate.Min{}, aggregate.Max{}}
	otfs := []aggregate.OTF{aggregate.Avg{}, aggregate.Range{}}

	names := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z]{1,8}`), len(statics)+len(otfs), len(statics)+len(otfs), rapid.ID[string]).Draw(rt, "names")
	ids := rapid.SliceOfNDistinct(rapid.IntRange(1, 1<<20), len(statics), len(statics), rapid.ID[int]).Draw(rt, "ids")
	include := rapid.SliceOfN(rapid.Bool(), len(statics), len(statics)).Draw(rt, "include")

	aggregators := make(map[string]aggregate.Aggregator)
	identifiers := make(map[string]int)
	present := make(map[any]bool)
	for i, s := range statics {
		if !include[i] {
			continue
		}
		aggregators[names[i]] = s
		identifiers[names[i]] = ids[i]
		present[aggregate.TypeOf(s)] = true
	}
	for i, o := range otfs {
		ok := true
		for _, child := range o.ChildAggregators() {
			ok = ok && present[child]
		}
		if ok {
			aggregators[names[len(statics)+i]] = o
		}
	}
	return aggregators, identifiers
}

func TestIndexProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		aggregators, identifiers := genRegistryInput(rt)

		reg, err := New(aggregators, WithIdentifiers(identifiers))
		require.NoError(rt, err)
		idx, err := reg.Setup()
		require.NoError(rt, err)

		statics := idx.StaticAggregatorsByName()
		otfs := idx.OTFAggregatorsByName()
		ids := idx.IdentifiersByName()
		byID := idx.StaticAggregatorByID()
		constituents := idx.OTFConstituents()

		require.Equal(rt, len(aggregators), len(statics)+len(otfs))
		for name := range aggregators {
			_, isStatic := statics[name]
			_, isOTF := otfs[name]
			require.True(rt, isStatic != isOTF, "name %q must be in exactly one partition", name)
			require.True(rt, idx.IsAggregator(name))
			require.Equal(rt, isStatic, idx.IsStaticAggregator(name))
		}

		for name, static := range statics {
			id, ok := ids[name]
			require.True(rt, ok)
			require.Equal(rt, static, byID[id])
		}
		for name, otf := range otfs {
			require.NotContains(rt, ids, name)

			resolved := constituents[name]
			children := otf.ChildAggregators()
			require.Len(rt, resolved, len(children))
			for i, child := range children {
				require.Contains(rt, statics, resolved[i])
				require.Equal(rt, child, aggregate.TypeOf(statics[resolved[i]]))
			}
		}

		again, err := reg.Setup()
		require.NoError(rt, err)
		require.Equal(rt, constituents, again.OTFConstituents())
		require.Equal(rt, byID, again.StaticAggregatorByID())
	})
}

func TestSnapshotRoundTripProperty(t *testing.T) {
	catalog := aggregate.DefaultCatalog()
	rapid.Check(t, func(rt *rapid.T) {
		aggregators, identifiers := genRegistryInput(rt)

		reg, err := New(aggregators, WithIdentifiers(identifiers))
		require.NoError(rt, err)

		restored, err := FromSnapshot(reg.Snapshot(), catalog)
		require.NoError(rt, err)

		want := reg.MustSetup()
		got := restored.MustSetup()
		require.Equal(rt, want.IdentifiersByName(), got.IdentifiersByName())
		require.Equal(rt, want.OTFConstituents(), got.OTFConstituents())
		require.Equal(rt, want.StaticAggregatorsByType(), got.StaticAggregatorsByType())
	})
}
