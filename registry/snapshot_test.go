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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/dimetl/aggregate"
)

func TestSnapshotHoldsOnlyInputs(t *testing.T) {
	reg, err := New(sumCountAvg(), WithIdentifiers(map[string]int{"SUM": 1, "COUNT": 2}))
	require.NoError(t, err)

	data, err := json.Marshal(reg.Snapshot())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"aggregators": {
			"SUM": "github.com/aaronlmathis/dimetl/aggregate.Sum",
			"COUNT": "github.com/aaronlmathis/dimetl/aggregate.Count",
			"AVG": "github.com/aaronlmathis/dimetl/aggregate.Avg"
		},
		"identifiers": {"SUM": 1, "COUNT": 2}
	}`, string(data))
}

func TestFromSnapshot(t *testing.T) {
	snap := Snapshot{
		Aggregators: map[string]string{
			"SUM":   "github.com/aaronlmathis/dimetl/aggregate.Sum",
			"COUNT": "count",
			"AVG":   "github.com/aaronlmathis/dimetl/aggregate.Avg",
		},
		Identifiers: map[string]int{"SUM": 11, "COUNT": 12},
	}

	reg, err := FromSnapshot(snap, aggregate.DefaultCatalog())
	require.NoError(t, err)
	assert.False(t, reg.AutoIdentifiers())

	idx := reg.MustSetup()
	static, ok := idx.StaticByID(12)
	require.True(t, ok)
	assert.Equal(t, aggregate.Count{}, static)

	constituents, _ := idx.Constituents("AVG")
	assert.Equal(t, []string{"SUM", "COUNT"}, constituents)
}

func TestFromSnapshotErrors(t *testing.T) {
	catalog := aggregate.DefaultCatalog()

	_, err := FromSnapshot(Snapshot{}, catalog)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = FromSnapshot(Snapshot{Aggregators: map[string]string{"P99": "example.com/quantile.P99"}}, catalog)
	assert.ErrorIs(t, err, ErrUnsupportedAggregator)

	// identifiers are never regenerated on restore
	_, err = FromSnapshot(Snapshot{Aggregators: map[string]string{"SUM": "sum"}}, catalog)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
