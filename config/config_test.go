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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/registry"
)

const explicitIDs = `
aggregators:
  - name: SUM
    type: sum
    id: 1
  - name: COUNT
    type: count
    id: 2
  - name: AVG
    type: avg
`

func TestLoadAndBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(explicitIDs), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Aggregators, 3)
	assert.False(t, f.AutoIDs)

	reg, err := f.Build(aggregate.DefaultCatalog())
	require.NoError(t, err)

	idx, err := reg.Setup()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SUM": 1, "COUNT": 2}, idx.IdentifiersByName())
	constituents, _ := idx.Constituents("AVG")
	assert.Equal(t, []string{"SUM", "COUNT"}, constituents)
}

func TestBuildAutoIDs(t *testing.T) {
	f, err := Parse([]byte(`
auto_ids: true
aggregators:
  - {name: SUM, type: sum}
  - {name: COUNT, type: count}
  - {name: AVG, type: avg}
`))
	require.NoError(t, err)

	reg, err := f.Build(aggregate.DefaultCatalog())
	require.NoError(t, err)
	assert.True(t, reg.AutoIdentifiers())
}

func TestBuildRegistryErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "otf with id",
			yaml: `
aggregators:
  - {name: SUM, type: sum, id: 1}
  - {name: COUNT, type: count, id: 2}
  - {name: AVG, type: avg, id: 9}
`,
			wantErr: registry.ErrInvalidConfig,
		},
		{
			name: "static missing id",
			yaml: `
aggregators:
  - {name: SUM, type: sum, id: 1}
  - {name: COUNT, type: count}
`,
			wantErr: registry.ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = f.Build(aggregate.DefaultCatalog())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"empty", ``, "defines no aggregators"},
		{"unknown key", "aggregators:\n  - {name: SUM, type: sum, idx: 1}\n", "field idx not found"},
		{"missing name", "aggregators:\n  - {type: sum}\n", "name is required"},
		{"missing type", "aggregators:\n  - {name: SUM}\n", "type is required"},
		{"duplicate", "aggregators:\n  - {name: SUM, type: sum}\n  - {name: SUM, type: count}\n", "defined more than once"},
		{"auto with id", "auto_ids: true\naggregators:\n  - {name: SUM, type: sum, id: 3}\n", "auto_ids is enabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBuildUnknownType(t *testing.T) {
	f, err := Parse([]byte("aggregators:\n  - {name: P99, type: p99}\n"))
	require.NoError(t, err)
	_, err = f.Build(aggregate.DefaultCatalog())
	assert.ErrorContains(t, err, `unknown aggregator kind "p99"`)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
