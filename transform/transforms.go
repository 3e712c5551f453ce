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

// Package transform normalizes records before they are grouped and
// aggregated.
package transform

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aaronlmathis/dimetl/core"
)

// ToFloat converts the listed fields to float64 so that numeric strings
// such as "12.5" can be measured. Absent and nil fields are left alone.
func ToFloat(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		var out core.Record
		for _, field := range fields {
			value, exists := record[field]
			if !exists || value == nil {
				continue
			}
			if _, ok := value.(float64); ok {
				continue
			}
			f, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			if out == nil {
				out = record.Clone()
			}
			out[field] = f
		}
		if out == nil {
			return record, nil
		}
		return out, nil
	})
}

func toFloat(value interface{}) (float64, error) {
	if str, ok := value.(string); ok {
		return strconv.ParseFloat(strings.TrimSpace(str), 64)
	}
	return core.ToFloat64(value)
}

// Fold lower-cases and trims string fields so that dimension values like
// "East " and "east" fall into the same group.
func Fold(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		out := record.Clone()
		for _, field := range fields {
			if str, ok := out[field].(string); ok {
				out[field] = strings.ToLower(strings.TrimSpace(str))
			}
		}
		return out, nil
	})
}

// Rename renames fields according to mapping. Renaming onto an existing
// field overwrites it.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		out := record.Clone()
		for from, to := range mapping {
			if value, exists := out[from]; exists {
				delete(out, from)
				out[to] = value
			}
		}
		return out, nil
	})
}
