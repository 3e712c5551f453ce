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

// Package filter provides composable record predicates for selecting the
// records that take part in a dimensional computation.
package filter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aaronlmathis/dimetl/core"
)

// NotNull includes records where field is present, non-nil, and not "".
func NotNull(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists || value == nil {
			return false, nil
		}
		if str, ok := value.(string); ok && str == "" {
			return false, nil
		}
		return true, nil
	})
}

// Equals includes records where field equals value. Numbers compare by value
// regardless of their Go type.
func Equals(field string, value interface{}) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		actual, exists := record[field]
		if !exists {
			return false, nil
		}
		return equal(actual, value), nil
	})
}

func equal(a, b interface{}) bool {
	fa, errA := core.ToFloat64(a)
	fb, errB := core.ToFloat64(b)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return a == b
}

// GreaterThan includes records where the numeric field is greater than threshold.
func GreaterThan(field string, threshold float64) core.Filter {
	return compare(field, func(v float64) bool { return v > threshold })
}

// LessThan includes records where the numeric field is less than threshold.
func LessThan(field string, threshold float64) core.Filter {
	return compare(field, func(v float64) bool { return v < threshold })
}

// compare excludes records whose field is absent or not numeric.
func compare(field string, pred func(float64) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, ok, err := record.Float(field)
		if err != nil || !ok {
			return false, nil
		}
		return pred(value), nil
	})
}

// In includes records where field equals any of values.
func In(field string, values ...interface{}) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		actual, exists := record[field]
		if !exists {
			return false, nil
		}
		for _, v := range values {
			if equal(actual, v) {
				return true, nil
			}
		}
		return false, nil
	})
}

// And includes records accepted by every filter.
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, f := range filters {
			ok, err := f.ShouldInclude(ctx, record)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// Not inverts a filter.
func Not(filter core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		ok, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}

// Parse builds a filter from an expression of the form
//
//	field=value   field!=value   field>number   field<number   field=a|b|c   field?
//
// where "field?" is NotNull. Values that parse as numbers compare numerically.
func Parse(expr string) (core.Filter, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasSuffix(expr, "?") {
		field := strings.TrimSuffix(expr, "?")
		if field == "" {
			return nil, fmt.Errorf("invalid filter %q: missing field", expr)
		}
		return NotNull(field), nil
	}

	for _, op := range []string{"!=", "=", ">", "<"} {
		idx := strings.Index(expr, op)
		if idx <= 0 {
			continue
		}
		field, raw := expr[:idx], expr[idx+len(op):]
		if strings.ContainsAny(field, "<>!") {
			return nil, fmt.Errorf("invalid filter %q: unsupported operator", expr)
		}
		if raw == "" {
			return nil, fmt.Errorf("invalid filter %q: missing value", expr)
		}
		switch op {
		case "!=":
			return Not(Equals(field, literal(raw))), nil
		case "=":
			parts := strings.Split(raw, "|")
			values := make([]interface{}, len(parts))
			for i, p := range parts {
				values[i] = literal(p)
			}
			return In(field, values...), nil
		default:
			threshold, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %s needs a number", expr, op)
			}
			if op == ">" {
				return GreaterThan(field, threshold), nil
			}
			return LessThan(field, threshold), nil
		}
	}
	return nil, fmt.Errorf("invalid filter %q", expr)
}

func literal(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
