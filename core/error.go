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

package core

import (
	"context"
	"fmt"
	"strings"
)

// This file contains error handling interfaces, strategies, and function adapters
// used while streaming records.

// ErrorHandler defines how record-level errors are handled during processing.
type ErrorHandler interface {
	// HandleError processes an error that occurred while reading, transforming,
	// or aggregating a record. Returning a non-nil error stops the pipeline.
	HandleError(ctx context.Context, record Record, err error) error
}

// ErrorStrategy defines how to handle record-level errors in the pipeline.
type ErrorStrategy int

const (
	// FailFast stops processing on the first error encountered.
	FailFast ErrorStrategy = iota
	// SkipErrors continues processing, skipping failed records.
	SkipErrors
	// CollectErrors continues processing, collecting all errors for later inspection.
	CollectErrors
)

// String returns the configuration spelling of the strategy.
func (s ErrorStrategy) String() string {
	switch s {
	case FailFast:
		return "fail-fast"
	case SkipErrors:
		return "skip"
	case CollectErrors:
		return "collect"
	default:
		return "unknown"
	}
}

var errorStrategies = []ErrorStrategy{FailFast, SkipErrors, CollectErrors}

// ErrorStrategyNames lists the accepted spellings in declaration order.
func ErrorStrategyNames() []string {
	names := make([]string, len(errorStrategies))
	for i, s := range errorStrategies {
		names[i] = s.String()
	}
	return names
}

// ParseErrorStrategy is the inverse of ErrorStrategy.String.
func ParseErrorStrategy(name string) (ErrorStrategy, error) {
	for _, s := range errorStrategies {
		if s.String() == name {
			return s, nil
		}
	}
	return FailFast, fmt.Errorf("unknown error strategy %q, want one of %s", name, strings.Join(ErrorStrategyNames(), ", "))
}

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, record Record, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, record Record, err error) error {
	return f(ctx, record, err)
}
