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

// Package readers provides core.DataSource implementations.
package readers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aaronlmathis/dimetl/core"
)

// JSONReader implements core.DataSource for JSON lines input.
type JSONReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	// done is set once the scanner stops; a failed scanner cannot resume, so
	// its error is reported once and io.EOF follows.
	done bool
}

// NewJSONReader creates a reader over line-delimited JSON. Blank lines are skipped.
func NewJSONReader(r io.ReadCloser) *JSONReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONReader{
		scanner: scanner,
		closer:  r,
	}
}

// Read implements the core.DataSource interface.
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if j.done {
			return nil, io.EOF
		}
		if !j.scanner.Scan() {
			j.done = true
			if err := j.scanner.Err(); err != nil {
				return nil, fmt.Errorf("line %d: %w", j.line+1, err)
			}
			return nil, io.EOF
		}
		j.line++

		line := j.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record core.Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", j.line, err)
		}
		return record, nil
	}
}

// Close implements the core.DataSource interface.
func (j *JSONReader) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
