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

package writers

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/dimetl/core"
)

// Mock writer for JSON testing
type mockWriteCloser struct {
	strings.Builder
	closed    bool
	failWrite bool
}

func (m *mockWriteCloser) Write(p []byte) (int, error) {
	if m.failWrite {
		return 0, io.ErrUnexpectedEOF
	}
	return m.Builder.Write(p)
}

func (m *mockWriteCloser) Close() error {
	m.closed = true
	return nil
}

func TestJSONWriter(t *testing.T) {
	out := &mockWriteCloser{}
	writer := NewJSONWriter(out)
	ctx := context.Background()

	require.NoError(t, writer.Write(ctx, core.Record{"region": "east", "price_SUM": 40.0}))
	require.NoError(t, writer.Write(ctx, core.Record{"region": "west"}))
	assert.Empty(t, out.String(), "output is buffered until flush")

	require.NoError(t, writer.Flush())
	assert.Equal(t, "{\"price_SUM\":40,\"region\":\"east\"}\n{\"region\":\"west\"}\n", out.String())

	require.NoError(t, writer.Close())
	assert.True(t, out.closed)
}

func TestJSONWriterErrors(t *testing.T) {
	out := &mockWriteCloser{failWrite: true}
	writer := NewJSONWriter(out)

	err := writer.Write(context.Background(), core.Record{"bad": make(chan int)})
	assert.ErrorContains(t, err, "failed to marshal record")

	require.NoError(t, writer.Write(context.Background(), core.Record{"ok": 1}))
	assert.Error(t, writer.Flush())
}
