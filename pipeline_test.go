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

package dimetl

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/core"
	"github.com/aaronlmathis/dimetl/dimensions"
	"github.com/aaronlmathis/dimetl/readers"
	"github.com/aaronlmathis/dimetl/registry"
)

type sliceSource struct {
	records []core.Record
	errAt   map[int]error
	pos     int
	closed  bool
}

func (s *sliceSource) Read(ctx context.Context) (core.Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	i := s.pos
	s.pos++
	if err, ok := s.errAt[i]; ok {
		return nil, err
	}
	return s.records[i], nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type sliceSink struct {
	records []core.Record
	flushed bool
	closed  bool
}

func (s *sliceSink) Write(ctx context.Context, record core.Record) error {
	s.records = append(s.records, record)
	return nil
}

func (s *sliceSink) Flush() error {
	s.flushed = true
	return nil
}

func (s *sliceSink) Close() error {
	s.closed = true
	return nil
}

func newComputation(t *testing.T) *dimensions.Computation {
	t.Helper()
	reg, err := registry.New(map[string]aggregate.Aggregator{
		"SUM":   aggregate.Sum{},
		"COUNT": aggregate.Count{},
		"AVG":   aggregate.Avg{},
	}, registry.WithIdentifiers(map[string]int{"SUM": 1, "COUNT": 2}))
	require.NoError(t, err)
	idx, err := reg.Setup()
	require.NoError(t, err)

	c, err := dimensions.NewComputation(idx, dimensions.Schema{
		Dimensions: []string{"region"},
		Measures: []dimensions.Measure{
			{Field: "price", Aggregator: "SUM"},
			{Field: "price", Aggregator: "AVG"},
		},
	})
	require.NoError(t, err)
	return c
}

func TestPipelineExecute(t *testing.T) {
	source := &sliceSource{records: []core.Record{
		{"region": "east", "price": 10.0},
		{"region": "east", "price": 30.0},
		{"region": "west", "price": 5.0},
		{"region": "north", "price": 1.0},
		{},
	}}
	sink := &sliceSink{}

	pipeline, err := NewPipeline().
		From(source).
		Where(func(ctx context.Context, r core.Record) (bool, error) { return r["region"] != "north", nil }).
		Map(func(ctx context.Context, r core.Record) (core.Record, error) {
			out := r.Clone()
			if p, ok := out["price"].(float64); ok {
				out["price"] = p * 2
			}
			return out, nil
		}).
		Aggregate(newComputation(t)).
		To(sink).
		Build()
	require.NoError(t, err)

	require.NoError(t, pipeline.Execute(context.Background()))
	assert.Equal(t, []core.Record{
		{"region": "east", "price_SUM": 80.0, "price_AVG": 40.0},
		{"region": "west", "price_SUM": 10.0, "price_AVG": 10.0},
	}, sink.records)
	assert.True(t, source.closed)
	assert.True(t, sink.flushed)
	assert.True(t, sink.closed)

	stats := pipeline.Stats()
	assert.Equal(t, int64(5), stats.RecordsRead)
	assert.Equal(t, int64(3), stats.RecordsAggregated)
	assert.Equal(t, int64(1), stats.RecordsSkipped)
	assert.Equal(t, int64(2), stats.GroupsWritten)
}

func TestPipelineErrorStrategies(t *testing.T) {
	readErr := errors.New("corrupt line")
	records := []core.Record{
		{"region": "east", "price": 1.0},
		nil,
		{"region": "east", "price": "bad"},
		{"region": "east", "price": 2.0},
	}

	t.Run("fail fast", func(t *testing.T) {
		source := &sliceSource{records: records, errAt: map[int]error{1: readErr}}
		pipeline, err := NewPipeline().From(source).Aggregate(newComputation(t)).To(&sliceSink{}).Build()
		require.NoError(t, err)
		assert.ErrorIs(t, pipeline.Execute(context.Background()), readErr)
	})

	t.Run("skip", func(t *testing.T) {
		var handled int
		sink := &sliceSink{}
		source := &sliceSource{records: records, errAt: map[int]error{1: readErr}}
		pipeline, err := NewPipeline().
			From(source).
			Aggregate(newComputation(t)).
			To(sink).
			WithErrorStrategy(core.SkipErrors).
			WithErrorHandler(core.ErrorHandlerFunc(func(ctx context.Context, r core.Record, err error) error {
				handled++
				return nil
			})).
			Build()
		require.NoError(t, err)
		require.NoError(t, pipeline.Execute(context.Background()))
		assert.Equal(t, 2, handled)
		require.Len(t, sink.records, 1)
		assert.Equal(t, 3.0, sink.records[0]["price_SUM"])
	})

	t.Run("collect", func(t *testing.T) {
		source := &sliceSource{records: records, errAt: map[int]error{1: readErr}}
		pipeline, err := NewPipeline().
			From(source).
			Aggregate(newComputation(t)).
			To(&sliceSink{}).
			WithErrorStrategy(core.CollectErrors).
			Build()
		require.NoError(t, err)
		require.NoError(t, pipeline.Execute(context.Background()))
		require.Len(t, pipeline.Errors(), 2)
		assert.ErrorIs(t, pipeline.Errors()[0], readErr)
	})
}

func TestPipelineEndsAfterOversizedLine(t *testing.T) {
	input := `{"region":"east","price":1}` + "\n" +
		`{"region":"east","blob":"` + strings.Repeat("x", 5*1024*1024) + `"}` + "\n" +
		`{"region":"east","price":2}` + "\n"
	sink := &sliceSink{}

	pipeline, err := NewPipeline().
		From(readers.NewJSONReader(io.NopCloser(strings.NewReader(input)))).
		Aggregate(newComputation(t)).
		To(sink).
		WithErrorStrategy(core.CollectErrors).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pipeline.Execute(ctx))

	require.Len(t, pipeline.Errors(), 1)
	assert.ErrorIs(t, pipeline.Errors()[0], bufio.ErrTooLong)
	require.Len(t, sink.records, 1)
	assert.Equal(t, 1.0, sink.records[0]["price_SUM"])
}

func TestPipelineSkippedRecordNotAggregated(t *testing.T) {
	reg, err := registry.New(map[string]aggregate.Aggregator{
		"SUM":   aggregate.Sum{},
		"COUNT": aggregate.Count{},
	}, registry.WithIdentifiers(map[string]int{"SUM": 1, "COUNT": 2}))
	require.NoError(t, err)
	idx, err := reg.Setup()
	require.NoError(t, err)
	comp, err := dimensions.NewComputation(idx, dimensions.Schema{
		Measures: []dimensions.Measure{
			{Field: "x", Aggregator: "SUM"},
			{Field: "y", Aggregator: "SUM"},
		},
	})
	require.NoError(t, err)

	sink := &sliceSink{}
	pipeline, err := NewPipeline().
		From(&sliceSource{records: []core.Record{
			{"x": 10.0, "y": 1.0},
			{"x": 100.0, "y": "bad"},
		}}).
		Aggregate(comp).
		To(sink).
		WithErrorStrategy(core.SkipErrors).
		Build()
	require.NoError(t, err)
	require.NoError(t, pipeline.Execute(context.Background()))

	assert.Equal(t, []core.Record{{"x_SUM": 10.0, "y_SUM": 1.0}}, sink.records)
	assert.Equal(t, int64(1), pipeline.Stats().RecordsAggregated)
	assert.Equal(t, int64(1), pipeline.Stats().RecordsSkipped)
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline, err := NewPipeline().
		From(&sliceSource{records: []core.Record{{"region": "east"}}}).
		Aggregate(newComputation(t)).
		To(&sliceSink{}).
		Build()
	require.NoError(t, err)
	assert.ErrorIs(t, pipeline.Execute(ctx), context.Canceled)
}

func TestPipelineBuildValidation(t *testing.T) {
	_, err := NewPipeline().Build()
	assert.EqualError(t, err, "pipeline requires a data source")

	_, err = NewPipeline().From(&sliceSource{}).Build()
	assert.EqualError(t, err, "pipeline requires a computation")

	_, err = NewPipeline().From(&sliceSource{}).Aggregate(newComputation(t)).Build()
	assert.EqualError(t, err, "pipeline requires a data sink")
}
