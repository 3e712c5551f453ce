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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aaronlmathis/dimetl/core"
	"github.com/aaronlmathis/dimetl/dimensions"
	"github.com/aaronlmathis/dimetl/internal/ctxlog"
)

// Package dimetl streams records through a dimensional computation.
//
// Core Concepts:
//   - DataSource: reads records (see readers).
//   - Computation: groups records and maintains aggregator state (see dimensions).
//   - Registry: catalogs the aggregators a computation resolves by name or id (see registry).
//   - DataSink: receives one summarized record per group (see writers).
//
// Example usage:
//
//   reg, err := registry.New(aggregators, registry.WithIdentifiers(ids))
//   if err != nil { log.Fatal(err) }
//   idx, err := reg.Setup()
//   if err != nil { log.Fatal(err) }
//   comp, err := dimensions.NewComputation(idx, schema)
//   if err != nil { log.Fatal(err) }
//
//   pipeline, err := dimetl.NewPipeline().
//       From(jsonReader).
//       Aggregate(comp).
//       To(jsonWriter).
//       WithErrorStrategy(core.SkipErrors).
//       Build()
//   if err != nil { log.Fatal(err) }
//   if err := pipeline.Execute(ctx); err != nil { log.Fatal(err) }

// PipelineBuilder provides a fluent API for constructing pipelines.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]core.Transformer, 0),
			filters:      make([]core.Filter, 0),
			strategy:     core.FailFast,
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source core.DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Transform adds a Transformer applied before aggregation.
func (pb *PipelineBuilder) Transform(transformer core.Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Filter adds a Filter applied before aggregation.
func (pb *PipelineBuilder) Filter(filter core.Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, filter)
	return pb
}

// Map adds a mapping transformation using a function.
func (pb *PipelineBuilder) Map(fn func(ctx context.Context, record core.Record) (core.Record, error)) *PipelineBuilder {
	return pb.Transform(core.TransformFunc(fn))
}

// Where adds a filtering condition using a function.
func (pb *PipelineBuilder) Where(fn func(ctx context.Context, record core.Record) (bool, error)) *PipelineBuilder {
	return pb.Filter(core.FilterFunc(fn))
}

// Aggregate sets the dimensional computation records are fed into.
func (pb *PipelineBuilder) Aggregate(computation *dimensions.Computation) *PipelineBuilder {
	pb.pipeline.computation = computation
	return pb
}

// To sets the DataSink that receives the computation results.
func (pb *PipelineBuilder) To(sink core.DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithErrorStrategy sets the record-level error handling strategy.
func (pb *PipelineBuilder) WithErrorStrategy(strategy core.ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom error handler.
func (pb *PipelineBuilder) WithErrorHandler(handler core.ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// Build validates and constructs the Pipeline.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if pb.pipeline.computation == nil {
		return nil, fmt.Errorf("pipeline requires a computation")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a data sink")
	}
	return pb.pipeline, nil
}

// Pipeline reads every record from its source into a computation, then writes
// one record per group to its sink.
type Pipeline struct {
	transformers []core.Transformer
	filters      []core.Filter
	source       core.DataSource
	computation  *dimensions.Computation
	sink         core.DataSink
	strategy     core.ErrorStrategy
	errorHandler core.ErrorHandler
	errors       []error
	stats        Stats
}

// Stats counts the records a pipeline run has seen.
type Stats struct {
	RecordsRead       int64
	RecordsAggregated int64
	RecordsSkipped    int64
	GroupsWritten     int64
}

// Execute runs the pipeline. The source and sink are closed when it returns.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	logger := ctxlog.FromContext(ctx)
	defer func() {
		p.source.Close()
		if flushErr := p.sink.Flush(); flushErr != nil && err == nil {
			err = fmt.Errorf("sink flush failed: %w", flushErr)
		}
		if closeErr := p.sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("sink close failed: %w", closeErr)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if err := p.handleError(ctx, record, err); err != nil {
				return err
			}
			continue
		}
		p.stats.RecordsRead++

		if len(record) == 0 {
			continue
		}

		transformed, err := p.applyTransformations(ctx, record)
		if err != nil {
			if err := p.handleError(ctx, record, err); err != nil {
				return err
			}
			continue
		}
		if len(transformed) == 0 {
			p.stats.RecordsSkipped++
			continue
		}

		include, err := p.applyFilters(ctx, transformed)
		if err != nil {
			if err := p.handleError(ctx, record, err); err != nil {
				return err
			}
			continue
		}
		if !include {
			p.stats.RecordsSkipped++
			continue
		}

		if err := p.computation.Add(ctx, transformed); err != nil {
			if err := p.handleError(ctx, transformed, err); err != nil {
				return err
			}
			continue
		}
		p.stats.RecordsAggregated++
	}

	results, err := p.computation.Results()
	if err != nil {
		return fmt.Errorf("computation results failed: %w", err)
	}
	for _, result := range results {
		if err := p.sink.Write(ctx, result); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
		p.stats.GroupsWritten++
	}

	logger.Debug("Pipeline finished",
		"records_read", p.stats.RecordsRead,
		"records_aggregated", p.stats.RecordsAggregated,
		"records_skipped", p.stats.RecordsSkipped,
		"groups_written", p.stats.GroupsWritten,
		"errors", len(p.errors))
	return nil
}

// Stats returns the counters of the last run.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Errors returns the record-level errors gathered under CollectErrors.
func (p *Pipeline) Errors() []error {
	return p.errors
}

func (p *Pipeline) applyFilters(ctx context.Context, record core.Record) (bool, error) {
	for _, filter := range p.filters {
		include, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		if !include {
			return false, nil
		}
	}
	return true, nil
}

func (p *Pipeline) applyTransformations(ctx context.Context, record core.Record) (core.Record, error) {
	current := record
	for _, transformer := range p.transformers {
		transformed, err := transformer.Transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = transformed
	}
	return current, nil
}

// handleError applies the error strategy. A nil return continues the run.
func (p *Pipeline) handleError(ctx context.Context, record core.Record, err error) error {
	p.stats.RecordsSkipped++
	switch p.strategy {
	case core.FailFast:
		return err
	case core.SkipErrors:
		ctxlog.FromContext(ctx).Warn("Skipping record", "error", err)
	case core.CollectErrors:
		p.errors = append(p.errors, err)
	default:
		return err
	}
	if p.errorHandler != nil {
		return p.errorHandler.HandleError(ctx, record, err)
	}
	return nil
}
