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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dimetl "github.com/aaronlmathis/dimetl"
	"github.com/aaronlmathis/dimetl/aggregate"
	"github.com/aaronlmathis/dimetl/config"
	"github.com/aaronlmathis/dimetl/core"
	"github.com/aaronlmathis/dimetl/dimensions"
	"github.com/aaronlmathis/dimetl/filter"
	"github.com/aaronlmathis/dimetl/internal/ctxlog"
	"github.com/aaronlmathis/dimetl/readers"
	"github.com/aaronlmathis/dimetl/registry"
	"github.com/aaronlmathis/dimetl/store"
	"github.com/aaronlmathis/dimetl/transform"
	"github.com/aaronlmathis/dimetl/writers"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dimetl",
		Short:         "Dimensional aggregation over JSON lines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "registry.yaml", "registry definition file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newRegistryCmd(opts), newAggregateCmd(opts))
	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func loadRegistry(cmd *cobra.Command, opts *rootOptions) (*registry.Registry, error) {
	f, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	return f.Build(aggregate.DefaultCatalog(), registry.WithLogger(ctxlog.FromContext(cmd.Context())))
}

func loadIndex(cmd *cobra.Command, opts *rootOptions) (*registry.Index, error) {
	reg, err := loadRegistry(cmd, opts)
	if err != nil {
		return nil, err
	}
	return reg.Setup()
}

// openStore is replaced in tests.
var openStore = func(ctx context.Context, dsn, table string) (*store.PostgresStore, error) {
	return store.NewPostgresStore(ctx, store.WithPostgresDSN(dsn), store.WithPostgresTable(table))
}

type checkpointOptions struct {
	dsn   string
	table string
	key   string
}

func newRegistryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Print the resolved aggregator registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(cmd, opts)
			if err != nil {
				return err
			}
			return printIndex(cmd.OutOrStdout(), idx)
		},
	}

	cp := &checkpointOptions{}
	cmd.PersistentFlags().StringVar(&cp.dsn, "dsn", "", "PostgreSQL connection string for checkpoints")
	cmd.PersistentFlags().StringVar(&cp.table, "table", "aggregator_registry", "checkpoint table")
	cmd.PersistentFlags().StringVar(&cp.key, "key", "default", "checkpoint key")

	cmd.AddCommand(newRegistrySaveCmd(opts, cp), newRegistryLoadCmd(cp))
	return cmd
}

func newRegistrySaveCmd(opts *rootOptions, cp *checkpointOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Validate the registry definition and checkpoint it to PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(cmd, opts)
			if err != nil {
				return err
			}
			if _, err := reg.Setup(); err != nil {
				return err
			}

			st, err := openStore(cmd.Context(), cp.dsn, cp.table)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := st.Save(cmd.Context(), cp.key, reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d aggregators as %q\n", reg.Len(), cp.key)
			return nil
		},
	}
}

func newRegistryLoadCmd(cp *checkpointOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Restore a checkpointed registry from PostgreSQL and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), cp.dsn, cp.table)
			if err != nil {
				return err
			}
			defer st.Close()

			reg, err := st.Load(cmd.Context(), cp.key, aggregate.DefaultCatalog(),
				registry.WithLogger(ctxlog.FromContext(cmd.Context())))
			if err != nil {
				return err
			}
			idx, err := reg.Setup()
			if err != nil {
				return err
			}
			return printIndex(cmd.OutOrStdout(), idx)
		},
	}
}

func printIndex(w io.Writer, idx *registry.Index) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tID\tTYPE\tCONSTITUENTS")
	for _, name := range idx.Names() {
		if static, ok := idx.Static(name); ok {
			id, _ := idx.ID(name)
			fmt.Fprintf(tw, "%s\tstatic\t%d\t%s\t-\n", name, id, aggregate.TypeName(aggregate.TypeOf(static)))
			continue
		}
		otf, _ := idx.OTF(name)
		constituents, _ := idx.Constituents(name)
		fmt.Fprintf(tw, "%s\totf\t-\t%s\t%s\n", name, aggregate.TypeName(aggregate.TypeOf(otf)), strings.Join(constituents, ","))
	}
	return tw.Flush()
}

type aggregateOptions struct {
	dimensions []string
	measures   []string
	where      []string
	numeric    []string
	fold       []string
	onError    string
}

func newAggregateCmd(root *rootOptions) *cobra.Command {
	opts := &aggregateOptions{}
	cmd := &cobra.Command{
		Use:     "aggregate",
		Short:   "Aggregate JSON lines from stdin into one JSON line per group",
		Example: `  dimetl aggregate -c registry.yaml -d region -m price:SUM -m price:AVG -w 'price>0' < sales.jsonl`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(cmd, root)
			if err != nil {
				return err
			}

			schema := dimensions.Schema{Dimensions: opts.dimensions}
			for _, raw := range opts.measures {
				m, err := dimensions.ParseMeasure(raw)
				if err != nil {
					return err
				}
				schema.Measures = append(schema.Measures, m)
			}
			comp, err := dimensions.NewComputation(idx, schema)
			if err != nil {
				return err
			}

			strategy, err := core.ParseErrorStrategy(opts.onError)
			if err != nil {
				return err
			}

			builder := dimetl.NewPipeline().
				From(readers.NewJSONReader(io.NopCloser(cmd.InOrStdin())))
			if len(opts.numeric) > 0 {
				builder = builder.Transform(transform.ToFloat(opts.numeric...))
			}
			if len(opts.fold) > 0 {
				builder = builder.Transform(transform.Fold(opts.fold...))
			}
			for _, expr := range opts.where {
				f, err := filter.Parse(expr)
				if err != nil {
					return err
				}
				builder = builder.Filter(f)
			}

			pipeline, err := builder.
				Aggregate(comp).
				To(writers.NewJSONWriter(nopWriteCloser{cmd.OutOrStdout()})).
				WithErrorStrategy(strategy).
				Build()
			if err != nil {
				return err
			}
			if err := pipeline.Execute(cmd.Context()); err != nil {
				return err
			}
			if errs := pipeline.Errors(); len(errs) > 0 {
				return fmt.Errorf("%d records failed, first: %w", len(errs), errs[0])
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&opts.dimensions, "dimension", "d", nil, "key dimension (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.measures, "measure", "m", nil, "measure as field:AGGREGATOR[:column] (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.where, "where", "w", nil, "record filter such as region=east or price>5 (repeatable)")
	cmd.Flags().StringSliceVar(&opts.numeric, "numeric", nil, "fields to parse as numbers before aggregating")
	cmd.Flags().StringSliceVar(&opts.fold, "fold", nil, "string fields to trim and lower-case before grouping")
	cmd.Flags().StringVar(&opts.onError, "on-error", "fail-fast", "record error strategy: "+strings.Join(core.ErrorStrategyNames(), ", "))
	_ = cmd.MarkFlagRequired("measure")
	return cmd
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
