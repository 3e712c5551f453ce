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

// Package registry catalogs the aggregators of a dimensional computation and
// builds the lookup indexes that resolve an aggregator by name, identifier, or
// implementation type.
//
// A Registry is constructed from a name→aggregator mapping and, optionally, a
// name→identifier mapping; construction validates the pairing between the two.
// Setup derives the lookup indexes once and returns them as an *Index, the only
// type exposing queries.
//
//	reg, err := registry.New(map[string]aggregate.Aggregator{
//		"SUM":   aggregate.Sum{},
//		"COUNT": aggregate.Count{},
//		"AVG":   aggregate.Avg{},
//	}, registry.WithIdentifiers(map[string]int{"SUM": 1, "COUNT": 2}))
//	if err != nil { ... }
//	idx, err := reg.Setup()
//	if err != nil { ... }
//	idx.Constituents("AVG") // ["SUM", "COUNT"]
package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/aaronlmathis/dimetl/aggregate"
)

// Registry holds the caller-supplied aggregator and identifier mappings. Both
// are immutable after New returns.
type Registry struct {
	aggregators map[string]aggregate.Aggregator
	ids         map[string]int
	autoIDs     bool
	logger      *slog.Logger

	once  sync.Once
	index *Index
	err   error
}

type options struct {
	ids    map[string]int
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*options)

// WithIdentifiers supplies the static aggregator identifiers. It must hold one
// positive identifier per static aggregator and none for OTF aggregators. When
// omitted, identifiers are derived from implementation type names.
func WithIdentifiers(ids map[string]int) Option {
	return func(o *options) {
		o.ids = ids
		if o.ids == nil {
			o.ids = map[string]int{}
		}
	}
}

// WithLogger sets the logger used for setup diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New validates the mappings and returns a Registry. The returned error is a
// *ConfigError.
func New(aggregators map[string]aggregate.Aggregator, opts ...Option) (*Registry, error) {
	if aggregators == nil {
		return nil, &ConfigError{Reason: "aggregator mapping is required", Err: ErrInvalidConfig}
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	r := &Registry{
		aggregators: maps.Clone(aggregators),
		logger:      o.logger,
	}

	if o.ids == nil {
		ids, err := generateIdentifiers(r.aggregators, IdentifierFor)
		if err != nil {
			return nil, err
		}
		r.ids = ids
		r.autoIDs = true
	} else {
		r.ids = maps.Clone(o.ids)
	}

	if err := validate(r.aggregators, r.ids); err != nil {
		return nil, err
	}
	return r, nil
}

// AutoIdentifiers reports whether the identifiers were generated rather than supplied.
func (r *Registry) AutoIdentifiers() bool {
	return r.autoIDs
}

// Len returns the number of registered aggregators.
func (r *Registry) Len() int {
	return len(r.aggregators)
}

type kind int

const (
	kindUnsupported kind = iota
	kindStatic
	kindOTF
)

func kindOf(agg aggregate.Aggregator) kind {
	_, isStatic := agg.(aggregate.Static)
	_, isOTF := agg.(aggregate.OTF)
	switch {
	case isStatic && !isOTF:
		return kindStatic
	case isOTF && !isStatic:
		return kindOTF
	default:
		return kindUnsupported
	}
}

// validate checks every entry against the pairing rules between capability
// kind and identifier presence.
func validate(aggregators map[string]aggregate.Aggregator, ids map[string]int) error {
	staticByType := make(map[reflect.Type]string)

	for _, name := range sortedNames(aggregators) {
		agg := aggregators[name]
		typ := aggregate.TypeOf(agg)
		id, hasID := ids[name]

		switch kindOf(agg) {
		case kindOTF:
			if hasID {
				return &ConfigError{Name: name, Type: aggregate.TypeName(typ),
					Reason: fmt.Sprintf("on-the-fly aggregator must not have an identifier, got %d", id), Err: ErrInvalidConfig}
			}
			if len(agg.(aggregate.OTF).ChildAggregators()) == 0 {
				return &ConfigError{Name: name, Type: aggregate.TypeName(typ),
					Reason: "on-the-fly aggregator declares no child aggregators", Err: ErrInvalidConfig}
			}
		case kindStatic:
			if !hasID {
				return &ConfigError{Name: name, Type: aggregate.TypeName(typ),
					Reason: "static aggregator has no identifier", Err: ErrInvalidConfig}
			}
			if id <= 0 {
				return &ConfigError{Name: name, Type: aggregate.TypeName(typ),
					Reason: fmt.Sprintf("identifier must be positive, got %d", id), Err: ErrInvalidConfig}
			}
			if other, dup := staticByType[typ]; dup {
				return &ConfigError{Name: name, Type: aggregate.TypeName(typ),
					Reason: fmt.Sprintf("implementation type already registered as %q", other), Err: ErrInvalidConfig}
			}
			staticByType[typ] = name
		default:
			return &ConfigError{Name: name, Type: aggregate.TypeName(typ), Err: ErrUnsupportedAggregator}
		}
	}

	for _, name := range sortedNames(ids) {
		if _, ok := aggregators[name]; !ok {
			return &ConfigError{Name: name, Reason: "identifier supplied for unregistered aggregator", Err: ErrInvalidConfig}
		}
	}
	return nil
}

// generateIdentifiers derives an identifier for every static aggregator from
// the xxhash of its implementation type name. Collisions are rejected.
func generateIdentifiers(aggregators map[string]aggregate.Aggregator, hash func(reflect.Type) int) (map[string]int, error) {
	ids := make(map[string]int)
	owners := make(map[int]string)

	for _, name := range sortedNames(aggregators) {
		agg := aggregators[name]
		if kindOf(agg) != kindStatic {
			continue
		}
		typ := aggregate.TypeOf(agg)
		id := hash(typ)

		if prev, taken := owners[id]; taken {
			if aggregate.TypeOf(aggregators[prev]) == typ {
				return nil, &ConfigError{Name: name, Type: aggregate.TypeName(typ),
					Reason: fmt.Sprintf("implementation type already registered as %q", prev), Err: ErrInvalidConfig}
			}
			return nil, &ConfigError{Name: name, Type: aggregate.TypeName(typ),
				Reason: fmt.Sprintf("generated identifier %d already assigned to %q", id, prev), Err: ErrIdentifierCollision}
		}
		owners[id] = name
		ids[name] = id
	}
	return ids, nil
}

// IdentifierFor returns the identifier generated for an implementation type:
// the xxhash64 of its fully qualified name folded into [1, MaxInt32]. The value
// depends only on the type name, so it is stable across processes and builds.
func IdentifierFor(t reflect.Type) int {
	h := xxhash.Sum64String(aggregate.TypeName(t))
	return int(h%math.MaxInt32) + 1
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
