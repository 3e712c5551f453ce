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

package registry

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/aaronlmathis/dimetl/aggregate"
)

// Index holds the lookup tables derived from a Registry. It is immutable and
// safe for concurrent use. Map accessors return copies; the point lookups do
// not allocate.
type Index struct {
	statics      map[string]aggregate.Static
	otfs         map[string]aggregate.OTF
	nameByType   map[reflect.Type]string
	byID         map[int]aggregate.Static
	ids          map[string]int
	constituents map[string][]string
}

// Setup builds the lookup indexes on first call and returns them. Later calls,
// including concurrent ones, return the same Index and error without rebuilding.
func (r *Registry) Setup() (*Index, error) {
	r.once.Do(func() {
		r.index, r.err = buildIndex(r.aggregators, r.ids)
		if r.err != nil {
			r.logger.Error("Aggregator registry setup failed", "error", r.err)
			return
		}
		r.logger.Debug("Aggregator registry ready",
			"static", len(r.index.statics),
			"otf", len(r.index.otfs),
			"auto_ids", r.autoIDs)
	})
	return r.index, r.err
}

// MustSetup is like Setup but panics on error. It suits registries built from
// compiled-in mappings that tests already cover.
func (r *Registry) MustSetup() *Index {
	idx, err := r.Setup()
	if err != nil {
		panic(err)
	}
	return idx
}

func buildIndex(aggregators map[string]aggregate.Aggregator, ids map[string]int) (*Index, error) {
	idx := &Index{
		statics:      make(map[string]aggregate.Static),
		otfs:         make(map[string]aggregate.OTF),
		nameByType:   make(map[reflect.Type]string),
		byID:         make(map[int]aggregate.Static),
		ids:          maps.Clone(ids),
		constituents: make(map[string][]string),
	}

	for _, name := range sortedNames(aggregators) {
		switch agg := aggregators[name].(type) {
		case aggregate.Static:
			idx.statics[name] = agg
		case aggregate.OTF:
			idx.otfs[name] = agg
		default:
			return nil, &ConfigError{Name: name, Type: aggregate.TypeName(aggregate.TypeOf(agg)), Err: ErrUnsupportedAggregator}
		}
	}

	for _, name := range sortedNames(idx.statics) {
		idx.nameByType[aggregate.TypeOf(idx.statics[name])] = name
	}

	owners := make(map[int]string, len(ids))
	for _, name := range sortedNames(ids) {
		id := ids[name]
		static, ok := idx.statics[name]
		if !ok {
			return nil, &ConfigError{Name: name, Reason: fmt.Sprintf("identifier %d has no static aggregator", id), Err: ErrUnknownStaticAggregator}
		}
		if prev, taken := owners[id]; taken {
			return nil, &ConfigError{Name: name, Type: aggregate.TypeName(aggregate.TypeOf(static)),
				Reason: fmt.Sprintf("identifier %d already assigned to %q", id, prev), Err: ErrIdentifierCollision}
		}
		owners[id] = name
		idx.byID[id] = static
	}

	for _, name := range sortedNames(idx.otfs) {
		otf := idx.otfs[name]
		children := otf.ChildAggregators()
		resolved := make([]string, 0, len(children))
		for _, child := range children {
			childName, ok := idx.nameByType[normalize(child)]
			if !ok {
				return nil, &ConfigError{Name: name, Type: aggregate.TypeName(aggregate.TypeOf(otf)),
					Reason: fmt.Sprintf("child %s is not registered", aggregate.TypeName(child)), Err: ErrUnknownStaticAggregator}
			}
			resolved = append(resolved, childName)
		}
		idx.constituents[name] = resolved
	}

	return idx, nil
}

func normalize(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// IsAggregator reports whether name is a registered static or OTF aggregator.
func (x *Index) IsAggregator(name string) bool {
	if _, ok := x.statics[name]; ok {
		return true
	}
	_, ok := x.otfs[name]
	return ok
}

// IsStaticAggregator reports whether name is a registered static aggregator.
func (x *Index) IsStaticAggregator(name string) bool {
	_, ok := x.statics[name]
	return ok
}

// StaticAggregatorsByType returns implementation type → static aggregator name.
func (x *Index) StaticAggregatorsByType() map[reflect.Type]string {
	return maps.Clone(x.nameByType)
}

// StaticAggregatorByID returns identifier → static aggregator.
func (x *Index) StaticAggregatorByID() map[int]aggregate.Static {
	return maps.Clone(x.byID)
}

// StaticAggregatorsByName returns name → static aggregator.
func (x *Index) StaticAggregatorsByName() map[string]aggregate.Static {
	return maps.Clone(x.statics)
}

// IdentifiersByName returns static aggregator name → identifier.
func (x *Index) IdentifiersByName() map[string]int {
	return maps.Clone(x.ids)
}

// OTFAggregatorsByName returns name → OTF aggregator.
func (x *Index) OTFAggregatorsByName() map[string]aggregate.OTF {
	return maps.Clone(x.otfs)
}

// OTFConstituents returns OTF name → names of its constituent static
// aggregators, in the order the OTF aggregator declares its children.
func (x *Index) OTFConstituents() map[string][]string {
	out := make(map[string][]string, len(x.constituents))
	for name, names := range x.constituents {
		out[name] = slices.Clone(names)
	}
	return out
}

// Static returns the static aggregator registered under name.
func (x *Index) Static(name string) (aggregate.Static, bool) {
	s, ok := x.statics[name]
	return s, ok
}

// StaticByID returns the static aggregator with the given identifier.
func (x *Index) StaticByID(id int) (aggregate.Static, bool) {
	s, ok := x.byID[id]
	return s, ok
}

// OTF returns the OTF aggregator registered under name.
func (x *Index) OTF(name string) (aggregate.OTF, bool) {
	o, ok := x.otfs[name]
	return o, ok
}

// ID returns the identifier of a static aggregator.
func (x *Index) ID(name string) (int, bool) {
	id, ok := x.ids[name]
	return id, ok
}

// NameOf returns the name of the static aggregator implemented by t.
func (x *Index) NameOf(t reflect.Type) (string, bool) {
	name, ok := x.nameByType[normalize(t)]
	return name, ok
}

// Constituents returns the static aggregator names an OTF aggregator reads.
// The returned slice is a copy.
func (x *Index) Constituents(name string) ([]string, bool) {
	names, ok := x.constituents[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(names), true
}

// Names returns every registered aggregator name in sorted order.
func (x *Index) Names() []string {
	names := make([]string, 0, len(x.statics)+len(x.otfs))
	for name := range x.statics {
		names = append(names, name)
	}
	for name := range x.otfs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
