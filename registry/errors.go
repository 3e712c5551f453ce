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
	"errors"
	"fmt"
)

// Configuration error kinds. Every error returned by New or Setup is a
// *ConfigError wrapping one of these.
var (
	// ErrInvalidConfig reports a malformed pairing between an aggregator and
	// its identifier, or otherwise unusable input mappings.
	ErrInvalidConfig = errors.New("invalid aggregator configuration")
	// ErrUnsupportedAggregator reports a handle that is neither Static nor OTF
	// (or claims to be both).
	ErrUnsupportedAggregator = errors.New("unsupported aggregator type")
	// ErrUnknownStaticAggregator reports a reference to a static aggregator
	// that is not registered.
	ErrUnknownStaticAggregator = errors.New("unknown static aggregator")
	// ErrIdentifierCollision reports two static aggregators resolving to the
	// same identifier.
	ErrIdentifierCollision = errors.New("aggregator identifier collision")
)

// ConfigError provides structured information about a rejected registry entry.
type ConfigError struct {
	Name   string // Aggregator name the error concerns, if any
	Type   string // Fully qualified implementation type, if known
	Reason string // Human-readable detail
	Err    error  // One of the Err* kinds above
}

func (e *ConfigError) Error() string {
	msg := e.Err.Error()
	if e.Name != "" {
		msg += fmt.Sprintf(": aggregator %q", e.Name)
	}
	if e.Type != "" {
		msg += fmt.Sprintf(" (type %s)", e.Type)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err was produced by registry validation or setup.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
