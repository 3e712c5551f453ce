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

package aggregate

import (
	"fmt"
	"reflect"
)

// Avg is the arithmetic mean, derived from a Sum and a Count.
type Avg struct{}

func (Avg) Describe() string { return "average of values" }

func (Avg) ChildAggregators() []reflect.Type {
	return []reflect.Type{TypeOf(Sum{}), TypeOf(Count{})}
}

// Compute expects the sum followed by the count. An empty set averages to 0.
func (Avg) Compute(inputs ...float64) (float64, error) {
	if len(inputs) != 2 {
		return 0, fmt.Errorf("avg expects 2 inputs (sum, count), got %d", len(inputs))
	}
	sum, count := inputs[0], inputs[1]
	if count == 0 {
		return 0, nil
	}
	return sum / count, nil
}

// Range is the spread between the largest and smallest values.
type Range struct{}

func (Range) Describe() string { return "max minus min" }

func (Range) ChildAggregators() []reflect.Type {
	return []reflect.Type{TypeOf(Max{}), TypeOf(Min{})}
}

func (Range) Compute(inputs ...float64) (float64, error) {
	if len(inputs) != 2 {
		return 0, fmt.Errorf("range expects 2 inputs (max, min), got %d", len(inputs))
	}
	return inputs[0] - inputs[1], nil
}
