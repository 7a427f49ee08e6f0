// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package data

import (
	"math"
	"strconv"
	"strings"
)

// Value is a float that may be missing. The zero value is missing.
//
// Arithmetic on values never produces NaN or infinity: any operation with a
// missing operand is missing and division by exactly zero is missing.
type Value struct {
	v  float64
	ok bool
}

// Missing is the explicit missing value
var Missing = Value{}

// Of wraps f; NaN and +/-Inf become Missing
func Of(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing
	}

	return Value{v: f, ok: true}
}

// Float returns the underlying number and whether it is present
func (val Value) Float() (float64, bool) {
	return val.v, val.ok
}

// Present reports whether the value is not missing
func (val Value) Present() bool {
	return val.ok
}

// IsMissing reports whether the value is missing
func (val Value) IsMissing() bool {
	return !val.ok
}

// Or returns val when present and def otherwise
func (val Value) Or(def float64) Value {
	if val.ok {
		return val
	}

	return Of(def)
}

// IsZero reports whether the value is present and exactly zero
func (val Value) IsZero() bool {
	return val.ok && val.v == 0
}

func (val Value) Add(other Value) Value {
	if !val.ok || !other.ok {
		return Missing
	}

	return Of(val.v + other.v)
}

func (val Value) Sub(other Value) Value {
	if !val.ok || !other.ok {
		return Missing
	}

	return Of(val.v - other.v)
}

func (val Value) Mul(other Value) Value {
	if !val.ok || !other.ok {
		return Missing
	}

	return Of(val.v * other.v)
}

// Div divides val by other; a zero or missing denominator yields Missing
func (val Value) Div(other Value) Value {
	if !val.ok || !other.ok || other.v == 0 {
		return Missing
	}

	return Of(val.v / other.v)
}

// Equal reports whether both values are missing or both hold the same number
func (val Value) Equal(other Value) bool {
	if val.ok != other.ok {
		return false
	}

	return !val.ok || val.v == other.v
}

// Format renders the value with the shortest exact representation, or
// marker when missing
func (val Value) Format(marker string) string {
	if !val.ok {
		return marker
	}

	return strconv.FormatFloat(val.v, 'f', -1, 64)
}

func (val Value) String() string {
	return val.Format("NA")
}

// MarshalJSON encodes a missing value as null
func (val Value) MarshalJSON() ([]byte, error) {
	if !val.ok {
		return []byte("null"), nil
	}

	return strconv.AppendFloat(nil, val.v, 'g', -1, 64), nil
}

// UnmarshalJSON decodes null (or any non-number) as missing
func (val *Value) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*val = Missing
		return nil
	}

	*val = Of(f)
	return nil
}

// ParseValue converts a text cell into a Value. Empty, "NaN", "NA" and any
// non-numeric text are missing.
func ParseValue(s string) Value {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Missing
	}

	return Of(f)
}
