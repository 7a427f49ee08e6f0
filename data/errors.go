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
	"errors"
	"time"
)

var (
	ErrDuplicatePeriod = errors.New("duplicate date in sequence")
	ErrNotMonotonic    = errors.New("dates are not in increasing order")
	ErrEmptyPrices     = errors.New("price series is empty")
	ErrInvalidShares   = errors.New("shares outstanding must be a positive finite number")
)

// CivilDate reduces t to its calendar day in t's own location, encoded as
// YYYYMMDD so that dates order as integers.
func CivilDate(t time.Time) int {
	year, month, day := t.Date()
	return year*10000 + int(month)*100 + day
}

// checkIncreasing verifies that dates, compared as civil dates, are strictly
// increasing. It reports the index of the first offending element.
func checkIncreasing(n int, date func(int) time.Time) (int, error) {
	for idx := 1; idx < n; idx++ {
		prev := CivilDate(date(idx - 1))
		curr := CivilDate(date(idx))
		switch {
		case curr == prev:
			return idx, ErrDuplicatePeriod
		case curr < prev:
			return idx, ErrNotMonotonic
		}
	}

	return -1, nil
}
