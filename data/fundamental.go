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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FundamentalRecord holds the accounting facts reported for one fiscal
// period. Known line items live in typed slots; anything else is kept in a
// side-table keyed by the tag name.
type FundamentalRecord struct {
	// PeriodEnd is the last day of the fiscal period the facts apply to
	PeriodEnd time.Time

	known    [numTags]Value
	declared uint64
	extra    map[string]Value
}

func NewFundamentalRecord(periodEnd time.Time) *FundamentalRecord {
	return &FundamentalRecord{
		PeriodEnd: periodEnd,
		extra:     make(map[string]Value),
	}
}

// Value returns the typed slot for tag
func (record *FundamentalRecord) Value(tag Tag) Value {
	return record.known[tag]
}

// Get returns the value stored under name, or Missing
func (record *FundamentalRecord) Get(name string) Value {
	if tag, ok := LookupTag(name); ok {
		return record.known[tag]
	}

	return record.extra[name]
}

// Set stores val under name and declares the tag on the record. Missing
// values are stored too: a declared but missing cell still makes the column
// part of the panel.
func (record *FundamentalRecord) Set(name string, val Value) {
	if tag, ok := LookupTag(name); ok {
		record.SetTag(tag, val)
		return
	}

	if record.extra == nil {
		record.extra = make(map[string]Value)
	}

	record.extra[name] = val
}

func (record *FundamentalRecord) SetTag(tag Tag, val Value) {
	record.known[tag] = val
	record.declared |= 1 << uint(tag)
}

// Declares reports whether the record carries a cell for name, even if the
// cell is missing
func (record *FundamentalRecord) Declares(name string) bool {
	if tag, ok := LookupTag(name); ok {
		return record.declared&(1<<uint(tag)) != 0
	}

	_, ok := record.extra[name]
	return ok
}

// Declared lists the record's tags: typed tags in Tag order followed by
// side-table tags sorted by name
func (record *FundamentalRecord) Declared() []string {
	names := make([]string, 0, int(numTags)+len(record.extra))
	for tag := Tag(0); tag < numTags; tag++ {
		if record.declared&(1<<uint(tag)) != 0 {
			names = append(names, tag.String())
		}
	}

	extra := make([]string, 0, len(record.extra))
	for name := range record.extra {
		extra = append(extra, name)
	}

	sort.Strings(extra)
	return append(names, extra...)
}

func (record *FundamentalRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Time("PeriodEnd", record.PeriodEnd)
	e.Int("NumTags", len(record.Declared()))
}

// SaveDB upserts every present fact of the record into the long-format
// fundamentals table
func (record *FundamentalRecord) SaveDB(ctx context.Context, tbl string, ticker string, dbConn *pgxpool.Conn) error {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"ticker",
		"period_end",
		"tag",
		"value"
	) VALUES (
		$1, $2, $3, $4
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		value = EXCLUDED.value`, tbl)

	batch := &pgx.Batch{}
	for _, name := range record.Declared() {
		val, ok := record.Get(name).Float()
		if !ok {
			continue
		}

		batch.Queue(sql, ticker, record.PeriodEnd, name, val)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error().Err(err).Str("SQL", sql).Str("Ticker", ticker).Object("Record", record).Msg("save fundamental to DB failed")
		if err2 := tx.Rollback(ctx); err2 != nil {
			log.Error().Err(err2).Msg("error rollingback tx")
		}

		return err
	}

	return tx.Commit(ctx)
}

// QuarterlyPanel is one security's ordered history of fundamental records
// together with the union of the columns its records declare.
type QuarterlyPanel struct {
	Ticker  string
	Records []*FundamentalRecord

	columns []string
	colSet  map[string]struct{}
}

// NewQuarterlyPanel builds a panel whose column set is the union of the
// tags declared by records, in first-seen order
func NewQuarterlyPanel(ticker string, records []*FundamentalRecord) *QuarterlyPanel {
	panel := &QuarterlyPanel{
		Ticker:  ticker,
		Records: records,
		colSet:  make(map[string]struct{}),
	}

	for _, record := range records {
		for _, name := range record.Declared() {
			panel.AddColumn(name)
		}
	}

	return panel
}

// Len returns the number of records
func (panel *QuarterlyPanel) Len() int {
	if panel == nil {
		return 0
	}

	return len(panel.Records)
}

// Columns returns a copy of the panel's column names
func (panel *QuarterlyPanel) Columns() []string {
	if panel == nil {
		return nil
	}

	cols := make([]string, len(panel.columns))
	copy(cols, panel.columns)
	return cols
}

// HasColumn reports whether any record of the panel declares name
func (panel *QuarterlyPanel) HasColumn(name string) bool {
	if panel == nil {
		return false
	}

	_, ok := panel.colSet[name]
	return ok
}

// AddColumn appends name to the column set if it is not already there
func (panel *QuarterlyPanel) AddColumn(name string) {
	if panel.colSet == nil {
		panel.colSet = make(map[string]struct{})
	}

	if _, ok := panel.colSet[name]; ok {
		return
	}

	panel.colSet[name] = struct{}{}
	panel.columns = append(panel.columns, name)
}

// SortByPeriodEnd orders records by period end; records sharing a date keep
// their input order
func (panel *QuarterlyPanel) SortByPeriodEnd() {
	sort.SliceStable(panel.Records, func(i, j int) bool {
		return CivilDate(panel.Records[i].PeriodEnd) < CivilDate(panel.Records[j].PeriodEnd)
	})
}

// Validate checks that period ends are strictly increasing
func (panel *QuarterlyPanel) Validate() error {
	if panel == nil {
		return nil
	}

	idx, err := checkIncreasing(len(panel.Records), func(i int) time.Time {
		return panel.Records[i].PeriodEnd
	})

	if err != nil {
		return fmt.Errorf("%s quarterly record %d (%s): %w", panel.Ticker, idx,
			panel.Records[idx].PeriodEnd.Format("2006-01-02"), err)
	}

	return nil
}
