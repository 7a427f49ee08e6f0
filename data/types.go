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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Security is one entry of the securities universe
type Security struct {
	Ticker            string  `json:"ticker" csv:"ticker" db:"ticker" toml:"ticker"`
	CIK               string  `json:"cik" csv:"cik" db:"cik" toml:"cik"`
	SharesOutstanding float64 `json:"shares_outstanding" csv:"shares_outstanding" db:"shares_outstanding" toml:"shares_outstanding"`
}

func (security *Security) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", security.Ticker)
	e.Str("CIK", security.CIK)
	e.Float64("SharesOutstanding", security.SharesOutstanding)
}

func (security *Security) SaveDB(ctx context.Context, tbl string, dbConn *pgxpool.Conn) error {
	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"ticker",
		"cik",
		"shares_outstanding",
		"last_updated"
	) VALUES (
		$1, $2, $3, now()
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		cik = EXCLUDED.cik,
		shares_outstanding = EXCLUDED.shares_outstanding,
		last_updated = now()`, tbl)

	if _, err := dbConn.Exec(ctx, sql, security.Ticker, security.CIK, security.SharesOutstanding); err != nil {
		log.Error().Err(err).Str("SQL", sql).Object("Security", security).Msg("save security to DB failed")
		return err
	}

	return nil
}

// RunStatus is the outcome of a batch run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// RunSummary records the outcome of one pipeline run
type RunSummary struct {
	ID            uuid.UUID `db:"id"`
	StartTime     time.Time `db:"start_time"`
	EndTime       time.Time `db:"end_time"`
	NumSecurities int       `db:"num_securities"`
	NumFailed     int       `db:"num_failed"`
	NumRows       int       `db:"num_rows"`
	Status        RunStatus `db:"status"`
}

// Finish stamps the end time and derives the run status from the counts
func (summary *RunSummary) Finish(err error) {
	summary.EndTime = time.Now()

	switch {
	case err != nil:
		summary.Status = RunCanceled
	case summary.NumSecurities > 0 && summary.NumFailed == summary.NumSecurities:
		summary.Status = RunFailed
	case summary.NumFailed > 0:
		summary.Status = RunPartial
	default:
		summary.Status = RunSucceeded
	}
}

func (summary *RunSummary) Duration() time.Duration {
	return summary.EndTime.Sub(summary.StartTime)
}

func (summary *RunSummary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("RunID", summary.ID.String())
	e.Int("NumSecurities", summary.NumSecurities)
	e.Int("NumFailed", summary.NumFailed)
	e.Int("NumRows", summary.NumRows)
	e.Str("Status", string(summary.Status))
	e.Dur("Duration", summary.Duration())
}

func (summary *RunSummary) SaveDB(ctx context.Context, tbl string, dbConn *pgxpool.Conn) error {
	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"id",
		"start_time",
		"end_time",
		"num_securities",
		"num_failed",
		"num_rows",
		"status"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		end_time = EXCLUDED.end_time,
		num_securities = EXCLUDED.num_securities,
		num_failed = EXCLUDED.num_failed,
		num_rows = EXCLUDED.num_rows,
		status = EXCLUDED.status`, tbl)

	if _, err := dbConn.Exec(ctx, sql, summary.ID, summary.StartTime, summary.EndTime,
		summary.NumSecurities, summary.NumFailed, summary.NumRows, string(summary.Status)); err != nil {
		log.Error().Err(err).Str("SQL", sql).Object("Run", summary).Msg("save run summary to DB failed")
		return err
	}

	return nil
}

// EconomicIndicator is a single observation of a macro-economic series
type EconomicIndicator struct {
	Series    string    `json:"series" db:"series"`
	EventDate time.Time `json:"event_date" db:"event_date"`
	Value     float64   `json:"value" db:"value"`
}

func (indicator *EconomicIndicator) SaveDB(ctx context.Context, tbl string, dbConn *pgxpool.Conn) error {
	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"series",
		"event_date",
		"value"
	) VALUES (
		$1, $2, $3
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		value = EXCLUDED.value`, tbl)

	if _, err := dbConn.Exec(ctx, sql, indicator.Series, indicator.EventDate, indicator.Value); err != nil {
		log.Error().Err(err).Str("SQL", sql).Str("Series", indicator.Series).Msg("save economic indicator to DB failed")
		return err
	}

	return nil
}
