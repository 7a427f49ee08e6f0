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
package library

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvpanel/data"
)

type Library struct {
	DBUrl string
	Name  string
	Owner string

	Pool *pgxpool.Pool
}

// Fact is one row of the long-format fundamentals table
type Fact struct {
	PeriodEnd time.Time `db:"period_end"`
	Tag       string    `db:"tag"`
	Value     float64   `db:"value"`
}

// Connect to the database configured for the library
func (myLibrary *Library) Connect(ctx context.Context) error {
	if myLibrary.Pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, myLibrary.DBUrl)
	if err != nil {
		return err
	}
	myLibrary.Pool = pool

	return nil
}

// Close the database pool
func (myLibrary *Library) Close() {
	if myLibrary != nil && myLibrary.Pool != nil {
		myLibrary.Pool.Close()
	}
}

// NewFromDB creates a new library object with values from the database
func NewFromDB(ctx context.Context, dbURL string) (*Library, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	myLibrary := Library{
		DBUrl: dbURL,
		Pool:  pool,
	}

	if err := conn.QueryRow(ctx, "SELECT name, owner FROM library").Scan(&myLibrary.Name, &myLibrary.Owner); err != nil {
		return nil, err
	}

	return &myLibrary, nil
}

// SaveDB creates a new record in the library table for this library
func (myLibrary *Library) SaveDB(ctx context.Context) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `INSERT INTO library ("name", "owner") VALUES ($1, $2)`, myLibrary.Name, myLibrary.Owner)
	return err
}

func table(key string) string {
	return data.DataTypes[key].Table
}

// Securities returns the universe stored in the library ordered by ticker
func (myLibrary *Library) Securities(ctx context.Context) ([]*data.Security, error) {
	var securities []*data.Security
	err := pgxscan.Select(ctx, myLibrary.Pool, &securities,
		fmt.Sprintf(`SELECT ticker, cik, coalesce(shares_outstanding, 0) AS shares_outstanding FROM %s ORDER BY ticker`,
			table(data.SecuritiesKey)))
	return securities, err
}

// Quarterly loads the stored facts of a security. A security without facts
// yields a nil panel.
func (myLibrary *Library) Quarterly(ctx context.Context, security *data.Security) (*data.QuarterlyPanel, error) {
	var facts []*Fact
	err := pgxscan.Select(ctx, myLibrary.Pool, &facts,
		fmt.Sprintf(`SELECT period_end, tag, value FROM %s WHERE ticker=$1 ORDER BY period_end, tag`,
			table(data.FundamentalsKey)), security.Ticker)
	if err != nil {
		return nil, err
	}

	if len(facts) == 0 {
		return nil, nil
	}

	return PanelFromFacts(security.Ticker, facts), nil
}

// PanelFromFacts pivots long-format facts ordered by period end into a
// quarterly panel
func PanelFromFacts(ticker string, facts []*Fact) *data.QuarterlyPanel {
	var records []*data.FundamentalRecord
	var current *data.FundamentalRecord
	for _, fact := range facts {
		if current == nil || data.CivilDate(current.PeriodEnd) != data.CivilDate(fact.PeriodEnd) {
			current = data.NewFundamentalRecord(fact.PeriodEnd)
			records = append(records, current)
		}

		current.Set(fact.Tag, data.Of(fact.Value))
	}

	return data.NewQuarterlyPanel(ticker, records)
}

// Prices loads the end-of-day history of a security in date order
func (myLibrary *Library) Prices(ctx context.Context, security *data.Security) ([]*data.Eod, error) {
	var prices []*data.Eod
	err := pgxscan.Select(ctx, myLibrary.Pool, &prices,
		fmt.Sprintf(`SELECT ticker, event_date, coalesce(open, 0) AS open, coalesce(high, 0) AS high,
coalesce(low, 0) AS low, close, coalesce(volume, 0) AS volume, coalesce(dividend, 0) AS dividend,
coalesce(split_factor, 1) AS split_factor FROM %s WHERE ticker=$1 ORDER BY event_date`,
			table(data.EODKey)), security.Ticker)
	return prices, err
}

// Indicators loads the observations of one economic series in date order
func (myLibrary *Library) Indicators(ctx context.Context, series string) ([]*data.EconomicIndicator, error) {
	var observations []*data.EconomicIndicator
	err := pgxscan.Select(ctx, myLibrary.Pool, &observations,
		fmt.Sprintf(`SELECT series, event_date, value FROM %s WHERE series=$1 ORDER BY event_date`,
			table(data.IndicatorKey)), series)
	return observations, err
}

// Save stores the valuation of every row of a daily panel
func (myLibrary *Library) Save(ctx context.Context, panel *data.DailyPanel) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	metrics := make([]*data.Metric, len(panel.Rows))
	for idx, row := range panel.Rows {
		metrics[idx] = data.NewMetric(panel.Ticker, panel.SharesOutstanding, row)
	}

	if err := data.SaveMetrics(ctx, table(data.MetricKey), conn, metrics); err != nil {
		return err
	}

	log.Debug().Object("Panel", panel).Msg("saved daily metrics")
	return nil
}

// SaveSecurity upserts a security of the universe
func (myLibrary *Library) SaveSecurity(ctx context.Context, security *data.Security) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return security.SaveDB(ctx, table(data.SecuritiesKey), conn)
}

// SaveQuarterly stores every present fact of a quarterly panel
func (myLibrary *Library) SaveQuarterly(ctx context.Context, panel *data.QuarterlyPanel) error {
	if panel == nil {
		return nil
	}

	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, record := range panel.Records {
		if err := record.SaveDB(ctx, table(data.FundamentalsKey), panel.Ticker, conn); err != nil {
			return err
		}
	}

	return nil
}

// SavePrices stores end-of-day quotes
func (myLibrary *Library) SavePrices(ctx context.Context, prices []*data.Eod) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, eod := range prices {
		if err := eod.SaveDB(ctx, table(data.EODKey), conn); err != nil {
			return err
		}
	}

	return nil
}

// SaveIndicators stores economic series observations
func (myLibrary *Library) SaveIndicators(ctx context.Context, observations []*data.EconomicIndicator) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, obs := range observations {
		if err := obs.SaveDB(ctx, table(data.IndicatorKey), conn); err != nil {
			return err
		}
	}

	return nil
}

// SaveRun records the outcome of a pipeline run
func (myLibrary *Library) SaveRun(ctx context.Context, summary *data.RunSummary) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return summary.SaveDB(ctx, table(data.RunKey), conn)
}

// LastRun returns the most recently finished run; ok is false when the
// library has never been built
func (myLibrary *Library) LastRun(ctx context.Context) (summary data.RunSummary, ok bool, err error) {
	var runs []*data.RunSummary
	err = pgxscan.Select(ctx, myLibrary.Pool, &runs,
		fmt.Sprintf(`SELECT id, start_time, coalesce(end_time, start_time) AS end_time, num_securities,
num_failed, num_rows, status FROM %s ORDER BY start_time DESC LIMIT 1`, table(data.RunKey)))
	if err != nil || len(runs) == 0 {
		return data.RunSummary{}, false, err
	}

	return *runs[0], true, nil
}

// NumRecords returns the row count of the table holding a data type
func (myLibrary *Library) NumRecords(ctx context.Context, dataType *data.DataType) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", dataType.Table)).Scan(&count)
	return count, err
}

// DateRange returns the first and last dates stored for a data type
func (myLibrary *Library) DateRange(ctx context.Context, dataType *data.DataType) (first, last time.Time, err error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return
	}
	defer conn.Release()

	err = conn.QueryRow(ctx, fmt.Sprintf(`SELECT coalesce(min(%[1]s)::timestamptz, '0001-01-01'::timestamptz),
coalesce(max(%[1]s)::timestamptz, '0001-01-01'::timestamptz) FROM %[2]s`, dataType.DateColumn, dataType.Table)).Scan(&first, &last)
	return
}
