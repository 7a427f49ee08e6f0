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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metric is the database form of one daily row's valuation. Nil pointers
// are stored as NULL.
type Metric struct {
	Ticker     string
	EventDate  time.Time
	PeriodEnd  *time.Time
	Close      float64
	MarketCap  *float64
	EV         *float64
	PE         *float64
	PEG        *float64
	EVtoGP     *float64
	PS         *float64
	EVtoSales  *float64
	SharesUsed float64
}

// NewMetric converts a daily row into its database form
func NewMetric(ticker string, shares float64, row *DailyRow) *Metric {
	metric := &Metric{
		Ticker:     ticker,
		EventDate:  row.Date,
		Close:      row.Close,
		MarketCap:  nullable(row.Valuation.MarketCap),
		EV:         nullable(row.Valuation.EV),
		PE:         nullable(row.Valuation.PE),
		PEG:        nullable(row.Valuation.PEG),
		EVtoGP:     nullable(row.Valuation.EVtoGP),
		PS:         nullable(row.Valuation.PS),
		EVtoSales:  nullable(row.Valuation.EVtoSales),
		SharesUsed: shares,
	}

	if periodEnd, ok := row.PeriodEnd(); ok {
		metric.PeriodEnd = &periodEnd
	}

	return metric
}

func nullable(val Value) *float64 {
	f, ok := val.Float()
	if !ok {
		return nil
	}

	return &f
}

func metricSQL(tbl string) string {
	return fmt.Sprintf(`INSERT INTO %[1]s (
		"ticker",
		"event_date",
		"period_end",
		"close",
		"market_cap",
		"ev",
		"pe",
		"peg",
		"ev_gp",
		"ps",
		"ev_s",
		"shares_outstanding"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey DO UPDATE SET
		period_end = EXCLUDED.period_end,
		close = EXCLUDED.close,
		market_cap = EXCLUDED.market_cap,
		ev = EXCLUDED.ev,
		pe = EXCLUDED.pe,
		peg = EXCLUDED.peg,
		ev_gp = EXCLUDED.ev_gp,
		ps = EXCLUDED.ps,
		ev_s = EXCLUDED.ev_s,
		shares_outstanding = EXCLUDED.shares_outstanding`, tbl)
}

func (metric *Metric) args() []any {
	return []any{
		metric.Ticker,
		metric.EventDate,
		metric.PeriodEnd,
		metric.Close,
		metric.MarketCap,
		metric.EV,
		metric.PE,
		metric.PEG,
		metric.EVtoGP,
		metric.PS,
		metric.EVtoSales,
		metric.SharesUsed,
	}
}

func (metric *Metric) SaveDB(ctx context.Context, tbl string, dbConn *pgxpool.Conn) error {
	return SaveMetrics(ctx, tbl, dbConn, []*Metric{metric})
}

// SaveMetrics upserts metrics in a single transaction
func SaveMetrics(ctx context.Context, tbl string, dbConn *pgxpool.Conn, metrics []*Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return err
	}

	sql := metricSQL(tbl)
	batch := &pgx.Batch{}
	for _, metric := range metrics {
		batch.Queue(sql, metric.args()...)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error().Err(err).Str("SQL", sql).Object("Metric", metrics[0]).Msg("save metric to DB failed")
		if err2 := tx.Rollback(ctx); err2 != nil {
			log.Error().Err(err2).Msg("error rollingback tx")
		}

		return err
	}

	return tx.Commit(ctx)
}

func (metric *Metric) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", metric.Ticker)
	e.Time("Date", metric.EventDate)
}
