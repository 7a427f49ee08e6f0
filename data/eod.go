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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Eod is a single end-of-day quote. Only Date and Close are used when
// building a daily panel.
type Eod struct {
	Date     time.Time `json:"date" db:"event_date"`
	Ticker   string    `json:"ticker" db:"ticker"`
	Open     float64   `json:"open" db:"open"`
	High     float64   `json:"high" db:"high"`
	Low      float64   `json:"low" db:"low"`
	Close    float64   `json:"close" db:"close"`
	Volume   float64   `json:"volume" db:"volume"`
	Dividend float64   `json:"divCash" db:"dividend"`
	Split    float64   `json:"splitFactor" db:"split_factor"`
}

// ValidatePrices checks that prices is non-empty with strictly increasing
// trading dates
func ValidatePrices(ticker string, prices []*Eod) error {
	if len(prices) == 0 {
		return fmt.Errorf("%s: %w", ticker, ErrEmptyPrices)
	}

	idx, err := checkIncreasing(len(prices), func(i int) time.Time {
		return prices[i].Date
	})

	if err != nil {
		return fmt.Errorf("%s price %d (%s): %w", ticker, idx, prices[idx].Date.Format("2006-01-02"), err)
	}

	return nil
}

func (eod *Eod) SaveDB(ctx context.Context, tbl string, dbConn *pgxpool.Conn) error {
	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return err
	}

	sql := fmt.Sprintf(`INSERT INTO %[1]s (
		"ticker",
		"event_date",
		"open",
		"high",
		"low",
		"close",
		"volume",
		"dividend",
		"split_factor"
	) VALUES (
		$1,
		$2,
		$3,
		$4,
		$5,
		$6,
		$7,
		$8,
		$9
	) ON CONFLICT ON CONSTRAINT %[1]s_pkey
	DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		dividend = EXCLUDED.dividend,
		split_factor = EXCLUDED.split_factor;`, tbl)

	_, err = tx.Exec(ctx, sql, eod.Ticker, eod.Date,
		eod.Open, eod.High, eod.Low, eod.Close, eod.Volume, eod.Dividend,
		eod.Split)
	if err != nil {
		log.Error().Err(err).Str("SQL", sql).Str("Ticker", eod.Ticker).Msg("error saving EOD quote to database")
		if err2 := tx.Rollback(ctx); err2 != nil {
			log.Error().Err(err2).Msg("error rollingback tx")
		}

		return err
	}

	return tx.Commit(ctx)
}
