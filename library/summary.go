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
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/penny-vault/pvpanel/data"
)

// TableStats describes the contents of one library table
type TableStats struct {
	DataType   *data.DataType
	NumRecords int
	First      time.Time
	Last       time.Time
}

// Summary returns a description of the library in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	stats := make([]*TableStats, 0, len(data.DataTypeKeys))
	for _, key := range data.DataTypeKeys {
		dataType := data.DataTypes[key]
		count, err := myLibrary.NumRecords(ctx, dataType)
		if err != nil {
			return "", err
		}

		first, last, err := myLibrary.DateRange(ctx, dataType)
		if err != nil {
			return "", err
		}

		stats = append(stats, &TableStats{
			DataType:   dataType,
			NumRecords: count,
			First:      first,
			Last:       last,
		})
	}

	lastRun, ok, err := myLibrary.LastRun(ctx)
	if err != nil {
		return "", err
	}

	var run *data.RunSummary
	if ok {
		run = &lastRun
	}

	return FormatSummary(myLibrary.Name, myLibrary.DBUrl, stats, run), nil
}

// FormatSummary renders table statistics and the last run as markdown
func FormatSummary(name, dbURL string, stats []*TableStats, lastRun *data.RunSummary) string {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s\n", name))
	builder.WriteString("## Details\n\n")
	builder.WriteString(fmt.Sprintf("Database: %s\n\n", dbURL))

	if lastRun == nil {
		builder.WriteString("Last Build: Never\n\n")
	} else {
		age := timeago.English.Format(lastRun.EndTime)
		builder.WriteString(p.Sprintf("Last Build: %s (%s) %s, %d securities, %d failed, %d rows\n\n",
			age, lastRun.EndTime.Local().Format("01/02/2006"), lastRun.Status,
			lastRun.NumSecurities, lastRun.NumFailed, lastRun.NumRows))
	}

	builder.WriteString("## Tables\n\n")
	for _, stat := range stats {
		if stat.NumRecords == 0 {
			builder.WriteString(p.Sprintf("  * %s (%s): empty\n", stat.DataType.Name, stat.DataType.Table))
			continue
		}

		builder.WriteString(p.Sprintf("  * %s (%s): %d records (%s - %s)\n", stat.DataType.Name,
			stat.DataType.Table, stat.NumRecords, stat.First.Format("Jan 2006"), stat.Last.Format("Jan 2006")))
	}

	return builder.String()
}

// PanelStats describes the daily panel stored for one ticker
type PanelStats struct {
	Ticker    string    `db:"ticker"`
	NumRows   int       `db:"num_rows"`
	First     time.Time `db:"first_date"`
	Last      time.Time `db:"last_date"`
	Close     float64   `db:"close"`
	MarketCap *float64  `db:"market_cap"`
	PE        *float64  `db:"pe"`
}

// PanelStats returns row counts, date ranges and the latest valuation of the
// daily panels of tickers; every stored ticker when tickers is empty
func (myLibrary *Library) PanelStats(ctx context.Context, tickers []string) ([]*PanelStats, error) {
	var filter []string
	for _, ticker := range tickers {
		filter = append(filter, strings.ToUpper(ticker))
	}

	sql := fmt.Sprintf(`WITH span AS (
	SELECT ticker, count(*) AS num_rows, min(event_date)::timestamptz AS first_date, max(event_date)::timestamptz AS last_date
	FROM %[1]s WHERE ($1::text[] IS NULL OR ticker = ANY($1)) GROUP BY ticker
), latest AS (
	SELECT DISTINCT ON (ticker) ticker, close, market_cap, pe
	FROM %[1]s WHERE ($1::text[] IS NULL OR ticker = ANY($1)) ORDER BY ticker, event_date DESC
)
SELECT span.ticker, num_rows, first_date, last_date, close, market_cap, pe
FROM span JOIN latest USING (ticker) ORDER BY span.ticker`, table(data.MetricKey))

	var stats []*PanelStats
	if err := pgxscan.Select(ctx, myLibrary.Pool, &stats, sql, filter); err != nil {
		return nil, err
	}

	return stats, nil
}

// FormatPanelStats renders per-ticker panel statistics as a markdown table.
// Tickers that were asked for but have no rows are listed as missing.
func FormatPanelStats(stats []*PanelStats, requested []string) string {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString("## Panels\n\n")
	builder.WriteString("| Ticker | Rows | First | Last | Close | Market Cap | P/E |\n")
	builder.WriteString("|---|---:|---|---|---:|---:|---:|\n")

	found := make(map[string]bool, len(stats))
	for _, stat := range stats {
		found[stat.Ticker] = true
		builder.WriteString(p.Sprintf("| %s | %d | %s | %s | %.2f | %s | %s |\n", stat.Ticker, stat.NumRows,
			stat.First.Format("2006-01-02"), stat.Last.Format("2006-01-02"), stat.Close,
			optional(p, "%.0f", stat.MarketCap), optional(p, "%.1f", stat.PE)))
	}

	for _, ticker := range requested {
		ticker = strings.ToUpper(ticker)
		if !found[ticker] {
			builder.WriteString(fmt.Sprintf("| %s | missing | | | | | |\n", ticker))
		}
	}

	return builder.String()
}

func optional(p *message.Printer, format string, val *float64) string {
	if val == nil {
		return "NA"
	}

	return p.Sprintf(format, *val)
}
