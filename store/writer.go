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
package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/gocarina/gocsv"
	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/penny-vault/pvpanel/data"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatJSONL   = "jsonl"

	PanelBaseName = "daily_panel"
	dateLayout    = "2006-01-02"
)

// Formats are the supported output formats
var Formats = []string{FormatCSV, FormatParquet, FormatJSONL}

// PanelDir returns the output directory of ticker
func (files *Files) PanelDir(ticker string) string {
	return filepath.Join(files.OutputDir, slug.Make(ticker))
}

// Save writes the panel in every configured format
func (files *Files) Save(ctx context.Context, panel *data.DailyPanel) error {
	_, err := files.SavePaths(ctx, panel)
	return err
}

// SavePaths writes the panel in every configured format and returns the
// names of the files written
func (files *Files) SavePaths(ctx context.Context, panel *data.DailyPanel) ([]string, error) {
	dir := files.PanelDir(panel.Ticker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Str("Directory", dir).Msg("cannot create output directory")
		return nil, err
	}

	written := make([]string, 0, len(files.Formats))
	for _, format := range files.Formats {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		fn := filepath.Join(dir, fmt.Sprintf("%s.%s", PanelBaseName, format))

		var err error
		switch format {
		case FormatCSV:
			err = WriteCSV(fn, panel, files.MissingMarker)
		case FormatParquet:
			err = WriteParquet(fn, panel)
		case FormatJSONL:
			err = WriteJSONLines(fn, panel)
		default:
			err = fmt.Errorf("unknown output format %q", format)
		}

		if err != nil {
			log.Error().Err(err).Str("Ticker", panel.Ticker).Str("FileName", fn).Msg("write daily panel failed")
			return written, err
		}

		written = append(written, fn)
	}

	return written, nil
}

// cells renders one row in column order
func cells(panel *data.DailyPanel, row *data.DailyRow, marker string) []string {
	columns := panel.Columns()
	out := make([]string, len(columns))
	for idx, col := range columns {
		if col == data.DateColumn {
			out[idx] = row.Date.Format(dateLayout)
			continue
		}

		out[idx] = row.Get(col).Format(marker)
	}

	return out
}

// WriteCSV writes the panel as a delimited file; missing cells hold marker
func WriteCSV(fn string, panel *data.DailyPanel, marker string) error {
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(fh))
	if err := csvWriter.Write(panel.Columns()); err != nil {
		return err
	}

	for _, row := range panel.Rows {
		if err := csvWriter.Write(cells(panel, row, marker)); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// WriteJSONLines writes one JSON object per row; missing cells are null
func WriteJSONLines(fn string, panel *data.DailyPanel) error {
	fh, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer fh.Close()

	buf := bufio.NewWriter(fh)
	for _, row := range panel.Rows {
		line, err := rowJSON(panel, row, nil)
		if err != nil {
			return err
		}

		if _, err := buf.Write(line); err != nil {
			return err
		}

		if err := buf.WriteByte('\n'); err != nil {
			return err
		}
	}

	return buf.Flush()
}

// rowJSON encodes one row as a JSON object whose keys follow the panel's
// column order, optionally renamed
func rowJSON(panel *data.DailyPanel, row *data.DailyRow, names map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, col := range panel.Columns() {
		name := col
		if names != nil {
			name = names[col]
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}

		var val []byte
		if col == data.DateColumn {
			val, err = json.Marshal(row.Date.Format(dateLayout))
		} else {
			val, err = json.Marshal(row.Get(col))
		}
		if err != nil {
			return nil, err
		}

		if idx > 0 {
			buf.WriteByte(',')
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParquetName converts a column name into a parquet field name
func ParquetName(col string) string {
	col = strings.ReplaceAll(col, "%", "pct")
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}

		return '_'
	}, col)
}

type parquetSchema struct {
	Tag    string
	Fields []parquetSchema `json:",omitempty"`
}

// parquetColumns builds the JSON schema of the panel together with the field
// name of each column
func parquetColumns(panel *data.DailyPanel) (string, map[string]string, error) {
	columns := panel.Columns()
	names := make(map[string]string, len(columns))
	used := make(map[string]struct{}, len(columns))
	suffix := make(map[string]int)
	schema := parquetSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: make([]parquetSchema, 0, len(columns)),
	}

	for _, col := range columns {
		name := ParquetName(col)
		if _, taken := used[name]; taken {
			base := name
			for {
				suffix[base]++
				name = fmt.Sprintf("%s_%d", base, suffix[base])
				if _, taken := used[name]; !taken {
					break
				}
			}
		}

		used[name] = struct{}{}
		names[col] = name
		if col == data.DateColumn {
			schema.Fields = append(schema.Fields, parquetSchema{
				Tag: fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED", name),
			})
			continue
		}

		schema.Fields = append(schema.Fields, parquetSchema{
			Tag: fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name),
		})
	}

	b, err := json.Marshal(schema)
	return string(b), names, err
}

// WriteParquet writes the panel as a ZSTD-compressed parquet file with one
// optional double column per panel column
func WriteParquet(fn string, panel *data.DailyPanel) error {
	schema, names, err := parquetColumns(panel)
	if err != nil {
		return err
	}

	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewJSONWriter(schema, fh, 4)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("parquet writer creation failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, row := range panel.Rows {
		rec, err := rowJSON(panel, row, names)
		if err != nil {
			return err
		}

		if err := pw.Write(string(rec)); err != nil {
			log.Error().Err(err).Str("Ticker", panel.Ticker).Time("Date", row.Date).Msg("parquet write failed for row")
			return err
		}
	}

	if err := pw.WriteStop(); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("parquet write failed")
		return err
	}

	return nil
}
