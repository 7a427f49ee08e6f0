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
package cik

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvpanel/data"
)

// LoadFromDB seeds the mapper with the CIKs stored in the securities table
func (mapper *Mapper) LoadFromDB(ctx context.Context, dbConn *pgxpool.Conn) error {
	tbl := data.DataTypes[data.SecuritiesKey].Table
	sql := fmt.Sprintf("SELECT ticker, cik, coalesce(shares_outstanding, 0) AS shares_outstanding FROM %s WHERE cik <> ''", tbl)

	var securities []*data.Security
	if err := pgxscan.Select(ctx, dbConn, &securities, sql); err != nil {
		log.Error().Err(err).Str("SQL", sql).Msg("load CIKs from DB failed")
		return err
	}

	for _, security := range securities {
		mapper.Set(security.Ticker, security.CIK)
	}

	return nil
}
