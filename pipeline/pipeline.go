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
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/penny-vault/pvpanel/align"
	"github.com/penny-vault/pvpanel/data"
	"github.com/penny-vault/pvpanel/enrich"
	"github.com/penny-vault/pvpanel/valuation"
)

// Source provides the per-security inputs of a run
type Source interface {
	// Securities lists the universe to build
	Securities(ctx context.Context) ([]*data.Security, error)

	// Quarterly returns the raw fundamentals of a security; a nil panel means
	// the security has no reported facts
	Quarterly(ctx context.Context, security *data.Security) (*data.QuarterlyPanel, error)

	// Prices returns the daily price history of a security in date order
	Prices(ctx context.Context, security *data.Security) ([]*data.Eod, error)
}

// Sink persists finished daily panels
type Sink interface {
	Save(ctx context.Context, panel *data.DailyPanel) error
}

// Pipeline builds a daily panel for every security of a source
type Pipeline struct {
	Source      Source
	Sinks       []Sink
	Vocabulary  data.Vocabulary
	Concurrency int
	Metrics     *Metrics
}

func New(source Source, vocab data.Vocabulary, sinks ...Sink) *Pipeline {
	return &Pipeline{
		Source:      source,
		Sinks:       sinks,
		Vocabulary:  vocab,
		Concurrency: 4,
		Metrics:     NewMetrics(),
	}
}

// Build runs enrichment, alignment and valuation for one security
func Build(vocab data.Vocabulary, quarterly *data.QuarterlyPanel, prices []*data.Eod, sharesOutstanding float64) (*data.DailyPanel, error) {
	if err := enrich.New(vocab).Enrich(quarterly); err != nil {
		return nil, err
	}

	panel, err := align.AsOf(quarterly, prices)
	if err != nil {
		return nil, err
	}

	if err := valuation.New(vocab).Derive(panel, sharesOutstanding); err != nil {
		return nil, err
	}

	return panel, nil
}

// Run builds every security of the source. A failing security is logged and
// counted but does not stop the batch; only a failure to list securities or
// cancellation of ctx aborts the run.
func (pipeline *Pipeline) Run(ctx context.Context) (data.RunSummary, error) {
	summary := data.RunSummary{
		ID:        uuid.New(),
		StartTime: time.Now(),
	}

	securities, err := pipeline.Source.Securities(ctx)
	if err != nil {
		summary.Finish(err)
		return summary, fmt.Errorf("list securities: %w", err)
	}

	summary.NumSecurities = len(securities)
	log.Info().Int("NumSecurities", len(securities)).Str("RunID", summary.ID.String()).Msg("starting panel build")

	concurrency := pipeline.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, security := range securities {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			start := time.Now()
			numRows, err := pipeline.process(groupCtx, security)
			pipeline.Metrics.observe(numRows, time.Since(start), err)

			mu.Lock()
			if err != nil {
				summary.NumFailed++
			} else {
				summary.NumRows += numRows
			}
			mu.Unlock()

			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}

				log.Error().Err(err).Str("Ticker", security.Ticker).Msg("building daily panel failed")
			}

			return nil
		})
	}

	err = group.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}

	summary.Finish(err)
	log.Info().Object("Run", &summary).Msg("panel build finished")

	return summary, err
}

func (pipeline *Pipeline) process(ctx context.Context, security *data.Security) (int, error) {
	quarterly, err := pipeline.Source.Quarterly(ctx, security)
	if err != nil {
		return 0, fmt.Errorf("load fundamentals: %w", err)
	}

	prices, err := pipeline.Source.Prices(ctx, security)
	if err != nil {
		return 0, fmt.Errorf("load prices: %w", err)
	}

	panel, err := Build(pipeline.Vocabulary, quarterly, prices, security.SharesOutstanding)
	if err != nil {
		return 0, err
	}

	if panel.Ticker == "" {
		panel.Ticker = security.Ticker
	}

	for _, sink := range pipeline.Sinks {
		if err := sink.Save(ctx, panel); err != nil {
			return 0, fmt.Errorf("save panel: %w", err)
		}
	}

	log.Debug().Object("Panel", panel).Msg("saved daily panel")

	return panel.Len(), nil
}
