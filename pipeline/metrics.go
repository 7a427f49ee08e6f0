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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Metrics collects per-security build statistics on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	securities *prometheus.CounterVec
	rows       prometheus.Counter
	duration   prometheus.Histogram
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		Registry: prometheus.NewRegistry(),
		securities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pvpanel_securities_total",
			Help: "Number of securities processed, by outcome.",
		}, []string{"status"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvpanel_rows_total",
			Help: "Number of daily rows written.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pvpanel_security_duration_seconds",
			Help:    "Time spent building and saving one security.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	metrics.Registry.MustRegister(metrics.securities, metrics.rows, metrics.duration)

	return metrics
}

func (metrics *Metrics) observe(numRows int, elapsed time.Duration, err error) {
	if metrics == nil {
		return
	}

	metrics.duration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.securities.WithLabelValues(StatusFailed).Inc()
		return
	}

	metrics.securities.WithLabelValues(StatusSucceeded).Inc()
	metrics.rows.Add(float64(numRows))
}

// WriteTextfile writes the collected metrics in the node exporter textfile
// format
func (metrics *Metrics) WriteTextfile(fn string) error {
	return prometheus.WriteToTextfile(fn, metrics.Registry)
}
