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
package cmd

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvpanel/store"
)

const (
	SourceFiles = "files"
	SourceDB    = "db"
)

// Config is the complete pvpanel configuration; keys mirror the TOML file
type Config struct {
	DB struct {
		URL string `mapstructure:"url" toml:"url"`
	} `mapstructure:"db" toml:"db"`

	Input struct {
		Securities string `mapstructure:"securities" toml:"securities"`
		FactsDir   string `mapstructure:"facts_dir" toml:"facts_dir" validate:"required"`
		PricesDir  string `mapstructure:"prices_dir" toml:"prices_dir" validate:"required"`
	} `mapstructure:"input" toml:"input"`

	Output struct {
		Dir           string   `mapstructure:"dir" toml:"dir" validate:"required"`
		Formats       []string `mapstructure:"formats" toml:"formats" validate:"min=1,dive,oneof=csv parquet jsonl"`
		MissingMarker string   `mapstructure:"missing_marker" toml:"missing_marker"`
		MetricsFile   string   `mapstructure:"metrics_file" toml:"metrics_file"`
	} `mapstructure:"output" toml:"output"`

	Build struct {
		Source      string `mapstructure:"source" toml:"source" validate:"oneof=files db"`
		SaveDB      bool   `mapstructure:"save_db" toml:"save_db"`
		Concurrency int    `mapstructure:"concurrency" toml:"concurrency" validate:"gte=1,lte=128"`
	} `mapstructure:"build" toml:"build"`

	Cache struct {
		Dir string        `mapstructure:"dir" toml:"dir"`
		TTL time.Duration `mapstructure:"ttl" toml:"ttl" validate:"gte=0"`
	} `mapstructure:"cache" toml:"cache"`

	SEC struct {
		UserAgent string `mapstructure:"user_agent" toml:"user_agent"`
	} `mapstructure:"sec" toml:"sec"`

	Tiingo struct {
		APIKey            string `mapstructure:"apikey" toml:"apikey"`
		RequestsPerMinute int    `mapstructure:"requests_per_minute" toml:"requests_per_minute" validate:"gte=0"`
	} `mapstructure:"tiingo" toml:"tiingo"`

	Fred struct {
		APIKey string `mapstructure:"apikey" toml:"apikey"`
	} `mapstructure:"fred" toml:"fred"`

	Macro struct {
		Series []MacroSeries `mapstructure:"series" toml:"series" validate:"dive"`
		Output string        `mapstructure:"output" toml:"output"`
	} `mapstructure:"macro" toml:"macro"`

	Backblaze struct {
		ApplicationID  string `mapstructure:"application_id" toml:"application_id"`
		ApplicationKey string `mapstructure:"application_key" toml:"application_key"`
		Bucket         string `mapstructure:"bucket" toml:"bucket"`
		Prefix         string `mapstructure:"prefix" toml:"prefix"`
	} `mapstructure:"backblaze" toml:"backblaze"`

	Healthchecks struct {
		APIKey  string `mapstructure:"apikey" toml:"apikey"`
		CheckID string `mapstructure:"check_id" toml:"check_id"`
	} `mapstructure:"healthchecks" toml:"healthchecks"`
}

// MacroSeries names a FRED series in the macro table. Rate series are
// reported as basis point changes.
type MacroSeries struct {
	Name string `mapstructure:"name" toml:"name" validate:"required"`
	ID   string `mapstructure:"id" toml:"id" validate:"required"`
	Rate bool   `mapstructure:"rate" toml:"rate"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var defaultMacroSeries = []MacroSeries{
	{Name: "CPI_All", ID: "CPIAUCSL"},
	{Name: "CPI_Core", ID: "CPILFESL"},
	{Name: "Fed_Funds_Rate", ID: "DFEDTAR", Rate: true},
	{Name: "GDP_Deflator", ID: "GDPDEF"},
	{Name: "Housing_Starts", ID: "HOUST"},
	{Name: "Industrial_Prod", ID: "INDPRO"},
	{Name: "Initial_Claims", ID: "ICSA"},
	{Name: "Job_Openings", ID: "JTSJOL"},
	{Name: "M2_Money_Stock", ID: "M2SL"},
	{Name: "Nonfarm_Payroll", ID: "PAYEMS"},
	{Name: "PPI_Commodities", ID: "PPIACO"},
	{Name: "Real_GDP", ID: "GDPC1"},
	{Name: "Retail_Sales", ID: "RSXFS"},
	{Name: "TenY_Treasury", ID: "DGS10", Rate: true},
	{Name: "Unemployment_Rate", ID: "UNRATE", Rate: true},
}

// setDefaults registers every key so that environment variables can
// override values that are absent from the config file
func setDefaults(v *viper.Viper) {
	v.SetDefault("db.url", "")
	v.SetDefault("input.securities", "securities.csv")
	v.SetDefault("input.facts_dir", "data/facts")
	v.SetDefault("input.prices_dir", "data/prices")
	v.SetDefault("output.dir", "data/panels")
	v.SetDefault("output.formats", []string{store.FormatCSV})
	v.SetDefault("output.missing_marker", "NA")
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("build.source", SourceFiles)
	v.SetDefault("build.save_db", false)
	v.SetDefault("build.concurrency", 4)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("sec.user_agent", "")
	v.SetDefault("tiingo.apikey", "")
	v.SetDefault("tiingo.requests_per_minute", 0)
	v.SetDefault("fred.apikey", "")
	v.SetDefault("macro.series", defaultMacroSeries)
	v.SetDefault("macro.output", "data/macro/macro_yoy.csv")
	v.SetDefault("backblaze.application_id", "")
	v.SetDefault("backblaze.application_key", "")
	v.SetDefault("backblaze.bucket", "")
	v.SetDefault("backblaze.prefix", "")
	v.SetDefault("healthchecks.apikey", "")
	v.SetDefault("healthchecks.check_id", "")
}

// loadConfig unmarshals viper's settings and validates them
func loadConfig(v *viper.Viper) (*Config, error) {
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, err
	}

	if err := validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if conf.Build.Source == SourceDB || conf.Build.SaveDB {
		if err := validate.Var(conf.DB.URL, "required"); err != nil {
			return nil, fmt.Errorf("db.url is required when reading from or saving to the database: %w", err)
		}
	}

	return conf, nil
}

// requireKey checks a setting needed by a single command
func requireKey(name, val string) error {
	if err := validate.Var(val, "required"); err != nil {
		return fmt.Errorf("%s must be configured: %w", name, err)
	}

	return nil
}
