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
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pvpanel/pkginfo"
)

var (
	deps        bool
	short       bool
	versionJSON bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		info := pkginfo.Current()
		if deps {
			info.Deps = pkginfo.GetDependencyList()
		}

		switch {
		case versionJSON:
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("could not encode version info")
			}

			fmt.Println(string(out))
		case short:
			fmt.Println(info.Version)
		default:
			fmt.Println(info.String())
			if deps {
				fmt.Printf("\n\n%s\n", strings.Join(info.Deps, "\n"))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&deps, "deps", "d", false, "print dependencies")
	versionCmd.Flags().BoolVarP(&short, "short", "s", false, "only print version number")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print version info as JSON")
}
