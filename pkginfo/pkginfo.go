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
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"

	"github.com/rs/zerolog/log"
)

const Program = "pvpanel"

// Set at link time with -ldflags "-X"
var (
	BuildDate  string
	CommitHash string
	Version    string
)

// Info describes the running binary
type Info struct {
	Program   string   `json:"program"`
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	BuildDate string   `json:"build_date"`
	Platform  string   `json:"platform"`
	GoVersion string   `json:"go_version"`
	Deps      []string `json:"deps,omitempty"`
}

// Current returns the build information of the running binary. Values not
// stamped at link time fall back to the module build info, then to "dev"
// and "unknown".
func Current() Info {
	info := Info{
		Program:   Program,
		Version:   Version,
		Commit:    CommitHash,
		BuildDate: BuildDate,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			info.Version = buildInfo.Main.Version
		}

		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = setting.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = setting.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}

	if info.Commit == "" {
		info.Commit = "unknown"
	}

	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}

	return info
}

// String formats info for printing on the command line
func (info Info) String() string {
	return fmt.Sprintf(`%s %s %s

Build Date: %s
Commit: %s
Built with: %s`, info.Program, info.Version, info.Platform, info.BuildDate, info.Commit, info.GoVersion)
}

// BuildVersionString returns a version info string suitable for printing on the command line
func BuildVersionString() string {
	return Current().String()
}

// GetDependencyList returns every module linked into the program as
// `path="version"`, sorted by path
func GetDependencyList() []string {
	var deps []string

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not get package build info")
		return deps
	}

	for _, dep := range buildInfo.Deps {
		version := dep.Version
		if dep.Replace != nil {
			version = fmt.Sprintf("%s => %s %s", dep.Version, dep.Replace.Path, dep.Replace.Version)
		}

		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, version))
	}

	sort.Strings(deps)

	return deps
}
