// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/jernejc/PixelWorld/pkg/bootstrap"
)

var configFile = flag.String("config", "projector.yaml", "path to the YAML config file")

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() (rc int) {
	defer func() {
		if panicked := recover(); panicked != nil {
			fmt.Fprintf(os.Stderr, "%s %s\n", panicked, debug.Stack())
			rc = 1
		}
	}()
	return int(bootstrap.Run(*configFile))
}
