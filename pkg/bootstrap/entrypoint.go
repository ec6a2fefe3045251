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


package bootstrap

import (
	"sync/atomic"
)

var running atomic.Pointer[instance]

// Run blocks until the projector fails, or is stopped via a signal or Stop().
// Only one instance can run per process.
func Run(configFile string) RC {
	inst := newInstance(configFile)
	if !running.CompareAndSwap(nil, inst) {
		panic("projector already running")
	}
	return inst.run()
}

func Stop() {
	if inst := running.Load(); inst != nil {
		inst.stop()
	}
}
