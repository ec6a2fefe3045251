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

package pxconf

import "github.com/jernejc/PixelWorld/pkg/confutil"

type HTTPServerConfig struct {
	CORS            CORSConfig `json:"cors"`
	Address         *string    `json:"address"`
	Port            *int       `json:"port"`
	RequestTimeout  *string    `json:"requestTimeout"`
	ShutdownTimeout *string    `json:"shutdownTimeout"`
}

var HTTPDefaults = &HTTPServerConfig{
	Address:         confutil.P("127.0.0.1"),
	RequestTimeout:  confutil.P("30s"),
	ShutdownTimeout: confutil.P("10s"),
}

type CORSConfig struct {
	Enabled        bool     `json:"enabled"`
	AllowedOrigins []string `json:"allowedOrigins"`
	MaxAge         *string  `json:"maxAge"`
}

type StatusServerConfig struct {
	Enabled          *bool `json:"enabled"`
	HTTPServerConfig `json:",inline"`
}

var StatusServerDefaults = &StatusServerConfig{
	Enabled: confutil.P(false),
}
