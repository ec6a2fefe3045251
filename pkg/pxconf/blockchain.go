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

type HTTPBasicAuthConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type HTTPClientConfig struct {
	URL               string              `json:"url"`
	HTTPHeaders       map[string]string   `json:"httpHeaders"`
	Auth              HTTPBasicAuthConfig `json:"auth"`
	RequestTimeout    *string             `json:"requestTimeout,omitempty"`
	ConnectionTimeout *string             `json:"connectionTimeout,omitempty"`
}

var DefaultHTTPConfig = &HTTPClientConfig{
	ConnectionTimeout: confutil.P("30s"),
	RequestTimeout:    confutil.P("2m"),
}

type WSClientConfig struct {
	HTTPClientConfig  `json:",inline"`
	ReadBufferSize    *string `json:"readBufferSize"`
	WriteBufferSize   *string `json:"writeBufferSize"`
	HeartbeatInterval *string `json:"heartbeatInterval"`
}

var DefaultWSConfig = &WSClientConfig{
	HTTPClientConfig: HTTPClientConfig{
		ConnectionTimeout: confutil.P("30s"),
		RequestTimeout:    confutil.P("30s"),
	},
	ReadBufferSize:    confutil.P("16Kb"),
	WriteBufferSize:   confutil.P("16Kb"),
	HeartbeatInterval: confutil.P("15s"),
}

type BlockchainConfig struct {
	WS               WSClientConfig     `json:"ws"`
	ContractAddress  string             `json:"contractAddress"`
	FromBlock        *uint64            `json:"fromBlock"`
	BackfillPageSize *uint64            `json:"backfillPageSize"`
	Reconnect        RetryConfigWithMax `json:"reconnect"`
	// JSON ABI fragment of the event, when it differs from ColorPixels(bytes32[],bytes3[])
	EventABI string `json:"eventABI"`
}

// Reconnect defaults are a fixed 5s delay, 5 attempts
var BlockchainDefaults = &BlockchainConfig{
	FromBlock:        confutil.P(uint64(0)),
	BackfillPageSize: confutil.P(uint64(5000)),
	Reconnect: RetryConfigWithMax{
		RetryConfig: RetryConfig{
			InitialDelay: confutil.P("5s"),
			MaxDelay:     confutil.P("5s"),
			Factor:       confutil.P(1.0),
		},
		MaxAttempts: confutil.P(5),
	},
}
