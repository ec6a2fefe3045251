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

type CanvasConfig struct {
	Width        *int    `json:"width"`
	Height       *int    `json:"height"`
	DefaultColor *string `json:"defaultColor"`
}

var CanvasDefaults = &CanvasConfig{
	Width:        confutil.P(1000),
	Height:       confutil.P(1000),
	DefaultColor: confutil.P("FFFFFF"),
}

type RasterConfig struct {
	// well-known location of the latest artifact, read at startup and rewritten on every publish
	Path     *string `json:"path"`
	Format   *string `json:"format"`
	FileMode *string `json:"fileMode"`
}

var RasterDefaults = &RasterConfig{
	Path:     confutil.P("world.png"),
	Format:   confutil.P("png"),
	FileMode: confutil.P("0644"),
}

type PublisherConfig struct {
	File FilePublisherConfig `json:"file"`
	IPFS IPFSPublisherConfig `json:"ipfs"`
}

type FilePublisherConfig struct {
	Enabled    *bool  `json:"enabled"`
	HistoryDir string `json:"historyDir"`
}

type IPFSPublisherConfig struct {
	Enabled           bool `json:"enabled"`
	HTTPClientConfig  `json:",inline"`
	Pin               *bool    `json:"pin"`
	CIDVersion        *int     `json:"cidVersion"`
	FileName          *string  `json:"fileName"`
	RequestsPerSecond *float64 `json:"requestsPerSecond"`
}

var PublisherDefaults = &PublisherConfig{
	File: FilePublisherConfig{
		Enabled: confutil.P(true),
	},
	IPFS: IPFSPublisherConfig{
		Pin:               confutil.P(true),
		CIDVersion:        confutil.P(1),
		FileName:          confutil.P("world.png"),
		RequestsPerSecond: confutil.P(0.0),
	},
}

type ProjectionConfig struct {
	StreamName       *string            `json:"streamName"`
	PublishRetry     RetryConfigWithMax `json:"publishRetry"`
	RestartOnFailure *bool              `json:"restartOnFailure"`
	RestartDelay     *string            `json:"restartDelay"`
	MaxRestarts      *int               `json:"maxRestarts"`
	BatchBufferSize  *int               `json:"batchBufferSize"`
	AddressCache     CacheConfig        `json:"addressCache"`
}

var ProjectionDefaults = &ProjectionConfig{
	StreamName: confutil.P("pixelworld"),
	PublishRetry: RetryConfigWithMax{
		RetryConfig: RetryConfig{
			InitialDelay: confutil.P("500ms"),
			MaxDelay:     confutil.P("10s"),
			Factor:       confutil.P(2.0),
		},
		MaxAttempts: confutil.P(5),
	},
	RestartOnFailure: confutil.P(true),
	RestartDelay:     confutil.P("5s"),
	MaxRestarts:      confutil.P(10),
	BatchBufferSize:  confutil.P(50),
	AddressCache: CacheConfig{
		Capacity: confutil.P(10000),
	},
}
