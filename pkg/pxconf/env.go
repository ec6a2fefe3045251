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

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
)

// envOverrides covers the settings that differ per deployment. Unset variables leave the file value alone.
type envOverrides struct {
	WSURL           string `env:"PIXELWORLD_WS_URL"`
	ContractAddress string `env:"PIXELWORLD_CONTRACT_ADDRESS"`
	DBDSN           string `env:"PIXELWORLD_DB_DSN"`
	IPFSURL         string `env:"PIXELWORLD_IPFS_URL"`
	LogLevel        string `env:"PIXELWORLD_LOG_LEVEL"`
}

func ApplyEnvOverrides(ctx context.Context, conf *ProjectorConfig) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgConfigEnvParseError)
	}
	if o.WSURL != "" {
		conf.Blockchain.WS.URL = o.WSURL
	}
	if o.ContractAddress != "" {
		conf.Blockchain.ContractAddress = o.ContractAddress
	}
	if o.DBDSN != "" {
		if conf.DB.Type == "postgres" {
			conf.DB.Postgres.DSN = o.DBDSN
		} else {
			conf.DB.SQLite.DSN = o.DBDSN
		}
	}
	if o.IPFSURL != "" {
		conf.Publisher.IPFS.URL = o.IPFSURL
		conf.Publisher.IPFS.Enabled = true
	}
	if o.LogLevel != "" {
		level := o.LogLevel
		conf.Log.Level = &level
	}
	return nil
}
