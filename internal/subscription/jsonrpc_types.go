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


package subscription

import (
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
)

type LogJSONRPC struct {
	Removed          bool                        `json:"removed"`
	LogIndex         ethtypes.HexUint64          `json:"logIndex"`
	TransactionIndex ethtypes.HexUint64          `json:"transactionIndex"`
	BlockNumber      ethtypes.HexUint64          `json:"blockNumber"`
	TransactionHash  ethtypes.HexBytes0xPrefix   `json:"transactionHash"`
	BlockHash        ethtypes.HexBytes0xPrefix   `json:"blockHash"`
	Address          *ethtypes.Address0xHex      `json:"address"`
	Data             ethtypes.HexBytes0xPrefix   `json:"data"`
	Topics           []ethtypes.HexBytes0xPrefix `json:"topics"`
}

func (l *LogJSONRPC) position() pxtypes.LogPosition {
	return pxtypes.LogPosition{BlockNumber: l.BlockNumber.Uint64(), LogIndex: l.LogIndex.Uint64()}
}

// LogFilter is the filter object of eth_getLogs, and of eth_subscribe("logs")
// where the block range is omitted
type LogFilter struct {
	Address   *ethtypes.Address0xHex        `json:"address"`
	Topics    [][]ethtypes.HexBytes0xPrefix `json:"topics"`
	FromBlock *ethtypes.HexUint64           `json:"fromBlock,omitempty"`
	ToBlock   *ethtypes.HexUint64           `json:"toBlock,omitempty"`
}
