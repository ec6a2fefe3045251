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

package pxtypes

import (
	"fmt"

	"github.com/google/uuid"
)

// LogPosition orders logs by block, then by index within the block
type LogPosition struct {
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint64 `json:"logIndex"`
}

func (p LogPosition) Compare(o LogPosition) int {
	switch {
	case p.BlockNumber < o.BlockNumber:
		return -1
	case p.BlockNumber > o.BlockNumber:
		return 1
	case p.LogIndex < o.LogIndex:
		return -1
	case p.LogIndex > o.LogIndex:
		return 1
	default:
		return 0
	}
}

func (p LogPosition) String() string {
	return fmt.Sprintf("%d/%d", p.BlockNumber, p.LogIndex)
}

// AtOrBefore is true when p is not after the checkpoint. A nil checkpoint is before everything.
func (p LogPosition) AtOrBefore(checkpoint *LogPosition) bool {
	return checkpoint != nil && p.Compare(*checkpoint) <= 0
}

// EventBatch is one ColorPixels log. Positions and Colors are hex, in event order,
// and are not guaranteed to be the same length.
type EventBatch struct {
	ID              uuid.UUID   `json:"id"`
	Position        LogPosition `json:"position"`
	TransactionHash string      `json:"transactionHash"`
	Positions       []string    `json:"positions"`
	Colors          []string    `json:"colors"`
}

type ContentHandle struct {
	Digest   string `json:"digest"`
	Location string `json:"location,omitempty"`
	CID      string `json:"cid,omitempty"`
}

type Checkpoint struct {
	Position LogPosition    `json:"position"`
	Handle   *ContentHandle `json:"handle,omitempty"`
	Updated  int64          `json:"updated"`
}
