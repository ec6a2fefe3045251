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
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
)

const ColorPixelsABI = `{
	"type": "event",
	"name": "ColorPixels",
	"anonymous": false,
	"inputs": [
		{"name": "positions", "type": "bytes32[]", "indexed": false},
		{"name": "colors", "type": "bytes3[]", "indexed": false}
	]
}`

// eventDecoder turns logs into batches. The event must carry exactly two list parameters,
// the positions then the colors. Both are surfaced as 0x-prefixed hex.
type eventDecoder struct {
	event      *abi.Entry
	signature  ethtypes.HexBytes0xPrefix
	serializer *abi.Serializer
}

func newEventDecoder(ctx context.Context, eventABI string) (*eventDecoder, error) {
	if eventABI == "" {
		eventABI = ColorPixelsABI
	}
	var event abi.Entry
	if err := json.Unmarshal([]byte(eventABI), &event); err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgSubscriptionBadEventABI, err)
	}
	if event.Type != abi.Event || event.Anonymous || len(event.Inputs) != 2 {
		return nil, i18n.NewError(ctx, msgs.MsgSubscriptionBadEventABI, "expected a non-anonymous event with two parameters")
	}
	signature, err := event.SignatureHash()
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgSubscriptionBadEventABI, err)
	}
	return &eventDecoder{
		event:     &event,
		signature: signature,
		serializer: abi.NewSerializer().
			SetFormattingMode(abi.FormatAsFlatArrays).
			SetIntSerializer(abi.HexIntSerializer0xPrefix).
			SetByteSerializer(abi.HexByteSerializer0xPrefix),
	}, nil
}

func (d *eventDecoder) decode(ctx context.Context, l *LogJSONRPC) (*pxtypes.EventBatch, error) {
	if l.Removed {
		return nil, i18n.NewError(ctx, msgs.MsgSubscriptionRemovedLog, l.BlockNumber.Uint64(), l.LogIndex.Uint64())
	}
	cv, err := d.event.DecodeEventDataCtx(ctx, l.Topics, l.Data)
	var params []json.RawMessage
	if err == nil {
		var data []byte
		if data, err = d.serializer.SerializeJSONCtx(ctx, cv); err == nil {
			err = json.Unmarshal(data, &params)
		}
	}
	batch := &pxtypes.EventBatch{
		ID:              uuid.New(),
		Position:        l.position(),
		TransactionHash: l.TransactionHash.String(),
	}
	if err == nil && len(params) == 2 {
		if err = json.Unmarshal(params[0], &batch.Positions); err == nil {
			err = json.Unmarshal(params[1], &batch.Colors)
		}
	}
	if err != nil || len(params) != 2 {
		log.L(ctx).Errorf("Unable to decode log %s (tx=%s): %v", batch.Position, batch.TransactionHash, err)
		return nil, i18n.NewError(ctx, msgs.MsgSubscriptionBadLog, l.BlockNumber.Uint64(), l.LogIndex.Uint64())
	}
	return batch, nil
}

func (d *eventDecoder) decodeNotification(ctx context.Context, result json.RawMessage) (*pxtypes.EventBatch, error) {
	var l LogJSONRPC
	if err := json.Unmarshal(result, &l); err != nil {
		log.L(ctx).Errorf("Unable to parse log notification: %s", err)
		return nil, i18n.NewError(ctx, msgs.MsgSubscriptionBadLog, l.BlockNumber.Uint64(), l.LogIndex.Uint64())
	}
	return d.decode(ctx, &l)
}
