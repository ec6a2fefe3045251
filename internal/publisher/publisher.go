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


package publisher

import (
	"context"
	"encoding/hex"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
	"golang.org/x/crypto/sha3"
)

const digestPrefix = "sha3-256:"

type Publisher interface {
	Name() string
	Publish(ctx context.Context, data []byte) (*pxtypes.ContentHandle, error)
}

func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// NewPublisher builds the enabled publishers, file first. The file publisher is required,
// as startup restores the raster from the file it writes.
func NewPublisher(ctx context.Context, conf *pxconf.PublisherConfig, raster *pxconf.RasterConfig) (Publisher, error) {
	if !confutil.Bool(conf.File.Enabled, *pxconf.PublisherDefaults.File.Enabled) {
		return nil, i18n.NewError(ctx, msgs.MsgPublishFileDisabled, confutil.StringNotEmpty(raster.Path, *pxconf.RasterDefaults.Path))
	}
	fp := NewFilePublisher(&conf.File, raster)
	if !conf.IPFS.Enabled {
		return fp, nil
	}
	ipfs, err := NewIPFSPublisher(ctx, &conf.IPFS)
	if err != nil {
		return nil, err
	}
	return &multiPublisher{publishers: []Publisher{fp, ipfs}}, nil
}

type multiPublisher struct {
	publishers []Publisher
}

func (mp *multiPublisher) Name() string {
	name := ""
	for i, p := range mp.publishers {
		if i > 0 {
			name += "+"
		}
		name += p.Name()
	}
	return name
}

// Publish runs each publisher in turn, stopping at the first failure. The handle takes
// the location of the file publisher and the CID of the IPFS one.
func (mp *multiPublisher) Publish(ctx context.Context, data []byte) (*pxtypes.ContentHandle, error) {
	handle := &pxtypes.ContentHandle{Digest: Digest(data)}
	for _, p := range mp.publishers {
		h, err := p.Publish(ctx, data)
		if err != nil {
			return nil, err
		}
		if handle.Location == "" {
			handle.Location = h.Location
		}
		if h.CID != "" {
			handle.CID = h.CID
		}
	}
	log.L(ctx).Infof("Published %s to %s (location=%s cid=%s)", handle.Digest, mp.Name(), handle.Location, handle.CID)
	return handle, nil
}
