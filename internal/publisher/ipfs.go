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
	"bytes"
	"context"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
	"github.com/jernejc/PixelWorld/pkg/restclient"
	"golang.org/x/time/rate"
)

type ipfsAddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

type ipfsPublisher struct {
	client     *resty.Client
	limiter    *rate.Limiter
	pin        bool
	cidVersion int
	fileName   string
}

// NewIPFSPublisher publishes through the /api/v0/add endpoint of an IPFS HTTP API,
// such as a local Kubo node or a pinning service with basic auth
func NewIPFSPublisher(ctx context.Context, conf *pxconf.IPFSPublisherConfig) (Publisher, error) {
	client, err := restclient.New(ctx, &conf.HTTPClientConfig)
	if err != nil {
		return nil, err
	}
	def := &pxconf.PublisherDefaults.IPFS
	ip := &ipfsPublisher{
		client:     client,
		pin:        confutil.Bool(conf.Pin, *def.Pin),
		cidVersion: confutil.IntMin(conf.CIDVersion, 0, *def.CIDVersion),
		fileName:   confutil.StringNotEmpty(conf.FileName, *def.FileName),
	}
	// pinning services meter the add endpoint, zero means unlimited
	if rps := confutil.Float64Min(conf.RequestsPerSecond, 0, *def.RequestsPerSecond); rps > 0 {
		ip.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return ip, nil
}

func (ip *ipfsPublisher) Name() string {
	return "ipfs"
}

func (ip *ipfsPublisher) Publish(ctx context.Context, data []byte) (*pxtypes.ContentHandle, error) {
	if ip.limiter != nil {
		if err := ip.limiter.Wait(ctx); err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgPublishUnavailable, ip.Name())
		}
	}
	var added ipfsAddResponse
	res, err := ip.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"pin":         strconv.FormatBool(ip.pin),
			"cid-version": strconv.Itoa(ip.cidVersion),
		}).
		SetFileReader("file", ip.fileName, bytes.NewReader(data)).
		SetResult(&added).
		Post("/api/v0/add")
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgPublishUnavailable, ip.Name())
	}
	if res.IsError() || added.Hash == "" {
		return nil, restclient.WrapRestErr(ctx, res, nil, msgs.MsgPublishBadResponse, ip.Name(), res.StatusCode())
	}
	log.L(ctx).Infof("Added %s to IPFS as %s (%s bytes)", ip.fileName, added.Hash, added.Size)
	return &pxtypes.ContentHandle{
		Digest:   Digest(data),
		Location: "ipfs://" + added.Hash,
		CID:      added.Hash,
	}, nil
}
