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


package restclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/sirupsen/logrus"
)

type requestCtxKey struct{}

type requestCtx struct {
	id    string
	start time.Time
}

// New creates a Resty client against the base URL of the config. Request and
// response lines are logged against a short per-request ID.
func New(ctx context.Context, conf *pxconf.HTTPClientConfig) (*resty.Client, error) {
	u, err := url.Parse(conf.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, i18n.WrapError(ctx, err, msgs.MsgRESTClientInvalidURL, conf.URL)
	}

	connTimeout := confutil.DurationMin(conf.ConnectionTimeout, 0, *pxconf.DefaultHTTPConfig.ConnectionTimeout)
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connTimeout,
				KeepAlive: connTimeout,
			}).DialContext,
			ForceAttemptHTTP2: true,
		},
	}
	client := resty.NewWithClient(httpClient)

	baseURL := strings.TrimSuffix(conf.URL, "/")
	client.SetBaseURL(baseURL)
	client.SetTimeout(confutil.DurationMin(conf.RequestTimeout, 0, *pxconf.DefaultHTTPConfig.RequestTimeout))
	log.L(ctx).Debugf("Created REST client to %s", baseURL)

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		rCtx := req.Context()
		if rCtx.Value(requestCtxKey{}) == nil {
			rc := &requestCtx{id: uuid.NewString()[0:8], start: time.Now()}
			rCtx = log.WithLogField(context.WithValue(rCtx, requestCtxKey{}, rc), "breq", rc.id)
			req.SetContext(rCtx)
		}
		log.L(rCtx).Debugf("==> %s %s%s", req.Method, baseURL, req.URL)
		return nil
	})
	client.OnAfterResponse(func(c *resty.Client, res *resty.Response) error {
		rCtx := res.Request.Context()
		level := logrus.DebugLevel
		if res.StatusCode() >= 300 {
			level = logrus.ErrorLevel
		}
		var elapsed time.Duration
		if rc, ok := rCtx.Value(requestCtxKey{}).(*requestCtx); ok {
			elapsed = time.Since(rc.start)
		}
		log.L(rCtx).Logf(level, "<== %s %s [%d] (%dms)", res.Request.Method, res.Request.URL, res.StatusCode(), elapsed.Milliseconds())
		return nil
	})

	for k, v := range conf.HTTPHeaders {
		client.SetHeader(k, v)
	}
	if conf.Auth.Username != "" && conf.Auth.Password != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Basic %s", base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", conf.Auth.Username, conf.Auth.Password)))))
	}
	return client, nil
}

// WrapRestErr builds an error from whichever of the transport error and the response
// body is available, truncating long bodies.
func WrapRestErr(ctx context.Context, res *resty.Response, err error, key i18n.ErrorMessageKey, inserts ...interface{}) error {
	var respData string
	if res != nil {
		if res.RawBody() != nil {
			defer func() { _ = res.RawBody().Close() }()
			if r, err := io.ReadAll(res.RawBody()); err == nil {
				respData = string(r)
			}
		}
		if respData == "" {
			respData = res.String()
		}
		if len(respData) > 256 {
			respData = respData[0:256] + "..."
		}
	}
	inserts = append(inserts, respData)
	if err != nil {
		return i18n.WrapError(ctx, err, key, inserts...)
	}
	return i18n.NewError(ctx, key, inserts...)
}
