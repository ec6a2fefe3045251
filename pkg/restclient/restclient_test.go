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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBadURL(t *testing.T) {
	_, err := New(context.Background(), &pxconf.HTTPClientConfig{URL: "ws://localhost:5001"})
	assert.Regexp(t, "PW010704", err)

	_, err = New(context.Background(), &pxconf.HTTPClientConfig{URL: ":::"})
	assert.Regexp(t, "PW010704", err)
}

func TestHeadersAndAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/version", r.URL.Path)
		assert.Equal(t, "value1", r.Header.Get("X-Custom"))
		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", username)
		assert.Equal(t, "pass", password)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(strings.Repeat("x", 300)))
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := New(ctx, &pxconf.HTTPClientConfig{
		URL:         server.URL + "/",
		HTTPHeaders: map[string]string{"X-Custom": "value1"},
		Auth:        pxconf.HTTPBasicAuthConfig{Username: "user", Password: "pass"},
	})
	require.NoError(t, err)

	res, err := client.R().SetContext(ctx).Post("/api/v0/version")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, res.StatusCode())

	err = WrapRestErr(ctx, res, nil, msgs.MsgPublishBadResponse, "ipfs", res.StatusCode())
	assert.Regexp(t, `PW010701.*ipfs.*\[418\]: x+\.\.\.`, err)
}

func TestWrapRestErrTransportFailure(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, &pxconf.HTTPClientConfig{URL: "http://localhost:1"})
	require.NoError(t, err)

	res, err := client.R().SetContext(ctx).Get("/")
	assert.Error(t, err)
	err = WrapRestErr(ctx, res, err, msgs.MsgPublishBadResponse, "test", res.StatusCode())
	assert.Regexp(t, `PW010701.*test.*\[0\]`, err)
}
