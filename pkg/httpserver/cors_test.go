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


package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calledServer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("CalledServer", "true")
	}
}

func TestCorsWrapperDisabled(t *testing.T) {
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), calledServer(), &pxconf.CORSConfig{}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodGet, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://some.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "true", res.Header.Get("CalledServer"))
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCorsWrapperDefaults(t *testing.T) {
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), calledServer(), &pxconf.CORSConfig{
		Enabled: true,
	}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodGet, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://some.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCorsWrapperPreflightMaxAge(t *testing.T) {
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), calledServer(), &pxconf.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://some.example"},
		MaxAge:         confutil.P("1m"),
	}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodOptions, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://some.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "https://some.example", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "60", res.Header.Get("Access-Control-Max-Age"))
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, res.Header.Get("CalledServer"))
}

func TestCorsWrapperOriginRejected(t *testing.T) {
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), calledServer(), &pxconf.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://some.example"},
	}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodGet, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://another.example")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "true", res.Header.Get("CalledServer"))
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCorsWrapperWriteMethodRejected(t *testing.T) {
	s := httptest.NewServer(WrapCorsIfEnabled(context.Background(), calledServer(), &pxconf.CORSConfig{
		Enabled: true,
	}))
	defer s.Close()

	req, err := http.NewRequest(http.MethodOptions, s.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://some.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}
