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
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, conf *pxconf.HTTPServerConfig, handler http.HandlerFunc) (string, *httpServer, func()) {
	conf.Address = confutil.P("127.0.0.1")
	conf.Port = confutil.P(0)
	s, err := NewServer(context.Background(), "unittest", conf, handler)
	require.NoError(t, err)
	hs := s.(*httpServer)
	err = s.Start()
	require.NoError(t, err)

	return fmt.Sprintf("http://%s", s.Addr()), hs, s.Stop
}

func TestMissingPort(t *testing.T) {
	_, err := NewServer(context.Background(), "unittest", &pxconf.HTTPServerConfig{}, nil)
	assert.Regexp(t, "PW010900.*unittest", err)
}

func TestBadAddress(t *testing.T) {
	_, err := NewServer(context.Background(), "unittest", &pxconf.HTTPServerConfig{
		Port:    confutil.P(0),
		Address: confutil.P(":::::badness"),
	}, nil)
	assert.Regexp(t, "PW010901", err)
}

func TestServeOK(t *testing.T) {
	url, _, done := newTestServer(t, &pxconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, err := w.Write([]byte(`{"some":"data"}`))
		require.NoError(t, err)
	})
	defer done()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"some":"data"}`, string(data))
}

func TestStopNotStarted(t *testing.T) {
	s, err := NewServer(context.Background(), "unittest", &pxconf.HTTPServerConfig{
		Address: confutil.P("127.0.0.1"),
		Port:    confutil.P(0),
	}, http.NotFoundHandler())
	require.NoError(t, err)
	s.Stop()
	_ = s.(*httpServer).listener.Close()
}

func TestForceShutdown(t *testing.T) {
	requestStarted := make(chan struct{})
	url, _, done := newTestServer(t, &pxconf.HTTPServerConfig{
		ShutdownTimeout: confutil.P("1ns"),
	}, func(w http.ResponseWriter, r *http.Request) {
		close(requestStarted)
		<-r.Context().Done()
	})

	returned := make(chan error)
	go func() {
		_, err := http.Get(url)
		returned <- err
	}()
	<-requestStarted

	done()
	assert.Regexp(t, "EOF", <-returned)
}

func TestServeCustomTimeout(t *testing.T) {
	url, _, done := newTestServer(t, &pxconf.HTTPServerConfig{}, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusRequestTimeout)
	})
	defer done()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Request-Timeout", "1ns")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestTimeout, res.StatusCode)
}

func TestCalcRequestTimeout(t *testing.T) {
	s := &httpServer{}
	req, err := http.NewRequest(http.MethodGet, "http://localhost", nil)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, s.calcRequestTimeout(req, 10*time.Second))

	req.Header.Set("Request-Timeout", "1")
	assert.Equal(t, 1*time.Second, s.calcRequestTimeout(req, 10*time.Second))

	req.Header.Set("Request-Timeout", "1ms")
	assert.Equal(t, 1*time.Millisecond, s.calcRequestTimeout(req, 10*time.Second))

	req.Header.Set("Request-Timeout", "30")
	assert.Equal(t, 10*time.Second, s.calcRequestTimeout(req, 10*time.Second))

	req.Header.Set("Request-Timeout", "wrongness")
	assert.Equal(t, 10*time.Second, s.calcRequestTimeout(req, 10*time.Second))
}
