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


package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockServer struct {
	mock.Mock
}

func (m *mockServer) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockServer) Stop() {
	m.Called()
}

func (m *mockServer) Addr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

func TestNewRouterServes(t *testing.T) {
	conf := &pxconf.HTTPServerConfig{Address: confutil.P("127.0.0.1"), Port: confutil.P(0)}
	r, err := NewRouter(context.Background(), "unittest", conf)
	require.NoError(t, err)
	r.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, http.MethodGet)
	require.NoError(t, r.Start())
	defer r.Stop()

	res, err := http.Get(fmt.Sprintf("http://%s/ping", r.Addr()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestNewRouterMissingPort(t *testing.T) {
	_, err := NewRouter(context.Background(), "unittest", &pxconf.HTTPServerConfig{})
	assert.Regexp(t, "PW010900", err)
}

func TestRouterMethodFilter(t *testing.T) {
	r := &router{router: mux.NewRouter()}
	r.Handle("/only-get", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), http.MethodGet)

	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/only-get", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/only-get", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouterDelegatesToServer(t *testing.T) {
	addr := &net.IPAddr{IP: net.ParseIP("127.0.0.1")}
	ms := new(mockServer)
	ms.On("Start").Return(nil)
	ms.On("Stop").Return()
	ms.On("Addr").Return(addr)

	r := &router{server: ms}
	require.NoError(t, r.Start())
	assert.Equal(t, addr, r.Addr())
	r.Stop()
	ms.AssertExpectations(t)
}

func TestRouterNoServer(t *testing.T) {
	r := &router{}
	assert.NoError(t, r.Start())
	assert.Nil(t, r.Addr())
	r.Stop()
}
