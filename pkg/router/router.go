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
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jernejc/PixelWorld/pkg/httpserver"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
)

type Router interface {
	Start() error
	Stop()
	Addr() net.Addr
	HandleFunc(path string, f func(http.ResponseWriter, *http.Request), methods ...string)
	Handle(path string, h http.Handler, methods ...string)
}

var _ Router = &router{}

type router struct {
	router *mux.Router
	server httpserver.Server
}

func NewRouter(ctx context.Context, description string, conf *pxconf.HTTPServerConfig) (_ Router, err error) {
	r := &router{
		router: mux.NewRouter(),
	}
	r.server, err = httpserver.NewServer(ctx, description, conf, r.router)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *router) HandleFunc(path string, f func(http.ResponseWriter, *http.Request), methods ...string) {
	route := r.router.HandleFunc(path, f)
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

func (r *router) Handle(path string, h http.Handler, methods ...string) {
	route := r.router.Handle(path, h)
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

func (r *router) Addr() (a net.Addr) {
	if r.server != nil {
		a = r.server.Addr()
	}
	return a
}

func (r *router) Start() error {
	if r.server != nil {
		return r.server.Start()
	}
	return nil
}

func (r *router) Stop() {
	if r.server != nil {
		r.server.Stop()
	}
}
