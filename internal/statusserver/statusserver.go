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


// Package statusserver exposes the projector's progress and latest artifact to
// the browser UI, plus the Prometheus registry for scraping.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/jernejc/PixelWorld/internal/projector"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Source interface {
	Status() *projector.Status
	Artifact(ctx context.Context) ([]byte, string, error)
}

type StatusServer interface {
	Start() error
	Stop()
	Addr() net.Addr
}

type statusServer struct {
	source Source
	router router.Router
}

type errorBody struct {
	Error string `json:"error"`
}

// NewStatusServer returns a server that does nothing when disabled in config
func NewStatusServer(ctx context.Context, conf *pxconf.StatusServerConfig, source Source, registry *prometheus.Registry) (StatusServer, error) {
	s := &statusServer{source: source}
	if !confutil.Bool(conf.Enabled, *pxconf.StatusServerDefaults.Enabled) {
		return s, nil
	}

	r, err := router.NewRouter(ctx, "Status (HTTP)", &conf.HTTPServerConfig)
	if err != nil {
		return nil, err
	}
	r.HandleFunc("/status", s.getStatus, http.MethodGet)
	r.HandleFunc("/artifact", s.getArtifact, http.MethodGet, http.MethodHead)
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), http.MethodGet)
	}
	s.router = r
	return s, nil
}

func (s *statusServer) Start() error {
	if s.router != nil {
		return s.router.Start()
	}
	return nil
}

func (s *statusServer) Stop() {
	if s.router != nil {
		s.router.Stop()
	}
}

func (s *statusServer) Addr() net.Addr {
	if s.router != nil {
		return s.router.Addr()
	}
	return nil
}

func (s *statusServer) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.source.Status())
}

func (s *statusServer) getArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, contentType, err := s.source.Artifact(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var withStatus interface{ HTTPStatus() int }
	if errors.As(err, &withStatus) {
		status = withStatus.HTTPStatus()
	}
	log.L(ctx).Errorf("Request failed [%d]: %s", status, err)
	writeJSON(ctx, w, status, &errorBody{Error: err.Error()})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.L(ctx).Warnf("Failed to write response: %s", err)
	}
}
