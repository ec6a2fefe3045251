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
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
)

type Server interface {
	Start() error
	Stop()
	Addr() net.Addr
}

var _ Server = &httpServer{}

type httpServer struct {
	ctx             context.Context
	cancelCtx       func()
	description     string
	listener        net.Listener
	httpServer      *http.Server
	httpServerDone  chan error
	shutdownTimeout time.Duration
	started         bool
}

func NewServer(ctx context.Context, description string, conf *pxconf.HTTPServerConfig, handler http.Handler) (_ Server, err error) {
	s := &httpServer{
		description:     description,
		httpServerDone:  make(chan error),
		shutdownTimeout: confutil.DurationMin(conf.ShutdownTimeout, 0, *pxconf.HTTPDefaults.ShutdownTimeout),
	}
	s.ctx, s.cancelCtx = context.WithCancel(ctx)

	if conf.Port == nil {
		return nil, i18n.NewError(ctx, msgs.MsgHTTPServerMissingPort, description)
	}

	listenAddr := fmt.Sprintf("%s:%d", confutil.StringNotEmpty(conf.Address, *pxconf.HTTPDefaults.Address), *conf.Port)
	if s.listener, err = net.Listen("tcp", listenAddr); err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgHTTPServerStartFailed, listenAddr)
	}
	log.L(ctx).Infof("%s server listening on %s", description, s.listener.Addr())

	requestTimeout := confutil.DurationMin(conf.RequestTimeout, time.Second, *pxconf.HTTPDefaults.RequestTimeout)
	handler = s.withLogAndTimeout(handler, requestTimeout)
	handler = WrapCorsIfEnabled(ctx, handler, &conf.CORS)

	s.httpServer = &http.Server{
		Handler:           handler,
		WriteTimeout:      requestTimeout + time.Second,
		ReadTimeout:       requestTimeout + time.Second,
		ReadHeaderTimeout: requestTimeout + time.Second,
		ConnContext: func(newCtx context.Context, c net.Conn) context.Context {
			l := log.L(ctx).WithField("req", uuid.NewString()[0:8])
			newCtx = log.WithLogger(newCtx, l)
			l.Debugf("New %s connection: remote=%s local=%s", description, c.RemoteAddr().String(), c.LocalAddr().String())
			return newCtx
		},
	}
	return s, err
}

func (s *httpServer) runAPIServer() {
	err := s.httpServer.Serve(s.listener)
	s.httpServerDone <- err
}

func (s *httpServer) Addr() net.Addr {
	return s.listener.Addr()
}

type logCapture struct {
	status int
	res    http.ResponseWriter
}

func (lc *logCapture) Header() http.Header {
	return lc.res.Header()
}

func (lc *logCapture) Write(data []byte) (int, error) {
	return lc.res.Write(data)
}

func (lc *logCapture) WriteHeader(statusCode int) {
	lc.status = statusCode
	lc.res.WriteHeader(statusCode)
}

func (s *httpServer) withLogAndTimeout(handler http.Handler, requestTimeout time.Duration) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(req.Context(), s.calcRequestTimeout(req, requestTimeout))
		defer cancel()
		req = req.WithContext(ctx)

		log.L(ctx).Debugf("--> %s %s (%s)", req.Method, req.URL.Path, s.description)

		lc := &logCapture{res: res, status: http.StatusOK}
		handler.ServeHTTP(lc, req)

		durationMS := float64(time.Since(startTime)) / float64(time.Millisecond)
		log.L(ctx).Debugf("<-- %s %s [%d] (%.2fms)", req.Method, req.URL.Path, lc.status, durationMS)
	})
}

// calcRequestTimeout lets a client shorten, but never extend, the configured
// timeout with a Request-Timeout header of either seconds or a Go duration.
func (s *httpServer) calcRequestTimeout(req *http.Request, maxTimeout time.Duration) time.Duration {
	reqTimeoutHeader := req.Header.Get("Request-Timeout")
	if reqTimeoutHeader == "" {
		return maxTimeout
	}
	reqTimeout, err := time.ParseDuration(reqTimeoutHeader)
	if err != nil {
		secs, err := strconv.ParseUint(reqTimeoutHeader, 10, 32)
		if err != nil {
			log.L(req.Context()).Warnf("Ignoring invalid Request-Timeout header '%s'", reqTimeoutHeader)
			return maxTimeout
		}
		reqTimeout = time.Duration(secs) * time.Second
	}
	if reqTimeout > maxTimeout {
		return maxTimeout
	}
	return reqTimeout
}

func (s *httpServer) Start() error {
	s.started = true
	go s.runAPIServer()
	return nil
}

// Stop waits up to the shutdown timeout for in-flight requests, then closes them
func (s *httpServer) Stop() {
	if !s.started {
		return
	}
	log.L(s.ctx).Infof("%s server shutting down", s.description)
	shutdownStarted := time.Now()
	gracefulShutdown := make(chan struct{})
	go func() {
		defer close(gracefulShutdown)
		_ = s.httpServer.Shutdown(s.ctx)
	}()
	select {
	case <-time.After(s.shutdownTimeout):
		log.L(s.ctx).Warnf("%s server terminating after waiting %s for shutdown", s.description, time.Since(shutdownStarted))
		_ = s.httpServer.Close()
	case <-gracefulShutdown:
	}
	s.cancelCtx()
	err := <-s.httpServerDone
	log.L(s.ctx).Infof("%s server ended (err=%v)", s.description, err)
	s.started = false
}
