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

package wsclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
)

// WSClient is a single websocket connection. It does not reconnect: once Closed() fires
// the owner decides whether and when to dial a new one.
type WSClient interface {
	Connect(ctx context.Context) error
	Receive() <-chan []byte
	Send(ctx context.Context, message []byte) error
	Closed() <-chan struct{}
	URL() string
	Close()
}

type wsClient struct {
	url               string
	headers           http.Header
	wsdialer          *websocket.Dialer
	heartbeatInterval time.Duration

	writeMux  sync.Mutex
	wsconn    *websocket.Conn
	receive   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func New(ctx context.Context, config *pxconf.WSClientConfig) (WSClient, error) {
	u, err := ValidateConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	def := pxconf.DefaultWSConfig
	w := &wsClient{
		url:     u.String(),
		headers: make(http.Header),
		wsdialer: &websocket.Dialer{
			ReadBufferSize:   int(confutil.ByteSize(config.ReadBufferSize, 0, *def.ReadBufferSize)),
			WriteBufferSize:  int(confutil.ByteSize(config.WriteBufferSize, 0, *def.WriteBufferSize)),
			HandshakeTimeout: confutil.DurationMin(config.ConnectionTimeout, 0, *def.ConnectionTimeout),
			Proxy:            http.ProxyFromEnvironment,
		},
		heartbeatInterval: confutil.DurationMin(config.HeartbeatInterval, 0, *def.HeartbeatInterval),
		receive:           make(chan []byte),
		closed:            make(chan struct{}),
	}
	for k, v := range config.HTTPHeaders {
		w.headers.Set(k, v)
	}
	if config.Auth.Username != "" && config.Auth.Password != "" {
		creds := fmt.Sprintf("%s:%s", config.Auth.Username, config.Auth.Password)
		w.headers.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	}
	return w, nil
}

func ValidateConfig(ctx context.Context, config *pxconf.WSClientConfig) (*url.URL, error) {
	u, err := url.Parse(config.URL)
	if err != nil || !strings.HasPrefix(u.Scheme, "ws") {
		return nil, i18n.WrapError(ctx, err, msgs.MsgRPCClientInvalidURL, config.URL)
	}
	return u, nil
}

func (w *wsClient) URL() string {
	return w.url
}

func (w *wsClient) Receive() <-chan []byte {
	return w.receive
}

func (w *wsClient) Closed() <-chan struct{} {
	return w.closed
}

func (w *wsClient) Connect(ctx context.Context) error {
	conn, res, err := w.wsdialer.DialContext(ctx, w.url, w.headers)
	if err != nil {
		status := -1
		if res != nil {
			status = res.StatusCode
		}
		log.L(ctx).Warnf("WS %s connect failed [%d]: %s", w.url, status, err)
		return i18n.WrapError(ctx, err, msgs.MsgRPCClientConnectFailed, w.url)
	}
	w.wsconn = conn
	log.L(ctx).Infof("WS %s connected", w.url)

	bgCtx := log.WithLogField(context.Background(), "ws", w.url)
	go w.readLoop(bgCtx)
	if w.heartbeatInterval > 0 {
		go w.heartbeatLoop(bgCtx)
	}
	return nil
}

func (w *wsClient) Send(ctx context.Context, message []byte) error {
	select {
	case <-w.closed:
		return i18n.NewError(ctx, msgs.MsgRPCClientClosed)
	default:
	}
	w.writeMux.Lock()
	defer w.writeMux.Unlock()
	if err := w.wsconn.WriteMessage(websocket.TextMessage, message); err != nil {
		w.Close()
		return i18n.WrapError(ctx, err, msgs.MsgRPCClientClosed)
	}
	return nil
}

func (w *wsClient) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
		if w.wsconn != nil {
			_ = w.wsconn.Close()
		}
	})
}

func (w *wsClient) readLoop(ctx context.Context) {
	defer w.Close()
	if w.heartbeatInterval > 0 {
		// a missed pong, on top of a missed message, means the peer has gone
		_ = w.wsconn.SetReadDeadline(time.Now().Add(2 * w.heartbeatInterval))
		w.wsconn.SetPongHandler(func(string) error {
			return w.wsconn.SetReadDeadline(time.Now().Add(2 * w.heartbeatInterval))
		})
	}
	for {
		_, message, err := w.wsconn.ReadMessage()
		if err != nil {
			log.L(ctx).Infof("WS %s read ended: %s", w.url, err)
			return
		}
		if w.heartbeatInterval > 0 {
			_ = w.wsconn.SetReadDeadline(time.Now().Add(2 * w.heartbeatInterval))
		}
		log.L(ctx).Tracef("WS <-- %s", message)
		select {
		case w.receive <- message:
		case <-w.closed:
			return
		}
	}
}

func (w *wsClient) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.writeMux.Lock()
			err := w.wsconn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(w.heartbeatInterval))
			w.writeMux.Unlock()
			if err != nil {
				log.L(ctx).Warnf("WS %s heartbeat failed: %s", w.url, err)
				w.Close()
				return
			}
		case <-w.closed:
			return
		}
	}
}
