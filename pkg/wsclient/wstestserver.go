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
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/websocket"
)

// TestWSServer is a websocket peer for unit tests. Messages the client sends arrive on
// ToServer, messages written to FromServer go to the client. DropConnections closes every
// socket currently open, while still accepting new ones.
type TestWSServer struct {
	ToServer   chan string
	FromServer chan string
	URL        string

	server *httptest.Server
	mux    sync.Mutex
	conns  []*websocket.Conn
	done   chan struct{}
}

func NewTestWSServer(testReq func(req *http.Request)) *TestWSServer {
	ts := &TestWSServer{
		ToServer:   make(chan string, 100),
		FromServer: make(chan string),
		done:       make(chan struct{}),
	}
	upgrader := &websocket.Upgrader{WriteBufferSize: 1024, ReadBufferSize: 1024}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if testReq != nil {
			testReq(req)
		}
		conn, err := upgrader.Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		ts.mux.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mux.Unlock()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				select {
				case ts.ToServer <- string(data):
				case <-ts.done:
					return
				}
			}
		}()
		for {
			select {
			case data := <-ts.FromServer:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
					return
				}
			case <-closed:
				return
			case <-ts.done:
				_ = conn.Close()
				return
			}
		}
	}))
	ts.URL = fmt.Sprintf("ws://%s", ts.server.Listener.Addr())
	return ts
}

func (ts *TestWSServer) DropConnections() {
	ts.mux.Lock()
	defer ts.mux.Unlock()
	for _, c := range ts.conns {
		_ = c.Close()
	}
	ts.conns = nil
}

func (ts *TestWSServer) Close() {
	close(ts.done)
	ts.DropConnections()
	ts.server.Close()
}
