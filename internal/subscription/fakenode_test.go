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


package subscription

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/jernejc/PixelWorld/pkg/rpcclient"
	"github.com/stretchr/testify/require"
)

const testContract = "0x3d3c1fb3f4bd2c2b0d6b1c5b7e0ea5b39c1c4a57"

// fakeNode is just enough of an Ethereum JSON-RPC websocket endpoint to drive the manager
type fakeNode struct {
	t         *testing.T
	server    *httptest.Server
	URL       string
	signature ethtypes.HexBytes0xPrefix

	mux            sync.Mutex
	head           uint64
	logs           []*LogJSONRPC
	conns          []*fakeConn
	connects       int
	reject         bool
	rejectSub      bool
	methods        []string
	getLogsFilters []*LogFilter
	subCounter     int
}

type fakeConn struct {
	conn     *websocket.Conn
	writeMux sync.Mutex
	subID    string
}

func newFakeNode(t *testing.T) *fakeNode {
	d, err := newEventDecoder(context.Background(), "")
	require.NoError(t, err)
	n := &fakeNode{t: t, signature: d.signature}
	upgrader := &websocket.Upgrader{}
	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		n.mux.Lock()
		reject := n.reject
		n.connects++
		n.mux.Unlock()
		if reject {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		fc := &fakeConn{conn: conn}
		n.mux.Lock()
		n.conns = append(n.conns, fc)
		n.mux.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			n.handle(fc, data)
		}
	}))
	n.URL = "ws://" + strings.TrimPrefix(n.server.URL, "http://")
	t.Cleanup(n.close)
	return n
}

func (n *fakeNode) close() {
	n.dropAll()
	n.server.Close()
}

func (fc *fakeConn) write(v interface{}) {
	b, _ := json.Marshal(v)
	fc.writeMux.Lock()
	defer fc.writeMux.Unlock()
	_ = fc.conn.WriteMessage(websocket.TextMessage, b)
}

func (n *fakeNode) handle(fc *fakeConn, data []byte) {
	var req rpcclient.RPCRequest
	require.NoError(n.t, json.Unmarshal(data, &req))
	res := &rpcclient.RPCResponse{JSONRpc: "2.0", ID: req.ID}

	n.mux.Lock()
	n.methods = append(n.methods, req.Method)
	var result interface{}
	switch req.Method {
	case "eth_subscribe":
		if n.rejectSub {
			res.Error = &rpcclient.RPCError{Code: -32000, Message: "subscriptions disabled"}
		} else {
			n.subCounter++
			fc.subID = fmt.Sprintf("0x%x", n.subCounter)
			result = fc.subID
		}
	case "eth_unsubscribe":
		fc.subID = ""
		result = true
	case "eth_blockNumber":
		result = ethtypes.HexUint64(n.head)
	case "eth_getLogs":
		var filter LogFilter
		require.NoError(n.t, json.Unmarshal(req.Params[0], &filter))
		n.getLogsFilters = append(n.getLogsFilters, &filter)
		matched := []*LogJSONRPC{}
		for _, l := range n.logs {
			if l.BlockNumber >= *filter.FromBlock && l.BlockNumber <= *filter.ToBlock {
				matched = append(matched, l)
			}
		}
		result = matched
	default:
		res.Error = &rpcclient.RPCError{Code: -32601, Message: "method not found"}
	}
	n.mux.Unlock()

	if res.Error == nil {
		res.Result, _ = json.Marshal(result)
	}
	fc.write(res)
}

func (n *fakeNode) notify(build func(subID string) *rpcclient.RPCSubscriptionNotification) {
	n.mux.Lock()
	subs := map[*fakeConn]string{}
	for _, fc := range n.conns {
		if fc.subID != "" {
			subs[fc] = fc.subID
		}
	}
	n.mux.Unlock()
	for fc, subID := range subs {
		params, _ := json.Marshal(build(subID))
		fc.write(&rpcclient.RPCResponse{JSONRpc: "2.0", Method: "eth_subscription", Params: params})
	}
}

// addLog stores a log for eth_getLogs, moves the head up to its block, and sends it to
// any live subscription
func (n *fakeNode) addLog(block, index uint64, positions []string, colors []string) *LogJSONRPC {
	l := n.buildLog(block, index, positions, colors)
	n.mux.Lock()
	n.logs = append(n.logs, l)
	if block > n.head {
		n.head = block
	}
	n.mux.Unlock()
	n.pushLog(l)
	return l
}

func (n *fakeNode) pushLog(l *LogJSONRPC) {
	result, _ := json.Marshal(l)
	n.notify(func(subID string) *rpcclient.RPCSubscriptionNotification {
		return &rpcclient.RPCSubscriptionNotification{Subscription: subID, Result: result}
	})
}

func (n *fakeNode) pushError(msg string) {
	n.notify(func(subID string) *rpcclient.RPCSubscriptionNotification {
		return &rpcclient.RPCSubscriptionNotification{Subscription: subID, Error: &rpcclient.RPCError{Code: -32000, Message: msg}}
	})
}

func (n *fakeNode) buildLog(block, index uint64, positions []string, colors []string) *LogJSONRPC {
	return &LogJSONRPC{
		BlockNumber:     ethtypes.HexUint64(block),
		LogIndex:        ethtypes.HexUint64(index),
		TransactionHash: ethtypes.MustNewHexBytes0xPrefix(fmt.Sprintf("0x%064x", block*1000+index)),
		Address:         ethtypes.MustNewAddress(testContract),
		Topics:          []ethtypes.HexBytes0xPrefix{n.signature},
		Data:            encodeColorPixels(positions, colors),
	}
}

func (n *fakeNode) dropAll() {
	n.mux.Lock()
	conns := n.conns
	n.conns = nil
	n.mux.Unlock()
	for _, fc := range conns {
		_ = fc.conn.Close()
	}
}

func (n *fakeNode) setReject(reject bool) {
	n.mux.Lock()
	defer n.mux.Unlock()
	n.reject = reject
}

func (n *fakeNode) connectCount() int {
	n.mux.Lock()
	defer n.mux.Unlock()
	return n.connects
}

func (n *fakeNode) calledMethods() []string {
	n.mux.Lock()
	defer n.mux.Unlock()
	return append([]string{}, n.methods...)
}

func word(v uint64) []byte {
	w := make([]byte, 32)
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func rightPadded(b []byte) []byte {
	w := make([]byte, 32)
	copy(w, b)
	return w
}

// encodeColorPixels ABI encodes (bytes32[],bytes3[]). Positions are address text such
// as "A5", colors are 6 hex digits.
func encodeColorPixels(positions []string, colors []string) []byte {
	data := append(word(0x40), word(uint64(0x40+32*(1+len(positions))))...)
	data = append(data, word(uint64(len(positions)))...)
	for _, p := range positions {
		data = append(data, rightPadded([]byte(p))...)
	}
	data = append(data, word(uint64(len(colors)))...)
	for _, c := range colors {
		b, err := hex.DecodeString(c)
		if err != nil {
			panic(err)
		}
		data = append(data, rightPadded(b)...)
	}
	return data
}
