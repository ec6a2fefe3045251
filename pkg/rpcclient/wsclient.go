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

package rpcclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/wsclient"
)

type wsRPCClient struct {
	mux            sync.Mutex
	client         wsclient.WSClient
	requestCounter int64
	requestTimeout time.Duration

	inflight           map[string]chan *RPCResponse
	pendingSubsByReqID map[string]*sub
	activeSubsBySubID  map[string]*sub

	closed    chan struct{}
	closeOnce sync.Once
}

type sub struct {
	rc      *wsRPCClient
	localID uuid.UUID
	conf    SubscriptionConfig
	subID   string

	mux      sync.Mutex
	queue    []*RPCSubscriptionNotification
	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	out      chan *RPCSubscriptionNotification
}

func NewWSClient(ctx context.Context, conf *pxconf.WSClientConfig) (WSClient, error) {
	client, err := wsclient.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return WrapWSClient(client, confutil.DurationMin(conf.RequestTimeout, 0, *pxconf.DefaultWSConfig.RequestTimeout)), nil
}

func WrapWSClient(client wsclient.WSClient, requestTimeout time.Duration) WSClient {
	return &wsRPCClient{
		client:             client,
		requestTimeout:     requestTimeout,
		inflight:           make(map[string]chan *RPCResponse),
		pendingSubsByReqID: make(map[string]*sub),
		activeSubsBySubID:  make(map[string]*sub),
		closed:             make(chan struct{}),
	}
}

func (rc *wsRPCClient) Connect(ctx context.Context) error {
	if err := rc.client.Connect(ctx); err != nil {
		return err
	}
	go rc.receiveLoop(log.WithLogField(context.Background(), "rpc", rc.client.URL()))
	return nil
}

func (rc *wsRPCClient) Closed() <-chan struct{} {
	return rc.closed
}

func (rc *wsRPCClient) Close() {
	rc.client.Close()
	rc.shutdown()
}

func (rc *wsRPCClient) shutdown() {
	rc.closeOnce.Do(func() {
		close(rc.closed)
		rc.mux.Lock()
		subs := make([]*sub, 0, len(rc.activeSubsBySubID))
		for _, s := range rc.activeSubsBySubID {
			subs = append(subs, s)
		}
		rc.mux.Unlock()
		for _, s := range subs {
			s.end()
		}
	})
}

func (rc *wsRPCClient) allocateRequestID(req *RPCRequest) string {
	reqID := formatID(atomic.AddInt64(&rc.requestCounter, 1))
	req.ID = json.RawMessage(`"` + reqID + `"`)
	return reqID
}

func (rc *wsRPCClient) CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) ErrorRPC {
	req, rpcErr := buildRequest(ctx, method, params)
	if rpcErr != nil {
		return rpcErr
	}
	res, rpcErr := rc.roundTrip(ctx, req, nil)
	if rpcErr != nil {
		return rpcErr
	}
	if result != nil && len(res.Result) > 0 {
		if err := json.Unmarshal(res.Result, result); err != nil {
			return NewRPCError(ctx, RPCCodeParseError, msgs.MsgRPCClientResultParseFail, method)
		}
	}
	return nil
}

// roundTrip sends the request and waits for the response. A subscription passed in is
// registered against the request ID, so the receive loop can activate it before processing
// any notification that follows the response.
func (rc *wsRPCClient) roundTrip(ctx context.Context, req *RPCRequest, pendingSub *sub) (*RPCResponse, ErrorRPC) {
	reqID := rc.allocateRequestID(req)
	resChl := make(chan *RPCResponse, 1)
	rc.mux.Lock()
	rc.inflight[reqID] = resChl
	if pendingSub != nil {
		rc.pendingSubsByReqID[reqID] = pendingSub
	}
	rc.mux.Unlock()
	defer func() {
		rc.mux.Lock()
		delete(rc.inflight, reqID)
		delete(rc.pendingSubsByReqID, reqID)
		rc.mux.Unlock()
	}()

	b, _ := json.Marshal(req)
	log.L(ctx).Debugf("RPC[%s] --> %s", reqID, req.Method)
	if err := rc.client.Send(ctx, b); err != nil {
		return nil, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientSendFailed, req.Method)
	}

	var timeout <-chan time.Time
	if rc.requestTimeout > 0 {
		timer := time.NewTimer(rc.requestTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case res := <-resChl:
		if res.Error != nil {
			log.L(ctx).Errorf("RPC[%s] <-- %s ERROR: %s", reqID, req.Method, res.Error.Message)
			return nil, res.Error
		}
		log.L(ctx).Debugf("RPC[%s] <-- %s", reqID, req.Method)
		return res, nil
	case <-ctx.Done():
		return nil, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgContextCanceled)
	case <-timeout:
		return nil, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientRequestFailed, req.Method, "timeout")
	case <-rc.closed:
		return nil, NewRPCError(ctx, RPCCodeInternalError, msgs.MsgRPCClientClosed)
	}
}

func (rc *wsRPCClient) Subscribe(ctx context.Context, conf SubscriptionConfig, params ...interface{}) (Subscription, ErrorRPC) {
	s := &sub{
		rc:      rc,
		localID: uuid.New(),
		conf:    conf,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		out:     make(chan *RPCSubscriptionNotification),
	}
	req, rpcErr := buildRequest(ctx, conf.SubscribeMethod, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if _, rpcErr = rc.roundTrip(ctx, req, s); rpcErr != nil {
		rc.mux.Lock()
		if s.subID != "" {
			delete(rc.activeSubsBySubID, s.subID)
		}
		rc.mux.Unlock()
		s.end()
		return nil, rpcErr
	}
	return s, nil
}

func (rc *wsRPCClient) Subscriptions() []Subscription {
	rc.mux.Lock()
	defer rc.mux.Unlock()
	subs := make([]Subscription, 0, len(rc.activeSubsBySubID))
	for _, s := range rc.activeSubsBySubID {
		subs = append(subs, s)
	}
	return subs
}

func (rc *wsRPCClient) UnsubscribeAll(ctx context.Context) (rpcErr ErrorRPC) {
	for _, s := range rc.Subscriptions() {
		if err := s.Unsubscribe(ctx); err != nil {
			rpcErr = err
		}
	}
	return rpcErr
}

func (rc *wsRPCClient) receiveLoop(ctx context.Context) {
	defer rc.shutdown()
	for {
		select {
		case b := <-rc.client.Receive():
			rc.handleMessage(ctx, b)
		case <-rc.client.Closed():
			log.L(ctx).Infof("RPC connection closed")
			return
		}
	}
}

func (rc *wsRPCClient) handleMessage(ctx context.Context, b []byte) {
	var res RPCResponse
	if err := json.Unmarshal(b, &res); err != nil {
		log.L(ctx).Errorf("Unable to parse received message: %s", err)
		return
	}
	if res.Method != "" {
		rc.handleNotification(ctx, &res)
		return
	}
	reqID := res.idString()
	rc.mux.Lock()
	resChl := rc.inflight[reqID]
	if s := rc.pendingSubsByReqID[reqID]; s != nil && res.Error == nil {
		var subID string
		if err := json.Unmarshal(res.Result, &subID); err == nil && subID != "" {
			s.subID = subID
			rc.activeSubsBySubID[subID] = s
			go s.pump()
		} else {
			res.Error = &RPCError{Code: int64(RPCCodeParseError), Message: "invalid subscription ID"}
		}
	}
	rc.mux.Unlock()
	if resChl == nil {
		log.L(ctx).Warnf("Unable to process received message for request '%s'", reqID)
		return
	}
	resChl <- &res
}

func (rc *wsRPCClient) handleNotification(ctx context.Context, res *RPCResponse) {
	var n RPCSubscriptionNotification
	if err := json.Unmarshal(res.Params, &n); err != nil {
		log.L(ctx).Errorf("Unable to parse '%s' notification: %s", res.Method, err)
		return
	}
	rc.mux.Lock()
	s := rc.activeSubsBySubID[n.Subscription]
	rc.mux.Unlock()
	if s == nil || s.conf.NotificationMethod != res.Method {
		log.L(ctx).Warnf("Received '%s' notification for untracked subscription '%s'", res.Method, n.Subscription)
		return
	}
	s.push(&n)
}

func (s *sub) LocalID() uuid.UUID {
	return s.localID
}

func (s *sub) ID() string {
	return s.subID
}

func (s *sub) Notifications() <-chan *RPCSubscriptionNotification {
	return s.out
}

func (s *sub) Unsubscribe(ctx context.Context) ErrorRPC {
	rc := s.rc
	rc.mux.Lock()
	delete(rc.activeSubsBySubID, s.subID)
	rc.mux.Unlock()
	defer s.end()

	var ok bool
	return rc.CallRPC(ctx, &ok, s.conf.UnsubscribeMethod, s.subID)
}

// push never blocks the receive loop, so a consumer busy making RPC calls of its own
// cannot stall the responses it is waiting for
func (s *sub) push(n *RPCSubscriptionNotification) {
	s.mux.Lock()
	s.queue = append(s.queue, n)
	s.mux.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *sub) pump() {
	defer close(s.out)
	for {
		s.mux.Lock()
		var next *RPCSubscriptionNotification
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mux.Unlock()
		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		select {
		case s.out <- next:
		case <-s.stop:
			return
		}
	}
}

func (s *sub) end() {
	s.stopOnce.Do(func() { close(s.stop) })
}
