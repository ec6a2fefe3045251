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
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
)

type RPCCode int64

const (
	RPCCodeParseError     RPCCode = -32700
	RPCCodeInvalidRequest RPCCode = -32600
	RPCCodeInternalError  RPCCode = -32603
)

type ErrorRPC interface {
	error
	RPCError() *RPCError
}

type Client interface {
	CallRPC(ctx context.Context, result interface{}, method string, params ...interface{}) ErrorRPC
}

type SubscriptionConfig struct {
	SubscribeMethod    string
	UnsubscribeMethod  string
	NotificationMethod string
}

func EthSubscribeConfig() SubscriptionConfig {
	return SubscriptionConfig{
		SubscribeMethod:    "eth_subscribe",
		UnsubscribeMethod:  "eth_unsubscribe",
		NotificationMethod: "eth_subscription",
	}
}

type WSClient interface {
	Client
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, conf SubscriptionConfig, params ...interface{}) (Subscription, ErrorRPC)
	Subscriptions() []Subscription
	UnsubscribeAll(ctx context.Context) ErrorRPC
	// Closed fires when the underlying connection is lost, or Close is called
	Closed() <-chan struct{}
	Close()
}

type Subscription interface {
	LocalID() uuid.UUID
	ID() string
	// Notifications is closed when the subscription ends, for any reason
	Notifications() <-chan *RPCSubscriptionNotification
	Unsubscribe(ctx context.Context) ErrorRPC
}

type RPCRequest struct {
	JSONRpc string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type RPCError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

func (e *RPCError) RPCError() *RPCError {
	return e
}

type RPCResponse struct {
	JSONRpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	// Only for subscription notifications
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (r *RPCResponse) idString() string {
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.ID))
}

// RPCSubscriptionNotification is the params object of a notification. Some nodes report
// subscription failures with an error here rather than closing the socket.
type RPCSubscriptionNotification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        *RPCError       `json:"error,omitempty"`
}

func buildRequest(ctx context.Context, method string, params []interface{}) (*RPCRequest, ErrorRPC) {
	req := &RPCRequest{
		JSONRpc: "2.0",
		Method:  method,
		Params:  make([]json.RawMessage, len(params)),
	}
	for i, param := range params {
		b, err := json.Marshal(param)
		if err != nil {
			return nil, NewRPCError(ctx, RPCCodeInvalidRequest, msgs.MsgRPCClientRequestFailed, method, err)
		}
		req.Params[i] = b
	}
	return req, nil
}

func NewRPCError(ctx context.Context, code RPCCode, msg i18n.ErrorMessageKey, inserts ...interface{}) *RPCError {
	return &RPCError{Code: int64(code), Message: i18n.NewError(ctx, msg, inserts...).Error()}
}

func formatID(counter int64) string {
	return fmt.Sprintf("%.9d", counter)
}
