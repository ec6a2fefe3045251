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
	"sort"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/jernejc/PixelWorld/internal/metrics"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
	"github.com/jernejc/PixelWorld/pkg/retry"
	"github.com/jernejc/PixelWorld/pkg/rpcclient"
)

type State string

const (
	StateDisconnected State = "Disconnected"
	StateConnecting   State = "Connecting"
	StateSubscribed   State = "Subscribed"
	StateStreaming    State = "Streaming"
	StateReconnecting State = "Reconnecting"
	StateFailed       State = "Failed"
	StateStopped      State = "Stopped"
)

// Manager delivers ColorPixels logs of one contract as a sequential stream of batches.
// An instance runs once: after Failed or Stopped a new one must be built to carry on.
type Manager interface {
	// Start connects in the background. Batches at or before from are never emitted.
	Start(from *pxtypes.LogPosition) error
	// Batches is closed when the manager reaches Failed or Stopped
	Batches() <-chan *pxtypes.EventBatch
	State() State
	Done() <-chan struct{}
	Err() error
	Stop()
}

type ClientFactory func(ctx context.Context) (rpcclient.WSClient, error)

type manager struct {
	bgCtx     context.Context
	cancelCtx context.CancelFunc
	metrics   metrics.ProjectorMetrics
	decoder   *eventDecoder
	address   *ethtypes.Address0xHex
	fromBlock uint64
	pageSize  uint64
	reconnect *retry.Retry
	newClient ClientFactory

	mux         sync.Mutex
	state       State
	err         error
	lastEmitted *pxtypes.LogPosition
	batches     chan *pxtypes.EventBatch
	done        chan struct{}
}

func NewManager(ctx context.Context, conf *pxconf.BlockchainConfig, bufferSize int, m metrics.ProjectorMetrics) (Manager, error) {
	return newManager(ctx, conf, bufferSize, m, func(ctx context.Context) (rpcclient.WSClient, error) {
		return rpcclient.NewWSClient(ctx, &conf.WS)
	})
}

func newManager(ctx context.Context, conf *pxconf.BlockchainConfig, bufferSize int, m metrics.ProjectorMetrics, newClient ClientFactory) (*manager, error) {
	if conf.ContractAddress == "" {
		return nil, i18n.NewError(ctx, msgs.MsgSubscriptionMissingContract)
	}
	address, err := ethtypes.NewAddress(conf.ContractAddress)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgConfigInvalid, "contractAddress", err)
	}
	decoder, err := newEventDecoder(ctx, conf.EventABI)
	if err != nil {
		return nil, err
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	sm := &manager{
		metrics:   m,
		decoder:   decoder,
		address:   address,
		fromBlock: confutil.Uint64(conf.FromBlock, *pxconf.BlockchainDefaults.FromBlock),
		pageSize:  confutil.Uint64(conf.BackfillPageSize, *pxconf.BlockchainDefaults.BackfillPageSize),
		reconnect: retry.NewRetryLimited(&conf.Reconnect, &pxconf.BlockchainDefaults.Reconnect),
		newClient: newClient,
		state:     StateDisconnected,
		batches:   make(chan *pxtypes.EventBatch, bufferSize),
		done:      make(chan struct{}),
	}
	if sm.pageSize == 0 {
		sm.pageSize = *pxconf.BlockchainDefaults.BackfillPageSize
	}
	sm.bgCtx, sm.cancelCtx = context.WithCancel(log.WithLogField(ctx, "role", "subscription"))
	return sm, nil
}

func (sm *manager) Start(from *pxtypes.LogPosition) error {
	sm.mux.Lock()
	defer sm.mux.Unlock()
	if sm.state != StateDisconnected {
		return i18n.NewError(sm.bgCtx, msgs.MsgSubscriptionNotStartable, sm.state)
	}
	if from != nil {
		pos := *from
		sm.lastEmitted = &pos
	}
	sm.state = StateConnecting
	go sm.run()
	return nil
}

func (sm *manager) Batches() <-chan *pxtypes.EventBatch {
	return sm.batches
}

func (sm *manager) State() State {
	sm.mux.Lock()
	defer sm.mux.Unlock()
	return sm.state
}

func (sm *manager) Done() <-chan struct{} {
	return sm.done
}

func (sm *manager) Err() error {
	sm.mux.Lock()
	defer sm.mux.Unlock()
	return sm.err
}

func (sm *manager) Stop() {
	sm.mux.Lock()
	neverStarted := sm.state == StateDisconnected
	if neverStarted {
		sm.state = StateStopped
	}
	sm.mux.Unlock()
	sm.cancelCtx()
	if neverStarted {
		close(sm.batches)
		close(sm.done)
		return
	}
	<-sm.done
}

func (sm *manager) setState(state State) {
	sm.mux.Lock()
	defer sm.mux.Unlock()
	if sm.state != state {
		log.L(sm.bgCtx).Infof("Subscription state %s -> %s", sm.state, state)
		sm.state = state
	}
}

func (sm *manager) finish(state State, err error) {
	sm.mux.Lock()
	sm.err = err
	sm.mux.Unlock()
	sm.setState(state)
	if err != nil {
		log.L(sm.bgCtx).Errorf("Subscription failed: %s", err)
	}
}

// run owns the connection for the life of the manager. The first connection attempt after
// a drop is immediate, and consecutive failed attempts are bounded. Reaching Streaming
// resets the count.
func (sm *manager) run() {
	defer close(sm.done)
	defer close(sm.batches)
	ctx := sm.bgCtx

	failures := 0
	for {
		streamed, fatal, err := sm.session(ctx)
		if ctx.Err() != nil {
			sm.finish(StateStopped, nil)
			return
		}
		if fatal {
			sm.finish(StateFailed, err)
			return
		}
		if streamed {
			failures = 0
		} else {
			failures++
		}
		log.L(ctx).Warnf("Subscription transport error (failures=%d): %s", failures, err)
		if maxAttempts := sm.reconnect.MaxAttempts(); maxAttempts > 0 && failures >= maxAttempts {
			sm.finish(StateFailed, i18n.WrapError(ctx, err, msgs.MsgSubscriptionReconnectFailed, failures))
			return
		}
		sm.setState(StateReconnecting)
		if err := sm.reconnect.WaitDelay(ctx, failures); err != nil {
			sm.finish(StateStopped, nil)
			return
		}
		sm.metrics.IncReconnects()
	}
}

// session is one connection: subscribe, backfill, then stream until something breaks.
// It returns whether Streaming was reached, and whether the error is fatal to the manager.
func (sm *manager) session(ctx context.Context) (streamed, fatal bool, err error) {
	client, err := sm.newClient(ctx)
	if err != nil {
		return false, true, err
	}
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return false, false, err
	}
	sub, rpcErr := client.Subscribe(ctx, rpcclient.EthSubscribeConfig(), "logs", sm.filter(nil, nil))
	if rpcErr != nil {
		return false, false, i18n.WrapError(ctx, rpcErr, msgs.MsgSubscriptionFailed, rpcErr.Error())
	}
	sm.setState(StateSubscribed)

	if fatal, err := sm.backfill(ctx, client); err != nil {
		if fatal {
			sm.detach(ctx, client)
		}
		return false, fatal, err
	}
	sm.setState(StateStreaming)

	for {
		select {
		case n, ok := <-sub.Notifications():
			if !ok {
				return true, false, i18n.NewError(ctx, msgs.MsgRPCClientClosed)
			}
			if n.Error != nil {
				sm.detach(ctx, client)
				return true, true, i18n.NewError(ctx, msgs.MsgSubscriptionError, sub.ID(), n.Error.Message)
			}
			batch, err := sm.decoder.decodeNotification(ctx, n.Result)
			if err != nil {
				sm.detach(ctx, client)
				return true, true, err
			}
			if !sm.emit(ctx, batch) {
				return true, false, ctx.Err()
			}
		case <-ctx.Done():
			return true, false, ctx.Err()
		}
	}
}

func (sm *manager) detach(ctx context.Context, client rpcclient.WSClient) {
	if err := client.UnsubscribeAll(ctx); err != nil {
		log.L(ctx).Warnf("Unsubscribe failed: %s", err)
	}
	client.Close()
}

func (sm *manager) filter(from, to *ethtypes.HexUint64) *LogFilter {
	return &LogFilter{
		Address:   sm.address,
		Topics:    [][]ethtypes.HexBytes0xPrefix{{sm.decoder.signature}},
		FromBlock: from,
		ToBlock:   to,
	}
}

// backfill pages through eth_getLogs from the block of the last emitted position (or the
// configured start block) up to the head at the time of the call. Live notifications
// queue up in the subscription meanwhile.
func (sm *manager) backfill(ctx context.Context, client rpcclient.Client) (fatal bool, err error) {
	var head ethtypes.HexUint64
	if rpcErr := client.CallRPC(ctx, &head, "eth_blockNumber"); rpcErr != nil {
		return false, rpcErr
	}
	from := sm.fromBlock
	if sm.lastEmitted != nil {
		from = sm.lastEmitted.BlockNumber
	}
	log.L(ctx).Infof("Backfilling blocks %d-%d", from, head.Uint64())
	for from <= head.Uint64() {
		to := from + sm.pageSize - 1
		if to > head.Uint64() || to < from {
			to = head.Uint64()
		}
		var logs []*LogJSONRPC
		fromHex, toHex := ethtypes.HexUint64(from), ethtypes.HexUint64(to)
		if rpcErr := client.CallRPC(ctx, &logs, "eth_getLogs", sm.filter(&fromHex, &toHex)); rpcErr != nil {
			return false, rpcErr
		}
		sort.SliceStable(logs, func(i, j int) bool {
			return logs[i].position().Compare(logs[j].position()) < 0
		})
		for _, l := range logs {
			batch, err := sm.decoder.decode(ctx, l)
			if err != nil {
				return true, err
			}
			if !sm.emit(ctx, batch) {
				return false, ctx.Err()
			}
		}
		if to == head.Uint64() {
			break
		}
		from = to + 1
	}
	return false, nil
}

// emit drops anything at or before the last emitted position, so overlap between backfill
// and the live queue (or a redelivered block after reconnect) is delivered once.
func (sm *manager) emit(ctx context.Context, batch *pxtypes.EventBatch) bool {
	if batch.Position.AtOrBefore(sm.lastEmitted) {
		log.L(ctx).Debugf("Skipping log %s already delivered", batch.Position)
		return true
	}
	select {
	case sm.batches <- batch:
		pos := batch.Position
		sm.lastEmitted = &pos
		return true
	case <-ctx.Done():
		return false
	}
}
