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


package projector

import (
	"context"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/internal/subscription"
	"github.com/jernejc/PixelWorld/pkg/log"
)

// Run drives one subscription manager at a time, each started from the current checkpoint.
// A failed manager is replaced after the restart delay. Consecutive restarts without the
// checkpoint moving are bounded by maxRestarts, where zero means no bound.
func (p *projector) Run(ctx context.Context) error {
	ctx = log.WithLogField(ctx, "role", "projector")
	if err := p.init(ctx); err != nil {
		return err
	}

	restarts := 0
	for {
		before := p.checkpointPosition()
		m, err := p.newManager(ctx)
		if err != nil {
			return err
		}
		p.setManager(m)
		if err := m.Start(before); err != nil {
			return err
		}

		err = p.consume(ctx, m)
		m.Stop()
		if ctx.Err() != nil {
			log.L(ctx).Infof("Projector stopped at checkpoint %v", p.checkpointPosition())
			return nil
		}
		if err == nil {
			// manager stopped without an error
			err = i18n.NewError(ctx, msgs.MsgSubscriptionStopped)
		}
		p.updateStatus(func(s *Status) { s.LastError = err.Error() })

		if !p.restartOnFailure {
			return err
		}
		if after := p.checkpointPosition(); after != nil && (before == nil || after.Compare(*before) > 0) {
			restarts = 0
		}
		restarts++
		if p.maxRestarts > 0 && restarts > p.maxRestarts {
			return i18n.WrapError(ctx, err, msgs.MsgProjectorRestartsExhausted, restarts)
		}
		p.metrics.IncRestarts()
		p.updateStatus(func(s *Status) { s.Restarts++ })
		log.L(ctx).Warnf("Restarting subscription in %s (restart %d): %s", p.restartDelay, restarts, err)
		select {
		case <-time.After(p.restartDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

// consume processes batches until the manager finishes or the context is canceled.
// A batch that has started always runs to completion.
func (p *projector) consume(ctx context.Context, m subscription.Manager) error {
	batchCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		select {
		case batch, ok := <-m.Batches():
			if !ok {
				return m.Err()
			}
			if err := p.ProcessBatch(batchCtx, batch); err != nil {
				log.L(ctx).Errorf("Batch %s failed: %s", batch.Position, err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
