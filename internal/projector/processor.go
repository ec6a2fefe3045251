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

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/codec"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/internal/publisher"
	"github.com/jernejc/PixelWorld/internal/raster"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
)

// init restores the checkpoint and the raster it was taken against
func (p *projector) init(ctx context.Context) (err error) {
	if p.snapshot != nil {
		return nil
	}
	if p.checkpoint, err = p.tracker.Read(ctx); err != nil {
		return err
	}
	if p.checkpoint == nil || p.checkpoint.Handle == nil {
		p.snapshot, err = p.store.Load(ctx)
	} else {
		p.snapshot, err = p.restore(ctx, p.checkpoint)
	}
	if err != nil {
		return err
	}
	if p.checkpoint != nil {
		p.metrics.SetCheckpointBlock(p.checkpoint.Position.BlockNumber)
	}
	p.updateStatus(func(s *Status) { s.Checkpoint = copyCheckpoint(p.checkpoint) })
	return nil
}

// restore loads the artifact the checkpoint recorded. A checkpoint without its artifact is an
// error, as a blank canvas would drop every pixel the checkpoint covers.
func (p *projector) restore(ctx context.Context, cp *pxtypes.Checkpoint) (*raster.Snapshot, error) {
	data, err := p.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		log.L(ctx).Errorf("Checkpoint %s has no raster artifact at %s", cp.Position, p.store.Path())
		return nil, i18n.NewError(ctx, msgs.MsgStoreUnavailable, p.store.Path())
	}
	if digest := publisher.Digest(data); digest != cp.Handle.Digest {
		return nil, i18n.NewError(ctx, msgs.MsgRasterDigestMismatch, p.store.Path(), digest, cp.Position, cp.Handle.Digest)
	}
	return p.store.Decode(ctx, data)
}

func (p *projector) checkpointPosition() *pxtypes.LogPosition {
	if p.checkpoint == nil {
		return nil
	}
	pos := p.checkpoint.Position
	return &pos
}

func (p *projector) decodeEntries(ctx context.Context, batch *pxtypes.EventBatch) []*codec.PixelUpdate {
	count := max(len(batch.Positions), len(batch.Colors))
	updates := make([]*codec.PixelUpdate, 0, count)
	for i := 0; i < count; i++ {
		var err error
		var u *codec.PixelUpdate
		switch {
		case i >= len(batch.Positions) || batch.Positions[i] == "":
			err = i18n.NewError(ctx, msgs.MsgMissingBatchEntry, i, "position")
		case i >= len(batch.Colors) || batch.Colors[i] == "":
			err = i18n.NewError(ctx, msgs.MsgMissingBatchEntry, i, "color")
		default:
			u, err = p.codec.Decode(ctx, batch.Positions[i], batch.Colors[i])
		}
		if err != nil {
			log.L(ctx).Warnf("Skipping entry %d: %s", i, err)
			p.metrics.IncMalformedEntries()
			p.updateStatus(func(s *Status) { s.MalformedEntries++ })
			continue
		}
		updates = append(updates, u)
	}
	return updates
}

// ProcessBatch applies one batch. On error the raster keeps the batch's changes but the
// checkpoint does not move, so a redelivery is applied again. Until those changes are
// published every later batch publishes too, even one with nothing to apply.
func (p *projector) ProcessBatch(ctx context.Context, batch *pxtypes.EventBatch) error {
	ctx = log.WithLogField(ctx, "batch", batch.ID.String())
	if err := p.init(ctx); err != nil {
		return err
	}

	if batch.Position.AtOrBefore(p.checkpointPosition()) {
		log.L(ctx).Debugf("Discarding batch at %s, checkpoint is %s", batch.Position, p.checkpoint.Position)
		p.metrics.IncBatchesDiscarded()
		p.updateStatus(func(s *Status) { s.BatchesDiscarded++ })
		return nil
	}

	updates := p.decodeEntries(ctx, batch)
	changed := 0
	for _, u := range updates {
		if raster.ApplyUpdate(p.snapshot, u) {
			changed++
		}
	}
	p.metrics.AddPixelsChanged(changed)
	log.L(ctx).Infof("Batch at %s (tx=%s): %d/%d entries applied, %d pixels changed",
		batch.Position, batch.TransactionHash, len(updates), max(len(batch.Positions), len(batch.Colors)), changed)

	next := &pxtypes.Checkpoint{Position: batch.Position}
	if p.checkpoint != nil {
		next.Handle = p.checkpoint.Handle
	}
	if len(updates) > 0 || p.unpublished {
		handle, data, err := p.publish(ctx)
		if err != nil {
			p.unpublished = true
			return p.batchFailed(ctx, batch, err)
		}
		p.unpublished = false
		next.Handle = handle
		p.updateStatus(func(s *Status) {
			s.LastPublished = handle
			s.Publishes++
		})
		p.statusMux.Lock()
		p.lastArtifact = data
		p.statusMux.Unlock()
	}

	if err := p.tracker.Advance(ctx, next); err != nil {
		return p.batchFailed(ctx, batch, err)
	}
	p.checkpoint = next
	p.metrics.IncBatchesApplied()
	p.metrics.SetCheckpointBlock(next.Position.BlockNumber)
	p.updateStatus(func(s *Status) {
		s.Checkpoint = copyCheckpoint(next)
		s.BatchesApplied++
	})
	return nil
}

func (p *projector) publish(ctx context.Context) (handle *pxtypes.ContentHandle, data []byte, err error) {
	if data, err = p.store.Serialize(ctx, p.snapshot); err != nil {
		return nil, nil, err
	}
	err = p.publishRetry.Do(ctx, func(attempt int) (retryable bool, err error) {
		handle, err = p.publisher.Publish(ctx, data)
		if err != nil {
			p.metrics.IncPublishFailures()
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return nil, nil, err
	}
	p.metrics.IncPublishes()
	return handle, data, nil
}

func (p *projector) batchFailed(ctx context.Context, batch *pxtypes.EventBatch, err error) error {
	p.metrics.IncBatchesFailed()
	p.updateStatus(func(s *Status) {
		s.BatchesFailed++
		s.LastError = err.Error()
	})
	return i18n.WrapError(ctx, err, msgs.MsgProjectorBatchFailed, batch.Position)
}
