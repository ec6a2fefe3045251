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

package checkpoint

import (
	"context"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/persistence"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type dbCheckpoint struct {
	Stream      string `gorm:"column:stream;primaryKey"`
	BlockNumber int64  `gorm:"column:block_number"`
	LogIndex    int64  `gorm:"column:log_index"`
	Digest      string `gorm:"column:digest"`
	Location    string `gorm:"column:location"`
	CID         string `gorm:"column:cid"`
	Updated     int64  `gorm:"column:updated"`
}

func (dbCheckpoint) TableName() string {
	return "projector_checkpoints"
}

func (c *dbCheckpoint) position() pxtypes.LogPosition {
	return pxtypes.LogPosition{BlockNumber: uint64(c.BlockNumber), LogIndex: uint64(c.LogIndex)}
}

// Tracker durably records how far the projection has got for one named stream
type Tracker struct {
	p      persistence.Persistence
	stream string
}

func NewTracker(p persistence.Persistence, stream string) *Tracker {
	return &Tracker{p: p, stream: stream}
}

// Read returns nil when nothing has been processed yet
func (t *Tracker) Read(ctx context.Context) (*pxtypes.Checkpoint, error) {
	row, err := t.load(t.p.DB().WithContext(ctx))
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgCheckpointReadFailed, t.stream)
	}
	if row == nil {
		log.L(ctx).Infof("No checkpoint for stream '%s'", t.stream)
		return nil, nil
	}
	cp := &pxtypes.Checkpoint{Position: row.position(), Updated: row.Updated}
	if row.Digest != "" {
		cp.Handle = &pxtypes.ContentHandle{Digest: row.Digest, Location: row.Location, CID: row.CID}
	}
	log.L(ctx).Infof("Restored checkpoint for stream '%s' at %s", t.stream, cp.Position)
	return cp, nil
}

func (t *Tracker) load(db *gorm.DB) (*dbCheckpoint, error) {
	var rows []*dbCheckpoint
	err := db.Where("stream = ?", t.stream).Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Advance persists the checkpoint. It must succeed before the caller moves its own progress on.
func (t *Tracker) Advance(ctx context.Context, cp *pxtypes.Checkpoint) error {
	if cp.Updated == 0 {
		cp.Updated = time.Now().UnixNano()
	}
	row := &dbCheckpoint{
		Stream:      t.stream,
		BlockNumber: int64(cp.Position.BlockNumber),
		LogIndex:    int64(cp.Position.LogIndex),
		Updated:     cp.Updated,
	}
	if cp.Handle != nil {
		row.Digest = cp.Handle.Digest
		row.Location = cp.Handle.Location
		row.CID = cp.Handle.CID
	}
	var regression *dbCheckpoint
	err := t.p.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		existing, err := t.load(tx)
		if err != nil {
			return err
		}
		if existing != nil && existing.position().Compare(cp.Position) > 0 {
			regression = existing
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stream"}},
			DoUpdates: clause.AssignmentColumns([]string{"block_number", "log_index", "digest", "location", "cid", "updated"}),
		}).Create(row).Error
	})
	if err != nil {
		return i18n.WrapError(ctx, err, msgs.MsgCheckpointWriteFailed, t.stream, cp.Position)
	}
	if regression != nil {
		return i18n.NewError(ctx, msgs.MsgCheckpointRegression, t.stream, regression.position(), cp.Position)
	}
	log.L(ctx).Debugf("Checkpoint for stream '%s' advanced to %s", t.stream, cp.Position)
	return nil
}
