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
	"sync"
	"time"

	"github.com/jernejc/PixelWorld/internal/checkpoint"
	"github.com/jernejc/PixelWorld/internal/codec"
	"github.com/jernejc/PixelWorld/internal/metrics"
	"github.com/jernejc/PixelWorld/internal/publisher"
	"github.com/jernejc/PixelWorld/internal/raster"
	"github.com/jernejc/PixelWorld/internal/subscription"
	"github.com/jernejc/PixelWorld/pkg/cache"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/persistence"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
	"github.com/jernejc/PixelWorld/pkg/retry"
)

// Projector folds ColorPixels batches into the raster, publishing and checkpointing
// after each one
type Projector interface {
	// Run blocks until the context is canceled, or the subscription fails beyond the
	// restart policy
	Run(ctx context.Context) error
	ProcessBatch(ctx context.Context, batch *pxtypes.EventBatch) error
	Status() *Status
	// Artifact returns the bytes of the latest published raster
	Artifact(ctx context.Context) ([]byte, string, error)
}

type ManagerFactory func(ctx context.Context) (subscription.Manager, error)

type projector struct {
	codec        *codec.Codec
	store        *raster.Store
	tracker      *checkpoint.Tracker
	publisher    publisher.Publisher
	metrics      metrics.ProjectorMetrics
	publishRetry *retry.Retry
	newManager   ManagerFactory

	restartOnFailure bool
	restartDelay     time.Duration
	maxRestarts      int

	// owned by the goroutine running batches
	snapshot    *raster.Snapshot
	checkpoint  *pxtypes.Checkpoint
	// the snapshot has changes that failed to publish
	unpublished bool

	statusMux    sync.Mutex
	status       Status
	manager      subscription.Manager
	lastArtifact []byte
}

func NewProjector(ctx context.Context, conf *pxconf.ProjectorConfig, p persistence.Persistence, m metrics.ProjectorMetrics) (Projector, error) {
	pub, err := publisher.NewPublisher(ctx, &conf.Publisher, &conf.Raster)
	if err != nil {
		return nil, err
	}
	bufferSize := confutil.IntMin(conf.Projector.BatchBufferSize, 0, *pxconf.ProjectionDefaults.BatchBufferSize)
	return newProjector(ctx, conf, p, m, pub, func(ctx context.Context) (subscription.Manager, error) {
		return subscription.NewManager(ctx, &conf.Blockchain, bufferSize, m)
	})
}

func newProjector(ctx context.Context, conf *pxconf.ProjectorConfig, p persistence.Persistence, m metrics.ProjectorMetrics, pub publisher.Publisher, newManager ManagerFactory) (*projector, error) {
	store, err := raster.NewStore(ctx, &conf.Raster, &conf.Canvas)
	if err != nil {
		return nil, err
	}
	width, height := store.Dimensions()
	def := pxconf.ProjectionDefaults
	pc := &conf.Projector
	return &projector{
		codec:            codec.NewCodec(width, height).WithAddressCache(cache.NewCache[string, codec.PixelAddress](&pc.AddressCache, &def.AddressCache)),
		store:            store,
		tracker:          checkpoint.NewTracker(p, confutil.StringNotEmpty(pc.StreamName, *def.StreamName)),
		publisher:        pub,
		metrics:          m,
		publishRetry:     retry.NewRetryLimited(&pc.PublishRetry, &def.PublishRetry),
		newManager:       newManager,
		restartOnFailure: confutil.Bool(pc.RestartOnFailure, *def.RestartOnFailure),
		restartDelay:     confutil.DurationMin(pc.RestartDelay, 0, *def.RestartDelay),
		maxRestarts:      confutil.IntMin(pc.MaxRestarts, 0, *def.MaxRestarts),
		status:           Status{State: subscription.StateDisconnected},
	}, nil
}
