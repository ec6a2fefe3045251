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


package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

type ProjectorMetrics interface {
	IncBatchesApplied()
	IncBatchesDiscarded()
	IncBatchesFailed()
	AddPixelsChanged(n int)
	IncMalformedEntries()
	IncPublishes()
	IncPublishFailures()
	IncReconnects()
	IncRestarts()
	SetCheckpointBlock(block uint64)
}

var METRICS_SUBSYSTEM = "projector"

type projectorMetrics struct {
	batchesApplied   prometheus.Counter
	batchesDiscarded prometheus.Counter
	batchesFailed    prometheus.Counter
	pixelsChanged    prometheus.Counter
	malformedEntries prometheus.Counter
	publishes        prometheus.Counter
	publishFailures  prometheus.Counter
	reconnects       prometheus.Counter
	restarts         prometheus.Counter
	checkpointBlock  prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, Subsystem: METRICS_SUBSYSTEM})
}

func InitMetrics(ctx context.Context, registry *prometheus.Registry) ProjectorMetrics {
	m := &projectorMetrics{
		batchesApplied:   newCounter("batches_applied_total", "Event batches applied and checkpointed"),
		batchesDiscarded: newCounter("batches_discarded_total", "Event batches at or before the checkpoint"),
		batchesFailed:    newCounter("batches_failed_total", "Event batches that failed to publish or checkpoint"),
		pixelsChanged:    newCounter("pixels_changed_total", "Raster cells whose color changed"),
		malformedEntries: newCounter("malformed_entries_total", "Batch entries skipped as undecodable"),
		publishes:        newCounter("publishes_total", "Artifacts published"),
		publishFailures:  newCounter("publish_failures_total", "Publish attempts that failed"),
		reconnects:       newCounter("reconnects_total", "Ledger connection attempts after a transport drop"),
		restarts:         newCounter("restarts_total", "Subscription restarts after failure"),
		checkpointBlock: prometheus.NewGauge(prometheus.GaugeOpts{Name: "checkpoint_block",
			Help: "Block number of the durable checkpoint", Subsystem: METRICS_SUBSYSTEM}),
	}
	registry.MustRegister(
		m.batchesApplied, m.batchesDiscarded, m.batchesFailed,
		m.pixelsChanged, m.malformedEntries,
		m.publishes, m.publishFailures,
		m.reconnects, m.restarts,
		m.checkpointBlock,
	)
	return m
}

func (m *projectorMetrics) IncBatchesApplied() {
	m.batchesApplied.Inc()
}

func (m *projectorMetrics) IncBatchesDiscarded() {
	m.batchesDiscarded.Inc()
}

func (m *projectorMetrics) IncBatchesFailed() {
	m.batchesFailed.Inc()
}

func (m *projectorMetrics) AddPixelsChanged(n int) {
	m.pixelsChanged.Add(float64(n))
}

func (m *projectorMetrics) IncMalformedEntries() {
	m.malformedEntries.Inc()
}

func (m *projectorMetrics) IncPublishes() {
	m.publishes.Inc()
}

func (m *projectorMetrics) IncPublishFailures() {
	m.publishFailures.Inc()
}

func (m *projectorMetrics) IncReconnects() {
	m.reconnects.Inc()
}

func (m *projectorMetrics) IncRestarts() {
	m.restarts.Inc()
}

func (m *projectorMetrics) SetCheckpointBlock(block uint64) {
	m.checkpointBlock.Set(float64(block))
}
