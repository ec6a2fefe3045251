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
	"os"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/internal/subscription"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
)

type Status struct {
	State            subscription.State     `json:"state"`
	Checkpoint       *pxtypes.Checkpoint    `json:"checkpoint,omitempty"`
	LastPublished    *pxtypes.ContentHandle `json:"lastPublished,omitempty"`
	Restarts         int                    `json:"restarts"`
	BatchesApplied   int64                  `json:"batchesApplied"`
	BatchesDiscarded int64                  `json:"batchesDiscarded"`
	BatchesFailed    int64                  `json:"batchesFailed"`
	MalformedEntries int64                  `json:"malformedEntries"`
	Publishes        int64                  `json:"publishes"`
	LastError        string                 `json:"lastError,omitempty"`
}

func copyCheckpoint(cp *pxtypes.Checkpoint) *pxtypes.Checkpoint {
	if cp == nil {
		return nil
	}
	c := *cp
	if cp.Handle != nil {
		h := *cp.Handle
		c.Handle = &h
	}
	return &c
}

func (p *projector) updateStatus(fn func(s *Status)) {
	p.statusMux.Lock()
	defer p.statusMux.Unlock()
	fn(&p.status)
}

func (p *projector) setManager(m subscription.Manager) {
	p.statusMux.Lock()
	defer p.statusMux.Unlock()
	p.manager = m
}

// Status is safe to call from any goroutine
func (p *projector) Status() *Status {
	p.statusMux.Lock()
	defer p.statusMux.Unlock()
	s := p.status
	s.Checkpoint = copyCheckpoint(p.status.Checkpoint)
	if p.status.LastPublished != nil {
		h := *p.status.LastPublished
		s.LastPublished = &h
	}
	if p.manager != nil {
		s.State = p.manager.State()
	}
	return &s
}

func (p *projector) Artifact(ctx context.Context) ([]byte, string, error) {
	p.statusMux.Lock()
	data := p.lastArtifact
	p.statusMux.Unlock()
	if data != nil {
		return data, p.store.ContentType(), nil
	}
	// nothing published by this process yet, so serve what the last run left behind
	data, err := os.ReadFile(p.store.Path())
	if os.IsNotExist(err) {
		return nil, "", i18n.NewError(ctx, msgs.MsgHTTPServerNoArtifact)
	}
	if err != nil {
		log.L(ctx).Errorf("Failed to read %s: %s", p.store.Path(), err)
		return nil, "", i18n.WrapError(ctx, err, msgs.MsgHTTPServerArtifactFailure)
	}
	return data, p.store.ContentType(), nil
}
