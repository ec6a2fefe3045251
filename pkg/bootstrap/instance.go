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


package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/jernejc/PixelWorld/internal/metrics"
	"github.com/jernejc/PixelWorld/internal/projector"
	"github.com/jernejc/PixelWorld/internal/statusserver"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/persistence"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var persistenceFactory = persistence.NewPersistence
var projectorFactory = projector.NewProjector

type instance struct {
	configFile string

	ctx       context.Context
	cancelCtx context.CancelFunc
	signals   chan os.Signal
	stopped   atomic.Bool
	done      chan struct{}
}

type RC int

const (
	RC_OK   RC = 0
	RC_FAIL RC = 1
)

func newInstance(configFile string) *instance {
	i := &instance{
		configFile: configFile,
		signals:    make(chan os.Signal, 1),
		done:       make(chan struct{}),
	}
	i.ctx, i.cancelCtx = context.WithCancel(log.WithLogField(context.Background(), "pid", strconv.Itoa(os.Getpid())))
	return i
}

func (i *instance) signalHandler() {
	signal.Notify(i.signals, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(i.signals)
	select {
	case sig := <-i.signals:
		log.L(i.ctx).Infof("Stopping due to signal %s", sig)
		i.cancelCtx()
	case <-i.ctx.Done():
	}
}

func (i *instance) run() RC {
	defer func() {
		i.cancelCtx()
		close(i.done)
		running.Store(nil)
	}()
	go i.signalHandler()

	var conf pxconf.ProjectorConfig
	err := pxconf.ReadAndParseYAMLFile(i.ctx, i.configFile, &conf)
	if err == nil {
		err = pxconf.ApplyEnvOverrides(i.ctx, &conf)
	}
	if err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}
	log.InitConfig(&conf.Log)

	p, err := persistenceFactory(i.ctx, &conf.DB)
	if err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}
	defer p.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pm := metrics.InitMetrics(i.ctx, registry)

	pj, err := projectorFactory(i.ctx, &conf, p, pm)
	if err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}

	ss, err := statusserver.NewStatusServer(i.ctx, &conf.StatusServer, pj, registry)
	if err == nil {
		err = ss.Start()
	}
	if err != nil {
		log.L(i.ctx).Error(err.Error())
		return RC_FAIL
	}
	defer ss.Stop()

	// Run only returns early if the subscription fails beyond the restart policy
	if err := pj.Run(i.ctx); err != nil {
		log.L(i.ctx).Errorf("Projector stopped: %s", err)
		return RC_FAIL
	}
	log.L(i.ctx).Infof("Projector stopped")
	return RC_OK
}

func (i *instance) stop() {
	if i.stopped.CompareAndSwap(false, true) {
		i.cancelCtx()
		<-i.done
	}
}
