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

package retry

import (
	"context"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
)

type Retry struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	factor       float64
	maxAttempts  int
}

func NewRetryIndefinite(conf *pxconf.RetryConfig, defaults ...*pxconf.RetryConfig) *Retry {
	def := &pxconf.GenericRetryDefaults.RetryConfig
	if len(defaults) > 0 {
		def = defaults[0]
	}
	return &Retry{
		initialDelay: confutil.DurationMin(conf.InitialDelay, 0, *def.InitialDelay),
		maxDelay:     confutil.DurationMin(conf.MaxDelay, 0, *def.MaxDelay),
		factor:       confutil.Float64Min(conf.Factor, 1.0, *def.Factor),
	}
}

func NewRetryLimited(conf *pxconf.RetryConfigWithMax, defaults ...*pxconf.RetryConfigWithMax) *Retry {
	def := pxconf.GenericRetryDefaults
	if len(defaults) > 0 {
		def = defaults[0]
	}
	r := NewRetryIndefinite(&conf.RetryConfig, &def.RetryConfig)
	r.maxAttempts = confutil.IntMin(conf.MaxAttempts, 0, *def.MaxAttempts)
	return r
}

func (r *Retry) MaxAttempts() int {
	return r.maxAttempts
}

// Do invokes the function until it succeeds, returns retryable=false, or the attempts are exhausted.
// Results are passed back through the closure.
func (r *Retry) Do(ctx context.Context, do func(attempt int) (retryable bool, err error)) error {
	attempt := 0
	for {
		attempt++
		retryable, err := do(attempt)
		if err != nil {
			log.L(ctx).Errorf("%s (attempt=%d)", err, attempt)
		}
		if !retryable || err == nil || (r.maxAttempts > 0 && attempt >= r.maxAttempts) {
			return err
		}
		if err := r.WaitDelay(ctx, attempt); err != nil {
			return err
		}
	}
}

func (r *Retry) Delay(failureCount int) time.Duration {
	delay := r.initialDelay
	for i := 1; i < failureCount; i++ {
		delay = time.Duration(float64(delay) * r.factor)
		if delay > r.maxDelay {
			return r.maxDelay
		}
	}
	return delay
}

func (r *Retry) WaitDelay(ctx context.Context, failureCount int) error {
	if failureCount <= 0 {
		return nil
	}
	delay := r.Delay(failureCount)
	log.L(ctx).Debugf("Retrying after %.2fs (failures=%d)", delay.Seconds(), failureCount)
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return i18n.NewError(ctx, msgs.MsgContextCanceled)
	}
}

// UTSetMaxAttempts is for unit tests only. It turns an indefinite retry into a limited one,
// so error paths return instead of spinning.
func (r *Retry) UTSetMaxAttempts(maxAttempts int) {
	r.maxAttempts = maxAttempts
}
