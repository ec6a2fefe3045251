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


package cache

import (
	"testing"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/stretchr/testify/assert"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[string, int](&pxconf.CacheConfig{Capacity: confutil.P(2)}, &pxconf.CacheConfig{Capacity: confutil.P(100)})
	assert.Equal(t, 2, c.Capacity())

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Get("b")
	assert.False(t, ok)
	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCacheDefaultsAndClear(t *testing.T) {
	c := NewCache[int, string](&pxconf.CacheConfig{}, &pxconf.CacheConfig{Capacity: confutil.P(10)})
	assert.Equal(t, 10, c.Capacity())

	c.Set(1, "one")
	c.Clear()
	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestCacheMinimumCapacity(t *testing.T) {
	c := NewCache[int, string](&pxconf.CacheConfig{Capacity: confutil.P(0)}, &pxconf.CacheConfig{Capacity: confutil.P(10)})
	assert.Equal(t, 1, c.Capacity())
}
