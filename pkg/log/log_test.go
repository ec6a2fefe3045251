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

package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogging() {
	InitConfig(&pxconf.LogConfig{})
}

func TestLogContext(t *testing.T) {
	ctx := WithLogField(context.Background(), "stream", "pixelworld")
	assert.Equal(t, "pixelworld", L(ctx).Data["stream"])
}

func TestLogContextTruncatesLongValues(t *testing.T) {
	long := "0x000000000000000000000000000000000000000000000000000000000000004135"
	ctx := WithLogField(context.Background(), "position", long)
	assert.Equal(t, long[0:61]+"...", L(ctx).Data["position"])
}

func TestLogLevels(t *testing.T) {
	defer resetLogging()
	for _, tc := range []struct {
		in    string
		level logrus.Level
		out   string
	}{
		{"eRrOr", logrus.ErrorLevel, "error"},
		{"WARNING", logrus.WarnLevel, "warn"},
		{"DEBUG", logrus.DebugLevel, "debug"},
		{"trace", logrus.TraceLevel, "trace"},
		{"info", logrus.InfoLevel, "info"},
		{"something else", logrus.InfoLevel, "info"},
	} {
		SetLevel(tc.in)
		assert.Equal(t, tc.level, logrus.GetLevel())
		assert.Equal(t, tc.out, GetLevel())
	}
}

func TestSetFormattingUTC(t *testing.T) {
	defer resetLogging()
	InitConfig(&pxconf.LogConfig{
		DisableColor: confutil.P(true),
		UTC:          confutil.P(true),
	})
	L(context.Background()).Infof("time in UTC")
}

func TestSetFormattingVariants(t *testing.T) {
	defer resetLogging()
	for _, format := range []string{"detailed", "json", "simple"} {
		InitConfig(&pxconf.LogConfig{
			Format: confutil.P(format),
			Output: confutil.P("stdout"),
		})
		L(context.Background()).Infof("%s logs", format)
	}
}

func TestSetFormattingFile(t *testing.T) {
	defer resetLogging()
	logFile := filepath.Join(t.TempDir(), "projector.log")
	InitConfig(&pxconf.LogConfig{
		Output: confutil.P("file"),
		File: pxconf.LogFileConfig{
			Filename: confutil.P(logFile),
		},
	})
	L(context.Background()).Infof("File logs")

	fi, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.False(t, fi.IsDir())
}
