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


package publisher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/jernejc/PixelWorld/pkg/pxtypes"
)

type filePublisher struct {
	path       string
	mode       fs.FileMode
	historyDir string
}

func NewFilePublisher(conf *pxconf.FilePublisherConfig, raster *pxconf.RasterConfig) Publisher {
	return &filePublisher{
		path:       confutil.StringNotEmpty(raster.Path, *pxconf.RasterDefaults.Path),
		mode:       confutil.UnixFileMode(raster.FileMode, *pxconf.RasterDefaults.FileMode),
		historyDir: conf.HistoryDir,
	}
}

func (fp *filePublisher) Name() string {
	return "file"
}

// Publish replaces the artifact with a rename, so readers see the old or the new image
// and never a partial one
func (fp *filePublisher) Publish(ctx context.Context, data []byte) (*pxtypes.ContentHandle, error) {
	handle := &pxtypes.ContentHandle{Digest: Digest(data), Location: fp.path}
	if err := writeAtomic(fp.path, data, fp.mode); err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgPublishUnavailable, fp.path)
	}
	if fp.historyDir != "" {
		historyPath := filepath.Join(fp.historyDir, strings.TrimPrefix(handle.Digest, digestPrefix)+filepath.Ext(fp.path))
		if _, err := os.Stat(historyPath); err == nil {
			log.L(ctx).Debugf("History copy %s already exists", historyPath)
		} else if err := writeAtomic(historyPath, data, fp.mode); err != nil {
			return nil, i18n.WrapError(ctx, err, msgs.MsgPublishHistoryFailed, historyPath)
		}
	}
	log.L(ctx).Debugf("Wrote %d bytes to %s", len(data), fp.path)
	return handle, nil
}

func writeAtomic(path string, data []byte, mode fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Chmod(mode); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
