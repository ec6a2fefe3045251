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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIPFS(t *testing.T, handler http.HandlerFunc) string {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}

func ipfsOK(t *testing.T, cid string, received *[]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("pin"))
		assert.Equal(t, "1", r.URL.Query().Get("cid-version"))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "world.png", header.Filename)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		if received != nil {
			*received = data
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(&ipfsAddResponse{Name: header.Filename, Hash: cid, Size: "3"})
	}
}

func TestDigest(t *testing.T) {
	// sha3-256 of the empty input
	assert.Equal(t, "sha3-256:a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", Digest([]byte{}))
}

func TestNewPublisherFileDisabled(t *testing.T) {
	// IPFS alone would leave nothing to restore the raster from
	_, err := NewPublisher(context.Background(), &pxconf.PublisherConfig{
		File: pxconf.FilePublisherConfig{Enabled: confutil.P(false)},
		IPFS: pxconf.IPFSPublisherConfig{Enabled: true, HTTPClientConfig: pxconf.HTTPClientConfig{URL: "http://localhost:5001"}},
	}, &pxconf.RasterConfig{Path: confutil.P("/data/world.png")})
	assert.Regexp(t, "PW010702.*/data/world.png", err)
}

func TestNewPublisherBadIPFSURL(t *testing.T) {
	_, err := NewPublisher(context.Background(), &pxconf.PublisherConfig{
		IPFS: pxconf.IPFSPublisherConfig{Enabled: true, HTTPClientConfig: pxconf.HTTPClientConfig{URL: "ftp://nope"}},
	}, &pxconf.RasterConfig{})
	assert.Regexp(t, "PW010704", err)
}

func TestFilePublisherAtomicWriteAndHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "world.png")
	historyDir := filepath.Join(dir, "history")

	p, err := NewPublisher(context.Background(), &pxconf.PublisherConfig{
		File: pxconf.FilePublisherConfig{HistoryDir: historyDir},
	}, &pxconf.RasterConfig{Path: &path, FileMode: confutil.P("0600")})
	require.NoError(t, err)
	assert.Equal(t, "file", p.Name())

	for _, content := range []string{"first", "second", "second"} {
		handle, err := p.Publish(context.Background(), []byte(content))
		require.NoError(t, err)
		assert.Equal(t, path, handle.Location)
		assert.Equal(t, Digest([]byte(content)), handle.Digest)
		assert.Empty(t, handle.CID)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))

		historyCopy := filepath.Join(historyDir, strings.TrimPrefix(handle.Digest, "sha3-256:")+".png")
		data, err = os.ReadFile(historyCopy)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	}

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	entries, err = os.ReadDir(historyDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFilePublisherUnavailable(t *testing.T) {
	dir := t.TempDir()
	// the parent of the artifact is a file, so the directory cannot be created
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte{}, 0644))

	p := NewFilePublisher(&pxconf.FilePublisherConfig{}, &pxconf.RasterConfig{Path: confutil.P(filepath.Join(blocker, "world.png"))})
	_, err := p.Publish(context.Background(), []byte("data"))
	assert.Regexp(t, "PW010700", err)
}

func TestFilePublisherHistoryUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte{}, 0644))

	p := NewFilePublisher(&pxconf.FilePublisherConfig{HistoryDir: filepath.Join(blocker, "history")},
		&pxconf.RasterConfig{Path: confutil.P(filepath.Join(dir, "world.png"))})
	_, err := p.Publish(context.Background(), []byte("data"))
	assert.Regexp(t, "PW010703", err)
}

func TestIPFSPublisher(t *testing.T) {
	var received []byte
	url := newTestIPFS(t, ipfsOK(t, "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", &received))

	p, err := NewIPFSPublisher(context.Background(), &pxconf.IPFSPublisherConfig{
		Enabled:          true,
		HTTPClientConfig: pxconf.HTTPClientConfig{URL: url},
	})
	require.NoError(t, err)

	handle, err := p.Publish(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(received))
	assert.Equal(t, "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", handle.CID)
	assert.Equal(t, "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", handle.Location)
	assert.Equal(t, Digest([]byte("png")), handle.Digest)
}

func TestIPFSPublisherErrorStatus(t *testing.T) {
	url := newTestIPFS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid project id"))
	})
	p, err := NewIPFSPublisher(context.Background(), &pxconf.IPFSPublisherConfig{
		HTTPClientConfig: pxconf.HTTPClientConfig{URL: url},
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), []byte("png"))
	assert.Regexp(t, `PW010701.*ipfs.*\[401\].*invalid project id`, err)
}

func TestIPFSPublisherMissingHash(t *testing.T) {
	url := newTestIPFS(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	p, err := NewIPFSPublisher(context.Background(), &pxconf.IPFSPublisherConfig{
		HTTPClientConfig: pxconf.HTTPClientConfig{URL: url},
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), []byte("png"))
	assert.Regexp(t, `PW010701.*\[200\]`, err)
}

func TestIPFSPublisherUnavailable(t *testing.T) {
	p, err := NewIPFSPublisher(context.Background(), &pxconf.IPFSPublisherConfig{
		HTTPClientConfig: pxconf.HTTPClientConfig{URL: "http://localhost:1"},
	})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), []byte("png"))
	assert.Regexp(t, "PW010700.*ipfs", err)
}

func TestIPFSPublisherRateLimited(t *testing.T) {
	calls := 0
	url := newTestIPFS(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Hash":"bafyabc"}`))
	})
	p, err := NewIPFSPublisher(context.Background(), &pxconf.IPFSPublisherConfig{
		HTTPClientConfig:  pxconf.HTTPClientConfig{URL: url},
		RequestsPerSecond: confutil.P(0.001),
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), []byte("png"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Publish(ctx, []byte("png"))
	assert.Regexp(t, "PW010700.*ipfs", err)
	assert.Equal(t, 1, calls)
}

func TestMultiPublisher(t *testing.T) {
	url := newTestIPFS(t, ipfsOK(t, "bafyabc", nil))
	path := filepath.Join(t.TempDir(), "world.png")

	p, err := NewPublisher(context.Background(), &pxconf.PublisherConfig{
		IPFS: pxconf.IPFSPublisherConfig{Enabled: true, HTTPClientConfig: pxconf.HTTPClientConfig{URL: url}},
	}, &pxconf.RasterConfig{Path: &path})
	require.NoError(t, err)
	assert.Equal(t, "file+ipfs", p.Name())

	handle, err := p.Publish(context.Background(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, path, handle.Location)
	assert.Equal(t, "bafyabc", handle.CID)
	assert.Equal(t, Digest([]byte("png")), handle.Digest)
}

func TestMultiPublisherStopsAtFirstFailure(t *testing.T) {
	calls := 0
	url := newTestIPFS(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte{}, 0644))

	p, err := NewPublisher(context.Background(), &pxconf.PublisherConfig{
		IPFS: pxconf.IPFSPublisherConfig{Enabled: true, HTTPClientConfig: pxconf.HTTPClientConfig{URL: url}},
	}, &pxconf.RasterConfig{Path: confutil.P(filepath.Join(blocker, "world.png"))})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), []byte("png"))
	assert.Regexp(t, "PW010700", err)
	assert.Zero(t, calls)
}
