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

package raster

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/codec"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

const (
	FormatPNG  = "png"
	FormatTIFF = "tiff"
	FormatBMP  = "bmp"
)

var contentTypes = map[string]string{
	FormatPNG:  "image/png",
	FormatTIFF: "image/tiff",
	FormatBMP:  "image/bmp",
}

// Snapshot is the in-memory canvas. It is owned by a single goroutine.
type Snapshot struct {
	img *image.NRGBA
}

func NewSnapshot(width, height int, fill codec.PixelColor) *Snapshot {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(toNRGBA(fill)), image.Point{}, draw.Src)
	return &Snapshot{img: img}
}

func toNRGBA(c codec.PixelColor) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (s *Snapshot) Width() int {
	return s.img.Bounds().Dx()
}

func (s *Snapshot) Height() int {
	return s.img.Bounds().Dy()
}

func (s *Snapshot) Get(a codec.PixelAddress) codec.PixelColor {
	c := s.img.NRGBAAt(a.Column, a.Row)
	return codec.PixelColor{R: c.R, G: c.G, B: c.B}
}

func (s *Snapshot) Clone() *Snapshot {
	img := image.NewNRGBA(s.img.Bounds())
	copy(img.Pix, s.img.Pix)
	return &Snapshot{img: img}
}

// ApplyUpdate sets one cell, reporting whether its color changed.
// Writes outside the canvas are ignored, the codec rejects those addresses before they get here.
func ApplyUpdate(s *Snapshot, u *codec.PixelUpdate) bool {
	if !(image.Point{X: u.Address.Column, Y: u.Address.Row}).In(s.img.Bounds()) {
		return false
	}
	changed := s.Get(u.Address) != u.Color
	s.img.SetNRGBA(u.Address.Column, u.Address.Row, toNRGBA(u.Color))
	return changed
}

type Store struct {
	path         string
	format       string
	width        int
	height       int
	defaultColor codec.PixelColor
}

func NewStore(ctx context.Context, conf *pxconf.RasterConfig, canvas *pxconf.CanvasConfig) (*Store, error) {
	st := &Store{
		path:   confutil.StringNotEmpty(conf.Path, *pxconf.RasterDefaults.Path),
		format: confutil.StringNotEmpty(conf.Format, *pxconf.RasterDefaults.Format),
		width:  confutil.IntMin(canvas.Width, 1, *pxconf.CanvasDefaults.Width),
		height: confutil.IntMin(canvas.Height, 1, *pxconf.CanvasDefaults.Height),
	}
	if _, ok := contentTypes[st.format]; !ok {
		return nil, i18n.NewError(ctx, msgs.MsgRasterUnknownFormat, st.format)
	}
	defaultColor := confutil.StringNotEmpty(canvas.DefaultColor, *pxconf.CanvasDefaults.DefaultColor)
	var err error
	if st.defaultColor, err = codec.DecodeColor(ctx, defaultColor); err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgInvalidCanvasDefault, defaultColor)
	}
	return st, nil
}

func (st *Store) Path() string {
	return st.path
}

func (st *Store) ContentType() string {
	return contentTypes[st.format]
}

func (st *Store) Dimensions() (width, height int) {
	return st.width, st.height
}

func (st *Store) Blank() *Snapshot {
	return NewSnapshot(st.width, st.height, st.defaultColor)
}

// Load returns the last published artifact, or a blank canvas if none exists yet
func (st *Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := st.Read(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		log.L(ctx).Infof("No raster artifact at %s, starting from a blank %dx%d canvas", st.path, st.width, st.height)
		return st.Blank(), nil
	}
	return st.Decode(ctx, data)
}

// Read returns the bytes of the artifact, nil if there is no file
func (st *Store) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgStoreUnavailable, st.path)
	}
	return data, nil
}

func (st *Store) Decode(ctx context.Context, data []byte) (*Snapshot, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgRasterDecodeFailed, st.path)
	}
	b := src.Bounds()
	if b.Dx() != st.width || b.Dy() != st.height {
		return nil, i18n.NewError(ctx, msgs.MsgRasterDimensionMismatch, st.path, b.Dx(), b.Dy(), st.width, st.height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, st.width, st.height))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	log.L(ctx).Infof("Loaded %dx%d %s raster from %s", st.width, st.height, format, st.path)
	return &Snapshot{img: img}, nil
}

// Serialize is deterministic for a given snapshot and format
func (st *Store) Serialize(ctx context.Context, s *Snapshot) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	switch st.format {
	case FormatTIFF:
		err = tiff.Encode(buf, s.img, &tiff.Options{Compression: tiff.Deflate})
	case FormatBMP:
		err = bmp.Encode(buf, s.img)
	default:
		err = (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(buf, s.img)
	}
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgRasterEncodeFailed, st.format)
	}
	return buf.Bytes(), nil
}
