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

// Package codec converts between the on-chain hex forms of pixel positions and colors
// and their (column, row) and RGB values.
//
// A position is the ASCII text <ColumnLetters><RowNumber>, hex encoded. Columns use
// spreadsheet style bijective base-26 (0=A, 25=Z, 26=AA), rows are decimal with no
// leading zeros. A color is three bytes, six hex digits.
package codec

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/cache"
)

const colorBytes = 3

// PixelAddress locates a cell. Column maps to the image x axis, Row to the y axis.
type PixelAddress struct {
	Column int
	Row    int
}

func (a PixelAddress) String() string {
	return ColumnLetters(a.Column) + strconv.Itoa(a.Row)
}

type PixelColor struct {
	R, G, B uint8
}

func (c PixelColor) String() string {
	return EncodeColor(c)
}

// PixelUpdate is a single decoded entry of a batch
type PixelUpdate struct {
	Address PixelAddress
	Color   PixelColor
}

// Codec decodes positions against a bounded canvas
type Codec struct {
	width     int
	height    int
	addresses cache.Cache[string, PixelAddress]
}

func NewCodec(width, height int) *Codec {
	return &Codec{width: width, height: height}
}

// WithAddressCache memoizes successfully decoded positions
func (c *Codec) WithAddressCache(addresses cache.Cache[string, PixelAddress]) *Codec {
	c.addresses = addresses
	return c
}

// ColumnLetters returns the bijective base-26 letters for a zero based column
func ColumnLetters(column int) string {
	if column < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n := column + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// parseColumnLetters is the inverse of ColumnLetters. The limit stops overflow on long input.
func parseColumnLetters(letters string, limit int) (int, bool) {
	if letters == "" {
		return -1, false
	}
	v := 0
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		v = v*26 + int(ch-'A'+1)
		if v-1 >= limit {
			return v - 1, false
		}
	}
	return v - 1, true
}

func stripHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// DecodeAddress accepts the hex form with or without 0x, and tolerates NUL padding either
// side so both bytes32 (right padded) and uint256 (left padded) encodings decode.
func (c *Codec) DecodeAddress(ctx context.Context, hexPosition string) (PixelAddress, error) {
	key := strings.ToLower(stripHexPrefix(hexPosition))
	if c.addresses != nil {
		if a, ok := c.addresses.Get(key); ok {
			return a, nil
		}
	}
	b, err := hex.DecodeString(key)
	if err != nil {
		return PixelAddress{}, i18n.WrapError(ctx, err, msgs.MsgMalformedAddress, hexPosition)
	}
	a, err := c.ParseAddress(ctx, strings.Trim(string(b), "\x00"))
	if err == nil && c.addresses != nil {
		c.addresses.Set(key, a)
	}
	return a, err
}

// ParseAddress parses the textual form, such as "A5" or "ZZ999"
func (c *Codec) ParseAddress(ctx context.Context, text string) (PixelAddress, error) {
	split := 0
	for split < len(text) && text[split] >= 'A' && text[split] <= 'Z' {
		split++
	}
	letters, digits := text[:split], text[split:]
	if letters == "" || digits == "" || (len(digits) > 1 && digits[0] == '0') {
		return PixelAddress{}, i18n.NewError(ctx, msgs.MsgMalformedAddress, text)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return PixelAddress{}, i18n.NewError(ctx, msgs.MsgMalformedAddress, text)
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil {
		return PixelAddress{}, i18n.WrapError(ctx, err, msgs.MsgMalformedAddress, text)
	}
	column, inBounds := parseColumnLetters(letters, c.width)
	if !inBounds || row >= c.height {
		return PixelAddress{}, i18n.NewError(ctx, msgs.MsgAddressOutOfBounds, text, c.width, c.height)
	}
	return PixelAddress{Column: column, Row: row}, nil
}

// EncodeAddress returns unprefixed lower-case hex of the textual form, with no padding.
// Column and Row must be non-negative.
func EncodeAddress(a PixelAddress) string {
	return hex.EncodeToString([]byte(a.String()))
}

func DecodeColor(ctx context.Context, hexColor string) (PixelColor, error) {
	s := stripHexPrefix(hexColor)
	if len(s) != colorBytes*2 {
		return PixelColor{}, i18n.NewError(ctx, msgs.MsgMalformedColor, hexColor)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return PixelColor{}, i18n.WrapError(ctx, err, msgs.MsgMalformedColor, hexColor)
	}
	return PixelColor{R: b[0], G: b[1], B: b[2]}, nil
}

// EncodeColor returns six upper-case hex digits
func EncodeColor(c PixelColor) string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

// Decode converts one raw batch entry
func (c *Codec) Decode(ctx context.Context, hexPosition, hexColor string) (*PixelUpdate, error) {
	addr, err := c.DecodeAddress(ctx, hexPosition)
	if err != nil {
		return nil, err
	}
	color, err := DecodeColor(ctx, hexColor)
	if err != nil {
		return nil, err
	}
	return &PixelUpdate{Address: addr, Color: color}, nil
}
