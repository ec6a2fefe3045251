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

package httpserver

import (
	"context"
	"net/http"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"github.com/rs/cors"
)

var DefaultCORS = &pxconf.CORSConfig{
	AllowedOrigins: []string{"*"},
	MaxAge:         confutil.P("0"),
}

// WrapCorsIfEnabled lets browsers on the allowed origins read the server. Everything served
// is public and read-only, so only GET and HEAD are allowed, with no credentials.
func WrapCorsIfEnabled(ctx context.Context, chain http.Handler, conf *pxconf.CORSConfig) http.Handler {
	if !conf.Enabled {
		return chain
	}
	origins := confutil.StringSlice(conf.AllowedOrigins, DefaultCORS.AllowedOrigins)
	maxAge := confutil.DurationMin(conf.MaxAge, 0, *DefaultCORS.MaxAge)
	log.L(ctx).Debugf("CORS enabled for origins=%v maxAge=%s", origins, maxAge)
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		MaxAge:         int(maxAge.Seconds()),
	}).Handler(chain)
}
