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

package persistence

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
)

// NewUnitTestPersistence returns an in-memory sqlite DB with all migrations applied,
// for tests anywhere in the module that want a real DB.
func NewUnitTestPersistence(ctx context.Context) (Persistence, func(), error) {
	_, thisFile, _, _ := runtime.Caller(0)
	p, err := NewSQLProvider(ctx, sqliteDialect, &pxconf.SQLDBConfig{
		DSN:           ":memory:",
		AutoMigrate:   confutil.P(true),
		MigrationsDir: filepath.Join(filepath.Dir(thisFile), "..", "..", "db", "migrations", "sqlite"),
	}, pxconf.SQLiteDefaults)
	if err != nil {
		return nil, func() {}, err
	}
	return p, p.Close, nil
}
