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
	"database/sql"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	gormPostgres "gorm.io/driver/postgres"
	gormSQLite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Persistence holds the checkpoint database
type Persistence interface {
	DB() *gorm.DB
	Close()

	// Transaction runs fn in a DB transaction, with the TX bound to the context passed to fn
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error
}

const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Dialect binds a database type to its gorm driver and its migration driver
type Dialect struct {
	Name            string
	Open            func(dsn string) gorm.Dialector
	MigrationDriver func(db *sql.DB) (migratedb.Driver, error)
}

var sqliteDialect = &Dialect{
	Name: TypeSQLite,
	Open: gormSQLite.Open,
	MigrationDriver: func(db *sql.DB) (migratedb.Driver, error) {
		return migratesqlite3.WithInstance(db, &migratesqlite3.Config{})
	},
}

var postgresDialect = &Dialect{
	Name: TypePostgres,
	Open: gormPostgres.Open,
	MigrationDriver: func(db *sql.DB) (migratedb.Driver, error) {
		return migratepostgres.WithInstance(db, &migratepostgres.Config{})
	},
}

func NewPersistence(ctx context.Context, conf *pxconf.DBConfig) (Persistence, error) {
	switch conf.Type {
	case "", TypeSQLite:
		return NewSQLProvider(ctx, sqliteDialect, &conf.SQLite.SQLDBConfig, pxconf.SQLiteDefaults)
	case TypePostgres:
		return NewSQLProvider(ctx, postgresDialect, &conf.Postgres.SQLDBConfig, pxconf.PostgresDefaults)
	default:
		return nil, i18n.NewError(ctx, msgs.MsgPersistenceInvalidType, conf.Type)
	}
}
