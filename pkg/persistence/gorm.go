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
	"errors"
	"runtime/debug"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/jernejc/PixelWorld/internal/msgs"
	"github.com/jernejc/PixelWorld/pkg/confutil"
	"github.com/jernejc/PixelWorld/pkg/log"
	"github.com/jernejc/PixelWorld/pkg/pxconf"
	"gorm.io/gorm"

	// file:// migration source
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type sqlProvider struct {
	dialect *Dialect
	gdb     *gorm.DB
	db      *sql.DB
}

// NewSQLProvider opens the DB through the dialect, sizes its connection pool, and applies
// the migrations in MigrationsDir when AutoMigrate is set
func NewSQLProvider(ctx context.Context, dialect *Dialect, conf *pxconf.SQLDBConfig, defs *pxconf.SQLDBConfig) (Persistence, error) {
	if conf.DSN == "" {
		return nil, i18n.NewError(ctx, msgs.MsgPersistenceMissingDSN)
	}
	sp := &sqlProvider{dialect: dialect}
	var err error
	sp.gdb, err = gorm.Open(dialect.Open(conf.DSN), &gorm.Config{SkipDefaultTransaction: true})
	if err == nil {
		sp.db, err = sp.gdb.DB()
	}
	if err != nil {
		return nil, i18n.WrapError(ctx, err, msgs.MsgPersistenceInitFailed)
	}
	sp.db.SetMaxOpenConns(confutil.IntMin(conf.MaxOpenConns, 1, *defs.MaxOpenConns))
	sp.db.SetMaxIdleConns(confutil.Int(conf.MaxIdleConns, *defs.MaxIdleConns))
	sp.db.SetConnMaxIdleTime(confutil.DurationMin(conf.ConnMaxIdleTime, 0, *defs.ConnMaxIdleTime))
	sp.db.SetConnMaxLifetime(confutil.DurationMin(conf.ConnMaxLifetime, 0, *defs.ConnMaxLifetime))

	if confutil.Bool(conf.AutoMigrate, false) {
		if err := sp.migrateUp(ctx, conf.MigrationsDir); err != nil {
			sp.Close()
			return nil, err
		}
	}
	return sp, nil
}

func (sp *sqlProvider) migrateUp(ctx context.Context, dir string) error {
	if dir == "" {
		return i18n.NewError(ctx, msgs.MsgPersistenceMissingMigrationDir)
	}
	log.L(ctx).Infof("Applying %s migrations from %s", sp.dialect.Name, dir)
	driver, err := sp.dialect.MigrationDriver(sp.db)
	var m *migrate.Migrate
	if err == nil {
		m, err = migrate.NewWithDatabaseInstance("file://"+dir, sp.dialect.Name, driver)
	}
	if err == nil {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return i18n.WrapError(ctx, err, msgs.MsgPersistenceMigrationFailed)
	}
	version, dirty, _ := m.Version()
	log.L(ctx).Infof("Checkpoint schema at v=%d dirty=%t", version, dirty)
	return nil
}

func (sp *sqlProvider) DB() *gorm.DB {
	return sp.gdb
}

func (sp *sqlProvider) Close() {
	err := sp.db.Close()
	log.L(context.Background()).Infof("Checkpoint DB closed (err=%v)", err)
}

// Transaction turns a panic inside fn into a PW010405 panic once gorm has rolled back
func (sp *sqlProvider) Transaction(parentCtx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) (err error) {
	txCtx := log.WithLogField(parentCtx, "dbtx", uuid.NewString()[0:8])
	completed := false
	defer func() {
		if !completed {
			panicData := recover()
			log.L(txCtx).Errorf("Panic within checkpoint transaction: %v\n%s", panicData, debug.Stack())
			panic(i18n.NewError(txCtx, msgs.MsgPersistenceTransactionFailed, panicData))
		}
	}()
	err = sp.gdb.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return fn(txCtx, tx)
	})
	completed = true
	return err
}
