// Package dbtest provides an in-memory database for package tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"pingpoint/db"
	"pingpoint/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a migrated in-memory sqlite pool closed when t ends.
// The pool holds a single connection, so never query the outer handle from
// inside a transaction callback.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:pingpoint_test_%d?mode=memory&cache=private", seq.Add(1))
	orm, err := gorm.Open(db.SQLite(dsn), db.Options(logger.Discard()))
	require.NoError(t, err)

	sqlDB, err := orm.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(orm, logger.Discard()))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return orm
}
