//go:build !no_sqlite && cgo

package db

import (
	"fmt"

	"gorm.io/driver/sqlite"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// mattn/go-sqlite3 使用下划线参数设置 pragma.
func init() {
	RegisterDriver(Driver{
		DSN: func(c *configs.DBConfig) string {
			return sqliteFile(c) + fmt.Sprintf("_foreign_keys=1&_journal_mode=WAL&_busy_timeout=%d",
				c.BusyTimeout.Milliseconds())
		},
		Open: sqlite.Open,
	}, configs.SQLite)
}
