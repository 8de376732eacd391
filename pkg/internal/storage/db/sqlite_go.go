//go:build !no_sqlite && !cgo

package db

import (
	"fmt"

	"github.com/glebarez/sqlite"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// 纯 Go 驱动通过 _pragma 参数设置 pragma.
func init() {
	RegisterDriver(Driver{
		DSN: func(c *configs.DBConfig) string {
			return sqliteFile(c) + fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
				c.BusyTimeout.Milliseconds())
		},
		Open: sqlite.Open,
	}, configs.SQLite)
}
