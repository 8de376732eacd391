//go:build !no_mysql

package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/configs"
)

func init() {
	RegisterDriver(Driver{
		DSN: func(c *configs.DBConfig) string {
			// 时间统一按 UTC 存储
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				c.User, c.Password, c.Host, c.Port, c.Database)
		},
		Open: func(dsn string) gorm.Dialector {
			return mysql.New(mysql.Config{DSN: dsn, DefaultStringSize: 255})
		},
	}, configs.MySQL, configs.MariaDB)
}
