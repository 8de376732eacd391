//go:build !no_postgres

package db

import (
	"fmt"

	"gorm.io/driver/postgres"

	"github.com/yeisme/cloudvault/pkg/configs"
)

func init() {
	RegisterDriver(Driver{
		DSN: func(c *configs.DBConfig) string {
			return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
				c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
		},
		Open: postgres.Open,
	}, configs.PostgreSQL, configs.Postgres, configs.Pg)
}
